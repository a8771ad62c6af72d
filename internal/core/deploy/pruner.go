package deploy

import (
	"context"
	"log/slog"
	"sort"

	"github.com/fleetship/fleetship/internal/core/compose"
)

// PruneResult is the pruner's output: the composition reduced to the
// services that still need a build, plus the names that were removed.
type PruneResult struct {
	Composition compose.Composition
	Skipped     []string
}

// PruneComposition removes every service whose image already resolves
// locally, unless a rebuild is forced. An empty result composition is a
// valid terminal state ("nothing to build"), not an error.
//
// Build-spec services are probed by their resolved tag, not the raw
// spec. Probe failures are coerced to "not found" per probeServices.
func PruneComposition(ctx context.Context, comp compose.Composition, forceRebuild bool, prober ImageProber, maxConcurrent int, logger *slog.Logger) PruneResult {
	if logger == nil {
		logger = slog.Default()
	}

	if forceRebuild {
		logger.Debug("rebuild forced, skipping image probes", "services", comp.Len())
		return PruneResult{Composition: comp}
	}

	refs := make(map[string]string, comp.Len())
	for name, svc := range comp.Services {
		refs[name] = svc.Image.Reference()
	}

	results := probeServices(ctx, prober, refs, maxConcurrent, logger)

	var skipped []string
	for name, result := range results {
		if result == ProbeFound {
			skipped = append(skipped, name)
		}
	}
	sort.Strings(skipped)

	if len(skipped) > 0 {
		logger.Info("reusing existing images", "services", skipped)
	}

	return PruneResult{
		Composition: comp.Without(skipped),
		Skipped:     skipped,
	}
}
