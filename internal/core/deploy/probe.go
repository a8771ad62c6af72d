package deploy

import (
	"context"
	"log/slog"
	"sync"
)

// ProbeResult is the explicit outcome of one image-existence probe.
// Probe failures are coerced to ProbeNotFound: a probe can cause an
// unnecessary rebuild but never block an otherwise-successful deploy.
type ProbeResult int

const (
	ProbeNotFound ProbeResult = iota
	ProbeFound
)

// DefaultProbeConcurrency bounds the parallel image probes per deploy.
const DefaultProbeConcurrency = 5

// probeServices checks every ref concurrently with bounded fan-out and
// returns one result per service. A single probe's failure does not
// affect its siblings; completion order is irrelevant.
func probeServices(ctx context.Context, prober ImageProber, refs map[string]string, maxConcurrent int, logger *slog.Logger) map[string]ProbeResult {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultProbeConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}

	type probeOutcome struct {
		service string
		result  ProbeResult
	}

	sem := make(chan struct{}, maxConcurrent)
	outcomes := make(chan probeOutcome, len(refs))
	var wg sync.WaitGroup

	for service, ref := range refs {
		wg.Add(1)
		go func(service, ref string) {
			defer wg.Done()

			// Acquire semaphore
			select {
			case <-ctx.Done():
				outcomes <- probeOutcome{service: service, result: ProbeNotFound}
				return
			case sem <- struct{}{}:
				defer func() { <-sem }()
			}

			exists, err := prober.ImageExists(ctx, ref)
			if err != nil {
				logger.Debug("image probe failed, treating as not found",
					"service", service,
					"image", ref,
					"error", err,
				)
				outcomes <- probeOutcome{service: service, result: ProbeNotFound}
				return
			}
			result := ProbeNotFound
			if exists {
				result = ProbeFound
			}
			outcomes <- probeOutcome{service: service, result: result}
		}(service, ref)
	}

	wg.Wait()
	close(outcomes)

	results := make(map[string]ProbeResult, len(refs))
	for o := range outcomes {
		results[o.service] = o.result
	}
	return results
}
