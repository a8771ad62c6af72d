package deploy

import (
	"context"
	"log/slog"
	"time"

	"github.com/fleetship/fleetship/internal/core/compose"
	"github.com/google/uuid"
)

// =============================================================================
// Orchestrator - End-to-End Deploy Coordination
// =============================================================================

// Orchestrator composes the probe, pruner, builder, reconciler and
// release router into a single deploy pass. Each Run is one pass over
// one request; the orchestrator holds no per-deploy mutable state.
type Orchestrator struct {
	prober           ImageProber
	builder          Builder
	legacy           ReleaseStrategy
	modern           ReleaseStrategy
	recorder         Recorder // optional
	probeConcurrency int
	logger           *slog.Logger
}

// Options configures an Orchestrator.
type Options struct {
	Prober           ImageProber
	Builder          Builder
	Legacy           ReleaseStrategy
	Modern           ReleaseStrategy
	Recorder         Recorder
	ProbeConcurrency int
	Logger           *slog.Logger
}

// NewOrchestrator creates a deploy orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	concurrency := opts.ProbeConcurrency
	if concurrency <= 0 {
		concurrency = DefaultProbeConcurrency
	}
	return &Orchestrator{
		prober:           opts.Prober,
		builder:          opts.Builder,
		legacy:           opts.Legacy,
		modern:           opts.Modern,
		recorder:         opts.Recorder,
		probeConcurrency: concurrency,
		logger:           logger.With("component", "orchestrator"),
	}
}

// Request is one deploy request.
type Request struct {
	Project           *compose.Project
	Fleet             FleetInfo
	ForceRebuild      bool
	Emulated          bool
	SuppressLogUpload bool
	Source            *SourceInfo
	BuildOptions      map[string]string
}

// Run executes the deploy end to end: validate, prune, build,
// reconcile, route. Any stage error unwinds the whole deploy; no
// partial continuation.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Outcome, error) {
	started := time.Now()
	runID := uuid.NewString()
	logger := o.logger.With("run_id", runID, "fleet", req.Fleet.Name)

	if err := req.Project.Validate(); err != nil {
		return nil, NewError("validate", req.Fleet.Name, err.Error(), err)
	}
	if err := ValidateCapabilities(len(req.Project.Descriptors), req.Fleet.Capabilities); err != nil {
		return nil, err
	}

	logger.Info("starting deploy",
		"services", len(req.Project.Descriptors),
		"force_rebuild", req.ForceRebuild,
		"legacy", req.Fleet.Capabilities.IsLegacy,
	)

	pruned := PruneComposition(ctx, req.Project.Composition, req.ForceRebuild, o.prober, o.probeConcurrency, logger)

	built := map[string]ImageRecord{}
	if pruned.Composition.IsEmpty() {
		logger.Info("all images exist locally, nothing to build")
	} else {
		var err error
		built, err = o.builder.Build(ctx, BuildRequest{
			Composition: pruned.Composition,
			ProjectName: req.Project.Name,
			ProjectDir:  req.Project.Dir,
			Arch:        req.Fleet.Arch,
			DeviceType:  req.Fleet.DeviceType,
			Emulated:    req.Emulated,
			Options:     req.BuildOptions,
		})
		if err != nil {
			return nil, NewError("build", req.Fleet.Name, err.Error(), err)
		}
		logger.Info("build finished", "images", len(built))
	}

	records, err := Reconcile(req.Project.Descriptors, built, pruned.Skipped)
	if err != nil {
		return nil, err
	}

	strategy := SelectStrategy(req.Fleet.Capabilities, o.legacy, o.modern)
	release, err := strategy.CreateRelease(ctx, ReleaseRequest{
		Fleet:             req.Fleet,
		Composition:       req.Project.Composition,
		Images:            records,
		Source:            req.Source,
		SuppressLogUpload: req.SuppressLogUpload,
		RunID:             runID,
	})
	if err != nil {
		return nil, NewError("release", req.Fleet.Name, err.Error(), err)
	}

	outcome := &Outcome{
		RunID:         runID,
		ReleaseID:     release.ID,
		ReleaseCommit: release.Commit,
		Images:        records,
		SkippedCount:  len(pruned.Skipped),
		Duration:      time.Since(started),
	}

	if o.recorder != nil {
		if err := o.recorder.RecordDeploy(ctx, req.Fleet.Name, outcome, req.Source); err != nil {
			logger.Warn("failed to record deploy history", "error", err)
		}
	}

	logger.Info("deploy complete",
		"release_commit", outcome.ReleaseCommit,
		"skipped", outcome.SkippedCount,
		"duration", outcome.Duration,
	)

	return outcome, nil
}
