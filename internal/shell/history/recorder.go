package history

import (
	"context"
	"time"

	"github.com/fleetship/fleetship/internal/core/deploy"
)

// =============================================================================
// Deploy Recorder
// =============================================================================

// Recorder adapts a Store to the orchestrator's recording hook.
type Recorder struct {
	store Store
	now   func() time.Time
}

// NewRecorder creates a Recorder backed by the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// RecordDeploy persists one deploy outcome.
func (r *Recorder) RecordDeploy(ctx context.Context, fleet string, outcome *deploy.Outcome, source *deploy.SourceInfo) error {
	entry := &Entry{
		RunID:         outcome.RunID,
		Fleet:         fleet,
		ReleaseID:     outcome.ReleaseID,
		ReleaseCommit: outcome.ReleaseCommit,
		ServiceCount:  len(outcome.Images),
		SkippedCount:  outcome.SkippedCount,
		Duration:      outcome.Duration,
		Images:        make([]ImageSummary, 0, len(outcome.Images)),
		CreatedAt:     r.now(),
	}
	for _, img := range outcome.Images {
		entry.Images = append(entry.Images, ImageSummary{
			ServiceName: img.ServiceName,
			ImageName:   img.Name,
			Skipped:     img.Logs == deploy.SkipLogs,
		})
	}
	if source != nil {
		entry.SourceCommit = source.Commit
		entry.SourceBranch = source.Branch
		entry.SourceDirty = source.Dirty
	}

	return r.store.CreateEntry(ctx, entry)
}
