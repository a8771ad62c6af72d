package history

import (
	"context"
	"time"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store defines the persistence interface for deploy history.
type Store interface {
	CreateEntry(ctx context.Context, entry *Entry) error
	GetEntry(ctx context.Context, runID string) (*Entry, error)
	ListEntries(ctx context.Context, opts ListOptions) ([]Entry, error)

	Close() error
}

// =============================================================================
// Entities
// =============================================================================

// ImageSummary is the per-service slice of a recorded deploy. Build
// logs are deliberately not persisted; only the resolved reference and
// whether the build was skipped.
type ImageSummary struct {
	ServiceName string `json:"service_name"`
	ImageName   string `json:"image_name"`
	Skipped     bool   `json:"skipped,omitempty"`
}

// Entry is one recorded deploy.
type Entry struct {
	RunID         string
	Fleet         string
	ReleaseID     string
	ReleaseCommit string
	ServiceCount  int
	SkippedCount  int
	Duration      time.Duration
	Images        []ImageSummary
	SourceCommit  string
	SourceBranch  string
	SourceDirty   bool
	CreatedAt     time.Time
}

// =============================================================================
// Options
// =============================================================================

// ListOptions defines pagination and filtering options. Entries come
// back newest first.
type ListOptions struct {
	Fleet  string // filter to one fleet when non-empty
	Limit  int
	Offset int
}

// Normalize ensures list options have valid values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = 50
	}
	if o.Limit > 500 {
		o.Limit = 500
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
