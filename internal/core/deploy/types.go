// Package deploy implements the deploy orchestration engine: probing
// local images, pruning the build request, reconciling build results,
// and routing the assembled image set to the right release protocol.
package deploy

import (
	"context"
	"time"

	"github.com/fleetship/fleetship/internal/core/compose"
)

// SkipLogs is the fixed log message recorded for services whose build
// was skipped because a usable image already exists locally.
const SkipLogs = "Build skipped; image already exists."

// =============================================================================
// Records
// =============================================================================

// ImageRecord is the orchestrator's output unit: exactly one per
// declared service, produced by the builder or synthesized for a
// skipped service.
type ImageRecord struct {
	ServiceName string
	Name        string            // resolved image reference
	Logs        string            // build log, or SkipLogs
	Props       map[string]string // opaque build metadata, empty when skipped
}

// TargetCapabilities are the fleet's release-protocol capability flags.
type TargetCapabilities struct {
	IsLegacy               bool
	SupportsMulticontainer bool
}

// FleetInfo describes the deploy target as reported by the fleet API.
type FleetInfo struct {
	Name         string
	ID           int64
	Arch         string
	DeviceType   string
	Capabilities TargetCapabilities
}

// SourceInfo is best-effort version-control metadata for the project
// directory, attached to release requests when available.
type SourceInfo struct {
	Commit string
	Branch string
	Dirty  bool
}

// Outcome is the terminal result of a successful deploy.
type Outcome struct {
	RunID         string
	ReleaseID     string
	ReleaseCommit string
	Images        []ImageRecord
	SkippedCount  int
	Duration      time.Duration
}

// =============================================================================
// Collaborator Interfaces
// =============================================================================

// ImageProber asks the local container runtime whether an image
// reference resolves. A runtime error is reported as an error but the
// engine coerces it to "not found"; it never aborts a deploy.
type ImageProber interface {
	ImageExists(ctx context.Context, ref string) (bool, error)
}

// BuildRequest is the single-shot request handed to the builder: the
// pruned composition plus the project and target parameters.
type BuildRequest struct {
	Composition compose.Composition
	ProjectName string
	ProjectDir  string
	Arch        string
	DeviceType  string
	Emulated    bool
	Options     map[string]string
}

// Builder constructs or pulls one image per service in the request's
// composition. It either returns a record for every service, keyed by
// service name, or fails the whole deploy.
type Builder interface {
	Build(ctx context.Context, req BuildRequest) (map[string]ImageRecord, error)
}

// ReleaseRequest carries everything a release strategy needs to create
// one release on the fleet.
type ReleaseRequest struct {
	Fleet             FleetInfo
	Composition       compose.Composition
	Images            []ImageRecord
	Source            *SourceInfo
	SuppressLogUpload bool
	RunID             string
}

// Release identifies a created release.
type Release struct {
	ID     string
	Commit string
}

// ReleaseStrategy is one of the two incompatible release-creation
// protocols. Exactly one strategy is selected per deploy, before any
// release call is issued, and it is never re-entered.
type ReleaseStrategy interface {
	CreateRelease(ctx context.Context, req ReleaseRequest) (*Release, error)
}

// Recorder persists deploy outcomes; recording is best effort and a
// recorder failure never fails the deploy.
type Recorder interface {
	RecordDeploy(ctx context.Context, fleet string, outcome *Outcome, source *SourceInfo) error
}
