package fleetapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/fleetship/fleetship/internal/core/compose"
	"github.com/fleetship/fleetship/internal/core/deploy"
)

// =============================================================================
// Legacy Release Protocol (single image)
// =============================================================================

// LegacyReleaser implements the single-image deploy protocol used by
// fleets whose type predates multi-container support. Creating a
// release takes two round-trips: the deploy request returns a release
// identifier, and a follow-up lookup resolves it into a commit. The
// legacy endpoint does not return the commit directly; the second call
// stays until the service confirms otherwise.
type LegacyReleaser struct {
	client *Client
	user   *User
}

// NewLegacyReleaser creates the legacy release strategy.
func NewLegacyReleaser(client *Client, user *User) *LegacyReleaser {
	return &LegacyReleaser{client: client, user: user}
}

type legacyDeployRequest struct {
	Username         string `json:"username"`
	ImageName        string `json:"image_name"`
	BuildLogs        string `json:"build_logs,omitempty"`
	ShouldUploadLogs bool   `json:"should_upload_logs"`
}

type legacyDeployResponse struct {
	ID int64 `json:"id"`
}

type releaseResponse struct {
	ID     int64  `json:"id"`
	Commit string `json:"commit"`
}

// CreateRelease submits the single image and resolves the returned
// identifier into a commit.
func (r *LegacyReleaser) CreateRelease(ctx context.Context, req deploy.ReleaseRequest) (*deploy.Release, error) {
	if len(req.Images) != 1 {
		return nil, NewAPIError("CreateRelease", req.Fleet.Name, 0,
			fmt.Sprintf("legacy protocol takes exactly one image, got %d", len(req.Images)),
			deploy.ErrLegacySingleService)
	}
	img := req.Images[0]

	buildLogs := ""
	if !req.SuppressLogUpload {
		buildLogs = img.Logs
	}

	var deployResp legacyDeployResponse
	err := r.client.do(ctx, "DeployImage", http.MethodPost,
		fmt.Sprintf("/api/v1/applications/%d/deploy", req.Fleet.ID),
		legacyDeployRequest{
			Username:         r.user.Username,
			ImageName:        img.Name,
			BuildLogs:        buildLogs,
			ShouldUploadLogs: !req.SuppressLogUpload,
		}, &deployResp)
	if err != nil {
		return nil, err
	}

	var rel releaseResponse
	err = r.client.do(ctx, "GetRelease", http.MethodGet,
		fmt.Sprintf("/api/v1/releases/%d", deployResp.ID), nil, &rel)
	if err != nil {
		return nil, err
	}

	return &deploy.Release{
		ID:     strconv.FormatInt(deployResp.ID, 10),
		Commit: rel.Commit,
	}, nil
}

// =============================================================================
// Multi-Container Release Protocol
// =============================================================================

// MulticontainerReleaser implements the modern release protocol: the
// full composition plus all image records go out as one request and
// the commit comes back directly.
type MulticontainerReleaser struct {
	client *Client
	user   *User
}

// NewMulticontainerReleaser creates the modern release strategy.
func NewMulticontainerReleaser(client *Client, user *User) *MulticontainerReleaser {
	return &MulticontainerReleaser{client: client, user: user}
}

type releaseImagePayload struct {
	ServiceName string            `json:"service_name"`
	ImageName   string            `json:"image_name"`
	BuildLogs   string            `json:"build_logs,omitempty"`
	Props       map[string]string `json:"props,omitempty"`
}

type releaseServicePayload struct {
	Image       string            `json:"image"`
	Environment map[string]string `json:"environment,omitempty"`
	Labels      map[string]string `json:"labels,omitempty"`
}

type releaseSourcePayload struct {
	Commit string `json:"commit,omitempty"`
	Branch string `json:"branch,omitempty"`
	Dirty  bool   `json:"dirty,omitempty"`
}

type createReleaseRequest struct {
	AppID             int64                            `json:"app_id"`
	UserID            int64                            `json:"user_id"`
	Composition       map[string]releaseServicePayload `json:"composition"`
	Images            []releaseImagePayload            `json:"images"`
	Source            *releaseSourcePayload            `json:"source,omitempty"`
	SuppressLogUpload bool                             `json:"suppress_log_upload"`
	RunID             string                           `json:"run_id,omitempty"`
}

// CreateRelease submits the composition and all image records as one
// release-creation request.
func (r *MulticontainerReleaser) CreateRelease(ctx context.Context, req deploy.ReleaseRequest) (*deploy.Release, error) {
	payload := createReleaseRequest{
		AppID:             req.Fleet.ID,
		UserID:            r.user.ID,
		Composition:       compositionPayload(req.Composition),
		Images:            make([]releaseImagePayload, 0, len(req.Images)),
		SuppressLogUpload: req.SuppressLogUpload,
		RunID:             req.RunID,
	}
	for _, img := range req.Images {
		p := releaseImagePayload{
			ServiceName: img.ServiceName,
			ImageName:   img.Name,
			Props:       img.Props,
		}
		if !req.SuppressLogUpload {
			p.BuildLogs = img.Logs
		}
		payload.Images = append(payload.Images, p)
	}
	if req.Source != nil {
		payload.Source = &releaseSourcePayload{
			Commit: req.Source.Commit,
			Branch: req.Source.Branch,
			Dirty:  req.Source.Dirty,
		}
	}

	var rel releaseResponse
	err := r.client.do(ctx, "CreateRelease", http.MethodPost, "/api/v2/releases", payload, &rel)
	if err != nil {
		return nil, err
	}
	if rel.Commit == "" {
		return nil, NewAPIError("CreateRelease", req.Fleet.Name, 0, "release response carries no commit", ErrBadResponse)
	}

	return &deploy.Release{
		ID:     strconv.FormatInt(rel.ID, 10),
		Commit: rel.Commit,
	}, nil
}

// compositionPayload flattens the composition for the release request.
func compositionPayload(comp compose.Composition) map[string]releaseServicePayload {
	out := make(map[string]releaseServicePayload, comp.Len())
	for name, svc := range comp.Services {
		out[name] = releaseServicePayload{
			Image:       svc.Image.Reference(),
			Environment: svc.Environment,
			Labels:      svc.Labels,
		}
	}
	return out
}
