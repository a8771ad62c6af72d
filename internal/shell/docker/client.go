// Package docker wraps the Docker SDK for the image operations a
// deploy needs: existence probes, pulls and local builds.
package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
)

// =============================================================================
// Docker Client Implementation
// =============================================================================

// Client wraps the Docker SDK client.
type Client struct {
	cli *client.Client
}

// NewClient creates a new Docker client.
// If host is empty, it uses the default Docker host from environment.
// On macOS with Docker Desktop, it automatically detects the correct socket.
func NewClient(host string) (*Client, error) {
	var opts []client.Opt
	opts = append(opts, client.FromEnv)
	opts = append(opts, client.WithAPIVersionNegotiation())

	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewClient", "", "failed to create client", ErrConnectionFailed)
	}

	// Try to ping with default settings
	ctx := context.Background()
	if _, pingErr := cli.Ping(ctx); pingErr != nil {
		// If default socket fails, try Docker Desktop socket on macOS
		homeDir, _ := os.UserHomeDir()
		dockerDesktopSocket := "unix://" + homeDir + "/.docker/run/docker.sock"

		cli2, err2 := client.NewClientWithOpts(
			client.WithHost(dockerDesktopSocket),
			client.WithAPIVersionNegotiation(),
		)
		if err2 == nil {
			if _, pingErr2 := cli2.Ping(ctx); pingErr2 == nil {
				cli.Close()
				return &Client{cli: cli2}, nil
			}
			cli2.Close()
		}
	}

	return &Client{cli: cli}, nil
}

// Ping checks if the Docker daemon is reachable.
func (d *Client) Ping(ctx context.Context) error {
	_, err := d.cli.Ping(ctx)
	if err != nil {
		return NewDockerError("Ping", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *Client) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Image Operations
// =============================================================================

// ImageExists checks if an image exists locally. A missing image is
// reported as (false, nil); only unexpected daemon errors are returned.
func (d *Client) ImageExists(ctx context.Context, ref string) (bool, error) {
	_, _, err := d.cli.ImageInspectWithRaw(ctx, ref)
	if err != nil {
		if client.IsErrNotFound(err) {
			return false, nil
		}
		return false, NewDockerError("ImageExists", ref, err.Error(), err)
	}

	return true, nil
}

// PullImage pulls an image from the registry and returns the pull log.
func (d *Client) PullImage(ctx context.Context, ref, platform string) (string, error) {
	pullOpts := image.PullOptions{}
	if platform != "" {
		pullOpts.Platform = platform
	}

	reader, err := d.cli.ImagePull(ctx, ref, pullOpts)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "not found") ||
			strings.Contains(errStr, "manifest unknown") ||
			strings.Contains(errStr, "repository does not exist") ||
			strings.Contains(errStr, "pull access denied") {
			return "", NewDockerError("PullImage", ref, "image not found", ErrImageNotFound)
		}
		return "", NewDockerError("PullImage", ref, err.Error(), ErrImagePullFailed)
	}
	defer reader.Close()

	logs, _, err := DecodeBuildStream(reader)
	if err != nil {
		return logs, NewDockerError("PullImage", ref, err.Error(), ErrImagePullFailed)
	}

	return logs, nil
}

// BuildSpec describes one local image build.
type BuildSpec struct {
	ContextDir string
	Dockerfile string
	Tag        string
	Args       map[string]string
	Platform   string
	Labels     map[string]string
}

// BuildOutput is the result of a local image build.
type BuildOutput struct {
	Logs    string
	ImageID string
}

// BuildImage builds an image from a local context directory and
// returns the accumulated build log plus the image ID. When the daemon
// reports a mid-stream failure, the log collected up to that point is
// returned alongside the error.
func (d *Client) BuildImage(ctx context.Context, spec BuildSpec) (*BuildOutput, error) {
	buildCtx, err := archive.TarWithOptions(spec.ContextDir, &archive.TarOptions{})
	if err != nil {
		return nil, NewDockerError("BuildImage", spec.Tag, "failed to create build context: "+err.Error(), ErrImageBuildFailed)
	}
	defer buildCtx.Close()

	args := make(map[string]*string, len(spec.Args))
	for k, v := range spec.Args {
		v := v
		args[k] = &v
	}

	dockerfile := spec.Dockerfile
	if dockerfile == "" {
		dockerfile = "Dockerfile"
	}

	resp, err := d.cli.ImageBuild(ctx, buildCtx, build.ImageBuildOptions{
		Tags:       []string{spec.Tag},
		Dockerfile: dockerfile,
		BuildArgs:  args,
		Platform:   spec.Platform,
		Labels:     spec.Labels,
		Remove:     true,
	})
	if err != nil {
		return nil, NewDockerError("BuildImage", spec.Tag, err.Error(), ErrImageBuildFailed)
	}
	defer resp.Body.Close()

	logs, imageID, err := DecodeBuildStream(resp.Body)
	if err != nil {
		return &BuildOutput{Logs: logs, ImageID: imageID},
			NewDockerError("BuildImage", spec.Tag, err.Error(), ErrImageBuildFailed)
	}

	return &BuildOutput{Logs: logs, ImageID: imageID}, nil
}

// =============================================================================
// Build Stream Decoding
// =============================================================================

// streamMessage is one JSON line of the daemon's build/pull stream.
type streamMessage struct {
	Stream string `json:"stream"`
	Status string `json:"status"`
	Aux    struct {
		ID string `json:"ID"`
	} `json:"aux"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

// DecodeBuildStream consumes a docker build or pull response stream,
// accumulating human-readable log output and the resulting image ID.
// A daemon-reported error terminates the decode and is returned after
// the logs collected so far.
func DecodeBuildStream(r io.Reader) (logs string, imageID string, err error) {
	var sb strings.Builder
	dec := json.NewDecoder(r)
	for {
		var msg streamMessage
		if decErr := dec.Decode(&msg); decErr != nil {
			if decErr == io.EOF {
				break
			}
			return sb.String(), imageID, fmt.Errorf("malformed daemon stream: %w", decErr)
		}
		if msg.Stream != "" {
			sb.WriteString(msg.Stream)
		}
		if msg.Status != "" {
			sb.WriteString(msg.Status)
			sb.WriteString("\n")
		}
		if msg.Aux.ID != "" {
			imageID = msg.Aux.ID
		}
		if msg.Error != "" {
			detail := msg.ErrorDetail.Message
			if detail == "" {
				detail = msg.Error
			}
			return sb.String(), imageID, fmt.Errorf("%s", detail)
		}
	}
	return sb.String(), imageID, nil
}
