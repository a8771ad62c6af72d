package docker

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/fleetship/fleetship/internal/core/compose"
	"github.com/fleetship/fleetship/internal/core/deploy"
)

// Label applied to every image produced by a fleetship build.
const LabelBuiltBy = "io.fleetship.built-by"

// archPlatforms maps fleet CPU architecture slugs to OCI platform
// strings for the daemon's builder.
var archPlatforms = map[string]string{
	"amd64":   "linux/amd64",
	"i386":    "linux/386",
	"aarch64": "linux/arm64",
	"armv7hf": "linux/arm/v7",
	"rpi":     "linux/arm/v6",
}

// PlatformForArch resolves a fleet architecture slug to an OCI
// platform string, or "" when the slug is unknown and the daemon's
// default platform should be used.
func PlatformForArch(arch string) string {
	return archPlatforms[arch]
}

// =============================================================================
// Image Builder - Build Dispatcher Implementation
// =============================================================================

// imageAPI is the slice of the Docker client the builder depends on.
type imageAPI interface {
	BuildImage(ctx context.Context, spec BuildSpec) (*BuildOutput, error)
	PullImage(ctx context.Context, ref, platform string) (string, error)
}

// ImageBuilder implements deploy.Builder on the local Docker daemon:
// build-spec services are built from their context directory, plain
// image references are pulled. Build output collected before a failure
// is flushed through the logger before the error is returned.
type ImageBuilder struct {
	docker imageAPI
	logger *slog.Logger
}

// NewImageBuilder creates a builder backed by the given Docker client.
func NewImageBuilder(docker *Client, logger *slog.Logger) *ImageBuilder {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageBuilder{
		docker: docker,
		logger: logger.With("component", "builder"),
	}
}

// Build produces one ImageRecord per service in the request's
// composition. It is single-shot: the first failing service fails the
// whole request.
func (b *ImageBuilder) Build(ctx context.Context, req deploy.BuildRequest) (map[string]deploy.ImageRecord, error) {
	platform := PlatformForArch(req.Arch)

	records := make(map[string]deploy.ImageRecord, req.Composition.Len())
	for _, name := range req.Composition.ServiceNames() {
		svc := req.Composition.Services[name]
		rec, err := b.buildService(ctx, svc, req, platform)
		if err != nil {
			return nil, err
		}
		records[name] = rec
	}
	return records, nil
}

func (b *ImageBuilder) buildService(ctx context.Context, svc compose.ServiceConfig, req deploy.BuildRequest, platform string) (deploy.ImageRecord, error) {
	started := time.Now()

	switch img := svc.Image.(type) {
	case compose.BuildImage:
		b.logger.Info("building service",
			"service", svc.Name,
			"tag", img.Tag,
			"context", img.Context,
			"platform", platform,
			"emulated", req.Emulated,
		)

		// Request-wide build options apply to every built service;
		// per-service args win on conflict.
		args := make(map[string]string, len(req.Options)+len(img.Args))
		for k, v := range req.Options {
			args[k] = v
		}
		for k, v := range img.Args {
			args[k] = v
		}

		out, err := b.docker.BuildImage(ctx, BuildSpec{
			ContextDir: img.Context,
			Dockerfile: img.Dockerfile,
			Tag:        img.Tag,
			Args:       args,
			Platform:   platform,
			Labels: map[string]string{
				LabelBuiltBy: "fleetship",
			},
		})
		if err != nil {
			if out != nil && out.Logs != "" {
				b.flushLogs(svc.Name, out.Logs)
			}
			return deploy.ImageRecord{}, err
		}

		return deploy.ImageRecord{
			ServiceName: svc.Name,
			Name:        img.Tag,
			Logs:        out.Logs,
			Props: map[string]string{
				"image_id":    out.ImageID,
				"dockerfile":  img.Dockerfile,
				"platform":    platform,
				"emulated":    strconv.FormatBool(req.Emulated),
				"duration_ms": strconv.FormatInt(time.Since(started).Milliseconds(), 10),
			},
		}, nil

	case compose.PlainImage:
		b.logger.Info("pulling service image",
			"service", svc.Name,
			"image", img.Ref,
			"platform", platform,
		)

		logs, err := b.docker.PullImage(ctx, img.Ref, platform)
		if err != nil {
			if logs != "" {
				b.flushLogs(svc.Name, logs)
			}
			return deploy.ImageRecord{}, err
		}

		return deploy.ImageRecord{
			ServiceName: svc.Name,
			Name:        img.Ref,
			Logs:        logs,
			Props: map[string]string{
				"pulled":      "true",
				"platform":    platform,
				"duration_ms": strconv.FormatInt(time.Since(started).Milliseconds(), 10),
			},
		}, nil

	default:
		return deploy.ImageRecord{}, NewDockerError("Build", svc.Name, "unsupported image spec", ErrImageBuildFailed)
	}
}

// flushLogs surfaces output that was buffered before a failure, one
// line per record so progress context is readable in the terminal.
func (b *ImageBuilder) flushLogs(service, logs string) {
	for _, line := range strings.Split(strings.TrimRight(logs, "\n"), "\n") {
		b.logger.Warn("build output", "service", service, "line", line)
	}
}
