package docker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetship/fleetship/internal/core/compose"
	"github.com/fleetship/fleetship/internal/core/deploy"
)

func TestPlatformForArch(t *testing.T) {
	tests := []struct {
		arch string
		want string
	}{
		{"amd64", "linux/amd64"},
		{"i386", "linux/386"},
		{"aarch64", "linux/arm64"},
		{"armv7hf", "linux/arm/v7"},
		{"rpi", "linux/arm/v6"},
		{"riscv64", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.arch, func(t *testing.T) {
			assert.Equal(t, tt.want, PlatformForArch(tt.arch))
		})
	}
}

// =============================================================================
// Build Dispatch Tests
// =============================================================================

type fakeImageAPI struct {
	lastSpec BuildSpec
	buildOut *BuildOutput
	buildErr error
	pullLogs string
	pullErr  error
}

func (f *fakeImageAPI) BuildImage(ctx context.Context, spec BuildSpec) (*BuildOutput, error) {
	f.lastSpec = spec
	return f.buildOut, f.buildErr
}

func (f *fakeImageAPI) PullImage(ctx context.Context, ref, platform string) (string, error) {
	return f.pullLogs, f.pullErr
}

func newCapturedBuilder(api imageAPI) (*ImageBuilder, *bytes.Buffer) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	return &ImageBuilder{docker: api, logger: logger}, &buf
}

func buildServiceRequest(opts map[string]string) deploy.BuildRequest {
	return deploy.BuildRequest{
		Composition: compose.NewComposition(compose.ServiceConfig{
			Name: "api",
			Image: compose.BuildImage{
				Context:    "/src/proj/api",
				Dockerfile: "Dockerfile",
				Args:       map[string]string{"GO_VERSION": "1.24"},
				Tag:        "proj_api:latest",
			},
		}),
		ProjectName: "proj",
		Arch:        "amd64",
		Options:     opts,
	}
}

func TestImageBuilder_FlushesPartialLogsOnBuildFailure(t *testing.T) {
	api := &fakeImageAPI{
		buildOut: &BuildOutput{Logs: "Step 1/3 : FROM alpine\nStep 2/3 : RUN make\n"},
		buildErr: errors.New("executor failed running step 3"),
	}
	b, buf := newCapturedBuilder(api)

	_, err := b.Build(context.Background(), buildServiceRequest(nil))
	require.Error(t, err)

	// Output collected before the failure must reach the user.
	assert.Contains(t, buf.String(), "Step 1/3 : FROM alpine")
	assert.Contains(t, buf.String(), "Step 2/3 : RUN make")
}

func TestImageBuilder_FlushesPartialLogsOnPullFailure(t *testing.T) {
	api := &fakeImageAPI{
		pullLogs: "Pulling from library/nginx\n",
		pullErr:  errors.New("connection reset"),
	}
	b, buf := newCapturedBuilder(api)

	req := deploy.BuildRequest{
		Composition: compose.NewComposition(compose.ServiceConfig{
			Name:  "web",
			Image: compose.PlainImage{Ref: "nginx:1.27"},
		}),
		Arch: "amd64",
	}
	_, err := b.Build(context.Background(), req)
	require.Error(t, err)

	assert.Contains(t, buf.String(), "Pulling from library/nginx")
}

func TestImageBuilder_MergesRequestOptionsIntoBuildArgs(t *testing.T) {
	api := &fakeImageAPI{
		buildOut: &BuildOutput{Logs: "ok\n", ImageID: "sha256:1"},
	}
	b, _ := newCapturedBuilder(api)

	records, err := b.Build(context.Background(), buildServiceRequest(map[string]string{
		"GO_VERSION": "1.23",
		"CACHE_BUST": "7",
	}))
	require.NoError(t, err)
	require.Contains(t, records, "api")

	// Per-service args win over request-wide options.
	assert.Equal(t, "1.24", api.lastSpec.Args["GO_VERSION"])
	assert.Equal(t, "7", api.lastSpec.Args["CACHE_BUST"])
	assert.Equal(t, "linux/amd64", api.lastSpec.Platform)
}
