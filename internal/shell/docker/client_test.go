package docker

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

func skipIfNoDocker(t *testing.T) *Client {
	t.Helper()
	cli, err := NewClient("")
	if err != nil {
		t.Skip("Docker not available:", err)
	}
	if err := cli.Ping(context.Background()); err != nil {
		cli.Close()
		t.Skip("Docker not reachable:", err)
	}
	return cli
}

// =============================================================================
// Connection Tests
// =============================================================================

func TestNewClient_Success(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	assert.NotNil(t, cli)
}

func TestPing_Success(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	err := cli.Ping(context.Background())
	assert.NoError(t, err)
}

// =============================================================================
// Image Probe Tests
// =============================================================================

func TestImageExists_NotFound(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	exists, err := cli.ImageExists(context.Background(), "fleetship-test-does-not-exist:never")
	require.NoError(t, err, "a missing image is not an error")
	assert.False(t, exists)
}

func TestImageExists_Idempotent(t *testing.T) {
	cli := skipIfNoDocker(t)
	defer cli.Close()

	ref := "fleetship-test-does-not-exist:never"
	first, err := cli.ImageExists(context.Background(), ref)
	require.NoError(t, err)
	second, err := cli.ImageExists(context.Background(), ref)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

// =============================================================================
// Stream Decoding Tests
// =============================================================================

func TestDecodeBuildStream_CollectsLogsAndImageID(t *testing.T) {
	stream := `{"stream":"Step 1/2 : FROM alpine:latest\n"}
{"stream":" ---> abc123\n"}
{"aux":{"ID":"sha256:deadbeef"}}
{"stream":"Successfully built deadbeef\n"}
`

	logs, imageID, err := DecodeBuildStream(strings.NewReader(stream))
	require.NoError(t, err)

	assert.Contains(t, logs, "Step 1/2 : FROM alpine:latest")
	assert.Contains(t, logs, "Successfully built deadbeef")
	assert.Equal(t, "sha256:deadbeef", imageID)
}

func TestDecodeBuildStream_DaemonError(t *testing.T) {
	stream := `{"stream":"Step 1/2 : FROM alpine:latest\n"}
{"errorDetail":{"message":"executor failed running step 2"},"error":"executor failed running step 2"}
`

	logs, _, err := DecodeBuildStream(strings.NewReader(stream))
	require.Error(t, err)

	// Logs collected before the failure are preserved for flushing.
	assert.Contains(t, logs, "Step 1/2")
	assert.Contains(t, err.Error(), "executor failed running step 2")
}

func TestDecodeBuildStream_PullStatus(t *testing.T) {
	stream := `{"status":"Pulling from library/alpine"}
{"status":"Digest: sha256:1234"}
{"status":"Status: Downloaded newer image for alpine:latest"}
`

	logs, imageID, err := DecodeBuildStream(strings.NewReader(stream))
	require.NoError(t, err)

	assert.Empty(t, imageID)
	assert.Contains(t, logs, "Downloaded newer image")
}

func TestDecodeBuildStream_Empty(t *testing.T) {
	logs, imageID, err := DecodeBuildStream(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, logs)
	assert.Empty(t, imageID)
}

func TestDecodeBuildStream_Malformed(t *testing.T) {
	_, _, err := DecodeBuildStream(strings.NewReader("{not json"))
	assert.Error(t, err)
}
