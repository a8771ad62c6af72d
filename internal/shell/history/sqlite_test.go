package history

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetship/fleetship/internal/core/deploy"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) Store {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func testEntry(runID, fleet string, createdAt time.Time) *Entry {
	return &Entry{
		RunID:         runID,
		Fleet:         fleet,
		ReleaseID:     "9001",
		ReleaseCommit: "abc123",
		ServiceCount:  2,
		SkippedCount:  1,
		Duration:      42 * time.Second,
		Images: []ImageSummary{
			{ServiceName: "web", ImageName: "nginx:1.27", Skipped: true},
			{ServiceName: "api", ImageName: "demo_api:latest"},
		},
		SourceCommit: "111aaa",
		SourceBranch: "main",
		SourceDirty:  true,
		CreatedAt:    createdAt,
	}
}

// =============================================================================
// Entry CRUD Tests
// =============================================================================

func TestCreateAndGetEntry(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	want := testEntry("run-1", "edge-fleet", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, store.CreateEntry(ctx, want))

	got, err := store.GetEntry(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, want.Fleet, got.Fleet)
	assert.Equal(t, want.ReleaseID, got.ReleaseID)
	assert.Equal(t, want.ReleaseCommit, got.ReleaseCommit)
	assert.Equal(t, want.ServiceCount, got.ServiceCount)
	assert.Equal(t, want.SkippedCount, got.SkippedCount)
	assert.Equal(t, want.Duration, got.Duration)
	assert.Equal(t, want.Images, got.Images)
	assert.Equal(t, want.SourceCommit, got.SourceCommit)
	assert.True(t, got.SourceDirty)
	assert.Equal(t, want.CreatedAt, got.CreatedAt)
}

func TestGetEntry_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetEntry(context.Background(), "no-such-run")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateEntry_DuplicateRun(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	entry := testEntry("run-1", "edge-fleet", time.Now().UTC())
	require.NoError(t, store.CreateEntry(ctx, entry))

	err := store.CreateEntry(ctx, entry)
	assert.ErrorIs(t, err, ErrDuplicateRun)
}

func TestListEntries_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, store.CreateEntry(ctx, testEntry("run-1", "edge-fleet", base.Add(-2*time.Hour))))
	require.NoError(t, store.CreateEntry(ctx, testEntry("run-2", "edge-fleet", base.Add(-time.Hour))))
	require.NoError(t, store.CreateEntry(ctx, testEntry("run-3", "edge-fleet", base)))

	entries, err := store.ListEntries(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, "run-3", entries[0].RunID)
	assert.Equal(t, "run-2", entries[1].RunID)
	assert.Equal(t, "run-1", entries[2].RunID)
}

func TestListEntries_FleetFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.CreateEntry(ctx, testEntry("run-1", "edge-fleet", now)))
	require.NoError(t, store.CreateEntry(ctx, testEntry("run-2", "lab-fleet", now)))

	entries, err := store.ListEntries(ctx, ListOptions{Fleet: "lab-fleet"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "run-2", entries[0].RunID)
}

func TestListEntries_Pagination(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		entry := testEntry("run-"+string(rune('a'+i)), "edge-fleet", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, store.CreateEntry(ctx, entry))
	}

	page, err := store.ListEntries(ctx, ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "run-d", page[0].RunID)
	assert.Equal(t, "run-c", page[1].RunID)
}

func TestListOptions_Normalize(t *testing.T) {
	opts := ListOptions{Limit: -1, Offset: -5}.Normalize()
	assert.Equal(t, 50, opts.Limit)
	assert.Equal(t, 0, opts.Offset)

	opts = ListOptions{Limit: 10000}.Normalize()
	assert.Equal(t, 500, opts.Limit)
}

// =============================================================================
// Recorder Tests
// =============================================================================

func TestRecorder_RecordDeploy(t *testing.T) {
	store := setupTestStore(t)
	rec := NewRecorder(store)

	outcome := &deploy.Outcome{
		RunID:         "run-1",
		ReleaseID:     "9001",
		ReleaseCommit: "abc123",
		SkippedCount:  1,
		Duration:      3 * time.Second,
		Images: []deploy.ImageRecord{
			{ServiceName: "web", Name: "nginx:1.27", Logs: deploy.SkipLogs},
			{ServiceName: "api", Name: "demo_api:latest", Logs: "Step 1/3"},
		},
	}
	source := &deploy.SourceInfo{Commit: "111aaa", Branch: "main", Dirty: false}

	require.NoError(t, rec.RecordDeploy(context.Background(), "edge-fleet", outcome, source))

	entry, err := store.GetEntry(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, "edge-fleet", entry.Fleet)
	assert.Equal(t, "abc123", entry.ReleaseCommit)
	assert.Equal(t, 2, entry.ServiceCount)
	assert.Equal(t, 1, entry.SkippedCount)
	require.Len(t, entry.Images, 2)
	assert.True(t, entry.Images[0].Skipped)
	assert.False(t, entry.Images[1].Skipped)
	assert.Equal(t, "main", entry.SourceBranch)
}

func TestRecorder_NilSource(t *testing.T) {
	store := setupTestStore(t)
	rec := NewRecorder(store)

	outcome := &deploy.Outcome{
		RunID:     "run-1",
		ReleaseID: "1",
		Images:    []deploy.ImageRecord{{ServiceName: "main", Name: "app:v1"}},
	}
	require.NoError(t, rec.RecordDeploy(context.Background(), "edge-fleet", outcome, nil))

	entry, err := store.GetEntry(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Empty(t, entry.SourceCommit)
	assert.False(t, entry.SourceDirty)
}
