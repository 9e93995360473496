package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	runID := uuid.NewString()
	started := time.Now().Add(-2 * time.Minute).Truncate(time.Second)
	finished := time.Now().Truncate(time.Second)

	err := store.RecordRun(ctx, Run{
		ID:         runID,
		Version:    "2026.08",
		StartedAt:  started,
		FinishedAt: finished,
		Succeeded:  false,
		Error:      "build failed for libpng",
	}, []DependencyResult{
		{RunID: runID, Key: "zlib", Name: "zlib", OK: true, Version: "1.3.1", PublishError: "copy failed", Duration: 42 * time.Second},
		{RunID: runID, Key: "skipme", Name: "skipme", OK: true, Skipped: true},
		{RunID: runID, Key: "libpng", Name: "libpng", OK: false, Branch: "main", Error: "exit status 2", Duration: 3 * time.Second},
	})
	require.NoError(t, err)

	run, results, err := store.GetRun(ctx, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, run.ID)
	assert.Equal(t, "2026.08", run.Version)
	assert.False(t, run.Succeeded)
	assert.Equal(t, "build failed for libpng", run.Error)
	assert.True(t, run.StartedAt.Equal(started))
	assert.True(t, run.FinishedAt.Equal(finished))

	require.Len(t, results, 3)
	// Insertion order is preserved.
	assert.Equal(t, "zlib", results[0].Key)
	assert.True(t, results[0].OK)
	assert.Equal(t, 42*time.Second, results[0].Duration)
	// A publication failure stays separate from the fatal-error column.
	assert.Empty(t, results[0].Error)
	assert.Equal(t, "copy failed", results[0].PublishError)
	assert.True(t, results[1].Skipped)
	assert.Equal(t, "exit status 2", results[2].Error)
	assert.Equal(t, "main", results[2].Branch)
}

func TestGetUnknownRunFails(t *testing.T) {
	store := newTestStore(t)
	_, _, err := store.GetRun(context.Background(), "no-such-run")
	require.Error(t, err)
}

func TestListRunsNewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().Truncate(time.Second)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		err := store.RecordRun(ctx, Run{
			ID:         id,
			Version:    "dev",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			Succeeded:  true,
		}, nil)
		require.NoError(t, err)
	}

	runs, err := store.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}
