package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nilaysetiya/dirsync-go/internal/engine"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })

	return j
}

func TestJournal_RunLifecycle(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()

	run, err := j.BeginRun(ctx, "/a", "/b")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)

	run.RecordAction(engine.ActionCopy, "/b/f.txt", "from /a/f.txt")
	run.RecordAction(engine.ActionTombstone, "/a/g.txt", "deleted since last sync")

	require.NoError(t, run.Finish(ctx, StatusCompleted))

	runs, err := j.RecentRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, "/a", runs[0].Dir1)
	assert.Equal(t, StatusCompleted, runs[0].Status)
	assert.Equal(t, 2, runs[0].Actions)
	assert.False(t, runs[0].FinishedAt.IsZero())

	actions, err := j.ActionsForRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, "copy", actions[0].Action)
	assert.Equal(t, "/b/f.txt", actions[0].Path)
	assert.Equal(t, "tombstone", actions[1].Action)
}

func TestJournal_RecentRuns_NewestFirst(t *testing.T) {
	t.Parallel()

	j := openTestJournal(t)
	ctx := context.Background()

	first, err := j.BeginRun(ctx, "/a", "/b")
	require.NoError(t, err)
	require.NoError(t, first.Finish(ctx, StatusCompleted))

	second, err := j.BeginRun(ctx, "/a", "/b")
	require.NoError(t, err)
	require.NoError(t, second.Finish(ctx, StatusFailed))

	runs, err := j.RecentRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, second.ID, runs[0].ID)
}

func TestJournal_ReopenKeepsData(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path, nil)
	require.NoError(t, err)

	run, err := j.BeginRun(context.Background(), "/a", "/b")
	require.NoError(t, err)
	require.NoError(t, run.Finish(context.Background(), StatusCompleted))
	require.NoError(t, j.Close())

	reopened, err := Open(path, nil)
	require.NoError(t, err)
	defer reopened.Close()

	runs, err := reopened.RecentRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
