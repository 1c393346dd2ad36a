package synchronization

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merlink01/psync/pkg/filesystem"
	"github.com/merlink01/psync/pkg/logging"
	"github.com/merlink01/psync/pkg/synchronization/core/clock"
	"github.com/merlink01/psync/pkg/synchronization/core/group"
	"github.com/merlink01/psync/pkg/synchronization/core/history"
	"github.com/merlink01/psync/pkg/synchronization/core/merge"
	"github.com/merlink01/psync/pkg/synchronization/core/revisions"
)

func newTestSyncer(t *testing.T, sourceRoot, destRoot string) *Syncer {
	t.Helper()
	sourceStore, err := history.Open(filepath.Join(t.TempDir(), "source.db"), logging.RootLogger)
	require.NoError(t, err)
	t.Cleanup(func() { sourceStore.Close() })

	destStore, err := history.Open(filepath.Join(t.TempDir(), "dest.db"), logging.RootLogger)
	require.NoError(t, err)
	t.Cleanup(func() { destStore.Close() })

	log, err := merge.OpenLog(filepath.Join(t.TempDir(), "merges.db"))
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	sourceGroups, err := group.New(map[string]string{"g": sourceRoot})
	require.NoError(t, err)
	destGroups, err := group.New(map[string]string{"g": destRoot})
	require.NoError(t, err)

	return &Syncer{
		Source:        Side{Root: sourceRoot, PeerID: "src", GroupID: "g", Groups: sourceGroups},
		Dest:          Side{Root: destRoot, PeerID: "dst", GroupID: "g", Groups: destGroups},
		HashAlgorithm: filesystem.HashSHA256,
		SourceStore:   sourceStore,
		DestStore:     destStore,
		Revisions:     revisions.New(filepath.Join(destRoot, ".psync-revisions")),
		Log:           log,
		Clock:         clock.NewSequence(1000),
		Logger:        logging.RootLogger,
	}
}

func TestSyncCopiesNewFile(t *testing.T) {
	sourceRoot, destRoot := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sourceRoot, "f.txt"), []byte("hello"), 0644))

	syncer := newTestSyncer(t, sourceRoot, destRoot)
	summary, err := syncer.Sync(context.Background())
	require.NoError(t, err)
	require.Empty(t, summary.Skipped)
	require.Equal(t, 1, summary.Counts[merge.Update])

	data, err := os.ReadFile(filepath.Join(destRoot, "f.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

// TestSyncIsIdempotent verifies the universal invariant from spec.md §8: a
// second sync immediately after a clean one applies no further actions.
func TestSyncIsIdempotent(t *testing.T) {
	sourceRoot, destRoot := t.TempDir(), t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(sourceRoot, "f.txt"), []byte("hello"), 0644))

	syncer := newTestSyncer(t, sourceRoot, destRoot)
	ctx := context.Background()
	_, err := syncer.Sync(ctx)
	require.NoError(t, err)

	summary, err := syncer.Sync(ctx)
	require.NoError(t, err)
	require.Empty(t, summary.Skipped)
	require.Empty(t, summary.Counts, "a second sync of an already in-sync tree should apply nothing")
}

func TestSyncPropagatesDeletion(t *testing.T) {
	sourceRoot, destRoot := t.TempDir(), t.TempDir()
	path := filepath.Join(sourceRoot, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0644))

	syncer := newTestSyncer(t, sourceRoot, destRoot)
	ctx := context.Background()
	_, err := syncer.Sync(ctx)
	require.NoError(t, err)
	require.FileExists(t, filepath.Join(destRoot, "f.txt"))

	require.NoError(t, os.Remove(path))
	summary, err := syncer.Sync(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Counts[merge.Delete])
	require.NoFileExists(t, filepath.Join(destRoot, "f.txt"))
}
