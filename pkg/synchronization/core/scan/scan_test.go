package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merlink01/psync/pkg/filesystem"
	"github.com/merlink01/psync/pkg/logging"
	"github.com/merlink01/psync/pkg/synchronization/core/clock"
	"github.com/merlink01/psync/pkg/synchronization/core/filter"
	"github.com/merlink01/psync/pkg/synchronization/core/group"
	"github.com/merlink01/psync/pkg/synchronization/core/history"
)

func newTestScanner(t *testing.T, root string) *Scanner {
	t.Helper()
	store, err := history.Open(":memory:", logging.RootLogger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	groups, err := group.New(map[string]string{"g": root})
	require.NoError(t, err)

	return &Scanner{
		Root:          root,
		GroupID:       "g",
		HashAlgorithm: filesystem.HashSHA256,
		Store:         store,
		PeerID:        "peer-src",
		Groups:        groups,
		Clock:         clock.NewSequence(1000),
		Logger:        logging.RootLogger,
	}
}

func TestScanCreate(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "f.txt"), []byte("hello"), 0644)

	scanner := newTestScanner(t, root)
	entries, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "f.txt", entries[0].Path)
	require.Equal(t, history.ActionCreated, entries[0].AuthorAction)
	require.EqualValues(t, 5, entries[0].Size)
}

func TestScanIdempotentWhenUnchanged(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "f.txt"), []byte("hello"), 0644)

	scanner := newTestScanner(t, root)
	ctx := context.Background()
	_, err := scanner.Scan(ctx)
	require.NoError(t, err)

	before, err := scanner.Store.ReadEntries(ctx, "peer-src")
	require.NoError(t, err)

	_, err = scanner.Scan(ctx)
	require.NoError(t, err)
	after, err := scanner.Store.ReadEntries(ctx, "peer-src")
	require.NoError(t, err)

	require.Equal(t, len(before), len(after), "second scan of an unchanged tree should add no entries")
}

func TestScanDetectsDeletion(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "f.txt")
	os.WriteFile(path, []byte("hello"), 0644)

	scanner := newTestScanner(t, root)
	ctx := context.Background()
	_, err := scanner.Scan(ctx)
	require.NoError(t, err)

	os.Remove(path)
	entries, err := scanner.Scan(ctx)
	require.NoError(t, err)

	var latestDeleted bool
	for _, e := range entries {
		if e.Path == "f.txt" && e.Deleted() {
			latestDeleted = true
		}
	}
	require.True(t, latestDeleted, "expected a deletion entry after removing the file")
}

func TestScanZeroSizeFileIsNotDeleted(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "empty.txt"), nil, 0644)

	scanner := newTestScanner(t, root)
	entries, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.EqualValues(t, 0, entries[0].Size)
	// Only truly deleted (size=0 AND mtime=0) counts as deleted; a freshly
	// written empty file has a real mtime.
	require.False(t, entries[0].Deleted())
}

func TestScanRespectsIgnoreNames(t *testing.T) {
	root := t.TempDir()
	os.MkdirAll(filepath.Join(root, ".git"), 0755)
	os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(root, "keep.txt"), []byte("x"), 0644)

	scanner := newTestScanner(t, root)
	scanner.Filter = filter.New([]string{".git"}, nil)

	entries, err := scanner.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "keep.txt", entries[0].Path)
}
