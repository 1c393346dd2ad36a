package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merlink01/psync/pkg/synchronization/core/relpath"
)

// TestLogAppendReadAll covers the append/read round trip of the merge audit
// log (spec.md §4.7's "appending" step): every entry appended must come back
// out of ReadAll, oldest first.
func TestLogAppendReadAll(t *testing.T) {
	log, err := OpenLog(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { log.Close() })

	ctx := context.Background()
	entries := []LogEntry{
		{UTime: 100, PeerID: "dst", ActionType: "touch", GPath: relpath.GPath{GroupID: "g", Path: "a.txt"}, AuthorPeerID: "src"},
		{UTime: 200, PeerID: "dst", ActionType: "copy", GPath: relpath.GPath{GroupID: "g", Path: "b.txt"}, Details: "source=g/orig.txt", AuthorPeerID: "src"},
	}
	for _, e := range entries {
		require.NoError(t, log.Append(ctx, e))
	}

	got, err := log.ReadAll(ctx)
	require.NoError(t, err)
	require.Equal(t, entries, got)
}
