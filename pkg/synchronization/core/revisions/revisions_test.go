package revisions

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/merlink01/psync/pkg/filesystem"
	"github.com/merlink01/psync/pkg/synchronization/core/history"
)

func TestRelPathWithHash(t *testing.T) {
	entry := history.Entry{Path: "photos/f.jpg", Hash: "deadbeef", Size: 10, MTime: 1000}
	got := RelPath(entry)
	if got != "photos/f_deadbeef.jpg" {
		t.Errorf("RelPath = %q", got)
	}
}

func TestRelPathWithoutHash(t *testing.T) {
	entry := history.Entry{Path: "f.jpg", Size: 10, MTime: 1000}
	got := RelPath(entry)
	if got != "f_10_1000.jpg" {
		t.Errorf("RelPath = %q", got)
	}
}

func TestRelPathNoExtension(t *testing.T) {
	entry := history.Entry{Path: "a/README", Hash: "abc"}
	got := RelPath(entry)
	if got != "a/README_abc" {
		t.Errorf("RelPath = %q", got)
	}
}

func TestMoveInAndCopyOut(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "revisions"))

	src := filepath.Join(dir, "f.jpg")
	os.WriteFile(src, []byte("hello"), 0644)
	entry := history.Entry{Path: "f.jpg", Hash: "abc123", Size: 5, MTime: 1700000000}

	if err := store.MoveIn(src, entry); err != nil {
		t.Fatal(err)
	}
	if exists, _ := filesystem.Exists(src); exists {
		t.Error("expected source to be moved away")
	}
	contains, err := store.Contains(entry)
	if err != nil {
		t.Fatal(err)
	}
	if !contains {
		t.Error("expected store to contain the moved-in revision")
	}

	out := filepath.Join(dir, "restored.jpg")
	if err := store.CopyOut(entry, out); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("restored content mismatch: %q", data)
	}
}

func TestMoveInDedupsOnExistingRevision(t *testing.T) {
	dir := t.TempDir()
	store := New(filepath.Join(dir, "revisions"))
	entry := history.Entry{Path: "f.jpg", Hash: "same", Size: 5, MTime: 1700000000}

	src1 := filepath.Join(dir, "a.jpg")
	os.WriteFile(src1, []byte("hello"), 0644)
	if err := store.MoveIn(src1, entry); err != nil {
		t.Fatal(err)
	}

	src2 := filepath.Join(dir, "b.jpg")
	os.WriteFile(src2, []byte("hello"), 0644)
	if err := store.MoveIn(src2, entry); err != nil {
		t.Fatalf("expected duplicate move-in to dedup cleanly, got %v", err)
	}
	if exists, _ := filesystem.Exists(src2); exists {
		t.Error("expected duplicate source to be removed")
	}
}
