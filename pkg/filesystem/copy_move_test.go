package filesystem

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestCopyAndStatEq(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "source.txt")
	if err := os.WriteFile(from, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	to := filepath.Join(dir, "nested", "dest.txt")
	mtime := int64(1700000000)
	if err := Copy(from, to, &mtime); err != nil {
		t.Fatal(err)
	}

	eq, err := StatEq(to, 5, mtime)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Error("expected copied file to match size and mtime")
	}
}

func TestCopyFailsIfDestinationExists(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "a.txt")
	to := filepath.Join(dir, "b.txt")
	os.WriteFile(from, []byte("x"), 0644)
	os.WriteFile(to, []byte("y"), 0644)

	err := Copy(from, to, nil)
	if !errors.Is(err, ErrExists) {
		t.Errorf("expected ErrExists, got %v", err)
	}
}

func TestMoveThenSourceGone(t *testing.T) {
	dir := t.TempDir()
	from := filepath.Join(dir, "a.txt")
	to := filepath.Join(dir, "sub", "b.txt")
	os.WriteFile(from, []byte("x"), 0644)

	if err := Move(from, to, nil); err != nil {
		t.Fatal(err)
	}
	if exists, _ := Exists(from); exists {
		t.Error("expected source to no longer exist after move")
	}
	if exists, _ := Exists(to); !exists {
		t.Error("expected destination to exist after move")
	}
}

func TestTouch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.txt")
	os.WriteFile(path, []byte("x"), 0644)

	if err := Touch(path, 1600000000); err != nil {
		t.Fatal(err)
	}
	eq, err := StatEq(path, 1, 1600000000)
	if err != nil {
		t.Fatal(err)
	}
	if !eq {
		t.Error("expected touched file to report new mtime")
	}
}

func TestRemoveEmptyParentDirs(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c.txt")
	os.MkdirAll(filepath.Dir(nested), 0755)
	os.WriteFile(nested, []byte("x"), 0644)
	os.Remove(nested)

	RemoveEmptyParentDirs(nested, dir)

	if _, err := os.Stat(filepath.Join(dir, "a")); !os.IsNotExist(err) {
		t.Error("expected empty parent chain to be removed")
	}
}

func TestRemoveEmptyParentDirsStopsAtNonEmpty(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "a", "b", "c.txt")
	os.MkdirAll(filepath.Dir(nested), 0755)
	os.WriteFile(nested, []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "a", "keep.txt"), []byte("x"), 0644)
	os.Remove(nested)

	RemoveEmptyParentDirs(nested, dir)

	if _, err := os.Stat(filepath.Join(dir, "a")); err != nil {
		t.Error("expected non-empty ancestor to survive")
	}
	if _, err := os.Stat(filepath.Join(dir, "a", "b")); !os.IsNotExist(err) {
		t.Error("expected empty leaf directory to be removed")
	}
}
