// Package revisions implements the content-addressed "trash" a merge
// displaces files into before overwriting or deleting them (C6 in the
// design). Every file the merge executor would otherwise discard lands here
// first, which is what makes a partial merge always safe to resume
// (spec.md §7).
package revisions

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/merlink01/psync/pkg/filesystem"
	"github.com/merlink01/psync/pkg/synchronization/core/history"
	"github.com/merlink01/psync/pkg/synchronization/core/relpath"
)

// Store is a mirror of the destination tree, rooted at Root, holding
// displaced files keyed by content hash (or, when hashing is disabled, by
// size and mtime).
type Store struct {
	// Root is the absolute local path under which revisions are kept
	// (spec.md §6's revisions_relpath, joined onto the destination root).
	Root string
}

// New creates a revisions store rooted at root.
func New(root string) *Store {
	return &Store{Root: root}
}

// key returns the content-addressing key for entry: its hash if non-empty,
// else "<size>_<mtime>" (spec.md §4.3).
func key(entry history.Entry) string {
	if entry.Hash != "" {
		return entry.Hash
	}
	return fmt.Sprintf("%d_%d", entry.Size, entry.MTime)
}

// RelPath derives the revision-relative path for entry by splicing its key
// before the file extension: "<rel_parent>/<stem>_<key><ext>" (spec.md §4.3,
// §6).
func RelPath(entry history.Entry) string {
	dir := relpath.Dir(entry.Path)
	stem := relpath.Base(entry.Path)
	ext := ""
	if idx := strings.LastIndexByte(stem, '.'); idx > 0 {
		ext = stem[idx:]
		stem = stem[:idx]
	}
	name := fmt.Sprintf("%s_%s%s", stem, key(entry), ext)
	return relpath.Join(dir, name)
}

// FullPath returns the absolute path at which entry's revision would be
// stored.
func (s *Store) FullPath(entry history.Entry) string {
	return filesystem.Join(s.Root, RelPath(entry))
}

// Contains reports whether a revision matching entry's (size, mtime) is
// already present in the store (spec.md §4.3).
func (s *Store) Contains(entry history.Entry) (bool, error) {
	return filesystem.StatEq(s.FullPath(entry), entry.Size, entry.MTime)
}

// MoveIn moves the file at sourcePath into the store under the path derived
// from entry, setting its mtime to entry.MTime (spec.md §4.3). This is how
// the merge executor "trashes" a displaced file rather than deleting it. If
// a revision with the same content key is already present (the same bytes
// trashed by a prior action in this merge), sourcePath is simply removed
// instead of erroring, since the content is already retained.
func (s *Store) MoveIn(sourcePath string, entry history.Entry) error {
	mtime := entry.MTime
	err := filesystem.Move(sourcePath, s.FullPath(entry), &mtime)
	if errors.Is(err, filesystem.ErrExists) {
		return os.Remove(sourcePath)
	}
	return err
}

// CopyOut copies the revision matching entry out to destPath, setting
// destPath's mtime to entry.MTime (spec.md §4.3). This is how the merge
// executor performs an "undelete".
func (s *Store) CopyOut(entry history.Entry, destPath string) error {
	mtime := entry.MTime
	return filesystem.Copy(s.FullPath(entry), destPath, &mtime)
}
