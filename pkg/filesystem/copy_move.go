package filesystem

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/merlink01/psync/pkg/logging"
	"github.com/merlink01/psync/pkg/must"
)

// ErrExists is returned by Copy and Move when the destination already
// exists, per spec.md §4.1's "copy/move fail if the destination exists".
var ErrExists = fmt.Errorf("destination already exists")

// mkdirForDestination creates any missing parent directories of dest.
func mkdirForDestination(dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("unable to create parent directories for %s: %w", dest, err)
	}
	return nil
}

// setMTime sets both the access and modification time of path to mtime
// (Unix seconds), matching Touch's "set both atime and mtime" contract
// (spec.md §4.1).
func setMTime(path string, mtime int64) error {
	t := time.Unix(mtime, 0)
	return os.Chtimes(path, t, t)
}

// Copy atomically creates any missing parent directories of to, then copies
// the regular file at from to to, then (if mtime is non-nil) sets to's
// mtime. It fails with ErrExists if to already exists (spec.md §4.1).
func Copy(from, to string, mtime *int64) error {
	if exists, err := Exists(to); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("copy %s -> %s: %w", from, to, ErrExists)
	}
	if err := mkdirForDestination(to); err != nil {
		return err
	}

	source, err := os.Open(from)
	if err != nil {
		return fmt.Errorf("unable to open source file %s: %w", from, err)
	}
	defer source.Close()

	info, err := source.Stat()
	if err != nil {
		return fmt.Errorf("unable to stat source file %s: %w", from, err)
	}

	// Write to a temporary file in the destination directory first and
	// rename into place, so a reader never observes a partially-written
	// file at to (the same atomic-swap discipline as WriteFileAtomic in the
	// teacher codebase).
	temp, err := os.CreateTemp(filepath.Dir(to), TemporaryNamePrefix+"copy")
	if err != nil {
		return fmt.Errorf("unable to create temporary file: %w", err)
	}
	tempName := temp.Name()
	if _, err := io.Copy(temp, source); err != nil {
		temp.Close()
		must.OSRemove(tempName, logging.RootLogger)
		return fmt.Errorf("unable to copy data: %w", err)
	}
	if err := temp.Close(); err != nil {
		must.OSRemove(tempName, logging.RootLogger)
		return fmt.Errorf("unable to close temporary file: %w", err)
	}
	if err := os.Chmod(tempName, info.Mode()); err != nil {
		must.OSRemove(tempName, logging.RootLogger)
		return fmt.Errorf("unable to set file mode: %w", err)
	}
	if err := os.Rename(tempName, to); err != nil {
		must.OSRemove(tempName, logging.RootLogger)
		return fmt.Errorf("unable to rename temporary file into place: %w", err)
	}

	if mtime != nil {
		if err := setMTime(to, *mtime); err != nil {
			return fmt.Errorf("unable to set mtime on %s: %w", to, err)
		}
	}
	return nil
}

// Move atomically creates any missing parent directories of to, then moves
// the file at from to to, then (if mtime is non-nil) sets to's mtime. It
// fails with ErrExists if to already exists (spec.md §4.1). It falls back to
// copy-then-remove if the rename crosses filesystem boundaries.
func Move(from, to string, mtime *int64) error {
	if exists, err := Exists(to); err != nil {
		return err
	} else if exists {
		return fmt.Errorf("move %s -> %s: %w", from, to, ErrExists)
	}
	if err := mkdirForDestination(to); err != nil {
		return err
	}

	if err := os.Rename(from, to); err != nil {
		if !isCrossDeviceError(err) {
			return fmt.Errorf("unable to rename %s to %s: %w", from, to, err)
		}
		// Cross-device: copy then remove the source.
		if err := Copy(from, to, nil); err != nil {
			return err
		}
		if err := os.Remove(from); err != nil {
			return fmt.Errorf("unable to remove source file %s after cross-device move: %w", from, err)
		}
	}

	if mtime != nil {
		if err := setMTime(to, *mtime); err != nil {
			return fmt.Errorf("unable to set mtime on %s: %w", to, err)
		}
	}
	return nil
}

// Touch sets both the access and modification time of the file at path to
// mtime (spec.md §4.1).
func Touch(path string, mtime int64) error {
	return setMTime(path, mtime)
}

// RemoveEmptyParentDirs walks up from the directory containing path,
// removing each ancestor directory that is now empty, stopping at the first
// non-empty ancestor or at root (spec.md §4.1). It is best-effort: any
// removal error silently stops the walk rather than propagating, since a
// leftover empty directory is harmless.
func RemoveEmptyParentDirs(path string, root string) {
	dir := filepath.Dir(path)
	for dir != root && dir != "." && dir != string(os.PathSeparator) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
