package filesystem

import (
	"os"

	"github.com/merlink01/psync/pkg/synchronization/core/history"
)

// FileStat is the (size, mtime) pair List and Stat report for a regular
// file, together with the relative path it was found at (spec.md §4.1).
type FileStat struct {
	// Rel is the canonical "/"-separated path, relative to Root.
	Rel string
	// Root is the (possibly virtual, see List) root Rel is relative to.
	Root  string
	Size  int64
	MTime int64
}

// Full returns the OS-native absolute path for this stat.
func (s FileStat) Full() string {
	return Join(s.Root, s.Rel)
}

// Join joins an absolute root with an internal "/"-separated relative path,
// performing the OS encoding boundary conversion.
func Join(root, rel string) string {
	if rel == "" {
		return nativeizeAbsolute(root)
	}
	return nativeizeAbsolute(root + string(os.PathSeparator) + EncodePath(rel))
}

// Stat stats the regular file at the OS-native absolute path full. It
// returns ok == false (rather than an error) if the path does not exist or
// is not a regular file, per spec.md §4.1's "stat errors are swallowed"
// failure semantics; other I/O errors are returned.
func Stat(full string) (size int64, mtime int64, ok bool, err error) {
	info, statErr := os.Lstat(full)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return 0, 0, false, nil
		}
		return 0, 0, false, statErr
	}
	if !info.Mode().IsRegular() {
		return 0, 0, false, nil
	}
	return info.Size(), info.ModTime().Unix(), true, nil
}

// StatEq reports whether the file at full currently has the given size and
// mtime, using the history package's coarse mtime equality. It is false
// (never an error) when the path does not exist, which is exactly the
// "verify_stat" contract the merge executor depends on (spec.md §4.7).
func StatEq(full string, size int64, mtime int64) (bool, error) {
	actualSize, actualMTime, ok, err := Stat(full)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	return actualSize == size && history.MTimeEq(actualMTime, mtime), nil
}

// Exists reports whether full currently names a regular file.
func Exists(full string) (bool, error) {
	_, _, ok, err := Stat(full)
	return ok, err
}
