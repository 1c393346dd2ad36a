//go:build windows

package filesystem

import (
	"path/filepath"
	"strings"
)

// longPathPrefix is prepended to absolute paths on Windows to opt out of the
// legacy MAX_PATH limit, per spec.md §6.
const longPathPrefix = `\\?\`

// EncodePath converts an internal unicode "/"-separated relative path into
// a Windows-native path component: "/" becomes "\". The long-path prefix and
// absolutization are applied where a full path is assembled (see Join in
// this package), not here, since EncodePath operates on relative
// fragments.
func EncodePath(path string) string {
	return strings.ReplaceAll(path, "/", `\`)
}

// DecodePath converts a Windows-native relative path back into the internal
// unicode "/"-separated representation.
func DecodePath(path string) string {
	return strings.ReplaceAll(path, `\`, "/")
}

// withLongPathPrefix prepends the long-path prefix to an absolute path if
// it isn't already present.
func withLongPathPrefix(absolute string) string {
	if strings.HasPrefix(absolute, longPathPrefix) {
		return absolute
	}
	return longPathPrefix + absolute
}

// nativeizeAbsolute absolutizes path and prepends the long-path prefix, per
// spec.md §6's Windows path-encoding contract.
func nativeizeAbsolute(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return withLongPathPrefix(abs)
}
