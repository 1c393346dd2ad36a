// Package relpath implements fast, allocation-light operations on the
// canonical "/"-separated relative paths used throughout the synchronization
// core (C1 in the design). These paths never carry a leading or trailing
// slash and are always relative to either a filesystem root or a group.
package relpath

import "strings"

// Dir returns the parent of path, or "" if path has no parent. path must be
// non-empty and must not begin with "/"; Dir panics otherwise, since both are
// programmer errors at every call site in this package.
func Dir(path string) string {
	if path == "" || path[0] == '/' {
		panic("relpath: invalid path")
	}
	if idx := strings.LastIndexByte(path, '/'); idx != -1 {
		return path[:idx]
	}
	return ""
}

// Base returns the final component of path. path must not end in "/"; Base
// panics otherwise. An empty path returns "".
func Base(path string) string {
	if path == "" {
		return ""
	}
	if path[len(path)-1] == '/' {
		panic("relpath: invalid path")
	}
	if idx := strings.LastIndexByte(path, '/'); idx != -1 {
		return path[idx+1:]
	}
	return path
}

// Join joins path components with "/", skipping empty components.
func Join(components ...string) string {
	filtered := components[:0:0]
	for _, c := range components {
		if c != "" {
			filtered = append(filtered, c)
		}
	}
	return strings.Join(filtered, "/")
}

// Less reports whether first sorts before second. Relative paths compare as
// plain byte strings, which is sufficient for deterministic iteration order
// and happens to agree with directory-before-contents ordering.
func Less(first, second string) bool {
	return first < second
}

// GPath ("gpath") is the peer-independent identity of a file: a logical
// group together with a path relative to that group's root. It is the
// representation stored in history entries and compared across peers.
type GPath struct {
	GroupID string
	Path    string
}

// Less reports whether g sorts before o, comparing group first and then
// path, for deterministic iteration.
func (g GPath) Less(o GPath) bool {
	if g.GroupID != o.GroupID {
		return g.GroupID < o.GroupID
	}
	return Less(g.Path, o.Path)
}
