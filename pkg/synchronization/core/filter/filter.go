// Package filter implements path-based ignore decisions (C3 in the design).
// There are two tiers: a fast, directory-level name check (ignore_names)
// applied while listing so that ignored subtrees are never descended into,
// and a slower glob check (ignore_globs) applied once per candidate path
// after listing. The glob check is memoized, since the same relative paths
// are re-evaluated across scan cycles; the name check is a plain set lookup.
package filter

import (
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Filter decides whether a relative path should be excluded from
// synchronization.
type Filter struct {
	// names is the set of path components (not full paths) that are always
	// ignored, regardless of where they occur, e.g. ".git" or ".psync".
	names map[string]struct{}
	// globs are shell-style, case-insensitive patterns matched against the
	// full relative path.
	globs []string

	mu    sync.Mutex
	cache map[string]bool
}

// New builds a Filter from the configured ignore_names and ignore_globs
// (spec.md §6). Glob patterns are lower-cased once up front so matching can
// be case-insensitive without repeated case folding.
func New(names []string, globs []string) *Filter {
	nameSet := make(map[string]struct{}, len(names))
	for _, n := range names {
		nameSet[n] = struct{}{}
	}
	lowered := make([]string, len(globs))
	for i, g := range globs {
		lowered[i] = strings.ToLower(g)
	}
	return &Filter{
		names: nameSet,
		globs: lowered,
		cache: make(map[string]bool),
	}
}

// IgnoreName reports whether the bare path component name (as opposed to a
// full relative path) is always ignored. This is the fast, directory-level
// check used while listing a tree, so that ignored subtrees are never
// descended into (spec.md §4.1, §4.4 step 2).
func (f *Filter) IgnoreName(name string) bool {
	if f == nil {
		return false
	}
	_, ignored := f.names[name]
	return ignored
}

// Ignore reports whether the full relative path matches a configured glob.
// Results are memoized per path, since the glob filter is applied to the
// same candidate set across repeated scans of a mostly-unchanged tree
// (spec.md §4.4 step 5).
func (f *Filter) Ignore(path string) bool {
	if f == nil || len(f.globs) == 0 {
		return false
	}

	f.mu.Lock()
	if ignored, ok := f.cache[path]; ok {
		f.mu.Unlock()
		return ignored
	}
	f.mu.Unlock()

	lowered := strings.ToLower(path)
	ignored := false
	for _, pattern := range f.globs {
		if matched, _ := doublestar.Match(pattern, lowered); matched {
			ignored = true
			break
		}
		// Also match against the base name alone, so that a pattern like
		// "*.tmp" excludes "a/b/c.tmp" without requiring "**/*.tmp".
		if idx := strings.LastIndexByte(lowered, '/'); idx != -1 {
			if matched, _ := doublestar.Match(pattern, lowered[idx+1:]); matched {
				ignored = true
				break
			}
		}
	}

	f.mu.Lock()
	f.cache[path] = ignored
	f.mu.Unlock()
	return ignored
}
