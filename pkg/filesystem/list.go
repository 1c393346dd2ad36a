package filesystem

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/merlink01/psync/pkg/synchronization/core/relpath"
)

// NameIgnorer is the fast, directory-level ignore check List consults while
// walking (C3's IgnoreName), kept as a narrow interface so this package
// doesn't need to import the filter package directly.
type NameIgnorer interface {
	IgnoreName(name string) bool
}

// List walks every regular file under root, applying ignorer at the
// directory level so ignored subtrees are never descended into (spec.md
// §4.1, §4.4 step 2). Symbolic links are never followed, matching
// "Symbolic links to directories are not followed" exactly, and extending it
// to symlinked files too, since this design only tracks regular files.
//
// If rootMark is non-empty, any directory containing a file by that name
// becomes a new virtual root for every FileStat yielded from beneath it: its
// Root field changes, and Rel becomes relative to the new root rather than
// the original one. This lets a subtree declare itself as belonging to a
// more specific group than its parent (spec.md §4.1, §4.4 step 3).
//
// Individual stat errors on entries encountered during the walk are
// swallowed (the entry is simply omitted) rather than failing the walk,
// per spec.md §4.1's failure semantics; directory read errors are returned.
func List(root string, rootMark string, ignorer NameIgnorer) ([]FileStat, error) {
	var results []FileStat
	err := walk(root, root, "", rootMark, ignorer, &results)
	return results, err
}

func walk(virtualRoot, dir, rel string, rootMark string, ignorer NameIgnorer, results *[]FileStat) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	if rootMark != "" && rel != "" {
		for _, entry := range entries {
			if entry.Name() == rootMark {
				virtualRoot = dir
				rel = ""
				break
			}
		}
	}

	for _, entry := range entries {
		name := entry.Name()
		if name == rootMark {
			continue
		}

		if entry.Type()&fs.ModeSymlink != 0 {
			// Never follow symlinks, whether to files or directories.
			continue
		}

		if ignorer != nil && ignorer.IgnoreName(name) {
			continue
		}

		childRel := relpath.Join(rel, name)

		if entry.IsDir() {
			if err := walk(virtualRoot, filepath.Join(dir, name), childRel, rootMark, ignorer, results); err != nil {
				return err
			}
			continue
		}

		if !entry.Type().IsRegular() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			// Swallowed: the file may have vanished between ReadDir and
			// Info (spec.md §4.1's "stat errors on individual entries are
			// swallowed").
			continue
		}

		*results = append(*results, FileStat{
			Rel:   childRel,
			Root:  virtualRoot,
			Size:  info.Size(),
			MTime: info.ModTime().Unix(),
		})
	}
	return nil
}

// ListAt stats exactly the given set of relative paths under root, rather
// than walking the whole tree. It mirrors List's per-entry failure
// semantics: a vanished or inaccessible path is simply omitted.
func ListAt(root string, rels []string) []FileStat {
	results := make([]FileStat, 0, len(rels))
	for _, rel := range rels {
		full := Join(root, rel)
		size, mtime, ok, err := Stat(full)
		if err != nil || !ok {
			continue
		}
		results = append(results, FileStat{Rel: rel, Root: root, Size: size, MTime: mtime})
	}
	return results
}
