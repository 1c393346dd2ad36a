// Package scan implements the scan-stabilize-record pipeline (C8 in the
// design): it produces history entries that are provably consistent with
// the filesystem at a quiescent point, without locking the tree (spec.md
// §4.4).
package scan

import (
	"context"
	"fmt"

	"github.com/merlink01/psync/pkg/filesystem"
	"github.com/merlink01/psync/pkg/logging"
	"github.com/merlink01/psync/pkg/synchronization/core/clock"
	"github.com/merlink01/psync/pkg/synchronization/core/filter"
	"github.com/merlink01/psync/pkg/synchronization/core/group"
	"github.com/merlink01/psync/pkg/synchronization/core/history"
	"github.com/merlink01/psync/pkg/synchronization/core/relpath"
)

// fileDiff is an internal record of a single path's observed change against
// history, produced by step 4 of spec.md §4.4 and carried through the
// remaining steps until it either becomes a stable Entry or is dropped.
type fileDiff struct {
	gpath  relpath.GPath
	kind   history.Action
	stat   filesystem.FileStat // zero value for deletions
	exists bool                // whether stat is meaningful
}

// Scanner produces the refreshed history for one local peer's view of one
// tree (spec.md §4.4's inputs).
type Scanner struct {
	// Root is the tree's configured root; GroupID is the groupid it maps to.
	Root    string
	GroupID string
	// RootMark, when non-empty, is the marker file name that introduces a
	// new virtual scan root (spec.md §4.1, §6's group_root_marker).
	RootMark string
	// Filter applies both the fast directory-level ignore check and the
	// slow glob check (C3).
	Filter *filter.Filter
	// HashAlgorithm is applied to every non-deleted diff; HashNone disables
	// hashing entirely.
	HashAlgorithm filesystem.HashAlgorithm
	// Store is where new entries are read from and appended to (C5).
	Store *history.Store
	// PeerID identifies this peer's entries.
	PeerID string
	// Groups resolves roots (including dynamically-discovered sub-roots) to
	// groupids (C7).
	Groups *group.Map
	// Clock supplies utime/author_utime (C2).
	Clock clock.Clock
	// Logger receives diagnostic output; nil is fine.
	Logger *logging.Logger
}

// Scan runs one full cycle of the algorithm in spec.md §4.4 and returns the
// refreshed list of entries for this peer.
func (s *Scanner) Scan(ctx context.Context) ([]history.Entry, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.RootLogger
	}

	// Step 1: read the current per-peer history.
	existing, err := s.Store.ReadEntries(ctx, s.PeerID)
	if err != nil {
		return nil, fmt.Errorf("unable to read existing history: %w", err)
	}
	byPath := history.GroupByPath(existing)

	// Step 2: list all files under the root, with the fast filter applied
	// at directory level by List itself.
	stats, err := filesystem.List(s.Root, s.RootMark, s.Filter)
	if err != nil {
		return nil, fmt.Errorf("unable to list tree: %w", err)
	}

	// Step 3: assign gpaths, registering any sub-roots the marker
	// introduced and dropping files whose root has no known groupid.
	type located struct {
		gpath relpath.GPath
		stat  filesystem.FileStat
	}
	var presentNow []located
	seenGPaths := make(map[relpath.GPath]struct{}, len(stats))
	for _, stat := range stats {
		groupID, ok := s.Groups.ToGroupID(stat.Root)
		if !ok {
			if stat.Root == s.Root {
				groupID, ok = s.GroupID, true
				s.Groups.Extend(s.GroupID, s.Root) //nolint:errcheck // best-effort registration
			} else {
				groupID, ok = s.deriveSubGroupID(stat.Root, logger)
			}
		}
		if !ok {
			logger.Warnf("ignored_unknown_root: %s", stat.Root)
			continue
		}
		gp := relpath.GPath{GroupID: groupID, Path: stat.Rel}
		seenGPaths[gp] = struct{}{}
		presentNow = append(presentNow, located{gpath: gp, stat: stat})
	}

	// Step 4: diff against history.
	var diffs []fileDiff
	for _, p := range presentNow {
		h, hasHistory := byPath[p.gpath]
		if !hasHistory {
			diffs = append(diffs, fileDiff{gpath: p.gpath, kind: history.ActionCreated, stat: p.stat, exists: true})
			continue
		}
		latest := h.Latest
		if latest.Size == p.stat.Size && history.MTimeEq(latest.MTime, p.stat.MTime) {
			continue // no output: unchanged
		}
		diffs = append(diffs, fileDiff{gpath: p.gpath, kind: history.ActionChanged, stat: p.stat, exists: true})
	}
	for gp, h := range byPath {
		if _, present := seenGPaths[gp]; present {
			continue
		}
		if h.Latest.Deleted() {
			continue
		}
		diffs = append(diffs, fileDiff{gpath: gp, kind: history.ActionDeleted, exists: false})
	}

	// Step 5: apply the slow path-glob filter.
	filtered := diffs[:0]
	for _, d := range diffs {
		if s.Filter != nil && s.Filter.Ignore(d.gpath.Path) {
			continue
		}
		filtered = append(filtered, d)
	}
	diffs = filtered

	// Step 6: hash every non-deleted diff.
	type hashedDiff struct {
		fileDiff
		hash string
	}
	var hashed []hashedDiff
	for _, d := range diffs {
		if d.kind == history.ActionDeleted {
			hashed = append(hashed, hashedDiff{fileDiff: d})
			continue
		}
		digest, err := filesystem.Hash(d.stat.Full(), s.HashAlgorithm)
		if err != nil {
			logger.Warnf("dropping %s: hash failed: %v", d.gpath.Path, err)
			continue
		}
		hashed = append(hashed, hashedDiff{fileDiff: d, hash: digest})
	}

	// Step 7: rescan the filesystem for exactly the hashed paths and
	// partition into stable/unstable.
	relsByRoot := make(map[string][]string)
	for _, h := range hashed {
		if h.kind == history.ActionDeleted {
			continue
		}
		relsByRoot[h.stat.Root] = append(relsByRoot[h.stat.Root], h.stat.Rel)
	}
	rescanned := make(map[string]filesystem.FileStat, len(hashed))
	for root, rels := range relsByRoot {
		for _, st := range filesystem.ListAt(root, rels) {
			rescanned[root+"\x00"+st.Rel] = st
		}
	}

	now := s.Clock.Now()
	var newEntries []history.Entry
	for _, h := range hashed {
		if h.kind != history.ActionDeleted {
			current, ok := rescanned[h.stat.Root+"\x00"+h.stat.Rel]
			if !ok || current.Size != h.stat.Size || !history.MTimeEq(current.MTime, h.stat.MTime) {
				// Unstable: the file changed under us while hashing. Not an
				// error; simply no entry this cycle (spec.md §4.4 step 7).
				continue
			}
		}

		entry := history.Entry{
			UTime:        now,
			PeerID:       s.PeerID,
			GroupID:      h.gpath.GroupID,
			Path:         h.gpath.Path,
			AuthorPeerID: s.PeerID,
			AuthorUTime:  now,
			AuthorAction: h.kind,
		}
		if h.kind != history.ActionDeleted {
			entry.Size = h.stat.Size
			entry.MTime = h.stat.MTime
			entry.Hash = h.hash
		}
		newEntries = append(newEntries, entry)
	}

	// Step 8: record.
	if err := s.Store.AddEntries(ctx, newEntries); err != nil {
		return nil, fmt.Errorf("unable to record scan results: %w", err)
	}

	// Step 9: re-read and return.
	return s.Store.ReadEntries(ctx, s.PeerID)
}

// deriveSubGroupID derives a stable groupid for a sub-root discovered via
// the group root marker and registers it with the group map, so repeated
// scans assign the same groupid to the same marked directory (spec.md §4.1,
// §4.4 step 3).
func (s *Scanner) deriveSubGroupID(subRoot string, logger *logging.Logger) (string, bool) {
	rel, ok := relUnder(s.Root, subRoot)
	if !ok {
		return "", false
	}
	groupID := s.GroupID + ":" + rel
	if err := s.Groups.Extend(groupID, subRoot); err != nil {
		logger.Warnf("unable to register sub-root %s: %v", subRoot, err)
		return "", false
	}
	return groupID, true
}

// relUnder reports the "/"-joined relative path from root to sub, and false
// if sub is not beneath root.
func relUnder(root, sub string) (string, bool) {
	if len(sub) <= len(root) || sub[:len(root)] != root {
		return "", false
	}
	rest := sub[len(root):]
	for len(rest) > 0 && (rest[0] == '/' || rest[0] == '\\') {
		rest = rest[1:]
	}
	if rest == "" {
		return "", false
	}
	return filesystem.DecodePath(rest), true
}
