// Package merge turns history diffs into concrete filesystem actions (C10,
// the planner, spec.md §4.6) and a separate executor (C11, spec.md §4.7) that
// carries them out against a destination tree.
package merge

import (
	"github.com/merlink01/psync/pkg/synchronization/core/diff"
	"github.com/merlink01/psync/pkg/synchronization/core/history"
	"github.com/merlink01/psync/pkg/synchronization/core/relpath"
	"github.com/merlink01/psync/pkg/synchronization/core/revisions"
)

// ActionType names one of the eight kinds of merge action spec.md §4.6
// enumerates.
type ActionType int

const (
	Touch ActionType = iota
	Copy
	Move
	Delete
	Undelete
	Update
	UpdateHistory
	Conflict
)

func (t ActionType) String() string {
	switch t {
	case Touch:
		return "touch"
	case Copy:
		return "copy"
	case Move:
		return "move"
	case Delete:
		return "delete"
	case Undelete:
		return "undelete"
	case Update:
		return "update"
	case UpdateHistory:
		return "update_history"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Action is one typed, not-yet-executed merge operation (spec.md §4.6's
// transient MergeAction). Older is the destination's current entry for this
// gpath (zero/HasOlder=false if the gpath doesn't exist on the destination
// yet); Newer is the version being applied, normally the source's latest.
// Source, when HasSource is set, is an existing destination-local entry to
// copy or move bytes from, rather than fetching from the source tree.
type Action struct {
	Type ActionType

	GPath relpath.GPath

	Older    history.Entry
	HasOlder bool

	Newer    history.Entry
	HasNewer bool

	Source    history.Entry
	HasSource bool

	// ConsumedByMove is set on a Delete action once copy→move promotion has
	// repurposed its source file; the executor must still append the
	// deletion to history but must not trash a file that was moved away.
	ConsumedByMove bool
}

// Plan consumes a diff stream (side 1 = remote/source, side 2 = local/dest),
// the destination's full per-gpath histories (needed to find dest-local
// copies of content the source has by hash), and the destination's revisions
// store (needed to detect undeletable content), and returns the ordered set
// of actions spec.md §4.6 and §4.7 describe. prefetchLosing implements the
// optional policy mentioned in spec.md §4.6: when a conflict resolves in the
// destination's favor, also emit a Conflict action carrying the losing
// remote entry so the caller may stash it in revisions for a future undo.
func Plan(diffs []diff.Diff, destHistories map[relpath.GPath]history.History, store *revisions.Store, prefetchLosing bool) ([]Action, error) {
	hashIndex := make(map[string][]history.Entry)
	for _, h := range destHistories {
		latest := h.Latest
		if !latest.Deleted() && latest.Hash != "" {
			hashIndex[latest.Hash] = append(hashIndex[latest.Hash], latest)
		}
	}

	var actions []Action
	for _, d := range diffs {
		switch d.Verdict {
		case diff.Newer:
			action, err := planNewer(d, hashIndex, store)
			if err != nil {
				return nil, err
			}
			actions = append(actions, action)
		case diff.HistoryConflict:
			actions = append(actions, planHistoryConflict(d))
		case diff.Conflict:
			actions = append(actions, planConflict(d))
		case diff.InSync, diff.Older:
			// No action: the destination is already at least as current.
		}
	}

	actions = promoteCopiesToMoves(actions)
	actions = resolveConflicts(actions, prefetchLosing)

	return actions, nil
}

func planNewer(d diff.Diff, hashIndex map[string][]history.Entry, store *revisions.Store) (Action, error) {
	newer := d.Latest1
	base := Action{GPath: d.GPath, Older: d.Latest2, HasOlder: d.Present2, Newer: newer, HasNewer: true}

	if newer.Deleted() {
		base.Type = Delete
		return base, nil
	}
	if base.HasOlder && history.ContentsMatch(base.Older, newer) {
		base.Type = Touch
		return base, nil
	}
	if newer.Hash != "" {
		if candidates := hashIndex[newer.Hash]; len(candidates) > 0 {
			base.Type = Copy
			base.Source, base.HasSource = candidates[0], true
			return base, nil
		}
		contains, err := store.Contains(newer)
		if err != nil {
			return Action{}, err
		}
		if contains {
			base.Type = Undelete
			return base, nil
		}
	}
	base.Type = Update
	return base, nil
}

func planHistoryConflict(d diff.Diff) Action {
	action := Action{GPath: d.GPath, Older: d.Latest2, HasOlder: d.Present2, Newer: d.Latest1, HasNewer: true}
	if d.Latest2.Deleted() {
		action.Type = UpdateHistory
	} else {
		action.Type = Touch
	}
	return action
}

func planConflict(d diff.Diff) Action {
	return Action{Type: Conflict, GPath: d.GPath, Older: d.Latest2, HasOlder: d.Present2, Newer: d.Latest1, HasNewer: true}
}

// promoteCopiesToMoves implements spec.md §4.6's copy→move promotion: a
// delete whose older entry shares a hash with a copy's newer entry is a
// strong signal that the copy is really a rename, so the copy is rewritten
// to move the bytes from the delete's soon-to-vanish path instead of copying
// them from the dest-local candidate planNewer chose. Each delete satisfies
// at most one copy.
func promoteCopiesToMoves(actions []Action) []Action {
	pendingDeletes := make(map[string][]int) // hash -> indices into actions, not yet consumed
	for i, a := range actions {
		if a.Type == Delete && a.HasOlder && a.Older.Hash != "" {
			pendingDeletes[a.Older.Hash] = append(pendingDeletes[a.Older.Hash], i)
		}
	}

	for i := range actions {
		a := &actions[i]
		if a.Type != Copy || a.Newer.Hash == "" {
			continue
		}
		idxs := pendingDeletes[a.Newer.Hash]
		if len(idxs) == 0 {
			continue
		}
		deleteIdx := idxs[0]
		pendingDeletes[a.Newer.Hash] = idxs[1:]

		a.Type = Move
		a.Source = actions[deleteIdx].Older
		a.HasSource = true
		actions[deleteIdx].ConsumedByMove = true
	}

	return actions
}

// resolveConflicts implements spec.md §4.6's tie-break policy: the larger of
// (mtime, utime, size, hash) wins. A deleted entry always has mtime 0, so any
// non-deleted entry beats a deletion. Remote wins become Update actions;
// destination wins are dropped (the local version already stands), unless
// prefetchLosing asks that the losing remote version still be surfaced so a
// caller can stash it for a future policy flip.
func resolveConflicts(actions []Action, prefetchLosing bool) []Action {
	resolved := actions[:0]
	for _, a := range actions {
		if a.Type != Conflict {
			resolved = append(resolved, a)
			continue
		}
		if conflictTuple(a.Newer).less(conflictTuple(a.Older)) {
			// Destination wins; local version stands.
			if prefetchLosing {
				resolved = append(resolved, a)
			}
			continue
		}
		a.Type = Update
		resolved = append(resolved, a)
	}
	return resolved
}

type tuple struct {
	mtime, utime, size int64
	hash               string
}

func conflictTuple(e history.Entry) tuple {
	return tuple{mtime: e.MTime, utime: e.UTime, size: e.Size, hash: e.Hash}
}

func (t tuple) less(o tuple) bool {
	if t.mtime != o.mtime {
		return t.mtime < o.mtime
	}
	if t.utime != o.utime {
		return t.utime < o.utime
	}
	if t.size != o.size {
		return t.size < o.size
	}
	return t.hash < o.hash
}
