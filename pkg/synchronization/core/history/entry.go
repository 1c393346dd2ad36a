// Package history implements the per-path version history that the rest of
// the synchronization core reasons about (C5's data model, spec.md §3). An
// Entry is an immutable observation one peer made of one path at one moment;
// a History is the set of every Entry ever recorded for a single gpath, plus
// its cached latest.
package history

import (
	"fmt"

	"github.com/merlink01/psync/pkg/synchronization/core/relpath"
)

// Action records why an entry was created: audit/diagnostic only, per
// spec.md §3's field 8.
type Action string

// The three kinds of observation a scan can make of a path.
const (
	ActionCreated Action = "created"
	ActionChanged Action = "changed"
	ActionDeleted Action = "deleted"
)

// Entry is one immutable row of a path's history, in the canonical column
// order from spec.md §3.
type Entry struct {
	// UTime is when this peer recorded the entry, in Unix seconds.
	UTime int64
	// PeerID is the recorder.
	PeerID string
	// GroupID and Path together form the gpath this entry describes.
	GroupID string
	Path    string
	// Size is non-negative. A deletion has size 0 and mtime 0; an empty file
	// has size 0 and a non-zero mtime.
	Size int64
	// MTime is in Unix seconds; 0 is reserved for the deleted sentinel.
	MTime int64
	// Hash is hex-encoded, or empty when hashing is disabled.
	Hash string
	// AuthorPeerID and AuthorUTime identify the peer that first observed
	// this version and when. They propagate unchanged as an entry is
	// replicated between peers, and are what makes two entries on different
	// peers "the same version".
	AuthorPeerID string
	AuthorUTime  int64
	// AuthorAction is audit/diagnostic only.
	AuthorAction Action
}

// GPath returns the peer-independent identity this entry describes.
func (e Entry) GPath() relpath.GPath {
	return relpath.GPath{GroupID: e.GroupID, Path: e.Path}
}

// Deleted reports whether this entry records a deletion, i.e. size == 0 and
// mtime == 0 (spec.md §3's invariant).
func (e Entry) Deleted() bool {
	return e.Size == 0 && e.MTime == 0
}

// Validate checks the invariants spec.md §3 requires of every entry.
func (e Entry) Validate() error {
	if e.PeerID == "" {
		return fmt.Errorf("entry has empty peerid")
	}
	if e.GroupID == "" || e.Path == "" {
		return fmt.Errorf("entry has empty gpath")
	}
	if e.Size < 0 {
		return fmt.Errorf("entry %s has negative size %d", e.Path, e.Size)
	}
	if e.MTime == 0 && e.Size != 0 {
		return fmt.Errorf("entry %s has size=%d mtime=0: mtime 0 is reserved for the deletion sentinel", e.Path, e.Size)
	}
	if e.Deleted() && e.Hash != "" {
		return fmt.Errorf("entry %s is deleted but carries a non-empty hash", e.Path)
	}
	if e.AuthorUTime > e.UTime {
		return fmt.Errorf("entry %s has author_utime %d after utime %d", e.Path, e.AuthorUTime, e.UTime)
	}
	return nil
}

// Less orders entries by utime, breaking ties by tuple order of the
// remaining fields, matching spec.md §3's "latest" ordering rule. New uses it
// to pick a History's Latest.
func (e Entry) Less(o Entry) bool {
	if e.UTime != o.UTime {
		return e.UTime < o.UTime
	}
	if e.PeerID != o.PeerID {
		return e.PeerID < o.PeerID
	}
	if e.GroupID != o.GroupID {
		return e.GroupID < o.GroupID
	}
	if e.Path != o.Path {
		return e.Path < o.Path
	}
	if e.Size != o.Size {
		return e.Size < o.Size
	}
	if e.MTime != o.MTime {
		return e.MTime < o.MTime
	}
	if e.Hash != o.Hash {
		return e.Hash < o.Hash
	}
	if e.AuthorPeerID != o.AuthorPeerID {
		return e.AuthorPeerID < o.AuthorPeerID
	}
	if e.AuthorUTime != o.AuthorUTime {
		return e.AuthorUTime < o.AuthorUTime
	}
	return e.AuthorAction < o.AuthorAction
}

// MTimeEq implements the "Windows equivalence" mtime comparison rule from
// spec.md §3: FAT-style 2-second granularity, applied uniformly regardless
// of host OS.
func MTimeEq(a, b int64) bool {
	return (a >> 1) == (b >> 1)
}

// ContentsMatch reports whether a and b describe the same bytes: equal size
// and hash (spec.md §4.5).
func ContentsMatch(a, b Entry) bool {
	return a.Size == b.Size && a.Hash == b.Hash
}

// EntriesMatch reports whether a and b are replicas of the same version: the
// same content, the same (coarse) mtime, and the same author identity. The
// author fields are what distinguish "the same version, replicated" from "a
// revert that happens to match bytes" (spec.md §4.5).
func EntriesMatch(a, b Entry) bool {
	return a.Size == b.Size &&
		MTimeEq(a.MTime, b.MTime) &&
		a.Hash == b.Hash &&
		a.AuthorPeerID == b.AuthorPeerID &&
		a.AuthorUTime == b.AuthorUTime
}

// History is the non-empty set of every entry recorded for one gpath, with
// a cached latest (the entry with maximal UTime per spec.md §3).
type History struct {
	Entries []Entry
	Latest  Entry
}

// New builds a History from a non-empty slice of entries sharing a gpath.
// It panics if entries is empty, since an empty History has no meaningful
// Latest and every caller in this codebase only constructs History from
// grouped, non-empty entry sets.
func New(entries []Entry) History {
	if len(entries) == 0 {
		panic("history: New called with no entries")
	}
	latest := entries[0]
	for _, e := range entries[1:] {
		if latest.Less(e) {
			latest = e
		}
	}
	return History{Entries: entries, Latest: latest}
}

// HasMatchingEntry reports whether any entry in h matches other under
// EntriesMatch. It is used by the diff algorithm to detect that one side's
// latest corresponds to a now-superseded version on the other side
// (spec.md §4.5's newer/older determination).
func (h History) HasMatchingEntry(other Entry) bool {
	for _, e := range h.Entries {
		if EntriesMatch(e, other) {
			return true
		}
	}
	return false
}

// GroupByPath partitions a flat entry slice into one History per gpath.
func GroupByPath(entries []Entry) map[relpath.GPath]History {
	byPath := make(map[relpath.GPath][]Entry)
	for _, e := range entries {
		gp := e.GPath()
		byPath[gp] = append(byPath[gp], e)
	}
	result := make(map[relpath.GPath]History, len(byPath))
	for gp, es := range byPath {
		result[gp] = New(es)
	}
	return result
}

// GroupByPeerID partitions a flat entry slice into one entry slice per peerid.
// Used when replaying a batch of newly-inserted entries back through the
// per-peer cache (spec.md §4.2).
func GroupByPeerID(entries []Entry) map[string][]Entry {
	byPeer := make(map[string][]Entry)
	for _, e := range entries {
		byPeer[e.PeerID] = append(byPeer[e.PeerID], e)
	}
	return byPeer
}
