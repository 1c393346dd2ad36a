// Package diff implements the pairwise comparison of two peers' per-path
// histories into diff verdicts (C9 in the design, spec.md §4.5).
package diff

import (
	"github.com/merlink01/psync/pkg/synchronization/core/history"
	"github.com/merlink01/psync/pkg/synchronization/core/relpath"
)

// Verdict classifies the relationship between two peers' views of one
// gpath.
type Verdict int

const (
	// InSync means both sides agree on the same version.
	InSync Verdict = iota
	// Newer means side 1 (conventionally the source) has a version side 2
	// doesn't yet have.
	Newer
	// Older means side 2 (conventionally the destination) has a version
	// side 1 doesn't yet have.
	Older
	// HistoryConflict means both sides have the same bytes but got there by
	// different causal histories (e.g. independent reverts to equal
	// content).
	HistoryConflict
	// Conflict means the two sides have different, irreconcilable content.
	Conflict
)

// String returns a lower-case name for the verdict, for logging.
func (v Verdict) String() string {
	switch v {
	case InSync:
		return "in_sync"
	case Newer:
		return "newer"
	case Older:
		return "older"
	case HistoryConflict:
		return "history_conflict"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// Diff is one gpath's verdict, carrying both sides' latest entries (either
// may be the zero Entry if the gpath is absent from that side).
type Diff struct {
	GPath    relpath.GPath
	Verdict  Verdict
	Latest1  history.Entry
	Latest2  history.Entry
	Present1 bool
	Present2 bool
}

// Histories computes one Diff per gpath present in either history1 or
// history2, applying the verdict table from spec.md §4.5. The ordering
// follows the table precisely: entries present on both sides are classified
// first by content/history equality, then by which side contains a matching
// historical entry for the other's latest; gpaths present on only one side
// are unconditionally Newer or Older, since a file missing from one side
// must always be discoverable (spec.md §4.5).
func Histories(history1, history2 map[relpath.GPath]history.History) []Diff {
	var diffs []Diff

	for gp, h1 := range history1 {
		l1 := h1.Latest
		h2, present2 := history2[gp]
		if !present2 {
			diffs = append(diffs, Diff{GPath: gp, Verdict: Newer, Latest1: l1, Present1: true})
			continue
		}
		l2 := h2.Latest

		switch {
		case history.EntriesMatch(l1, l2):
			diffs = append(diffs, Diff{GPath: gp, Verdict: InSync, Latest1: l1, Latest2: l2, Present1: true, Present2: true})
		case history.ContentsMatch(l1, l2):
			diffs = append(diffs, Diff{GPath: gp, Verdict: HistoryConflict, Latest1: l1, Latest2: l2, Present1: true, Present2: true})
		case h1.HasMatchingEntry(l2):
			diffs = append(diffs, Diff{GPath: gp, Verdict: Newer, Latest1: l1, Latest2: l2, Present1: true, Present2: true})
		case h2.HasMatchingEntry(l1):
			diffs = append(diffs, Diff{GPath: gp, Verdict: Older, Latest1: l1, Latest2: l2, Present1: true, Present2: true})
		default:
			diffs = append(diffs, Diff{GPath: gp, Verdict: Conflict, Latest1: l1, Latest2: l2, Present1: true, Present2: true})
		}
	}

	for gp, h2 := range history2 {
		if _, present1 := history1[gp]; present1 {
			continue
		}
		diffs = append(diffs, Diff{GPath: gp, Verdict: Older, Latest2: h2.Latest, Present2: true})
	}

	return diffs
}
