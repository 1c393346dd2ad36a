// Package synchronization glues the scan, diff, and merge stages (C1–C11 in
// the design) into the single "sync a source tree into a destination tree"
// operation the CLI exposes.
package synchronization

import (
	"context"
	"fmt"

	"github.com/merlink01/psync/pkg/filesystem"
	"github.com/merlink01/psync/pkg/logging"
	"github.com/merlink01/psync/pkg/synchronization/core/clock"
	"github.com/merlink01/psync/pkg/synchronization/core/diff"
	"github.com/merlink01/psync/pkg/synchronization/core/filter"
	"github.com/merlink01/psync/pkg/synchronization/core/group"
	"github.com/merlink01/psync/pkg/synchronization/core/history"
	"github.com/merlink01/psync/pkg/synchronization/core/merge"
	"github.com/merlink01/psync/pkg/synchronization/core/revisions"
	"github.com/merlink01/psync/pkg/synchronization/core/scan"
)

// Side configures one tree (source or destination) to be scanned.
type Side struct {
	Root     string
	PeerID   string
	GroupID  string
	Groups   *group.Map
	RootMark string
}

// Syncer runs one full scan→diff→merge cycle between a source and a
// destination tree (spec.md §1's three-phase pipeline). Scanning appends to
// both trees' history stores; merge entries, the merge log and the revisions
// store belong to the destination only.
type Syncer struct {
	Source Side
	Dest   Side

	Filter        *filter.Filter
	HashAlgorithm filesystem.HashAlgorithm

	SourceStore *history.Store
	DestStore   *history.Store
	Revisions   *revisions.Store
	Log         *merge.Log

	Clock clock.Clock

	// PrefetchLosingConflicts, when true, stashes the losing remote version
	// of every conflict the destination wins into revisions, per spec.md
	// §4.6's optional pre-fetch policy.
	PrefetchLosingConflicts bool

	Logger *logging.Logger
}

// Summary tallies the actions one Sync run applied, for CLI reporting.
type Summary struct {
	Counts           map[merge.ActionType]int
	BytesTransferred int64
	Skipped          []merge.Result
}

// Sync scans both trees, diffs their histories, plans a merge, and applies
// it to the destination.
func (s *Syncer) Sync(ctx context.Context) (Summary, error) {
	logger := s.Logger
	if logger == nil {
		logger = logging.RootLogger
	}

	sourceScanner := &scan.Scanner{
		Root: s.Source.Root, GroupID: s.Source.GroupID, RootMark: s.Source.RootMark,
		Filter: s.Filter, HashAlgorithm: s.HashAlgorithm, Store: s.SourceStore,
		PeerID: s.Source.PeerID, Groups: s.Source.Groups, Clock: s.Clock, Logger: logger.Sublogger("scan-source"),
	}
	sourceEntries, err := sourceScanner.Scan(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("scanning source tree: %w", err)
	}

	destScanner := &scan.Scanner{
		Root: s.Dest.Root, GroupID: s.Dest.GroupID, RootMark: s.Dest.RootMark,
		Filter: s.Filter, HashAlgorithm: s.HashAlgorithm, Store: s.DestStore,
		PeerID: s.Dest.PeerID, Groups: s.Dest.Groups, Clock: s.Clock, Logger: logger.Sublogger("scan-dest"),
	}
	destEntries, err := destScanner.Scan(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("scanning destination tree: %w", err)
	}

	sourceHistories := history.GroupByPath(sourceEntries)
	destHistories := history.GroupByPath(destEntries)

	diffs := diff.Histories(sourceHistories, destHistories)

	actions, err := merge.Plan(diffs, destHistories, s.Revisions, s.PrefetchLosingConflicts)
	if err != nil {
		return Summary{}, fmt.Errorf("planning merge: %w", err)
	}

	executor := &merge.Executor{
		DestGroups: s.Dest.Groups,
		Revisions:  s.Revisions,
		Store:      s.DestStore,
		Log:        s.Log,
		PeerID:     s.Dest.PeerID,
		Clock:      s.Clock,
		Fetcher:    merge.LocalFetcher{Groups: s.Source.Groups},
		Logger:     logger.Sublogger("merge"),
	}
	results := executor.Apply(ctx, actions)

	summary := Summary{Counts: make(map[merge.ActionType]int)}
	for _, r := range results {
		if r.Err != nil {
			summary.Skipped = append(summary.Skipped, r)
			continue
		}
		summary.Counts[r.Action.Type]++
		switch r.Action.Type {
		case merge.Copy, merge.Move, merge.Update, merge.Undelete:
			summary.BytesTransferred += r.Action.Newer.Size
		}
	}
	return summary, nil
}
