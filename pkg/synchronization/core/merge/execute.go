package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/merlink01/psync/pkg/filesystem"
	"github.com/merlink01/psync/pkg/logging"
	"github.com/merlink01/psync/pkg/must"
	"github.com/merlink01/psync/pkg/synchronization/core/clock"
	"github.com/merlink01/psync/pkg/synchronization/core/group"
	"github.com/merlink01/psync/pkg/synchronization/core/history"
	"github.com/merlink01/psync/pkg/synchronization/core/relpath"
	"github.com/merlink01/psync/pkg/synchronization/core/revisions"
)

// Fetcher resolves a source-side entry to a local path its bytes can be read
// from, the "external collaborator" spec.md §4.7 carves update out to. The
// executor only ever reads from this path (via filesystem.Copy); it never
// moves or deletes it, since in the general case it may still be the live
// source file.
type Fetcher interface {
	Fetch(ctx context.Context, entry history.Entry) (string, error)
}

// LocalFetcher implements Fetcher for the single-host case where the source
// tree is just another local root reachable through a group map (spec.md
// §4.7's note that a single-host peerid may simply be the tree root path).
type LocalFetcher struct {
	Groups *group.Map
}

// Fetch resolves entry's gpath to an absolute path under the source root.
func (f LocalFetcher) Fetch(_ context.Context, entry history.Entry) (string, error) {
	root, ok := f.Groups.ToRoot(entry.GroupID)
	if !ok {
		return "", fmt.Errorf("unknown source groupid %q", entry.GroupID)
	}
	return filesystem.Join(root, entry.Path), nil
}

// Executor applies a planned action list to a destination tree (C11 in the
// design, spec.md §4.7).
type Executor struct {
	// DestGroups resolves destination gpaths (including the dest-local
	// entries a Copy/Move action sources from) to absolute paths.
	DestGroups *group.Map
	Revisions  *revisions.Store
	Store      *history.Store
	Log        *Log
	// PeerID is the local/destination peer recording these entries.
	PeerID string
	Clock  clock.Clock
	// Fetcher supplies source bytes for Update actions.
	Fetcher Fetcher
	Logger  *logging.Logger
}

// Result reports the outcome of applying one action.
type Result struct {
	Action Action
	Err    error
}

// Apply executes actions in the order spec.md §4.7 requires: copies and
// moves first (so later steps see their source files already consumed),
// then update_history, touch, delete, undelete, and finally update (which
// may require the slowest I/O). Conflict actions are prefetch requests only
// (see Plan's prefetchLosing) and are applied last; a failure on one action
// is recorded and execution continues with the rest, mirroring the
// resumable-merge design in spec.md §7.
func (x *Executor) Apply(ctx context.Context, actions []Action) []Result {
	logger := x.Logger
	if logger == nil {
		logger = logging.RootLogger
	}

	order := []ActionType{Copy, Move, UpdateHistory, Touch, Delete, Undelete, Update, Conflict}
	byType := make(map[ActionType][]Action, len(order))
	for _, a := range actions {
		byType[a.Type] = append(byType[a.Type], a)
	}

	var results []Result
	for _, t := range order {
		for _, a := range byType[t] {
			err := x.apply(ctx, a)
			if err != nil {
				logger.Warnf("merge action %s on %s/%s failed: %v", a.Type, a.GPath.GroupID, a.GPath.Path, err)
			}
			results = append(results, Result{Action: a, Err: err})
		}
	}
	return results
}

func (x *Executor) apply(ctx context.Context, a Action) error {
	switch a.Type {
	case Copy:
		return x.applyCopy(ctx, a)
	case Move:
		return x.applyMove(ctx, a)
	case UpdateHistory:
		return x.appendEntry(ctx, a, "")
	case Touch:
		return x.applyTouch(ctx, a)
	case Delete:
		return x.applyDelete(ctx, a)
	case Undelete:
		return x.applyUndelete(ctx, a)
	case Update:
		return x.applyUpdate(ctx, a)
	case Conflict:
		return x.applyPrefetch(ctx, a)
	default:
		return fmt.Errorf("unknown action type %v", a.Type)
	}
}

// verifyStat implements spec.md §4.7's verify-stat contract against groups:
// if expected is absent or a deletion, the resolved path must not exist;
// otherwise the path's current size must equal expected's and its mtime must
// match under history.MTimeEq's two-second granularity.
func verifyStat(groups *group.Map, gpath relpath.GPath, expected history.Entry, hasExpected bool) (string, error) {
	root, ok := groups.ToRoot(gpath.GroupID)
	if !ok {
		return "", fmt.Errorf("unknown groupid %q", gpath.GroupID)
	}
	full := filesystem.Join(root, gpath.Path)

	if !hasExpected || expected.Deleted() {
		exists, err := filesystem.Exists(full)
		if err != nil {
			return "", err
		}
		if exists {
			return "", fmt.Errorf("verify-stat: %s: expected absent, found present", full)
		}
		return full, nil
	}

	eq, err := filesystem.StatEq(full, expected.Size, expected.MTime)
	if err != nil {
		return "", err
	}
	if !eq {
		return "", fmt.Errorf("verify-stat: %s: does not match expected size=%d mtime=%d", full, expected.Size, expected.MTime)
	}
	return full, nil
}

func (x *Executor) applyCopy(ctx context.Context, a Action) error {
	sourcePath, err := verifyStat(x.DestGroups, a.Source.GPath(), a.Source, true)
	if err != nil {
		return err
	}
	destPath, err := verifyStat(x.DestGroups, a.GPath, a.Older, a.HasOlder)
	if err != nil {
		return err
	}
	mtime := a.Newer.MTime
	if err := filesystem.Copy(sourcePath, destPath, &mtime); err != nil {
		return fmt.Errorf("copy %s -> %s: %w", sourcePath, destPath, err)
	}
	return x.appendEntry(ctx, a, describeDetails(a))
}

func (x *Executor) applyMove(ctx context.Context, a Action) error {
	sourcePath, err := verifyStat(x.DestGroups, a.Source.GPath(), a.Source, true)
	if err != nil {
		return err
	}
	destPath, err := verifyStat(x.DestGroups, a.GPath, a.Older, a.HasOlder)
	if err != nil {
		return err
	}
	mtime := a.Newer.MTime
	if err := filesystem.Move(sourcePath, destPath, &mtime); err != nil {
		return fmt.Errorf("move %s -> %s: %w", sourcePath, destPath, err)
	}
	return x.appendEntry(ctx, a, describeDetails(a))
}

func (x *Executor) applyTouch(ctx context.Context, a Action) error {
	destPath, err := verifyStat(x.DestGroups, a.GPath, a.Older, a.HasOlder)
	if err != nil {
		return err
	}
	if err := filesystem.Touch(destPath, a.Newer.MTime); err != nil {
		return fmt.Errorf("touch %s: %w", destPath, err)
	}
	return x.appendEntry(ctx, a, "")
}

func (x *Executor) applyDelete(ctx context.Context, a Action) error {
	root, ok := x.DestGroups.ToRoot(a.GPath.GroupID)
	if !ok {
		return fmt.Errorf("unknown groupid %q", a.GPath.GroupID)
	}
	full := filesystem.Join(root, a.GPath.Path)
	exists, err := filesystem.Exists(full)
	if err != nil {
		return err
	}
	if exists {
		if _, err := verifyStat(x.DestGroups, a.GPath, a.Older, a.HasOlder); err != nil {
			return err
		}
		if err := x.trash(full, a.Older); err != nil {
			return err
		}
	}
	return x.appendEntry(ctx, a, "")
}

func (x *Executor) applyUndelete(ctx context.Context, a Action) error {
	destPath, err := verifyStat(x.DestGroups, a.GPath, a.Older, a.HasOlder)
	if err != nil {
		return err
	}
	if err := x.trash(destPath, a.Older); err != nil {
		return err
	}
	if err := x.Revisions.CopyOut(a.Newer, destPath); err != nil {
		return fmt.Errorf("undelete %s: %w", destPath, err)
	}
	return x.appendEntry(ctx, a, "")
}

func (x *Executor) applyUpdate(ctx context.Context, a Action) error {
	sourcePath, err := x.Fetcher.Fetch(ctx, a.Newer)
	if err != nil {
		return fmt.Errorf("fetching %s/%s: %w", a.Newer.GroupID, a.Newer.Path, err)
	}
	destPath, err := verifyStat(x.DestGroups, a.GPath, a.Older, a.HasOlder)
	if err != nil {
		return err
	}
	if err := x.trash(destPath, a.Older); err != nil {
		return err
	}
	mtime := a.Newer.MTime
	if err := filesystem.Copy(sourcePath, destPath, &mtime); err != nil {
		return fmt.Errorf("update %s -> %s: %w", sourcePath, destPath, err)
	}
	return x.appendEntry(ctx, a, "")
}

// applyPrefetch implements spec.md §4.6's optional pre-fetch policy: when a
// conflict resolved in the destination's favor, stash a copy of the losing
// remote version in revisions so a future policy change (or manual recovery)
// can restore it without re-fetching. It never touches destination content
// or history.
func (x *Executor) applyPrefetch(ctx context.Context, a Action) error {
	sourcePath, err := x.Fetcher.Fetch(ctx, a.Newer)
	if err != nil {
		return fmt.Errorf("fetching %s/%s for prefetch: %w", a.Newer.GroupID, a.Newer.Path, err)
	}
	tempPath := filepath.Join(os.TempDir(), filesystem.TemporaryNamePrefix+"prefetch-"+strconv.FormatInt(time.Now().UnixNano(), 36))
	if err := filesystem.Copy(sourcePath, tempPath, nil); err != nil {
		return fmt.Errorf("staging prefetch copy of %s: %w", sourcePath, err)
	}
	if err := x.Revisions.MoveIn(tempPath, a.Newer); err != nil {
		must.OSRemove(tempPath, x.Logger)
		return fmt.Errorf("prefetching losing conflict %s/%s into revisions: %w", a.Newer.GroupID, a.Newer.Path, err)
	}
	return nil
}

// trash displaces the file at full into revisions, keyed by older, then
// cleans up any now-empty parent directories. It is a no-op if full doesn't
// exist (spec.md §4.7's trashing definition).
func (x *Executor) trash(full string, older history.Entry) error {
	exists, err := filesystem.Exists(full)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	if err := x.Revisions.MoveIn(full, older); err != nil {
		return fmt.Errorf("trashing %s: %w", full, err)
	}
	root, _ := x.DestGroups.ToRoot(older.GroupID)
	filesystem.RemoveEmptyParentDirs(full, root)
	return nil
}

// appendEntry records the applied action's new version in the destination's
// history (preserving the source entry's author fields, stamped with the
// local peer and current time) and writes the matching merge log row
// (spec.md §4.7's "appending" step).
func (x *Executor) appendEntry(ctx context.Context, a Action, details string) error {
	now := x.Clock.Now()
	entry := a.Newer
	entry.UTime = now
	entry.PeerID = x.PeerID
	entry.GroupID = a.GPath.GroupID
	entry.Path = a.GPath.Path

	if err := x.Store.AddEntries(ctx, []history.Entry{entry}); err != nil {
		return fmt.Errorf("recording %s entry: %w", a.Type, err)
	}

	if x.Log != nil {
		logEntry := LogEntry{
			UTime:        now,
			PeerID:       x.PeerID,
			ActionType:   a.Type.String(),
			GPath:        a.GPath,
			Details:      details,
			AuthorPeerID: entry.AuthorPeerID,
		}
		if err := x.Log.Append(ctx, logEntry); err != nil {
			return fmt.Errorf("recording merge log entry: %w", err)
		}
	}

	return nil
}
