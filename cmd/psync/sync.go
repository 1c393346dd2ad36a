package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/merlink01/psync/cmd"
	"github.com/merlink01/psync/pkg/configuration"
	"github.com/merlink01/psync/pkg/filesystem"
	"github.com/merlink01/psync/pkg/logging"
	"github.com/merlink01/psync/pkg/synchronization"
	"github.com/merlink01/psync/pkg/synchronization/core/clock"
	"github.com/merlink01/psync/pkg/synchronization/core/group"
	"github.com/merlink01/psync/pkg/synchronization/core/history"
	"github.com/merlink01/psync/pkg/synchronization/core/merge"
	"github.com/merlink01/psync/pkg/synchronization/core/revisions"
)

// sideGroups builds the groupid -> root table for one tree: the top-level
// root registered under groupID, plus whatever additional entries the
// configuration's group_map supplies (spec.md §6).
func sideGroups(config configuration.Configuration, groupID, root string) (*group.Map, error) {
	table := make(map[string]string, len(config.GroupMap)+1)
	for id, r := range config.GroupMap {
		table[id] = r
	}
	table[groupID] = root
	return group.New(table)
}

func syncMain(command *cobra.Command, arguments []string) error {
	if len(arguments) != 2 {
		return errors.New("invalid number of tree roots provided (expected source_root and dest_root)")
	}
	sourceRoot, err := filepath.Abs(arguments[0])
	if err != nil {
		return errors.Wrap(err, "unable to resolve source root")
	}
	destRoot, err := filepath.Abs(arguments[1])
	if err != nil {
		return errors.Wrap(err, "unable to resolve destination root")
	}

	config, err := configuration.Load(syncConfiguration.configurationFile)
	if err != nil {
		return errors.Wrap(err, "unable to load configuration")
	}
	if syncConfiguration.prefetchLosingConflicts {
		config.PrefetchLosingConflicts = true
	}

	logLevel, err := config.LogLevelValue()
	if err != nil {
		return errors.Wrap(err, "unable to parse log_level")
	}
	logger := logging.NewLogger(logLevel)

	hashAlgorithm, err := config.HashAlgorithmValue()
	if err != nil {
		return errors.Wrap(err, "unable to parse hash_algorithm")
	}

	sourceGroups, err := sideGroups(config, syncConfiguration.sourceGroupID, sourceRoot)
	if err != nil {
		return errors.Wrap(err, "unable to build source group map")
	}
	destGroups, err := sideGroups(config, syncConfiguration.destGroupID, destRoot)
	if err != nil {
		return errors.Wrap(err, "unable to build destination group map")
	}

	sourceStore, err := history.Open(filesystem.Join(sourceRoot, config.DBRelPath), logger.Sublogger("history-source"))
	if err != nil {
		return errors.Wrap(err, "unable to open source history store")
	}
	defer sourceStore.Close()

	destStore, err := history.Open(filesystem.Join(destRoot, config.DBRelPath), logger.Sublogger("history-dest"))
	if err != nil {
		return errors.Wrap(err, "unable to open destination history store")
	}
	defer destStore.Close()

	mergeLog, err := merge.OpenLog(filesystem.Join(destRoot, config.DBRelPath))
	if err != nil {
		return errors.Wrap(err, "unable to open merge log")
	}
	defer mergeLog.Close()

	revisionsStore := revisions.New(filesystem.Join(destRoot, config.RevisionsRelPath))

	syncer := &synchronization.Syncer{
		Source: synchronization.Side{
			Root: sourceRoot, PeerID: config.ResolvePeerID(sourceRoot),
			GroupID: syncConfiguration.sourceGroupID, Groups: sourceGroups, RootMark: config.GroupRootMarker,
		},
		Dest: synchronization.Side{
			Root: destRoot, PeerID: config.ResolvePeerID(destRoot),
			GroupID: syncConfiguration.destGroupID, Groups: destGroups, RootMark: config.GroupRootMarker,
		},
		Filter:                  config.Filter(),
		HashAlgorithm:           hashAlgorithm,
		SourceStore:             sourceStore,
		DestStore:               destStore,
		Revisions:               revisionsStore,
		Log:                     mergeLog,
		Clock:                   clock.System{},
		PrefetchLosingConflicts: config.PrefetchLosingConflicts,
		Logger:                  logger.Sublogger("sync"),
	}

	start := time.Now()
	summary, err := syncer.Sync(context.Background())
	if err != nil {
		return errors.Wrap(err, "synchronization failed")
	}

	printSummary(summary, time.Since(start))
	return nil
}

// printSummary renders a human-readable account of one sync run, per
// spec.md §6's reporting expectations.
func printSummary(summary synchronization.Summary, elapsed time.Duration) {
	if len(summary.Counts) == 0 && len(summary.Skipped) == 0 {
		fmt.Println("Already in sync.")
	}
	for _, action := range []merge.ActionType{
		merge.Copy, merge.Move, merge.Update, merge.UpdateHistory,
		merge.Touch, merge.Delete, merge.Undelete, merge.Conflict,
	} {
		if count := summary.Counts[action]; count > 0 {
			fmt.Printf("%6d  %s\n", count, action)
		}
	}
	for _, result := range summary.Skipped {
		cmd.Warning(fmt.Sprintf("skipped %s on %s/%s: %v", result.Action.Type, result.Action.GPath.GroupID, result.Action.GPath.Path, result.Err))
	}
	if summary.BytesTransferred > 0 {
		fmt.Printf("Transferred %s in %s.\n", humanize.Bytes(uint64(summary.BytesTransferred)), elapsed.Round(time.Millisecond))
	}
}

var syncCommand = &cobra.Command{
	Use:   "sync <source_root> <dest_root>",
	Short: "Synchronizes a source tree into a destination tree",
	Run:   cmd.Mainify(syncMain),
}

var syncConfiguration struct {
	// help indicates whether or not help information should be shown for
	// the command.
	help bool
	// configurationFile specifies a file from which to load configuration.
	configurationFile string
	// sourceGroupID is the groupid under which the source root is
	// registered.
	sourceGroupID string
	// destGroupID is the groupid under which the destination root is
	// registered.
	destGroupID string
	// prefetchLosingConflicts forces on spec.md §4.6's optional policy,
	// overriding the configuration file.
	prefetchLosingConflicts bool
}

func init() {
	flags := syncCommand.Flags()
	flags.SortFlags = false
	flags.BoolVarP(&syncConfiguration.help, "help", "h", false, "Show help information")
	flags.StringVarP(&syncConfiguration.configurationFile, "configuration-file", "c", "", "Specify a file from which to load configuration")
	flags.StringVar(&syncConfiguration.sourceGroupID, "source-groupid", "root", "Specify the groupid under which the source root is registered")
	flags.StringVar(&syncConfiguration.destGroupID, "dest-groupid", "root", "Specify the groupid under which the destination root is registered")
	flags.BoolVar(&syncConfiguration.prefetchLosingConflicts, "prefetch-losing-conflicts", false, "Stash the losing side of every conflict into revisions")
}
