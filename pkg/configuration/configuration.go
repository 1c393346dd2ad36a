// Package configuration loads and validates the options spec.md §6 names,
// following the teacher's TOML-then-flag-override layering
// (pkg/configuration/synchronization in the reference codebase).
package configuration

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/merlink01/psync/pkg/encoding"
	"github.com/merlink01/psync/pkg/filesystem"
	"github.com/merlink01/psync/pkg/logging"
	"github.com/merlink01/psync/pkg/synchronization/core/filter"
	"github.com/merlink01/psync/pkg/synchronization/core/group"
)

// Configuration holds every option spec.md §6 names, plus the ambient
// peerid/log_level additions SPEC_FULL.md's expansion adds.
type Configuration struct {
	// HashAlgorithm names the digest used for content hashing; "none"
	// disables it.
	HashAlgorithm string `toml:"hash_algorithm"`
	// GroupRootMarker is the file name that, when present in a directory,
	// introduces a new group root (spec.md §4.1, §4.4).
	GroupRootMarker string `toml:"group_root_marker"`
	// DBRelPath is the path, relative to each tree root, where the history
	// table lives.
	DBRelPath string `toml:"db_relpath"`
	// RevisionsRelPath is the path, relative to the destination tree root,
	// where revisions are kept.
	RevisionsRelPath string `toml:"revisions_relpath"`
	// IgnoreNames is the set of filename components never scanned.
	IgnoreNames []string `toml:"ignore_names"`
	// IgnoreGlobs is the set of shell-style, case-insensitive glob patterns
	// applied to relative paths.
	IgnoreGlobs []string `toml:"ignore_globs"`
	// GroupMap maps groupid to a local root; which entries apply depends on
	// whether this configuration is loaded for the source or destination
	// peer (spec.md §6).
	GroupMap map[string]string `toml:"group_map"`
	// PeerID overrides the default peerid derivation (spec.md §4.7's open
	// question (c): a tree root path is an acceptable default for
	// single-host mode, but must stay stable across runs).
	PeerID string `toml:"peerid"`
	// LogLevel names the minimum logging.Level by its string name.
	LogLevel string `toml:"log_level"`
	// PrefetchLosingConflicts enables spec.md §4.6's optional policy of
	// stashing a conflict's losing remote version into revisions.
	PrefetchLosingConflicts bool `toml:"prefetch_losing_conflicts"`
}

// Default returns the configuration used when no file is present, matching
// the conservative defaults implied by spec.md §6's option table.
func Default() Configuration {
	return Configuration{
		HashAlgorithm:    "sha256",
		GroupRootMarker:  ".psync",
		DBRelPath:        ".psync/history.db",
		RevisionsRelPath: ".psync/revisions",
		IgnoreNames:      []string{".psync", ".git"},
		LogLevel:         "info",
	}
}

// Load reads a TOML configuration file at path, falling back to Default if
// path doesn't exist.
func Load(path string) (Configuration, error) {
	config := Default()
	if path == "" {
		return config, nil
	}
	if err := encoding.LoadAndUnmarshalTOML(path, &config); err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return Configuration{}, errors.Wrap(err, "loading configuration")
	}
	return config, nil
}

// HashAlgorithmValue parses HashAlgorithm into a filesystem.HashAlgorithm.
func (c Configuration) HashAlgorithmValue() (filesystem.HashAlgorithm, error) {
	switch c.HashAlgorithm {
	case "", "none":
		return filesystem.HashNone, nil
	case "sha1":
		return filesystem.HashSHA1, nil
	case "sha256":
		return filesystem.HashSHA256, nil
	default:
		return filesystem.HashNone, fmt.Errorf("unknown hash_algorithm %q", c.HashAlgorithm)
	}
}

// LogLevelValue parses LogLevel into a logging.Level, defaulting to
// logging.LevelInfo if unset.
func (c Configuration) LogLevelValue() (logging.Level, error) {
	if c.LogLevel == "" {
		return logging.LevelInfo, nil
	}
	level, ok := logging.NameToLevel(c.LogLevel)
	if !ok {
		return 0, fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return level, nil
}

// Filter builds a filter.Filter from IgnoreNames and IgnoreGlobs.
func (c Configuration) Filter() *filter.Filter {
	return filter.New(c.IgnoreNames, c.IgnoreGlobs)
}

// Groups builds a group.Map from GroupMap.
func (c Configuration) Groups() (*group.Map, error) {
	return group.New(c.GroupMap)
}

// ResolvePeerID returns PeerID if set, else derives a stable one from root,
// per spec.md §4.7's open question (c): a tree root path is an acceptable
// single-host peerid, so long as it is stable across runs of the same tree.
func (c Configuration) ResolvePeerID(root string) string {
	if c.PeerID != "" {
		return c.PeerID
	}
	return root
}

// NewPeerID generates a random peerid for configurations that want a
// UUID-based identity instead of a root-path-derived one.
func NewPeerID() string {
	return uuid.NewString()
}
