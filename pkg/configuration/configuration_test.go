package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/merlink01/psync/pkg/filesystem"
	"github.com/merlink01/psync/pkg/logging"
)

func TestLoadMissingFileReturnsDefault(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	require.Equal(t, Default(), config)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psync.toml")
	contents := `
hash_algorithm = "sha1"
ignore_names = [".git", "node_modules"]
peerid = "laptop-a"
log_level = "debug"

[group_map]
photos = "/srv/photos"
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	config, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sha1", config.HashAlgorithm)
	require.Equal(t, []string{".git", "node_modules"}, config.IgnoreNames)
	require.Equal(t, "laptop-a", config.PeerID)
	require.Equal(t, "/srv/photos", config.GroupMap["photos"])
}

func TestHashAlgorithmValue(t *testing.T) {
	config := Configuration{HashAlgorithm: "sha256"}
	alg, err := config.HashAlgorithmValue()
	require.NoError(t, err)
	require.Equal(t, filesystem.HashSHA256, alg)

	config.HashAlgorithm = "bogus"
	_, err = config.HashAlgorithmValue()
	require.Error(t, err)
}

func TestLogLevelValue(t *testing.T) {
	config := Configuration{LogLevel: "trace"}
	level, err := config.LogLevelValue()
	require.NoError(t, err)
	require.Equal(t, logging.LevelTrace, level)
}

func TestResolvePeerIDFallsBackToRoot(t *testing.T) {
	config := Configuration{}
	require.Equal(t, "/some/root", config.ResolvePeerID("/some/root"))

	config.PeerID = "fixed-id"
	require.Equal(t, "fixed-id", config.ResolvePeerID("/some/root"))
}
