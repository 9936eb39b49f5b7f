package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigHasTwoWorkersByDefault(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Task.Workers)
	assert.NoError(t, cfg.Validate())
}

func TestDefaultConfigHonorsWorkersEnvOverride(t *testing.T) {
	t.Setenv("ANALYSISD_WORKERS", "5")

	cfg := DefaultConfig()

	assert.Equal(t, 5, cfg.Task.Workers)
}

func TestCachePolicyTTLMatchesSpecTable(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.Cache.Config.MaxSize)
	assert.True(t, cfg.Cache.Config.PersistentAfterSave)
	assert.Equal(t, 0, cfg.Cache.Topic.MaxSize, "topic result cache is unbounded")
	assert.False(t, cfg.Cache.Topic.PersistentAfterSave)
	assert.Equal(t, 5, cfg.Cache.Vectors.MaxSize)
	assert.Equal(t, 300, cfg.Cache.Config.TTLSeconds, "five-minute TTL")
	assert.Equal(t, 300, cfg.Cache.Topic.TTLSeconds, "five-minute TTL")
	assert.Equal(t, 300, cfg.Cache.Vectors.TTLSeconds, "five-minute TTL")
}

func TestLoadReturnsDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))

	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Task.Workers, cfg.Task.Workers)
}

func TestLoadMergesTOMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	contents := `
[task]
workers = 4

[lock]
interactive_timeout_ms = 750
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Task.Workers)
	assert.Equal(t, 750, cfg.Lock.InteractiveTimeoutMs)
	// Untouched sections keep their defaults.
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestExpandPathsResolvesHomeTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Service.DataDir = "~/analysisd-data"
	cfg.expandPaths()

	assert.Equal(t, filepath.Join(home, "analysisd-data"), cfg.Service.DataDir)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	original := DefaultConfig()
	original.Task.Workers = 3
	require.NoError(t, original.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, original.Task.Workers, loaded.Task.Workers)
	assert.Equal(t, original.Cache.Workspace.MaxSize, loaded.Cache.Workspace.MaxSize)
}

func TestValidateRejectsZeroWorkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Task.Workers = 0

	assert.Error(t, cfg.Validate())
}

func TestCloneDeepCopiesLoggingOutput(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Logging.Output[0] = "stdout"

	assert.NotEqual(t, cfg.Logging.Output[0], clone.Logging.Output[0])
}
