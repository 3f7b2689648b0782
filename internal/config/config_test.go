package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NaokiLH/kvs/internal/config"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfig(), cfg)
}

func TestLoadMissingFileAtExplicitPathReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.jsonc"))
	require.NoError(t, err)
	require.Equal(t, config.DefaultConfig(), cfg)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kvs.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"addr": "0.0.0.0:9000", "workers": 8}`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:9000", cfg.Addr)
	require.Equal(t, 8, cfg.Workers)
	require.Equal(t, "kvs", cfg.Engine, "engine should keep its default when not overridden")
}

func TestLoadFileWithCommentsAndTrailingCommas(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kvs.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// operator override
		"engine": "sled",
		"compaction_threshold_bytes": 4096,
	}`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "sled", cfg.Engine)
	require.Equal(t, uint64(4096), cfg.CompactionThresholdBytes)
}

func TestLoadRejectsInvalidEngine(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kvs.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"engine": "rocksdb"}`), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsNegativeWorkers(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kvs.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{"workers": -1}`), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "kvs.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o644))

	_, err := config.Load(path)
	require.Error(t, err)
}
