package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWithoutPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, ModeAuthoritative, cfg.DatabaseMode)
	require.Equal(t, 0.85, cfg.Cascade.ThresholdFuzzy)
	require.Equal(t, 0.75, cfg.Cascade.ThresholdSemantic)
	require.False(t, cfg.Cascade.EnableDeep)
	require.Equal(t, 30, cfg.Trash.RetentionDays)
	require.Equal(t, 5000, cfg.Sync.PollIntervalMS)
	require.True(t, cfg.Sync.AutoOnFileOpen)
	require.Equal(t, 1, cfg.Scheduler.PerClassMax.Indexing)
	require.Equal(t, 7*24*time.Hour, cfg.OperationRetention)
}

func TestLoadOverlaysFileOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ldm.yaml")
	err := os.WriteFile(path, []byte(`
database_mode: local
data_dir: /tmp/ldm-test
cascade:
  threshold_fuzzy: 0.9
  enable_deep: true
trash:
  retention_days: 14
operation_retention_days: 3
`), 0o644)
	require.NoError(t, err)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, ModeLocal, cfg.DatabaseMode)
	require.Equal(t, "/tmp/ldm-test", cfg.DataDir)
	require.Equal(t, 0.9, cfg.Cascade.ThresholdFuzzy)
	require.True(t, cfg.Cascade.EnableDeep)
	require.Equal(t, 14, cfg.Trash.RetentionDays)
	require.Equal(t, 3*24*time.Hour, cfg.OperationRetention)

	// untouched keys keep their defaults
	require.Equal(t, 0.75, cfg.Cascade.ThresholdSemantic)
	require.Equal(t, 5000, cfg.Sync.PollIntervalMS)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
