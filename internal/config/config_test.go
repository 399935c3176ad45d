package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 30*time.Second, cfg.HeartbeatInterval())
	assert.Equal(t, 90*time.Second, cfg.ConnectionTimeout())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"addr": ":9090", "heartbeat_interval_sec": 15}`), 0o644))

	t.Setenv("STTT_HEARTBEAT_INTERVAL_SEC", "5")
	t.Setenv("STTT_DATA_DIR", "/tmp/sttt")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr, "file value survives when no env is set")
	assert.Equal(t, 5, cfg.HeartbeatIntervalSec, "env wins over the file")
	assert.Equal(t, "/tmp/sttt", cfg.DataDir)
}

func TestLoadRejectsMalformedJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"addr": `), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
