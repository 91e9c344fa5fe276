package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, Position{X: -35, Z: -35}, cfg.Goal)
	assert.Equal(t, 5.0, cfg.GoalThreshold)
	assert.Equal(t, 0.1, cfg.GreenPercent)
	assert.Equal(t, 5*time.Second, cfg.CaptureTimeout.Std())
	assert.Equal(t, 20.0, cfg.TurnAngle)
}

func TestLoadConfigYAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_url: http://sim:5000
goal: {x: 10, z: -20}
clear_step: 7
capture_timeout: 2s
`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://sim:5000", cfg.ServerURL)
	assert.Equal(t, Position{X: 10, Z: -20}, cfg.Goal)
	assert.Equal(t, 7.0, cfg.ClearStep)
	assert.Equal(t, 2*time.Second, cfg.CaptureTimeout.Std())
	// 未覆盖的字段保留默认
	assert.Equal(t, 5.0, cfg.GoalThreshold)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("NAVBOT_SERVER_URL", "http://other:5000")
	t.Setenv("NAVBOT_GOAL_X", "12.5")
	t.Setenv("NAVBOT_GOAL_Z", "-7")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "http://other:5000", cfg.ServerURL)
	assert.Equal(t, Position{X: 12.5, Z: -7}, cfg.Goal)
}

func TestLoadConfigBadEnv(t *testing.T) {
	t.Setenv("NAVBOT_GOAL_X", "not-a-number")
	_, err := LoadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigValidation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "navbot.yaml")
	require.NoError(t, os.WriteFile(path, []byte("goal_threshold: -1\n"), 0o644))
	_, err := LoadConfig(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("hue_min: 90\nhue_max: 40\n"), 0o644))
	_, err = LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().ServerURL, cfg.ServerURL)
}
