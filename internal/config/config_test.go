package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWhenMissing(t *testing.T) {
	t.Setenv("PACKETGUARD_CONFIG", "")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Guard.TileKillThreshold)
	assert.Equal(t, 5*time.Second, cfg.Guard.ThreatCooldown)

	cfg, err = Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultGuardConfig(), cfg.Guard)
}

func TestLoadOverridesOnlyGivenFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	data := []byte(`
guard:
  tile_kill_threshold: 10
  threshold_window: 2s
  pvp_mode: always
world:
  max_chests: 5
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Guard.TileKillThreshold)
	assert.Equal(t, 2*time.Second, cfg.Guard.ThresholdWindow)
	assert.Equal(t, PvPAlways, cfg.Guard.PvPMode)
	assert.Equal(t, 20, cfg.Guard.TilePlaceThreshold, "незаданные поля остаются по умолчанию")
	assert.Equal(t, 5, cfg.World.MaxChests)
	assert.Equal(t, 8400, cfg.World.Width)
}

func TestValidateRejectsUnknownPvPMode(t *testing.T) {
	cfg := Default()
	cfg.Guard.PvPMode = "sometimes"
	assert.Error(t, cfg.Validate())
}

func TestPortEnvFallback(t *testing.T) {
	s := ServerConfig{}
	t.Setenv("PACKETGUARD_TCP_PORT", "9000")
	assert.Equal(t, 9000, s.GetTCPPort())

	s.TCPPort = 7000
	assert.Equal(t, 7000, s.GetTCPPort(), "значение из конфига приоритетнее env")

	t.Setenv("PACKETGUARD_REST_PORT", "abc")
	assert.Equal(t, 8088, s.GetRESTPort())
}
