package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "simcore.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
[simulation]
batch_size = 25
batch_policy = "always"

[abilities]
prediction_timeout = "5s"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Simulation.BatchSize)
	assert.Equal(t, "always", cfg.Simulation.BatchPolicy)
	assert.Equal(t, 5*time.Second, cfg.Abilities.PredictionTimeout)
	// untouched values keep their defaults
	assert.Equal(t, 60, cfg.Simulation.TickRate)
	assert.Equal(t, 10, cfg.Abilities.RateLimitPerSecond)
	assert.NotZero(t, cfg.Server.StartTime)
}

func TestLoadRejectsUnknownBatchPolicy(t *testing.T) {
	path := writeConfig(t, `
[simulation]
batch_policy = "sometimes"
`)
	_, err := Load(path)
	assert.ErrorContains(t, err, "batch_policy")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, time.Second/60, SimulationConfig{TickRate: 60}.TickInterval())
	assert.Equal(t, time.Second/60, SimulationConfig{}.TickInterval())
	assert.Equal(t, 50*time.Millisecond, SimulationConfig{TickRate: 20}.TickInterval())
}
