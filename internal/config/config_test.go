package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/rules"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "civkernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad_DefaultValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, rules.DefaultRelativeEpsilon, cfg.Game.Epsilon)
	assert.Equal(t, float64(game.DefaultMaxHealPerTurn), cfg.Game.DefaultHeal)
	assert.InDelta(t, game.DefaultCaptureRatio, cfg.Game.CaptureRatio, 1e-12)
	assert.Equal(t, game.DefaultBoardSize, cfg.Game.BoardWidth)
	assert.Equal(t, 10, cfg.Simulation.Turns)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, ":8090", cfg.Viewer.Address)
	assert.False(t, cfg.Metrics.Enabled)
}

func TestLoad_WithValidConfigFile(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: debug
  format: json
game:
  seed: 42
  captureRatio: 0.5
  boardWidth: 12
simulation:
  turns: 3
  scenario: scenarios/duel.yaml
store:
  driver: sqlite
  dsn: "file::memory:"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, uint64(42), cfg.Game.Seed)
	assert.Equal(t, 0.5, cfg.Game.CaptureRatio)
	assert.Equal(t, 12, cfg.Game.BoardWidth)
	assert.Equal(t, game.DefaultBoardSize, cfg.Game.BoardHeight)
	assert.Equal(t, 3, cfg.Simulation.Turns)
	assert.Equal(t, "scenarios/duel.yaml", cfg.Simulation.Scenario)
	assert.Equal(t, DriverSQLite, cfg.Store.Driver)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "game:\n  seed: 1\n")
	t.Setenv("CIVKERNEL_GAME_SEED", "99")
	t.Setenv("CIVKERNEL_SIMULATION_TURNS", "7")
	t.Setenv("CIVKERNEL_METRICS_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(99), cfg.Game.Seed)
	assert.Equal(t, 7, cfg.Simulation.Turns)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/civkernel.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "error reading config file")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero epsilon", func(c *Config) { c.Game.Epsilon = 0 }},
		{"epsilon of one", func(c *Config) { c.Game.Epsilon = 1 }},
		{"zero capture ratio", func(c *Config) { c.Game.CaptureRatio = 0 }},
		{"capture ratio above one", func(c *Config) { c.Game.CaptureRatio = 1.5 }},
		{"negative heal", func(c *Config) { c.Game.DefaultHeal = -1 }},
		{"empty board", func(c *Config) { c.Game.BoardHeight = 0 }},
		{"negative turns", func(c *Config) { c.Simulation.Turns = -1 }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mongo" }},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = DriverPostgres }},
		{"unknown level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load("")
			require.NoError(t, err)
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), game.ErrOutOfRange)
		})
	}
}

func TestGameOptions(t *testing.T) {
	cfg, err := Load(writeConfig(t, "game:\n  captureRatio: 0.25\n  defaultHeal: 2\n"))
	require.NoError(t, err)

	g, err := game.New(cfg.GameOptions()...)
	require.NoError(t, err)
	assert.Equal(t, 0.25, g.CaptureRatio())
	assert.Equal(t, cfg.Game.Epsilon, g.Epsilon())
	assert.True(t, g.Terrain().Contains(game.Point{X: game.DefaultBoardSize - 1, Y: game.DefaultBoardSize - 1}))
}
