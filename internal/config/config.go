// Package config loads the kernel's settings from an optional YAML file and CIVKERNEL_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/game/rules"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. CIVKERNEL_GAME_SEED.
const EnvPrefix = "CIVKERNEL"

// Config is the full kernel configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Game       GameConfig       `mapstructure:"game"`
	Simulation SimulationConfig `mapstructure:"simulation"`
	Store      StoreConfig      `mapstructure:"store"`
	Viewer     ViewerConfig     `mapstructure:"viewer"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig holds the rule constants handed to game.New.
type GameConfig struct {
	Epsilon      float64 `mapstructure:"epsilon"`
	DefaultHeal  float64 `mapstructure:"defaultHeal"`
	CaptureRatio float64 `mapstructure:"captureRatio"`
	Seed         uint64  `mapstructure:"seed"`
	BoardWidth   int     `mapstructure:"boardWidth"`
	BoardHeight  int     `mapstructure:"boardHeight"`
}

type SimulationConfig struct {
	Turns    int    `mapstructure:"turns"`
	Scenario string `mapstructure:"scenario"`
	// ReplayDir receives a gzip replay of every run. Empty disables replays.
	ReplayDir string `mapstructure:"replayDir"`
}

// StoreConfig selects the snapshot store backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ViewerConfig struct {
	Address string `mapstructure:"address"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("game.epsilon", rules.DefaultRelativeEpsilon)
	v.SetDefault("game.defaultHeal", game.DefaultMaxHealPerTurn)
	v.SetDefault("game.captureRatio", game.DefaultCaptureRatio)
	v.SetDefault("game.seed", 0)
	v.SetDefault("game.boardWidth", game.DefaultBoardSize)
	v.SetDefault("game.boardHeight", game.DefaultBoardSize)

	v.SetDefault("simulation.turns", 10)
	v.SetDefault("simulation.scenario", "")
	v.SetDefault("simulation.replayDir", "")

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "")

	v.SetDefault("viewer.address", ":8090")
	v.SetDefault("metrics.enabled", false)
}

// Load reads the configuration. path may be empty, in which case only defaults and environment
// overrides apply. A missing file at an explicit path is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the kernel cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Game.Epsilon <= 0 || c.Game.Epsilon >= 1 {
		errs = append(errs, fmt.Errorf("game.epsilon %v is not in (0, 1)", c.Game.Epsilon))
	}
	if c.Game.CaptureRatio <= 0 || c.Game.CaptureRatio > 1 {
		errs = append(errs, fmt.Errorf("game.captureRatio %v is not in (0, 1]", c.Game.CaptureRatio))
	}
	if c.Game.DefaultHeal < 0 {
		errs = append(errs, fmt.Errorf("game.defaultHeal %v is negative", c.Game.DefaultHeal))
	}
	if c.Game.BoardWidth <= 0 || c.Game.BoardHeight <= 0 {
		errs = append(errs, fmt.Errorf("board %dx%d is empty", c.Game.BoardWidth, c.Game.BoardHeight))
	}
	if c.Simulation.Turns < 0 {
		errs = append(errs, fmt.Errorf("simulation.turns %d is negative", c.Simulation.Turns))
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverSQLite, DriverPostgres:
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("store.dsn is required for the %s driver", c.Store.Driver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.driver %q", c.Store.Driver))
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("unknown logging.level %q", c.Logging.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", game.ErrOutOfRange, errors.Join(errs...))
	}
	return nil
}

// GameOptions converts the game section into game.New options.
func (c *Config) GameOptions() []game.Option {
	return []game.Option{
		game.WithEpsilon(c.Game.Epsilon),
		game.WithDefaultHeal(c.Game.DefaultHeal),
		game.WithCaptureRatio(c.Game.CaptureRatio),
		game.WithSeed(c.Game.Seed),
		game.WithTerrain(game.NewHexGrid(c.Game.BoardWidth, c.Game.BoardHeight)),
	}
}
