package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/civmodel/civkernel/internal/config"
	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/scenario"
	"github.com/civmodel/civkernel/internal/sim"
	"github.com/civmodel/civkernel/internal/store"
	"github.com/civmodel/civkernel/internal/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath   = flag.String("config", "", "path to configuration file")
	scenarioPath = flag.String("scenario", "", "scenario file, overrides simulation.scenario")
	turns        = flag.Int("turns", -1, "full turns to play, overrides simulation.turns")
	resume       = flag.String("resume", "", "resume the latest stored snapshot of this game ID")
	version      = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *scenarioPath != "" {
		cfg.Simulation.Scenario = *scenarioPath
	}
	if *turns >= 0 {
		cfg.Simulation.Turns = *turns
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting civkernel",
		zap.String("version", version),
		zap.String("config", *configPath),
		zap.String("scenario", cfg.Simulation.Scenario),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("simulation interrupted")
			return
		}
		logger.Fatal("simulation failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	if cfg.Simulation.Scenario == "" {
		return fmt.Errorf("%w: no scenario given", game.ErrInvalidArgument)
	}
	sc, err := scenario.Load(cfg.Simulation.Scenario)
	if err != nil {
		return err
	}

	st, err := store.Open(ctx, cfg.Store, logger.Named("store"))
	if err != nil {
		return err
	}
	defer st.Close()

	opts := append(cfg.GameOptions(), game.WithLogger(logger.Named("game")))
	g, err := openGame(ctx, sc, st, opts)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		metrics, err := telemetry.New(nil, logger.Named("telemetry"))
		if err != nil {
			return err
		}
		defer metrics.Attach(g)()
	}

	var recorder *game.ReplayRecorder
	if cfg.Simulation.ReplayDir != "" {
		recorder = game.NewReplayRecorder(logger.Named("replay"), cfg.Simulation.ReplayDir)
		recorder.Attach(g)
	}

	runner := sim.NewRunner(g,
		sim.WithStore(st),
		sim.WithAutoplayer(sim.NewAutoplayer(logger.Named("autoplay"))),
		sim.WithLogger(logger.Named("runner")),
		sim.WithTurnHook(func(r sim.TurnReport) {
			logger.Info("turn played",
				zap.Int("turn", r.Turn),
				zap.Int("actions", r.Actions),
				zap.Int("standing", r.Standing),
			)
		}),
	)
	res, runErr := runner.Run(ctx, cfg.Simulation.Turns)

	if recorder != nil {
		if err := recorder.SaveReplay(g.ID()); err != nil {
			logger.Error("failed to save replay", zap.Error(err))
		}
	}
	if runErr != nil {
		return runErr
	}

	for _, p := range g.Players() {
		ending := ""
		if e := p.AchievedEnding(); e != nil {
			ending = e.Name
		}
		logger.Info("player result",
			zap.String("player", p.Name()),
			zap.Bool("eliminated", p.IsEliminated()),
			zap.String("ending", ending),
		)
	}
	logger.Info("simulation finished",
		zap.String("game_id", g.ID()),
		zap.Int("turns", res.Turns),
		zap.Int("actions", res.Actions),
		zap.Int("snapshots", len(res.Snapshots)),
		zap.Bool("decided", res.Finished),
	)
	return nil
}

// openGame builds a fresh game from sc, or restores the latest snapshot when -resume is set.
func openGame(ctx context.Context, sc *scenario.Scenario, st store.Store, opts []game.Option) (*game.Game, error) {
	if *resume == "" {
		g, _, err := sc.Build(opts...)
		return g, err
	}
	snap, err := store.Latest(ctx, st, *resume)
	if err != nil {
		return nil, fmt.Errorf("resuming %s: %w", *resume, err)
	}
	return sc.Restore(snap, opts...)
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
