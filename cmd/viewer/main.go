package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civmodel/civkernel/internal/config"
	"github.com/civmodel/civkernel/internal/game"
	"github.com/civmodel/civkernel/internal/scenario"
	"github.com/civmodel/civkernel/internal/sim"
	"github.com/civmodel/civkernel/internal/viewer"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath   = flag.String("config", "", "path to configuration file")
	scenarioPath = flag.String("scenario", "", "scenario file, overrides simulation.scenario")
	games        = flag.Int("games", 1, "number of concurrent games to run")
	pace         = flag.Duration("pace", 500*time.Millisecond, "pause after every full turn")
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

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting civkernel viewer",
		zap.String("version", version),
		zap.String("address", cfg.Viewer.Address),
		zap.String("scenario", cfg.Simulation.Scenario),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := viewer.NewHub(logger.Named("hub"))
	go hub.Run(ctx)

	sessions := sim.NewManager(logger.Named("sessions"))
	if err := startGames(ctx, cfg, hub, sessions, logger); err != nil {
		logger.Fatal("failed to start games", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Viewer.Address,
		Handler:           viewer.NewHandler(hub, sessions, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("event feed listening", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
}

// startGames builds one game per -games from the scenario and runs each in its own session.
// Seeds are offset per game so the sessions diverge.
func startGames(ctx context.Context, cfg *config.Config, hub *viewer.Hub, sessions *sim.Manager, logger *zap.Logger) error {
	if cfg.Simulation.Scenario == "" {
		return fmt.Errorf("%w: no scenario given", game.ErrInvalidArgument)
	}
	sc, err := scenario.Load(cfg.Simulation.Scenario)
	if err != nil {
		return err
	}
	for i := range *games {
		opts := append(cfg.GameOptions(),
			game.WithSeed(cfg.Game.Seed+uint64(i)),
			game.WithLogger(logger.Named("game")),
		)
		g, _, err := sc.Build(opts...)
		if err != nil {
			return err
		}
		hub.Attach(g)

		s, err := sessions.CreateSession(fmt.Sprintf("%s #%d", sc.Name, i+1), g,
			sim.WithAutoplayer(sim.NewAutoplayer(logger.Named("autoplay"))),
			sim.WithTurnHook(func(sim.TurnReport) {
				select {
				case <-time.After(*pace):
				case <-ctx.Done():
				}
			}),
		)
		if err != nil {
			return err
		}
		if err := s.Start(ctx, cfg.Simulation.Turns); err != nil {
			return err
		}
	}
	return nil
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
