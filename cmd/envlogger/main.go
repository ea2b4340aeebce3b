package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/envlogger/internal/config"
	"codeberg.org/mutker/envlogger/internal/drivers"
	"codeberg.org/mutker/envlogger/internal/errors"
	"codeberg.org/mutker/envlogger/internal/logger"
	"codeberg.org/mutker/envlogger/internal/metrics"
	"codeberg.org/mutker/envlogger/internal/pid"
	"codeberg.org/mutker/envlogger/internal/report"
	"codeberg.org/mutker/envlogger/internal/station"
	"codeberg.org/mutker/envlogger/internal/telemetry"
	"github.com/benbjohnson/clock"
)

type app struct {
	cfg       *config.Config
	env       *drivers.Env
	station   *station.Station
	metrics   metrics.Collector
	telemetry telemetry.Collector
	pidFile   *pid.File
}

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.EffectiveLogLevel(), logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.Debug().Msg("Config loaded")

	a, err := newApp(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := a.run(ctx); err != nil {
		logger.Error().Err(err).Msg("Error in main loop")
	}
	a.cleanup()
}

func newApp(cfg *config.Config) (*app, error) {
	errFactory := errors.New()
	a := &app{cfg: cfg, pidFile: pid.New(cfg.PIDFile)}

	if err := a.pidFile.Acquire(); err != nil {
		return nil, err
	}

	clk := clock.New()
	a.env = drivers.NewEnv(logger.Component("drivers"), drivers.WithClock(clk))
	members, err := a.env.Members(cfg.Sensors)
	if err != nil {
		a.cleanup()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	a.metrics, err = metrics.NewService(metrics.Config{
		DBPath:       cfg.Metrics.DBPath,
		Enabled:      cfg.Metrics.Enabled,
		BatchSize:    cfg.Metrics.BatchSize,
		BatchTimeout: cfg.Metrics.BatchTimeout,
	}, logger.Component("metrics"))
	if err != nil {
		a.cleanup()
		return nil, errFactory.Wrap(errors.ErrInitMetrics, err)
	}

	tcfg := telemetry.DefaultConfig()
	tcfg.Listen = cfg.Telemetry.Listen
	a.telemetry, err = telemetry.NewService(tcfg, logger.Component("telemetry"))
	if err != nil {
		a.cleanup()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	a.station, err = station.New(station.Config{
		Members:        members,
		Reporter:       report.Multi(report.Log(logger.Component("report")), a.metrics, a.telemetry),
		Clock:          clk,
		RetryBudget:    cfg.RetryBudget,
		PollInterval:   time.Duration(cfg.PollInterval) * time.Millisecond,
		AttemptTimeout: time.Duration(cfg.AttemptTimeout) * time.Millisecond,
		Logger:         logger.Component("station"),
	})
	if err != nil {
		a.cleanup()
		return nil, errFactory.Wrap(errors.ErrInitApp, err)
	}

	return a, nil
}

func (a *app) run(ctx context.Context) error {
	logger.Info().
		Int("sensors", len(a.cfg.Sensors)).
		Int("interval", a.cfg.Interval).
		Bool("once", a.cfg.Once).
		Msg("Starting envlogger")

	if err := a.station.Setup(ctx); err != nil {
		logger.Warn().Err(err).Msg("Some sensors could not be set up")
	}

	if a.cfg.Once {
		_, err := a.station.Cycle(ctx)
		return err
	}

	return a.station.Run(ctx, time.Duration(a.cfg.Interval)*time.Second)
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// cleanup releases whatever newApp managed to acquire.
func (a *app) cleanup() {
	if a.telemetry != nil {
		if err := a.telemetry.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to stop telemetry")
		}
	}
	if a.metrics != nil {
		if err := a.metrics.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close metrics")
		}
	}
	if a.env != nil {
		if err := a.env.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to release sensor ports")
		}
	}
	if err := a.pidFile.Release(); err != nil {
		logger.Error().Err(err).Msg("Failed to remove pid file")
	}
	logger.Info().Msg("Exiting...")
}
