// Package serverrun hosts the server entrypoint: it loads configuration,
// opens the runtime, and drives the scheduler from the reactor tick until
// shutdown.
package serverrun

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	cfgpkg "github.com/westor7/ircd/internal/config"
	"github.com/westor7/ircd/internal/runtime"
	logpkg "github.com/westor7/ircd/pkg/log"
)

type Options struct {
	// ConfigPath is an optional JSON config file; defaults and IRCD_* env
	// overrides apply either way.
	ConfigPath string
	DataDir    string
	// Overrides applied after file/env loading; zero values leave the
	// loaded config untouched.
	Backend   string
	TickMs    int
	LogLevel  string
	LogFormat string
}

// loadConfig layers file, environment, and flag overrides over defaults.
func loadConfig(opts Options) (cfgpkg.Config, error) {
	cfg := cfgpkg.Default()
	if opts.ConfigPath != "" {
		loaded, err := cfgpkg.Load(opts.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	cfgpkg.FromEnv(&cfg)
	if opts.Backend != "" {
		cfg.History.Backend = opts.Backend
	}
	if opts.TickMs > 0 {
		cfg.TickIntervalMs = opts.TickMs
	}
	if opts.LogLevel != "" {
		cfg.Log.Level = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}
	return cfg, cfg.Validate()
}

// Run starts the server and blocks until ctx is cancelled or a signal
// arrives. The reactor ticks the scheduler at the configured interval;
// everything periodic in the process hangs off that single loop.
func Run(ctx context.Context, opts Options) error {
	// Layer a local signal context over the provided one so callers that
	// pass context.Background still get clean shutdown.
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, err := logpkg.ApplyConfig(&logpkg.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		logger = logpkg.NewLogger(logpkg.WithLevel(logpkg.InfoLevel))
	}

	rt, err := runtime.Open(runtime.Options{
		Config:  cfg,
		DataDir: opts.DataDir,
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	defer rt.Close()

	logger.Info("starting ircd history core",
		logpkg.Str("server", cfg.ServerName),
		logpkg.Str("backend", cfg.History.Backend),
		logpkg.Dur("tick", cfg.TickInterval()),
		logpkg.Str("level", cfg.Log.Level),
		logpkg.Str("format", cfg.Log.Format),
	)

	ticker := time.NewTicker(cfg.TickInterval())
	defer ticker.Stop()
	for {
		select {
		case <-sctx.Done():
			logger.Info("shutting down")
			return nil
		case <-ticker.C:
			rt.Scheduler().Tick()
		}
	}
}
