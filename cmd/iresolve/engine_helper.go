package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"iresolve/internal/config"
	ierrors "iresolve/internal/errors"
	"iresolve/internal/index"
	"iresolve/internal/paths"
	"iresolve/internal/resolver"
	"iresolve/internal/slogutil"
)

// autoLogFile selects the log file next to the index.
const autoLogFile = "auto"

// cliEnv is what every command needs: the effective config, the logger,
// and an engine over the configured index.
type cliEnv struct {
	cfg       *config.Config
	indexPath string
	logger    *slog.Logger
	metrics   *index.Metrics
	engine    *resolver.Engine
	closer    io.Closer
}

func (e *cliEnv) Close() {
	_ = e.closer.Close()
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, ierrors.New(ierrors.ConfigInvalid, "cannot load configuration", err)
	}
	applyFlags(cfg)
	return cfg, nil
}

// applyFlags overrides config values with the flags that were given.
func applyFlags(cfg *config.Config) {
	if cacheFlag != "" {
		cfg.Cache = cacheFlag
	}
	if interpreter != "" {
		cfg.Python.Interpreter = interpreter
	}
	if workers > 0 {
		cfg.Index.Workers = workers
	}
	if loadTimeout > 0 {
		cfg.Python.LoadTimeoutMs = int(loadTimeout.Milliseconds())
	}
	if logFile != "" {
		cfg.Logging.File = logFile
	}
}

// setup builds the command environment. opts are applied after the
// logger and metrics.
func setup(opts ...resolver.Option) (*cliEnv, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	indexPath, err := paths.IndexFile(cfg.Cache)
	if err != nil {
		return nil, err
	}

	file := cfg.Logging.File
	if file == autoLogFile {
		file = paths.LogFile(indexPath)
	} else if file != "" {
		file = paths.ExpandHome(file)
	}
	logger, closer, err := slogutil.Setup(slogutil.Options{
		Verbosity:  verbosity,
		Quiet:      quiet,
		Level:      cfg.Logging.Level,
		File:       file,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	if err != nil {
		logger.Warn("log file unavailable, logging to stderr only", "file", file, "error", err)
	}

	metrics := index.NewMetrics()
	opts = append([]resolver.Option{resolver.WithLogger(logger), resolver.WithMetrics(metrics)}, opts...)
	engine, err := resolver.New(cfg, indexPath, opts...)
	if err != nil {
		_ = closer.Close()
		return nil, err
	}

	return &cliEnv{
		cfg:       cfg,
		indexPath: indexPath,
		logger:    logger,
		metrics:   metrics,
		engine:    engine,
		closer:    closer,
	}, nil
}

// newContext is canceled on interrupt so a build stops between modules.
func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
