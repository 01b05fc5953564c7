package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/payscript/internal/engine"
	"github.com/atlanticdynamic/payscript/internal/logging"
	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/urfave/cli/v3"
)

func newServeCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the module cache sweeper and the admin HTTP server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to TOML configuration file",
			},
		},
		Action: serveAction,
	}
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	if configPath == "" {
		return fmt.Errorf("--config flag is required")
	}
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	handler, logCloser, err := logging.Setup(cfg.Logging.Format, cfg.Logging.Level, cfg.Logging.Output)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()
	logger := slog.New(handler)
	slog.SetDefault(logger)

	eng, err := engine.New(ctx, cfg, engine.WithLogHandler(handler))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	super, err := supervisor.New(
		supervisor.WithRunnables(eng.Runnables()...),
		supervisor.WithLogHandler(handler),
		supervisor.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	logger.Info("Serving", "admin", cfg.Admin.Address, "cache_timeout", cfg.Cache.Timeout)
	if err := super.Run(); err != nil {
		return fmt.Errorf("failed to run server: %w", err)
	}
	logger.Info("Server shutdown complete")
	return nil
}
