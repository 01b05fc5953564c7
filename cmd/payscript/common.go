package main

import (
	"fmt"

	"github.com/atlanticdynamic/payscript/internal/config"
	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/manifest"
	"github.com/urfave/cli/v3"
)

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to the TOML configuration file (built-in defaults when omitted)",
	}
}

// loadConfig reads path, or returns the defaults when path is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.NewConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// loadObject reads the manifest named by the first argument.
func loadObject(cmd *cli.Command) (*manifest.Manifest, *domain.ScriptObject, error) {
	if cmd.Args().Len() < 1 {
		return nil, nil, fmt.Errorf("manifest file path required")
	}
	m, err := manifest.Load(cmd.Args().First())
	if err != nil {
		return nil, nil, err
	}
	obj, err := m.Object()
	if err != nil {
		return nil, nil, err
	}
	return m, obj, nil
}
