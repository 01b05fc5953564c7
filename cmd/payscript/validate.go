package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/atlanticdynamic/payscript/internal/config"
	"github.com/atlanticdynamic/payscript/internal/fancy"
	"github.com/urfave/cli/v3"
)

func newValidateCmd() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"lint"},
		Usage:     "Validate a configuration file",
		ArgsUsage: "<config.toml>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "tree",
				Aliases: []string{"t"},
				Usage:   "Show detailed tree view of the validated configuration",
			},
		},
		Action: validateAction,
	}
}

func validateAction(_ context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return fmt.Errorf("config file path required")
	}
	configPath := cmd.Args().First()

	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return err
	}

	w := outWriter(cmd)
	fmt.Fprintf(w, "Configuration file %s is valid\n", configPath)
	if cmd.Bool("tree") {
		fmt.Fprintln(w, cfg)
		return nil
	}
	fmt.Fprintln(w, renderConfigSummary(configPath, cfg))
	return nil
}

// renderConfigSummary creates a formatted summary string for the configuration
func renderConfigSummary(path string, cfg *config.Config) string {
	var summary strings.Builder

	cache := cfg.Cache.Timeout.String()
	if cfg.Cache.Timeout == 0 {
		cache = fancy.WarnText("disabled")
	}
	admin := cfg.Admin.Address
	if admin == "" {
		admin = fancy.WarnText("disabled")
	}

	summary.WriteString("\nConfig Summary:\n")
	fmt.Fprintf(&summary, "- Path: %s\n", path)
	fmt.Fprintf(&summary, "- Version: %s\n", cfg.Version)
	fmt.Fprintf(&summary, "- Language: %s\n", cfg.Compiler.LanguageVersion)
	fmt.Fprintf(&summary, "- Cache: %s\n", cache)
	fmt.Fprintf(&summary, "- Stores: %d\n", len(cfg.Store.Backends))
	fmt.Fprintf(&summary, "- Admin: %s\n", admin)
	summary.WriteString("\nUse --tree for a more detailed view of the config.")

	return summary.String()
}
