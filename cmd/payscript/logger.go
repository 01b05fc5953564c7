package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/atlanticdynamic/payscript/internal/logging"
	"github.com/urfave/cli/v3"
)

// setupLogging installs the default logger from the global flags, writing to the error stream.
func setupLogging(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	format := logging.Format(cmd.String("log-format"))
	if !format.Valid() {
		return ctx, fmt.Errorf("unknown log format: %q", format)
	}
	level := cmd.String("log-level")
	if _, err := logging.ParseLevel(level); err != nil {
		return ctx, err
	}

	w := errWriter(cmd)
	handler := logging.NewTextHandler(level, w)
	if format == logging.FormatJSON {
		handler = logging.NewJSONHandler(level, w)
	}
	slog.SetDefault(slog.New(handler))
	return ctx, nil
}

func outWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

func errWriter(cmd *cli.Command) io.Writer {
	if w := cmd.Root().ErrWriter; w != nil {
		return w
	}
	return os.Stderr
}
