package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/atlanticdynamic/payscript/internal/scripting/adhoc"
	"github.com/urfave/cli/v3"
)

func newEvalCmd() *cli.Command {
	return &cli.Command{
		Name:      "eval",
		Usage:     "Evaluate a one-off Starlark snippet; assign the result to _",
		ArgsUsage: "<code>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "data",
				Aliases: []string{"d"},
				Usage:   `JSON object visible to the snippet as ctx.get("data")`,
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Value: adhoc.DefaultTimeout,
				Usage: "Evaluation time limit",
			},
		},
		Action: evalAction,
	}
}

func evalAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return fmt.Errorf("code required")
	}

	var input map[string]any
	if raw := cmd.String("data"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &input); err != nil {
			return fmt.Errorf("invalid --data: %w", err)
		}
	}

	evaluator := adhoc.New(
		adhoc.WithTimeout(cmd.Duration("timeout")),
		adhoc.WithLogHandler(slog.Default().Handler()),
	)
	result, err := evaluator.Evaluate(ctx, cmd.Args().First(), input)
	if err != nil {
		return err
	}

	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("result is not serializable: %w", err)
	}
	_, err = fmt.Fprintln(outWriter(cmd), string(out))
	return err
}
