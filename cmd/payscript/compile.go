package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/engine"
	"github.com/atlanticdynamic/payscript/internal/fancy"
	"github.com/atlanticdynamic/payscript/internal/scripting/builder"
	"github.com/atlanticdynamic/payscript/internal/scripting/compiler"
	"github.com/robbyt/go-loglater"
	"github.com/urfave/cli/v3"
)

const maxDiagnosticWidth = 160

func newCompileCmd() *cli.Command {
	return &cli.Command{
		Name:      "compile",
		Usage:     "Compile a script object manifest into a module image",
		ArgsUsage: "<manifest.toml|manifest.yaml>",
		Flags: []cli.Flag{
			configFlag(),
			&cli.BoolFlag{
				Name:  "source",
				Usage: "Print the generated source",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the module image to this file",
			},
		},
		Action: compileAction,
	}
}

// compileAction builds the manifest object. Pipeline logs are held back and replayed only
// when the build fails.
func compileAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	_, obj, err := loadObject(cmd)
	if err != nil {
		return err
	}

	collector := loglater.NewLogCollector(nil)
	eng, err := engine.New(ctx, cfg, engine.WithLogHandler(collector))
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	w := outWriter(cmd)
	result, err := eng.Builder().BuildObject(obj)
	if err != nil {
		if playErr := collector.PlayLogs(slog.Default().Handler()); playErr != nil {
			slog.Warn("Failed to replay compile logs", "error", playErr)
		}
		fmt.Fprintln(w, renderFailure(obj, err))
		return fmt.Errorf("compile %s: %w", builder.AssemblyName(obj), err)
	}

	fmt.Fprintln(w, renderResult(obj, result))
	if cmd.Bool("source") {
		fmt.Fprintln(w)
		fmt.Fprintln(w, result.Source)
	}
	if out := cmd.String("output"); out != "" {
		if err := os.WriteFile(out, result.Binary, 0o644); err != nil {
			return fmt.Errorf("failed to write module image: %w", err)
		}
		fmt.Fprintln(w, fancy.KeyValue("Written", fancy.PathText(out)))
	}
	return nil
}

func kindNames(obj *domain.ScriptObject) string {
	kinds := obj.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return strings.Join(names, ", ")
}

func renderResult(obj *domain.ScriptObject, result *compiler.Result) string {
	t := fancy.RootTree(result.Name)
	t.Child(fancy.ValidText("Compiled"))
	t.Child(fancy.KeyValue("Object", fmt.Sprintf("%s %d (%s)", obj.Type, obj.ID, obj.Name)))
	t.Child(fancy.KeyValue("Tenant", obj.TenantID))
	t.Child(fancy.KeyValue("Functions", kindNames(obj)))
	t.Child(fancy.KeyValue("Script hash", fmt.Sprintf("%016x", uint64(obj.ScriptHash))))
	t.Child(fancy.KeyValue("Image", fmt.Sprintf("%d bytes", len(result.Binary))))
	return t.String()
}

// renderFailure draws the diagnostics of a failed build as a tree.
func renderFailure(obj *domain.ScriptObject, err error) string {
	t := fancy.RootTree(builder.AssemblyName(obj))

	var compErr *compiler.CompilationError
	var tmplErr *builder.TemplatingError
	switch {
	case errors.As(err, &compErr):
		diags := fancy.BranchNode(
			fancy.ErrorText("Compilation failed"),
			fmt.Sprintf("(%d)", len(compErr.Diagnostics)),
		)
		for _, d := range compErr.Diagnostics {
			loc := d.Unit
			if d.Line > 0 {
				loc = fmt.Sprintf("%s:%d:%d", d.Unit, d.Line, d.Column)
			}
			diags.Child(fancy.LocationText(loc) + " " + fancy.TruncateString(d.Message, maxDiagnosticWidth))
		}
		t.Child(diags)
	case errors.As(err, &tmplErr):
		branch := fancy.BranchNode(fancy.ErrorText("Templating failed"), "")
		branch.Child(fancy.KeyValue("Template", tmplErr.Template))
		branch.Child(fancy.KeyValue("Region", tmplErr.Region))
		branch.Child(fancy.KeyValue("Error", tmplErr.Err))
		t.Child(branch)
	default:
		t.Child(fancy.ErrorText(err.Error()))
	}
	return t.String()
}
