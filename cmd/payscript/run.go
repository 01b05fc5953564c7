package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"strings"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/engine"
	"github.com/atlanticdynamic/payscript/internal/scripting/function"
	"github.com/urfave/cli/v3"
)

func newRunCmd() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Compile a manifest, load it through the module cache and invoke one function",
		ArgsUsage: "<manifest.toml|manifest.yaml>",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:    "kind",
				Aliases: []string{"k"},
				Usage:   "Function kind to invoke; optional when the manifest has exactly one",
			},
			&cli.StringSliceFlag{
				Name:    "param",
				Aliases: []string{"p"},
				Usage:   "Parameter override as name=value; values are parsed as JSON when possible",
			},
		},
		Action: runAction,
	}
}

type runOutput struct {
	Kind       string         `json:"kind"`
	Result     any            `json:"result"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func runAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	m, obj, err := loadObject(cmd)
	if err != nil {
		return err
	}
	kind, err := selectKind(obj, cmd.String("kind"))
	if err != nil {
		return err
	}

	params := maps.Clone(m.Parameters)
	if params == nil {
		params = make(map[string]any)
	}
	for _, raw := range cmd.StringSlice("param") {
		name, value, err := parseParam(raw)
		if err != nil {
			return err
		}
		params[name] = value
	}

	eng, err := engine.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = eng.Close() }()

	host, err := eng.NewHost(obj.TenantID)
	if err != nil {
		return err
	}
	defer func() { _ = host.Close() }()

	rt := function.NewMapRuntime(obj.TenantID, params, nil)
	result, err := host.Execute(ctx, obj.Type, obj, kind, rt)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(outWriter(cmd))
	enc.SetIndent("", "  ")
	return enc.Encode(runOutput{Kind: kind.String(), Result: result, Attributes: rt.Attributes()})
}

func selectKind(obj *domain.ScriptObject, name string) (function.Kind, error) {
	if name != "" {
		kind, err := function.ParseKind(name)
		if err != nil {
			return kind, err
		}
		if _, ok := obj.FunctionScripts[kind]; !ok {
			return kind, fmt.Errorf("manifest has no %s function", kind)
		}
		return kind, nil
	}
	kinds := obj.Kinds()
	if len(kinds) != 1 {
		return function.KindUnspecified, fmt.Errorf("--kind is required, manifest has %s", kindNames(obj))
	}
	return kinds[0], nil
}

// parseParam splits name=value, decoding value as JSON and falling back to the raw string.
func parseParam(raw string) (string, any, error) {
	name, value, ok := strings.Cut(raw, "=")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", nil, fmt.Errorf("invalid parameter %q, expected name=value", raw)
	}
	var decoded any
	if err := json.Unmarshal([]byte(value), &decoded); err != nil {
		return name, value, nil
	}
	return name, decoded, nil
}
