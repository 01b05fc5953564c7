package loadctx

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/atlanticdynamic/payscript/internal/scripting/function"
	"go.starlark.net/starlark"
)

// scriptLogLevels maps the level names scripts pass to rt.log onto slog levels.
var scriptLogLevels = map[string]slog.Level{
	"verbose":     slog.LevelDebug - 4,
	"trace":       slog.LevelDebug - 4,
	"debug":       slog.LevelDebug,
	"information": slog.LevelInfo,
	"info":        slog.LevelInfo,
	"warning":     slog.LevelWarn,
	"warn":        slog.LevelWarn,
	"error":       slog.LevelError,
	"fatal":       slog.LevelError + 4,
}

// runtimeValue exposes a function.Runtime to scripts as the `rt` argument. Only the members
// allowed by the kind's capabilities are visible.
type runtimeValue struct {
	ctx  context.Context
	kind function.Kind
	rt   function.Runtime
	caps function.Capability
}

var _ starlark.HasAttrs = (*runtimeValue)(nil)

func newRuntimeValue(ctx context.Context, kind function.Kind, rt function.Runtime) *runtimeValue {
	return &runtimeValue{ctx: ctx, kind: kind, rt: rt, caps: kind.Capabilities()}
}

func (r *runtimeValue) String() string        { return fmt.Sprintf("<runtime %s>", r.kind) }
func (r *runtimeValue) Type() string          { return "runtime" }
func (r *runtimeValue) Freeze()               {}
func (r *runtimeValue) Truth() starlark.Bool  { return starlark.True }
func (r *runtimeValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable: %s", r.Type()) }

func (r *runtimeValue) members() map[string]*starlark.Builtin {
	m := make(map[string]*starlark.Builtin)
	if r.caps.Has(function.CapParameters) {
		m["get_parameter"] = starlark.NewBuiltin("get_parameter", r.getParameter)
		m["set_parameter"] = starlark.NewBuiltin("set_parameter", r.setParameter)
	}
	if r.caps.Has(function.CapAttributes) {
		m["get_attribute"] = starlark.NewBuiltin("get_attribute", r.getAttribute)
		m["set_attribute"] = starlark.NewBuiltin("set_attribute", r.setAttribute)
	}
	if r.caps.Has(function.CapLog) {
		m["log"] = starlark.NewBuiltin("log", r.log)
	}
	if r.caps.Has(function.CapQuery) {
		m["query"] = starlark.NewBuiltin("query", r.query)
	}
	return m
}

func (r *runtimeValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "tenant_id":
		return starlark.MakeInt(r.rt.TenantID()), nil
	case "kind":
		return starlark.String(r.kind.String()), nil
	}
	if b, ok := r.members()[name]; ok {
		return b, nil
	}
	return nil, nil
}

func (r *runtimeValue) AttrNames() []string {
	names := []string{"kind", "tenant_id"}
	for name := range r.members() {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (r *runtimeValue) getParameter(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var name string
	var def starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
		return nil, err
	}
	v, ok := r.rt.Parameter(name)
	if !ok {
		return def, nil
	}
	return ToValue(v)
}

func (r *runtimeValue) setParameter(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var name string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "value", &value); err != nil {
		return nil, err
	}
	goValue, err := FromValue(value)
	if err != nil {
		return nil, err
	}
	return starlark.None, r.rt.SetParameter(name, goValue)
}

func (r *runtimeValue) getAttribute(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var name string
	var def starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "default?", &def); err != nil {
		return nil, err
	}
	v, ok := r.rt.Attribute(name)
	if !ok {
		return def, nil
	}
	return ToValue(v)
}

func (r *runtimeValue) setAttribute(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var name string
	var value starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "value", &value); err != nil {
		return nil, err
	}
	goValue, err := FromValue(value)
	if err != nil {
		return nil, err
	}
	return starlark.None, r.rt.SetAttribute(name, goValue)
}

func (r *runtimeValue) log(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var message string
	levelName := "information"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "message", &message, "level?", &levelName); err != nil {
		return nil, err
	}
	level, ok := scriptLogLevels[strings.ToLower(levelName)]
	if !ok {
		return nil, fmt.Errorf("%s: unknown level %q", b.Name(), levelName)
	}
	r.rt.Log(level, message)
	return starlark.None, nil
}

func (r *runtimeValue) query(
	_ *starlark.Thread,
	b *starlark.Builtin,
	args starlark.Tuple,
	kwargs []starlark.Tuple,
) (starlark.Value, error) {
	var name string
	var params *starlark.Dict
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "params?", &params); err != nil {
		return nil, err
	}
	goParams := map[string]any{}
	if params != nil {
		converted, err := FromValue(params)
		if err != nil {
			return nil, err
		}
		goParams = converted.(map[string]any)
	}
	result, err := r.rt.Query(r.ctx, name, goParams)
	if err != nil {
		return nil, err
	}
	return ToValue(result)
}
