package loadctx

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/atlanticdynamic/payscript/internal/scripting/function"
	"go.starlark.net/starlark"
)

var (
	// ErrExecution wraps failures raised by script code.
	ErrExecution = fmt.Errorf("%w: execution failed", ErrLoadContext)

	// ErrNotCallable indicates the resolved symbol is not a function.
	ErrNotCallable = fmt.Errorf("%w: symbol is not callable", ErrLoadContext)
)

// Module is a handle to one loaded assembly. It becomes unusable once its context is unloaded.
type Module struct {
	name     string
	language string
	owner    *Context

	mu      sync.RWMutex
	globals starlark.StringDict
}

// Name returns the assembly name.
func (m *Module) Name() string {
	return m.name
}

// LanguageVersion returns the dialect the assembly was compiled with.
func (m *Module) LanguageVersion() string {
	return m.language
}

// Context returns the owning load context.
func (m *Module) Context() *Context {
	return m.owner
}

// Symbols lists the module's global names, sorted.
func (m *Module) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.globals))
}

// Lookup returns a global defined by the module.
func (m *Module) Lookup(symbol string) (starlark.Value, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.globals == nil {
		return nil, ErrContextUnloaded
	}
	value, ok := m.globals[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrSymbolNotFound, m.name, symbol)
	}
	return value, nil
}

// Call invokes a module function with Go arguments and converts the result back to Go.
func (m *Module) Call(ctx context.Context, symbol string, args ...any) (any, error) {
	tuple := make(starlark.Tuple, len(args))
	for i, arg := range args {
		v, err := ToValue(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		tuple[i] = v
	}
	return m.callValue(ctx, symbol, tuple)
}

// Invoke calls the entrypoint of kind with rt exposed to the script as its only argument.
func (m *Module) Invoke(ctx context.Context, kind function.Kind, rt function.Runtime) (any, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", function.ErrUnknownKind, int(kind))
	}
	if rt == nil {
		return nil, errors.New("runtime cannot be nil")
	}
	return m.callValue(ctx, kind.Entrypoint(), starlark.Tuple{newRuntimeValue(ctx, kind, rt)})
}

func (m *Module) callValue(ctx context.Context, symbol string, args starlark.Tuple) (any, error) {
	fn, err := m.Lookup(symbol)
	if err != nil {
		return nil, err
	}
	if _, ok := fn.(starlark.Callable); !ok {
		return nil, fmt.Errorf("%w: %s.%s is %s", ErrNotCallable, m.name, symbol, fn.Type())
	}

	result, err := m.owner.call(ctx, m.name+"."+symbol, fn, args)
	if err != nil {
		return nil, err
	}
	return FromValue(result)
}

func (m *Module) snapshot() (starlark.StringDict, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.globals == nil {
		return nil, ErrContextUnloaded
	}
	return m.globals, nil
}

func (m *Module) release() {
	m.mu.Lock()
	m.globals = nil
	m.mu.Unlock()
}
