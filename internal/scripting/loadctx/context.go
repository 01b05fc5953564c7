// Package loadctx implements the per-tenant module arena.
//
// A Context owns every module loaded through it. Symbol lookups and load() statements only
// see modules of the same Context, so code of one tenant can never resolve code of another.
// Unload cancels running calls, releases every module and makes all handles unusable.
package loadctx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/atlanticdynamic/payscript/internal/scripting/image"
	"github.com/atlanticdynamic/payscript/internal/scripting/references"
	"go.starlark.net/starlark"
)

var (
	// ErrLoadContext is the base error for the loadctx package.
	ErrLoadContext = errors.New("load context error")

	// ErrInvalidTenant indicates a tenant id that is not positive.
	ErrInvalidTenant = fmt.Errorf("%w: tenant id must be positive", ErrLoadContext)

	// ErrContextUnloaded is returned by every operation on an unloaded context or its modules.
	ErrContextUnloaded = fmt.Errorf("%w: context unloaded", ErrLoadContext)

	// ErrSymbolNotFound indicates a symbol is not defined by any module of this context.
	ErrSymbolNotFound = fmt.Errorf("%w: symbol not found", ErrLoadContext)

	// ErrModuleNotFound indicates a load() of an assembly this context never loaded.
	ErrModuleNotFound = fmt.Errorf("%w: module not found", ErrLoadContext)

	// ErrReferenceNotAllowed indicates an image requires a library this context does not grant.
	ErrReferenceNotAllowed = fmt.Errorf("%w: reference not allowed", ErrLoadContext)

	// ErrInitFailed indicates the top-level code of a unit failed.
	ErrInitFailed = fmt.Errorf("%w: module initialization failed", ErrLoadContext)
)

// Context is the module arena of one tenant. It is safe for concurrent use.
type Context struct {
	tenantID int
	refs     *references.Set
	maxSteps uint64
	logger   *slog.Logger

	mu      sync.RWMutex
	modules map[string]*Module
	threads map[*starlark.Thread]struct{}

	unloaded atomic.Bool
	loads    atomic.Int64
}

// Option configures a Context.
type Option func(*Context)

// WithReferences restricts the libraries images loaded into the context may use.
func WithReferences(refs *references.Set) Option {
	return func(c *Context) {
		c.refs = refs
	}
}

// WithMaxExecutionSteps bounds the Starlark steps of every call. Zero means unbounded.
func WithMaxExecutionSteps(steps uint64) Option {
	return func(c *Context) {
		c.maxSteps = steps
	}
}

// WithLogHandler sets the log handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(c *Context) {
		if handler != nil {
			c.logger = slog.New(handler).WithGroup("loadctx.Context")
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Context) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// New creates an empty context for tenantID.
func New(tenantID int, opts ...Option) (*Context, error) {
	if tenantID <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidTenant, tenantID)
	}
	c := &Context{
		tenantID: tenantID,
		logger:   slog.Default().WithGroup("loadctx.Context"),
		modules:  make(map[string]*Module),
		threads:  make(map[*starlark.Thread]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("tenant_id", tenantID)
	return c, nil
}

// TenantID returns the owning tenant.
func (c *Context) TenantID() int {
	return c.tenantID
}

// Loads counts successful LoadFromBinary calls, including those that lost an insert race.
func (c *Context) Loads() int64 {
	return c.loads.Load()
}

// IsUnloaded reports whether Unload was called.
func (c *Context) IsUnloaded() bool {
	return c.unloaded.Load()
}

// Modules lists the loaded assembly names, sorted.
func (c *Context) Modules() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.modules))
}

// LoadFromBinary decodes a module image, initializes its units in order and registers the
// module under its assembly name. When the name is already registered the existing module is
// returned and the new one is discarded.
func (c *Context) LoadFromBinary(binary []byte) (*Module, error) {
	if c.IsUnloaded() {
		return nil, ErrContextUnloaded
	}

	img, err := image.Decode(binary)
	if err != nil {
		return nil, err
	}
	refs, err := c.imageReferences(img)
	if err != nil {
		return nil, err
	}

	thread, err := c.newThread("load " + img.Name)
	if err != nil {
		return nil, err
	}
	defer c.releaseThread(thread)

	env := refs.Predeclared()
	globals := make(starlark.StringDict)
	for _, unit := range img.Units {
		prog, err := starlark.CompiledProgram(bytes.NewReader(unit.Program))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %s: %w", image.ErrInvalidImage, img.Name, unit.Name, err)
		}
		unitGlobals, err := prog.Init(thread, env)
		if err != nil {
			if c.IsUnloaded() {
				return nil, ErrContextUnloaded
			}
			return nil, fmt.Errorf("%w: %s: %s: %w", ErrInitFailed, img.Name, unit.Name, err)
		}
		for name, value := range unitGlobals {
			env[name] = value
			globals[name] = value
		}
	}
	globals.Freeze()

	mod := &Module{name: img.Name, language: img.Language, owner: c, globals: globals}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsUnloaded() {
		return nil, ErrContextUnloaded
	}
	c.loads.Add(1)
	if existing, ok := c.modules[img.Name]; ok {
		c.logger.Debug("Module already loaded", "assembly", img.Name)
		return existing, nil
	}
	c.modules[img.Name] = mod
	c.logger.Debug("Module loaded", "assembly", img.Name, "units", len(img.Units))
	return mod, nil
}

func (c *Context) imageReferences(img *image.Image) (*references.Set, error) {
	refs, err := references.Resolve(img.References)
	if err != nil {
		return nil, err
	}
	if c.refs == nil {
		return refs, nil
	}
	var errs []error
	for _, name := range refs.Names() {
		if !c.refs.Has(name) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrReferenceNotAllowed, name))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return refs, nil
}

// Resolve returns a symbol defined by an assembly loaded into this context.
func (c *Context) Resolve(assembly, symbol string) (starlark.Value, error) {
	if c.IsUnloaded() {
		return nil, ErrContextUnloaded
	}
	c.mu.RLock()
	mod, ok := c.modules[assembly]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrSymbolNotFound, assembly, symbol)
	}
	return mod.Lookup(symbol)
}

// Unload releases every module and cancels running calls. It is idempotent.
func (c *Context) Unload() {
	if c.unloaded.Swap(true) {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for thread := range c.threads {
		thread.Cancel("load context unloaded")
	}
	for _, mod := range c.modules {
		mod.release()
	}
	c.modules = make(map[string]*Module)
	c.logger.Debug("Context unloaded")
}

func (c *Context) newThread(name string) (*starlark.Thread, error) {
	thread := &starlark.Thread{
		Name: name,
		Load: c.load,
		Print: func(_ *starlark.Thread, msg string) {
			c.logger.Debug("Script output", "thread", name, "message", msg)
		},
	}
	if c.maxSteps > 0 {
		thread.SetMaxExecutionSteps(c.maxSteps)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.IsUnloaded() {
		return nil, ErrContextUnloaded
	}
	c.threads[thread] = struct{}{}
	return thread, nil
}

func (c *Context) releaseThread(thread *starlark.Thread) {
	c.mu.Lock()
	delete(c.threads, thread)
	c.mu.Unlock()
}

// load resolves load() statements against this context only.
func (c *Context) load(_ *starlark.Thread, assembly string) (starlark.StringDict, error) {
	c.mu.RLock()
	mod, ok := c.modules[assembly]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModuleNotFound, assembly)
	}
	return mod.snapshot()
}

// call runs fn on a fresh registered thread, cancelling it when ctx ends.
func (c *Context) call(
	ctx context.Context,
	name string,
	fn starlark.Value,
	args starlark.Tuple,
) (starlark.Value, error) {
	thread, err := c.newThread(name)
	if err != nil {
		return nil, err
	}
	defer c.releaseThread(thread)

	stop := context.AfterFunc(ctx, func() {
		thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	result, err := starlark.Call(thread, fn, args, nil)
	if err == nil {
		return result, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("%s: %w", name, ctxErr)
	}
	if c.IsUnloaded() {
		return nil, fmt.Errorf("%s: %w", name, ErrContextUnloaded)
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrExecution, name, err)
}
