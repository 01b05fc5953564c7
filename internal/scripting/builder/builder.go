// Package builder assembles the compilation units of one script object and compiles them.
//
// Units are emitted in a fixed order: system scaffolds, then one scaffold per function kind in
// ascending kind order with the tenant fragment spliced into its region, then the object's raw
// scripts. The compiler appends the assembly metadata unit last.
package builder

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/scripting/compiler"
	"github.com/atlanticdynamic/payscript/internal/scripting/function"
	"github.com/atlanticdynamic/payscript/internal/scripting/splice"
	"github.com/atlanticdynamic/payscript/internal/scripting/templates"
)

// Builder turns script objects into compiled assemblies.
type Builder struct {
	compiler  *compiler.Compiler
	templates *templates.Store
	product   string
	version   string
	logger    *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithTemplates replaces the embedded scaffold store.
func WithTemplates(store *templates.Store) Option {
	return func(b *Builder) {
		if store != nil {
			b.templates = store
		}
	}
}

// WithAssemblyInfo sets the product and version compiled into every assembly.
func WithAssemblyInfo(product, version string) Option {
	return func(b *Builder) {
		b.product = product
		b.version = version
	}
}

// WithLogHandler sets the log handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(b *Builder) {
		if handler != nil {
			b.logger = slog.New(handler).WithGroup("builder.Builder")
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New creates a Builder around a configured compiler.
func New(c *compiler.Compiler, opts ...Option) (*Builder, error) {
	if c == nil {
		return nil, errors.New("compiler cannot be nil")
	}
	b := &Builder{
		compiler:  c,
		templates: templates.Default(),
		product:   "payscript",
		logger:    slog.Default().WithGroup("builder.Builder"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// AssemblyName derives a deterministic assembly name from the object identity and hash.
func AssemblyName(obj *domain.ScriptObject) string {
	return fmt.Sprintf("%s_%d_%016x", obj.Type, obj.ID, uint64(obj.ScriptHash))
}

// BuildObject compiles the object's own function fragments and scripts.
func (b *Builder) BuildObject(obj *domain.ScriptObject) (*compiler.Result, error) {
	return b.Build(obj, obj.FunctionScripts, obj.Scripts)
}

// Build splices functionScripts into their scaffolds, appends extra scripts and compiles the
// result.
func (b *Builder) Build(
	obj *domain.ScriptObject,
	functionScripts map[function.Kind]string,
	extra []domain.Script,
) (*compiler.Result, error) {
	units, err := b.Units(obj, functionScripts, extra)
	if err != nil {
		return nil, err
	}

	name := AssemblyName(obj)
	b.logger.Debug("Building assembly", "assembly", name, "units", len(units))

	result, err := b.compiler.CompileAssembly(units, name, &compiler.AssemblyInfo{
		Title:   describe(obj),
		Version: b.version,
		Product: b.product,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Units returns the ordered compilation units for obj without compiling them.
func (b *Builder) Units(
	obj *domain.ScriptObject,
	functionScripts map[function.Kind]string,
	extra []domain.Script,
) ([]compiler.SourceUnit, error) {
	if obj == nil {
		return nil, errors.New("script object cannot be nil")
	}

	kinds, err := functionKinds(functionScripts)
	if err != nil {
		return nil, err
	}

	var functional []compiler.SourceUnit
	for _, kind := range kinds {
		code := strings.TrimSpace(functionScripts[kind])
		if code == "" {
			continue
		}
		unit, err := b.functionUnit(obj, kind, code)
		if err != nil {
			return nil, err
		}
		functional = append(functional, unit)
	}
	for i, script := range extra {
		if strings.TrimSpace(script.Value) == "" {
			continue
		}
		name := script.Name
		if name == "" {
			name = fmt.Sprintf("Script%d.star", i+1)
		}
		functional = append(functional, compiler.SourceUnit{Name: name, Code: script.Value})
	}
	if len(functional) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFunctionCode, describe(obj))
	}

	system, err := b.templates.System()
	if err != nil {
		return nil, err
	}
	units := make([]compiler.SourceUnit, 0, len(system)+len(functional))
	for _, tpl := range system {
		units = append(units, compiler.SourceUnit{Name: tpl.Name, Code: tpl.Source})
	}
	return append(units, functional...), nil
}

func (b *Builder) functionUnit(
	obj *domain.ScriptObject,
	kind function.Kind,
	code string,
) (compiler.SourceUnit, error) {
	name := kind.Template()
	scaffold, err := b.templates.Get(name)
	if err != nil {
		return compiler.SourceUnit{}, &TemplatingError{
			Object:   describe(obj),
			Template: name,
			Region:   kind.Region(),
			Err:      err,
		}
	}

	source, err := splice.Insert(scaffold, kind.Region(), ImplicitReturn(code))
	if err != nil {
		return compiler.SourceUnit{}, &TemplatingError{
			Object:   describe(obj),
			Template: name,
			Region:   kind.Region(),
			Err:      err,
		}
	}
	return compiler.SourceUnit{Name: name, Code: source}, nil
}

func functionKinds(functionScripts map[function.Kind]string) ([]function.Kind, error) {
	obj := domain.ScriptObject{FunctionScripts: functionScripts}
	kinds := obj.Kinds()
	for _, kind := range kinds {
		if !kind.Valid() {
			return nil, fmt.Errorf("%w: %d", function.ErrUnknownKind, int(kind))
		}
	}
	return kinds, nil
}

func describe(obj *domain.ScriptObject) string {
	if obj.Name == "" {
		return fmt.Sprintf("%s %d", obj.Type, obj.ID)
	}
	return fmt.Sprintf("%s %d (%s)", obj.Type, obj.ID, obj.Name)
}
