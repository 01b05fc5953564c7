// Package compiler turns ordered Starlark source units into a loadable module image.
//
// A Compiler is configured once with a language version and a reference set and is safe for
// concurrent use. Each CompileAssembly call is independent: it parses and resolves every unit,
// collects every diagnostic across all units, and only on full success serializes the compiled
// programs into an image.
package compiler

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atlanticdynamic/payscript/internal/scripting/references"
	"go.starlark.net/syntax"
)

// LanguageVersion names a fixed Starlark dialect.
type LanguageVersion string

const (
	Language2020 LanguageVersion = "2020"
	Language2023 LanguageVersion = "2023"

	DefaultLanguageVersion = Language2023
)

var dialects = map[LanguageVersion]syntax.FileOptions{
	Language2020: {},
	Language2023: {
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	},
}

// ParseLanguageVersion validates a configured language version name.
func ParseLanguageVersion(name string) (LanguageVersion, error) {
	v := LanguageVersion(strings.TrimSpace(name))
	if v == "" {
		return DefaultLanguageVersion, nil
	}
	if _, ok := dialects[v]; !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidLanguageVersion, name)
	}
	return v, nil
}

// FileOptions returns the parser and resolver options for the dialect.
func (v LanguageVersion) FileOptions() *syntax.FileOptions {
	opts := dialects[v]
	return &opts
}

// Compiler compiles source units under one language version and reference set.
type Compiler struct {
	language LanguageVersion
	options  *syntax.FileOptions
	refs     *references.Set
	logger   *slog.Logger
}

// Option configures a Compiler.
type Option func(*Compiler) error

// WithLanguageVersion selects the dialect by name. Unknown names fail New.
func WithLanguageVersion(name string) Option {
	return func(c *Compiler) error {
		v, err := ParseLanguageVersion(name)
		if err != nil {
			return err
		}
		c.language = v
		return nil
	}
}

// WithReferences sets the libraries every unit may reference.
func WithReferences(refs *references.Set) Option {
	return func(c *Compiler) error {
		if refs == nil {
			return errors.New("references cannot be nil")
		}
		c.refs = refs
		return nil
	}
}

// WithLogHandler sets the log handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(c *Compiler) error {
		if handler != nil {
			c.logger = slog.New(handler).WithGroup("compiler.Compiler")
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// New creates a Compiler. Configuration problems are returned here and never per call.
func New(opts ...Option) (*Compiler, error) {
	c := &Compiler{
		language: DefaultLanguageVersion,
		logger:   slog.Default().WithGroup("compiler.Compiler"),
	}

	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrConfig, errors.Join(errs...))
	}

	if c.refs == nil {
		c.refs = references.All()
	}
	c.options = c.language.FileOptions()
	return c, nil
}

// LanguageVersion returns the configured dialect.
func (c *Compiler) LanguageVersion() LanguageVersion {
	return c.language
}

// References returns the configured reference set.
func (c *Compiler) References() *references.Set {
	return c.refs
}
