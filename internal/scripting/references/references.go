// Package references holds the fixed set of libraries a compiled script may reference.
//
// Every compilation and every tenant load context resolves its predeclared names from the same
// registry, so a script never sees an ambient library that was not explicitly requested.
package references

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

var (
	// ErrReference is the base error for reference resolution.
	ErrReference = errors.New("reference error")

	// ErrUnknownReference indicates a requested library is not in the registry.
	ErrUnknownReference = fmt.Errorf("%w: unknown reference", ErrReference)
)

var registry = sync.OnceValue(func() starlark.StringDict {
	libs := starlark.StringDict{
		"json":   json.Module,
		"math":   math.Module,
		"time":   time.Module,
		"struct": starlark.NewBuiltin("struct", starlarkstruct.Make),
		"module": starlark.NewBuiltin("module", starlarkstruct.MakeModule),
		"re":     regexModule(),
	}
	libs.Freeze()
	return libs
})

// Names lists every library in the registry, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(registry()))
}

// Set is a resolved, immutable selection of libraries.
type Set struct {
	names []string
	dict  starlark.StringDict
}

// Resolve builds a Set from library names. Duplicates are ignored; unknown names are reported
// together.
func Resolve(names []string) (*Set, error) {
	libs := registry()
	set := &Set{dict: make(starlark.StringDict, len(names))}

	var errs []error
	for _, name := range names {
		name = strings.TrimSpace(name)
		value, ok := libs[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownReference, name))
			continue
		}
		set.dict[name] = value
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	set.names = slices.Sorted(maps.Keys(set.dict))
	return set, nil
}

// All resolves every library in the registry.
func All() *Set {
	set, err := Resolve(Names())
	if err != nil {
		panic(err)
	}
	return set
}

// Names returns the sorted library names in the set.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	return slices.Clone(s.names)
}

// Has reports whether name is part of the set.
func (s *Set) Has(name string) bool {
	if s == nil {
		return false
	}
	_, ok := s.dict[name]
	return ok
}

// Predeclared returns a fresh dictionary of the set's libraries, safe to extend.
func (s *Set) Predeclared() starlark.StringDict {
	out := make(starlark.StringDict)
	if s != nil {
		maps.Copy(out, s.dict)
	}
	return out
}

// Equal reports whether both sets hold the same libraries.
func (s *Set) Equal(other *Set) bool {
	return slices.Equal(s.Names(), other.Names())
}

func (s *Set) String() string {
	return strings.Join(s.Names(), ",")
}
