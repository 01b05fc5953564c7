// Package templates provides the embedded scaffold sources used to assemble scripted functions.
package templates

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sync"
)

//go:embed scaffolds/*.star
var scaffolds embed.FS

const scaffoldDir = "scaffolds"

// System scaffolds are emitted ahead of the function scaffolds, in this order.
var systemTemplates = []string{
	"Function.star",
	"PayrollFunction.star",
}

var (
	// ErrTemplate is the base error for template lookups.
	ErrTemplate = errors.New("template error")

	// ErrTemplateNotFound indicates no scaffold exists with the requested name.
	ErrTemplateNotFound = fmt.Errorf("%w: template not found", ErrTemplate)
)

// Template is a named scaffold source.
type Template struct {
	Name   string
	Source string
}

// Store reads scaffolds from a file system once and serves them from memory.
type Store struct {
	fsys fs.FS
	dir  string

	once    sync.Once
	sources map[string]string
	loadErr error
}

var defaultStore = sync.OnceValue(func() *Store {
	return NewStore(scaffolds, scaffoldDir)
})

// Default returns the store backed by the embedded scaffolds.
func Default() *Store {
	return defaultStore()
}

// NewStore creates a store that reads *.star files from dir in fsys.
func NewStore(fsys fs.FS, dir string) *Store {
	return &Store{fsys: fsys, dir: dir}
}

func (s *Store) load() {
	s.once.Do(func() {
		matches, err := fs.Glob(s.fsys, path.Join(s.dir, "*.star"))
		if err != nil {
			s.loadErr = fmt.Errorf("%w: %w", ErrTemplate, err)
			return
		}
		s.sources = make(map[string]string, len(matches))
		for _, match := range matches {
			data, err := fs.ReadFile(s.fsys, match)
			if err != nil {
				s.loadErr = fmt.Errorf("%w: reading %s: %w", ErrTemplate, match, err)
				return
			}
			s.sources[path.Base(match)] = string(data)
		}
	})
}

// Get returns the scaffold source with the given resource name.
func (s *Store) Get(name string) (string, error) {
	s.load()
	if s.loadErr != nil {
		return "", s.loadErr
	}
	src, ok := s.sources[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return src, nil
}

// System returns the system scaffolds in emission order. Missing system scaffolds are skipped.
func (s *Store) System() ([]Template, error) {
	s.load()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make([]Template, 0, len(systemTemplates))
	for _, name := range systemTemplates {
		if src, ok := s.sources[name]; ok {
			out = append(out, Template{Name: name, Source: src})
		}
	}
	return out, nil
}

// Names lists all scaffold names, sorted.
func (s *Store) Names() []string {
	s.load()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
