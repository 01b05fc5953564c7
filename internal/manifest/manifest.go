// Package manifest reads script object descriptions from TOML or YAML files.
package manifest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/scripting/function"
	gotoml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a manifest encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
)

var (
	ErrManifest          = errors.New("manifest error")
	ErrUnsupportedFormat = fmt.Errorf("%w: unsupported format", ErrManifest)
	ErrInvalidManifest   = fmt.Errorf("%w: invalid manifest", ErrManifest)
)

// Script is a raw source unit compiled after the function scaffolds.
type Script struct {
	Name  string `toml:"name"  yaml:"name"`
	Value string `toml:"value" yaml:"value"`
}

// Manifest describes one script object plus the parameters a run starts with.
type Manifest struct {
	TenantID   int               `toml:"tenant_id"  yaml:"tenant_id"`
	ID         int64             `toml:"id"         yaml:"id"`
	Type       string            `toml:"type"       yaml:"type"`
	Name       string            `toml:"name"       yaml:"name"`
	Functions  map[string]string `toml:"functions"  yaml:"functions"`
	Scripts    []Script          `toml:"scripts"    yaml:"scripts"`
	Parameters map[string]any    `toml:"parameters" yaml:"parameters"`
}

// FormatFromPath picks the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Load reads the manifest at path.
func Load(path string) (*Manifest, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrManifest, err)
	}
	m, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse decodes data. Unknown keys are rejected in both formats.
func Parse(data []byte, format Format) (*Manifest, error) {
	m := &Manifest{}
	switch format {
	case FormatTOML:
		dec := gotoml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(m); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return m, nil
}

// Object converts the manifest into a validated script object with its hash computed.
func (m *Manifest) Object() (*domain.ScriptObject, error) {
	var errs []error

	typ, err := domain.ParseObjectType(m.Type)
	if err != nil {
		errs = append(errs, err)
	}

	functions := make(map[function.Kind]string, len(m.Functions))
	for name, code := range m.Functions {
		kind, err := function.ParseKind(name)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		functions[kind] = code
	}
	if len(m.Functions) == 0 {
		errs = append(errs, errors.New("no functions"))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, errors.Join(errs...))
	}

	obj := &domain.ScriptObject{
		ID:              m.ID,
		TenantID:        m.TenantID,
		Type:            typ,
		Name:            m.Name,
		FunctionScripts: functions,
	}
	for _, s := range m.Scripts {
		obj.Scripts = append(obj.Scripts, domain.Script{Name: s.Name, Value: s.Value})
	}
	if err := obj.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	obj.UpdateHash()
	return obj, nil
}
