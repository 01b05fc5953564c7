package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/atlanticdynamic/payscript/internal/interpolation"
	gotoml "github.com/pelletier/go-toml/v2"
)

// NewConfig loads configuration from a TOML file
func NewConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	return NewConfigFromBytes(data)
}

// NewConfigFromReader loads configuration from an io.Reader providing TOML data
func NewConfigFromReader(reader io.Reader) (*Config, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}
	return NewConfigFromBytes(data)
}

// NewConfigFromBytes decodes TOML over Default, expands environment references and validates
// the result. Unknown keys are rejected.
func NewConfigFromBytes(data []byte) (*Config, error) {
	cfg := Default()

	dec := gotoml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, decodeError(err))
	}

	if err := interpolation.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToValidateConfig, err)
	}
	return cfg, nil
}

// decodeError adds line context to go-toml errors. A strict-mode error also matches
// *DecodeError, so it is checked first.
func decodeError(err error) error {
	var strict *gotoml.StrictMissingError
	if errors.As(err, &strict) {
		return fmt.Errorf("unknown keys: %w\n%s", err, strict.String())
	}
	var decErr *gotoml.DecodeError
	if errors.As(err, &decErr) {
		row, col := decErr.Position()
		return fmt.Errorf("line %d, column %d: %w", row, col, err)
	}
	return err
}
