package config

import (
	"errors"
	"fmt"
	"net"
	"slices"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/logging"
	"github.com/atlanticdynamic/payscript/internal/logging/writers"
	"github.com/atlanticdynamic/payscript/internal/scripting/compiler"
	"github.com/atlanticdynamic/payscript/internal/scripting/references"
)

var sqlDrivers = []string{"postgres", "sqlite3"}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if c.Version == "" {
		c.Version = VersionLatest
	}
	if c.Version != VersionLatest {
		return fmt.Errorf("%w: %s", ErrUnsupportedConfigVer, c.Version)
	}

	return errors.Join(
		c.Logging.validate(),
		c.Compiler.validate(),
		c.Cache.validate(),
		c.Host.validate(),
		c.Store.validate(),
		c.Admin.validate(),
	)
}

func (l Logging) validate() error {
	var errz []error
	if !l.Format.Valid() {
		errz = append(errz, fmt.Errorf("logging: unknown format %q", l.Format))
	}
	if _, err := logging.ParseLevel(l.Level); err != nil {
		errz = append(errz, fmt.Errorf("logging: %w", err))
	}
	if !writers.Valid(l.Output) {
		errz = append(errz, fmt.Errorf("logging: unsupported output %q", l.Output))
	}
	return errors.Join(errz...)
}

func (c Compiler) validate() error {
	var errz []error
	if _, err := compiler.ParseLanguageVersion(c.LanguageVersion); err != nil {
		errz = append(errz, fmt.Errorf("compiler: %w", err))
	}
	if _, err := references.Resolve(c.References); err != nil {
		errz = append(errz, fmt.Errorf("compiler: %w", err))
	}
	return errors.Join(errz...)
}

func (c Cache) validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("cache: timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

func (h Host) validate() error {
	var errz []error
	if h.ExecutionTimeout <= 0 {
		errz = append(errz, fmt.Errorf("host: execution_timeout must be positive, got %s", h.ExecutionTimeout))
	}
	if h.MinLogLevel < domain.LogVerbose || h.MinLogLevel > domain.LogFatal {
		errz = append(errz, fmt.Errorf("host: invalid min_log_level %s", h.MinLogLevel))
	}
	return errors.Join(errz...)
}

func (s Store) validate() error {
	var errz []error
	seen := make(map[string]bool, len(s.Backends))
	for _, backend := range s.Backends {
		if seen[backend] {
			errz = append(errz, fmt.Errorf("store: duplicate backend %q", backend))
			continue
		}
		seen[backend] = true

		switch backend {
		case BackendBolt:
			if s.Bolt.Path == "" {
				errz = append(errz, errors.New("store.bolt: path is required"))
			}
		case BackendRedis:
			if s.Redis.Address == "" {
				errz = append(errz, errors.New("store.redis: address is required"))
			}
			if s.Redis.TTL < 0 {
				errz = append(errz, errors.New("store.redis: ttl must not be negative"))
			}
		case BackendSQL:
			if !slices.Contains(sqlDrivers, s.SQL.Driver) {
				errz = append(errz, fmt.Errorf("store.sql: unsupported driver %q", s.SQL.Driver))
			}
			if s.SQL.DSN == "" {
				errz = append(errz, errors.New("store.sql: dsn is required"))
			}
		default:
			errz = append(errz, fmt.Errorf("store: unknown backend %q", backend))
		}
	}
	return errors.Join(errz...)
}

func (a Admin) validate() error {
	if a.Address == "" {
		return nil
	}
	var errz []error
	if _, _, err := net.SplitHostPort(a.Address); err != nil {
		errz = append(errz, fmt.Errorf("admin: invalid address %q: %w", a.Address, err))
	}
	for name, d := range map[string]Duration{
		"read_timeout":  a.ReadTimeout,
		"write_timeout": a.WriteTimeout,
		"drain_timeout": a.DrainTimeout,
	} {
		if d < 0 {
			errz = append(errz, fmt.Errorf("admin: %s must not be negative", name))
		}
	}
	return errors.Join(errz...)
}
