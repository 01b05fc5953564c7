// Package config loads and validates the payscript TOML configuration.
package config

import (
	"slices"
	"time"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/logging"
	"github.com/atlanticdynamic/payscript/internal/scripting/compiler"
)

// VersionLatest is the only configuration version understood.
const VersionLatest = "v1"

// Store backend names accepted in store.backends.
const (
	BackendBolt  = "bolt"
	BackendRedis = "redis"
	BackendSQL   = "sql"
)

// Config is the root configuration.
type Config struct {
	Version  string   `toml:"version"`
	Logging  Logging  `toml:"logging"`
	Compiler Compiler `toml:"compiler"`
	Cache    Cache    `toml:"cache"`
	Host     Host     `toml:"host"`
	Store    Store    `toml:"store"`
	Admin    Admin    `toml:"admin"`
}

type Logging struct {
	Format logging.Format `toml:"format"`
	Level  string         `toml:"level"`
	Output string         `toml:"output"  env_interpolation:"yes"`
}

// Compiler selects the dialect and libraries every script is compiled against.
type Compiler struct {
	LanguageVersion string   `toml:"language_version"`
	References      []string `toml:"references"`
	Product         string   `toml:"product"`
	AssemblyVersion string   `toml:"assembly_version"`
}

// Cache configures the module cache. A zero timeout disables caching.
type Cache struct {
	Timeout           Duration `toml:"timeout"`
	MaxExecutionSteps uint64   `toml:"max_execution_steps"`
}

type Host struct {
	ExecutionTimeout Duration        `toml:"execution_timeout"`
	MinLogLevel      domain.LogLevel `toml:"min_log_level"`
}

// Store lists the binary providers consulted on a cache miss, in order.
type Store struct {
	Backends []string   `toml:"backends"`
	Bolt     BoltStore  `toml:"bolt"`
	Redis    RedisStore `toml:"redis"`
	SQL      SQLStore   `toml:"sql"`
}

type BoltStore struct {
	Path string `toml:"path" env_interpolation:"yes"`
}

type RedisStore struct {
	Address  string   `toml:"address"  env_interpolation:"yes"`
	Password string   `toml:"password" env_interpolation:"yes"`
	DB       int      `toml:"db"`
	Prefix   string   `toml:"prefix"`
	TTL      Duration `toml:"ttl"`
}

type SQLStore struct {
	Driver  string `toml:"driver"`
	DSN     string `toml:"dsn"     env_interpolation:"yes"`
	Migrate bool   `toml:"migrate"`
}

// Admin configures the HTTP admin surface. An empty address disables it.
type Admin struct {
	Address      string   `toml:"address" env_interpolation:"yes"`
	ReadTimeout  Duration `toml:"read_timeout"`
	WriteTimeout Duration `toml:"write_timeout"`
	DrainTimeout Duration `toml:"drain_timeout"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() *Config {
	return &Config{
		Version: VersionLatest,
		Logging: Logging{
			Format: logging.FormatText,
			Level:  "info",
			Output: "stderr",
		},
		Compiler: Compiler{
			LanguageVersion: string(compiler.DefaultLanguageVersion),
			References:      []string{"json", "math", "time", "struct"},
			Product:         "payscript",
			AssemblyVersion: "1.0.0",
		},
		Cache: Cache{
			Timeout: Duration(30 * time.Minute),
		},
		Host: Host{
			ExecutionTimeout: Duration(30 * time.Second),
			MinLogLevel:      domain.LogInformation,
		},
		Store: Store{
			Redis: RedisStore{
				Prefix: "payscript:binary",
				TTL:    Duration(24 * time.Hour),
			},
		},
		Admin: Admin{
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(10 * time.Second),
			DrainTimeout: Duration(5 * time.Second),
		},
	}
}

// HasBackend reports whether name is listed in store.backends.
func (s Store) HasBackend(name string) bool {
	return slices.Contains(s.Backends, name)
}
