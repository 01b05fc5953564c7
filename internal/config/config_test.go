package config

import (
	"strings"
	"testing"
	"time"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/logging"
	gotoml "github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_File(t *testing.T) {
	t.Setenv("PAYSCRIPT_DATA", "/srv/payscript")

	cfg, err := NewConfig("testdata/payscript.toml")
	require.NoError(t, err)

	assert.Equal(t, VersionLatest, cfg.Version)
	assert.Equal(t, logging.FormatJSON, cfg.Logging.Format)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"json", "math", "re"}, cfg.Compiler.References)
	assert.Equal(t, "acme-payroll", cfg.Compiler.Product)
	assert.Equal(t, 10*time.Minute, cfg.Cache.Timeout.AsDuration())
	assert.Equal(t, uint64(1000000), cfg.Cache.MaxExecutionSteps)
	assert.Equal(t, 5*time.Second, cfg.Host.ExecutionTimeout.AsDuration())
	assert.Equal(t, domain.LogWarning, cfg.Host.MinLogLevel)
	assert.Equal(t, []string{BackendRedis, BackendBolt}, cfg.Store.Backends)
	assert.Equal(t, "/srv/payscript/images.db", cfg.Store.Bolt.Path)
	assert.Equal(t, "localhost:6379", cfg.Store.Redis.Address)
	assert.Equal(t, 2, cfg.Store.Redis.DB)
	assert.Equal(t, time.Hour, cfg.Store.Redis.TTL.AsDuration())
	assert.Equal(t, "payscript:binary", cfg.Store.Redis.Prefix, "defaults survive partial sections")
	assert.Equal(t, 2*time.Second, cfg.Admin.DrainTimeout.AsDuration())
	assert.Equal(t, 10*time.Second, cfg.Admin.ReadTimeout.AsDuration())
	assert.True(t, cfg.Store.HasBackend(BackendBolt))
	assert.False(t, cfg.Store.HasBackend(BackendSQL))
}

func TestNewConfig_MissingFile(t *testing.T) {
	_, err := NewConfig("testdata/nope.toml")
	require.ErrorIs(t, err, ErrFailedToLoadConfig)
}

func TestNewConfigFromBytes_Defaults(t *testing.T) {
	cfg, err := NewConfigFromBytes(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestNewConfigFromReader(t *testing.T) {
	cfg, err := NewConfigFromReader(strings.NewReader("[cache]\ntimeout = \"0s\"\n"))
	require.NoError(t, err)
	assert.Zero(t, cfg.Cache.Timeout)
}

func TestNewConfigFromBytes_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
	}{
		{"syntax", "[cache\n", "line"},
		{"unknown key", "[cache]\nttl = \"1m\"\n", "unknown keys"},
		{"bad duration", "[cache]\ntimeout = \"soon\"\n", "soon"},
		{"bad log level", "[host]\nmin_log_level = \"Loud\"\n", "Loud"},
		{"undefined variable", "[store.sql]\ndsn = \"${PAYSCRIPT_UNSET_DSN}\"\n", "PAYSCRIPT_UNSET_DSN"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfigFromBytes([]byte(tt.input))
			require.ErrorIs(t, err, ErrFailedToLoadConfig)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestNewConfigFromBytes_UnknownKeys(t *testing.T) {
	_, err := NewConfigFromBytes([]byte("[cache]\ntimeout = \"1m\"\nttl = \"1m\"\n"))
	require.ErrorIs(t, err, ErrFailedToLoadConfig)

	var strict *gotoml.StrictMissingError
	require.ErrorAs(t, err, &strict)
	assert.Contains(t, err.Error(), "unknown keys")
	assert.NotContains(t, err.Error(), "line 3, column")
	assert.Contains(t, err.Error(), "ttl")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		message string
	}{
		{"unsupported version", func(c *Config) { c.Version = "v9" }, "unsupported config version"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "unknown format"},
		{"log level", func(c *Config) { c.Logging.Level = "loud" }, "unknown log level"},
		{"log output", func(c *Config) { c.Logging.Output = "syslog" }, "unsupported output"},
		{"language version", func(c *Config) { c.Compiler.LanguageVersion = "1999" }, "1999"},
		{"reference", func(c *Config) { c.Compiler.References = []string{"os"} }, `"os"`},
		{"negative cache timeout", func(c *Config) { c.Cache.Timeout = -1 }, "cache: timeout"},
		{"zero execution timeout", func(c *Config) { c.Host.ExecutionTimeout = 0 }, "execution_timeout"},
		{"min log level", func(c *Config) { c.Host.MinLogLevel = 42 }, "min_log_level"},
		{"unknown backend", func(c *Config) { c.Store.Backends = []string{"s3"} }, `unknown backend "s3"`},
		{"duplicate backend", func(c *Config) {
			c.Store.Backends = []string{BackendBolt, BackendBolt}
			c.Store.Bolt.Path = "/tmp/x.db"
		}, "duplicate backend"},
		{"bolt path", func(c *Config) { c.Store.Backends = []string{BackendBolt} }, "store.bolt: path"},
		{"redis address", func(c *Config) { c.Store.Backends = []string{BackendRedis} }, "store.redis: address"},
		{"sql driver", func(c *Config) {
			c.Store.Backends = []string{BackendSQL}
			c.Store.SQL = SQLStore{Driver: "mysql", DSN: "x"}
		}, "unsupported driver"},
		{"sql dsn", func(c *Config) {
			c.Store.Backends = []string{BackendSQL}
			c.Store.SQL.Driver = "postgres"
		}, "store.sql: dsn"},
		{"admin address", func(c *Config) { c.Admin.Address = "8081" }, "admin: invalid address"},
		{"admin timeout", func(c *Config) {
			c.Admin.Address = ":8081"
			c.Admin.DrainTimeout = -1
		}, "drain_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestValidate_JoinsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "loud"
	cfg.Host.ExecutionTimeout = 0
	cfg.Store.Backends = []string{"s3"}

	err := cfg.Validate()
	require.Error(t, err)
	for _, part := range []string{"loud", "execution_timeout", "s3"} {
		assert.Contains(t, err.Error(), part)
	}
}

func TestNewConfigFromBytes_ValidationError(t *testing.T) {
	_, err := NewConfigFromBytes([]byte("[host]\nexecution_timeout = \"0s\"\n"))
	require.ErrorIs(t, err, ErrFailedToValidateConfig)
}

func TestString(t *testing.T) {
	t.Setenv("PAYSCRIPT_DATA", "/srv/payscript")
	cfg, err := NewConfig("testdata/payscript.toml")
	require.NoError(t, err)

	out := cfg.String()
	for _, part := range []string{
		"Payscript Config (v1)", "Logging", "json", "Compiler", "json, math, re",
		"Cache", "10m0s", "Store", "(2 backends)", "/srv/payscript/images.db",
		"localhost:6379", "Admin", "127.0.0.1:8081",
	} {
		assert.Contains(t, out, part)
	}

	disabled := Default()
	disabled.Cache.Timeout = 0
	assert.Contains(t, disabled.String(), "(disabled)")
}
