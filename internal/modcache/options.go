package modcache

import (
	"context"
	"log/slog"
	"time"

	"github.com/atlanticdynamic/payscript/internal/scripting/loadctx"
	"github.com/atlanticdynamic/payscript/internal/scripting/references"
)

// Option configures a Cache.
type Option func(*Cache)

// WithTimeout sets the sliding expiration and the sweep interval. Zero disables caching.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Cache) {
		if timeout >= 0 {
			c.timeout = timeout
		}
	}
}

// WithBinaryProvider sets the secondary store consulted on a miss.
func WithBinaryProvider(provider BinaryProvider) Option {
	return func(c *Cache) {
		c.provider = provider
	}
}

// WithBuilder enables compiling objects on a miss when no binary is persisted.
func WithBuilder(builder BinaryBuilder) Option {
	return func(c *Cache) {
		c.builder = builder
	}
}

// WithReferences restricts the libraries tenant contexts grant to loaded images.
func WithReferences(refs *references.Set) Option {
	return func(c *Cache) {
		c.refs = refs
	}
}

// WithMaxExecutionSteps bounds every call made through modules of this cache.
func WithMaxExecutionSteps(steps uint64) Option {
	return func(c *Cache) {
		c.maxSteps = steps
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithLogHandler sets a custom log handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(c *Cache) {
		if handler != nil {
			c.logger = slog.New(handler)
		}
	}
}

// WithContext sets the parent context for Run.
func WithContext(ctx context.Context) Option {
	return func(c *Cache) {
		c.parentCtx = ctx
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

func (c *Cache) contextOptions() []loadctx.Option {
	opts := []loadctx.Option{loadctx.WithLogger(c.logger.WithGroup("loadctx"))}
	if c.refs != nil {
		opts = append(opts, loadctx.WithReferences(c.refs))
	}
	if c.maxSteps > 0 {
		opts = append(opts, loadctx.WithMaxExecutionSteps(c.maxSteps))
	}
	return opts
}
