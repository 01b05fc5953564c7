// Package engine assembles the scripting pipeline from configuration: compiler, builder,
// binary stores, module cache, admin server and per-tenant function hosts.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/atlanticdynamic/payscript/internal/admin"
	"github.com/atlanticdynamic/payscript/internal/config"
	"github.com/atlanticdynamic/payscript/internal/functionhost"
	"github.com/atlanticdynamic/payscript/internal/modcache"
	"github.com/atlanticdynamic/payscript/internal/scripting/builder"
	"github.com/atlanticdynamic/payscript/internal/scripting/compiler"
	"github.com/atlanticdynamic/payscript/internal/scripting/references"
	"github.com/atlanticdynamic/payscript/internal/store/boltstore"
	"github.com/atlanticdynamic/payscript/internal/store/redisstore"
	"github.com/atlanticdynamic/payscript/internal/store/sqlstore"
	"github.com/robbyt/go-supervisor/supervisor"
)

// Engine owns the process-wide pipeline components.
type Engine struct {
	cfg      *config.Config
	compiler *compiler.Compiler
	builder  *builder.Builder
	cache    *modcache.Cache
	admin    *admin.Server
	sql      *sqlstore.Store
	closers  []io.Closer
	handler  slog.Handler
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogHandler sets the handler every component logs through.
func WithLogHandler(handler slog.Handler) Option {
	return func(e *Engine) {
		if handler != nil {
			e.handler = handler
		}
	}
}

// New builds an engine for cfg. Stores are opened in the order of store.backends. ctx bounds
// store connection and also parents the cache runnable.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("engine: config is nil")
	}
	e := &Engine{cfg: cfg, handler: slog.Default().Handler()}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = slog.New(e.handler).WithGroup("engine.Engine")

	if err := e.build(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}
	return e, nil
}

func (e *Engine) build(ctx context.Context) error {
	refs, err := references.Resolve(e.cfg.Compiler.References)
	if err != nil {
		return err
	}

	e.compiler, err = compiler.New(
		compiler.WithLanguageVersion(e.cfg.Compiler.LanguageVersion),
		compiler.WithReferences(refs),
		compiler.WithLogHandler(e.handler),
	)
	if err != nil {
		return fmt.Errorf("failed to create compiler: %w", err)
	}

	e.builder, err = builder.New(e.compiler,
		builder.WithAssemblyInfo(e.cfg.Compiler.Product, e.cfg.Compiler.AssemblyVersion),
		builder.WithLogHandler(e.handler),
	)
	if err != nil {
		return fmt.Errorf("failed to create builder: %w", err)
	}

	providers, err := e.openStores(ctx)
	if err != nil {
		return err
	}

	cacheOpts := []modcache.Option{
		modcache.WithTimeout(e.cfg.Cache.Timeout.AsDuration()),
		modcache.WithBuilder(e.builder),
		modcache.WithReferences(refs),
		modcache.WithMaxExecutionSteps(e.cfg.Cache.MaxExecutionSteps),
		modcache.WithLogHandler(e.handler),
		modcache.WithContext(ctx),
	}
	if len(providers) > 0 {
		cacheOpts = append(cacheOpts, modcache.WithBinaryProvider(providers))
	}
	e.cache, err = modcache.New(cacheOpts...)
	if err != nil {
		return fmt.Errorf("failed to create module cache: %w", err)
	}

	if addr := e.cfg.Admin.Address; addr != "" {
		e.admin, err = admin.New(addr, e.cache,
			admin.WithTimeouts(admin.Timeouts{
				Read:  e.cfg.Admin.ReadTimeout.AsDuration(),
				Write: e.cfg.Admin.WriteTimeout.AsDuration(),
				Drain: e.cfg.Admin.DrainTimeout.AsDuration(),
			}),
			admin.WithLogHandler(e.handler),
		)
		if err != nil {
			return fmt.Errorf("failed to create admin server: %w", err)
		}
	}

	e.logger.Debug("Engine ready",
		"language", e.compiler.LanguageVersion(),
		"references", refs.Names(),
		"backends", e.cfg.Store.Backends,
		"cache_enabled", e.cache.Enabled())
	return nil
}

func (e *Engine) openStores(ctx context.Context) (modcache.ChainProvider, error) {
	var chain modcache.ChainProvider
	for _, backend := range e.cfg.Store.Backends {
		switch backend {
		case config.BackendBolt:
			st, err := boltstore.Open(e.cfg.Store.Bolt.Path, boltstore.WithLogHandler(e.handler))
			if err != nil {
				return nil, fmt.Errorf("failed to open bolt store: %w", err)
			}
			e.closers = append(e.closers, st)
			chain = append(chain, st)

		case config.BackendRedis:
			rc := e.cfg.Store.Redis
			st, err := redisstore.Dial(ctx, rc.Address, rc.Password, rc.DB,
				redisstore.WithPrefix(rc.Prefix),
				redisstore.WithTTL(rc.TTL.AsDuration()),
				redisstore.WithLogHandler(e.handler),
			)
			if err != nil {
				return nil, fmt.Errorf("failed to connect to redis: %w", err)
			}
			e.closers = append(e.closers, st)
			chain = append(chain, st)

		case config.BackendSQL:
			sc := e.cfg.Store.SQL
			st, err := sqlstore.Open(ctx, sc.Driver, sc.DSN, sqlstore.WithLogHandler(e.handler))
			if err != nil {
				return nil, fmt.Errorf("failed to open sql store: %w", err)
			}
			e.closers = append(e.closers, st)
			if sc.Migrate {
				if err := st.Migrate(ctx); err != nil {
					return nil, fmt.Errorf("failed to migrate sql store: %w", err)
				}
			}
			e.sql = st
			chain = append(chain, st)

		default:
			return nil, fmt.Errorf("unknown store backend %q", backend)
		}
	}
	return chain, nil
}

func (e *Engine) Config() *config.Config {
	return e.cfg
}

func (e *Engine) Compiler() *compiler.Compiler {
	return e.compiler
}

func (e *Engine) Builder() *builder.Builder {
	return e.builder
}

func (e *Engine) Cache() *modcache.Cache {
	return e.cache
}

// Admin returns the admin server, or nil when no address is configured.
func (e *Engine) Admin() *admin.Server {
	return e.admin
}

// Runnables lists what a supervisor runs, in start order.
func (e *Engine) Runnables() []supervisor.Runnable {
	runnables := []supervisor.Runnable{e.cache}
	if e.admin != nil {
		runnables = append(runnables, e.admin)
	}
	return runnables
}

// NewHost returns a function host for tenantID configured from the host section. With the sql
// backend, tasks and log entries are persisted through it.
func (e *Engine) NewHost(tenantID int, opts ...functionhost.Option) (*functionhost.Host, error) {
	base := []functionhost.Option{
		functionhost.WithExecutionTimeout(e.cfg.Host.ExecutionTimeout.AsDuration()),
		functionhost.WithMinLogLevel(e.cfg.Host.MinLogLevel),
		functionhost.WithLogHandler(e.handler),
	}
	if e.sql != nil {
		base = append(base,
			functionhost.WithTaskRepository(sqlstore.NewTaskRepository(e.sql)),
			functionhost.WithLogRepository(sqlstore.NewLogRepository(e.sql)),
		)
	}
	return functionhost.New(tenantID, e.cache, append(base, opts...)...)
}

// Close unloads every cached module and closes the stores in reverse order.
func (e *Engine) Close() error {
	if e.cache != nil {
		e.cache.ClearAll()
	}
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
