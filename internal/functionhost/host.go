// Package functionhost is the per-tenant facade scripted functions execute through. It resolves
// modules from the shared module cache, bounds execution time and persists the tasks and log
// entries scripts produce.
package functionhost

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/scripting/adhoc"
	"github.com/atlanticdynamic/payscript/internal/scripting/function"
	"github.com/atlanticdynamic/payscript/internal/scripting/loadctx"
)

// DefaultExecutionTimeout bounds a scripted function when no timeout is configured.
const DefaultExecutionTimeout = 30 * time.Second

// ModuleSource is the module cache as seen by the host.
type ModuleSource interface {
	GetModule(
		ctx context.Context,
		db domain.DbContext,
		tenantID int,
		typ domain.ObjectType,
		obj *domain.ScriptObject,
	) (*loadctx.Module, error)
}

// TaskRepository persists tasks.
type TaskRepository interface {
	Create(ctx context.Context, db domain.DbContext, tenantID int, task *domain.Task) error
}

// LogRepository persists script log entries.
type LogRepository interface {
	Create(ctx context.Context, db domain.DbContext, tenantID int, entry *domain.LogEntry) error
}

// Host executes scripted functions for one tenant. The module cache it delegates to is shared
// and outlives the host.
type Host struct {
	tenantID int
	cache    ModuleSource
	db       domain.DbContext
	tasks    TaskRepository
	logs     LogRepository
	minLevel domain.LogLevel
	timeout  time.Duration
	adhoc    *adhoc.Evaluator
	logger   *slog.Logger

	closers   []io.Closer
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

func New(tenantID int, cache ModuleSource, opts ...Option) (*Host, error) {
	if tenantID <= 0 {
		return nil, fmt.Errorf("%w: %d", domain.ErrInvalidTenant, tenantID)
	}
	if cache == nil {
		return nil, ErrNoCache
	}

	h := &Host{
		tenantID: tenantID,
		cache:    cache,
		minLevel: domain.LogInformation,
		timeout:  DefaultExecutionTimeout,
		logger:   slog.Default().WithGroup("functionhost.Host"),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = h.logger.With("tenant_id", tenantID)
	h.adhoc = adhoc.New(adhoc.WithTimeout(h.timeout), adhoc.WithLogHandler(h.logger.Handler()))
	return h, nil
}

func (h *Host) TenantID() int {
	return h.tenantID
}

func (h *Host) ExecutionTimeout() time.Duration {
	return h.timeout
}

func (h *Host) MinLogLevel() domain.LogLevel {
	return h.minLevel
}

// GetModule returns the module of obj for the host tenant.
func (h *Host) GetModule(
	ctx context.Context,
	typ domain.ObjectType,
	obj *domain.ScriptObject,
) (*loadctx.Module, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	return h.cache.GetModule(ctx, h.db, h.tenantID, typ, obj)
}

// Execute invokes the kind entrypoint of obj with rt. Script log calls are routed through
// AddLog in addition to rt. A call running past the execution timeout fails with *TimeoutError.
func (h *Host) Execute(
	ctx context.Context,
	typ domain.ObjectType,
	obj *domain.ScriptObject,
	kind function.Kind,
	rt function.Runtime,
) (any, error) {
	if rt == nil {
		return nil, fmt.Errorf("%w: runtime is nil", ErrHost)
	}
	mod, err := h.GetModule(ctx, typ, obj)
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	result, err := mod.Invoke(execCtx, kind, &hostRuntime{Runtime: rt, host: h, ctx: ctx})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			h.logger.Warn("Scripted function timed out",
				"type", typ, "kind", kind, "limit", h.timeout)
			return nil, &TimeoutError{Type: typ, Kind: kind, Limit: h.timeout}
		}
		return nil, err
	}
	h.logger.Debug("Scripted function executed",
		"type", typ, "kind", kind, "duration", time.Since(start))
	return result, nil
}

// Evaluate runs a one-off snippet bounded by the execution timeout.
func (h *Host) Evaluate(ctx context.Context, code string, input map[string]any) (any, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}
	result, err := h.adhoc.Evaluate(ctx, code, input)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &TimeoutError{Limit: h.timeout}
	}
	return result, err
}

// AddTask persists a task for tenantID.
func (h *Host) AddTask(ctx context.Context, tenantID int, task *domain.Task) error {
	if h.closed.Load() {
		return ErrClosed
	}
	if task == nil {
		return fmt.Errorf("%w: task is nil", ErrHost)
	}
	if h.tasks == nil {
		h.logger.Debug("No task repository, task dropped", "task", task.Name)
		return nil
	}
	if err := h.tasks.Create(ctx, h.db, tenantID, task); err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// AddLog persists entry for tenantID. Entries below the minimum level are dropped without error.
func (h *Host) AddLog(ctx context.Context, tenantID int, entry *domain.LogEntry) error {
	if h.closed.Load() {
		return ErrClosed
	}
	if entry == nil {
		return fmt.Errorf("%w: log entry is nil", ErrHost)
	}
	if entry.Level < h.minLevel || h.logs == nil {
		return nil
	}
	if err := h.logs.Create(ctx, h.db, tenantID, entry); err != nil {
		return fmt.Errorf("failed to create log entry: %w", err)
	}
	return nil
}

// Close releases host-owned resources. The shared module cache is left untouched. Calling Close
// more than once is safe.
func (h *Host) Close() error {
	h.closeOnce.Do(func() {
		h.closed.Store(true)
		var errs []error
		for i := len(h.closers) - 1; i >= 0; i-- {
			if err := h.closers[i].Close(); err != nil {
				errs = append(errs, err)
			}
		}
		h.closeErr = errors.Join(errs...)
		h.logger.Debug("Function host closed")
	})
	return h.closeErr
}
