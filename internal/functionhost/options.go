package functionhost

import (
	"io"
	"log/slog"
	"time"

	"github.com/atlanticdynamic/payscript/internal/domain"
)

// Option configures a Host.
type Option func(*Host)

// WithDbContext sets the handle passed to the binary provider and repositories.
func WithDbContext(db domain.DbContext) Option {
	return func(h *Host) {
		h.db = db
	}
}

// WithTaskRepository persists tasks added by scripts.
func WithTaskRepository(repo TaskRepository) Option {
	return func(h *Host) {
		h.tasks = repo
	}
}

// WithLogRepository persists log entries at or above the minimum level.
func WithLogRepository(repo LogRepository) Option {
	return func(h *Host) {
		h.logs = repo
	}
}

// WithMinLogLevel drops log entries below level.
func WithMinLogLevel(level domain.LogLevel) Option {
	return func(h *Host) {
		h.minLevel = level
	}
}

// WithExecutionTimeout bounds every scripted function call.
func WithExecutionTimeout(timeout time.Duration) Option {
	return func(h *Host) {
		if timeout > 0 {
			h.timeout = timeout
		}
	}
}

// WithCloser registers a host-owned resource released by Close.
func WithCloser(c io.Closer) Option {
	return func(h *Host) {
		if c != nil {
			h.closers = append(h.closers, c)
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithLogHandler sets a custom log handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(h *Host) {
		if handler != nil {
			h.logger = slog.New(handler)
		}
	}
}
