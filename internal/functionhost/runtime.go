package functionhost

import (
	"context"
	"log/slog"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/scripting/function"
)

// hostRuntime forwards script log calls to the host log repository.
type hostRuntime struct {
	function.Runtime
	host *Host
	ctx  context.Context
}

func (r *hostRuntime) Log(level slog.Level, message string) {
	r.Runtime.Log(level, message)
	entry := domain.NewLogEntry(domain.LogLevelFromSlog(level), message)
	entry.Owner = "script"
	if err := r.host.AddLog(r.ctx, r.host.tenantID, entry); err != nil {
		r.host.logger.Warn("Failed to persist script log entry", "error", err)
	}
}
