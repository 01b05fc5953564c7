package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/robbyt/go-supervisor/runnables/httpserver"
)

type httpHandler = func(w http.ResponseWriter, r *http.Request)

type errorResponse struct {
	Error string `json:"error"`
}

type clearResponse struct {
	Cleared  string `json:"cleared"`
	TenantID int    `json:"tenantId,omitempty"`
}

func (s *Server) handleClearAll() httpHandler {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodPost) {
			return
		}
		s.cache.ClearAll()
		writeJSON(w, http.StatusOK, clearResponse{Cleared: "all"})
	}
}

// handleClearTenant serves POST /admin/cache/tenants/{id}/clear.
func (s *Server) handleClearTenant() httpHandler {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, PathTenants), "/")
		if len(parts) != 2 || parts[1] != tenantClearVerb {
			writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
			return
		}
		if !allow(w, r, http.MethodPost) {
			return
		}
		tenantID, err := strconv.Atoi(parts[0])
		if err != nil || tenantID <= 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid tenant id: " + parts[0]})
			return
		}
		s.cache.ClearTenant(tenantID)
		writeJSON(w, http.StatusOK, clearResponse{Cleared: "tenant", TenantID: tenantID})
	}
}

func (s *Server) handleStats() httpHandler {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allow(w, r, http.MethodGet, http.MethodHead) {
			return
		}
		writeJSON(w, http.StatusOK, s.cache.Stats())
	}
}

func allow(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	if slices.Contains(methods, r.Method) {
		return true
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed"})
	return false
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// requestLogger logs every admin request, raising the level for client and server errors.
func requestLogger(logger *slog.Logger) httpserver.HandlerFunc {
	return func(rp *httpserver.RequestProcessor) {
		start := time.Now()
		r := rp.Request()
		rp.Next()

		status := rp.Writer().Status()
		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		logger.Log(r.Context(), level, "Admin request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start))
	}
}
