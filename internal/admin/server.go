// Package admin serves the module cache administration endpoints over HTTP.
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlanticdynamic/payscript/internal/modcache"
	"github.com/robbyt/go-supervisor/runnables/httpserver"
	"github.com/robbyt/go-supervisor/supervisor"
)

var (
	_ supervisor.Runnable  = (*Server)(nil)
	_ supervisor.Stateable = (*Server)(nil)
	_ supervisor.Readiness = (*Server)(nil)

	_ serverImplementation = (*httpserver.Runner)(nil)
)

const (
	PathClearAll    = "/admin/cache/clear"
	PathTenants     = "/admin/cache/tenants/"
	PathStats       = "/admin/cache/stats"
	tenantClearVerb = "clear"
)

// CacheControl is the part of the module cache the admin surface drives.
type CacheControl interface {
	ClearAll()
	ClearTenant(tenantID int)
	Stats() modcache.Stats
}

// Timeouts bounds the HTTP server. Zero values keep the httpserver defaults.
type Timeouts struct {
	Read  time.Duration
	Write time.Duration
	Idle  time.Duration
	Drain time.Duration
}

// serverImplementation abstracts the go-supervisor httpserver runner.
type serverImplementation interface {
	Run(ctx context.Context) error
	Stop()
	GetState() string
	IsReady() bool
	GetStateChan(ctx context.Context) <-chan string
}

// Server is a supervised HTTP runnable exposing cache administration.
type Server struct {
	address  string
	cache    CacheControl
	timeouts Timeouts
	routes   []httpserver.Route
	logger   *slog.Logger
	server   serverImplementation
}

// Option configures a Server.
type Option func(*Server)

func WithTimeouts(t Timeouts) Option {
	return func(s *Server) {
		s.timeouts = t
	}
}

// WithLogHandler sets a custom log handler.
func WithLogHandler(handler slog.Handler) Option {
	return func(s *Server) {
		if handler != nil {
			s.logger = slog.New(handler)
		}
	}
}

func New(address string, cache CacheControl, opts ...Option) (*Server, error) {
	if address == "" {
		return nil, fmt.Errorf("admin: address is empty")
	}
	if cache == nil {
		return nil, fmt.Errorf("admin: cache is nil")
	}

	s := &Server{
		address: address,
		cache:   cache,
		logger:  slog.Default().WithGroup("admin.Server"),
	}
	for _, opt := range opts {
		opt(s)
	}

	routes, err := s.buildRoutes()
	if err != nil {
		return nil, err
	}
	s.routes = routes

	runner, err := httpserver.NewRunner(httpserver.WithConfigCallback(s.config))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP server runner: %w", err)
	}
	s.server = runner
	return s, nil
}

func (s *Server) buildRoutes() ([]httpserver.Route, error) {
	logRequests := requestLogger(s.logger)
	defs := []struct {
		name    string
		path    string
		handler func(*Server) httpHandler
	}{
		{"cache-clear", PathClearAll, (*Server).handleClearAll},
		{"cache-tenant-clear", PathTenants, (*Server).handleClearTenant},
		{"cache-stats", PathStats, (*Server).handleStats},
	}

	routes := make([]httpserver.Route, 0, len(defs))
	for _, d := range defs {
		route, err := httpserver.NewRouteFromHandlerFunc(d.name, d.path, d.handler(s), logRequests)
		if err != nil {
			return nil, fmt.Errorf("failed to create route %s: %w", d.name, err)
		}
		routes = append(routes, *route)
	}
	return routes, nil
}

func (s *Server) config() (*httpserver.Config, error) {
	var options []httpserver.ConfigOption
	if s.timeouts.Read > 0 {
		options = append(options, httpserver.WithReadTimeout(s.timeouts.Read))
	}
	if s.timeouts.Write > 0 {
		options = append(options, httpserver.WithWriteTimeout(s.timeouts.Write))
	}
	if s.timeouts.Idle > 0 {
		options = append(options, httpserver.WithIdleTimeout(s.timeouts.Idle))
	}
	if s.timeouts.Drain > 0 {
		options = append(options, httpserver.WithDrainTimeout(s.timeouts.Drain))
	}

	cfg, err := httpserver.NewConfig(s.address, s.routes, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP server config: %w", err)
	}
	return cfg, nil
}

// Routes returns the admin routes.
func (s *Server) Routes() []httpserver.Route {
	return s.routes
}

func (s *Server) Address() string {
	return s.address
}

func (s *Server) String() string {
	return "admin.Server"
}

func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting admin server", "address", s.address)
	return s.server.Run(ctx)
}

func (s *Server) Stop() {
	s.logger.Info("Stopping admin server", "address", s.address)
	s.server.Stop()
}

func (s *Server) GetState() string {
	return s.server.GetState()
}

// IsReady reports whether the HTTP listener has reached the Running state.
func (s *Server) IsReady() bool {
	return s.server.IsReady()
}

func (s *Server) GetStateChan(ctx context.Context) <-chan string {
	return s.server.GetStateChan(ctx)
}
