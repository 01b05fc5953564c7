package function

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"sync"
)

var (
	// ErrFunction is the base error for function package errors.
	ErrFunction = errors.New("function error")

	// ErrUnknownKind indicates a function kind name or value is not known.
	ErrUnknownKind = fmt.Errorf("%w: unknown function kind", ErrFunction)

	// ErrQueryNotSupported is returned by runtimes without a query backend.
	ErrQueryNotSupported = fmt.Errorf("%w: query not supported", ErrFunction)
)

// Capability is a set of host operations exposed to a scripted function.
type Capability uint8

const (
	CapParameters Capability = 1 << iota
	CapAttributes
	CapLog
	CapQuery
)

// Capability sets per function family.
const (
	CapsCase    = CapParameters | CapAttributes | CapLog
	CapsPayroll = CapParameters | CapAttributes | CapLog
	CapsReport  = CapParameters | CapAttributes | CapLog | CapQuery
)

// Has reports whether every capability in other is present.
func (c Capability) Has(other Capability) bool {
	return c&other == other
}

// String lists the capability names.
func (c Capability) String() string {
	var names []string
	for _, item := range []struct {
		cap  Capability
		name string
	}{
		{CapParameters, "parameters"},
		{CapAttributes, "attributes"},
		{CapLog, "log"},
		{CapQuery, "query"},
	} {
		if c.Has(item.cap) {
			names = append(names, item.name)
		}
	}
	return strings.Join(names, "|")
}

// ParameterAccess reads and writes function parameters.
type ParameterAccess interface {
	Parameter(name string) (any, bool)
	SetParameter(name string, value any) error
}

// AttributeAccess reads and writes attributes of the owning object.
type AttributeAccess interface {
	Attribute(name string) (any, bool)
	SetAttribute(name string, value any) error
}

// Logger receives log messages emitted by a script.
type Logger interface {
	Log(level slog.Level, message string)
}

// Querier executes named queries on behalf of report functions.
type Querier interface {
	Query(ctx context.Context, name string, params map[string]any) (any, error)
}

// Runtime is the capability interface a scripted function receives as its only argument.
type Runtime interface {
	TenantID() int
	ParameterAccess
	AttributeAccess
	Logger
	Querier
}

// MapRuntime is an in-memory Runtime. It is safe for concurrent use.
type MapRuntime struct {
	tenantID int
	logger   *slog.Logger
	queries  map[string]func(context.Context, map[string]any) (any, error)

	mu         sync.RWMutex
	parameters map[string]any
	attributes map[string]any
}

var _ Runtime = (*MapRuntime)(nil)

// NewMapRuntime creates a runtime for the given tenant seeded with parameters.
func NewMapRuntime(tenantID int, parameters map[string]any, logger *slog.Logger) *MapRuntime {
	if logger == nil {
		logger = slog.Default().WithGroup("function.MapRuntime")
	}
	params := make(map[string]any, len(parameters))
	maps.Copy(params, parameters)
	return &MapRuntime{
		tenantID:   tenantID,
		logger:     logger,
		queries:    make(map[string]func(context.Context, map[string]any) (any, error)),
		parameters: params,
		attributes: make(map[string]any),
	}
}

// RegisterQuery adds a named query handler.
func (r *MapRuntime) RegisterQuery(
	name string,
	fn func(ctx context.Context, params map[string]any) (any, error),
) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries[name] = fn
}

func (r *MapRuntime) TenantID() int {
	return r.tenantID
}

func (r *MapRuntime) Parameter(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.parameters[name]
	return v, ok
}

func (r *MapRuntime) SetParameter(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parameters[name] = value
	return nil
}

func (r *MapRuntime) Attribute(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.attributes[name]
	return v, ok
}

func (r *MapRuntime) SetAttribute(name string, value any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attributes[name] = value
	return nil
}

// Attributes returns a copy of the attributes set so far.
func (r *MapRuntime) Attributes() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.attributes)
}

func (r *MapRuntime) Log(level slog.Level, message string) {
	r.logger.Log(context.Background(), level, message, "tenant_id", r.tenantID)
}

func (r *MapRuntime) Query(ctx context.Context, name string, params map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.queries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrQueryNotSupported, name)
	}
	return fn(ctx, params)
}
