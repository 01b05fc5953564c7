// Package modcache is the process-wide, tenant-keyed cache of loaded script modules.
//
// Entries are addressed by (tenant, object type, script hash) and expire after the configured
// timeout without use. Every tenant owns one loadctx.Context; it is unloaded when the tenant is
// cleared or when the sweep finds no remaining entry for it.
package modcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/atlanticdynamic/payscript/internal/domain"
	"github.com/atlanticdynamic/payscript/internal/finitestate"
	"github.com/atlanticdynamic/payscript/internal/scripting/builder"
	"github.com/atlanticdynamic/payscript/internal/scripting/image"
	"github.com/atlanticdynamic/payscript/internal/scripting/loadctx"
	"github.com/atlanticdynamic/payscript/internal/scripting/references"
	"github.com/atlanticdynamic/payscript/internal/store"
	"golang.org/x/sync/singleflight"
)

// DefaultTimeout is the sliding expiration used when none is configured.
const DefaultTimeout = 30 * time.Minute

// Attempts to load into a fresh tenant context when the current one is unloaded mid-load.
const maxLoadAttempts = 3

// entry is a cached module plus its last use, stored as Unix nanoseconds.
type entry struct {
	key      Key
	module   *loadctx.Module
	lastUsed atomic.Int64
}

func newEntry(key Key, module *loadctx.Module, now time.Time) *entry {
	e := &entry{key: key, module: module}
	e.lastUsed.Store(now.UnixNano())
	return e
}

func (e *entry) touch(now time.Time) {
	e.lastUsed.Store(now.UnixNano())
}

func (e *entry) usedSince(cutoff time.Time) bool {
	return e.lastUsed.Load() >= cutoff.UnixNano()
}

// Cache maps keys to loaded modules. It is safe for concurrent use.
type Cache struct {
	timeout  time.Duration
	provider BinaryProvider
	builder  BinaryBuilder
	refs     *references.Set
	maxSteps uint64
	now      func() time.Time

	entries  sync.Map // Key -> *entry
	contexts sync.Map // tenant id -> *loadctx.Context
	guards   sync.Map // tenant id -> *sync.RWMutex, read-held by loads, write-held by the sweep
	group    singleflight.Group

	loads     atomic.Int64
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64

	logger *slog.Logger
	fsm    finitestate.Machine

	parentCtx context.Context
	runMu     sync.Mutex
	runCancel context.CancelFunc
}

// New creates a cache. With a zero timeout nothing is cached and every lookup loads fresh.
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		timeout:   DefaultTimeout,
		now:       time.Now,
		logger:    slog.Default().WithGroup("modcache.Cache"),
		parentCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}

	machine, err := finitestate.New(c.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	c.fsm = machine
	return c, nil
}

// Enabled reports whether modules are cached.
func (c *Cache) Enabled() bool {
	return c.timeout > 0
}

// Timeout returns the sliding expiration.
func (c *Cache) Timeout() time.Duration {
	return c.timeout
}

// GetModule returns the module for obj compiled against typ, loading it into the tenant's
// context on a miss. db is passed through to the binary provider.
func (c *Cache) GetModule(
	ctx context.Context,
	db domain.DbContext,
	tenantID int,
	typ domain.ObjectType,
	obj *domain.ScriptObject,
) (*loadctx.Module, error) {
	if obj == nil {
		return nil, ErrNilObject
	}
	key, err := NewKey(tenantID, typ, obj.ScriptHash)
	if err != nil {
		return nil, err
	}
	if obj.TenantID != 0 && obj.TenantID != tenantID {
		return nil, fmt.Errorf("%w: object %d of tenant %d requested by tenant %d",
			ErrTenantMismatch, obj.ID, obj.TenantID, tenantID)
	}

	if !c.Enabled() {
		c.misses.Add(1)
		return c.loadFresh(ctx, db, key, obj)
	}

	if mod, ok := c.lookup(key); ok {
		c.hits.Add(1)
		return mod, nil
	}
	c.misses.Add(1)

	v, err, _ := c.group.Do(key.String(), func() (any, error) {
		if mod, ok := c.lookup(key); ok {
			return mod, nil
		}
		return c.load(ctx, db, key, obj)
	})
	if err != nil {
		return nil, err
	}
	return v.(*loadctx.Module), nil
}

// lookup returns a live cached module and bumps its last use.
func (c *Cache) lookup(key Key) (*loadctx.Module, bool) {
	v, ok := c.entries.Load(key)
	if !ok {
		return nil, false
	}
	e, ok := v.(*entry)
	if !ok || e.module.Context().IsUnloaded() {
		c.entries.CompareAndDelete(key, v)
		return nil, false
	}
	e.touch(c.now())
	// A concurrent sweep may have evicted the entry before the touch.
	if current, ok := c.entries.Load(key); !ok || current != v {
		return nil, false
	}
	return e.module, true
}

// load resolves the binary, loads it into the tenant context and inserts the entry. When
// another caller inserted first, its module is returned and this load is discarded.
func (c *Cache) load(
	ctx context.Context,
	db domain.DbContext,
	key Key,
	obj *domain.ScriptObject,
) (*loadctx.Module, error) {
	binary, err := c.resolveBinary(ctx, db, key, obj)
	if err != nil {
		return nil, err
	}

	for range maxLoadAttempts {
		mod, retry, err := c.loadInto(key, binary)
		if err != nil {
			return nil, err
		}
		if !retry {
			return mod, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLoadRetriesExhausted, key)
}

// loadInto makes one attempt at loading binary into the tenant context and caching it. It holds
// the tenant guard so the sweep cannot unload the context between the insert and the return.
// retry is set when the context was unloaded mid-attempt.
func (c *Cache) loadInto(key Key, binary []byte) (mod *loadctx.Module, retry bool, err error) {
	guard := c.tenantGuard(key.tenantID)
	guard.RLock()
	defer guard.RUnlock()

	lc, err := c.tenantContext(key.tenantID)
	if err != nil {
		return nil, false, err
	}
	mod, err = lc.LoadFromBinary(binary)
	if errors.Is(err, loadctx.ErrContextUnloaded) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	c.loads.Add(1)

	e := newEntry(key, mod, c.now())
	actual, loaded := c.entries.LoadOrStore(key, e)
	if lc.IsUnloaded() {
		c.entries.CompareAndDelete(key, e)
		return nil, true, nil
	}
	if loaded {
		if winner, ok := actual.(*entry); ok && !winner.module.Context().IsUnloaded() {
			winner.touch(c.now())
			return winner.module, false, nil
		}
		c.entries.Store(key, e)
	}
	c.logger.Debug("Module cached", "key", key.String(), "assembly", mod.Name())
	return mod, false, nil
}

func (c *Cache) tenantGuard(tenantID int) *sync.RWMutex {
	v, _ := c.guards.LoadOrStore(tenantID, &sync.RWMutex{})
	return v.(*sync.RWMutex)
}

// hasEntries reports whether any entry belongs to the tenant.
func (c *Cache) hasEntries(tenantID int) bool {
	found := false
	c.entries.Range(func(k, _ any) bool {
		if key, ok := k.(Key); ok && key.tenantID == tenantID {
			found = true
		}
		return !found
	})
	return found
}

// loadFresh loads into a private context that is never shared or cached.
func (c *Cache) loadFresh(
	ctx context.Context,
	db domain.DbContext,
	key Key,
	obj *domain.ScriptObject,
) (*loadctx.Module, error) {
	binary, err := c.resolveBinary(ctx, db, key, obj)
	if err != nil {
		return nil, err
	}
	lc, err := loadctx.New(key.tenantID, c.contextOptions()...)
	if err != nil {
		return nil, err
	}
	mod, err := lc.LoadFromBinary(binary)
	if err != nil {
		lc.Unload()
		return nil, err
	}
	c.loads.Add(1)
	return mod, nil
}

// resolveBinary takes the object's binary, then the provider's, then compiles on demand.
func (c *Cache) resolveBinary(
	ctx context.Context,
	db domain.DbContext,
	key Key,
	obj *domain.ScriptObject,
) ([]byte, error) {
	if len(obj.Binary) > 0 {
		return obj.Binary, nil
	}

	if c.provider != nil {
		binary, err := c.provider.GetBinary(ctx, db, key.tenantID, key.typ, obj.ID, obj.ScriptHash)
		switch {
		case err == nil && len(binary) > 0:
			name, ok := c.persistedMatches(binary, obj)
			if ok {
				return binary, nil
			}
			c.logger.Warn("Ignoring persisted binary of another script version",
				"key", key.String(), "object_id", obj.ID, "image", name)
		case err != nil && !errors.Is(err, store.ErrBinaryNotFound):
			return nil, fmt.Errorf("binary provider: %w", err)
		}
	}

	if c.builder != nil {
		result, err := c.builder.BuildObject(obj)
		if err != nil {
			return nil, err
		}
		if saver, ok := c.provider.(BinarySaver); ok {
			err := saver.SaveBinary(ctx, db, key.tenantID, key.typ, obj.ID, obj.ScriptHash, result.Binary)
			if err != nil {
				c.logger.Warn("Failed to persist compiled binary", "key", key.String(), "error", err)
			}
		}
		return result.Binary, nil
	}

	return nil, &MissingBinaryError{TenantID: key.tenantID, Type: key.typ, ObjectID: obj.ID}
}

// persistedMatches reports whether a provider binary was compiled from the current content of
// obj. A mismatch is handled like a missing binary.
func (c *Cache) persistedMatches(binary []byte, obj *domain.ScriptObject) (string, bool) {
	name, err := image.PeekName(binary)
	if err != nil {
		return "", false
	}
	return name, name == builder.AssemblyName(obj)
}

// tenantContext returns the live context of a tenant, creating it on first use.
func (c *Cache) tenantContext(tenantID int) (*loadctx.Context, error) {
	if v, ok := c.contexts.Load(tenantID); ok {
		lc := v.(*loadctx.Context)
		if !lc.IsUnloaded() {
			return lc, nil
		}
		c.contexts.CompareAndDelete(tenantID, v)
	}

	lc, err := loadctx.New(tenantID, c.contextOptions()...)
	if err != nil {
		return nil, err
	}
	actual, loaded := c.contexts.LoadOrStore(tenantID, lc)
	if loaded {
		lc.Unload()
		return actual.(*loadctx.Context), nil
	}
	c.logger.Debug("Tenant context created", "tenant_id", tenantID)
	return lc, nil
}

// ClearAll removes every entry and unloads every tenant context.
func (c *Cache) ClearAll() {
	c.entries.Range(func(k, _ any) bool {
		c.entries.Delete(k)
		return true
	})
	c.contexts.Range(func(k, v any) bool {
		if c.contexts.CompareAndDelete(k, v) {
			v.(*loadctx.Context).Unload()
		}
		return true
	})
	c.logger.Info("Module cache cleared")
}

// ClearTenant removes the entries of one tenant and unloads its context.
func (c *Cache) ClearTenant(tenantID int) {
	removed := 0
	c.entries.Range(func(k, _ any) bool {
		if key, ok := k.(Key); ok && key.tenantID == tenantID {
			c.entries.Delete(k)
			removed++
		}
		return true
	})
	if v, ok := c.contexts.LoadAndDelete(tenantID); ok {
		v.(*loadctx.Context).Unload()
	}
	c.logger.Info("Tenant modules cleared", "tenant_id", tenantID, "entries", removed)
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	n := 0
	c.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Tenants lists the tenants holding a live context, sorted.
func (c *Cache) Tenants() []int {
	var ids []int
	c.contexts.Range(func(k, _ any) bool {
		ids = append(ids, k.(int))
		return true
	})
	slices.Sort(ids)
	return ids
}
