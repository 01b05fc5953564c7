package modcache

import (
	"fmt"
	"time"

	"github.com/atlanticdynamic/payscript/internal/scripting/loadctx"
)

// Sweep evicts entries unused for longer than the timeout and unloads the contexts of tenants
// left without entries. A failure on one entry is logged and the sweep continues. It returns the
// number of evicted entries.
func (c *Cache) Sweep() int {
	if !c.Enabled() {
		return 0
	}
	cutoff := c.now().Add(-c.timeout)
	evicted := 0

	c.entries.Range(func(k, v any) bool {
		ok, err := c.sweepEntry(k, v, cutoff)
		if err != nil {
			c.logger.Error("Failed to sweep cache entry", "key", fmt.Sprint(k), "error", err)
			return true
		}
		if ok {
			evicted++
		}
		return true
	})

	live := make(map[int]struct{})
	c.entries.Range(func(k, _ any) bool {
		if key, ok := k.(Key); ok {
			live[key.tenantID] = struct{}{}
		}
		return true
	})
	c.contexts.Range(func(k, v any) bool {
		tenantID, _ := k.(int)
		if _, ok := live[tenantID]; ok {
			return true
		}
		c.unloadIdle(tenantID, v)
		return true
	})

	if evicted > 0 {
		c.evictions.Add(int64(evicted))
		c.logger.Debug("Cache sweep completed", "evicted", evicted, "remaining", c.Len())
	}
	return evicted
}

// sweepEntry evicts one stale entry. An entry touched between the staleness check and the
// delete is put back.
func (c *Cache) sweepEntry(k, v any, cutoff time.Time) (evicted bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic: %v", ErrCache, r)
		}
	}()

	e, ok := v.(*entry)
	if !ok {
		return false, fmt.Errorf("%w: unexpected entry type %T", ErrCache, v)
	}
	if e.usedSince(cutoff) {
		return false, nil
	}
	if !c.entries.CompareAndDelete(k, v) {
		return false, nil
	}
	if e.usedSince(cutoff) {
		c.entries.LoadOrStore(k, e)
		return false, nil
	}
	return true, nil
}

// unloadIdle unloads a tenant context found without entries. Loads in flight hold the tenant
// guard, so the entries are checked again once they have finished.
func (c *Cache) unloadIdle(tenantID int, v any) {
	guard := c.tenantGuard(tenantID)
	guard.Lock()
	defer guard.Unlock()

	if c.hasEntries(tenantID) {
		return
	}
	if !c.contexts.CompareAndDelete(tenantID, v) {
		return
	}
	if lc, ok := v.(*loadctx.Context); ok {
		lc.Unload()
		c.logger.Debug("Idle tenant context unloaded", "tenant_id", tenantID)
	}
}
