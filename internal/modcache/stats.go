package modcache

import "time"

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Enabled   bool          `json:"enabled"`
	Timeout   time.Duration `json:"timeout"`
	Entries   int           `json:"entries"`
	Tenants   []int         `json:"tenants"`
	Loads     int64         `json:"loads"`
	Hits      int64         `json:"hits"`
	Misses    int64         `json:"misses"`
	Evictions int64         `json:"evictions"`
}

func (c *Cache) Stats() Stats {
	return Stats{
		Enabled:   c.Enabled(),
		Timeout:   c.timeout,
		Entries:   c.Len(),
		Tenants:   c.Tenants(),
		Loads:     c.loads.Load(),
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
}
