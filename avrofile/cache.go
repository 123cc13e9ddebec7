package avrofile

import (
	"sync"

	"github.com/vortexdb/avroscan/resolve"
	"github.com/vortexdb/avroscan/specialize"
)

// HeaderCache avoids re-parsing and re-resolving a writer schema when
// many files or splits share one (common for a table backed by many
// Avro files written by the same producer). It is keyed on the raw
// avro.schema metadata bytes, the way the original source's
// AvroSchemaElement caches a resolved schema per split under its own
// schema fingerprint (be/src/exec/hdfs-avro-scanner.cc) — this is the
// distillation's dropped caching behavior, reinstated here as a
// first-class, explicitly-opt-in component rather than an implicit
// global.
//
// Resolved plans are immutable once built (bindSlot never mutates a
// Plan after Resolve returns), so sharing one *resolve.Plan across
// files with byte-identical schemas is safe without copying.
type HeaderCache struct {
	mu      sync.RWMutex
	entries map[string]cachedPlan
}

type cachedPlan struct {
	plan        *resolve.Plan
	specialized *specialize.Program
}

// NewHeaderCache returns an empty cache.
func NewHeaderCache() *HeaderCache {
	return &HeaderCache{entries: make(map[string]cachedPlan)}
}

func (c *HeaderCache) get(key string) (cachedPlan, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *HeaderCache) put(key string, plan *resolve.Plan, specialized *specialize.Program) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cachedPlan{plan: plan, specialized: specialized}
}

// Len reports the number of distinct writer schemas currently cached.
func (c *HeaderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
