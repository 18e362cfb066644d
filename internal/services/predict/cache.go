package predict

import (
	"context"
	"sync"
	"time"

	"stockpulse/internal/domain/models"
	"stockpulse/internal/domain/repository"
	"stockpulse/internal/ml"
)

// DefaultCacheCapacity bounds the model cache when no capacity is
// configured.
const DefaultCacheCapacity = 100

// ModelHandle is one loaded, ready-to-score model.
type ModelHandle struct {
	Classifier       ml.Classifier
	SelectedFeatures []string
	TrainedAt        time.Time
}

// ModelKey identifies one cached model.
type ModelKey struct {
	TenantID  int64
	SymbolID  int64
	ModelType models.ModelType
}

// LoadFunc materializes a model for a key. A (nil, nil) return means the
// artifact does not exist; that outcome is not cached.
type LoadFunc func(ctx context.Context) (*ModelHandle, error)

type inflightLoad struct {
	done   chan struct{}
	handle *ModelHandle
	err    error
}

// ModelCache is a bounded cache of loaded models shared across tenants,
// with tenant-qualified keys. Eviction is strictly by insertion order:
// when full, the oldest-inserted entry goes, no matter how recently it
// was read. Concurrent loads of the same key are collapsed into one.
type ModelCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[ModelKey]*ModelHandle
	order    []ModelKey
	inflight map[ModelKey]*inflightLoad
	metrics  repository.Metrics
}

// NewModelCache creates a cache holding at most capacity models.
func NewModelCache(capacity int, metrics repository.Metrics) *ModelCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &ModelCache{
		capacity: capacity,
		entries:  make(map[ModelKey]*ModelHandle),
		inflight: make(map[ModelKey]*inflightLoad),
		metrics:  metrics,
	}
}

// GetOrLoad returns the cached model for key, loading it at most once
// per absence no matter how many goroutines ask concurrently. A nil
// handle with nil error means no artifact exists for the key.
func (c *ModelCache) GetOrLoad(ctx context.Context, key ModelKey, load LoadFunc) (*ModelHandle, error) {
	c.mu.Lock()
	if h, ok := c.entries[key]; ok {
		c.mu.Unlock()
		c.metrics.RecordCacheEvent("hit")
		return h, nil
	}
	if call, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-call.done:
			return call.handle, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	call := &inflightLoad{done: make(chan struct{})}
	c.inflight[key] = call
	c.mu.Unlock()

	c.metrics.RecordCacheEvent("miss")
	handle, err := load(ctx)

	c.mu.Lock()
	delete(c.inflight, key)
	if err == nil && handle != nil {
		c.insertLocked(key, handle)
	}
	c.mu.Unlock()

	call.handle = handle
	call.err = err
	close(call.done)
	return handle, err
}

// Invalidate drops one entry, so the next read reloads the artifact.
func (c *ModelCache) Invalidate(key ModelKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// InvalidateSymbol drops both model types for a (tenant, symbol).
func (c *ModelCache) InvalidateSymbol(tenantID, symbolID int64) {
	c.Invalidate(ModelKey{TenantID: tenantID, SymbolID: symbolID, ModelType: models.ModelTypeMove})
	c.Invalidate(ModelKey{TenantID: tenantID, SymbolID: symbolID, ModelType: models.ModelTypeDirection})
}

// Len reports the number of cached models.
func (c *ModelCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ModelCache) insertLocked(key ModelKey, h *ModelHandle) {
	if _, ok := c.entries[key]; ok {
		c.entries[key] = h
		return
	}
	for len(c.entries) >= c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.metrics.RecordCacheEvent("evict")
	}
	c.entries[key] = h
	c.order = append(c.order, key)
}
