package predict

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"stockpulse/internal/domain/models"
)

type countingMetrics struct {
	mu     sync.Mutex
	events map[string]int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{events: make(map[string]int)}
}

func (m *countingMetrics) RecordCacheEvent(event string) {
	m.mu.Lock()
	m.events[event]++
	m.mu.Unlock()
}

func (m *countingMetrics) count(event string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[event]
}

func (*countingMetrics) RecordTraining(string, string, string)               {}
func (*countingMetrics) RecordPrediction(string, string)                     {}
func (*countingMetrics) RecordVerification(string, string)                   {}
func (*countingMetrics) RecordError(string)                                  {}
func (*countingMetrics) RecordModelAccuracy(string, string, string, float64) {}
func (*countingMetrics) RecordBatchDuration(string, float64)                 {}

func moveKey(tenantID, symbolID int64) ModelKey {
	return ModelKey{TenantID: tenantID, SymbolID: symbolID, ModelType: models.ModelTypeMove}
}

func staticLoad(h *ModelHandle) LoadFunc {
	return func(context.Context) (*ModelHandle, error) { return h, nil }
}

func TestCacheEvictsByInsertionOrder(t *testing.T) {
	metrics := newCountingMetrics()
	c := NewModelCache(3, metrics)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if _, err := c.GetOrLoad(ctx, moveKey(1, i), staticLoad(&ModelHandle{})); err != nil {
			t.Fatal(err)
		}
	}

	// Read the first-inserted key. FIFO ignores recency, so it must
	// still be the one evicted next.
	if _, err := c.GetOrLoad(ctx, moveKey(1, 1), staticLoad(nil)); err != nil {
		t.Fatal(err)
	}
	if metrics.count("hit") != 1 {
		t.Fatalf("hits = %d, want 1", metrics.count("hit"))
	}

	if _, err := c.GetOrLoad(ctx, moveKey(1, 4), staticLoad(&ModelHandle{})); err != nil {
		t.Fatal(err)
	}
	if metrics.count("evict") != 1 {
		t.Fatalf("evicts = %d, want 1", metrics.count("evict"))
	}
	if c.Len() != 3 {
		t.Fatalf("len = %d, want 3", c.Len())
	}

	// Keys 2, 3, 4 are resident; key 1 reloads.
	var loads int
	reload := func(context.Context) (*ModelHandle, error) {
		loads++
		return &ModelHandle{}, nil
	}
	for _, sym := range []int64{2, 3, 4} {
		if _, err := c.GetOrLoad(ctx, moveKey(1, sym), reload); err != nil {
			t.Fatal(err)
		}
	}
	if loads != 0 {
		t.Fatalf("resident keys reloaded %d times", loads)
	}
	if _, err := c.GetOrLoad(ctx, moveKey(1, 1), reload); err != nil {
		t.Fatal(err)
	}
	if loads != 1 {
		t.Fatalf("evicted key loads = %d, want 1", loads)
	}
}

func TestCacheKeysAreTenantQualified(t *testing.T) {
	c := NewModelCache(10, newCountingMetrics())
	ctx := context.Background()

	var loads int32
	load := func(context.Context) (*ModelHandle, error) {
		atomic.AddInt32(&loads, 1)
		return &ModelHandle{}, nil
	}

	if _, err := c.GetOrLoad(ctx, moveKey(1, 7), load); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrLoad(ctx, moveKey(2, 7), load); err != nil {
		t.Fatal(err)
	}
	if got := atomic.LoadInt32(&loads); got != 2 {
		t.Fatalf("loads = %d, want 2: same symbol under two tenants must not share an entry", got)
	}
}

func TestCacheCollapsesConcurrentLoads(t *testing.T) {
	c := NewModelCache(10, newCountingMetrics())
	ctx := context.Background()
	key := moveKey(1, 1)

	var loads int32
	started := make(chan struct{})
	release := make(chan struct{})
	load := func(context.Context) (*ModelHandle, error) {
		atomic.AddInt32(&loads, 1)
		close(started)
		<-release
		return &ModelHandle{}, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 10)
	handles := make([]*ModelHandle, 10)

	wg.Add(1)
	go func() {
		defer wg.Done()
		handles[0], errs[0] = c.GetOrLoad(ctx, key, load)
	}()
	<-started

	for i := 1; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = c.GetOrLoad(ctx, key, func(context.Context) (*ModelHandle, error) {
				atomic.AddInt32(&loads, 1)
				return &ModelHandle{}, nil
			})
		}(i)
	}
	close(release)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: %v", i, errs[i])
		}
		if handles[i] == nil {
			t.Fatalf("goroutine %d got nil handle", i)
		}
	}
	// The in-flight record is registered before the load runs, so every
	// later caller either waits on it or hits the cached entry.
	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Fatalf("loads = %d, want 1", got)
	}
}

func TestCacheDoesNotCacheAbsenceOrErrors(t *testing.T) {
	c := NewModelCache(10, newCountingMetrics())
	ctx := context.Background()
	key := moveKey(1, 1)

	var loads int
	absent := func(context.Context) (*ModelHandle, error) {
		loads++
		return nil, nil
	}
	for i := 0; i < 2; i++ {
		h, err := c.GetOrLoad(ctx, key, absent)
		if err != nil || h != nil {
			t.Fatalf("absent load: handle=%v err=%v", h, err)
		}
	}
	if loads != 2 {
		t.Fatalf("absent loads = %d, want 2: absence must not be cached", loads)
	}
	if c.Len() != 0 {
		t.Fatalf("len = %d, want 0", c.Len())
	}

	boom := errors.New("boom")
	loads = 0
	failing := func(context.Context) (*ModelHandle, error) {
		loads++
		return nil, boom
	}
	for i := 0; i < 2; i++ {
		if _, err := c.GetOrLoad(ctx, key, failing); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want boom", err)
		}
	}
	if loads != 2 {
		t.Fatalf("failing loads = %d, want 2: errors must not be cached", loads)
	}
}

func TestCacheInvalidate(t *testing.T) {
	c := NewModelCache(3, newCountingMetrics())
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		if _, err := c.GetOrLoad(ctx, moveKey(1, i), staticLoad(&ModelHandle{})); err != nil {
			t.Fatal(err)
		}
	}

	c.Invalidate(moveKey(1, 2))
	if c.Len() != 2 {
		t.Fatalf("len = %d after invalidate, want 2", c.Len())
	}

	var loads int
	reload := func(context.Context) (*ModelHandle, error) {
		loads++
		return &ModelHandle{}, nil
	}
	if _, err := c.GetOrLoad(ctx, moveKey(1, 2), reload); err != nil {
		t.Fatal(err)
	}
	if loads != 1 {
		t.Fatalf("invalidated key loads = %d, want 1", loads)
	}

	// Insertion positions shift after invalidation; the remaining
	// oldest key (symbol 1) must still evict first.
	if _, err := c.GetOrLoad(ctx, moveKey(1, 4), staticLoad(&ModelHandle{})); err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrLoad(ctx, moveKey(1, 1), reload); err != nil {
		t.Fatal(err)
	}
	if loads != 2 {
		t.Fatalf("loads = %d, want 2: symbol 1 should have been evicted", loads)
	}
}

func TestCacheDefaultCapacityFIFOAtBoundary(t *testing.T) {
	metrics := newCountingMetrics()
	c := NewModelCache(0, metrics) // default capacity
	ctx := context.Background()

	for i := int64(1); i <= DefaultCacheCapacity; i++ {
		if _, err := c.GetOrLoad(ctx, moveKey(1, i), staticLoad(&ModelHandle{})); err != nil {
			t.Fatal(err)
		}
	}
	if c.Len() != DefaultCacheCapacity {
		t.Fatalf("len = %d, want %d", c.Len(), DefaultCacheCapacity)
	}
	if metrics.count("evict") != 0 {
		t.Fatalf("evicts before overflow = %d", metrics.count("evict"))
	}

	if _, err := c.GetOrLoad(ctx, moveKey(1, DefaultCacheCapacity+1), staticLoad(&ModelHandle{})); err != nil {
		t.Fatal(err)
	}
	if c.Len() != DefaultCacheCapacity {
		t.Fatalf("len = %d after overflow, want %d", c.Len(), DefaultCacheCapacity)
	}

	// The first-inserted key is the one gone. Reloading it evicts the
	// next-oldest (symbol 2) in turn; symbol 3 stays resident.
	var loads int
	reload := func(context.Context) (*ModelHandle, error) {
		loads++
		return &ModelHandle{}, nil
	}
	if _, err := c.GetOrLoad(ctx, moveKey(1, 1), reload); err != nil {
		t.Fatal(err)
	}
	if loads != 1 {
		t.Fatal("first-inserted key survived overflow")
	}
	if _, err := c.GetOrLoad(ctx, moveKey(1, 3), reload); err != nil {
		t.Fatal(err)
	}
	if loads != 1 {
		t.Fatalf("loads = %d: symbol 3 should still be resident", loads)
	}
}
