package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ammiranda/tree_changelist/models"
)

// ErrCacheInitialization is returned when the mock cache is configured to fail
var ErrCacheInitialization = errors.New("mock cache initialization failed")

// MockCache is a cache provider that records calls, for tests
type MockCache struct {
	mu              sync.RWMutex
	inner           *MemoryCache
	GetCalls        int
	Hits            int
	SetCalls        int
	InvalidateCalls int
	SetTTLCalls     int
	InitCalls       int
	ShouldFail      bool
}

// NewMockCache creates a new mock cache provider
func NewMockCache() *MockCache {
	return &MockCache{
		inner: NewMemoryCache(),
	}
}

// Initialize performs any necessary setup for the cache provider
func (c *MockCache) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.InitCalls++
	if c.ShouldFail {
		return ErrCacheInitialization
	}
	return nil
}

// GetNodes retrieves the listing from cache if available
func (c *MockCache) GetNodes(ctx context.Context, key string) ([]*models.Node, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.GetCalls++

	if c.ShouldFail {
		return nil, false
	}
	nodes, ok := c.inner.GetNodes(ctx, key)
	if ok {
		c.Hits++
	}
	return nodes, ok
}

// SetNodes stores the listing in cache
func (c *MockCache) SetNodes(ctx context.Context, key string, nodes []*models.Node) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetCalls++

	if !c.ShouldFail {
		c.inner.SetNodes(ctx, key, nodes)
	}
}

// InvalidateCache removes the listing from cache
func (c *MockCache) InvalidateCache(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.InvalidateCalls++

	if c.ShouldFail {
		return ErrCacheInitialization
	}
	return c.inner.InvalidateCache(ctx, key)
}

// SetCacheTTL sets the cache time-to-live duration
func (c *MockCache) SetCacheTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SetTTLCalls++

	if !c.ShouldFail {
		c.inner.SetCacheTTL(ttl)
	}
}

// Reset resets all counters and state
func (c *MockCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner = NewMemoryCache()
	c.GetCalls = 0
	c.Hits = 0
	c.SetCalls = 0
	c.InvalidateCalls = 0
	c.SetTTLCalls = 0
	c.InitCalls = 0
	c.ShouldFail = false
}

// GetCallCounts returns the number of times each method was called
func (c *MockCache) GetCallCounts() (get, set, invalidate, setTTL, init int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.GetCalls, c.SetCalls, c.InvalidateCalls, c.SetTTLCalls, c.InitCalls
}

// HitCount returns how many GetNodes calls were served from cache
func (c *MockCache) HitCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Hits
}

// SetShouldFail makes the mock cache fail all operations
func (c *MockCache) SetShouldFail(shouldFail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ShouldFail = shouldFail
}
