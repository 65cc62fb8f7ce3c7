package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/ammiranda/tree_changelist/models"
)

// Cache backends selectable through CACHE_BACKEND
const (
	KindNone     = "none"
	KindMemory   = "memory"
	KindRedis    = "redis"
	KindDynamoDB = "dynamodb"
)

// DefaultTTL is used until SetCacheTTL is called
const DefaultTTL = 5 * time.Minute

// CacheProvider defines the interface for cache implementations.
// It caches the ordered node listing of an entity; the changelist view model
// is always rebuilt from the listing.
type CacheProvider interface {
	// GetNodes retrieves the listing stored under key.
	// Returns:
	//   - The cached nodes in depth-first order
	//   - A boolean indicating whether the listing was found and still fresh
	GetNodes(ctx context.Context, key string) ([]*models.Node, bool)

	// SetNodes stores the listing under key for the configured TTL
	SetNodes(ctx context.Context, key string, nodes []*models.Node)

	// InvalidateCache removes the listing stored under key.
	// This is called whenever the entity's tree is modified.
	InvalidateCache(ctx context.Context, key string) error

	// SetCacheTTL sets the cache time-to-live duration.
	SetCacheTTL(ttl time.Duration)

	// Initialize performs any necessary setup for the cache provider,
	// such as checking the connection or creating the backing table.
	Initialize(ctx context.Context) error
}

// Key returns the cache key of an entity's node listing
func Key(entity string) string {
	return "tree:" + entity
}

// NewProvider creates and initializes the provider named by kind
func NewProvider(ctx context.Context, kind string, ttl time.Duration) (CacheProvider, error) {
	var provider CacheProvider
	switch kind {
	case KindNone, "":
		provider = NoopCache{}
	case KindMemory:
		provider = NewMemoryCache()
	case KindRedis:
		provider = NewRedisCache(RedisAddr())
	case KindDynamoDB:
		dynamo, err := NewDynamoDBCache(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create dynamodb cache: %w", err)
		}
		provider = dynamo
	default:
		return nil, fmt.Errorf("unknown cache backend %q", kind)
	}

	if ttl > 0 {
		provider.SetCacheTTL(ttl)
	}
	if err := provider.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize %s cache: %w", kind, err)
	}
	return provider, nil
}

// NoopCache never stores anything
type NoopCache struct{}

func (NoopCache) GetNodes(ctx context.Context, key string) ([]*models.Node, bool) {
	return nil, false
}

func (NoopCache) SetNodes(ctx context.Context, key string, nodes []*models.Node) {}

func (NoopCache) InvalidateCache(ctx context.Context, key string) error {
	return nil
}

func (NoopCache) SetCacheTTL(ttl time.Duration) {}

func (NoopCache) Initialize(ctx context.Context) error {
	return nil
}

func cloneNodes(nodes []*models.Node) []*models.Node {
	out := make([]*models.Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}
