package cache

import (
	"context"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/ammiranda/tree_changelist/models"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// RedisCache implements CacheProvider using Redis
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisAddr builds the server address from REDIS_HOST and REDIS_PORT
func RedisAddr() string {
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		redisHost = "localhost"
	}
	redisPort := os.Getenv("REDIS_PORT")
	if redisPort == "" {
		redisPort = "6379"
	}
	return net.JoinHostPort(redisHost, redisPort)
}

// NewRedisCache creates a new Redis cache provider
func NewRedisCache(addr string) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       0,
	})

	return &RedisCache{
		client: client,
		ttl:    DefaultTTL,
	}
}

// Initialize checks the connection
func (c *RedisCache) Initialize(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetNodes retrieves the listing from cache if available
func (c *RedisCache) GetNodes(ctx context.Context, key string) ([]*models.Node, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			slog.WarnContext(ctx, "redis cache read failed", "key", key, "error", err)
		}
		return nil, false
	}

	var nodes []*models.Node
	if err := json.Unmarshal(data, &nodes); err != nil {
		return nil, false
	}
	return nodes, true
}

// SetNodes stores the listing in cache
func (c *RedisCache) SetNodes(ctx context.Context, key string, nodes []*models.Node) {
	data, err := json.Marshal(nodes)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		slog.WarnContext(ctx, "redis cache write failed", "key", key, "error", err)
	}
}

// InvalidateCache removes the listing from cache
func (c *RedisCache) InvalidateCache(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

// SetCacheTTL sets the cache time-to-live duration
func (c *RedisCache) SetCacheTTL(ttl time.Duration) {
	c.ttl = ttl
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	return c.client.Close()
}
