package client

import (
	"context"
	"errors"
	"fmt"
	"jewelry-checkout/internal/config"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// TokenCache stores gateway access tokens for their lifetime.
type TokenCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, token string, ttl time.Duration) error
}

type memoryTokenCache struct {
	mu      sync.Mutex
	entries map[string]memoryToken
	now     func() time.Time
}

type memoryToken struct {
	token     string
	expiresAt time.Time
}

func NewMemoryTokenCache() TokenCache {
	return &memoryTokenCache{
		entries: make(map[string]memoryToken),
		now:     time.Now,
	}
}

func (c *memoryTokenCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return "", false, nil
	}
	if !c.now().Before(entry.expiresAt) {
		delete(c.entries, key)
		return "", false, nil
	}
	return entry.token, true, nil
}

func (c *memoryTokenCache) Set(_ context.Context, key, token string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = memoryToken{token: token, expiresAt: c.now().Add(ttl)}
	return nil
}

type redisTokenCache struct {
	client *redis.Client
}

// NewRedisTokenCache shares tokens between replicas.
func NewRedisTokenCache(client *redis.Client) TokenCache {
	return &redisTokenCache{client: client}
}

func (c *redisTokenCache) Get(ctx context.Context, key string) (string, bool, error) {
	token, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return token, true, nil
}

func (c *redisTokenCache) Set(ctx context.Context, key, token string, ttl time.Duration) error {
	return c.client.Set(ctx, key, token, ttl).Err()
}

func InitRedisClient(cfg config.Redis, log *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	log.Info("redis connected", zap.String("addr", cfg.Addr))
	return rdb, nil
}
