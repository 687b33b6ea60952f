package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/oplift/buyplan/internal/config"
	"github.com/oplift/buyplan/internal/domain"
	"github.com/redis/go-redis/v9"
)

const (
	allocationKeyPrefix   = "allocation:result"
	allocationScanBatches = 100
)

// ResultCache memoizes allocation results per request. Entries are keyed by
// a canonical hash of the full request and expire on a TTL, so concurrent
// invocations never share mutable state (the engine itself stays pure).
type ResultCache interface {
	Get(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, bool, error)
	Set(ctx context.Context, req domain.AllocationRequest, result *domain.AllocationResult) error
	InvalidateAll(ctx context.Context) error
}

type redisResultCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopResultCache struct{}

// NewResultCache returns a redis-backed cache when enabled, otherwise a
// noop implementation so callers never branch.
func NewResultCache(cfg config.CacheConfig) (ResultCache, error) {
	if !cfg.Enabled {
		return &noopResultCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisResultCache{client: client, ttl: ttl}, nil
}

// NewNoopResultCache returns a cache that stores nothing.
func NewNoopResultCache() ResultCache {
	return &noopResultCache{}
}

func (c *redisResultCache) Get(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, bool, error) {
	key, err := RequestKey(req)
	if err != nil {
		return nil, false, err
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var result domain.AllocationResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, false, fmt.Errorf("decode allocation result cache: %w", err)
	}

	return &result, true, nil
}

func (c *redisResultCache) Set(ctx context.Context, req domain.AllocationRequest, result *domain.AllocationResult) error {
	key, err := RequestKey(req)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode allocation result cache: %w", err)
	}

	if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisResultCache) InvalidateAll(ctx context.Context) error {
	return deleteKeysWithPrefix(ctx, c.client, allocationKeyPrefix, allocationScanBatches)
}

func (n *noopResultCache) Get(ctx context.Context, req domain.AllocationRequest) (*domain.AllocationResult, bool, error) {
	return nil, false, nil
}

func (n *noopResultCache) Set(ctx context.Context, req domain.AllocationRequest, result *domain.AllocationResult) error {
	return nil
}

func (n *noopResultCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// RequestKey derives the canonical cache key for a request. Marshaling a
// struct keeps field order stable, so identical requests hash identically
// regardless of how the caller ordered its JSON.
func RequestKey(req domain.AllocationRequest) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode allocation request for cache key: %w", err)
	}
	sum := sha1.Sum(payload)
	return fmt.Sprintf("%s:%s", allocationKeyPrefix, hex.EncodeToString(sum[:])), nil
}
