package repository

import (
	"context"
	"time"
)

// noopCache satisfies CacheRepository when no Redis is reachable, e.g. a
// one-shot run from CI. Every lookup misses; every write is dropped.
type noopCache struct{}

func NewNoopCacheRepository() CacheRepository {
	return noopCache{}
}

func (noopCache) Get(ctx context.Context, key string) (string, error) { return "", nil }

func (noopCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (noopCache) Delete(ctx context.Context, key string) error { return nil }

func (noopCache) Exists(ctx context.Context, key string) (bool, error) { return false, nil }

func (noopCache) GetJSON(ctx context.Context, key string, dest interface{}) error { return nil }

func (noopCache) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return nil
}

func (noopCache) Keys(ctx context.Context, pattern string) ([]string, error) { return nil, nil }
