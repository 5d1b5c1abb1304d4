package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore wraps a primary Store with a Redis read-through cache.
// Writes go to the primary and refresh the cache; reads check Redis
// first then fall back to the primary. ListKeys always hits the
// primary: key enumeration must see the durable truth.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func cacheKey(key string) string { return "backup:" + key }

func (s *CachedStore) Save(ctx context.Context, key string, content []byte) bool {
	if !s.primary.Save(ctx, key, content) {
		return false
	}
	s.rdb.Set(ctx, cacheKey(key), content, s.ttl)
	return true
}

func (s *CachedStore) Read(ctx context.Context, key string) ([]byte, bool) {
	data, err := s.rdb.Get(ctx, cacheKey(key)).Bytes()
	if err == nil {
		return data, true
	}

	content, ok := s.primary.Read(ctx, key)
	if !ok {
		return nil, false
	}
	s.rdb.Set(ctx, cacheKey(key), content, s.ttl)
	return content, true
}

func (s *CachedStore) Delete(ctx context.Context, key string) bool {
	if !s.primary.Delete(ctx, key) {
		return false
	}
	s.rdb.Del(ctx, cacheKey(key))
	return true
}

func (s *CachedStore) Exists(ctx context.Context, key string) bool {
	if n, err := s.rdb.Exists(ctx, cacheKey(key)).Result(); err == nil && n > 0 {
		return true
	}
	return s.primary.Exists(ctx, key)
}

func (s *CachedStore) ListKeys(ctx context.Context, prefix string) []string {
	return s.primary.ListKeys(ctx, prefix)
}
