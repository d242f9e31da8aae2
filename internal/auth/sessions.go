package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "gallery:session:"
	// maxMemorySessions bounds the in-memory store; the oldest sessions are evicted first.
	maxMemorySessions = 10000
)

// SessionStore tracks live sessions so tokens can be revoked before they expire.
type SessionStore interface {
	Create(ctx context.Context, id string, ttl time.Duration) error
	Exists(ctx context.Context, id string) (bool, error)
	Revoke(ctx context.Context, id string) error
	RevokeAll(ctx context.Context) error
}

// MemorySessions keeps sessions in an expirable LRU. All entries share the TTL given at construction.
type MemorySessions struct {
	cache *expirable.LRU[string, time.Time]
}

// NewMemorySessions creates an in-process session store.
func NewMemorySessions(ttl time.Duration) *MemorySessions {
	return &MemorySessions{cache: expirable.NewLRU[string, time.Time](maxMemorySessions, nil, ttl)}
}

func (s *MemorySessions) Create(_ context.Context, id string, _ time.Duration) error {
	s.cache.Add(id, time.Now())
	return nil
}

func (s *MemorySessions) Exists(_ context.Context, id string) (bool, error) {
	_, ok := s.cache.Get(id)
	return ok, nil
}

func (s *MemorySessions) Revoke(_ context.Context, id string) error {
	s.cache.Remove(id)
	return nil
}

func (s *MemorySessions) RevokeAll(_ context.Context) error {
	s.cache.Purge()
	return nil
}

// RedisSessions stores sessions as expiring Redis keys, shared by every server instance.
type RedisSessions struct {
	client *redis.Client
}

// NewRedisSessions creates a Redis-backed session store.
func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client}
}

func (s *RedisSessions) Create(ctx context.Context, id string, ttl time.Duration) error {
	if err := s.client.Set(ctx, sessionKeyPrefix+id, time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

func (s *RedisSessions) Exists(ctx context.Context, id string) (bool, error) {
	n, err := s.client.Exists(ctx, sessionKeyPrefix+id).Result()
	if err != nil {
		return false, fmt.Errorf("lookup session: %w", err)
	}
	return n == 1, nil
}

func (s *RedisSessions) Revoke(ctx context.Context, id string) error {
	return s.client.Del(ctx, sessionKeyPrefix+id).Err()
}

func (s *RedisSessions) RevokeAll(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, sessionKeyPrefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan sessions: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
