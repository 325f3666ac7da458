// Package caches provides the read-through arrival cache backed by a store
// that enforces expiry itself, so a hit never needs a freshness check.
package caches

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Store is a TTL-enforcing key/value store. Get reports a miss with the
// boolean rather than an error; errors mean the store itself failed.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

// ReadThrough serves cached payloads and fills misses from a fetch function.
// Concurrent misses for the same key are not coalesced; each caller fetches
// independently and the last write wins.
type ReadThrough struct {
	store Store
	ttl   time.Duration
}

func NewReadThrough(store Store, ttl time.Duration) *ReadThrough {
	return &ReadThrough{store: store, ttl: ttl}
}

// GetOrFetch returns the cached payload verbatim on a hit, without touching
// upstream. On a miss it runs fetch, writes the result with the configured
// TTL and returns it. A failed cache write only costs the caching; the
// payload is still served.
func (r *ReadThrough) GetOrFetch(ctx context.Context, key string, fetch func(context.Context) ([]byte, error)) ([]byte, error) {
	cached, found, err := r.store.Get(ctx, key)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache read failed")
	} else if found {
		return cached, nil
	}

	payload, err := fetch(ctx)
	if err != nil {
		return nil, err
	}

	if err := r.store.SetWithTTL(ctx, key, payload, r.ttl); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Cache write failed")
	}

	return payload, nil
}
