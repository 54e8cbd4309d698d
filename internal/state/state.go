// Package state provides the shared key-value layer: a read-through cache
// with per-entry TTL and a fixed-window request counter for rate limiting.
// Both run on the same Redis instance but use distinct key namespaces.
//
// Store failures never escape this package as errors. A failing get is a
// cache miss, a failing set is a no-op, a failing counter reads as zero:
// losing the KV store degrades the service to "always recompute", it does
// not take requests down.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"HeritageAtlas/pkg/logger"

	"github.com/go-redis/redis/v8"
)

const (
	cachePrefix = "cache:"
	ratePrefix  = "rate:"
)

// Store is the slice of the key-value protocol this package needs:
// GET, SET key value EX seconds, INCR, EXPIRE.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
}

// ErrKeyNotFound is returned by Store implementations when a key is
// absent, as opposed to a store failure.
var ErrKeyNotFound = errors.New("key not found")

type redisStore struct {
	client *redis.Client
}

// NewRedisStore adapts a Redis client to the Store interface.
func NewRedisStore(client *redis.Client) Store {
	return &redisStore{client: client}
}

func (r *redisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyNotFound
	}
	return val, err
}

func (r *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisStore) Incr(ctx context.Context, key string) (int64, error) {
	return r.client.Incr(ctx, key).Result()
}

func (r *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return r.client.Expire(ctx, key, ttl).Err()
}

// IsMiss reports whether err means "key absent" rather than a store failure.
func IsMiss(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// Service exposes the cache and rate limiting operations.
type Service struct {
	store Store
	log   *logger.Logger
}

// NewService creates a Service over the given store.
func NewService(store Store) *Service {
	return &Service{
		store: store,
		log:   logger.New("state"),
	}
}

// CacheSet stores a JSON-serialized value under the cache namespace. A zero
// ttl stores the entry without expiry. Failures are logged and swallowed.
func (s *Service) CacheSet(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		s.log.WithField("key", key).WithError(err).Warn("cache set skipped: value not serializable")
		return
	}
	if err := s.store.Set(ctx, cachePrefix+key, string(data), ttl); err != nil {
		s.log.WithField("key", key).WithError(err).Warn("cache set failed")
	}
}

// CacheGet loads a cached value into out, returning true on a hit. Store
// failures and undecodable entries are logged and reported as misses.
func (s *Service) CacheGet(ctx context.Context, key string, out interface{}) bool {
	data, err := s.store.Get(ctx, cachePrefix+key)
	if err != nil {
		if !IsMiss(err) {
			s.log.WithField("key", key).WithError(err).Warn("cache get failed")
		}
		return false
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		s.log.WithField("key", key).WithError(err).Warn("cache entry undecodable")
		return false
	}
	return true
}

// Cached is the read-through decorator: it returns the cached value for key
// when present, otherwise invokes resolve, stores the result under ttl and
// returns it. Errors from resolve pass through untouched and nothing is
// cached for them.
func Cached[T any](ctx context.Context, s *Service, key string, ttl time.Duration, resolve func(context.Context) (T, error)) (T, error) {
	var cached T
	if s.CacheGet(ctx, key, &cached) {
		return cached, nil
	}

	fresh, err := resolve(ctx)
	if err != nil {
		return fresh, err
	}
	s.CacheSet(ctx, key, fresh, ttl)
	return fresh, nil
}
