package kv

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is the string-keyed, string-valued persistence surface the
// attempt ledger runs on. Implementations must return ErrNotFound for
// absent keys so callers can distinguish "first run" from real faults.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// RedisStore backs the Store contract with a Redis client.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, error) {
	val, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return val, err
}

func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	return s.rdb.Set(ctx, key, value, 0).Err()
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

// MemoryStore is an in-process Store for tests and single-node dev runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string

	// FailWrites makes Set/Delete return an error, for exercising the
	// ledger's fail-soft paths.
	FailWrites bool
	// FailReads makes Get return an error other than ErrNotFound.
	FailReads bool
}

var errMemoryStoreFault = errors.New("kv: simulated store fault")

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.FailReads {
		return "", errMemoryStoreFault
	}
	val, ok := s.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return val, nil
}

func (s *MemoryStore) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errMemoryStoreFault
	}
	s.data[key] = value
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errMemoryStoreFault
	}
	delete(s.data, key)
	return nil
}
