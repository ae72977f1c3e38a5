package state

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the subset of *redis.Client used by RedisStore.
type RedisClient interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
}

// RedisStore keeps values under "<namespace>:<key>" and metadata in a hash at
// "<namespace>:<key>:meta".
type RedisStore struct {
	client    RedisClient
	namespace string
	ttl       time.Duration
}

// NewRedisStore creates a store. A zero ttl keeps entries indefinitely.
func NewRedisStore(client RedisClient, namespace string, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, namespace: namespace, ttl: ttl}
}

func (s *RedisStore) redisKey(key string) string {
	if s.namespace == "" {
		return key
	}
	return s.namespace + ":" + key
}

// Write implements Store.
func (s *RedisStore) Write(ctx context.Context, key string, value []byte, metadata map[string]string) error {
	rk := s.redisKey(key)
	if err := s.client.Set(ctx, rk, value, s.ttl).Err(); err != nil {
		return persistenceError("write", key, err)
	}
	if len(metadata) == 0 {
		return nil
	}
	fields := make([]any, 0, len(metadata)*2)
	for k, v := range metadata {
		fields = append(fields, k, v)
	}
	if err := s.client.HSet(ctx, rk+":meta", fields...).Err(); err != nil {
		return persistenceError("write metadata", key, err)
	}
	return nil
}

// Read implements Reader.
func (s *RedisStore) Read(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, persistenceError("read", key, err)
	}
	return b, true, nil
}

var _ ReadWriter = (*RedisStore)(nil)
