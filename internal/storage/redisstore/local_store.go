package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// LocalStore keeps the prompt library snapshot in Redis as plain string
// values under a shared key prefix: {prefix}promptlib:prompts and so on.
type LocalStore struct {
	client *redis.Client
	prefix string
}

// NewLocalStore creates a LocalStore. prefix may be empty.
func NewLocalStore(client *redis.Client, prefix string) *LocalStore {
	return &LocalStore{client: client, prefix: prefix}
}

// Get returns the stored value and whether the key exists.
func (s *LocalStore) Get(ctx context.Context, key string) (string, bool, error) {
	data, err := s.client.Get(ctx, s.key(key)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, true, nil
}

// Set stores value without expiry. The snapshot must outlive any outage.
func (s *LocalStore) Set(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Clear removes the given keys in one pipeline.
func (s *LocalStore) Clear(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	for _, key := range keys {
		pipe.Del(ctx, s.key(key))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear snapshot: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *LocalStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *LocalStore) key(key string) string {
	return fmt.Sprintf("%s%s", s.prefix, key)
}
