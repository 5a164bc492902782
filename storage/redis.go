package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stores entries as plain string keys with an expiry.
//
// Redis instances are safe for concurrent use when the underlying client is.
type Redis struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis returns a Redis adapter. A non-empty prefix is joined to every key
// with a colon so several deployments can share one database.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(key string) string {
	if r.prefix == "" {
		return key
	}
	return r.prefix + ":" + key
}

// Add writes value under key with a TTL of ttlSeconds, replacing any previous value.
func (r *Redis) Add(ctx context.Context, key, value string, ttlSeconds int64) error {
	if ttlSeconds <= 0 {
		return fmt.Errorf("storage: non-positive ttl %d for key %q", ttlSeconds, key)
	}
	if err := r.client.Set(ctx, r.key(key), value, time.Duration(ttlSeconds)*time.Second).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get reads key. A missing key is reported through found, not as an error.
func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, true, nil
}

// Has reports whether key currently exists.
func (r *Redis) Has(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Destroy deletes key and reports whether it existed.
func (r *Redis) Destroy(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Del(ctx, r.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return n > 0, nil
}

// Pull reads and deletes key with GETDEL, so two concurrent pulls never both
// observe the value.
func (r *Redis) Pull(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.GetDel(ctx, r.key(key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return value, true, nil
}
