package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-authgate/ssocenter/internal/core"

	"github.com/redis/go-redis/v9"
)

var _ core.RevocationBackend = (*RedisBackend)(nil)

// RedisBackend stores revocation markers in Redis via go-redis.
type RedisBackend struct {
	client redis.UniversalClient
}

// NewRedisBackend wraps an existing client, which may be a standalone,
// cluster, or miniredis-backed client in tests. The client must be built
// with ContextTimeoutEnabled; otherwise go-redis ignores ctx deadlines and
// a stalled server holds every call for the full ReadTimeout.
func NewRedisBackend(client redis.UniversalClient) *RedisBackend {
	return &RedisBackend{client: client}
}

// Set writes SET key 1 with the given TTL. go-redis picks PX for
// sub-second durations.
func (b *RedisBackend) Set(ctx context.Context, key string, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (b *RedisBackend) Exists(ctx context.Context, key string) (bool, error) {
	err := b.client.Get(ctx, key).Err()
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, redis.Nil):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}
