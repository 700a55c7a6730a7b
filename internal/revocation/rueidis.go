package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/go-authgate/ssocenter/internal/core"

	"github.com/redis/rueidis"
)

var _ core.RevocationBackend = (*RueidisBackend)(nil)

// RueidisBackend stores revocation markers in Redis via rueidis.
// Client-side caching stays disabled: a cached "absent" answer could hide a
// fresh revocation.
type RueidisBackend struct {
	client rueidis.Client
}

// NewRueidisBackend dials Redis. rueidis connects eagerly, so an unreachable
// server surfaces here as an error.
func NewRueidisBackend(addr, password string, db int) (*RueidisBackend, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{addr},
		Password:     password,
		SelectDB:     db,
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return &RueidisBackend{client: client}, nil
}

// Set writes SET key 1 EX ttl. EX has whole-second resolution, so the TTL is
// rounded up rather than truncated to zero.
func (b *RueidisBackend) Set(ctx context.Context, key string, ttl time.Duration) error {
	if rem := ttl % time.Second; rem != 0 {
		ttl += time.Second - rem
	}
	cmd := b.client.B().Set().Key(key).Value("1").Ex(ttl).Build()
	if err := b.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (b *RueidisBackend) Exists(ctx context.Context, key string) (bool, error) {
	err := b.client.Do(ctx, b.client.B().Get().Key(key).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case rueidis.IsRedisNil(err):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
}

func (b *RueidisBackend) Ping(ctx context.Context) error {
	if err := b.client.Do(ctx, b.client.B().Ping().Build()).Error(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (b *RueidisBackend) Close() error {
	b.client.Close()
	return nil
}
