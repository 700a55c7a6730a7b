package revocation

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newStalledServer accepts TCP connections and never writes a reply.
func newStalledServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		conns []net.Conn
	)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			mu.Lock()
			conns = append(conns, conn)
			mu.Unlock()
		}
	}()

	t.Cleanup(func() {
		_ = ln.Close()
		mu.Lock()
		defer mu.Unlock()
		for _, conn := range conns {
			_ = conn.Close()
		}
	})
	return ln.Addr().String()
}

func newStalledBackend(t *testing.T) *RedisBackend {
	t.Helper()
	client := redis.NewClient(&redis.Options{
		Addr:                  newStalledServer(t),
		DialTimeout:           200 * time.Millisecond,
		MaxRetries:            -1,
		ContextTimeoutEnabled: true,
	})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisBackend(client)
}

func TestRedisBackend_HonoursContextDeadline(t *testing.T) {
	backend := newStalledBackend(t)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := backend.Exists(ctx, "blacklist:42:s1")
	require.ErrorIs(t, err, ErrBackendUnavailable)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCache_StalledServerSelectsLocalQuickly(t *testing.T) {
	backend := newStalledBackend(t)

	start := time.Now()
	c := New(context.Background(), backend, Options{ProbeTimeout: 100 * time.Millisecond})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, ModeLocal, c.Mode())
}

func TestCache_StalledServerCallsAreBounded(t *testing.T) {
	backend := newStalledBackend(t)
	clock := newFakeClock()
	c := New(context.Background(), backend, Options{
		ProbeTimeout: 100 * time.Millisecond,
		OpTimeout:    100 * time.Millisecond,
		Clock:        clock.Now,
	})

	// The server stopped answering after the mode was picked.
	c.mode = ModePrimary

	ctx := context.Background()
	start := time.Now()
	c.Add(ctx, "42:s1", clock.Now().Add(time.Minute))
	assert.True(t, c.IsRevoked(ctx, "42:s1"))
	assert.False(t, c.IsRevoked(ctx, "42:s2"))

	// Three calls, each well under go-redis's 3s ReadTimeout.
	assert.Less(t, time.Since(start), 2*time.Second)
}
