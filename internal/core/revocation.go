package core

import (
	"context"
	"time"
)

// RevocationBackend is a shared key/value store with native TTL expiry.
type RevocationBackend interface {
	// Set stores key with the given time to live.
	Set(ctx context.Context, key string, ttl time.Duration) error
	// Exists reports whether key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)
	// Ping checks connectivity.
	Ping(ctx context.Context) error
	Close() error
}

// RevocationChecker answers whether a session token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, id string) bool
}

// Revoker records a session token id as revoked until expiresAt.
type Revoker interface {
	Add(ctx context.Context, id string, expiresAt time.Time)
}
