// Package revocation records revoked session identifiers.
//
// A Cache writes every entry to a shared Redis-compatible backend with a
// native TTL and keeps a shadow copy in a local map. If the backend cannot be
// reached when the Cache is built, it runs from the local map for the rest of
// the process lifetime.
package revocation

import (
	"context"
	"time"

	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/metrics"

	"go.uber.org/zap"
)

// Mode is the backend a Cache answers from.
type Mode string

const (
	ModePrimary Mode = "primary"
	ModeLocal   Mode = "local"
)

// DefaultKeyPrefix namespaces revocation markers in the shared backend.
const DefaultKeyPrefix = "blacklist:"

const (
	defaultProbeTimeout = 2 * time.Second
	defaultOpTimeout    = 500 * time.Millisecond
)

var (
	_ core.RevocationChecker = (*Cache)(nil)
	_ core.Revoker           = (*Cache)(nil)
)

// Options configures a Cache. Zero values select the defaults.
type Options struct {
	KeyPrefix    string
	ProbeTimeout time.Duration // connectivity probe at construction
	OpTimeout    time.Duration // bound on every backend call
	// FailClosed treats an unanswerable check as revoked. The default
	// (false) fails open: a backend error with no local entry reads as not
	// revoked, trading revocation strength for availability.
	FailClosed bool
	Logger     *zap.Logger
	Metrics    core.Recorder
	Clock      func() time.Time
}

// Status is the health record of a Cache.
type Status struct {
	Mode              Mode `json:"mode"`
	PrimaryConfigured bool `json:"primary_configured"`
	LocalEntries      int  `json:"local_entries"`
}

// Cache is the dual-backend revocation store. It is safe for concurrent use.
type Cache struct {
	primary    core.RevocationBackend
	local      *localStore
	mode       Mode
	keyPrefix  string
	opTimeout  time.Duration
	failClosed bool
	logger     *zap.Logger
	metrics    core.Recorder
	now        func() time.Time
}

// New builds a Cache. backend may be nil. The mode is decided here by one
// Ping and never re-evaluated.
func New(ctx context.Context, backend core.RevocationBackend, opts Options) *Cache {
	c := &Cache{
		primary:    backend,
		local:      newLocalStore(),
		mode:       ModeLocal,
		keyPrefix:  opts.KeyPrefix,
		opTimeout:  opts.OpTimeout,
		failClosed: opts.FailClosed,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		now:        opts.Clock,
	}
	if c.keyPrefix == "" {
		c.keyPrefix = DefaultKeyPrefix
	}
	if c.opTimeout <= 0 {
		c.opTimeout = defaultOpTimeout
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.Named("revocation")
	if c.metrics == nil {
		c.metrics = metrics.NewNoopMetrics()
	}
	if c.now == nil {
		c.now = time.Now
	}

	probeTimeout := opts.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = defaultProbeTimeout
	}

	if backend != nil {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := backend.Ping(probeCtx)
		cancel()
		if err == nil {
			c.mode = ModePrimary
			c.logger.Info("revocation cache using shared backend")
		} else {
			c.logger.Warn("shared revocation backend unreachable, using local store",
				zap.Error(err))
		}
	} else {
		c.logger.Info("revocation cache using local store")
	}

	c.metrics.SetRevocationMode(string(c.mode))
	return c
}

// Mode returns the backend selected at construction.
func (c *Cache) Mode() Mode {
	return c.mode
}

// Add records id as revoked until expiresAt. Past expiries are ignored.
// Backend failures are logged; the local shadow copy still answers.
func (c *Cache) Add(ctx context.Context, id string, expiresAt time.Time) {
	ttl := expiresAt.Sub(c.now())
	if ttl <= 0 {
		return
	}

	c.local.put(id, expiresAt)

	if c.mode != ModePrimary {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()
	if err := c.primary.Set(opCtx, c.keyPrefix+id, ttl); err != nil {
		c.metrics.RecordRevocationBackendError("set")
		c.logger.Warn("failed to write revocation to shared backend, kept locally",
			zap.String("id", id), zap.Error(err))
	}
}

// IsRevoked reports whether id is currently revoked. It never returns an
// error: backend failures fall through to the local map.
func (c *Cache) IsRevoked(ctx context.Context, id string) bool {
	primaryFailed := false

	if c.mode == ModePrimary {
		opCtx, cancel := context.WithTimeout(ctx, c.opTimeout)
		found, err := c.primary.Exists(opCtx, c.keyPrefix+id)
		cancel()
		switch {
		case err != nil:
			primaryFailed = true
			c.metrics.RecordRevocationBackendError("get")
			c.logger.Warn("failed to read revocation from shared backend, checking local store",
				zap.String("id", id), zap.Error(err))
		case found:
			c.metrics.RecordRevocationCheck(string(ModePrimary), "revoked")
			return true
		}
	}

	if c.local.revoked(id, c.now()) {
		c.metrics.RecordRevocationCheck(string(ModeLocal), "revoked")
		return true
	}

	if primaryFailed {
		if c.failClosed {
			c.metrics.RecordRevocationCheck(string(ModeLocal), "fail_closed")
			return true
		}
		c.metrics.RecordRevocationCheck(string(ModeLocal), "fail_open")
		return false
	}

	c.metrics.RecordRevocationCheck(string(c.mode), "clear")
	return false
}

// PurgeExpired drops expired entries from the local map. The shared backend
// expires entries itself and is not touched.
func (c *Cache) PurgeExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return c.local.purge(c.now()), nil
}

// Status returns the current health record.
func (c *Cache) Status() Status {
	return Status{
		Mode:              c.mode,
		PrimaryConfigured: c.primary != nil,
		LocalEntries:      c.local.len(),
	}
}

// Close releases the shared backend, if one was configured.
func (c *Cache) Close() error {
	if c.primary == nil {
		return nil
	}
	return c.primary.Close()
}
