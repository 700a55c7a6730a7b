package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-authgate/ssocenter/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterRedis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// RateLimitConfig holds the configuration for one rate-limited route group.
type RateLimitConfig struct {
	RequestsPerMinute int
	CleanupInterval   time.Duration

	// StoreType is config.RateLimitStoreMemory or config.RateLimitStoreRedis.
	StoreType string
	// RedisClient is shared with the rest of the process and required for
	// the redis store. The limiter does not close it.
	RedisClient redis.UniversalClient
	// Prefix separates the counters of different limiters in Redis.
	Prefix string
}

// NewRateLimiter creates a per-client-IP limiter over a fixed one-minute window.
func NewRateLimiter(cfg RateLimitConfig) (gin.HandlerFunc, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", cfg.RequestsPerMinute)
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "ratelimit"
	}

	rate := limiter.Rate{
		Period: time.Minute,
		Limit:  int64(cfg.RequestsPerMinute),
	}

	var (
		store limiter.Store
		err   error
	)
	switch cfg.StoreType {
	case config.RateLimitStoreRedis:
		if cfg.RedisClient == nil {
			return nil, fmt.Errorf("redis rate limit store requires a redis client")
		}
		store, err = limiterRedis.NewStoreWithOptions(cfg.RedisClient, limiter.StoreOptions{
			Prefix:          cfg.Prefix,
			CleanUpInterval: cfg.CleanupInterval,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis store: %w", err)
		}
	case config.RateLimitStoreMemory, "":
		store = memory.NewStoreWithOptions(limiter.StoreOptions{
			Prefix:          cfg.Prefix,
			CleanUpInterval: cfg.CleanupInterval,
		})
	default:
		return nil, fmt.Errorf("unknown rate limit store %q", cfg.StoreType)
	}

	instance := limiter.New(store, rate)

	return mgin.NewMiddleware(instance, mgin.WithLimitReachedHandler(func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":             "rate_limit_exceeded",
			"error_description": "Too many requests. Please try again later.",
		})
	})), nil
}
