package bootstrap

import (
	"context"
	"fmt"

	"github.com/go-authgate/ssocenter/internal/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// needsGoRedis reports whether any component is configured to use go-redis.
// ulule/limiter only speaks go-redis, so a Redis rate limit store always
// needs it, whatever client the revocation cache uses.
func needsGoRedis(cfg *config.Config) (revocation, rateLimit bool) {
	revocation = cfg.RevocationBackend == config.RevocationBackendRedis &&
		cfg.RevocationRedisClient == config.RedisClientGoRedis
	rateLimit = cfg.EnableRateLimit && cfg.RateLimitStore == config.RateLimitStoreRedis
	return revocation, rateLimit
}

// initializeRedisClient creates the go-redis client shared by the revocation
// backend and the rate limiter. It returns nil when neither uses go-redis.
//
// Only the rate limiter requires Redis at startup. The revocation cache probes
// the server itself and falls back to its local store when it is unreachable.
func initializeRedisClient(
	ctx context.Context,
	cfg *config.Config,
	log *zap.Logger,
) (redis.UniversalClient, error) {
	forRevocation, forRateLimit := needsGoRedis(cfg)
	if !forRevocation && !forRateLimit {
		return nil, nil //nolint:nilnil // redis client not needed in this configuration
	}

	// ContextTimeoutEnabled makes every command honour its ctx deadline, so
	// the revocation cache's per-call bound applies instead of ReadTimeout.
	client := redis.NewClient(&redis.Options{
		Addr:                  cfg.RedisAddr,
		Password:              cfg.RedisPassword,
		DB:                    cfg.RedisDB,
		DialTimeout:           cfg.RedisConnTimeout,
		ContextTimeoutEnabled: true,
	})

	if forRateLimit {
		ctx, cancel := context.WithTimeout(ctx, cfg.RedisConnTimeout)
		defer cancel()

		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}
	}

	log.Info("redis client initialized",
		zap.String("address", cfg.RedisAddr),
		zap.Int("db", cfg.RedisDB),
		zap.Bool("revocation", forRevocation),
		zap.Bool("rate_limit", forRateLimit))
	return client, nil
}
