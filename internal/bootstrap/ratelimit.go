package bootstrap

import (
	"fmt"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// rateLimitMiddlewares holds rate limiting middlewares for different endpoints
type rateLimitMiddlewares struct {
	login gin.HandlerFunc
	token gin.HandlerFunc
}

// setupRateLimiting configures rate limiting middlewares based on configuration
func setupRateLimiting(
	cfg *config.Config,
	redisClient redis.UniversalClient,
	log *zap.Logger,
) (rateLimitMiddlewares, error) {
	if !cfg.EnableRateLimit {
		noOpMiddleware := func(c *gin.Context) { c.Next() }
		return rateLimitMiddlewares{login: noOpMiddleware, token: noOpMiddleware}, nil
	}

	log.Info("rate limiting enabled", zap.String("store", cfg.RateLimitStore))

	createLimiter := func(requestsPerMinute int, endpoint, prefix string) (gin.HandlerFunc, error) {
		limiter, err := middleware.NewRateLimiter(middleware.RateLimitConfig{
			RequestsPerMinute: requestsPerMinute,
			StoreType:         cfg.RateLimitStore,
			RedisClient:       redisClient,
			Prefix:            prefix,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limiter for %s: %w", endpoint, err)
		}
		return limiter, nil
	}

	login, err := createLimiter(cfg.LoginRateLimit, "/login", "ratelimit:login")
	if err != nil {
		return rateLimitMiddlewares{}, err
	}
	token, err := createLimiter(cfg.TokenRateLimit, "/token", "ratelimit:token")
	if err != nil {
		return rateLimitMiddlewares{}, err
	}
	return rateLimitMiddlewares{login: login, token: token}, nil
}
