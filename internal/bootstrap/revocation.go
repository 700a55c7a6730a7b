package bootstrap

import (
	"context"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/revocation"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// initializeRevocationBackend picks the shared backend for the revocation
// cache. A nil result makes the cache run from its local store.
func initializeRevocationBackend(
	cfg *config.Config,
	client redis.UniversalClient,
	log *zap.Logger,
) core.RevocationBackend {
	if cfg.RevocationBackend != config.RevocationBackendRedis {
		log.Info("revocation backend disabled, sessions are revoked in this process only")
		return nil
	}

	switch cfg.RevocationRedisClient {
	case config.RedisClientRueidis:
		backend, err := revocation.NewRueidisBackend(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Warn("failed to create rueidis revocation backend", zap.Error(err))
			return nil
		}
		return backend
	default:
		if client == nil {
			return nil
		}
		return revocation.NewRedisBackend(client)
	}
}

// initializeRevocationCache builds the cache. Building it probes the backend once.
func initializeRevocationCache(
	ctx context.Context,
	cfg *config.Config,
	backend core.RevocationBackend,
	log *zap.Logger,
	m core.Recorder,
) *revocation.Cache {
	return revocation.New(ctx, backend, revocation.Options{
		ProbeTimeout: cfg.RevocationProbeTimeout,
		OpTimeout:    cfg.RevocationRedisTimeout,
		FailClosed:   cfg.RevocationFailClosed,
		Logger:       log,
		Metrics:      m,
	})
}
