package bootstrap

import (
	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/revocation"
	"github.com/go-authgate/ssocenter/internal/services"
	"github.com/go-authgate/ssocenter/internal/store"

	"go.uber.org/zap"
)

// initializeServices creates all business services
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	cache *revocation.Cache,
	log *zap.Logger,
	m core.Recorder,
) (*services.UserService, *services.OAuthService, *services.SessionService, *services.SessionValidator) {
	userService := services.NewUserService(db, cfg, log)
	oauthService := services.NewOAuthService(db, db, cfg, log, m)
	sessionService := services.NewSessionService(userService, cache, cfg, log, m)
	sessionValidator := services.NewSessionValidator(cache, cfg.SessionLifetime())

	return userService, oauthService, sessionService, sessionValidator
}
