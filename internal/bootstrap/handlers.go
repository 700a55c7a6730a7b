package bootstrap

import (
	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/handlers"
	"github.com/go-authgate/ssocenter/internal/services"

	"go.uber.org/zap"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	oauth *handlers.OAuthHandler
	auth  *handlers.AuthHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	userService *services.UserService,
	oauthService *services.OAuthService,
	sessionService *services.SessionService,
	log *zap.Logger,
) handlerSet {
	return handlerSet{
		oauth: handlers.NewOAuthHandler(oauthService, userService, log),
		auth:  handlers.NewAuthHandler(sessionService, cfg.BaseURL, log),
	}
}
