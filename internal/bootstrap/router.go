package bootstrap

import (
	"context"
	"net/http"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/handlers"
	"github.com/go-authgate/ssocenter/internal/metrics"
	"github.com/go-authgate/ssocenter/internal/middleware"
	"github.com/go-authgate/ssocenter/internal/revocation"
	"github.com/go-authgate/ssocenter/internal/templates"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// sessionCookieName is the cookie that carries the signed login session.
const sessionCookieName = "oauth_session"

// healthChecker is implemented by *store.Store.
type healthChecker interface {
	Health(ctx context.Context) error
}

// revocationStatus is implemented by *revocation.Cache.
type revocationStatus interface {
	Status() revocation.Status
}

type routerDeps struct {
	cfg          *config.Config
	log          *zap.Logger
	db           healthChecker
	revocation   revocationStatus
	validator    middleware.SessionChecker
	handlers     handlerSet
	metrics      core.Recorder
	rateLimiters rateLimitMiddlewares
}

// setupRouter configures the Gin router with all routes and middleware
func setupRouter(d routerDeps) *gin.Engine {
	// Setup Gin mode
	setupGinMode(d.cfg, d.log)
	r := gin.New()
	r.SetHTMLTemplate(templates.Must())

	// Setup middleware
	r.Use(middleware.RequestLogger(d.log), gin.Recovery())
	if d.cfg.MetricsEnabled {
		r.Use(metrics.HTTPMetricsMiddleware(d.metrics))
	}

	// Setup session middleware
	setupSessionMiddleware(r, d.cfg, d.validator, d.metrics, d.log)

	// Health check endpoint
	r.GET("/health", createHealthCheckHandler(d.db, d.revocation, d.cfg))

	// Setup metrics endpoint
	setupMetricsEndpoint(r, d.cfg, d.log)

	// Setup all routes
	setupAllRoutes(r, d.handlers, d.rateLimiters)

	// Log server startup info
	logServerStartup(d.cfg, d.log)

	return r
}

// setupSessionMiddleware configures the cookie session and resolves the
// signed-in principal on every request.
func setupSessionMiddleware(
	r *gin.Engine,
	cfg *config.Config,
	validator middleware.SessionChecker,
	m core.Recorder,
	log *zap.Logger,
) {
	r.Use(sessions.Sessions(sessionCookieName, newSessionStore(cfg)))
	r.Use(middleware.SessionPrincipal(validator, m, log))
}

// cookieMaxAger is the MaxAge method the cookie store promotes from gorilla's
// CookieStore.
type cookieMaxAger interface {
	MaxAge(age int)
}

// newSessionStore builds the signed cookie store. Options only sets the
// cookie attribute; MaxAge also makes the codec reject cookies whose
// signature timestamp is older than SessionMaxAge.
func newSessionStore(cfg *config.Config) cookie.Store {
	sessionStore := cookie.NewStore([]byte(cfg.SessionSecret))
	sessionStore.Options(sessions.Options{
		Path:     "/",
		MaxAge:   cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   cfg.IsProduction,
		SameSite: http.SameSiteLaxMode,
	})
	if s, ok := sessionStore.(cookieMaxAger); ok {
		s.MaxAge(cfg.SessionMaxAge)
	}
	return sessionStore
}

// setupMetricsEndpoint configures the Prometheus metrics endpoint
func setupMetricsEndpoint(r *gin.Engine, cfg *config.Config, log *zap.Logger) {
	switch {
	case !cfg.MetricsEnabled:
		log.Info("prometheus metrics disabled")
	case cfg.MetricsToken != "":
		log.Info("prometheus metrics enabled at /metrics with Bearer token authentication")
		r.GET(
			"/metrics",
			middleware.MetricsAuthMiddleware(cfg.MetricsToken),
			gin.WrapH(promhttp.Handler()),
		)
	default:
		log.Info("prometheus metrics enabled at /metrics (no authentication)")
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}
}

// setupAllRoutes configures all application routes
func setupAllRoutes(r *gin.Engine, h handlerSet, rateLimiters rateLimitMiddlewares) {
	r.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/account/session")
	})

	// OAuth endpoints
	r.GET("/authorize", h.oauth.Authorize)
	r.POST("/token", rateLimiters.token, h.oauth.Token)
	r.GET("/userinfo", h.oauth.UserInfo)
	r.POST("/revoke", h.oauth.Revoke)

	// Browser forms (CSRF protected)
	forms := r.Group("", middleware.CSRFMiddleware())
	{
		forms.GET("/login", h.auth.LoginPage)
		forms.POST("/login", rateLimiters.login, h.auth.Login)
		forms.POST("/logout", h.auth.Logout)
	}

	// Account routes (require login, CSRF token issued for logout)
	account := r.Group("/account", middleware.RequireAuth(), middleware.CSRFMiddleware())
	{
		account.GET("/session", handlers.SessionInfo)
	}
}

// Health states reported by /health
const (
	healthStatusHealthy   = "healthy"
	healthStatusUnhealthy = "unhealthy"

	databaseConnected    = "connected"
	databaseDisconnected = "disconnected"
)

// HealthReport is the /health response body.
type HealthReport struct {
	Status     string            `json:"status"`
	Database   string            `json:"database"`
	Revocation revocation.Status `json:"revocation"`
}

// createHealthCheckHandler creates health check endpoint handler.
// A revocation cache running from its local store is degraded but still
// healthy; only a database failure makes the instance unhealthy.
func createHealthCheckHandler(
	db healthChecker,
	cache revocationStatus,
	cfg *config.Config,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), cfg.DBQueryTimeout)
		defer cancel()

		report := HealthReport{
			Status:     healthStatusHealthy,
			Database:   databaseConnected,
			Revocation: cache.Status(),
		}
		status := http.StatusOK
		if err := db.Health(ctx); err != nil {
			report.Status = healthStatusUnhealthy
			report.Database = databaseDisconnected
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, report)
	}
}

// setupGinMode sets Gin mode based on environment configuration
func setupGinMode(cfg *config.Config, log *zap.Logger) {
	// Tests pin gin.TestMode before building the router.
	if gin.Mode() == gin.TestMode {
		return
	}
	mode := ginModeMap[cfg.IsProduction]
	gin.SetMode(mode)
	log.Debug("gin mode configured", zap.String("mode", mode))
}

var ginModeMap = map[bool]string{
	true:  gin.ReleaseMode,
	false: gin.DebugMode,
}

// logServerStartup logs server startup information
func logServerStartup(cfg *config.Config, log *zap.Logger) {
	log.Info("SSO center starting",
		zap.String("addr", cfg.ServerAddr),
		zap.String("base_url", cfg.BaseURL),
		zap.String("database", cfg.DatabaseDriver),
		zap.String("revocation_backend", cfg.RevocationBackend))
	log.Info("default user: admin (check logs for password if first run)")
}
