package bootstrap

import (
	"context"
	"net/http"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/core"
	"github.com/go-authgate/ssocenter/internal/metrics"
	"github.com/go-authgate/ssocenter/internal/revocation"
	"github.com/go-authgate/ssocenter/internal/services"
	"github.com/go-authgate/ssocenter/internal/store"

	"github.com/appleboy/graceful"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config
	Logger *zap.Logger

	// Core infrastructure
	DB              *store.Store
	MetricsRecorder core.Recorder
	RedisClient     redis.UniversalClient
	Revocation      *revocation.Cache
	Reaper          *revocation.Reaper

	// ownsRedis is set when the revocation backend closes RedisClient itself.
	ownsRedis bool

	// Services
	UserService      *services.UserService
	OAuthService     *services.OAuthService
	SessionService   *services.SessionService
	SessionValidator *services.SessionValidator

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application, blocking until shutdown.
func Run(cfg *config.Config, log *zap.Logger) error {
	app, err := newApplication(context.Background(), cfg, log)
	if err != nil {
		return err
	}

	app.startWithGracefulShutdown()
	return nil
}

// newApplication builds every component without starting the server.
func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Application, error) {
	if log == nil {
		log = zap.NewNop()
	}
	app := &Application{
		Config: cfg,
		Logger: log,
	}

	// Phase 1: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		app.closeResources()
		return nil, err
	}

	// Phase 2: Initialize business layer
	app.initializeBusinessLayer()

	// Phase 3: Initialize HTTP layer
	if err := app.initializeHTTPLayer(); err != nil {
		app.closeResources()
		return nil, err
	}

	return app, nil
}

// initializeInfrastructure sets up database, metrics, Redis and the revocation cache
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	// Database
	app.DB, err = initializeDatabase(ctx, app.Config, app.Logger)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = metrics.Init(app.Config.MetricsEnabled)

	// Redis (revocation backend and rate limiting)
	app.RedisClient, err = initializeRedisClient(ctx, app.Config, app.Logger)
	if err != nil {
		return err
	}

	// Revocation cache
	backend := initializeRevocationBackend(app.Config, app.RedisClient, app.Logger)
	_, app.ownsRedis = backend.(*revocation.RedisBackend)
	app.Revocation = initializeRevocationCache(
		ctx,
		app.Config,
		backend,
		app.Logger,
		app.MetricsRecorder,
	)
	app.Reaper = revocation.NewReaper(
		app.Revocation,
		app.Config.ReaperInterval,
		app.Logger,
		app.MetricsRecorder,
	)

	return nil
}

// initializeBusinessLayer sets up services
func (app *Application) initializeBusinessLayer() {
	app.UserService,
		app.OAuthService,
		app.SessionService,
		app.SessionValidator = initializeServices(
		app.Config,
		app.DB,
		app.Revocation,
		app.Logger,
		app.MetricsRecorder,
	)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() error {
	app.HandlerSet = initializeHandlers(
		app.Config,
		app.UserService,
		app.OAuthService,
		app.SessionService,
		app.Logger,
	)

	rateLimiters, err := setupRateLimiting(app.Config, app.RedisClient, app.Logger)
	if err != nil {
		return err
	}

	app.Router = setupRouter(routerDeps{
		cfg:          app.Config,
		log:          app.Logger,
		db:           app.DB,
		revocation:   app.Revocation,
		validator:    app.SessionValidator,
		handlers:     app.HandlerSet,
		metrics:      app.MetricsRecorder,
		rateLimiters: rateLimiters,
	})

	app.Server = createHTTPServer(app.Config, app.Router)
	return nil
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := graceful.NewManager()

	// Add jobs
	addServerRunningJob(m, app.Server, app.Logger)
	addReaperJob(m, app.Reaper)
	addShutdownJob(m, app)

	// Wait for graceful shutdown
	<-m.Done()
}
