package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-authgate/ssocenter/internal/config"
	"github.com/go-authgate/ssocenter/internal/revocation"

	"github.com/appleboy/graceful"
	"go.uber.org/zap"
)

// createHTTPServer creates the HTTP server instance
func createHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// addServerRunningJob adds the HTTP server running job
func addServerRunningJob(m *graceful.Manager, srv *http.Server, log *zap.Logger) {
	m.AddRunningJob(func(ctx context.Context) error {
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal("failed to start server", zap.Error(err))
			}
		}()
		<-ctx.Done()
		return nil
	})
}

// addReaperJob runs the revocation reaper until shutdown
func addReaperJob(m *graceful.Manager, reaper *revocation.Reaper) {
	m.AddRunningJob(reaper.Run)
}

// addShutdownJob stops the HTTP server and then releases the resources it
// was using. The steps run in order: nothing is closed while requests are
// still being served.
func addShutdownJob(m *graceful.Manager, app *Application) {
	m.AddShutdownJob(func() error {
		app.Logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), app.Config.ServerShutdownTimeout)
		defer cancel()

		err := app.Server.Shutdown(ctx)
		if err != nil {
			app.Logger.Error("server forced to shutdown", zap.Error(err))
		} else {
			app.Logger.Info("server exited")
		}

		return errors.Join(err, app.closeResources())
	})
}

// closeResources closes the revocation cache, the Redis client and the
// database. Components that were never created are skipped.
func (app *Application) closeResources() error {
	var errs []error

	if app.Revocation != nil {
		if err := app.Revocation.Close(); err != nil {
			app.Logger.Error("error closing revocation cache", zap.Error(err))
			errs = append(errs, err)
		}
	}

	// The go-redis revocation backend closes the shared client itself.
	if app.RedisClient != nil && !(app.Revocation != nil && app.ownsRedis) {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Error("error closing Redis client", zap.Error(err))
			errs = append(errs, err)
		} else {
			app.Logger.Info("redis connection closed")
		}
	}

	if app.DB != nil {
		if err := app.DB.Close(); err != nil {
			app.Logger.Error("error closing database", zap.Error(err))
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
