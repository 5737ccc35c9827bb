package app

import (
	"context"

	"credential-manager/internal/circuitbreaker"
	"credential-manager/internal/common/logging"
	"credential-manager/internal/config"
	"credential-manager/internal/oauth2"
	"credential-manager/internal/redis"
	"credential-manager/internal/storage"
)

// App holds all the application dependencies
type App struct {
	Config      *config.Config
	Storage     storage.Storage
	RedisClient *redis.Client
	Credentials *oauth2.CredentialService
	Flows       *oauth2.Orchestrator
	Tokens      *oauth2.LifecycleManager
	Refresher   *oauth2.Refresher
	Breaker     *circuitbreaker.GoBreakerAdapter
	Logger      logging.Logger
}

// New creates a new application instance with all dependencies
func New(cfg *config.Config) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logging.GetGlobalLogger().WithFields(logging.String("component", "app")),
	}

	if err := app.initializeStorage(); err != nil {
		return nil, err
	}

	if err := app.initializeRedis(); err != nil {
		// The cache is optional, tokens are still read from the database
		app.Logger.Warn("Redis initialization failed, continuing without token cache", logging.Err(err))
	}

	if err := app.initializeOAuth(); err != nil {
		app.Cleanup()
		return nil, err
	}

	return app, nil
}

// Shutdown stops background work
func (app *App) Shutdown(ctx context.Context) error {
	if app.Refresher != nil {
		app.Refresher.Stop()
	}

	done := make(chan struct{})
	go func() {
		if app.Flows != nil {
			app.Flows.Wait()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		app.Logger.Warn("Shutting down with an OAuth flow still in progress")
		return nil
	}
}

// Cleanup releases all resources
func (app *App) Cleanup() {
	if app.Storage != nil {
		if err := app.Storage.Close(); err != nil {
			app.Logger.Warn("Failed to close storage", logging.Err(err))
		}
	}
	if app.RedisClient != nil {
		if err := app.RedisClient.Close(); err != nil {
			app.Logger.Warn("Failed to close Redis client", logging.Err(err))
		}
	}
}
