package app

import (
	"credential-manager/internal/circuitbreaker"
	commonhttp "credential-manager/internal/common/http"
	"credential-manager/internal/common/logging"
	"credential-manager/internal/config"
	"credential-manager/internal/locks"
	"credential-manager/internal/oauth2"
)

func (app *App) initializeOAuth() error {
	cfg := app.Config

	providerConfig := oauth2.ProviderConfig{
		AuthURL:     cfg.AuthURL,
		TokenURL:    cfg.TokenURL,
		Scopes:      cfg.Scopes,
		RedirectURL: cfg.RedirectURL(),
	}
	if err := providerConfig.Validate(); err != nil {
		return err
	}

	httpClient := commonhttp.NewHTTPClient(
		commonhttp.WithTimeout(cfg.HTTPTimeoutDuration()),
		commonhttp.WithLogger(app.Logger),
	)
	app.Breaker = circuitbreaker.NewGoBreaker("oauth2-provider", circuitbreaker.ProviderConfig, app.Logger)
	provider := oauth2.NewProvider(providerConfig, httpClient, app.Breaker, app.Logger)

	app.Credentials = oauth2.NewCredentialService(app.Storage)
	app.Tokens = oauth2.NewLifecycleManager(app.Storage, provider, app.Logger)
	app.Flows = oauth2.NewOrchestrator(
		oauth2.NewURLGenerator(app.Storage, provider),
		oauth2.NewExchanger(app.Storage, provider, app.Logger),
		oauth2.FlowConfig{
			CallbackAddr:    cfg.CallbackAddr(),
			CallbackPath:    config.CallbackPath,
			CallbackTimeout: cfg.CallbackTimeoutDuration(),
		},
		app.Logger,
	)

	app.Logger.Info("OAuth2 provider configured",
		logging.String("auth_url", cfg.AuthURL),
		logging.String("token_url", cfg.TokenURL),
		logging.String("redirect_url", cfg.RedirectURL()),
	)

	if cfg.RefreshSchedule == "" {
		app.Logger.Info("Proactive token refresh disabled")
		return nil
	}

	var locker oauth2.Locker
	if app.RedisClient != nil {
		manager, err := locks.NewRedsyncManager(app.RedisClient)
		if err != nil {
			return err
		}
		locker = manager
	}

	refresher, err := oauth2.NewRefresher(app.Storage, app.Tokens, cfg.RefreshSchedule, cfg.RefreshLookaheadDuration(), locker, app.Logger)
	if err != nil {
		return err
	}
	app.Refresher = refresher
	return nil
}
