package app

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/talenttrek/applink/internal/common"
	"github.com/talenttrek/applink/internal/interfaces"
	"github.com/talenttrek/applink/internal/services/resolver"
	"github.com/talenttrek/applink/internal/services/scheduler"
	"github.com/talenttrek/applink/internal/services/session"
	"github.com/talenttrek/applink/internal/storage/postgres"
)

// App holds all application components and dependencies
type App struct {
	Config    *common.Config
	Logger    arbor.ILogger
	Store     interfaces.ListingStore
	Sessions  interfaces.SessionFactory
	Pipeline  *resolver.Pipeline
	Scheduler *scheduler.Scheduler
}

// New wires storage, the browser session factory, and the pipeline from the
// loaded configuration.
func New(ctx context.Context, config *common.Config, logger arbor.ILogger) (*App, error) {
	pool, err := postgres.Connect(ctx, config.Storage.Postgres, logger)
	if err != nil {
		return nil, err
	}
	store := postgres.NewListingStorage(pool, logger)

	cookies, err := session.LoadCookieJar(config.Auth.CookiesDir, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	sessions := session.NewFactory(config.Browser, config.Resolver.DomainRateLimit, cookies, logger)
	pipeline := resolver.NewPipeline(store, sessions, config.Resolver, logger)

	return &App{
		Config:    config,
		Logger:    logger,
		Store:     store,
		Sessions:  sessions,
		Pipeline:  pipeline,
		Scheduler: scheduler.NewScheduler(pipeline, logger),
	}, nil
}

// Close releases the browser allocator and the storage pool.
func (a *App) Close() {
	if a.Sessions != nil {
		if err := a.Sessions.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close browser allocator")
		}
	}
	if a.Store != nil {
		a.Store.Close()
	}
}
