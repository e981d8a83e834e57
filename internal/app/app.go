package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ambience/internal/config"
	"github.com/dokzlo13/ambience/internal/reconcile"
)

// App is the main application container that manages all services and their lifecycle.
type App struct {
	cfg      *config.Config
	services *Services
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a new App instance with all services initialized but not started.
func New(cfg *config.Config) (*App, error) {
	services, err := NewServices(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithServices(cfg, services), nil
}

// NewWithServices wraps already constructed services.
func NewWithServices(cfg *config.Config, services *Services) *App {
	return &App{
		cfg:      cfg,
		services: services,
	}
}

// Services exposes the service container to the UI.
func (a *App) Services() *Services {
	return a.services
}

// Start starts all background services.
// The provided context is used for cancellation.
func (a *App) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	if err := a.services.Start(a.ctx); err != nil {
		return err
	}
	a.services.Health.SetReady(true)

	log.Info().
		Str("store", a.services.Groups.Path()).
		Int("groups", len(a.services.Groups.GroupLabels())).
		Int("known_lights", a.services.Lights.Len()).
		Msg("ambience started")
	return nil
}

// Scan runs one discovery and classifies the result against the group document.
func (a *App) Scan(ctx context.Context) ([]reconcile.Entry, error) {
	res, err := a.services.Runner.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if res.Err != nil {
		return nil, res.Err
	}
	a.services.Groups.RefreshCache(res.Entries())
	return reconcile.Reconcile(res.Lights, a.services.Groups.Snapshot()), nil
}

// Stop gracefully shuts down all services.
func (a *App) Stop() error {
	log.Info().Msg("Shutting down...")

	if a.services != nil {
		a.services.Health.SetReady(false)
	}
	if a.cancel != nil {
		a.cancel()
	}

	if a.services == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.GetShutdownTimeout())
	defer cancel()
	return a.services.Stop(ctx)
}

// Wait blocks until the application context is cancelled.
func (a *App) Wait() {
	if a.ctx != nil {
		<-a.ctx.Done()
	}
}

// ResetHistory clears the event ledger.
// This is useful on startup with the -reset-history flag.
func (a *App) ResetHistory() (int64, error) {
	if a.services == nil {
		return 0, nil
	}
	return a.services.ResetHistory()
}

// SignalContext creates a context that is cancelled when SIGINT or SIGTERM is received.
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}
