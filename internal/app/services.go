package app

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ambience/internal/config"
	"github.com/dokzlo13/ambience/internal/control"
	"github.com/dokzlo13/ambience/internal/db"
	"github.com/dokzlo13/ambience/internal/discovery"
	"github.com/dokzlo13/ambience/internal/eventbus"
	"github.com/dokzlo13/ambience/internal/groups"
	"github.com/dokzlo13/ambience/internal/ledger"
	"github.com/dokzlo13/ambience/internal/lifx"
	"github.com/dokzlo13/ambience/internal/mqtt"
	"github.com/dokzlo13/ambience/internal/registry"
)

// Services is a container for all application services.
// It manages service initialization order and dependencies.
type Services struct {
	cfg *config.Config

	// Core infrastructure
	DB     *db.DB
	Ledger *ledger.Ledger
	Bus    *eventbus.Bus

	// Domain
	Groups  *groups.Store
	Lights  *registry.Registry
	Client  lifx.Client
	Scanner *discovery.Scanner
	Runner  *discovery.Runner
	Control *control.Facade

	// Background and outer surfaces
	Maintenance *MaintenanceService
	Health      *HealthService
	MQTT        *mqtt.Client
}

// NewServices creates all services talking to the real LAN.
func NewServices(cfg *config.Config) (*Services, error) {
	client := lifx.NewClient(cfg.LIFX.BroadcastHost, cfg.LIFX.ScanTimeout.Duration(), cfg.LIFX.DialTimeout.Duration())
	return NewServicesWithClient(cfg, client)
}

// NewServicesWithClient creates all services around the given LIFX client.
func NewServicesWithClient(cfg *config.Config, client lifx.Client) (*Services, error) {
	s := &Services{cfg: cfg, Client: client}

	// Initialize database
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	s.DB = database
	s.Ledger = ledger.New(database.DB)

	s.Bus = eventbus.NewWithConfig(cfg.EventBus.GetWorkers(), cfg.EventBus.GetQueueSize())

	// Group document and the lights it remembers
	s.Groups = groups.Open(cfg.Store.Path)
	s.Lights = registry.New()
	s.Lights.LoadDocument(s.Groups.Snapshot())

	s.Scanner = discovery.NewScanner(client, cfg.LIFX.FetchWorkers, cfg.LIFX.RateLimitRPS)
	s.Runner = discovery.NewRunner(s.Scanner.Scan)
	s.Control = control.New(client, s.Lights, s.Groups, cfg.LIFX.RateLimitRPS)

	s.wire()

	s.Maintenance = NewMaintenanceService(cfg, s.Ledger, s.Runner)
	s.Health = NewHealthService(cfg, s.Status)

	return s, nil
}

// Start starts background services.
func (s *Services) Start(ctx context.Context) error {
	if s.cfg.MQTT.Enabled {
		client, err := mqtt.Connect(s.cfg.MQTT)
		if err != nil {
			// The broker is optional; the UI stays usable without it
			log.Warn().Err(err).Str("broker", s.cfg.MQTT.Broker).Msg("MQTT disabled for this session")
		} else {
			s.MQTT = client
			mqtt.NewBridge(s.cfg.MQTT.TopicPrefix, client).Attach(s.Bus)
		}
	}

	s.Maintenance.Start(ctx)
	s.Health.Start(ctx)
	return nil
}

// ResetHistory clears the event ledger.
func (s *Services) ResetHistory() (int64, error) {
	return s.Ledger.Reset()
}

// Status summarizes the current state for the status endpoint.
func (s *Services) Status() Status {
	return Status{
		Lights:     s.Lights.Len(),
		Online:     s.Lights.Online(),
		Groups:     len(s.Groups.GroupLabels()),
		Scanning:   s.Runner.Running(),
		Generation: s.Runner.Generation(),
		Events:     s.Bus.Stats(),
	}
}

// Stop gracefully stops all services.
func (s *Services) Stop(ctx context.Context) error {
	var errs []error

	if s.Runner != nil {
		s.Runner.Stop()
	}
	if s.Bus != nil {
		s.Bus.Close(ctx)
	}
	if s.MQTT != nil {
		s.MQTT.Close()
	}
	if s.Groups != nil {
		if err := s.Groups.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}
