package app

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/ambience/internal/config"
	"github.com/dokzlo13/ambience/internal/discovery"
	"github.com/dokzlo13/ambience/internal/ledger"
)

// MaintenanceService runs the periodic background tasks: history
// retention and optional rescans.
type MaintenanceService struct {
	cfg    *config.Config
	ledger *ledger.Ledger
	runner *discovery.Runner
}

// NewMaintenanceService creates a new MaintenanceService.
func NewMaintenanceService(cfg *config.Config, l *ledger.Ledger, runner *discovery.Runner) *MaintenanceService {
	return &MaintenanceService{
		cfg:    cfg,
		ledger: l,
		runner: runner,
	}
}

// Start launches the periodic tasks; they stop with ctx.
func (s *MaintenanceService) Start(ctx context.Context) {
	go s.runLedgerCleanup(ctx)

	if every := s.cfg.LIFX.RescanEvery.Duration(); every > 0 {
		go s.runRescan(ctx, every)
	}
}

// runLedgerCleanup periodically removes old history entries.
func (s *MaintenanceService) runLedgerCleanup(ctx context.Context) {
	interval := s.cfg.Database.RetentionInterval.Duration()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *MaintenanceService) cleanup() {
	retention := s.cfg.Database.RetentionPeriod.Duration()
	deleted, err := s.ledger.DeleteOlderThan(retention)
	if err != nil {
		log.Error().Err(err).Msg("Failed to cleanup old ledger entries")
	} else if deleted > 0 {
		log.Info().Int64("deleted", deleted).Dur("retention", retention).Msg("Cleaned up old ledger entries")
	}
}

// runRescan keeps online flags fresh. A scan already in flight is left
// alone rather than superseded.
func (s *MaintenanceService) runRescan(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.runner.Running() {
				continue
			}
			log.Debug().Msg("Starting background rescan")
			s.runner.Start(ctx)
		}
	}
}
