package service

import (
	"context"
	"time"

	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/pkg/logger"
)

// ExpirySweeper periodically scans every tenant's lot ledger for lots
// nearing expiry and raises alerts through the alert service.
type ExpirySweeper struct {
	alerts      *AlertService
	lots        *repository.LotRepository
	interval    time.Duration
	warningDays int
	logger      *logger.Logger
	cancel      context.CancelFunc
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(alerts *AlertService, lots *repository.LotRepository, interval time.Duration, warningDays int, log *logger.Logger) *ExpirySweeper {
	return &ExpirySweeper{
		alerts:      alerts,
		lots:        lots,
		interval:    interval,
		warningDays: warningDays,
		logger:      log,
	}
}

// Start starts the sweeper in a background goroutine
func (s *ExpirySweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go func() {
		s.logger.Info().
			Dur("interval", s.interval).
			Int("warning_days", s.warningDays).
			Msg("expiry sweeper started")

		// Run an initial sweep immediately
		s.runSweep(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info().Msg("expiry sweeper stopped")
				return
			case <-ticker.C:
				s.runSweep(ctx)
			}
		}
	}()
}

// Stop stops the sweeper goroutine
func (s *ExpirySweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// runSweep scans every tenant that currently holds stock
func (s *ExpirySweeper) runSweep(ctx context.Context) {
	start := time.Now()

	tenantIDs, err := s.lots.ListTenantsWithStock(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list tenants for expiry sweep")
		return
	}

	total := 0
	for _, tenantID := range tenantIDs {
		raised, err := s.alerts.SweepExpiringLots(ctx, tenantID, s.warningDays)
		if err != nil {
			s.logger.Error().Err(err).Str("tenant_id", tenantID).Msg("expiry sweep failed for tenant")
			continue
		}
		total += raised
	}

	s.logger.Info().
		Dur("duration", time.Since(start)).
		Int("tenant_count", len(tenantIDs)).
		Int("alerts_raised", total).
		Msg("expiry sweep completed")
}
