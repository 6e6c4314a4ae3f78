package service

import (
	"context"
	"fmt"
	"time"

	"github.com/fermentum/fermentum-backend/internal/stock/events"
	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/pkg/errors"
	"github.com/fermentum/fermentum-backend/pkg/logger"
	"github.com/fermentum/fermentum-backend/pkg/messaging"
)

// AlertService implements the lot alert registry
type AlertService struct {
	items     *repository.StockRepository
	lots      *repository.LotRepository
	alerts    *repository.AlertRepository
	publisher *events.StockEventPublisher
	logger    *logger.Logger
}

// NewAlertService creates a new alert service
func NewAlertService(
	items *repository.StockRepository,
	lots *repository.LotRepository,
	alerts *repository.AlertRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *AlertService {
	return &AlertService{
		items:     items,
		lots:      lots,
		alerts:    alerts,
		publisher: publisher,
		logger:    log,
	}
}

// RaiseAlert creates an alert against a supplier lot number. The lot number
// does not have to exist in the ledger yet; supplier notices routinely arrive
// before the delivery is booked in.
func (s *AlertService) RaiseAlert(ctx context.Context, tenantID string, alert *repository.LotAlert) error {
	if !alert.Severity.Valid() {
		return errors.Validation(map[string]string{
			"severity": "must be one of: info, warning, critical, recall",
		})
	}
	if alert.LotNumber == "" {
		return errors.Validation(map[string]string{
			"lot_number": "lot_number is required",
		})
	}

	if err := s.alerts.Create(ctx, tenantID, alert); err != nil {
		return err
	}

	s.logger.Warn().
		Str("tenant_id", tenantID).
		Str("alert_id", alert.ID).
		Str("lot_number", alert.LotNumber).
		Str("severity", string(alert.Severity)).
		Str("title", alert.Title).
		Msg("lot alert raised")

	s.publisher.AlertRaised(ctx, alert, s.stockItemIDForLotNumber(ctx, tenantID, alert.LotNumber))

	return nil
}

// stockItemIDForLotNumber resolves the alerted lot number to a ledger item if
// one exists. Best effort: event enrichment only, never blocks the alert.
func (s *AlertService) stockItemIDForLotNumber(ctx context.Context, tenantID, lotNumber string) string {
	lots, err := s.lots.ListByNumbers(ctx, tenantID, []string{lotNumber})
	if err != nil || len(lots) == 0 {
		return ""
	}
	return lots[0].StockItemID
}

// GetAlert fetches an alert by ID
func (s *AlertService) GetAlert(ctx context.Context, tenantID, id string) (*repository.LotAlert, error) {
	return s.alerts.GetByID(ctx, tenantID, id)
}

// ListAlerts fetches alerts with pagination and optional filters
func (s *AlertService) ListAlerts(ctx context.Context, tenantID string, page, perPage int, status, severity string) ([]repository.LotAlert, int64, error) {
	return s.alerts.List(ctx, tenantID, page, perPage, status, severity)
}

// ListAlertsForLot fetches all alerts recorded against a lot number,
// newest first
func (s *AlertService) ListAlertsForLot(ctx context.Context, tenantID, lotNumber string) ([]repository.LotAlert, error) {
	return s.alerts.ListByLotNumber(ctx, tenantID, lotNumber)
}

// Acknowledge moves an active alert to acknowledged. A non-empty note is
// appended to the alert's internal notes.
func (s *AlertService) Acknowledge(ctx context.Context, tenantID, id, userID, note string) (*repository.LotAlert, error) {
	alert, err := s.alerts.Acknowledge(ctx, tenantID, id, userID)
	if err != nil {
		return nil, err
	}

	if note != "" {
		if err := s.AddNote(ctx, tenantID, id, userID, note); err != nil {
			return nil, err
		}
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("alert_id", id).
		Msg("lot alert acknowledged")

	s.publisher.AlertAcknowledged(ctx, alert)

	return alert, nil
}

// Resolve moves an active or acknowledged alert to resolved
func (s *AlertService) Resolve(ctx context.Context, tenantID, id, userID, resolution string) (*repository.LotAlert, error) {
	alert, err := s.alerts.Resolve(ctx, tenantID, id, userID, resolution)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("alert_id", id).
		Msg("lot alert resolved")

	s.publisher.AlertResolved(ctx, alert)

	return alert, nil
}

// AddNote appends a timestamped note to an alert's internal notes
func (s *AlertService) AddNote(ctx context.Context, tenantID, id, userID, note string) error {
	stamped := fmt.Sprintf("[%s] %s", time.Now().UTC().Format("2006-01-02 15:04"), note)
	if userID != "" {
		stamped = fmt.Sprintf("[%s] (%s) %s", time.Now().UTC().Format("2006-01-02 15:04"), userID, note)
	}

	return s.alerts.AppendInternalNotes(ctx, tenantID, id, stamped)
}

// RaiseRecallAlerts matches a supplier recall against the lot ledger and
// raises a recall alert on every recalled lot number the tenant holds. Lot
// numbers that already carry an unresolved alert for the same supplier
// reference are skipped so repeated recall deliveries stay idempotent.
// Returns the number of alerts raised.
func (s *AlertService) RaiseRecallAlerts(ctx context.Context, tenantID string, recall messaging.SupplierRecallIssuedEvent) (int, error) {
	lots, err := s.lots.ListByNumbers(ctx, tenantID, recall.LotNumbers)
	if err != nil {
		return 0, err
	}

	raised := 0
	for i := range lots {
		lot := &lots[i]

		exists, err := s.hasRecallAlert(ctx, tenantID, lot.LotNumber, recall.Reference)
		if err != nil {
			return raised, err
		}
		if exists {
			continue
		}

		alert := &repository.LotAlert{
			LotNumber:         lot.LotNumber,
			Severity:          repository.SeverityRecall,
			Title:             recall.Title,
			SupplierName:      &recall.Supplier,
			SupplierReference: &recall.Reference,
		}
		if recall.Description != "" {
			alert.Description = &recall.Description
		}
		if recall.RecommendedAction != "" {
			alert.RecommendedAction = &recall.RecommendedAction
		}

		if err := s.RaiseAlert(ctx, tenantID, alert); err != nil {
			return raised, err
		}
		raised++
	}

	return raised, nil
}

func (s *AlertService) hasRecallAlert(ctx context.Context, tenantID, lotNumber, reference string) (bool, error) {
	unresolved, err := s.alerts.ListUnresolvedByLot(ctx, tenantID, lotNumber)
	if err != nil {
		return false, err
	}

	for _, a := range unresolved {
		if a.Severity == repository.SeverityRecall &&
			a.SupplierReference != nil && *a.SupplierReference == reference {
			return true, nil
		}
	}

	return false, nil
}

// SweepExpiringLots raises warning alerts and publishes expiry events for
// lots with remaining stock that expire within the warning window. Lot
// numbers that already carry an unresolved alert are skipped.
func (s *AlertService) SweepExpiringLots(ctx context.Context, tenantID string, warningDays int) (int, error) {
	lots, err := s.lots.ListExpiringWithin(ctx, tenantID, warningDays)
	if err != nil {
		return 0, err
	}

	raised := 0
	for i := range lots {
		lot := &lots[i]
		if lot.ExpiresAt == nil {
			continue
		}

		unresolved, err := s.alerts.ListUnresolvedByLot(ctx, tenantID, lot.LotNumber)
		if err != nil {
			return raised, err
		}
		if len(unresolved) > 0 {
			continue
		}

		item, err := s.items.GetByID(ctx, tenantID, lot.StockItemID)
		if err != nil {
			return raised, err
		}

		daysUntil := int(time.Until(*lot.ExpiresAt).Hours() / 24)
		severity := repository.SeverityWarning
		if daysUntil <= 0 {
			severity = repository.SeverityCritical
		}

		description := fmt.Sprintf("Lot %s of %s expires on %s with %s %s still on hand",
			lot.LotNumber, item.Name, lot.ExpiresAt.Format("2006-01-02"),
			lot.QuantityOnHand.String(), item.UnitOfMeasure)

		alert := &repository.LotAlert{
			LotNumber:   lot.LotNumber,
			Severity:    severity,
			Title:       fmt.Sprintf("Lot %s expiring", lot.LotNumber),
			Description: &description,
		}
		if err := s.RaiseAlert(ctx, tenantID, alert); err != nil {
			return raised, err
		}

		s.publisher.LotExpiring(ctx, lot, *lot.ExpiresAt, daysUntil, item.UnitOfMeasure)
		raised++
	}

	return raised, nil
}
