package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/pkg/logger"
	"github.com/fermentum/fermentum-backend/pkg/messaging"
)

// Publisher is the subset of the messaging publisher the stock service uses
type Publisher interface {
	Publish(ctx context.Context, eventType string, data interface{}) error
}

// StockEventPublisher publishes stock domain events.
// All methods are nil-safe: a service wired without messaging simply skips
// publishing. Publish failures are logged and swallowed so event delivery
// never fails the originating operation.
type StockEventPublisher struct {
	publisher Publisher
	logger    *logger.Logger
}

// NewStockEventPublisher creates a new stock event publisher
func NewStockEventPublisher(publisher Publisher, log *logger.Logger) *StockEventPublisher {
	return &StockEventPublisher{
		publisher: publisher,
		logger:    log,
	}
}

func (p *StockEventPublisher) publish(ctx context.Context, eventType string, data interface{}) {
	if p == nil || p.publisher == nil {
		return
	}

	if err := p.publisher.Publish(ctx, eventType, data); err != nil {
		p.logger.Error().Err(err).
			Str("event_type", eventType).
			Msg("failed to publish event")
	}
}

// LotReceived publishes a lot received event
func (p *StockEventPublisher) LotReceived(ctx context.Context, lot *repository.Lot, unit string) {
	supplier := ""
	if lot.Supplier != nil {
		supplier = *lot.Supplier
	}

	p.publish(ctx, messaging.EventLotReceived, messaging.LotReceivedEvent{
		TenantID:    lot.TenantID,
		LotID:       lot.ID,
		StockItemID: lot.StockItemID,
		LotNumber:   lot.LotNumber,
		Quantity:    lot.QuantityReceived,
		Unit:        unit,
		Supplier:    supplier,
		ReceivedAt:  lot.ReceivedAt,
		ExpiresAt:   lot.ExpiresAt,
	})
}

// LotReserved publishes a lot reserved event for one allocation line
func (p *StockEventPublisher) LotReserved(ctx context.Context, tenantID, lotID, stockItemID, reservationID string, quantity decimal.Decimal, unit string) {
	p.publish(ctx, messaging.EventLotReserved, messaging.LotReservedEvent{
		TenantID:      tenantID,
		LotID:         lotID,
		StockItemID:   stockItemID,
		ReservationID: reservationID,
		Quantity:      quantity,
		Unit:          unit,
	})
}

// LotReleased publishes a lot released event for one reservation line
func (p *StockEventPublisher) LotReleased(ctx context.Context, tenantID, lotID, stockItemID, reservationID string, quantity decimal.Decimal, unit string) {
	p.publish(ctx, messaging.EventLotReleased, messaging.LotReleasedEvent{
		TenantID:      tenantID,
		LotID:         lotID,
		StockItemID:   stockItemID,
		ReservationID: reservationID,
		Quantity:      quantity,
		Unit:          unit,
	})
}

// LotConsumed publishes a lot consumed event for one reservation line
func (p *StockEventPublisher) LotConsumed(ctx context.Context, tenantID, lotID, stockItemID, reservationID string, quantity decimal.Decimal, unit string) {
	p.publish(ctx, messaging.EventLotConsumed, messaging.LotConsumedEvent{
		TenantID:      tenantID,
		LotID:         lotID,
		StockItemID:   stockItemID,
		ReservationID: reservationID,
		Quantity:      quantity,
		Unit:          unit,
	})
}

// LotExpiring publishes an expiry warning for a lot
func (p *StockEventPublisher) LotExpiring(ctx context.Context, lot *repository.Lot, expiresAt time.Time, daysUntil int, unit string) {
	p.publish(ctx, messaging.EventLotExpiring, messaging.LotExpiringEvent{
		TenantID:    lot.TenantID,
		LotID:       lot.ID,
		StockItemID: lot.StockItemID,
		LotNumber:   lot.LotNumber,
		ExpiresAt:   expiresAt,
		DaysUntil:   daysUntil,
		OnHand:      lot.QuantityOnHand,
		Unit:        unit,
	})
}

// StockItemLow publishes a low stock event for an item
func (p *StockEventPublisher) StockItemLow(ctx context.Context, item *repository.StockItem, available decimal.Decimal) {
	p.publish(ctx, messaging.EventStockItemLow, messaging.StockItemLowEvent{
		TenantID:     item.TenantID,
		StockItemID:  item.ID,
		SKU:          item.SKU,
		Name:         item.Name,
		Available:    available,
		ReorderLevel: item.ReorderLevel,
		Unit:         item.UnitOfMeasure,
	})
}

// AlertRaised publishes an alert raised event. stockItemID may be empty when
// the alerted lot number is not in the ledger yet.
func (p *StockEventPublisher) AlertRaised(ctx context.Context, alert *repository.LotAlert, stockItemID string) {
	supplier := ""
	if alert.SupplierName != nil {
		supplier = *alert.SupplierName
	}

	p.publish(ctx, messaging.EventAlertRaised, messaging.AlertRaisedEvent{
		TenantID:    alert.TenantID,
		AlertID:     alert.ID,
		LotNumber:   alert.LotNumber,
		StockItemID: stockItemID,
		Severity:    string(alert.Severity),
		Title:       alert.Title,
		Supplier:    supplier,
	})
}

// AlertAcknowledged publishes an alert acknowledged event
func (p *StockEventPublisher) AlertAcknowledged(ctx context.Context, alert *repository.LotAlert) {
	acknowledgedBy := ""
	if alert.AcknowledgedBy != nil {
		acknowledgedBy = *alert.AcknowledgedBy
	}

	p.publish(ctx, messaging.EventAlertAcknowledged, messaging.AlertAcknowledgedEvent{
		TenantID:       alert.TenantID,
		AlertID:        alert.ID,
		LotNumber:      alert.LotNumber,
		AcknowledgedBy: acknowledgedBy,
	})
}

// AlertResolved publishes an alert resolved event
func (p *StockEventPublisher) AlertResolved(ctx context.Context, alert *repository.LotAlert) {
	resolvedBy := ""
	if alert.ResolvedBy != nil {
		resolvedBy = *alert.ResolvedBy
	}
	resolution := ""
	if alert.Resolution != nil {
		resolution = *alert.Resolution
	}

	p.publish(ctx, messaging.EventAlertResolved, messaging.AlertResolvedEvent{
		TenantID:   alert.TenantID,
		AlertID:    alert.ID,
		LotNumber:  alert.LotNumber,
		ResolvedBy: resolvedBy,
		Resolution: resolution,
	})
}
