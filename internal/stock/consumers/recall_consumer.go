package consumers

import (
	"context"

	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/internal/stock/service"
	"github.com/fermentum/fermentum-backend/pkg/logger"
	"github.com/fermentum/fermentum-backend/pkg/messaging"
)

// RecallEventConsumer consumes supplier recall events and raises recall
// alerts on affected lots. A recall names lot numbers, not tenants, so every
// tenant holding stock is matched against the recalled numbers.
type RecallEventConsumer struct {
	consumer *messaging.Consumer
	alerts   *service.AlertService
	lots     *repository.LotRepository
	logger   *logger.Logger
}

// NewRecallEventConsumer creates a new recall event consumer
func NewRecallEventConsumer(rmq *messaging.RabbitMQ, alerts *service.AlertService, lots *repository.LotRepository, log *logger.Logger) (*RecallEventConsumer, error) {
	consumer, err := messaging.NewConsumer(rmq, "stock-service.supplier-events", log)
	if err != nil {
		return nil, err
	}

	// Subscribe to supplier events
	if err := consumer.Subscribe(messaging.ExchangeSupplierEvents, "supplier.#"); err != nil {
		return nil, err
	}

	c := &RecallEventConsumer{
		consumer: consumer,
		alerts:   alerts,
		lots:     lots,
		logger:   log,
	}

	consumer.RegisterHandler(messaging.EventSupplierRecallIssued, c.handleRecallIssued)

	return c, nil
}

// Start starts consuming messages
func (c *RecallEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Start(ctx)
}

func (c *RecallEventConsumer) handleRecallIssued(ctx context.Context, event *messaging.Event) error {
	var data messaging.SupplierRecallIssuedEvent
	if err := event.UnmarshalData(&data); err != nil {
		return err
	}

	c.logger.Warn().
		Str("supplier", data.Supplier).
		Str("reference", data.Reference).
		Int("lot_numbers", len(data.LotNumbers)).
		Msg("received supplier recall")

	tenantIDs, err := c.lots.ListTenantsWithStock(ctx)
	if err != nil {
		return err
	}

	total := 0
	for _, tenantID := range tenantIDs {
		raised, err := c.alerts.RaiseRecallAlerts(ctx, tenantID, data)
		if err != nil {
			return err
		}
		total += raised
	}

	c.logger.Info().
		Str("reference", data.Reference).
		Int("alerts_raised", total).
		Msg("supplier recall processed")

	return nil
}
