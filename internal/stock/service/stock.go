package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fermentum/fermentum-backend/internal/stock/allocation"
	"github.com/fermentum/fermentum-backend/internal/stock/events"
	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/pkg/errors"
	"github.com/fermentum/fermentum-backend/pkg/logger"
)

// StockService implements the stock catalog and lot ledger operations
type StockService struct {
	items     *repository.StockRepository
	lots      *repository.LotRepository
	alerts    *repository.AlertRepository
	publisher *events.StockEventPublisher
	logger    *logger.Logger
}

// NewStockService creates a new stock service
func NewStockService(
	items *repository.StockRepository,
	lots *repository.LotRepository,
	alerts *repository.AlertRepository,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *StockService {
	return &StockService{
		items:     items,
		lots:      lots,
		alerts:    alerts,
		publisher: publisher,
		logger:    log,
	}
}

// CreateItem creates a stock catalog entry
func (s *StockService) CreateItem(ctx context.Context, tenantID string, item *repository.StockItem) error {
	if !item.Category.Valid() {
		return errors.Validation(map[string]string{
			"category": "must be one of: grain, hop, yeast, additive",
		})
	}
	if item.UnitOfMeasure == "" {
		return errors.Validation(map[string]string{
			"unit_of_measure": "is required",
		})
	}

	if err := s.items.Create(ctx, tenantID, item); err != nil {
		return err
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("item_id", item.ID).
		Str("sku", item.SKU).
		Msg("stock item created")

	return nil
}

// GetItem fetches a stock item with its aggregated lot position
func (s *StockService) GetItem(ctx context.Context, tenantID, id string) (*repository.StockItem, error) {
	item, err := s.items.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}

	if err := s.enrichItem(ctx, tenantID, item); err != nil {
		return nil, err
	}

	return item, nil
}

// GetItemBySKU fetches a stock item by SKU with its aggregated lot position
func (s *StockService) GetItemBySKU(ctx context.Context, tenantID, sku string) (*repository.StockItem, error) {
	item, err := s.items.GetBySKU(ctx, tenantID, sku)
	if err != nil {
		return nil, err
	}

	if err := s.enrichItem(ctx, tenantID, item); err != nil {
		return nil, err
	}

	return item, nil
}

// ListItems fetches stock items with their aggregated lot positions
func (s *StockService) ListItems(ctx context.Context, tenantID string, page, perPage int, category string) ([]repository.StockItem, int64, error) {
	items, total, err := s.items.List(ctx, tenantID, page, perPage, category)
	if err != nil {
		return nil, 0, err
	}

	for i := range items {
		if err := s.enrichItem(ctx, tenantID, &items[i]); err != nil {
			return nil, 0, err
		}
	}

	return items, total, nil
}

// enrichItem fills the computed availability fields on an item
func (s *StockService) enrichItem(ctx context.Context, tenantID string, item *repository.StockItem) error {
	avail, err := s.items.GetAvailability(ctx, tenantID, item.ID)
	if err != nil {
		return err
	}

	item.TotalOnHand = avail.TotalOnHand
	item.TotalAvailable = avail.TotalAvailable
	item.LotCount = avail.LotCount
	return nil
}

// UpdateItem updates a stock item's catalog fields
func (s *StockService) UpdateItem(ctx context.Context, tenantID string, item *repository.StockItem) error {
	if !item.Category.Valid() {
		return errors.Validation(map[string]string{
			"category": "must be one of: grain, hop, yeast, additive",
		})
	}

	return s.items.Update(ctx, tenantID, item)
}

// DeactivateItem removes a stock item from the active catalog
func (s *StockService) DeactivateItem(ctx context.Context, tenantID, id string) error {
	if err := s.items.Deactivate(ctx, tenantID, id); err != nil {
		return err
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("item_id", id).
		Msg("stock item deactivated")

	return nil
}

// ReceiveLot records a newly received lot in the ledger.
// The lot starts fully on hand with nothing reserved. When the item has a
// shelf life and no explicit expiry was given, the expiry is derived from
// the receipt date.
func (s *StockService) ReceiveLot(ctx context.Context, tenantID string, lot *repository.Lot) error {
	item, err := s.items.GetByID(ctx, tenantID, lot.StockItemID)
	if err != nil {
		return err
	}

	if lot.QuantityReceived.Sign() <= 0 {
		return errors.Validation(map[string]string{
			"quantity_received": "must be positive",
		})
	}

	lot.QuantityOnHand = lot.QuantityReceived
	lot.QuantityReserved = decimal.Zero

	if lot.ExpiresAt == nil && item.ShelfLifeDays != nil && lot.ReceivedAt != nil {
		expires := lot.ReceivedAt.AddDate(0, 0, *item.ShelfLifeDays)
		lot.ExpiresAt = &expires
	}

	if err := s.lots.Create(ctx, tenantID, lot); err != nil {
		return err
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("lot_id", lot.ID).
		Str("lot_number", lot.LotNumber).
		Str("item_id", lot.StockItemID).
		Str("quantity", lot.QuantityReceived.String()).
		Msg("lot received")

	s.publisher.LotReceived(ctx, lot, item.UnitOfMeasure)

	return nil
}

// GetLot fetches a lot by ID
func (s *StockService) GetLot(ctx context.Context, tenantID, id string) (*repository.Lot, error) {
	return s.lots.GetByID(ctx, tenantID, id)
}

// ListLots fetches all lots for a stock item in receipt order
func (s *StockService) ListLots(ctx context.Context, tenantID, itemID string) ([]repository.Lot, error) {
	if _, err := s.items.GetByID(ctx, tenantID, itemID); err != nil {
		return nil, err
	}
	return s.lots.ListByItem(ctx, tenantID, itemID)
}

// UpdateLotDetails updates a lot's descriptive fields
func (s *StockService) UpdateLotDetails(ctx context.Context, tenantID string, lot *repository.Lot) error {
	return s.lots.UpdateDetails(ctx, tenantID, lot)
}

// LotAvailability is the per-lot slice of an availability report
type LotAvailability struct {
	LotID       string          `json:"lot_id"`
	LotNumber   string          `json:"lot_number"`
	OnHand      decimal.Decimal `json:"on_hand"`
	Reserved    decimal.Decimal `json:"reserved"`
	Available   decimal.Decimal `json:"available"`
	PercentUsed decimal.Decimal `json:"percent_used"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
	Alerted     bool            `json:"alerted"`
}

// AvailabilityReport describes whether a requirement can be covered and how
type AvailabilityReport struct {
	StockItemID    string             `json:"stock_item_id"`
	Required       decimal.Decimal    `json:"required"`
	Unit           string             `json:"unit"`
	TotalAvailable decimal.Decimal    `json:"total_available"`
	Sufficient     bool               `json:"sufficient"`
	Plan           *allocation.Result `json:"plan,omitempty"`
	Shortfall      decimal.Decimal    `json:"shortfall"`
	Message        string             `json:"message"`
	Lots           []LotAvailability  `json:"lots"`
}

// CheckAvailability reports whether the required quantity of an item can be
// covered by current lots, and how it would be allocated. Lots with active
// alerts are excluded unless includeAlerted. Insufficient stock is a normal
// answer here, not an error.
func (s *StockService) CheckAvailability(ctx context.Context, tenantID, itemID string, required decimal.Decimal, includeAlerted bool) (*AvailabilityReport, error) {
	item, err := s.items.GetByID(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}

	lots, err := s.lots.ListAvailableByItem(ctx, tenantID, itemID)
	if err != nil {
		return nil, err
	}

	options, err := lotOptionsWithAlerts(ctx, s.alerts, tenantID, lots)
	if err != nil {
		return nil, err
	}

	report := &AvailabilityReport{
		StockItemID: itemID,
		Required:    required,
		Unit:        item.UnitOfMeasure,
		Shortfall:   decimal.Zero,
		Lots:        make([]LotAvailability, 0, len(lots)),
	}

	for i := range lots {
		lot := &lots[i]
		view := LotAvailability{
			LotID:     lot.ID,
			LotNumber: lot.LotNumber,
			OnHand:    lot.QuantityOnHand,
			Reserved:  lot.QuantityReserved,
			Available: lot.Available(),
			ExpiresAt: lot.ExpiresAt,
			Alerted:   options[i].Alerted,
		}
		if lot.QuantityReceived.Sign() > 0 {
			used := lot.QuantityReceived.Sub(lot.Available())
			view.PercentUsed = used.Div(lot.QuantityReceived).Mul(decimal.NewFromInt(100)).Round(1)
		}
		report.Lots = append(report.Lots, view)

		if !options[i].Alerted || includeAlerted {
			report.TotalAvailable = report.TotalAvailable.Add(lot.Available())
		}
	}

	plan, err := allocation.Plan(allocation.Request{
		Category:       string(item.Category),
		Required:       required,
		Unit:           item.UnitOfMeasure,
		IncludeAlerted: includeAlerted,
	}, options)
	if err != nil {
		if errors.Is(err, errors.ErrInsufficientStock) {
			report.Shortfall = required.Sub(report.TotalAvailable)
			report.Message = fmt.Sprintf("Purchase needed: %s %s", report.Shortfall.String(), item.UnitOfMeasure)
			return report, nil
		}
		return nil, err
	}

	report.Sufficient = true
	report.Plan = plan
	report.Message = plan.Message

	return report, nil
}

// lotOptionsWithAlerts converts ledger lots into allocation candidates,
// marking lots that carry an active alert
func lotOptionsWithAlerts(ctx context.Context, alerts *repository.AlertRepository, tenantID string, lots []repository.Lot) ([]allocation.LotOption, error) {
	lotNumbers := make([]string, 0, len(lots))
	for _, lot := range lots {
		lotNumbers = append(lotNumbers, lot.LotNumber)
	}

	active, err := alerts.ListActiveByLotNumbers(ctx, tenantID, lotNumbers)
	if err != nil {
		return nil, err
	}

	alerted := make(map[string]*repository.LotAlert, len(active))
	for i := range active {
		if _, seen := alerted[active[i].LotNumber]; !seen {
			alerted[active[i].LotNumber] = &active[i]
		}
	}

	options := make([]allocation.LotOption, 0, len(lots))
	for _, lot := range lots {
		option := allocation.LotOption{
			LotID:      lot.ID,
			LotNumber:  lot.LotNumber,
			Available:  lot.Available(),
			ReceivedAt: lot.ReceivedAt,
			ExpiresAt:  lot.ExpiresAt,
		}
		if alert, ok := alerted[lot.LotNumber]; ok {
			option.Alerted = true
			option.AlertTitle = alert.Title
			option.AlertSeverity = string(alert.Severity)
		}
		options = append(options, option)
	}

	return options, nil
}

// CheckLowStock publishes a low stock event when an item's available
// quantity has dropped to or below its reorder level
func (s *StockService) CheckLowStock(ctx context.Context, tenantID, itemID string) {
	item, err := s.items.GetByID(ctx, tenantID, itemID)
	if err != nil {
		s.logger.Error().Err(err).Str("item_id", itemID).Msg("low stock check failed")
		return
	}

	if item.ReorderLevel.Sign() <= 0 {
		return
	}

	avail, err := s.items.GetAvailability(ctx, tenantID, itemID)
	if err != nil {
		s.logger.Error().Err(err).Str("item_id", itemID).Msg("low stock check failed")
		return
	}

	if avail.TotalAvailable.LessThanOrEqual(item.ReorderLevel) {
		s.logger.Warn().
			Str("tenant_id", tenantID).
			Str("item_id", itemID).
			Str("available", avail.TotalAvailable.String()).
			Str("reorder_level", item.ReorderLevel.String()).
			Msg("stock item below reorder level")

		s.publisher.StockItemLow(ctx, item, avail.TotalAvailable)
	}
}
