package messaging

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	// Lot ledger events
	EventLotReceived = "stock.lot.received"
	EventLotReserved = "stock.lot.reserved"
	EventLotReleased = "stock.lot.released"
	EventLotConsumed = "stock.lot.consumed"
	EventLotExpiring = "stock.lot.expiring"

	// Stock catalog events
	EventStockItemLow = "stock.item.low"

	// Lot alert events
	EventAlertRaised       = "stock.alert.raised"
	EventAlertAcknowledged = "stock.alert.acknowledged"
	EventAlertResolved     = "stock.alert.resolved"

	// Upstream supplier events (consumed, not published)
	EventSupplierRecallIssued = "supplier.recall.issued"
)

// Exchange names
const (
	ExchangeStockEvents    = "stock.events"
	ExchangeSupplierEvents = "supplier.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// Lot Ledger Events

// LotReceivedEvent is published when a new lot is recorded in the ledger
type LotReceivedEvent struct {
	TenantID    string          `json:"tenant_id"`
	LotID       string          `json:"lot_id"`
	StockItemID string          `json:"stock_item_id"`
	LotNumber   string          `json:"lot_number"`
	Quantity    decimal.Decimal `json:"quantity"`
	Unit        string          `json:"unit"`
	Supplier    string          `json:"supplier,omitempty"`
	ReceivedAt  *time.Time      `json:"received_at,omitempty"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

// LotReservedEvent is published when quantity is reserved against a lot
type LotReservedEvent struct {
	TenantID      string          `json:"tenant_id"`
	LotID         string          `json:"lot_id"`
	StockItemID   string          `json:"stock_item_id"`
	ReservationID string          `json:"reservation_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
}

// LotReleasedEvent is published when a reservation is released back to a lot
type LotReleasedEvent struct {
	TenantID      string          `json:"tenant_id"`
	LotID         string          `json:"lot_id"`
	StockItemID   string          `json:"stock_item_id"`
	ReservationID string          `json:"reservation_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
}

// LotConsumedEvent is published when reserved quantity is consumed from a lot
type LotConsumedEvent struct {
	TenantID      string          `json:"tenant_id"`
	LotID         string          `json:"lot_id"`
	StockItemID   string          `json:"stock_item_id"`
	ReservationID string          `json:"reservation_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	Unit          string          `json:"unit"`
}

// LotExpiringEvent is published by the expiry sweeper for lots nearing expiry
type LotExpiringEvent struct {
	TenantID    string          `json:"tenant_id"`
	LotID       string          `json:"lot_id"`
	StockItemID string          `json:"stock_item_id"`
	LotNumber   string          `json:"lot_number"`
	ExpiresAt   time.Time       `json:"expires_at"`
	DaysUntil   int             `json:"days_until"`
	OnHand      decimal.Decimal `json:"on_hand"`
	Unit        string          `json:"unit"`
}

// Stock Catalog Events

// StockItemLowEvent is published when available quantity drops below reorder level
type StockItemLowEvent struct {
	TenantID     string          `json:"tenant_id"`
	StockItemID  string          `json:"stock_item_id"`
	SKU          string          `json:"sku"`
	Name         string          `json:"name"`
	Available    decimal.Decimal `json:"available"`
	ReorderLevel decimal.Decimal `json:"reorder_level"`
	Unit         string          `json:"unit"`
}

// Lot Alert Events

// AlertRaisedEvent is published when a lot alert is created. StockItemID is
// set only when the alerted lot number is already present in the ledger.
type AlertRaisedEvent struct {
	TenantID    string `json:"tenant_id"`
	AlertID     string `json:"alert_id"`
	LotNumber   string `json:"lot_number"`
	StockItemID string `json:"stock_item_id,omitempty"`
	Severity    string `json:"severity"`
	Title       string `json:"title"`
	Supplier    string `json:"supplier,omitempty"`
}

// AlertAcknowledgedEvent is published when a lot alert is acknowledged
type AlertAcknowledgedEvent struct {
	TenantID       string `json:"tenant_id"`
	AlertID        string `json:"alert_id"`
	LotNumber      string `json:"lot_number"`
	AcknowledgedBy string `json:"acknowledged_by"`
}

// AlertResolvedEvent is published when a lot alert is resolved
type AlertResolvedEvent struct {
	TenantID   string `json:"tenant_id"`
	AlertID    string `json:"alert_id"`
	LotNumber  string `json:"lot_number"`
	ResolvedBy string `json:"resolved_by"`
	Resolution string `json:"resolution,omitempty"`
}

// Supplier Events (consumed)

// SupplierRecallIssuedEvent arrives from the supplier feed when a supplier
// recalls one or more lots. The consumer matches affected lot numbers against
// the ledger and raises recall alerts.
type SupplierRecallIssuedEvent struct {
	Supplier          string   `json:"supplier"`
	Reference         string   `json:"reference"`
	Title             string   `json:"title"`
	Description       string   `json:"description,omitempty"`
	LotNumbers        []string `json:"lot_numbers"`
	RecommendedAction string   `json:"recommended_action,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return fmt.Sprintf("%d-%d", time.Now().UnixNano(), time.Now().Nanosecond()%10000)
}
