package repository

import (
	"time"

	"github.com/shopspring/decimal"
)

// IngredientCategory classifies a stock item by brewing ingredient kind
type IngredientCategory string

const (
	CategoryGrain    IngredientCategory = "grain"
	CategoryHop      IngredientCategory = "hop"
	CategoryYeast    IngredientCategory = "yeast"
	CategoryAdditive IngredientCategory = "additive"
)

// Valid reports whether the category is one of the known ingredient kinds
func (c IngredientCategory) Valid() bool {
	switch c {
	case CategoryGrain, CategoryHop, CategoryYeast, CategoryAdditive:
		return true
	}
	return false
}

// ReservationStatus tracks the lifecycle of an ingredient reservation
type ReservationStatus string

const (
	ReservationStatusPlanned           ReservationStatus = "planned"
	ReservationStatusReserved          ReservationStatus = "reserved"
	ReservationStatusPartiallyConsumed ReservationStatus = "partially_consumed"
	ReservationStatusConsumed          ReservationStatus = "consumed"
	ReservationStatusCancelled         ReservationStatus = "cancelled"
)

// AlertSeverity indicates how serious a lot alert is
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
	SeverityRecall   AlertSeverity = "recall"
)

// Valid reports whether the severity is one of the known levels
func (s AlertSeverity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical, SeverityRecall:
		return true
	}
	return false
}

// AlertStatus tracks the lifecycle of a lot alert
type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
)

// StockItem is a catalog entry for a brewing ingredient
type StockItem struct {
	ID              string             `db:"id" json:"id"`
	TenantID        string             `db:"tenant_id" json:"tenant_id"`
	SKU             string             `db:"sku" json:"sku"`
	Name            string             `db:"name" json:"name"`
	Category        IngredientCategory `db:"category" json:"category"`
	Description     *string            `db:"description" json:"description,omitempty"`
	UnitOfMeasure   string             `db:"unit_of_measure" json:"unit_of_measure"`
	ReorderLevel    decimal.Decimal    `db:"reorder_level" json:"reorder_level"`
	ReorderQuantity decimal.Decimal    `db:"reorder_quantity" json:"reorder_quantity"`
	ShelfLifeDays   *int               `db:"shelf_life_days" json:"shelf_life_days,omitempty"`
	IsActive        bool               `db:"is_active" json:"is_active"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`

	// Computed fields (not stored)
	TotalOnHand    decimal.Decimal `db:"-" json:"total_on_hand"`
	TotalAvailable decimal.Decimal `db:"-" json:"total_available"`
	LotCount       int             `db:"-" json:"lot_count"`
}

// Lot is a received batch of a stock item tracked in the lot ledger
type Lot struct {
	ID               string           `db:"id" json:"id"`
	TenantID         string           `db:"tenant_id" json:"tenant_id"`
	StockItemID      string           `db:"stock_item_id" json:"stock_item_id"`
	LotNumber        string           `db:"lot_number" json:"lot_number"`
	QuantityReceived decimal.Decimal  `db:"quantity_received" json:"quantity_received"`
	QuantityOnHand   decimal.Decimal  `db:"quantity_on_hand" json:"quantity_on_hand"`
	QuantityReserved decimal.Decimal  `db:"quantity_reserved" json:"quantity_reserved"`
	UnitCost         *decimal.Decimal `db:"unit_cost" json:"unit_cost,omitempty"`
	Supplier         *string          `db:"supplier" json:"supplier,omitempty"`
	ReceivedAt       *time.Time       `db:"received_at" json:"received_at,omitempty"`
	ExpiresAt        *time.Time       `db:"expires_at" json:"expires_at,omitempty"`
	Notes            *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt        time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

// Available returns the quantity that can still be reserved from this lot
func (l *Lot) Available() decimal.Decimal {
	return l.QuantityOnHand.Sub(l.QuantityReserved)
}

// IngredientReservation holds quantities of a stock item for a brew batch
type IngredientReservation struct {
	ID               string            `db:"id" json:"id"`
	TenantID         string            `db:"tenant_id" json:"tenant_id"`
	BatchRef         string            `db:"batch_ref" json:"batch_ref"`
	StockItemID      string            `db:"stock_item_id" json:"stock_item_id"`
	QuantityRequired decimal.Decimal   `db:"quantity_required" json:"quantity_required"`
	QuantityConsumed decimal.Decimal   `db:"quantity_consumed" json:"quantity_consumed"`
	Unit             string            `db:"unit" json:"unit"`
	Status           ReservationStatus `db:"status" json:"status"`
	CreatedBy        *string           `db:"created_by" json:"created_by,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`

	// Lines are the per-lot bindings backing this reservation (not stored on this row)
	Lines []ReservationLot `db:"-" json:"lines,omitempty"`
}

// Outstanding returns the reserved quantity not yet consumed
func (r *IngredientReservation) Outstanding() decimal.Decimal {
	return r.QuantityRequired.Sub(r.QuantityConsumed)
}

// ReservationLot binds part of a reservation to a concrete lot
type ReservationLot struct {
	ID               string          `db:"id" json:"id"`
	TenantID         string          `db:"tenant_id" json:"tenant_id"`
	ReservationID    string          `db:"reservation_id" json:"reservation_id"`
	LotID            string          `db:"lot_id" json:"lot_id"`
	QuantityReserved decimal.Decimal `db:"quantity_reserved" json:"quantity_reserved"`
	QuantityConsumed decimal.Decimal `db:"quantity_consumed" json:"quantity_consumed"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`

	// LotNumber is joined in for display (not stored on this row)
	LotNumber string `db:"lot_number" json:"lot_number,omitempty"`
}

// Outstanding returns the per-lot quantity still held but not consumed
func (rl *ReservationLot) Outstanding() decimal.Decimal {
	return rl.QuantityReserved.Sub(rl.QuantityConsumed)
}

// LotAlert is a quality or recall notice keyed by supplier lot number.
// Alerts reference lots by number rather than by ledger row because an
// alert can arrive from the supplier feed before the lot is received.
type LotAlert struct {
	ID                string        `db:"id" json:"id"`
	TenantID          string        `db:"tenant_id" json:"tenant_id"`
	LotNumber         string        `db:"lot_number" json:"lot_number"`
	Severity          AlertSeverity `db:"severity" json:"severity"`
	Status            AlertStatus   `db:"status" json:"status"`
	Title             string        `db:"title" json:"title"`
	Description       *string       `db:"description" json:"description,omitempty"`
	SupplierName      *string       `db:"supplier_name" json:"supplier_name,omitempty"`
	SupplierReference *string       `db:"supplier_reference" json:"supplier_reference,omitempty"`
	AffectedBatches   *string       `db:"affected_batches" json:"affected_batches,omitempty"`
	RecommendedAction *string       `db:"recommended_action" json:"recommended_action,omitempty"`
	InternalNotes     *string       `db:"internal_notes" json:"internal_notes,omitempty"`
	AcknowledgedBy    *string       `db:"acknowledged_by" json:"acknowledged_by,omitempty"`
	AcknowledgedAt    *time.Time    `db:"acknowledged_at" json:"acknowledged_at,omitempty"`
	ResolvedBy        *string       `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt        *time.Time    `db:"resolved_at" json:"resolved_at,omitempty"`
	Resolution        *string       `db:"resolution" json:"resolution,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// Blocking reports whether the alert excludes its lot from allocation.
// Active is the only state that blocks; acknowledging an alert is the
// operator's decision to allow the lot again.
func (a *LotAlert) Blocking() bool {
	return a.Status == AlertStatusActive
}
