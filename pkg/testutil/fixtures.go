package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StockItemFixture represents test stock item data
type StockItemFixture struct {
	ID              string
	TenantID        string
	SKU             string
	Name            string
	Category        string
	Description     string
	UnitOfMeasure   string
	ReorderLevel    decimal.Decimal
	ReorderQuantity decimal.Decimal
	ShelfLifeDays   *int
	IsActive        bool
	CreatedAt       time.Time
}

// LotFixture represents test lot data
type LotFixture struct {
	ID               string
	TenantID         string
	StockItemID      string
	LotNumber        string
	QuantityReceived decimal.Decimal
	QuantityOnHand   decimal.Decimal
	QuantityReserved decimal.Decimal
	Supplier         string
	ReceivedAt       *time.Time
	ExpiresAt        *time.Time
	CreatedAt        time.Time
}

// AlertFixture represents test lot alert data
type AlertFixture struct {
	ID           string
	TenantID     string
	LotNumber    string
	Severity     string
	Status       string
	Title        string
	Description  string
	SupplierName string
	CreatedAt    time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// StockItem creates a stock item fixture with defaults
func (f *FixtureFactory) StockItem(tenantID string, opts ...func(*StockItemFixture)) StockItemFixture {
	seq := f.nextSeq()

	item := StockItemFixture{
		ID:              uuid.New().String(),
		TenantID:        tenantID,
		SKU:             fmt.Sprintf("SKU-%04d", seq),
		Name:            fmt.Sprintf("Test Ingredient %d", seq),
		Category:        "grain",
		Description:     "Test stock item",
		UnitOfMeasure:   "kg",
		ReorderLevel:    decimal.NewFromInt(10),
		ReorderQuantity: decimal.NewFromInt(50),
		IsActive:        true,
		CreatedAt:       time.Now(),
	}

	for _, opt := range opts {
		opt(&item)
	}

	return item
}

// WithSKU sets the stock item SKU
func WithSKU(sku string) func(*StockItemFixture) {
	return func(i *StockItemFixture) {
		i.SKU = sku
	}
}

// WithItemName sets the stock item name
func WithItemName(name string) func(*StockItemFixture) {
	return func(i *StockItemFixture) {
		i.Name = name
	}
}

// WithCategory sets the stock item ingredient category
func WithCategory(category string) func(*StockItemFixture) {
	return func(i *StockItemFixture) {
		i.Category = category
	}
}

// WithUnit sets the stock item unit of measure
func WithUnit(unit string) func(*StockItemFixture) {
	return func(i *StockItemFixture) {
		i.UnitOfMeasure = unit
	}
}

// WithReorderLevel sets the stock item reorder level
func WithReorderLevel(level decimal.Decimal) func(*StockItemFixture) {
	return func(i *StockItemFixture) {
		i.ReorderLevel = level
	}
}

// Lot creates a lot fixture with defaults.
// The lot starts fully on hand with nothing reserved.
func (f *FixtureFactory) Lot(tenantID, stockItemID string, opts ...func(*LotFixture)) LotFixture {
	seq := f.nextSeq()
	received := time.Now().AddDate(0, 0, -seq)

	lot := LotFixture{
		ID:               uuid.New().String(),
		TenantID:         tenantID,
		StockItemID:      stockItemID,
		LotNumber:        fmt.Sprintf("LOT-%04d", seq),
		QuantityReceived: decimal.NewFromInt(100),
		QuantityOnHand:   decimal.NewFromInt(100),
		QuantityReserved: decimal.Zero,
		Supplier:         "Test Maltings",
		ReceivedAt:       &received,
		CreatedAt:        time.Now(),
	}

	for _, opt := range opts {
		opt(&lot)
	}

	return lot
}

// WithLotNumber sets the lot number
func WithLotNumber(number string) func(*LotFixture) {
	return func(l *LotFixture) {
		l.LotNumber = number
	}
}

// WithQuantities sets received, on-hand and reserved quantities
func WithQuantities(received, onHand, reserved decimal.Decimal) func(*LotFixture) {
	return func(l *LotFixture) {
		l.QuantityReceived = received
		l.QuantityOnHand = onHand
		l.QuantityReserved = reserved
	}
}

// WithSupplier sets the lot supplier
func WithSupplier(supplier string) func(*LotFixture) {
	return func(l *LotFixture) {
		l.Supplier = supplier
	}
}

// WithReceivedAt sets the lot received date
func WithReceivedAt(t time.Time) func(*LotFixture) {
	return func(l *LotFixture) {
		l.ReceivedAt = &t
	}
}

// WithExpiresAt sets the lot expiration date
func WithExpiresAt(t time.Time) func(*LotFixture) {
	return func(l *LotFixture) {
		l.ExpiresAt = &t
	}
}

// WithNoDates clears received and expiration dates
func WithNoDates() func(*LotFixture) {
	return func(l *LotFixture) {
		l.ReceivedAt = nil
		l.ExpiresAt = nil
	}
}

// Alert creates a lot alert fixture with defaults, keyed by lot number
func (f *FixtureFactory) Alert(tenantID, lotNumber string, opts ...func(*AlertFixture)) AlertFixture {
	seq := f.nextSeq()

	alert := AlertFixture{
		ID:           uuid.New().String(),
		TenantID:     tenantID,
		LotNumber:    lotNumber,
		Severity:     "warning",
		Status:       "active",
		Title:        fmt.Sprintf("Test alert %d", seq),
		Description:  "Test lot alert",
		SupplierName: "Test Maltings",
		CreatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(&alert)
	}

	return alert
}

// WithSeverity sets the alert severity
func WithSeverity(severity string) func(*AlertFixture) {
	return func(a *AlertFixture) {
		a.Severity = severity
	}
}

// WithAlertStatus sets the alert status
func WithAlertStatus(status string) func(*AlertFixture) {
	return func(a *AlertFixture) {
		a.Status = status
	}
}

// WithTitle sets the alert title
func WithTitle(title string) func(*AlertFixture) {
	return func(a *AlertFixture) {
		a.Title = title
	}
}
