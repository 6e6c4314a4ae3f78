package testutil

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/fermentum/fermentum-backend/pkg/tenant"
)

// TestTenant represents a tenant created for testing.
// All tables are shared; isolation is row-level via the tenant_id column,
// so a test tenant is just a fresh UUID plus cleanup of its rows.
type TestTenant struct {
	ID   string
	Name string
}

// TenantManager tracks test tenants and removes their rows on cleanup
type TenantManager struct {
	db      *sqlx.DB
	tenants []TestTenant
	mu      sync.Mutex
}

// NewTenantManager creates a new tenant manager for tests
func NewTenantManager(db *sqlx.DB) *TenantManager {
	return &TenantManager{
		db:      db,
		tenants: make([]TestTenant, 0),
	}
}

// CreateTenant allocates a new isolated tenant for testing.
// Each test should use its own tenant so rows never collide.
func (tm *TenantManager) CreateTenant(ctx context.Context, name string) (*TestTenant, error) {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t := TestTenant{
		ID:   uuid.New().String(),
		Name: name,
	}

	tm.tenants = append(tm.tenants, t)
	return &t, nil
}

// DropTenant deletes all rows belonging to the tenant.
// Child tables cascade from their parents, so deleting stock items,
// reservations and alerts is sufficient.
func (tm *TenantManager) DropTenant(ctx context.Context, t *TestTenant) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if err := tm.deleteTenantRows(ctx, t.ID); err != nil {
		return err
	}

	for i, tracked := range tm.tenants {
		if tracked.ID == t.ID {
			tm.tenants = append(tm.tenants[:i], tm.tenants[i+1:]...)
			break
		}
	}

	return nil
}

// Cleanup removes rows for all tenants created by this manager.
// Call this in TestMain or test cleanup.
func (tm *TenantManager) Cleanup(ctx context.Context) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	var lastErr error
	for _, t := range tm.tenants {
		if err := tm.deleteTenantRows(ctx, t.ID); err != nil {
			lastErr = err
		}
	}

	tm.tenants = make([]TestTenant, 0)
	return lastErr
}

func (tm *TenantManager) deleteTenantRows(ctx context.Context, tenantID string) error {
	for _, table := range []string{"lot_alerts", "ingredient_reservations", "stock_items"} {
		if _, err := tm.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE tenant_id = $1", tenantID); err != nil {
			return err
		}
	}
	return nil
}

// WithTestTenant creates a context with tenant information for testing.
func WithTestTenant(ctx context.Context, t *TestTenant) context.Context {
	return tenant.WithTenantID(ctx, t.ID)
}

// TestTenantContext creates a context with a fake tenant for simple unit tests
// that don't need actual database isolation.
func TestTenantContext() context.Context {
	return tenant.WithTenantID(context.Background(), uuid.New().String())
}

// StockMigrations returns the stock service schema for tests.
// Mirrors the goose migrations under migrations/.
func StockMigrations() []string {
	return []string{
		// Stock catalog
		`CREATE TABLE IF NOT EXISTS stock_items (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			sku VARCHAR(100) NOT NULL,
			name VARCHAR(255) NOT NULL,
			category VARCHAR(20) NOT NULL,
			description TEXT,
			unit_of_measure VARCHAR(50) NOT NULL,
			reorder_level DECIMAL(18,6) NOT NULL DEFAULT 0,
			reorder_quantity DECIMAL(18,6) NOT NULL DEFAULT 0,
			shelf_life_days INT,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT stock_items_tenant_sku_key UNIQUE (tenant_id, sku),
			CONSTRAINT stock_items_ingredient_kind_valid CHECK (category IN ('grain', 'hop', 'yeast', 'additive'))
		)`,

		// Lot ledger
		`CREATE TABLE IF NOT EXISTS lots (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			stock_item_id UUID NOT NULL REFERENCES stock_items(id) ON DELETE CASCADE,
			lot_number VARCHAR(100) NOT NULL,
			quantity_received DECIMAL(18,6) NOT NULL,
			quantity_on_hand DECIMAL(18,6) NOT NULL,
			quantity_reserved DECIMAL(18,6) NOT NULL DEFAULT 0,
			unit_cost DECIMAL(12,4),
			supplier VARCHAR(255),
			received_at TIMESTAMPTZ,
			expires_at TIMESTAMPTZ,
			notes TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT lots_stock_lot_number_key UNIQUE (tenant_id, stock_item_id, lot_number),
			CONSTRAINT lots_quantity_non_negative CHECK (quantity_reserved >= 0 AND quantity_on_hand >= 0),
			CONSTRAINT lots_reserved_within_on_hand CHECK (quantity_reserved <= quantity_on_hand),
			CONSTRAINT lots_on_hand_within_received CHECK (quantity_on_hand <= quantity_received)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lots_tenant_item ON lots(tenant_id, stock_item_id)`,
		`CREATE INDEX IF NOT EXISTS idx_lots_expires_at ON lots(expires_at) WHERE expires_at IS NOT NULL`,

		// Reservations
		`CREATE TABLE IF NOT EXISTS ingredient_reservations (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			batch_ref VARCHAR(100) NOT NULL,
			stock_item_id UUID NOT NULL REFERENCES stock_items(id),
			quantity_required DECIMAL(18,6) NOT NULL,
			quantity_consumed DECIMAL(18,6) NOT NULL DEFAULT 0,
			unit VARCHAR(50) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'planned',
			created_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT reservations_status_valid CHECK (status IN ('planned', 'reserved', 'partially_consumed', 'consumed', 'cancelled'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_tenant_batch ON ingredient_reservations(tenant_id, batch_ref)`,

		// Per-lot reservation bindings
		`CREATE TABLE IF NOT EXISTS reservation_lots (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			reservation_id UUID NOT NULL REFERENCES ingredient_reservations(id) ON DELETE CASCADE,
			lot_id UUID NOT NULL REFERENCES lots(id),
			quantity_reserved DECIMAL(18,6) NOT NULL,
			quantity_consumed DECIMAL(18,6) NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT reservation_lots_key UNIQUE (reservation_id, lot_id)
		)`,

		// Lot alerts, keyed by supplier lot number so alerts can precede
		// the lot in the ledger
		`CREATE TABLE IF NOT EXISTS lot_alerts (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			tenant_id UUID NOT NULL,
			lot_number VARCHAR(100) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			title VARCHAR(255) NOT NULL,
			description TEXT,
			supplier_name VARCHAR(255),
			supplier_reference VARCHAR(100),
			affected_batches TEXT,
			recommended_action TEXT,
			internal_notes TEXT,
			acknowledged_by UUID,
			acknowledged_at TIMESTAMPTZ,
			resolved_by UUID,
			resolved_at TIMESTAMPTZ,
			resolution TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			CONSTRAINT lot_alerts_severity_valid CHECK (severity IN ('info', 'warning', 'critical', 'recall')),
			CONSTRAINT lot_alerts_alert_status_valid CHECK (status IN ('active', 'acknowledged', 'resolved'))
		)`,
		`CREATE INDEX IF NOT EXISTS idx_lot_alerts_tenant_status ON lot_alerts(tenant_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_lot_alerts_tenant_lot_number ON lot_alerts(tenant_id, lot_number)`,
	}
}
