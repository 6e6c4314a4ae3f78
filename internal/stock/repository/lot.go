package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/fermentum/fermentum-backend/pkg/database"
	"github.com/fermentum/fermentum-backend/pkg/errors"
)

// LotRepository handles lot ledger persistence.
//
// Reserve, Release and Consume use guarded conditional updates: the quantity
// predicate is part of the WHERE clause, so a concurrent writer that drains
// the lot first simply makes the update match zero rows. Callers translate
// zero rows into the appropriate conflict error and may retry with a fresh
// allocation plan.
type LotRepository struct {
	db *database.DB
}

// NewLotRepository creates a new lot repository
func NewLotRepository(db *database.DB) *LotRepository {
	return &LotRepository{db: db}
}

// Create records a newly received lot
func (r *LotRepository) Create(ctx context.Context, tenantID string, lot *Lot) error {
	lot.TenantID = tenantID

	query := `
		INSERT INTO lots (
			tenant_id, stock_item_id, lot_number, quantity_received,
			quantity_on_hand, quantity_reserved, unit_cost, supplier,
			received_at, expires_at, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		lot.TenantID, lot.StockItemID, lot.LotNumber, lot.QuantityReceived,
		lot.QuantityOnHand, lot.QuantityReserved, lot.UnitCost, lot.Supplier,
		lot.ReceivedAt, lot.ExpiresAt, lot.Notes,
	).Scan(&lot.ID, &lot.CreatedAt, &lot.UpdatedAt)
	if err != nil {
		return database.MapError(err, "failed to insert lot")
	}

	return nil
}

// GetByID fetches a lot by ID
func (r *LotRepository) GetByID(ctx context.Context, tenantID, id string) (*Lot, error) {
	var lot Lot
	query := `SELECT * FROM lots WHERE id = $1 AND tenant_id = $2`

	err := r.db.GetContext(ctx, &lot, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("lot")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lot: %w", err)
	}

	return &lot, nil
}

// ListByItem fetches all lots for a stock item in receipt order
func (r *LotRepository) ListByItem(ctx context.Context, tenantID, itemID string) ([]Lot, error) {
	query := `
		SELECT * FROM lots
		WHERE stock_item_id = $1 AND tenant_id = $2
		ORDER BY received_at NULLS LAST, expires_at NULLS LAST, created_at`

	lots := []Lot{}
	if err := r.db.SelectContext(ctx, &lots, query, itemID, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list lots: %w", err)
	}

	return lots, nil
}

// ListAvailableByItem fetches lots with remaining availability in allocation
// order: oldest receipt first, earliest expiry breaking ties, lots without
// dates last.
func (r *LotRepository) ListAvailableByItem(ctx context.Context, tenantID, itemID string) ([]Lot, error) {
	query := `
		SELECT * FROM lots
		WHERE stock_item_id = $1 AND tenant_id = $2
		  AND quantity_on_hand - quantity_reserved > 0
		ORDER BY received_at NULLS LAST, expires_at NULLS LAST, created_at`

	lots := []Lot{}
	if err := r.db.SelectContext(ctx, &lots, query, itemID, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list available lots: %w", err)
	}

	return lots, nil
}

// ListByNumbers fetches lots matching any of the given lot numbers.
// Used by the supplier recall consumer to find affected lots.
func (r *LotRepository) ListByNumbers(ctx context.Context, tenantID string, lotNumbers []string) ([]Lot, error) {
	if len(lotNumbers) == 0 {
		return []Lot{}, nil
	}

	query := `SELECT * FROM lots WHERE tenant_id = $1 AND lot_number = ANY($2)`

	lots := []Lot{}
	if err := r.db.SelectContext(ctx, &lots, query, tenantID, pq.Array(lotNumbers)); err != nil {
		return nil, fmt.Errorf("failed to list lots by number: %w", err)
	}

	return lots, nil
}

// ListExpiringWithin fetches lots with remaining stock that expire within
// the given number of days
func (r *LotRepository) ListExpiringWithin(ctx context.Context, tenantID string, days int) ([]Lot, error) {
	query := `
		SELECT * FROM lots
		WHERE tenant_id = $1
		  AND quantity_on_hand > 0
		  AND expires_at IS NOT NULL
		  AND expires_at <= NOW() + ($2 || ' days')::interval
		ORDER BY expires_at`

	lots := []Lot{}
	if err := r.db.SelectContext(ctx, &lots, query, tenantID, days); err != nil {
		return nil, fmt.Errorf("failed to list expiring lots: %w", err)
	}

	return lots, nil
}

// ListTenantsWithStock returns the distinct tenants that currently hold
// stock. Used by the expiry sweeper to scan every tenant.
func (r *LotRepository) ListTenantsWithStock(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT tenant_id FROM lots WHERE quantity_on_hand > 0`

	tenantIDs := []string{}
	if err := r.db.SelectContext(ctx, &tenantIDs, query); err != nil {
		return nil, fmt.Errorf("failed to list tenants with stock: %w", err)
	}

	return tenantIDs, nil
}

// Reserve increases the reserved quantity of a lot if enough is available.
// Returns ErrInsufficientAvailable when the lot does not hold the quantity,
// whether it never did or a concurrent reservation drained it first. Callers
// committing a previously planned allocation translate this into a conflict
// and replan.
func (r *LotRepository) Reserve(ctx context.Context, tenantID, lotID string, quantity decimal.Decimal) error {
	query := `
		UPDATE lots SET
			quantity_reserved = quantity_reserved + $3,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		  AND quantity_on_hand - quantity_reserved >= $3`

	result, err := r.db.ExecContext(ctx, query, lotID, tenantID, quantity)
	if err != nil {
		return database.MapError(err, "failed to reserve lot quantity")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return errors.InsufficientAvailable(lotID)
	}

	return nil
}

// Release decreases the reserved quantity of a lot. Returns ErrOverRelease
// when the lot does not hold that much in reservation.
func (r *LotRepository) Release(ctx context.Context, tenantID, lotID string, quantity decimal.Decimal) error {
	query := `
		UPDATE lots SET
			quantity_reserved = quantity_reserved - $3,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		  AND quantity_reserved >= $3`

	result, err := r.db.ExecContext(ctx, query, lotID, tenantID, quantity)
	if err != nil {
		return database.MapError(err, "failed to release lot quantity")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return errors.OverRelease(lotID)
	}

	return nil
}

// Consume converts reserved quantity into consumed stock: both the on-hand
// and reserved quantities drop together so the lot's availability for other
// reservations is unchanged. Returns ErrOverConsume when the lot does not
// hold that much in reservation.
func (r *LotRepository) Consume(ctx context.Context, tenantID, lotID string, quantity decimal.Decimal) error {
	query := `
		UPDATE lots SET
			quantity_on_hand = quantity_on_hand - $3,
			quantity_reserved = quantity_reserved - $3,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		  AND quantity_reserved >= $3`

	result, err := r.db.ExecContext(ctx, query, lotID, tenantID, quantity)
	if err != nil {
		return database.MapError(err, "failed to consume lot quantity")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return errors.OverConsume(lotID)
	}

	return nil
}

// UpdateDetails updates a lot's descriptive fields. Quantities move only
// through Reserve, Release and Consume.
func (r *LotRepository) UpdateDetails(ctx context.Context, tenantID string, lot *Lot) error {
	query := `
		UPDATE lots SET
			unit_cost = $3, supplier = $4, expires_at = $5, notes = $6,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		lot.ID, tenantID, lot.UnitCost, lot.Supplier, lot.ExpiresAt, lot.Notes,
	).Scan(&lot.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("lot")
	}
	if err != nil {
		return database.MapError(err, "failed to update lot")
	}

	return nil
}
