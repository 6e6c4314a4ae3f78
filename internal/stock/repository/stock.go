package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fermentum/fermentum-backend/pkg/database"
	"github.com/fermentum/fermentum-backend/pkg/errors"
)

// StockRepository handles stock catalog persistence
type StockRepository struct {
	db *database.DB
}

// NewStockRepository creates a new stock repository
func NewStockRepository(db *database.DB) *StockRepository {
	return &StockRepository{db: db}
}

// Create inserts a new stock item
func (r *StockRepository) Create(ctx context.Context, tenantID string, item *StockItem) error {
	item.TenantID = tenantID

	query := `
		INSERT INTO stock_items (
			tenant_id, sku, name, category, description, unit_of_measure,
			reorder_level, reorder_quantity, shelf_life_days, is_active
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		item.TenantID, item.SKU, item.Name, item.Category, item.Description,
		item.UnitOfMeasure, item.ReorderLevel, item.ReorderQuantity,
		item.ShelfLifeDays, item.IsActive,
	).Scan(&item.ID, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return database.MapError(err, "failed to insert stock item")
	}

	return nil
}

// GetByID fetches a stock item by ID
func (r *StockRepository) GetByID(ctx context.Context, tenantID, id string) (*StockItem, error) {
	var item StockItem
	query := `SELECT * FROM stock_items WHERE id = $1 AND tenant_id = $2`

	err := r.db.GetContext(ctx, &item, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("stock item")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock item: %w", err)
	}

	return &item, nil
}

// GetBySKU fetches a stock item by its SKU
func (r *StockRepository) GetBySKU(ctx context.Context, tenantID, sku string) (*StockItem, error) {
	var item StockItem
	query := `SELECT * FROM stock_items WHERE sku = $1 AND tenant_id = $2`

	err := r.db.GetContext(ctx, &item, query, sku, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("stock item")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get stock item by sku: %w", err)
	}

	return &item, nil
}

// List fetches stock items with pagination and optional category filter
func (r *StockRepository) List(ctx context.Context, tenantID string, page, perPage int, category string) ([]StockItem, int64, error) {
	offset := (page - 1) * perPage

	countQuery := `SELECT COUNT(*) FROM stock_items WHERE tenant_id = $1 AND is_active = TRUE`
	listQuery := `SELECT * FROM stock_items WHERE tenant_id = $1 AND is_active = TRUE`
	args := []interface{}{tenantID}

	if category != "" {
		countQuery += ` AND category = $2`
		listQuery += ` AND category = $2`
		args = append(args, category)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count stock items: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY name LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	items := []StockItem{}
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list stock items: %w", err)
	}

	return items, total, nil
}

// Update updates a stock item's catalog fields
func (r *StockRepository) Update(ctx context.Context, tenantID string, item *StockItem) error {
	query := `
		UPDATE stock_items SET
			name = $3, category = $4, description = $5, unit_of_measure = $6,
			reorder_level = $7, reorder_quantity = $8, shelf_life_days = $9,
			is_active = $10, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2
		RETURNING updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		item.ID, tenantID, item.Name, item.Category, item.Description,
		item.UnitOfMeasure, item.ReorderLevel, item.ReorderQuantity,
		item.ShelfLifeDays, item.IsActive,
	).Scan(&item.UpdatedAt)
	if err == sql.ErrNoRows {
		return errors.NotFound("stock item")
	}
	if err != nil {
		return database.MapError(err, "failed to update stock item")
	}

	item.TenantID = tenantID
	return nil
}

// Deactivate soft-deletes a stock item so it no longer appears in the catalog.
// Lots and reservation history are kept.
func (r *StockRepository) Deactivate(ctx context.Context, tenantID, id string) error {
	query := `UPDATE stock_items SET is_active = FALSE, updated_at = NOW() WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, tenantID)
	if err != nil {
		return fmt.Errorf("failed to deactivate stock item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("stock item")
	}

	return nil
}

// ItemAvailability is the aggregated lot position for one stock item
type ItemAvailability struct {
	StockItemID    string          `db:"stock_item_id"`
	TotalOnHand    decimal.Decimal `db:"total_on_hand"`
	TotalReserved  decimal.Decimal `db:"total_reserved"`
	TotalAvailable decimal.Decimal `db:"total_available"`
	LotCount       int             `db:"lot_count"`
}

// GetAvailability aggregates the lot ledger for a stock item
func (r *StockRepository) GetAvailability(ctx context.Context, tenantID, itemID string) (*ItemAvailability, error) {
	var avail ItemAvailability
	query := `
		SELECT
			$1::uuid AS stock_item_id,
			COALESCE(SUM(quantity_on_hand), 0) AS total_on_hand,
			COALESCE(SUM(quantity_reserved), 0) AS total_reserved,
			COALESCE(SUM(quantity_on_hand - quantity_reserved), 0) AS total_available,
			COUNT(*) AS lot_count
		FROM lots
		WHERE stock_item_id = $1 AND tenant_id = $2`

	if err := r.db.GetContext(ctx, &avail, query, itemID, tenantID); err != nil {
		return nil, fmt.Errorf("failed to aggregate availability: %w", err)
	}

	return &avail, nil
}

// ListBelowReorderLevel fetches active items whose available quantity has
// fallen to or below their reorder level
func (r *StockRepository) ListBelowReorderLevel(ctx context.Context, tenantID string) ([]StockItem, error) {
	query := `
		SELECT i.* FROM stock_items i
		WHERE i.tenant_id = $1 AND i.is_active = TRUE
		  AND i.reorder_level > 0
		  AND COALESCE((
			SELECT SUM(l.quantity_on_hand - l.quantity_reserved)
			FROM lots l
			WHERE l.stock_item_id = i.id AND l.tenant_id = i.tenant_id
		  ), 0) <= i.reorder_level
		ORDER BY i.name`

	items := []StockItem{}
	if err := r.db.SelectContext(ctx, &items, query, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list items below reorder level: %w", err)
	}

	return items, nil
}
