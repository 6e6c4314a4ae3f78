package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/fermentum/fermentum-backend/pkg/database"
	"github.com/fermentum/fermentum-backend/pkg/errors"
)

// ReservationRepository handles ingredient reservation persistence
type ReservationRepository struct {
	db *database.DB
}

// NewReservationRepository creates a new reservation repository
func NewReservationRepository(db *database.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

// Create inserts a reservation header
func (r *ReservationRepository) Create(ctx context.Context, tenantID string, res *IngredientReservation) error {
	res.TenantID = tenantID

	query := `
		INSERT INTO ingredient_reservations (
			tenant_id, batch_ref, stock_item_id, quantity_required,
			quantity_consumed, unit, status, created_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		res.TenantID, res.BatchRef, res.StockItemID, res.QuantityRequired,
		res.QuantityConsumed, res.Unit, res.Status, res.CreatedBy,
	).Scan(&res.ID, &res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return database.MapError(err, "failed to insert reservation")
	}

	return nil
}

// AddLine inserts a per-lot binding for a reservation
func (r *ReservationRepository) AddLine(ctx context.Context, tenantID string, line *ReservationLot) error {
	line.TenantID = tenantID

	query := `
		INSERT INTO reservation_lots (
			tenant_id, reservation_id, lot_id, quantity_reserved, quantity_consumed
		) VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		line.TenantID, line.ReservationID, line.LotID,
		line.QuantityReserved, line.QuantityConsumed,
	).Scan(&line.ID, &line.CreatedAt, &line.UpdatedAt)
	if err != nil {
		return database.MapError(err, "failed to insert reservation line")
	}

	return nil
}

// GetByID fetches a reservation with its per-lot lines
func (r *ReservationRepository) GetByID(ctx context.Context, tenantID, id string) (*IngredientReservation, error) {
	var res IngredientReservation
	query := `SELECT * FROM ingredient_reservations WHERE id = $1 AND tenant_id = $2`

	err := r.db.GetContext(ctx, &res, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("reservation")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get reservation: %w", err)
	}

	lines, err := r.getLines(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	res.Lines = lines

	return &res, nil
}

func (r *ReservationRepository) getLines(ctx context.Context, tenantID, reservationID string) ([]ReservationLot, error) {
	query := `
		SELECT rl.*, l.lot_number
		FROM reservation_lots rl
		JOIN lots l ON l.id = rl.lot_id
		WHERE rl.reservation_id = $1 AND rl.tenant_id = $2
		ORDER BY rl.created_at`

	lines := []ReservationLot{}
	if err := r.db.SelectContext(ctx, &lines, query, reservationID, tenantID); err != nil {
		return nil, fmt.Errorf("failed to get reservation lines: %w", err)
	}

	return lines, nil
}

// ListByBatchRef fetches all reservations for a brew batch, with lines
func (r *ReservationRepository) ListByBatchRef(ctx context.Context, tenantID, batchRef string) ([]IngredientReservation, error) {
	query := `
		SELECT * FROM ingredient_reservations
		WHERE batch_ref = $1 AND tenant_id = $2
		ORDER BY created_at`

	reservations := []IngredientReservation{}
	if err := r.db.SelectContext(ctx, &reservations, query, batchRef, tenantID); err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}

	for i := range reservations {
		lines, err := r.getLines(ctx, tenantID, reservations[i].ID)
		if err != nil {
			return nil, err
		}
		reservations[i].Lines = lines
	}

	return reservations, nil
}

// List fetches reservations with pagination and optional status filter
func (r *ReservationRepository) List(ctx context.Context, tenantID string, page, perPage int, status string) ([]IngredientReservation, int64, error) {
	offset := (page - 1) * perPage

	countQuery := `SELECT COUNT(*) FROM ingredient_reservations WHERE tenant_id = $1`
	listQuery := `SELECT * FROM ingredient_reservations WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	if status != "" {
		countQuery += ` AND status = $2`
		listQuery += ` AND status = $2`
		args = append(args, status)
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count reservations: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	reservations := []IngredientReservation{}
	if err := r.db.SelectContext(ctx, &reservations, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list reservations: %w", err)
	}

	return reservations, total, nil
}

// TransitionStatus moves a reservation from one expected status to another.
// The from-status guard is part of the WHERE clause, so of two concurrent
// commits of the same reservation only one can flip planned to reserved;
// the other matches zero rows and gets ErrInvalidTransition.
func (r *ReservationRepository) TransitionStatus(ctx context.Context, tenantID, id string, from, to ReservationStatus) error {
	query := `
		UPDATE ingredient_reservations SET status = $4, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = $3`

	result, err := r.db.ExecContext(ctx, query, id, tenantID, from, to)
	if err != nil {
		return database.MapError(err, "failed to transition reservation status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return r.statusTransitionError(ctx, tenantID, id, to)
	}

	return nil
}

// statusTransitionError distinguishes a missing reservation from an invalid
// transition after a guarded status update matched zero rows
func (r *ReservationRepository) statusTransitionError(ctx context.Context, tenantID, id string, to ReservationStatus) error {
	var current ReservationStatus
	query := `SELECT status FROM ingredient_reservations WHERE id = $1 AND tenant_id = $2`

	err := r.db.GetContext(ctx, &current, query, id, tenantID)
	if err == sql.ErrNoRows {
		return errors.NotFound("reservation")
	}
	if err != nil {
		return fmt.Errorf("failed to get reservation status: %w", err)
	}

	return errors.InvalidTransition(string(current), string(to))
}

// UpdateStatus transitions a reservation's status
func (r *ReservationRepository) UpdateStatus(ctx context.Context, tenantID, id string, status ReservationStatus) error {
	query := `
		UPDATE ingredient_reservations SET status = $3, updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, tenantID, status)
	if err != nil {
		return database.MapError(err, "failed to update reservation status")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("reservation")
	}

	return nil
}

// RecordConsumption adds to the consumed quantity of a reservation line and
// its header. The line update is guarded so consumption can never exceed
// what the line holds in reservation.
func (r *ReservationRepository) RecordConsumption(ctx context.Context, tenantID, reservationID, lotID string, quantity decimal.Decimal) error {
	lineQuery := `
		UPDATE reservation_lots SET
			quantity_consumed = quantity_consumed + $4,
			updated_at = NOW()
		WHERE reservation_id = $1 AND lot_id = $2 AND tenant_id = $3
		  AND quantity_reserved - quantity_consumed >= $4`

	result, err := r.db.ExecContext(ctx, lineQuery, reservationID, lotID, tenantID, quantity)
	if err != nil {
		return database.MapError(err, "failed to record line consumption")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return errors.OverConsume(lotID)
	}

	headerQuery := `
		UPDATE ingredient_reservations SET
			quantity_consumed = quantity_consumed + $3,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`

	if _, err := r.db.ExecContext(ctx, headerQuery, reservationID, tenantID, quantity); err != nil {
		return database.MapError(err, "failed to record reservation consumption")
	}

	return nil
}
