package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/fermentum/fermentum-backend/pkg/database"
	"github.com/fermentum/fermentum-backend/pkg/errors"
)

// nullableUUID maps an empty string to SQL NULL for optional UUID columns
func nullableUUID(id string) interface{} {
	if id == "" {
		return nil
	}
	return id
}

// AlertRepository handles lot alert persistence. Alerts are keyed by
// supplier lot number, not by ledger row, so an alert can be recorded
// before the lot it concerns has been received.
type AlertRepository struct {
	db *database.DB
}

// NewAlertRepository creates a new alert repository
func NewAlertRepository(db *database.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// Create inserts a new lot alert
func (r *AlertRepository) Create(ctx context.Context, tenantID string, alert *LotAlert) error {
	alert.TenantID = tenantID
	if alert.Status == "" {
		alert.Status = AlertStatusActive
	}

	query := `
		INSERT INTO lot_alerts (
			tenant_id, lot_number, severity, status, title, description,
			supplier_name, supplier_reference, affected_batches,
			recommended_action, internal_notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowxContext(ctx, query,
		alert.TenantID, alert.LotNumber, alert.Severity, alert.Status,
		alert.Title, alert.Description, alert.SupplierName,
		alert.SupplierReference, alert.AffectedBatches,
		alert.RecommendedAction, alert.InternalNotes,
	).Scan(&alert.ID, &alert.CreatedAt, &alert.UpdatedAt)
	if err != nil {
		return database.MapError(err, "failed to insert lot alert")
	}

	return nil
}

// GetByID fetches an alert by ID
func (r *AlertRepository) GetByID(ctx context.Context, tenantID, id string) (*LotAlert, error) {
	var alert LotAlert
	query := `SELECT * FROM lot_alerts WHERE id = $1 AND tenant_id = $2`

	err := r.db.GetContext(ctx, &alert, query, id, tenantID)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("lot alert")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lot alert: %w", err)
	}

	return &alert, nil
}

// List fetches alerts with pagination and optional status and severity filters
func (r *AlertRepository) List(ctx context.Context, tenantID string, page, perPage int, status, severity string) ([]LotAlert, int64, error) {
	offset := (page - 1) * perPage

	countQuery := `SELECT COUNT(*) FROM lot_alerts WHERE tenant_id = $1`
	listQuery := `SELECT * FROM lot_alerts WHERE tenant_id = $1`
	args := []interface{}{tenantID}

	if status != "" {
		args = append(args, status)
		cond := fmt.Sprintf(` AND status = $%d`, len(args))
		countQuery += cond
		listQuery += cond
	}
	if severity != "" {
		args = append(args, severity)
		cond := fmt.Sprintf(` AND severity = $%d`, len(args))
		countQuery += cond
		listQuery += cond
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count lot alerts: %w", err)
	}

	listQuery += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, perPage, offset)

	alerts := []LotAlert{}
	if err := r.db.SelectContext(ctx, &alerts, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list lot alerts: %w", err)
	}

	return alerts, total, nil
}

// ListByLotNumber fetches all alerts recorded against a lot number
func (r *AlertRepository) ListByLotNumber(ctx context.Context, tenantID, lotNumber string) ([]LotAlert, error) {
	query := `
		SELECT * FROM lot_alerts
		WHERE tenant_id = $1 AND lot_number = $2
		ORDER BY created_at DESC`

	alerts := []LotAlert{}
	if err := r.db.SelectContext(ctx, &alerts, query, tenantID, lotNumber); err != nil {
		return nil, fmt.Errorf("failed to list alerts for lot: %w", err)
	}

	return alerts, nil
}

// ListUnresolvedByLot fetches alerts on a lot number that are not yet resolved
func (r *AlertRepository) ListUnresolvedByLot(ctx context.Context, tenantID, lotNumber string) ([]LotAlert, error) {
	query := `
		SELECT * FROM lot_alerts
		WHERE tenant_id = $1 AND lot_number = $2 AND status != 'resolved'
		ORDER BY created_at DESC`

	alerts := []LotAlert{}
	if err := r.db.SelectContext(ctx, &alerts, query, tenantID, lotNumber); err != nil {
		return nil, fmt.Errorf("failed to list unresolved alerts for lot: %w", err)
	}

	return alerts, nil
}

// ListActiveByLotNumbers fetches all active alerts across the given lot
// numbers. The allocation planner uses this as its exclusion filter: a lot
// with an active alert is not offered unless the caller overrides.
func (r *AlertRepository) ListActiveByLotNumbers(ctx context.Context, tenantID string, lotNumbers []string) ([]LotAlert, error) {
	if len(lotNumbers) == 0 {
		return nil, nil
	}

	query := `
		SELECT * FROM lot_alerts
		WHERE tenant_id = $1
		  AND lot_number = ANY($2)
		  AND status = 'active'
		ORDER BY created_at`

	alerts := []LotAlert{}
	if err := r.db.SelectContext(ctx, &alerts, query, tenantID, pq.Array(lotNumbers)); err != nil {
		return nil, fmt.Errorf("failed to list active alerts: %w", err)
	}

	return alerts, nil
}

// Acknowledge transitions an active alert to acknowledged. The status guard
// is part of the WHERE clause so acknowledging twice, or acknowledging a
// resolved alert, matches zero rows.
func (r *AlertRepository) Acknowledge(ctx context.Context, tenantID, id, userID string) (*LotAlert, error) {
	query := `
		UPDATE lot_alerts SET
			status = 'acknowledged',
			acknowledged_by = $3,
			acknowledged_at = NOW(),
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status = 'active'`

	result, err := r.db.ExecContext(ctx, query, id, tenantID, nullableUUID(userID))
	if err != nil {
		return nil, database.MapError(err, "failed to acknowledge lot alert")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return nil, r.transitionError(ctx, tenantID, id, AlertStatusAcknowledged)
	}

	return r.GetByID(ctx, tenantID, id)
}

// Resolve transitions an active or acknowledged alert to resolved
func (r *AlertRepository) Resolve(ctx context.Context, tenantID, id, userID, resolution string) (*LotAlert, error) {
	query := `
		UPDATE lot_alerts SET
			status = 'resolved',
			resolved_by = $3,
			resolved_at = NOW(),
			resolution = $4,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2 AND status IN ('active', 'acknowledged')`

	result, err := r.db.ExecContext(ctx, query, id, tenantID, nullableUUID(userID), resolution)
	if err != nil {
		return nil, database.MapError(err, "failed to resolve lot alert")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return nil, r.transitionError(ctx, tenantID, id, AlertStatusResolved)
	}

	return r.GetByID(ctx, tenantID, id)
}

// transitionError distinguishes a missing alert from an invalid transition
// after a guarded status update matched zero rows
func (r *AlertRepository) transitionError(ctx context.Context, tenantID, id string, to AlertStatus) error {
	current, err := r.GetByID(ctx, tenantID, id)
	if err != nil {
		return err
	}
	return errors.InvalidTransition(string(current.Status), string(to))
}

// AppendInternalNotes appends a timestamped note to an alert's internal notes
func (r *AlertRepository) AppendInternalNotes(ctx context.Context, tenantID, id, note string) error {
	query := `
		UPDATE lot_alerts SET
			internal_notes = CASE
				WHEN internal_notes IS NULL OR internal_notes = '' THEN $3
				ELSE internal_notes || E'\n' || $3
			END,
			updated_at = NOW()
		WHERE id = $1 AND tenant_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, tenantID, note)
	if err != nil {
		return database.MapError(err, "failed to append alert notes")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return errors.NotFound("lot alert")
	}

	return nil
}
