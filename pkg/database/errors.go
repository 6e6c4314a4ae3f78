package database

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/lib/pq"

	"github.com/fermentum/fermentum-backend/pkg/errors"
)

// MapError converts a PostgreSQL constraint violation to its domain AppError
// and wraps any other error with context. Repositories must return errors
// through this, never through MapPQError directly: MapPQError yields a typed
// nil for non-pq errors (a dropped connection, a cancelled context), and a
// typed nil stuffed into an error interface is non-nil and panics under
// errors.Is.
func MapError(err error, msg string) error {
	if appErr := MapPQError(err); appErr != nil {
		return appErr
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// MapPQError converts a PostgreSQL error to an AppError with meaningful messages.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	pqErr, ok := err.(*pq.Error)
	if !ok {
		return nil
	}

	switch pqErr.Code {
	// Check constraint violation (23514)
	case "23514":
		return mapCheckConstraint(pqErr)

	// Unique constraint violation (23505)
	case "23505":
		return mapUniqueConstraint(pqErr)

	// Foreign key violation (23503)
	case "23503":
		return errors.BadRequest("referenced record does not exist")

	// Not null violation (23502)
	case "23502":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// mapCheckConstraint maps specific CHECK constraint names to user-friendly messages.
func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "reserved_within_on_hand"):
		return errors.Conflict("reserved quantity cannot exceed on-hand quantity")

	case strings.Contains(constraint, "on_hand_within_received"):
		return errors.Conflict("on-hand quantity cannot exceed received quantity")

	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Conflict("lot quantities cannot go negative")

	case strings.Contains(constraint, "ingredient_kind_valid"):
		return errors.Validation(map[string]string{
			"category": "must be one of: grain, hop, yeast, additive",
		})

	case strings.Contains(constraint, "severity_valid"):
		return errors.Validation(map[string]string{
			"severity": "must be one of: info, warning, critical, recall",
		})

	case strings.Contains(constraint, "alert_status_valid"):
		return errors.Validation(map[string]string{
			"status": "must be one of: active, acknowledged, resolved",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

// mapUniqueConstraint maps unique constraint violations to domain errors.
func mapUniqueConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "lots_stock_lot_number"):
		return errors.Wrap(errors.ErrDuplicateLot, "DUPLICATE_LOT",
			"this lot number has already been received for this stock item", http.StatusConflict)
	case strings.Contains(constraint, "sku"):
		return errors.Conflict("a stock item with this SKU already exists")
	default:
		return errors.Conflict("a record with these values already exists")
	}
}
