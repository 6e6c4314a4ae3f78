package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Standard error types
var (
	ErrNotFound   = errors.New("resource not found")
	ErrForbidden  = errors.New("forbidden")
	ErrBadRequest = errors.New("bad request")
	ErrConflict   = errors.New("resource conflict")
	ErrInternal   = errors.New("internal server error")
	ErrValidation = errors.New("validation error")

	// Ledger and allocation error types
	ErrDuplicateLot          = errors.New("duplicate lot")
	ErrInsufficientAvailable = errors.New("insufficient available quantity")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrOverRelease           = errors.New("release exceeds reserved quantity")
	ErrOverConsume           = errors.New("consumption exceeds reserved or on-hand quantity")
	ErrAllocationConflict    = errors.New("allocation conflict")
	ErrInvalidTransition     = errors.New("invalid alert state transition")
	ErrBlockedByActiveAlert  = errors.New("lot blocked by active alert")
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Code:       "CONFLICT",
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func Validation(details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Code:       "VALIDATION_ERROR",
		Message:    "validation failed",
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// Ledger and allocation error constructors

// DuplicateLot is returned when receiving a lot number that already exists
// for the same stock item.
func DuplicateLot(lotNumber string) *AppError {
	return &AppError{
		Err:        ErrDuplicateLot,
		Code:       "DUPLICATE_LOT",
		Message:    fmt.Sprintf("lot %s already exists for this stock item", lotNumber),
		StatusCode: http.StatusConflict,
	}
}

// InsufficientAvailable is returned when a reservation asks for more than a
// single lot's available (on-hand minus reserved) quantity.
func InsufficientAvailable(lotID string) *AppError {
	return &AppError{
		Err:        ErrInsufficientAvailable,
		Code:       "INSUFFICIENT_AVAILABLE",
		Message:    "requested amount exceeds available quantity on lot",
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"lot_id": lotID},
	}
}

// InsufficientStock is returned when the total available quantity across all
// lots cannot cover the required amount. The shortfall is reported exactly so
// the operator can decide to purchase or substitute.
func InsufficientStock(shortfall decimal.Decimal, unit string) *AppError {
	return &AppError{
		Err:        ErrInsufficientStock,
		Code:       "INSUFFICIENT_STOCK",
		Message:    fmt.Sprintf("insufficient stock: short %s %s", shortfall.String(), unit),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"shortfall": shortfall.String(),
			"unit":      unit,
		},
	}
}

// OverRelease is returned when a release would drive a reserved quantity
// negative. Releasing more than is reserved indicates a bookkeeping bug
// elsewhere and must fail loudly rather than clamp to zero.
func OverRelease(lotID string) *AppError {
	return &AppError{
		Err:        ErrOverRelease,
		Code:       "OVER_RELEASE",
		Message:    "release exceeds reserved quantity on lot",
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"lot_id": lotID},
	}
}

// OverConsume is returned when a consumption would drive the reserved or
// on-hand quantity negative.
func OverConsume(lotID string) *AppError {
	return &AppError{
		Err:        ErrOverConsume,
		Code:       "OVER_CONSUME",
		Message:    "consumption exceeds reserved quantity on lot",
		StatusCode: http.StatusConflict,
		Details:    map[string]string{"lot_id": lotID},
	}
}

// AllocationConflict is returned when a planned reservation lost a race with a
// concurrent reservation. It is the only retryable error in the taxonomy: the
// caller should re-plan against a fresh snapshot.
func AllocationConflict() *AppError {
	return &AppError{
		Err:        ErrAllocationConflict,
		Code:       "ALLOCATION_CONFLICT",
		Message:    "allocation plan conflicts with a concurrent reservation, re-plan required",
		StatusCode: http.StatusConflict,
	}
}

// InvalidTransition is returned on a disallowed alert status transition.
func InvalidTransition(from, to string) *AppError {
	return &AppError{
		Err:        ErrInvalidTransition,
		Code:       "INVALID_TRANSITION",
		Message:    fmt.Sprintf("cannot transition alert from %s to %s", from, to),
		StatusCode: http.StatusConflict,
	}
}

// BlockedByActiveAlert is returned when an operation touches a lot that has an
// active quality alert and the caller did not explicitly override. The alert
// title and severity are included so the operator understands the exclusion.
func BlockedByActiveAlert(lotNumber, title, severity string) *AppError {
	return &AppError{
		Err:        ErrBlockedByActiveAlert,
		Code:       "BLOCKED_BY_ACTIVE_ALERT",
		Message:    fmt.Sprintf("lot %s is blocked by active alert: %s (%s)", lotNumber, title, severity),
		StatusCode: http.StatusConflict,
		Details: map[string]string{
			"lot_number": lotNumber,
			"title":      title,
			"severity":   severity,
		},
	}
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
