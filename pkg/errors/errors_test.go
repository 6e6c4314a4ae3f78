package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
)

func TestConstructors_SentinelAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		sentinel   error
		code       string
		statusCode int
	}{
		{"NotFound", NotFound("stock item"), ErrNotFound, "NOT_FOUND", http.StatusNotFound},
		{"BadRequest", BadRequest("bad payload"), ErrBadRequest, "BAD_REQUEST", http.StatusBadRequest},
		{"Validation", Validation(map[string]string{"sku": "required"}), ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest},
		{"DuplicateLot", DuplicateLot("WEY-2026-001"), ErrDuplicateLot, "DUPLICATE_LOT", http.StatusConflict},
		{"InsufficientAvailable", InsufficientAvailable("lot-1"), ErrInsufficientAvailable, "INSUFFICIENT_AVAILABLE", http.StatusConflict},
		{"OverRelease", OverRelease("lot-1"), ErrOverRelease, "OVER_RELEASE", http.StatusConflict},
		{"OverConsume", OverConsume("lot-1"), ErrOverConsume, "OVER_CONSUME", http.StatusConflict},
		{"AllocationConflict", AllocationConflict(), ErrAllocationConflict, "ALLOCATION_CONFLICT", http.StatusConflict},
		{"InvalidTransition", InvalidTransition("resolved", "acknowledged"), ErrInvalidTransition, "INVALID_TRANSITION", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !Is(tt.err, tt.sentinel) {
				t.Errorf("Is(%v, sentinel) = false, want true", tt.err)
			}
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if tt.err.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %v, want %v", tt.err.StatusCode, tt.statusCode)
			}
		})
	}
}

func TestInsufficientStock_ReportsExactShortfall(t *testing.T) {
	err := InsufficientStock(decimal.NewFromFloat(12.5), "kg")

	if !Is(err, ErrInsufficientStock) {
		t.Fatal("expected ErrInsufficientStock sentinel")
	}
	if err.Details["shortfall"] != "12.5" {
		t.Errorf("shortfall = %v, want 12.5", err.Details["shortfall"])
	}
	if err.Details["unit"] != "kg" {
		t.Errorf("unit = %v, want kg", err.Details["unit"])
	}
}

func TestBlockedByActiveAlert_CarriesAlertContext(t *testing.T) {
	err := BlockedByActiveAlert("WEY-2026-001", "Supplier recall", "recall")

	if !Is(err, ErrBlockedByActiveAlert) {
		t.Fatal("expected ErrBlockedByActiveAlert sentinel")
	}
	if err.Details["lot_number"] != "WEY-2026-001" {
		t.Errorf("lot_number = %v, want WEY-2026-001", err.Details["lot_number"])
	}
	if err.Details["title"] != "Supplier recall" {
		t.Errorf("title = %v, want Supplier recall", err.Details["title"])
	}
	if err.Details["severity"] != "recall" {
		t.Errorf("severity = %v, want recall", err.Details["severity"])
	}
}

func TestAppError_UnwrapThroughWrapping(t *testing.T) {
	inner := OverConsume("lot-9")
	wrapped := fmt.Errorf("consuming reservation line: %w", inner)

	if !Is(wrapped, ErrOverConsume) {
		t.Error("Is through fmt.Errorf wrapping = false, want true")
	}

	var appErr *AppError
	if !As(wrapped, &appErr) {
		t.Fatal("As(wrapped, *AppError) = false, want true")
	}
	if appErr.Code != "OVER_CONSUME" {
		t.Errorf("Code = %v, want OVER_CONSUME", appErr.Code)
	}
}

func TestAppError_ErrorString(t *testing.T) {
	plain := New("TEAPOT", "short and stout", http.StatusTeapot)
	if plain.Error() != "short and stout" {
		t.Errorf("Error() = %v, want message only", plain.Error())
	}

	wrapped := Wrap(ErrConflict, "CONFLICT", "lot already received", http.StatusConflict)
	want := "lot already received: resource conflict"
	if wrapped.Error() != want {
		t.Errorf("Error() = %v, want %v", wrapped.Error(), want)
	}
}
