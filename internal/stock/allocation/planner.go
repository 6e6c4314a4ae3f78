// Package allocation plans how a required ingredient quantity is drawn from
// the available lots of a stock item. Planning is pure: the caller loads the
// candidate lots and their active alerts, the planner picks lots and
// quantities, and the caller applies the plan inside a transaction.
package allocation

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/fermentum/fermentum-backend/pkg/errors"
)

// LotOption is a candidate lot for allocation. Alerted marks lots carrying
// an active quality alert; they are excluded from plans unless the caller
// explicitly asks for them.
type LotOption struct {
	LotID      string
	LotNumber  string
	Available  decimal.Decimal
	ReceivedAt *time.Time
	ExpiresAt  *time.Time

	Alerted       bool
	AlertTitle    string
	AlertSeverity string
}

// Line assigns a quantity to a concrete lot
type Line struct {
	LotID     string          `json:"lot_id"`
	LotNumber string          `json:"lot_number"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// Result is a complete allocation plan for one requirement
type Result struct {
	Lines     []Line   `json:"lines"`
	SingleLot bool     `json:"single_lot"`
	Message   string   `json:"message"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Request describes one allocation requirement
type Request struct {
	Category string
	Required decimal.Decimal
	Unit     string

	// IncludeAlerted admits lots with active alerts into the plan. Never
	// set implicitly; the operator has to ask for it.
	IncludeAlerted bool
}

// Plan allocates the required quantity across the given lots.
//
// Lots with an active alert are excluded unless req.IncludeAlerted. The
// remaining lots are tried oldest receipt first, with earlier expiry
// breaking ties and undated lots last. A single lot that covers the whole
// requirement is preferred; otherwise the requirement is split greedily
// across lots in the same order. When the lots cannot cover the requirement
// the returned error carries the shortfall.
func Plan(req Request, lots []LotOption) (*Result, error) {
	if req.Required.Sign() <= 0 {
		return nil, errors.BadRequest("required quantity must be positive")
	}

	candidates := make([]LotOption, 0, len(lots))
	excluded := 0
	for _, lot := range lots {
		if lot.Available.Sign() <= 0 {
			continue
		}
		if lot.Alerted && !req.IncludeAlerted {
			excluded++
			continue
		}
		candidates = append(candidates, lot)
	}
	Sort(candidates)

	var warnings []string
	if excluded > 0 {
		warnings = append(warnings,
			fmt.Sprintf("%d lot(s) excluded due to active alerts", excluded))
	}

	total := TotalAvailable(candidates)
	if total.LessThan(req.Required) {
		return nil, errors.InsufficientStock(req.Required.Sub(total), req.Unit)
	}

	// Prefer the oldest single lot that covers the whole requirement
	for _, lot := range candidates {
		if lot.Available.GreaterThanOrEqual(req.Required) {
			return &Result{
				Lines: []Line{{
					LotID:     lot.LotID,
					LotNumber: lot.LotNumber,
					Quantity:  req.Required,
				}},
				SingleLot: true,
				Message:   fmt.Sprintf("Single-lot fulfillment available from lot %s", lot.LotNumber),
				Warnings:  warnings,
			}, nil
		}
	}

	// Split across lots in allocation order
	result := &Result{Warnings: warnings}
	remaining := req.Required
	for _, lot := range candidates {
		if remaining.Sign() <= 0 {
			break
		}

		take := lot.Available
		if take.GreaterThan(remaining) {
			take = remaining
		}

		result.Lines = append(result.Lines, Line{
			LotID:     lot.LotID,
			LotNumber: lot.LotNumber,
			Quantity:  take,
		})
		remaining = remaining.Sub(take)
	}

	result.Message = fmt.Sprintf("Multi-lot required: %d lots needed", len(result.Lines))
	if req.Category == "hop" || req.Category == "yeast" {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Critical: %s characteristics may vary between lots", req.Category))
	}

	return result, nil
}

// Sort orders lots for allocation: oldest receipt first, earliest expiry
// breaking ties, lots without dates last.
func Sort(lots []LotOption) {
	sort.SliceStable(lots, func(i, j int) bool {
		ri, rj := timeOrMax(lots[i].ReceivedAt), timeOrMax(lots[j].ReceivedAt)
		if !ri.Equal(rj) {
			return ri.Before(rj)
		}
		return timeOrMax(lots[i].ExpiresAt).Before(timeOrMax(lots[j].ExpiresAt))
	})
}

// TotalAvailable sums the available quantity across lots
func TotalAvailable(lots []LotOption) decimal.Decimal {
	total := decimal.Zero
	for _, lot := range lots {
		total = total.Add(lot.Available)
	}
	return total
}

var maxTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

func timeOrMax(t *time.Time) time.Time {
	if t == nil {
		return maxTime
	}
	return *t
}
