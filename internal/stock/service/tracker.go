package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/fermentum/fermentum-backend/internal/stock/allocation"
	"github.com/fermentum/fermentum-backend/internal/stock/events"
	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/pkg/database"
	"github.com/fermentum/fermentum-backend/pkg/errors"
	"github.com/fermentum/fermentum-backend/pkg/logger"
)

// maxAllocationRetries bounds replanning when concurrent reservations drain
// a planned lot between planning and commit
const maxAllocationRetries = 3

// TrackerService implements ingredient reservation and consumption tracking
type TrackerService struct {
	db           *database.DB
	items        *repository.StockRepository
	lots         *repository.LotRepository
	reservations *repository.ReservationRepository
	alerts       *repository.AlertRepository
	stock        *StockService
	publisher    *events.StockEventPublisher
	logger       *logger.Logger
}

// NewTrackerService creates a new tracker service
func NewTrackerService(
	db *database.DB,
	items *repository.StockRepository,
	lots *repository.LotRepository,
	reservations *repository.ReservationRepository,
	alerts *repository.AlertRepository,
	stock *StockService,
	publisher *events.StockEventPublisher,
	log *logger.Logger,
) *TrackerService {
	return &TrackerService{
		db:           db,
		items:        items,
		lots:         lots,
		reservations: reservations,
		alerts:       alerts,
		stock:        stock,
		publisher:    publisher,
		logger:       log,
	}
}

// ReserveRequest describes one ingredient requirement for a brew batch
type ReserveRequest struct {
	BatchRef    string          `json:"batch_ref" validate:"required,max=100"`
	StockItemID string          `json:"stock_item_id" validate:"required,uuid"`
	Quantity    decimal.Decimal `json:"quantity" validate:"required"`
	CreatedBy   string          `json:"created_by,omitempty"`
}

// CommitOptions controls how a planned reservation is committed against lots
type CommitOptions struct {
	// Plan commits these exact lot allocations instead of planning fresh.
	// An explicit plan is attempted once; a stale plan surfaces
	// AllocationConflict and the caller re-plans.
	Plan []allocation.Line

	// OverrideAlerts admits lots with active alerts. Never implied.
	OverrideAlerts bool
}

// CreateReservation records a planned ingredient requirement for a batch.
// No lot quantity moves until the reservation is committed.
func (s *TrackerService) CreateReservation(ctx context.Context, tenantID string, req ReserveRequest) (*repository.IngredientReservation, error) {
	item, err := s.items.GetByID(ctx, tenantID, req.StockItemID)
	if err != nil {
		return nil, err
	}
	if req.Quantity.Sign() <= 0 {
		return nil, errors.BadRequest("required quantity must be positive")
	}

	res := &repository.IngredientReservation{
		BatchRef:         req.BatchRef,
		StockItemID:      item.ID,
		QuantityRequired: req.Quantity,
		QuantityConsumed: decimal.Zero,
		Unit:             item.UnitOfMeasure,
		Status:           repository.ReservationStatusPlanned,
	}
	if req.CreatedBy != "" {
		res.CreatedBy = &req.CreatedBy
	}

	if err := s.reservations.Create(ctx, tenantID, res); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("reservation_id", res.ID).
		Str("batch_ref", req.BatchRef).
		Str("item_id", item.ID).
		Str("quantity", req.Quantity.String()).
		Msg("ingredient reservation planned")

	return res, nil
}

// CommitReservation allocates the planned quantity across lots and debits
// the ledger. Planning happens outside the transaction; the guarded lot
// updates inside it detect concurrent drains, in which case the attempt is
// replanned against fresh lot state, up to a bounded number of retries.
// An explicitly supplied plan is attempted exactly once.
func (s *TrackerService) CommitReservation(ctx context.Context, tenantID, reservationID string, opts CommitOptions) (*repository.IngredientReservation, *allocation.Result, error) {
	res, err := s.reservations.GetByID(ctx, tenantID, reservationID)
	if err != nil {
		return nil, nil, err
	}
	if res.Status != repository.ReservationStatusPlanned {
		return nil, nil, errors.InvalidTransition(string(res.Status), string(repository.ReservationStatusReserved))
	}

	item, err := s.items.GetByID(ctx, tenantID, res.StockItemID)
	if err != nil {
		return nil, nil, err
	}

	attempts := maxAllocationRetries
	if len(opts.Plan) > 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		plan, err := s.resolvePlan(ctx, tenantID, item, res, opts)
		if err != nil {
			return nil, nil, err
		}

		err = s.commitOnce(ctx, tenantID, res, plan)
		if err == nil {
			for _, line := range plan.Lines {
				s.publisher.LotReserved(ctx, tenantID, line.LotID, item.ID, res.ID, line.Quantity, item.UnitOfMeasure)
			}
			s.stock.CheckLowStock(ctx, tenantID, item.ID)

			committed, err := s.reservations.GetByID(ctx, tenantID, reservationID)
			if err != nil {
				return nil, nil, err
			}
			return committed, plan, nil
		}

		if !errors.Is(err, errors.ErrAllocationConflict) {
			return nil, nil, err
		}

		lastErr = err
		s.logger.Warn().
			Str("tenant_id", tenantID).
			Str("reservation_id", res.ID).
			Int("attempt", attempt+1).
			Msg("allocation conflict, replanning")
	}

	return nil, nil, lastErr
}

// resolvePlan either validates the caller's explicit plan against active
// alerts or computes a fresh one from the current lot state
func (s *TrackerService) resolvePlan(ctx context.Context, tenantID string, item *repository.StockItem, res *repository.IngredientReservation, opts CommitOptions) (*allocation.Result, error) {
	if len(opts.Plan) > 0 {
		if err := s.checkPlanAlerts(ctx, tenantID, opts.Plan, opts.OverrideAlerts); err != nil {
			return nil, err
		}
		return &allocation.Result{
			Lines:     opts.Plan,
			SingleLot: len(opts.Plan) == 1,
			Message:   "Committed caller-supplied allocation plan",
		}, nil
	}

	lots, err := s.lots.ListAvailableByItem(ctx, tenantID, item.ID)
	if err != nil {
		return nil, err
	}

	options, err := lotOptionsWithAlerts(ctx, s.alerts, tenantID, lots)
	if err != nil {
		return nil, err
	}

	plan, err := allocation.Plan(allocation.Request{
		Category:       string(item.Category),
		Required:       res.QuantityRequired,
		Unit:           item.UnitOfMeasure,
		IncludeAlerted: opts.OverrideAlerts,
	}, options)
	if err != nil {
		return nil, err
	}

	// An alert raised between planning and commit still has to block
	if err := s.checkPlanAlerts(ctx, tenantID, plan.Lines, opts.OverrideAlerts); err != nil {
		return nil, err
	}

	return plan, nil
}

// checkPlanAlerts refuses a plan drawing from a lot with an active alert
// unless the caller overrides
func (s *TrackerService) checkPlanAlerts(ctx context.Context, tenantID string, lines []allocation.Line, override bool) error {
	if override {
		return nil
	}

	lotNumbers := make([]string, 0, len(lines))
	for _, line := range lines {
		lotNumbers = append(lotNumbers, line.LotNumber)
	}

	active, err := s.alerts.ListActiveByLotNumbers(ctx, tenantID, lotNumbers)
	if err != nil {
		return err
	}
	if len(active) > 0 {
		blocking := active[0]
		return errors.BlockedByActiveAlert(blocking.LotNumber, blocking.Title, string(blocking.Severity))
	}

	return nil
}

// commitOnce applies one plan in a single transaction
func (s *TrackerService) commitOnce(ctx context.Context, tenantID string, res *repository.IngredientReservation, plan *allocation.Result) error {
	err := s.db.WithTx(ctx, func(txCtx context.Context) error {
		// The guarded transition locks the reservation row first, so a
		// concurrent commit of the same reservation waits here and then
		// fails the planned-status guard instead of reserving a second
		// set of lots.
		if err := s.reservations.TransitionStatus(txCtx, tenantID, res.ID,
			repository.ReservationStatusPlanned, repository.ReservationStatusReserved); err != nil {
			return err
		}

		for _, line := range plan.Lines {
			if err := s.lots.Reserve(txCtx, tenantID, line.LotID, line.Quantity); err != nil {
				// The plan promised quantity that is gone, so the
				// snapshot it was built from is stale.
				if errors.Is(err, errors.ErrInsufficientAvailable) {
					return errors.AllocationConflict()
				}
				return err
			}
		}

		for _, line := range plan.Lines {
			resLine := &repository.ReservationLot{
				ReservationID:    res.ID,
				LotID:            line.LotID,
				QuantityReserved: line.Quantity,
				QuantityConsumed: decimal.Zero,
			}
			if err := s.reservations.AddLine(txCtx, tenantID, resLine); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("reservation_id", res.ID).
		Str("batch_ref", res.BatchRef).
		Int("lots", len(plan.Lines)).
		Msg("ingredients reserved")

	return nil
}

// GetReservation fetches a reservation with its per-lot lines
func (s *TrackerService) GetReservation(ctx context.Context, tenantID, id string) (*repository.IngredientReservation, error) {
	return s.reservations.GetByID(ctx, tenantID, id)
}

// ListReservations fetches reservations with pagination and optional status filter
func (s *TrackerService) ListReservations(ctx context.Context, tenantID string, page, perPage int, status string) ([]repository.IngredientReservation, int64, error) {
	return s.reservations.List(ctx, tenantID, page, perPage, status)
}

// ListByBatchRef fetches all reservations for a brew batch
func (s *TrackerService) ListByBatchRef(ctx context.Context, tenantID, batchRef string) ([]repository.IngredientReservation, error) {
	return s.reservations.ListByBatchRef(ctx, tenantID, batchRef)
}

// ConsumeAllocation records usage against one specific lot of a reservation
type ConsumeAllocation struct {
	LotID    string          `json:"lot_id" validate:"required,uuid"`
	Quantity decimal.Decimal `json:"quantity" validate:"required"`
}

// ConsumeRequest records actual usage. Either a total quantity, drawn from
// the reserved lots in allocation order, or explicit per-lot allocations.
type ConsumeRequest struct {
	Quantity    decimal.Decimal     `json:"quantity,omitempty"`
	Allocations []ConsumeAllocation `json:"allocations,omitempty"`
}

// Consume records actual usage against a committed reservation and moves it
// to partially_consumed or consumed depending on what remains. Consumption
// never exceeds what was reserved, per lot and in total.
func (s *TrackerService) Consume(ctx context.Context, tenantID, reservationID string, req ConsumeRequest) (*repository.IngredientReservation, error) {
	res, err := s.reservations.GetByID(ctx, tenantID, reservationID)
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case repository.ReservationStatusPlanned, repository.ReservationStatusCancelled:
		return nil, errors.InvalidTransition(string(res.Status), string(repository.ReservationStatusConsumed))
	case repository.ReservationStatusConsumed:
		return nil, errors.OverConsume(reservationID)
	}

	allocations, total, err := s.resolveConsumption(res, req)
	if err != nil {
		return nil, err
	}

	err = s.db.WithTx(ctx, func(txCtx context.Context) error {
		for _, a := range allocations {
			if err := s.lots.Consume(txCtx, tenantID, a.LotID, a.Quantity); err != nil {
				return err
			}
			if err := s.reservations.RecordConsumption(txCtx, tenantID, res.ID, a.LotID, a.Quantity); err != nil {
				return err
			}
		}

		status := repository.ReservationStatusPartiallyConsumed
		if res.QuantityConsumed.Add(total).GreaterThanOrEqual(res.QuantityRequired) {
			status = repository.ReservationStatusConsumed
		}
		return s.reservations.UpdateStatus(txCtx, tenantID, res.ID, status)
	})
	if err != nil {
		return nil, err
	}

	for _, a := range allocations {
		s.publisher.LotConsumed(ctx, tenantID, a.LotID, res.StockItemID, res.ID, a.Quantity, res.Unit)
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("reservation_id", res.ID).
		Str("quantity", total.String()).
		Msg("reservation consumed")

	s.stock.CheckLowStock(ctx, tenantID, res.StockItemID)

	return s.reservations.GetByID(ctx, tenantID, reservationID)
}

// resolveConsumption turns a consume request into concrete per-lot
// allocations within the reservation's outstanding quantities
func (s *TrackerService) resolveConsumption(res *repository.IngredientReservation, req ConsumeRequest) ([]ConsumeAllocation, decimal.Decimal, error) {
	if len(req.Allocations) > 0 {
		total := decimal.Zero
		outstanding := make(map[string]decimal.Decimal, len(res.Lines))
		for _, line := range res.Lines {
			outstanding[line.LotID] = line.Outstanding()
		}

		for _, a := range req.Allocations {
			if a.Quantity.Sign() <= 0 {
				return nil, decimal.Zero, errors.BadRequest("consumed quantity must be positive")
			}
			left, ok := outstanding[a.LotID]
			if !ok || a.Quantity.GreaterThan(left) {
				return nil, decimal.Zero, errors.OverConsume(res.ID)
			}
			outstanding[a.LotID] = left.Sub(a.Quantity)
			total = total.Add(a.Quantity)
		}

		return req.Allocations, total, nil
	}

	if req.Quantity.Sign() <= 0 {
		return nil, decimal.Zero, errors.BadRequest("consumed quantity must be positive")
	}
	if req.Quantity.GreaterThan(res.Outstanding()) {
		return nil, decimal.Zero, errors.OverConsume(res.ID)
	}

	var allocations []ConsumeAllocation
	remaining := req.Quantity
	for _, line := range res.Lines {
		if remaining.Sign() <= 0 {
			break
		}

		take := line.Outstanding()
		if take.Sign() <= 0 {
			continue
		}
		if take.GreaterThan(remaining) {
			take = remaining
		}

		allocations = append(allocations, ConsumeAllocation{LotID: line.LotID, Quantity: take})
		remaining = remaining.Sub(take)
	}

	if remaining.Sign() > 0 {
		return nil, decimal.Zero, errors.OverConsume(res.ID)
	}

	return allocations, req.Quantity, nil
}

// Cancel releases all outstanding reserved quantity back to the lots and
// marks the reservation cancelled. Already consumed quantity stays consumed.
// Cancelling twice fails loudly rather than clamping, so a double release
// elsewhere cannot hide.
func (s *TrackerService) Cancel(ctx context.Context, tenantID, reservationID string) (*repository.IngredientReservation, error) {
	res, err := s.reservations.GetByID(ctx, tenantID, reservationID)
	if err != nil {
		return nil, err
	}

	switch res.Status {
	case repository.ReservationStatusCancelled:
		return nil, errors.OverRelease(reservationID)
	case repository.ReservationStatusConsumed:
		return nil, errors.InvalidTransition(string(res.Status), string(repository.ReservationStatusCancelled))
	}

	type released struct {
		lotID    string
		quantity decimal.Decimal
	}
	var releasedLines []released

	err = s.db.WithTx(ctx, func(txCtx context.Context) error {
		for _, line := range res.Lines {
			outstanding := line.Outstanding()
			if outstanding.Sign() <= 0 {
				continue
			}

			if err := s.lots.Release(txCtx, tenantID, line.LotID, outstanding); err != nil {
				return err
			}
			releasedLines = append(releasedLines, released{lotID: line.LotID, quantity: outstanding})
		}

		return s.reservations.UpdateStatus(txCtx, tenantID, res.ID, repository.ReservationStatusCancelled)
	})
	if err != nil {
		return nil, err
	}

	for _, r := range releasedLines {
		s.publisher.LotReleased(ctx, tenantID, r.lotID, res.StockItemID, res.ID, r.quantity, res.Unit)
	}

	s.logger.Info().
		Str("tenant_id", tenantID).
		Str("reservation_id", res.ID).
		Str("batch_ref", res.BatchRef).
		Msg("reservation cancelled")

	return s.reservations.GetByID(ctx, tenantID, reservationID)
}
