package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fermentum/fermentum-backend/internal/stock/allocation"
	"github.com/fermentum/fermentum-backend/internal/stock/service"
	"github.com/fermentum/fermentum-backend/pkg/httputil"
	"github.com/fermentum/fermentum-backend/pkg/logger"
	"github.com/fermentum/fermentum-backend/pkg/tenant"
)

// ReservationHandler handles ingredient reservation endpoints
type ReservationHandler struct {
	service *service.TrackerService
	logger  *logger.Logger
}

// NewReservationHandler creates a new reservation handler
func NewReservationHandler(svc *service.TrackerService, log *logger.Logger) *ReservationHandler {
	return &ReservationHandler{
		service: svc,
		logger:  log,
	}
}

// Create records a planned ingredient requirement for a batch. No lot
// quantity moves until the reservation is committed.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.ReserveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	if req.CreatedBy == "" {
		req.CreatedBy = httputil.GetUserID(r.Context())
	}

	res, err := h.service.CreateReservation(r.Context(), tenantID, req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, res)
}

// commitRequest is the payload for committing a planned reservation. With no
// body the service plans the allocation itself; an explicit plan pins the
// exact lots to reserve.
type commitRequest struct {
	Plan           []allocation.Line `json:"plan,omitempty"`
	OverrideAlerts bool              `json:"override_alerts,omitempty"`
}

// commitResponse bundles the reservation with the committed allocation plan
type commitResponse struct {
	Reservation interface{} `json:"reservation"`
	Plan        interface{} `json:"plan"`
}

// Commit reserves lot quantity for a planned reservation
func (h *ReservationHandler) Commit(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req commitRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	res, plan, err := h.service.CommitReservation(r.Context(), tenantID, chi.URLParam(r, "id"), service.CommitOptions{
		Plan:           req.Plan,
		OverrideAlerts: req.OverrideAlerts,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, commitResponse{
		Reservation: res,
		Plan:        plan,
	})
}

// List lists reservations
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	page, perPage := pagination(r)
	status := r.URL.Query().Get("status")

	reservations, total, err := h.service.ListReservations(r.Context(), tenantID, page, perPage, status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, reservations, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets a reservation with its per-lot lines
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := h.service.GetReservation(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}

// ListByBatch lists all reservations for a brew batch
func (h *ReservationHandler) ListByBatch(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	reservations, err := h.service.ListByBatchRef(r.Context(), tenantID, chi.URLParam(r, "batchRef"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, reservations)
}

// Consume records actual usage against a reservation, either as a total
// quantity drawn in allocation order or as explicit per-lot allocations
func (h *ReservationHandler) Consume(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req service.ConsumeRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := h.service.Consume(r.Context(), tenantID, chi.URLParam(r, "id"), req)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}

// Cancel releases all outstanding reserved quantity and cancels the reservation
func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	res, err := h.service.Cancel(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, res)
}
