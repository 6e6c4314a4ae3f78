package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/internal/stock/service"
	"github.com/fermentum/fermentum-backend/pkg/httputil"
	"github.com/fermentum/fermentum-backend/pkg/logger"
	"github.com/fermentum/fermentum-backend/pkg/tenant"
)

// AlertHandler handles lot alert endpoints
type AlertHandler struct {
	service *service.AlertService
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(svc *service.AlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: svc,
		logger:  log,
	}
}

// raiseAlertRequest is the payload for raising a lot alert. The lot number
// does not have to match a ledger lot; supplier notices can precede receipt.
type raiseAlertRequest struct {
	LotNumber         string  `json:"lot_number" validate:"required,max=100"`
	Severity          string  `json:"severity" validate:"required,oneof=info warning critical recall"`
	Title             string  `json:"title" validate:"required,max=255"`
	Description       *string `json:"description,omitempty"`
	SupplierName      *string `json:"supplier_name,omitempty"`
	SupplierReference *string `json:"supplier_reference,omitempty"`
	AffectedBatches   *string `json:"affected_batches,omitempty"`
	RecommendedAction *string `json:"recommended_action,omitempty"`
}

// Raise creates an alert against a lot
func (h *AlertHandler) Raise(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req raiseAlertRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	alert := &repository.LotAlert{
		LotNumber:         req.LotNumber,
		Severity:          repository.AlertSeverity(req.Severity),
		Title:             req.Title,
		Description:       req.Description,
		SupplierName:      req.SupplierName,
		SupplierReference: req.SupplierReference,
		AffectedBatches:   req.AffectedBatches,
		RecommendedAction: req.RecommendedAction,
	}

	if err := h.service.RaiseAlert(r.Context(), tenantID, alert); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, alert)
}

// List lists alerts with optional status and severity filters
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	page, perPage := pagination(r)
	status := r.URL.Query().Get("status")
	severity := r.URL.Query().Get("severity")

	alerts, total, err := h.service.ListAlerts(r.Context(), tenantID, page, perPage, status, severity)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, alerts, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets an alert by ID
func (h *AlertHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	alert, err := h.service.GetAlert(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// ListForLot lists the alerts recorded against a lot number
func (h *AlertHandler) ListForLot(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	alerts, err := h.service.ListAlertsForLot(r.Context(), tenantID, chi.URLParam(r, "lotNumber"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alerts)
}

// acknowledgeRequest is the optional payload for acknowledging an alert
type acknowledgeRequest struct {
	Note string `json:"note,omitempty"`
}

// Acknowledge moves an active alert to acknowledged, optionally recording a note
func (h *AlertHandler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req acknowledgeRequest
	if r.ContentLength > 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.Error(w, err)
			return
		}
	}

	alert, err := h.service.Acknowledge(r.Context(), tenantID, chi.URLParam(r, "id"), httputil.GetUserID(r.Context()), req.Note)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// resolveRequest is the payload for resolving an alert
type resolveRequest struct {
	Resolution string `json:"resolution" validate:"required"`
}

// Resolve moves an active or acknowledged alert to resolved
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req resolveRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	alert, err := h.service.Resolve(r.Context(), tenantID, chi.URLParam(r, "id"), httputil.GetUserID(r.Context()), req.Resolution)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// noteRequest is the payload for adding an internal note
type noteRequest struct {
	Note string `json:"note" validate:"required"`
}

// AddNote appends an internal note to an alert
func (h *AlertHandler) AddNote(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req noteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.AddNote(r.Context(), tenantID, chi.URLParam(r, "id"), httputil.GetUserID(r.Context()), req.Note); err != nil {
		httputil.Error(w, err)
		return
	}

	alert, err := h.service.GetAlert(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}
