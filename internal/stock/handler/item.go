package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/internal/stock/service"
	"github.com/fermentum/fermentum-backend/pkg/errors"
	"github.com/fermentum/fermentum-backend/pkg/httputil"
	"github.com/fermentum/fermentum-backend/pkg/logger"
	"github.com/fermentum/fermentum-backend/pkg/tenant"
)

// ItemHandler handles stock catalog and lot ledger endpoints
type ItemHandler struct {
	service *service.StockService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.StockService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

// pagination reads page and per_page query params with defaults
func pagination(r *http.Request) (int, int) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}

	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}

	return page, perPage
}

// List lists stock items
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	page, perPage := pagination(r)
	category := r.URL.Query().Get("category")

	items, total, err := h.service.ListItems(r.Context(), tenantID, page, perPage, category)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	totalPages := int(total) / perPage
	if int(total)%perPage > 0 {
		totalPages++
	}

	httputil.JSONWithMeta(w, http.StatusOK, items, &httputil.Meta{
		Page:       page,
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	})
}

// Get gets a stock item by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.GetItem(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// GetBySKU gets a stock item by SKU
func (h *ItemHandler) GetBySKU(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	item, err := h.service.GetItemBySKU(r.Context(), tenantID, chi.URLParam(r, "sku"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Create creates a new stock item
func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var item repository.StockItem
	if err := httputil.DecodeJSON(r, &item); err != nil {
		httputil.Error(w, err)
		return
	}

	item.IsActive = true
	if err := h.service.CreateItem(r.Context(), tenantID, &item); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, item)
}

// Update updates a stock item
func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var item repository.StockItem
	if err := httputil.DecodeJSON(r, &item); err != nil {
		httputil.Error(w, err)
		return
	}

	item.ID = chi.URLParam(r, "id")
	if err := h.service.UpdateItem(r.Context(), tenantID, &item); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Deactivate removes a stock item from the active catalog
func (h *ItemHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	if err := h.service.DeactivateItem(r.Context(), tenantID, chi.URLParam(r, "id")); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.NoContent(w)
}

// receiveLotRequest is the payload for recording a received lot
type receiveLotRequest struct {
	LotNumber        string           `json:"lot_number" validate:"required,max=100"`
	QuantityReceived decimal.Decimal  `json:"quantity_received" validate:"required"`
	UnitCost         *decimal.Decimal `json:"unit_cost,omitempty"`
	Supplier         *string          `json:"supplier,omitempty"`
	ReceivedAt       *time.Time       `json:"received_at,omitempty"`
	ExpiresAt        *time.Time       `json:"expires_at,omitempty"`
	Notes            *string          `json:"notes,omitempty"`
}

// ReceiveLot records a newly received lot for a stock item
func (h *ItemHandler) ReceiveLot(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req receiveLotRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	lot := &repository.Lot{
		StockItemID:      chi.URLParam(r, "id"),
		LotNumber:        req.LotNumber,
		QuantityReceived: req.QuantityReceived,
		UnitCost:         req.UnitCost,
		Supplier:         req.Supplier,
		ReceivedAt:       req.ReceivedAt,
		ExpiresAt:        req.ExpiresAt,
		Notes:            req.Notes,
	}

	if err := h.service.ReceiveLot(r.Context(), tenantID, lot); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, lot)
}

// ListLots lists the lots of a stock item in receipt order
func (h *ItemHandler) ListLots(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lots, err := h.service.ListLots(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lots)
}

// GetLot gets a lot by ID
func (h *ItemHandler) GetLot(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.service.GetLot(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// updateLotRequest is the payload for updating a lot's descriptive fields
type updateLotRequest struct {
	UnitCost  *decimal.Decimal `json:"unit_cost,omitempty"`
	Supplier  *string          `json:"supplier,omitempty"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
}

// UpdateLot updates a lot's descriptive fields. Quantities only move through
// reservations and consumption.
func (h *ItemHandler) UpdateLot(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	lot, err := h.service.GetLot(r.Context(), tenantID, chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	var req updateLotRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}

	if req.UnitCost != nil {
		lot.UnitCost = req.UnitCost
	}
	if req.Supplier != nil {
		lot.Supplier = req.Supplier
	}
	if req.ExpiresAt != nil {
		lot.ExpiresAt = req.ExpiresAt
	}
	if req.Notes != nil {
		lot.Notes = req.Notes
	}

	if err := h.service.UpdateLotDetails(r.Context(), tenantID, lot); err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, lot)
}

// CheckAvailability reports whether a required quantity can be covered
func (h *ItemHandler) CheckAvailability(w http.ResponseWriter, r *http.Request) {
	tenantID, err := tenant.TenantID(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	quantityParam := r.URL.Query().Get("quantity")
	if quantityParam == "" {
		httputil.Error(w, errors.BadRequest("quantity query parameter is required"))
		return
	}

	quantity, err := decimal.NewFromString(quantityParam)
	if err != nil {
		httputil.Error(w, errors.BadRequest("quantity must be a valid number"))
		return
	}

	includeAlerted := r.URL.Query().Get("include_alerted") == "true"

	report, err := h.service.CheckAvailability(r.Context(), tenantID, chi.URLParam(r, "id"), quantity, includeAlerted)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}
