package handler_test

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fermentum/fermentum-backend/internal/stock/events"
	"github.com/fermentum/fermentum-backend/internal/stock/handler"
	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/internal/stock/service"
	"github.com/fermentum/fermentum-backend/pkg/httputil"
	"github.com/fermentum/fermentum-backend/pkg/logger"
	"github.com/fermentum/fermentum-backend/pkg/testutil"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	s, err := testutil.NewIntegrationSuite(ctx)
	if err != nil {
		log.Fatalf("failed to set up integration suite: %v", err)
	}
	suite = s

	code := m.Run()

	suite.Cleanup(ctx)
	testutil.TerminateContainer(ctx)
	os.Exit(code)
}

func newTestStockService() *service.StockService {
	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	alertRepo := repository.NewAlertRepository(suite.DB)
	publisher := events.NewStockEventPublisher(testutil.NewMockPublisher(), suite.Logger)

	return service.NewStockService(itemRepo, lotRepo, alertRepo, publisher, suite.Logger)
}

func newItemRouter() *chi.Mux {
	h := handler.NewItemHandler(newTestStockService(), logger.New("test", "test"))

	r := chi.NewRouter()
	r.Use(httputil.TenantMiddleware)
	r.Route("/api/v1/stock/items", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/sku/{sku}", h.GetBySKU)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Post("/lots", h.ReceiveLot)
			r.Get("/availability", h.CheckAvailability)
		})
	})
	return r
}

func createItemViaAPI(t *testing.T, r *chi.Mux, tenantID, sku, name string) *repository.StockItem {
	t.Helper()

	body := `{"sku":"` + sku + `","name":"` + name + `","category":"grain","unit_of_measure":"kg"}`
	req := httptest.NewRequest("POST", "/api/v1/stock/items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, "unexpected status code. Body: %s", rr.Body.String())

	var resp struct {
		Success bool                 `json:"success"`
		Data    repository.StockItem `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Data.ID)
	return &resp.Data
}

func TestItemHandler_CreateAndGetBySKU(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "handler-item-sku")
	r := newItemRouter()

	created := createItemViaAPI(t, r, tenant.ID, "MALT-PILS-01", "Pilsner Malt")

	req := httptest.NewRequest("GET", "/api/v1/stock/items/sku/MALT-PILS-01", nil)
	req.Header.Set("X-Tenant-ID", tenant.ID)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "unexpected status code. Body: %s", rr.Body.String())

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	assert.Equal(t, created.ID, data["id"])
}

func TestItemHandler_GetBySKU_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "handler-item-nf")
	r := newItemRouter()

	req := httptest.NewRequest("GET", "/api/v1/stock/items/sku/NO-SUCH-SKU", nil)
	req.Header.Set("X-Tenant-ID", tenant.ID)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNotFound, rr.Code, "expected 404 for unknown SKU. Body: %s", rr.Body.String())

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestItemHandler_ReceiveLotAndCheckAvailability(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "handler-item-avail")
	r := newItemRouter()

	item := createItemViaAPI(t, r, tenant.ID, "HOP-CITRA-01", "Citra Hops")

	lotBody := `{"lot_number":"CITRA-2026-01","quantity_received":"40"}`
	req := httptest.NewRequest("POST", "/api/v1/stock/items/"+item.ID+"/lots", strings.NewReader(lotBody))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Tenant-ID", tenant.ID)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, "unexpected status code. Body: %s", rr.Body.String())

	req = httptest.NewRequest("GET", "/api/v1/stock/items/"+item.ID+"/availability?quantity=25", nil)
	req.Header.Set("X-Tenant-ID", tenant.ID)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code, "unexpected status code. Body: %s", rr.Body.String())

	var resp struct {
		Success bool                       `json:"success"`
		Data    service.AvailabilityReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.True(t, resp.Data.Sufficient)
	assert.True(t, resp.Data.TotalAvailable.Equal(decimal.NewFromInt(40)))
	require.NotNil(t, resp.Data.Plan)
	assert.True(t, resp.Data.Plan.SingleLot)
}

func TestItemHandler_CheckAvailability_MissingQuantity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "handler-item-badreq")
	r := newItemRouter()

	item := createItemViaAPI(t, r, tenant.ID, "MALT-MUNICH-01", "Munich Malt")

	req := httptest.NewRequest("GET", "/api/v1/stock/items/"+item.ID+"/availability", nil)
	req.Header.Set("X-Tenant-ID", tenant.ID)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code, "expected 400 without quantity. Body: %s", rr.Body.String())

	var resp httputil.Response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "BAD_REQUEST", resp.Error.Code)
}

func TestItemHandler_TenantIsolation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()

	tenant1 := suite.SetupTenant(t, ctx, "handler-item-iso-1")
	tenant2 := suite.SetupTenant(t, ctx, "handler-item-iso-2")
	r := newItemRouter()

	item := createItemViaAPI(t, r, tenant1.ID, "MALT-ISO-01", "Isolation Malt")

	// Owning tenant sees the item
	req1 := httptest.NewRequest("GET", "/api/v1/stock/items/"+item.ID, nil)
	req1.Header.Set("X-Tenant-ID", tenant1.ID)
	rr1 := httptest.NewRecorder()
	r.ServeHTTP(rr1, req1)
	assert.Equal(t, http.StatusOK, rr1.Code, "owner should see its own item. Body: %s", rr1.Body.String())

	// Another tenant does not
	req2 := httptest.NewRequest("GET", "/api/v1/stock/items/"+item.ID, nil)
	req2.Header.Set("X-Tenant-ID", tenant2.ID)
	rr2 := httptest.NewRecorder()
	r.ServeHTTP(rr2, req2)
	assert.Equal(t, http.StatusNotFound, rr2.Code, "other tenants should not see the item. Body: %s", rr2.Body.String())
}
