package repository_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/pkg/errors"
)

func createTestReservation(t *testing.T, ctx context.Context, repo *repository.ReservationRepository, tenantID, itemID, batchRef string, required int64) *repository.IngredientReservation {
	t.Helper()

	res := &repository.IngredientReservation{
		BatchRef:         batchRef,
		StockItemID:      itemID,
		QuantityRequired: decimal.NewFromInt(required),
		QuantityConsumed: decimal.Zero,
		Unit:             "kg",
		Status:           repository.ReservationStatusReserved,
	}
	require.NoError(t, repo.Create(ctx, tenantID, res))
	return res
}

func TestReservationRepository_CreateWithLines(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "res-create")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	resRepo := repository.NewReservationRepository(suite.DB)

	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Reservation Malt")
	lot := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)

	res := createTestReservation(t, ctx, resRepo, tenant.ID, item.ID, "BATCH-2026-042", 60)
	assert.NotEmpty(t, res.ID)

	line := &repository.ReservationLot{
		ReservationID:    res.ID,
		LotID:            lot.ID,
		QuantityReserved: decimal.NewFromInt(60),
		QuantityConsumed: decimal.Zero,
	}
	require.NoError(t, resRepo.AddLine(ctx, tenant.ID, line))

	got, err := resRepo.GetByID(ctx, tenant.ID, res.ID)
	require.NoError(t, err)
	assert.Equal(t, "BATCH-2026-042", got.BatchRef)
	assert.Equal(t, repository.ReservationStatusReserved, got.Status)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, lot.ID, got.Lines[0].LotID)
	assert.Equal(t, lot.LotNumber, got.Lines[0].LotNumber)
	assert.True(t, got.Lines[0].QuantityReserved.Equal(decimal.NewFromInt(60)))
}

func TestReservationRepository_ListByBatchRef(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "res-batch")

	itemRepo := repository.NewStockRepository(suite.DB)
	resRepo := repository.NewReservationRepository(suite.DB)

	malt := createTestItem(t, ctx, itemRepo, tenant.ID, "Batch Malt")
	hops := createTestItem(t, ctx, itemRepo, tenant.ID, "Batch Hops")

	createTestReservation(t, ctx, resRepo, tenant.ID, malt.ID, "BATCH-77", 100)
	createTestReservation(t, ctx, resRepo, tenant.ID, hops.ID, "BATCH-77", 5)
	createTestReservation(t, ctx, resRepo, tenant.ID, malt.ID, "BATCH-78", 80)

	got, err := resRepo.ListByBatchRef(ctx, tenant.ID, "BATCH-77")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestReservationRepository_List_FiltersByStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "res-list")

	itemRepo := repository.NewStockRepository(suite.DB)
	resRepo := repository.NewReservationRepository(suite.DB)

	item := createTestItem(t, ctx, itemRepo, tenant.ID, "List Malt")

	active := createTestReservation(t, ctx, resRepo, tenant.ID, item.ID, "BATCH-A", 10)
	cancelled := createTestReservation(t, ctx, resRepo, tenant.ID, item.ID, "BATCH-B", 10)
	require.NoError(t, resRepo.UpdateStatus(ctx, tenant.ID, cancelled.ID, repository.ReservationStatusCancelled))

	got, total, err := resRepo.List(ctx, tenant.ID, 1, 20, "reserved")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, got, 1)
	assert.Equal(t, active.ID, got[0].ID)
}

func TestReservationRepository_RecordConsumption(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "res-consume")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	resRepo := repository.NewReservationRepository(suite.DB)

	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Consume Tracking Malt")
	lot := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)

	res := createTestReservation(t, ctx, resRepo, tenant.ID, item.ID, "BATCH-C", 50)
	require.NoError(t, resRepo.AddLine(ctx, tenant.ID, &repository.ReservationLot{
		ReservationID:    res.ID,
		LotID:            lot.ID,
		QuantityReserved: decimal.NewFromInt(50),
	}))

	require.NoError(t, resRepo.RecordConsumption(ctx, tenant.ID, res.ID, lot.ID, decimal.NewFromInt(30)))

	got, err := resRepo.GetByID(ctx, tenant.ID, res.ID)
	require.NoError(t, err)
	assert.True(t, got.QuantityConsumed.Equal(decimal.NewFromInt(30)))
	require.Len(t, got.Lines, 1)
	assert.True(t, got.Lines[0].QuantityConsumed.Equal(decimal.NewFromInt(30)))
	assert.True(t, got.Lines[0].Outstanding().Equal(decimal.NewFromInt(20)))
}

func TestReservationRepository_RecordConsumption_ExceedsLine(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "res-consume-over")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	resRepo := repository.NewReservationRepository(suite.DB)

	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Over Consume Malt")
	lot := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)

	res := createTestReservation(t, ctx, resRepo, tenant.ID, item.ID, "BATCH-D", 20)
	require.NoError(t, resRepo.AddLine(ctx, tenant.ID, &repository.ReservationLot{
		ReservationID:    res.ID,
		LotID:            lot.ID,
		QuantityReserved: decimal.NewFromInt(20),
	}))

	err := resRepo.RecordConsumption(ctx, tenant.ID, res.ID, lot.ID, decimal.NewFromInt(25))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOverConsume))
}

func TestReservationRepository_TransitionStatus_Guarded(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "res-transition")

	itemRepo := repository.NewStockRepository(suite.DB)
	resRepo := repository.NewReservationRepository(suite.DB)

	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Transition Malt")

	res := &repository.IngredientReservation{
		BatchRef:         "BATCH-TRANSITION",
		StockItemID:      item.ID,
		QuantityRequired: decimal.NewFromInt(10),
		QuantityConsumed: decimal.Zero,
		Unit:             "kg",
		Status:           repository.ReservationStatusPlanned,
	}
	require.NoError(t, resRepo.Create(ctx, tenant.ID, res))

	require.NoError(t, resRepo.TransitionStatus(ctx, tenant.ID, res.ID,
		repository.ReservationStatusPlanned, repository.ReservationStatusReserved))

	// The planned guard no longer matches, so a second flip fails
	err := resRepo.TransitionStatus(ctx, tenant.ID, res.ID,
		repository.ReservationStatusPlanned, repository.ReservationStatusReserved)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))

	err = resRepo.TransitionStatus(ctx, tenant.ID, "00000000-0000-0000-0000-000000000000",
		repository.ReservationStatusPlanned, repository.ReservationStatusReserved)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestReservationRepository_UpdateStatus_NotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "res-status-missing")

	resRepo := repository.NewReservationRepository(suite.DB)

	err := resRepo.UpdateStatus(ctx, tenant.ID, "00000000-0000-0000-0000-000000000000", repository.ReservationStatusCancelled)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
