package repository_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/pkg/errors"
)

func TestLotRepository_Create(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-create")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Lot Create Malt")

	received := time.Now().UTC().AddDate(0, 0, -2)
	supplier := "Weyermann"
	lot := &repository.Lot{
		StockItemID:      item.ID,
		LotNumber:        "WEY-2026-0815",
		QuantityReceived: decimal.NewFromInt(500),
		QuantityOnHand:   decimal.NewFromInt(500),
		QuantityReserved: decimal.Zero,
		Supplier:         &supplier,
		ReceivedAt:       &received,
	}
	err := lotRepo.Create(ctx, tenant.ID, lot)
	require.NoError(t, err)
	assert.NotEmpty(t, lot.ID)
	assert.False(t, lot.CreatedAt.IsZero())
}

func TestLotRepository_Create_DuplicateLotNumber(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-dup")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Lot Dup Malt")

	lot := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)

	dup := &repository.Lot{
		StockItemID:      item.ID,
		LotNumber:        lot.LotNumber,
		QuantityReceived: decimal.NewFromInt(50),
		QuantityOnHand:   decimal.NewFromInt(50),
	}
	err := lotRepo.Create(ctx, tenant.ID, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrDuplicateLot))
}

func TestLotRepository_ListAvailableByItem_Order(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-order")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Lot Order Malt")

	newest := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)
	oldest := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 30)
	middle := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 10)

	// A fully reserved lot drops out of the availability listing
	require.NoError(t, lotRepo.Reserve(ctx, tenant.ID, middle.ID, decimal.NewFromInt(100)))

	lots, err := lotRepo.ListAvailableByItem(ctx, tenant.ID, item.ID)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, oldest.ID, lots[0].ID)
	assert.Equal(t, newest.ID, lots[1].ID)
}

func TestLotRepository_Reserve(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-reserve")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Reserve Malt")
	lot := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)

	require.NoError(t, lotRepo.Reserve(ctx, tenant.ID, lot.ID, decimal.NewFromInt(60)))

	got, err := lotRepo.GetByID(ctx, tenant.ID, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.QuantityReserved.Equal(decimal.NewFromInt(60)))
	assert.True(t, got.Available().Equal(decimal.NewFromInt(40)))
}

func TestLotRepository_Reserve_ExceedsAvailable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-reserve-over")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Reserve Over Malt")
	lot := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)

	require.NoError(t, lotRepo.Reserve(ctx, tenant.ID, lot.ID, decimal.NewFromInt(80)))

	// Only 20 remain available; a second reservation of 30 must fail
	err := lotRepo.Reserve(ctx, tenant.ID, lot.ID, decimal.NewFromInt(30))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInsufficientAvailable))

	// The failed attempt must not move the ledger
	got, err := lotRepo.GetByID(ctx, tenant.ID, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.QuantityReserved.Equal(decimal.NewFromInt(80)))
}

func TestLotRepository_Reserve_Concurrent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-reserve-race")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Race Malt")
	lot := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 4, 1)

	// Two writers race for 3 of the 4 available units. The guarded update
	// lets exactly one through.
	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- lotRepo.Reserve(ctx, tenant.ID, lot.ID, decimal.NewFromInt(3))
		}()
	}
	wg.Wait()
	close(errs)

	var failed int
	for err := range errs {
		if err != nil {
			assert.True(t, errors.Is(err, errors.ErrInsufficientAvailable))
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	got, err := lotRepo.GetByID(ctx, tenant.ID, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.QuantityReserved.Equal(decimal.NewFromInt(3)))
}

func TestLotRepository_Release(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-release")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Release Malt")
	lot := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)

	require.NoError(t, lotRepo.Reserve(ctx, tenant.ID, lot.ID, decimal.NewFromInt(50)))
	require.NoError(t, lotRepo.Release(ctx, tenant.ID, lot.ID, decimal.NewFromInt(20)))

	got, err := lotRepo.GetByID(ctx, tenant.ID, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.QuantityReserved.Equal(decimal.NewFromInt(30)))
	assert.True(t, got.QuantityOnHand.Equal(decimal.NewFromInt(100)))
}

func TestLotRepository_Release_ExceedsReserved(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-release-over")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Release Over Malt")
	lot := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)

	require.NoError(t, lotRepo.Reserve(ctx, tenant.ID, lot.ID, decimal.NewFromInt(10)))

	err := lotRepo.Release(ctx, tenant.ID, lot.ID, decimal.NewFromInt(25))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOverRelease))
}

func TestLotRepository_Consume(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-consume")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Consume Malt")
	lot := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)

	require.NoError(t, lotRepo.Reserve(ctx, tenant.ID, lot.ID, decimal.NewFromInt(40)))
	require.NoError(t, lotRepo.Consume(ctx, tenant.ID, lot.ID, decimal.NewFromInt(40)))

	got, err := lotRepo.GetByID(ctx, tenant.ID, lot.ID)
	require.NoError(t, err)
	assert.True(t, got.QuantityOnHand.Equal(decimal.NewFromInt(60)))
	assert.True(t, got.QuantityReserved.Equal(decimal.Zero))
	// Consumption must not free up quantity for others
	assert.True(t, got.Available().Equal(decimal.NewFromInt(60)))
}

func TestLotRepository_Consume_ExceedsReserved(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-consume-over")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Consume Over Malt")
	lot := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)

	require.NoError(t, lotRepo.Reserve(ctx, tenant.ID, lot.ID, decimal.NewFromInt(10)))

	err := lotRepo.Consume(ctx, tenant.ID, lot.ID, decimal.NewFromInt(15))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrOverConsume))
}

func TestLotRepository_ListExpiringWithin(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-expiring")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Expiring Hops")

	soon := time.Now().UTC().AddDate(0, 0, 10)
	far := time.Now().UTC().AddDate(0, 6, 0)

	expiring := &repository.Lot{
		StockItemID: item.ID, LotNumber: "EXP-SOON",
		QuantityReceived: decimal.NewFromInt(10), QuantityOnHand: decimal.NewFromInt(10),
		ExpiresAt: &soon,
	}
	keeping := &repository.Lot{
		StockItemID: item.ID, LotNumber: "EXP-FAR",
		QuantityReceived: decimal.NewFromInt(10), QuantityOnHand: decimal.NewFromInt(10),
		ExpiresAt: &far,
	}
	require.NoError(t, lotRepo.Create(ctx, tenant.ID, expiring))
	require.NoError(t, lotRepo.Create(ctx, tenant.ID, keeping))

	lots, err := lotRepo.ListExpiringWithin(ctx, tenant.ID, 30)
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, "EXP-SOON", lots[0].LotNumber)
}

func TestLotRepository_ListByNumbers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "lot-by-numbers")

	itemRepo := repository.NewStockRepository(suite.DB)
	lotRepo := repository.NewLotRepository(suite.DB)
	item := createTestItem(t, ctx, itemRepo, tenant.ID, "Recall Malt")

	a := createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 1)
	createTestLot(t, ctx, lotRepo, tenant.ID, item.ID, 100, 2)

	lots, err := lotRepo.ListByNumbers(ctx, tenant.ID, []string{a.LotNumber, "NO-SUCH-LOT"})
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, a.ID, lots[0].ID)

	empty, err := lotRepo.ListByNumbers(ctx, tenant.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
