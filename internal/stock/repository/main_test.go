package repository_test

import (
	"context"
	"flag"
	"log"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fermentum/fermentum-backend/internal/stock/repository"
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

// createTestItem inserts a stock item for use in other repository tests
func createTestItem(t *testing.T, ctx context.Context, repo *repository.StockRepository, tenantID, name string) *repository.StockItem {
	t.Helper()

	fixture := suite.Fixtures.StockItem(tenantID, testutil.WithItemName(name))
	item := &repository.StockItem{
		SKU:             fixture.SKU,
		Name:            fixture.Name,
		Category:        repository.IngredientCategory(fixture.Category),
		UnitOfMeasure:   fixture.UnitOfMeasure,
		ReorderLevel:    fixture.ReorderLevel,
		ReorderQuantity: fixture.ReorderQuantity,
		IsActive:        true,
	}
	require.NoError(t, repo.Create(ctx, tenantID, item))
	return item
}

// createTestLot inserts a lot for use in other repository tests
func createTestLot(t *testing.T, ctx context.Context, repo *repository.LotRepository, tenantID, itemID string, quantity int64, receivedDaysAgo int) *repository.Lot {
	t.Helper()

	fixture := suite.Fixtures.Lot(tenantID, itemID)
	received := time.Now().UTC().AddDate(0, 0, -receivedDaysAgo)
	lot := &repository.Lot{
		StockItemID:      itemID,
		LotNumber:        fixture.LotNumber,
		QuantityReceived: decimal.NewFromInt(quantity),
		QuantityOnHand:   decimal.NewFromInt(quantity),
		QuantityReserved: decimal.Zero,
		ReceivedAt:       &received,
	}
	require.NoError(t, repo.Create(ctx, tenantID, lot))
	return lot
}
