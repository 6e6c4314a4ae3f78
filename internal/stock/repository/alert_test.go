package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fermentum/fermentum-backend/internal/stock/repository"
	"github.com/fermentum/fermentum-backend/pkg/errors"
)

func createTestAlert(t *testing.T, ctx context.Context, repo *repository.AlertRepository, tenantID, lotNumber string, severity repository.AlertSeverity) *repository.LotAlert {
	t.Helper()

	alert := &repository.LotAlert{
		LotNumber: lotNumber,
		Severity:  severity,
		Title:     "Test quality notice",
	}
	require.NoError(t, repo.Create(ctx, tenantID, alert))
	return alert
}

func TestAlertRepository_Create(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "alert-create")

	alertRepo := repository.NewAlertRepository(suite.DB)

	// Alerts are keyed by lot number; the lot does not have to be in the
	// ledger yet
	alert := createTestAlert(t, ctx, alertRepo, tenant.ID, "WEY-2026-044", repository.SeverityWarning)
	assert.NotEmpty(t, alert.ID)
	assert.Equal(t, repository.AlertStatusActive, alert.Status)

	got, err := alertRepo.GetByID(ctx, tenant.ID, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, "WEY-2026-044", got.LotNumber)
}

func TestAlertRepository_AcknowledgeThenResolve(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "alert-lifecycle")

	alertRepo := repository.NewAlertRepository(suite.DB)
	alert := createTestAlert(t, ctx, alertRepo, tenant.ID, "LIFECYCLE-01", repository.SeverityCritical)

	userID := "a3bb189e-8bf9-3888-9912-ace4e6543002"

	acked, err := alertRepo.Acknowledge(ctx, tenant.ID, alert.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, repository.AlertStatusAcknowledged, acked.Status)
	require.NotNil(t, acked.AcknowledgedBy)
	assert.Equal(t, userID, *acked.AcknowledgedBy)
	assert.NotNil(t, acked.AcknowledgedAt)

	resolved, err := alertRepo.Resolve(ctx, tenant.ID, alert.ID, userID, "Supplier confirmed false positive")
	require.NoError(t, err)
	assert.Equal(t, repository.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.Resolution)
	assert.Equal(t, "Supplier confirmed false positive", *resolved.Resolution)
}

func TestAlertRepository_Acknowledge_Twice(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "alert-ack-twice")

	alertRepo := repository.NewAlertRepository(suite.DB)
	alert := createTestAlert(t, ctx, alertRepo, tenant.ID, "ACK-TWICE-01", repository.SeverityInfo)

	_, err := alertRepo.Acknowledge(ctx, tenant.ID, alert.ID, "")
	require.NoError(t, err)

	_, err = alertRepo.Acknowledge(ctx, tenant.ID, alert.ID, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
}

func TestAlertRepository_Acknowledge_AfterResolve(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "alert-ack-resolved")

	alertRepo := repository.NewAlertRepository(suite.DB)
	alert := createTestAlert(t, ctx, alertRepo, tenant.ID, "RESOLVED-01", repository.SeverityWarning)

	_, err := alertRepo.Resolve(ctx, tenant.ID, alert.ID, "", "cleared")
	require.NoError(t, err)

	_, err = alertRepo.Acknowledge(ctx, tenant.ID, alert.ID, "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidTransition))
}

func TestAlertRepository_ListActiveByLotNumbers(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "alert-active")

	alertRepo := repository.NewAlertRepository(suite.DB)

	// Any active alert blocks, regardless of severity
	warned := createTestAlert(t, ctx, alertRepo, tenant.ID, "WARNED-01", repository.SeverityWarning)
	recalled := createTestAlert(t, ctx, alertRepo, tenant.ID, "RECALLED-01", repository.SeverityRecall)

	active, err := alertRepo.ListActiveByLotNumbers(ctx, tenant.ID, []string{"WARNED-01", "CLEAN-01"})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, warned.ID, active[0].ID)
	assert.True(t, active[0].Blocking())

	active, err = alertRepo.ListActiveByLotNumbers(ctx, tenant.ID, []string{"WARNED-01", "RECALLED-01"})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	// Acknowledged alerts stop blocking
	_, err = alertRepo.Acknowledge(ctx, tenant.ID, warned.ID, "")
	require.NoError(t, err)

	active, err = alertRepo.ListActiveByLotNumbers(ctx, tenant.ID, []string{"WARNED-01"})
	require.NoError(t, err)
	assert.Empty(t, active)

	// Resolved alerts stop blocking
	_, err = alertRepo.Resolve(ctx, tenant.ID, recalled.ID, "", "stock destroyed")
	require.NoError(t, err)

	active, err = alertRepo.ListActiveByLotNumbers(ctx, tenant.ID, []string{"RECALLED-01"})
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestAlertRepository_ListUnresolvedByLot(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "alert-unresolved")

	alertRepo := repository.NewAlertRepository(suite.DB)

	active := createTestAlert(t, ctx, alertRepo, tenant.ID, "UNRESOLVED-01", repository.SeverityWarning)
	acked := createTestAlert(t, ctx, alertRepo, tenant.ID, "UNRESOLVED-01", repository.SeverityCritical)
	_, err := alertRepo.Acknowledge(ctx, tenant.ID, acked.ID, "")
	require.NoError(t, err)

	resolved := createTestAlert(t, ctx, alertRepo, tenant.ID, "UNRESOLVED-01", repository.SeverityInfo)
	_, err = alertRepo.Resolve(ctx, tenant.ID, resolved.ID, "", "done")
	require.NoError(t, err)

	unresolved, err := alertRepo.ListUnresolvedByLot(ctx, tenant.ID, "UNRESOLVED-01")
	require.NoError(t, err)
	require.Len(t, unresolved, 2)
	for _, a := range unresolved {
		assert.NotEqual(t, resolved.ID, a.ID)
	}

	all, err := alertRepo.ListByLotNumber(ctx, tenant.ID, "UNRESOLVED-01")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	assert.Contains(t, []string{active.ID, acked.ID, resolved.ID}, all[0].ID)
}

func TestAlertRepository_AppendInternalNotes(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "alert-notes")

	alertRepo := repository.NewAlertRepository(suite.DB)
	alert := createTestAlert(t, ctx, alertRepo, tenant.ID, "NOTES-01", repository.SeverityWarning)

	require.NoError(t, alertRepo.AppendInternalNotes(ctx, tenant.ID, alert.ID, "first note"))
	require.NoError(t, alertRepo.AppendInternalNotes(ctx, tenant.ID, alert.ID, "second note"))

	got, err := alertRepo.GetByID(ctx, tenant.ID, alert.ID)
	require.NoError(t, err)
	require.NotNil(t, got.InternalNotes)
	assert.Equal(t, "first note\nsecond note", *got.InternalNotes)
}

func TestAlertRepository_List_Filters(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	ctx := context.Background()
	tenant := suite.SetupTenant(t, ctx, "alert-list")

	alertRepo := repository.NewAlertRepository(suite.DB)

	createTestAlert(t, ctx, alertRepo, tenant.ID, "LIST-01", repository.SeverityWarning)
	acked := createTestAlert(t, ctx, alertRepo, tenant.ID, "LIST-01", repository.SeverityCritical)
	_, err := alertRepo.Acknowledge(ctx, tenant.ID, acked.ID, "")
	require.NoError(t, err)

	active, total, err := alertRepo.List(ctx, tenant.ID, 1, 20, "active", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, active, 1)
	assert.Equal(t, repository.SeverityWarning, active[0].Severity)

	critical, total, err := alertRepo.List(ctx, tenant.ID, 1, 20, "", "critical")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, critical, 1)
	assert.Equal(t, acked.ID, critical[0].ID)
}
