package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tankcontrol/internal/models"
)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func report(tankID uint, d int) *models.DailyProductionReport {
	return &models.DailyProductionReport{
		TankID:        tankID,
		ReportDate:    day(d),
		StartDatetime: day(d),
		EndDatetime:   day(d).Add(24*time.Hour - time.Millisecond),
		Status:        models.ReportDraft,
	}
}

func TestMemoryStoreTransaction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tank := &models.Tank{Code: "TQ-01", IsActive: true}
	require.NoError(t, store.CreateTank(ctx, tank))

	t.Run("Rollback Restores Snapshot", func(t *testing.T) {
		boom := errors.New("boom")
		err := store.Transaction(ctx, func(tx Store) error {
			require.NoError(t, tx.SaveReport(ctx, report(tank.ID, 10)))
			return boom
		})
		assert.ErrorIs(t, err, boom)

		found, err := store.FindReportByDate(ctx, tank.ID, day(10))
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Commit Keeps Writes", func(t *testing.T) {
		err := store.Transaction(ctx, func(tx Store) error {
			return tx.SaveReport(ctx, report(tank.ID, 10))
		})
		require.NoError(t, err)

		found, err := store.FindReportByDate(ctx, tank.ID, day(10))
		require.NoError(t, err)
		assert.NotNil(t, found)
	})
}

func TestMemoryStoreReports(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	tank := &models.Tank{Code: "TQ-01", IsActive: true}
	require.NoError(t, store.CreateTank(ctx, tank))
	assert.ErrorIs(t, store.CreateTank(ctx, &models.Tank{Code: "TQ-01"}), ErrDuplicate)

	for _, d := range []int{9, 11, 10} {
		require.NoError(t, store.SaveReport(ctx, report(tank.ID, d)))
	}
	assert.ErrorIs(t, store.SaveReport(ctx, report(tank.ID, 10)), ErrDuplicate)

	t.Run("Containing Uses The Window", func(t *testing.T) {
		found, err := store.FindReportContaining(ctx, tank.ID, day(10).Add(23*time.Hour))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "2024-03-10", found.ReportDate.Format(dateLayout))

		found, err = store.FindReportContaining(ctx, tank.ID, day(20))
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Previous Report", func(t *testing.T) {
		prev, err := store.FindPreviousReport(ctx, tank.ID, day(11))
		require.NoError(t, err)
		require.NotNil(t, prev)
		assert.Equal(t, "2024-03-10", prev.ReportDate.Format(dateLayout))

		prev, err = store.FindPreviousReport(ctx, tank.ID, day(9))
		require.NoError(t, err)
		assert.Nil(t, prev)
	})

	t.Run("List Newest First With Paging", func(t *testing.T) {
		reports, total, err := store.ListReports(ctx, ReportFilter{TankID: tank.ID, Offset: 1, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, reports, 1)
		assert.Equal(t, "2024-03-10", reports[0].ReportDate.Format(dateLayout))

		reports, total, err = store.ListReports(ctx, ReportFilter{TankID: tank.ID, Status: models.ReportClosed})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, reports)
	})

	t.Run("Returned Reports Are Copies", func(t *testing.T) {
		found, err := store.FindReportByDate(ctx, tank.ID, day(9))
		require.NoError(t, err)
		found.Status = models.ReportClosed

		again, err := store.GetReport(ctx, found.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReportDraft, again.Status)
	})
}

func TestMemoryStoreOperationsAndLedger(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	late := &models.TankOperation{TankID: 1, Type: models.OperationProduction, EndTime: day(10).Add(20 * time.Hour)}
	early := &models.TankOperation{TankID: 1, Type: models.OperationTransfer, EndTime: day(10).Add(2 * time.Hour)}
	other := &models.TankOperation{TankID: 2, Type: models.OperationProduction, EndTime: day(10).Add(3 * time.Hour)}
	for _, op := range []*models.TankOperation{late, early, other} {
		require.NoError(t, store.SaveOperation(ctx, op))
	}

	ops, err := store.ListOperationsInWindow(ctx, 1, day(10), day(11).Add(-time.Millisecond))
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, early.ID, ops[0].ID)
	assert.Equal(t, late.ID, ops[1].ID)

	require.NoError(t, store.LinkOperations(ctx, 77, []uint{early.ID}))
	linked, err := store.GetOperation(ctx, early.ID)
	require.NoError(t, err)
	require.NotNil(t, linked.DailyReportID)
	assert.Equal(t, uint(77), *linked.DailyReportID)

	assert.ErrorIs(t, store.DeleteOperation(ctx, 999), ErrNotFound)
	require.NoError(t, store.DeleteOperation(ctx, late.ID))
	_, err = store.GetOperation(ctx, late.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("Ledger Upserts By Date", func(t *testing.T) {
		first := &models.LedgerRow{TankID: 1, Date: day(10), PeriodEnd: day(11)}
		require.NoError(t, store.SaveLedgerRow(ctx, first))

		again := &models.LedgerRow{TankID: 1, Date: day(10), PeriodEnd: day(11), Comments: "updated"}
		require.NoError(t, store.SaveLedgerRow(ctx, again))
		assert.Equal(t, first.ID, again.ID)

		require.NoError(t, store.SaveLedgerRow(ctx, &models.LedgerRow{TankID: 1, Date: day(9), PeriodEnd: day(10)}))

		rows, err := store.ListLedgerRows(ctx, 1)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "2024-03-09", rows[0].Date.Format(dateLayout))
		assert.Equal(t, "updated", rows[1].Comments)
	})
}
