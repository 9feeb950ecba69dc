package repository

import (
	"context"
	"errors"
	"time"

	"tankcontrol/internal/models"
)

var (
	// ErrNotFound is returned by getters when the record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned for a second tank with the same code or a second report for the same tank and date.
	ErrDuplicate = errors.New("duplicate record")
)

// ReportFilter narrows ListReports.
type ReportFilter struct {
	TankID uint
	Status models.ReportStatus // empty = any
	Offset int
	Limit  int // 0 = no limit
}

// Store is the persistence collaborator of the consolidation engine.
// Finders that may legitimately find nothing return (nil, nil).
type Store interface {
	// Transaction runs fn against a Store bound to one transaction.
	// Any error returned by fn rolls back every write made through it.
	Transaction(ctx context.Context, fn func(Store) error) error

	CreateTank(ctx context.Context, tank *models.Tank) error
	GetTank(ctx context.Context, id uint) (*models.Tank, error)
	ListTanks(ctx context.Context, onlyActive bool) ([]models.Tank, error)

	ListCalibration(ctx context.Context, tankID uint) ([]models.CalibrationRow, error)
	ReplaceCalibration(ctx context.Context, tankID uint, rows []models.CalibrationRow) error

	GetOperation(ctx context.Context, id uint) (*models.TankOperation, error)
	SaveOperation(ctx context.Context, op *models.TankOperation) error
	DeleteOperation(ctx context.Context, id uint) error
	// ListOperationsInWindow returns operations whose EndTime lies in [start, end], ordered by EndTime, ID.
	ListOperationsInWindow(ctx context.Context, tankID uint, start, end time.Time) ([]models.TankOperation, error)
	LinkOperations(ctx context.Context, reportID uint, operationIDs []uint) error

	GetReport(ctx context.Context, id uint) (*models.DailyProductionReport, error)
	FindReportContaining(ctx context.Context, tankID uint, ts time.Time) (*models.DailyProductionReport, error)
	FindReportByDate(ctx context.Context, tankID uint, reportDate time.Time) (*models.DailyProductionReport, error)
	// FindPreviousReport returns the latest report of the tank dated strictly before reportDate.
	FindPreviousReport(ctx context.Context, tankID uint, reportDate time.Time) (*models.DailyProductionReport, error)
	ListReports(ctx context.Context, filter ReportFilter) ([]models.DailyProductionReport, int64, error)
	SaveReport(ctx context.Context, report *models.DailyProductionReport) error

	// ListLedgerRows returns the tank's rows ordered by PeriodEnd ascending.
	ListLedgerRows(ctx context.Context, tankID uint) ([]models.LedgerRow, error)
	SaveLedgerRow(ctx context.Context, row *models.LedgerRow) error
}

// DateOnly truncates t to midnight in its own location.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
