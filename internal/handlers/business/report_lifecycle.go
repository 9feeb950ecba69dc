package business

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"time"

	logger "github.com/sirupsen/logrus"

	"tankcontrol/internal/audit"
	"tankcontrol/internal/lock"
	"tankcontrol/internal/metrics"
	"tankcontrol/internal/models"
	"tankcontrol/internal/repository"
	"tankcontrol/pkg/volumetric"
)

var (
	// ErrReportClosed is returned for any write that targets a closed production day.
	ErrReportClosed = errors.New("daily report is closed")
	// ErrValidation wraps every input rejection.
	ErrValidation = errors.New("validation failed")
	// ErrConflict means the record moved between the lock and the read; the caller may retry.
	ErrConflict = errors.New("concurrent modification")
	ErrNotFound = repository.ErrNotFound
)

// 人工录入值的物理范围，超出即视为录入错误
const (
	MaxLevelMm     = 100000.0
	MinTempC       = -50.0
	MaxTempC       = 150.0
	MaxDensityGcm3 = 2.0
	MaxFactor      = 2.0
	MaxStockM3     = 1e9
)

// Actor identifies who asked for a write and why. Both end up in the audit entry.
type Actor struct {
	UserID string
	Reason string
}

// LedgerEdit carries the manual cells a user may set on a ledger row.
// Nil fields are left as they are.
type LedgerEdit struct {
	FcvManual      *float64 `json:"AB_FCV_Manual"`
	ClearFcvManual bool     `json:"clear_fcv_manual"`
	Fe             *float64 `json:"AC_FE"`
	TotalBswPct    *float64 `json:"Q_BSW_total_pct"`
	EmulsionBswPct *float64 `json:"R_BSW_emulsao_pct"`
	InitialStockM3 *float64 `json:"N_Estoque_inicial_m3"`
	Comments       *string  `json:"AG_Observacoes"`
}

// LifecycleOptions configures a ReportLifecycle.
type LifecycleOptions struct {
	Location *time.Location // production-day timezone, UTC when nil
	Thermal  volumetric.ThermalOptions
}

// ReportLifecycle owns every write that changes operations, reports, calibration
// tables or ledger rows. Writers of the same tank day are serialized through
// the Locker and each write runs in one store transaction.
type ReportLifecycle struct {
	store  repository.Store
	locker lock.Locker
	audit  audit.Sink
	loc    *time.Location
	opts   volumetric.ThermalOptions
	now    func() time.Time
}

// NewReportLifecycle wires the collaborators. A nil sink falls back to audit.LogSink.
func NewReportLifecycle(store repository.Store, locker lock.Locker, sink audit.Sink, opts LifecycleOptions) *ReportLifecycle {
	if sink == nil {
		sink = audit.LogSink{}
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	thermal := opts.Thermal
	if thermal.Tolerance <= 0 || thermal.MaxIterations <= 0 {
		thermal = volumetric.DefaultThermalOptions()
	}
	return &ReportLifecycle{
		store:  store,
		locker: locker,
		audit:  sink,
		loc:    loc,
		opts:   thermal,
		now:    time.Now,
	}
}

// Store exposes the read side to handlers.
func (l *ReportLifecycle) Store() repository.Store {
	return l.store
}

// Location is the production-day timezone.
func (l *ReportLifecycle) Location() *time.Location {
	return l.loc
}

// DayWindow returns the production day containing ts: its date and the
// [00:00:00.000, 23:59:59.999] window in the production timezone.
func (l *ReportLifecycle) DayWindow(ts time.Time) (date, start, end time.Time) {
	local := ts.In(l.loc)
	start = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, l.loc)
	end = start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start, start, end
}

// FindReportContaining returns the report whose window holds ts, or nil.
func (l *ReportLifecycle) FindReportContaining(ctx context.Context, tankID uint, ts time.Time) (*models.DailyProductionReport, error) {
	return l.store.FindReportContaining(ctx, tankID, ts)
}

// CreateTank registers a tank.
func (l *ReportLifecycle) CreateTank(ctx context.Context, actor Actor, tank *models.Tank) error {
	if tank.Code == "" {
		return fmt.Errorf("%w: tank code is required", ErrValidation)
	}
	if !within(tank.MaxHeightMm, 0, MaxLevelMm) {
		return fmt.Errorf("%w: max_height_mm must be within [0, %.0f]", ErrValidation, MaxLevelMm)
	}
	err := l.store.Transaction(ctx, func(tx repository.Store) error {
		return tx.CreateTank(ctx, tank)
	})
	if err != nil {
		return err
	}
	l.emit(ctx, actor, "tank", tank.ID, "create", nil, tank)
	return nil
}

// CreateOperation corrects op and stores it, opening the day's draft when
// needed and recomputing the day.
func (l *ReportLifecycle) CreateOperation(ctx context.Context, actor Actor, op models.TankOperation) (*models.TankOperation, error) {
	tank, err := l.store.GetTank(ctx, op.TankID)
	if err != nil {
		return nil, fmt.Errorf("tank %d: %w", op.TankID, err)
	}
	if err := validateOperation(op, tank); err != nil {
		return nil, err
	}

	date, _, _ := l.DayWindow(op.EndTime)
	unlock, err := lock.LockAll(ctx, l.locker, lock.ReportKey(tank.ID, date), lock.LedgerKey(tank.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	op.ID = 0
	op.DailyReportID = nil
	err = l.store.Transaction(ctx, func(tx repository.Store) error {
		report, err := l.draftFor(ctx, tx, tank, date)
		if err != nil {
			return err
		}
		table, err := l.calibration(ctx, tx, tank.ID)
		if err != nil {
			return err
		}
		op = l.correct(op, table)
		if err := tx.SaveOperation(ctx, &op); err != nil {
			return err
		}
		return l.recomputeDay(ctx, tx, tank, report, table, "operation_create")
	})
	if err != nil {
		return nil, err
	}

	l.emit(ctx, actor, "tank_operation", op.ID, "create", nil, op)
	return &op, nil
}

// UpdateOperation replaces the raw fields of operation id with in. When the
// new end time lands on another day, both days are recomputed; neither may be closed.
func (l *ReportLifecycle) UpdateOperation(ctx context.Context, actor Actor, id uint, in models.TankOperation) (*models.TankOperation, error) {
	current, err := l.store.GetOperation(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.TankID != 0 && in.TankID != current.TankID {
		return nil, fmt.Errorf("%w: an operation cannot move to another tank", ErrValidation)
	}
	in.TankID = current.TankID

	tank, err := l.store.GetTank(ctx, current.TankID)
	if err != nil {
		return nil, err
	}
	if err := validateOperation(in, tank); err != nil {
		return nil, err
	}

	oldDate, _, _ := l.DayWindow(current.EndTime)
	newDate, _, _ := l.DayWindow(in.EndTime)
	unlock, err := lock.LockAll(ctx, l.locker,
		lock.ReportKey(tank.ID, oldDate), lock.ReportKey(tank.ID, newDate), lock.LedgerKey(tank.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var before, after models.TankOperation
	err = l.store.Transaction(ctx, func(tx repository.Store) error {
		existing, err := tx.GetOperation(ctx, id)
		if err != nil {
			return err
		}
		if d, _, _ := l.DayWindow(existing.EndTime); !d.Equal(oldDate) {
			return ErrConflict
		}
		before = *existing

		oldReport, err := l.openReport(ctx, tx, tank.ID, oldDate)
		if err != nil {
			return err
		}
		newReport, err := l.draftFor(ctx, tx, tank, newDate)
		if err != nil {
			return err
		}

		table, err := l.calibration(ctx, tx, tank.ID)
		if err != nil {
			return err
		}
		in.ID = existing.ID
		in.CreatedAt = existing.CreatedAt
		in.DailyReportID = nil
		after = l.correct(in, table)
		if err := tx.SaveOperation(ctx, &after); err != nil {
			return err
		}

		if oldReport != nil && oldReport.ID != newReport.ID {
			if err := l.recomputeDay(ctx, tx, tank, oldReport, table, "operation_update"); err != nil {
				return err
			}
		}
		return l.recomputeDay(ctx, tx, tank, newReport, table, "operation_update")
	})
	if err != nil {
		return nil, err
	}

	l.emit(ctx, actor, "tank_operation", id, "update", before, after)
	return &after, nil
}

// DeleteOperation removes an operation of an open day and recomputes that day.
func (l *ReportLifecycle) DeleteOperation(ctx context.Context, actor Actor, id uint) error {
	current, err := l.store.GetOperation(ctx, id)
	if err != nil {
		return err
	}
	tank, err := l.store.GetTank(ctx, current.TankID)
	if err != nil {
		return err
	}
	date, _, _ := l.DayWindow(current.EndTime)
	unlock, err := lock.LockAll(ctx, l.locker, lock.ReportKey(tank.ID, date), lock.LedgerKey(tank.ID))
	if err != nil {
		return err
	}
	defer unlock()

	var before models.TankOperation
	err = l.store.Transaction(ctx, func(tx repository.Store) error {
		existing, err := tx.GetOperation(ctx, id)
		if err != nil {
			return err
		}
		if d, _, _ := l.DayWindow(existing.EndTime); !d.Equal(date) {
			return ErrConflict
		}
		before = *existing

		report, err := l.openReport(ctx, tx, tank.ID, date)
		if err != nil {
			return err
		}
		if err := tx.DeleteOperation(ctx, id); err != nil {
			return err
		}
		if report == nil {
			return nil
		}
		table, err := l.calibration(ctx, tx, tank.ID)
		if err != nil {
			return err
		}
		return l.recomputeDay(ctx, tx, tank, report, table, "operation_delete")
	})
	if err != nil {
		return err
	}

	l.emit(ctx, actor, "tank_operation", id, "delete", before, nil)
	return nil
}

// StartBulletin opens the draft of (tankID, day). An existing report, closed
// or not, is returned as is with created=false.
func (l *ReportLifecycle) StartBulletin(ctx context.Context, actor Actor, tankID uint, day time.Time) (*models.DailyProductionReport, bool, error) {
	tank, err := l.store.GetTank(ctx, tankID)
	if err != nil {
		return nil, false, err
	}
	date := l.localDate(day)
	unlock, err := lock.LockAll(ctx, l.locker, lock.ReportKey(tank.ID, date), lock.LedgerKey(tank.ID))
	if err != nil {
		return nil, false, err
	}
	defer unlock()

	var report *models.DailyProductionReport
	created := false
	err = l.store.Transaction(ctx, func(tx repository.Store) error {
		existing, err := tx.FindReportByDate(ctx, tank.ID, date)
		if err != nil {
			return err
		}
		if existing != nil {
			report = existing
			return nil
		}
		report, err = l.draftFor(ctx, tx, tank, date)
		if err != nil {
			return err
		}
		created = true
		table, err := l.calibration(ctx, tx, tank.ID)
		if err != nil {
			return err
		}
		return l.recomputeDay(ctx, tx, tank, report, table, "start_bulletin")
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		l.emit(ctx, actor, "daily_report", report.ID, "create", nil, report)
	}
	return report, created, nil
}

// RecomputeReport re-aggregates a draft from its operations.
func (l *ReportLifecycle) RecomputeReport(ctx context.Context, actor Actor, reportID uint) (*models.DailyProductionReport, error) {
	current, err := l.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, err
	}
	tank, err := l.store.GetTank(ctx, current.TankID)
	if err != nil {
		return nil, err
	}
	unlock, err := lock.LockAll(ctx, l.locker, lock.ReportKey(tank.ID, current.ReportDate), lock.LedgerKey(tank.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var report *models.DailyProductionReport
	err = l.store.Transaction(ctx, func(tx repository.Store) error {
		report, err = tx.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		if report.IsClosed() {
			metrics.ClosedReportConflicts.Inc()
			return ErrReportClosed
		}
		table, err := l.calibration(ctx, tx, tank.ID)
		if err != nil {
			return err
		}
		return l.recomputeDay(ctx, tx, tank, report, table, "manual")
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// CloseReport snapshots the day's final metrics, links its operations and
// marks it closed. With openNext the following day's draft is created, seeded
// with this day's closing level.
func (l *ReportLifecycle) CloseReport(ctx context.Context, actor Actor, reportID uint, openNext bool) (*models.DailyProductionReport, *models.DailyProductionReport, error) {
	current, err := l.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, nil, err
	}
	tank, err := l.store.GetTank(ctx, current.TankID)
	if err != nil {
		return nil, nil, err
	}
	date := l.localDate(current.ReportDate)
	nextDate := date.AddDate(0, 0, 1)
	keys := []string{lock.ReportKey(tank.ID, date), lock.LedgerKey(tank.ID)}
	if openNext {
		keys = append(keys, lock.ReportKey(tank.ID, nextDate))
	}
	unlock, err := lock.LockAll(ctx, l.locker, keys...)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()

	var before models.DailyProductionReport
	var closed, next *models.DailyProductionReport
	nextCreated := false
	err = l.store.Transaction(ctx, func(tx repository.Store) error {
		report, err := tx.GetReport(ctx, reportID)
		if err != nil {
			return err
		}
		if report.IsClosed() {
			metrics.ClosedReportConflicts.Inc()
			return ErrReportClosed
		}
		before = *report

		table, err := l.calibration(ctx, tx, tank.ID)
		if err != nil {
			return err
		}
		closedAt := l.now().UTC()
		report.Status = models.ReportClosed
		report.ClosedAt = &closedAt
		if actor.UserID != "" {
			by := actor.UserID
			report.ClosedBy = &by
		}
		ops, err := tx.ListOperationsInWindow(ctx, tank.ID, report.StartDatetime, report.EndDatetime)
		if err != nil {
			return err
		}
		if err := l.recomputeDay(ctx, tx, tank, report, table, "close"); err != nil {
			return err
		}
		ids := make([]uint, len(ops))
		for i, op := range ops {
			ids[i] = op.ID
		}
		if err := tx.LinkOperations(ctx, report.ID, ids); err != nil {
			return err
		}
		closed = report

		if !openNext {
			return nil
		}
		next, err = tx.FindReportByDate(ctx, tank.ID, nextDate)
		if err != nil || next != nil {
			return err
		}
		next, err = l.draftFor(ctx, tx, tank, nextDate)
		if err != nil {
			return err
		}
		nextCreated = true
		return l.recomputeDay(ctx, tx, tank, next, table, "open_next")
	})
	if err != nil {
		return nil, nil, err
	}

	logger.WithFields(logger.Fields{
		"tank_id":     tank.ID,
		"report_id":   closed.ID,
		"report_date": date.Format("2006-01-02"),
		"operations":  closed.OperationCount,
	}).Info("> daily report closed")
	l.emit(ctx, actor, "daily_report", closed.ID, "close", before, closed)
	if nextCreated {
		l.emit(ctx, actor, "daily_report", next.ID, "create", nil, next)
	}
	return closed, next, nil
}

// ReplaceCalibration validates and swaps the whole calibration table of a tank,
// then recomputes every draft day of the tank and its full ledger. Closed
// reports keep the metrics they were closed with.
func (l *ReportLifecycle) ReplaceCalibration(ctx context.Context, actor Actor, tankID uint, rows []models.CalibrationRow) ([]models.CalibrationRow, error) {
	tank, err := l.store.GetTank(ctx, tankID)
	if err != nil {
		return nil, err
	}
	sorted, err := validateCalibration(rows)
	if err != nil {
		return nil, err
	}

	// every tank writer holds the ledger key, so drafts cannot appear while it is held
	unlock, err := lock.LockAll(ctx, l.locker, lock.LedgerKey(tankID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var oldCount, recomputed int
	err = l.store.Transaction(ctx, func(tx repository.Store) error {
		old, err := tx.ListCalibration(ctx, tankID)
		if err != nil {
			return err
		}
		oldCount = len(old)
		if err := tx.ReplaceCalibration(ctx, tankID, sorted); err != nil {
			return err
		}
		table, err := CalibrationFromRows(sorted)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrValidation, err)
		}

		drafts, _, err := tx.ListReports(ctx, repository.ReportFilter{TankID: tankID, Status: models.ReportDraft})
		if err != nil {
			return err
		}
		for _, d := range drafts {
			report, err := tx.GetReport(ctx, d.ID)
			if err != nil {
				return err
			}
			if report.IsClosed() {
				continue
			}
			if err := l.recorrectWindow(ctx, tx, report, table); err != nil {
				return err
			}
			if err := l.recomputeDay(ctx, tx, tank, report, table, "calibration"); err != nil {
				return err
			}
			recomputed++
		}
		return l.recomputeLedgerFrom(ctx, tx, tank.ID, 0, table)
	})
	if err != nil {
		return nil, err
	}

	l.emit(ctx, actor, "calibration_table", tankID, "replace",
		map[string]interface{}{"rows": oldCount},
		map[string]interface{}{"rows": len(sorted), "recomputed_drafts": recomputed})
	return sorted, nil
}

// UpdateLedgerRow applies a manual edit to the ledger row of (tankID, day) and
// recomputes every later row.
func (l *ReportLifecycle) UpdateLedgerRow(ctx context.Context, actor Actor, tankID uint, day time.Time, edit LedgerEdit) (*models.LedgerRow, error) {
	if err := validateLedgerEdit(edit); err != nil {
		return nil, err
	}
	if _, err := l.store.GetTank(ctx, tankID); err != nil {
		return nil, err
	}

	date := l.localDate(day)
	unlock, err := lock.LockAll(ctx, l.locker, lock.ReportKey(tankID, date), lock.LedgerKey(tankID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	var before, after models.LedgerRow
	err = l.store.Transaction(ctx, func(tx repository.Store) error {
		if _, err := l.openReport(ctx, tx, tankID, date); err != nil {
			return err
		}
		rows, err := tx.ListLedgerRows(ctx, tankID)
		if err != nil {
			return err
		}
		idx := LedgerPosition(rows, date)
		if idx < 0 {
			return fmt.Errorf("ledger row %s: %w", date.Format("2006-01-02"), ErrNotFound)
		}
		before = rows[idx]

		in := &rows[idx].Inputs
		if edit.ClearFcvManual {
			in.FcvManual = nil
		}
		if edit.FcvManual != nil {
			in.FcvManual = edit.FcvManual
		}
		if edit.Fe != nil {
			in.Fe = edit.Fe
		}
		if edit.TotalBswPct != nil {
			in.TotalBswPct = edit.TotalBswPct
		}
		if edit.EmulsionBswPct != nil {
			in.EmulsionBswPct = edit.EmulsionBswPct
		}
		if edit.InitialStockM3 != nil {
			in.InitialStockM3 = edit.InitialStockM3
		}
		if edit.Comments != nil {
			in.Comments = edit.Comments
		}

		table, err := l.calibration(ctx, tx, tankID)
		if err != nil {
			return err
		}
		out, err := l.saveLedgerTail(ctx, tx, rows, idx, table, map[int]bool{idx: true})
		if err != nil {
			return err
		}
		after = out[idx]
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.emit(ctx, actor, "ledger_row", after.ID, "update", before.Inputs, after.Inputs)
	return &after, nil
}

// draftFor returns the open report of (tank, date), creating a seeded draft
// when none exists. A closed report yields ErrReportClosed.
func (l *ReportLifecycle) draftFor(ctx context.Context, tx repository.Store, tank *models.Tank, date time.Time) (*models.DailyProductionReport, error) {
	report, err := l.openReport(ctx, tx, tank.ID, date)
	if err != nil || report != nil {
		return report, err
	}

	_, start, end := l.DayWindow(date)
	report = &models.DailyProductionReport{
		TankID:                tank.ID,
		ReportDate:            start,
		StartDatetime:         start,
		EndDatetime:           end,
		Status:                models.ReportDraft,
		Fcv:                   1,
		Fe:                    1,
		TempCorrectionFactorY: 1,
		TransferDestinations:  []string{},
	}
	prev, err := tx.FindPreviousReport(ctx, tank.ID, date)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		report.OpeningLevelMm = prev.ClosingLevelMm
		report.ClosingLevelMm = prev.ClosingLevelMm
	}
	if err := tx.SaveReport(ctx, report); err != nil {
		return nil, err
	}
	logger.WithFields(logger.Fields{
		"tank_id":     tank.ID,
		"report_date": date.Format("2006-01-02"),
	}).Info("> draft report opened")
	return report, nil
}

// openReport returns the report of (tankID, date) or nil, failing with
// ErrReportClosed when the day is closed.
func (l *ReportLifecycle) openReport(ctx context.Context, tx repository.Store, tankID uint, date time.Time) (*models.DailyProductionReport, error) {
	report, err := tx.FindReportByDate(ctx, tankID, date)
	if err != nil {
		return nil, err
	}
	if report.IsClosed() {
		metrics.ClosedReportConflicts.Inc()
		return nil, fmt.Errorf("%w: tank %d on %s", ErrReportClosed, tankID, date.Format("2006-01-02"))
	}
	return report, nil
}

func (l *ReportLifecycle) calibration(ctx context.Context, tx repository.Store, tankID uint) (volumetric.CalibrationTable, error) {
	rows, err := tx.ListCalibration(ctx, tankID)
	if err != nil {
		return volumetric.CalibrationTable{}, err
	}
	table, err := CalibrationFromRows(rows)
	if err != nil {
		// 脏数据不阻塞计量，按空表处理
		logger.WithError(err).WithField("tank_id", tankID).Warn("> calibration table unusable, using neutral defaults")
		return volumetric.CalibrationTable{}, nil
	}
	return table, nil
}

func (l *ReportLifecycle) correct(op models.TankOperation, table volumetric.CalibrationTable) models.TankOperation {
	corrected, notes := CorrectOperation(op, table, l.opts)
	if notes.EmptyCalibration {
		metrics.EmptyCalibrationLookups.Inc()
	}
	if notes.ThermalFallback {
		metrics.ThermalFallbacks.WithLabelValues("operation", fallbackReason(notes.FallbackReason)).Inc()
		logger.WithError(notes.FallbackReason).WithFields(logger.Fields{
			"tank_id":      op.TankID,
			"operation_id": op.ID,
		}).Warn("> thermal correction fell back to FCV=1.0, flagged for review")
	}
	return corrected
}

// recorrectWindow re-runs the corrector on every operation of report's window
// and saves those whose derived fields changed.
func (l *ReportLifecycle) recorrectWindow(ctx context.Context, tx repository.Store, report *models.DailyProductionReport, table volumetric.CalibrationTable) error {
	ops, err := tx.ListOperationsInWindow(ctx, report.TankID, report.StartDatetime, report.EndDatetime)
	if err != nil {
		return err
	}
	for _, op := range ops {
		corrected := l.correct(op, table)
		if reflect.DeepEqual(corrected, op) {
			continue
		}
		if err := tx.SaveOperation(ctx, &corrected); err != nil {
			return err
		}
	}
	return nil
}

// recomputeDay aggregates the operations of report's window from scratch,
// saves the report and regenerates the ledger from that day forward.
func (l *ReportLifecycle) recomputeDay(ctx context.Context, tx repository.Store, tank *models.Tank, report *models.DailyProductionReport, table volumetric.CalibrationTable, trigger string) error {
	started := time.Now()
	defer func() {
		metrics.ReportRecomputes.WithLabelValues(trigger).Inc()
		metrics.ReportRecomputeDuration.Observe(time.Since(started).Seconds())
	}()

	ops, err := tx.ListOperationsInWindow(ctx, tank.ID, report.StartDatetime, report.EndDatetime)
	if err != nil {
		return err
	}
	m := AggregateDay(ops, l.opts)
	if m.ThermalFallback {
		metrics.ThermalFallbacks.WithLabelValues("daily_report", "representative_density").Inc()
	}
	ApplyMetrics(report, m)
	if err := tx.SaveReport(ctx, report); err != nil {
		return err
	}
	return l.syncLedgerRow(ctx, tx, tank, report, m, table)
}

// syncLedgerRow rewrites the raw cells of the report's ledger row and
// recomputes the ledger from it.
func (l *ReportLifecycle) syncLedgerRow(ctx context.Context, tx repository.Store, tank *models.Tank, report *models.DailyProductionReport, m DailyMetrics, table volumetric.CalibrationTable) error {
	rows, err := tx.ListLedgerRows(ctx, tank.ID)
	if err != nil {
		return err
	}

	idx := LedgerPosition(rows, report.ReportDate)
	var existing *models.LedgerInputs
	if idx >= 0 {
		existing = &rows[idx].Inputs
	} else {
		rows = append(rows, models.LedgerRow{TankID: tank.ID, Date: report.ReportDate, PeriodEnd: report.EndDatetime})
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].PeriodEnd.Before(rows[j].PeriodEnd) })
		idx = LedgerPosition(rows, report.ReportDate)
	}

	row := &rows[idx]
	rid := report.ID
	row.ReportID = &rid
	row.TankCode = tank.Code
	row.PeriodStart = report.StartDatetime
	row.PeriodEnd = report.EndDatetime
	row.Inputs = LedgerInputsFromMetrics(m, existing)
	row.Reference = fmt.Sprintf("%d/%s", report.ID, report.Status)

	_, err = l.saveLedgerTail(ctx, tx, rows, idx, table, map[int]bool{idx: true})
	return err
}

func (l *ReportLifecycle) recomputeLedgerFrom(ctx context.Context, tx repository.Store, tankID uint, from int, table volumetric.CalibrationTable) error {
	rows, err := tx.ListLedgerRows(ctx, tankID)
	if err != nil {
		return err
	}
	_, err = l.saveLedgerTail(ctx, tx, rows, from, table, nil)
	return err
}

// saveLedgerTail recomputes rows[from:] and persists the rows whose values
// changed plus those listed in dirty.
func (l *ReportLifecycle) saveLedgerTail(ctx context.Context, tx repository.Store, rows []models.LedgerRow, from int, table volumetric.CalibrationTable, dirty map[int]bool) ([]models.LedgerRow, error) {
	out, changed := RecalculateLedger(rows, from, table, l.opts)
	for _, i := range changed {
		if dirty == nil {
			dirty = make(map[int]bool)
		}
		dirty[i] = true
	}

	indexes := make([]int, 0, len(dirty))
	for i := range dirty {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	for _, i := range indexes {
		row := &out[i]
		if row.NeedsReview {
			metrics.ThermalFallbacks.WithLabelValues("ledger", "density").Inc()
		}
		if err := tx.SaveLedgerRow(ctx, row); err != nil {
			return nil, err
		}
		metrics.LedgerRowsWritten.Inc()
	}
	return out, nil
}

func (l *ReportLifecycle) localDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, l.loc)
}

// emit sends the audit entry after commit. Delivery is best effort: a failing
// sink is logged and counted, the write itself already succeeded.
func (l *ReportLifecycle) emit(ctx context.Context, actor Actor, entityType string, entityID uint, operation string, oldValue, newValue interface{}) {
	entry := models.AuditEntry{
		UserID:        actor.UserID,
		EntityType:    entityType,
		EntityID:      entityID,
		OperationType: operation,
		Reason:        actor.Reason,
	}
	if oldValue != nil {
		entry.OldValue = models.ToJSONMap(oldValue)
	}
	if newValue != nil {
		entry.NewValue = models.ToJSONMap(newValue)
	}
	if err := l.audit.Emit(ctx, entry); err != nil {
		metrics.AuditEmitFailures.WithLabelValues(entityType).Inc()
		logger.WithError(err).WithFields(logger.Fields{
			"entity_type": entityType,
			"entity_id":   entityID,
		}).Error("> failed to emit audit entry")
	}
}

func fallbackReason(err error) string {
	switch {
	case errors.Is(err, volumetric.ErrNonPositiveDensity):
		return "non_positive_density"
	case errors.Is(err, volumetric.ErrNoConvergence):
		return "no_convergence"
	}
	return "other"
}

func validateOperation(op models.TankOperation, tank *models.Tank) error {
	if !op.Type.Valid() {
		return fmt.Errorf("%w: unknown operation type %q", ErrValidation, op.Type)
	}
	if op.StartTime.IsZero() || op.EndTime.IsZero() {
		return fmt.Errorf("%w: start_time and end_time are required", ErrValidation)
	}
	if op.EndTime.Before(op.StartTime) {
		return fmt.Errorf("%w: end_time is before start_time", ErrValidation)
	}
	maxLevel := MaxLevelMm
	if tank.MaxHeightMm > 0 {
		maxLevel = tank.MaxHeightMm
	}
	for name, level := range map[string]float64{"initial_level_mm": op.InitialLevelMm, "final_level_mm": op.FinalLevelMm} {
		if !within(level, 0, maxLevel) {
			return fmt.Errorf("%w: %s %.1f must be within [0, %.1f]", ErrValidation, name, level, maxLevel)
		}
	}
	if op.BswPercent != nil && !within(*op.BswPercent, 0, 100) {
		return fmt.Errorf("%w: bsw_percent must be within [0, 100]", ErrValidation)
	}
	if op.DensityObservedGcm3 != nil && !within(*op.DensityObservedGcm3, 0, MaxDensityGcm3) {
		return fmt.Errorf("%w: density_observed_gcm3 must be within [0, %.1f]", ErrValidation, MaxDensityGcm3)
	}
	for name, temp := range map[string]*float64{"temp_fluid_c": op.TempFluidC, "temp_ambient_c": op.TempAmbientC} {
		if temp != nil && !within(*temp, MinTempC, MaxTempC) {
			return fmt.Errorf("%w: %s must be within [%.0f, %.0f]", ErrValidation, name, MinTempC, MaxTempC)
		}
	}
	for name, factor := range map[string]*float64{"fcv": op.Fcv, "fe": op.Fe} {
		if factor != nil && !positiveFactor(*factor) {
			return fmt.Errorf("%w: %s must be within (0, %.0f]", ErrValidation, name, MaxFactor)
		}
	}
	return nil
}

func validateLedgerEdit(edit LedgerEdit) error {
	if edit.FcvManual != nil && !positiveFactor(*edit.FcvManual) {
		return fmt.Errorf("%w: manual FCV must be within (0, %.0f]", ErrValidation, MaxFactor)
	}
	if edit.Fe != nil && !positiveFactor(*edit.Fe) {
		return fmt.Errorf("%w: FE must be within (0, %.0f]", ErrValidation, MaxFactor)
	}
	for _, pct := range []*float64{edit.TotalBswPct, edit.EmulsionBswPct} {
		if pct != nil && !within(*pct, 0, 100) {
			return fmt.Errorf("%w: BSW must be within [0, 100]", ErrValidation)
		}
	}
	if edit.InitialStockM3 != nil && !within(*edit.InitialStockM3, -MaxStockM3, MaxStockM3) {
		return fmt.Errorf("%w: initial stock is out of range", ErrValidation)
	}
	return nil
}

// within is false for NaN and for values outside [lo, hi].
func within(v, lo, hi float64) bool {
	return v >= lo && v <= hi
}

func positiveFactor(v float64) bool {
	return v > 0 && v <= MaxFactor
}

// validateCalibration sorts rows by height and rejects out-of-range or duplicate entries.
func validateCalibration(rows []models.CalibrationRow) ([]models.CalibrationRow, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: calibration table is empty", ErrValidation)
	}
	sorted := make([]models.CalibrationRow, len(rows))
	copy(sorted, rows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].HeightMm < sorted[j].HeightMm })
	for i, r := range sorted {
		if !within(r.HeightMm, 0, MaxLevelMm) || !within(r.VolumeM3, 0, MaxStockM3) {
			return nil, fmt.Errorf("%w: height or volume out of range at %.1f mm", ErrValidation, r.HeightMm)
		}
		if r.Fcv != nil && !positiveFactor(*r.Fcv) {
			return nil, fmt.Errorf("%w: fcv must be within (0, %.0f] at %.1f mm", ErrValidation, MaxFactor, r.HeightMm)
		}
		if i > 0 && r.HeightMm == sorted[i-1].HeightMm {
			return nil, fmt.Errorf("%w: duplicate height %.1f mm", ErrValidation, r.HeightMm)
		}
	}
	return sorted, nil
}
