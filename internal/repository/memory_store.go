package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"tankcontrol/internal/models"
)

// MemoryStore is an in-process Store used by tests and local runs without postgres.
// Transactions are serialised and restored from a snapshot on error.
type MemoryStore struct {
	state *memoryState
	inTx  bool
}

type memoryState struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	data memoryData
}

type memoryData struct {
	seq         uint
	tanks       map[uint]models.Tank
	calibration map[uint][]models.CalibrationRow
	operations  map[uint]models.TankOperation
	reports     map[uint]models.DailyProductionReport
	ledger      map[uint]models.LedgerRow
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memoryState{data: memoryData{
		tanks:       make(map[uint]models.Tank),
		calibration: make(map[uint][]models.CalibrationRow),
		operations:  make(map[uint]models.TankOperation),
		reports:     make(map[uint]models.DailyProductionReport),
		ledger:      make(map[uint]models.LedgerRow),
	}}}
}

func (d memoryData) clone() memoryData {
	c := memoryData{
		seq:         d.seq,
		tanks:       make(map[uint]models.Tank, len(d.tanks)),
		calibration: make(map[uint][]models.CalibrationRow, len(d.calibration)),
		operations:  make(map[uint]models.TankOperation, len(d.operations)),
		reports:     make(map[uint]models.DailyProductionReport, len(d.reports)),
		ledger:      make(map[uint]models.LedgerRow, len(d.ledger)),
	}
	for k, v := range d.tanks {
		c.tanks[k] = v
	}
	for k, v := range d.calibration {
		c.calibration[k] = append([]models.CalibrationRow(nil), v...)
	}
	for k, v := range d.operations {
		c.operations[k] = v
	}
	for k, v := range d.reports {
		c.reports[k] = v
	}
	for k, v := range d.ledger {
		c.ledger[k] = v
	}
	return c
}

func (s *MemoryStore) nextID() uint {
	s.state.data.seq++
	return s.state.data.seq
}

func (s *MemoryStore) Transaction(ctx context.Context, fn func(Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.state.txMu.Lock()
	defer s.state.txMu.Unlock()

	s.state.mu.RLock()
	snapshot := s.state.data.clone()
	s.state.mu.RUnlock()

	if err := fn(&MemoryStore{state: s.state, inTx: true}); err != nil {
		s.state.mu.Lock()
		s.state.data = snapshot
		s.state.mu.Unlock()
		return err
	}
	return nil
}

func (s *MemoryStore) CreateTank(ctx context.Context, tank *models.Tank) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	for _, existing := range s.state.data.tanks {
		if existing.Code == tank.Code {
			return ErrDuplicate
		}
	}
	tank.ID = s.nextID()
	now := time.Now()
	tank.CreatedAt, tank.UpdatedAt = now, now
	s.state.data.tanks[tank.ID] = *tank
	return nil
}

func (s *MemoryStore) GetTank(ctx context.Context, id uint) (*models.Tank, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	tank, ok := s.state.data.tanks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &tank, nil
}

func (s *MemoryStore) ListTanks(ctx context.Context, onlyActive bool) ([]models.Tank, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	tanks := make([]models.Tank, 0, len(s.state.data.tanks))
	for _, t := range s.state.data.tanks {
		if onlyActive && !t.IsActive {
			continue
		}
		tanks = append(tanks, t)
	}
	sort.Slice(tanks, func(i, j int) bool { return tanks[i].ID < tanks[j].ID })
	return tanks, nil
}

func (s *MemoryStore) ListCalibration(ctx context.Context, tankID uint) ([]models.CalibrationRow, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	rows := append([]models.CalibrationRow(nil), s.state.data.calibration[tankID]...)
	sort.Slice(rows, func(i, j int) bool { return rows[i].HeightMm < rows[j].HeightMm })
	return rows, nil
}

func (s *MemoryStore) ReplaceCalibration(ctx context.Context, tankID uint, rows []models.CalibrationRow) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	stored := make([]models.CalibrationRow, len(rows))
	for i, r := range rows {
		r.ID = s.nextID()
		r.TankID = tankID
		r.CreatedAt = time.Now()
		stored[i] = r
		rows[i] = r
	}
	s.state.data.calibration[tankID] = stored
	return nil
}

func (s *MemoryStore) GetOperation(ctx context.Context, id uint) (*models.TankOperation, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	op, ok := s.state.data.operations[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &op, nil
}

func (s *MemoryStore) SaveOperation(ctx context.Context, op *models.TankOperation) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	now := time.Now()
	if op.ID == 0 {
		op.ID = s.nextID()
		op.CreatedAt = now
	}
	op.UpdatedAt = now
	s.state.data.operations[op.ID] = *op
	return nil
}

func (s *MemoryStore) DeleteOperation(ctx context.Context, id uint) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	if _, ok := s.state.data.operations[id]; !ok {
		return ErrNotFound
	}
	delete(s.state.data.operations, id)
	return nil
}

func (s *MemoryStore) ListOperationsInWindow(ctx context.Context, tankID uint, start, end time.Time) ([]models.TankOperation, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var ops []models.TankOperation
	for _, op := range s.state.data.operations {
		if op.TankID != tankID || op.EndTime.Before(start) || op.EndTime.After(end) {
			continue
		}
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].EndTime.Equal(ops[j].EndTime) {
			return ops[i].ID < ops[j].ID
		}
		return ops[i].EndTime.Before(ops[j].EndTime)
	})
	return ops, nil
}

func (s *MemoryStore) LinkOperations(ctx context.Context, reportID uint, operationIDs []uint) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	for _, id := range operationIDs {
		op, ok := s.state.data.operations[id]
		if !ok {
			continue
		}
		rid := reportID
		op.DailyReportID = &rid
		s.state.data.operations[id] = op
	}
	return nil
}

func (s *MemoryStore) GetReport(ctx context.Context, id uint) (*models.DailyProductionReport, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	report, ok := s.state.data.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &report, nil
}

func (s *MemoryStore) FindReportContaining(ctx context.Context, tankID uint, ts time.Time) (*models.DailyProductionReport, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	for _, r := range s.state.data.reports {
		if r.TankID == tankID && r.Contains(ts) {
			report := r
			return &report, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindReportByDate(ctx context.Context, tankID uint, reportDate time.Time) (*models.DailyProductionReport, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	key := reportDate.Format(dateLayout)
	for _, r := range s.state.data.reports {
		if r.TankID == tankID && r.ReportDate.Format(dateLayout) == key {
			report := r
			return &report, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) FindPreviousReport(ctx context.Context, tankID uint, reportDate time.Time) (*models.DailyProductionReport, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	key := reportDate.Format(dateLayout)
	var found *models.DailyProductionReport
	for _, r := range s.state.data.reports {
		d := r.ReportDate.Format(dateLayout)
		if r.TankID != tankID || d >= key {
			continue
		}
		if found == nil || d > found.ReportDate.Format(dateLayout) {
			report := r
			found = &report
		}
	}
	return found, nil
}

func (s *MemoryStore) ListReports(ctx context.Context, filter ReportFilter) ([]models.DailyProductionReport, int64, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var reports []models.DailyProductionReport
	for _, r := range s.state.data.reports {
		if r.TankID != filter.TankID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		reports = append(reports, r)
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].ReportDate.After(reports[j].ReportDate) })

	total := int64(len(reports))
	if filter.Offset >= len(reports) {
		return []models.DailyProductionReport{}, total, nil
	}
	reports = reports[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(reports) {
		reports = reports[:filter.Limit]
	}
	return reports, total, nil
}

func (s *MemoryStore) SaveReport(ctx context.Context, report *models.DailyProductionReport) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	now := time.Now()
	if report.ID == 0 {
		key := report.ReportDate.Format(dateLayout)
		for _, r := range s.state.data.reports {
			if r.TankID == report.TankID && r.ReportDate.Format(dateLayout) == key {
				return ErrDuplicate
			}
		}
		report.ID = s.nextID()
		report.CreatedAt = now
	}
	report.UpdatedAt = now
	s.state.data.reports[report.ID] = *report
	return nil
}

func (s *MemoryStore) ListLedgerRows(ctx context.Context, tankID uint) ([]models.LedgerRow, error) {
	s.state.mu.RLock()
	defer s.state.mu.RUnlock()
	var rows []models.LedgerRow
	for _, r := range s.state.data.ledger {
		if r.TankID == tankID {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].PeriodEnd.Equal(rows[j].PeriodEnd) {
			return rows[i].Date.Before(rows[j].Date)
		}
		return rows[i].PeriodEnd.Before(rows[j].PeriodEnd)
	})
	return rows, nil
}

func (s *MemoryStore) SaveLedgerRow(ctx context.Context, row *models.LedgerRow) error {
	s.state.mu.Lock()
	defer s.state.mu.Unlock()
	now := time.Now()
	if row.ID == 0 {
		key := row.Date.Format(dateLayout)
		for id, r := range s.state.data.ledger {
			if r.TankID == row.TankID && r.Date.Format(dateLayout) == key {
				row.ID = id
				row.CreatedAt = r.CreatedAt
				break
			}
		}
	}
	if row.ID == 0 {
		row.ID = s.nextID()
		row.CreatedAt = now
	}
	row.UpdatedAt = now
	s.state.data.ledger[row.ID] = *row
	return nil
}
