package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tankcontrol/internal/models"
)

const dateLayout = "2006-01-02"

// GormStore implements Store on top of gorm (postgres in production).
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an opened gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *GormStore) Transaction(ctx context.Context, fn func(Store) error) error {
	return s.conn(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) CreateTank(ctx context.Context, tank *models.Tank) error {
	return duplicate(s.conn(ctx).Create(tank).Error)
}

func (s *GormStore) GetTank(ctx context.Context, id uint) (*models.Tank, error) {
	var tank models.Tank
	if err := s.conn(ctx).First(&tank, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &tank, nil
}

func (s *GormStore) ListTanks(ctx context.Context, onlyActive bool) ([]models.Tank, error) {
	var tanks []models.Tank
	query := s.conn(ctx).Order("id asc")
	if onlyActive {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&tanks).Error; err != nil {
		return nil, err
	}
	return tanks, nil
}

func (s *GormStore) ListCalibration(ctx context.Context, tankID uint) ([]models.CalibrationRow, error) {
	var rows []models.CalibrationRow
	if err := s.conn(ctx).Where("tank_id = ?", tankID).Order("height_mm asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ReplaceCalibration swaps the whole table. Callers wrap it in Transaction so
// the table is never observed half written.
func (s *GormStore) ReplaceCalibration(ctx context.Context, tankID uint, rows []models.CalibrationRow) error {
	db := s.conn(ctx)
	if err := db.Where("tank_id = ?", tankID).Delete(&models.CalibrationRow{}).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].ID = 0
		rows[i].TankID = tankID
	}
	return db.CreateInBatches(rows, 500).Error
}

func (s *GormStore) GetOperation(ctx context.Context, id uint) (*models.TankOperation, error) {
	var op models.TankOperation
	if err := s.conn(ctx).First(&op, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &op, nil
}

func (s *GormStore) SaveOperation(ctx context.Context, op *models.TankOperation) error {
	return s.conn(ctx).Save(op).Error
}

func (s *GormStore) DeleteOperation(ctx context.Context, id uint) error {
	result := s.conn(ctx).Delete(&models.TankOperation{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListOperationsInWindow(ctx context.Context, tankID uint, start, end time.Time) ([]models.TankOperation, error) {
	var ops []models.TankOperation
	if err := s.conn(ctx).
		Where("tank_id = ? AND end_time BETWEEN ? AND ?", tankID, start, end).
		Order("end_time asc, id asc").
		Find(&ops).Error; err != nil {
		return nil, err
	}
	return ops, nil
}

func (s *GormStore) LinkOperations(ctx context.Context, reportID uint, operationIDs []uint) error {
	if len(operationIDs) == 0 {
		return nil
	}
	return s.conn(ctx).Model(&models.TankOperation{}).
		Where("id IN ?", operationIDs).
		Update("daily_report_id", reportID).Error
}

func (s *GormStore) GetReport(ctx context.Context, id uint) (*models.DailyProductionReport, error) {
	var report models.DailyProductionReport
	if err := s.conn(ctx).First(&report, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

func (s *GormStore) FindReportContaining(ctx context.Context, tankID uint, ts time.Time) (*models.DailyProductionReport, error) {
	var report models.DailyProductionReport
	err := s.conn(ctx).
		Where("tank_id = ? AND start_datetime <= ? AND end_datetime >= ?", tankID, ts, ts).
		First(&report).Error
	return optional(&report, err)
}

func (s *GormStore) FindReportByDate(ctx context.Context, tankID uint, reportDate time.Time) (*models.DailyProductionReport, error) {
	var report models.DailyProductionReport
	err := s.conn(ctx).
		Where("tank_id = ? AND report_date = ?", tankID, reportDate.Format(dateLayout)).
		First(&report).Error
	return optional(&report, err)
}

func (s *GormStore) FindPreviousReport(ctx context.Context, tankID uint, reportDate time.Time) (*models.DailyProductionReport, error) {
	var report models.DailyProductionReport
	err := s.conn(ctx).
		Where("tank_id = ? AND report_date < ?", tankID, reportDate.Format(dateLayout)).
		Order("report_date desc").
		First(&report).Error
	return optional(&report, err)
}

func (s *GormStore) ListReports(ctx context.Context, filter ReportFilter) ([]models.DailyProductionReport, int64, error) {
	query := s.conn(ctx).Model(&models.DailyProductionReport{}).Where("tank_id = ?", filter.TankID)
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("report_date desc").Offset(filter.Offset)
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	var reports []models.DailyProductionReport
	if err := query.Find(&reports).Error; err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (s *GormStore) SaveReport(ctx context.Context, report *models.DailyProductionReport) error {
	return duplicate(s.conn(ctx).Save(report).Error)
}

func (s *GormStore) ListLedgerRows(ctx context.Context, tankID uint) ([]models.LedgerRow, error) {
	var rows []models.LedgerRow
	if err := s.conn(ctx).Where("tank_id = ?", tankID).
		Order("d_data_fim_periodo asc, a_data asc").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// SaveLedgerRow upserts on (tank_id, a_data).
func (s *GormStore) SaveLedgerRow(ctx context.Context, row *models.LedgerRow) error {
	if row.ID != 0 {
		return s.conn(ctx).Save(row).Error
	}
	return s.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tank_id"}, {Name: "a_data"}},
		UpdateAll: true,
	}).Create(row).Error
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// duplicate needs gorm.Config.TranslateError so unique violations surface as ErrDuplicatedKey.
func duplicate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

func optional[T any](v *T, err error) (*T, error) {
	if err == nil {
		return v, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, err
}
