package repository

import (
	"context"
	"errors"

	"earnings-call-engine/internal/engine/dto"
	"earnings-call-engine/internal/entity"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReportRepository defines the interface for the report cache table.
type ReportRepository interface {
	FindByKey(ctx context.Context, key dto.ReportKey) (*entity.Report, error)
	CreateIfAbsent(ctx context.Context, report *entity.Report) (bool, error)
}

// NewReportRepository creates a new GORM-based report repository.
func NewReportRepository(db *gorm.DB) ReportRepository {
	return &reportRepository{db: db}
}

type reportRepository struct {
	db *gorm.DB
}

// FindByKey returns the cached report for the key, or nil when there is none.
func (r *reportRepository) FindByKey(ctx context.Context, key dto.ReportKey) (*entity.Report, error) {
	var report entity.Report
	err := r.db.WithContext(ctx).
		Where("ticker = ? AND quarter = ? AND prev_quarter = ?", key.Ticker, key.Quarter, key.PrevQuarter).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &report, nil
}

// CreateIfAbsent inserts the report unless a row with the same key exists.
// It reports false when another writer got there first.
func (r *reportRepository) CreateIfAbsent(ctx context.Context, report *entity.Report) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "ticker"}, {Name: "quarter"}, {Name: "prev_quarter"}},
			DoNothing: true,
		}).
		Create(report)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
