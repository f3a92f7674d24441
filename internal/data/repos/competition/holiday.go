package competition

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type HolidayRepo interface {
	Create(dbc dbctx.Context, rows []*types.HolidayClassification) ([]*types.HolidayClassification, error)
	ListByPeriod(dbc dbctx.Context, periodID uuid.UUID) ([]*types.HolidayClassification, error)
	CountUnclassified(dbc dbctx.Context, periodID uuid.UUID) (int64, error)
}

type holidayRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewHolidayRepo(db *gorm.DB, baseLog *logger.Logger) HolidayRepo {
	return &holidayRepo{db: db, log: baseLog.With("repo", "HolidayRepo")}
}

func (r *holidayRepo) Create(dbc dbctx.Context, rows []*types.HolidayClassification) ([]*types.HolidayClassification, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(rows) == 0 {
		return []*types.HolidayClassification{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *holidayRepo) ListByPeriod(dbc dbctx.Context, periodID uuid.UUID) ([]*types.HolidayClassification, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.HolidayClassification
	if periodID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("period_id = ?", periodID).
		Order("date ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *holidayRepo) CountUnclassified(dbc dbctx.Context, periodID uuid.UUID) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.HolidayClassification{}).
		Where("period_id = ? AND (classification IS NULL OR classification = '')", periodID).
		Count(&n).Error
	return n, err
}
