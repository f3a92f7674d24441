package competition

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type PeriodRepo interface {
	Create(dbc dbctx.Context, periods []*types.Period) ([]*types.Period, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Period, error)
	GetByYearMonth(dbc dbctx.Context, year, month int) (*types.Period, error)
	// LockByID reads the period holding a row lock until the transaction ends.
	LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Period, error)
	UpdateStatus(dbc dbctx.Context, id uuid.UUID, from, to types.PeriodStatus) (bool, error)
}

type periodRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPeriodRepo(db *gorm.DB, baseLog *logger.Logger) PeriodRepo {
	return &periodRepo{db: db, log: baseLog.With("repo", "PeriodRepo")}
}

func (r *periodRepo) Create(dbc dbctx.Context, periods []*types.Period) ([]*types.Period, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(periods) == 0 {
		return []*types.Period{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&periods).Error; err != nil {
		return nil, err
	}
	return periods, nil
}

func (r *periodRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.Period, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return firstPeriod(transaction.WithContext(dbc.Ctx).Where("id = ?", id))
}

func (r *periodRepo) GetByYearMonth(dbc dbctx.Context, year, month int) (*types.Period, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return firstPeriod(transaction.WithContext(dbc.Ctx).Where("year = ? AND month = ?", year, month))
}

func (r *periodRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*types.Period, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return firstPeriod(transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id))
}

func (r *periodRepo) UpdateStatus(dbc dbctx.Context, id uuid.UUID, from, to types.PeriodStatus) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.Period{}).
		Where("id = ? AND status = ?", id, string(from)).
		Update("status", string(to))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// firstPeriod returns nil, nil when nothing matches.
func firstPeriod(q *gorm.DB) (*types.Period, error) {
	var p types.Period
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
