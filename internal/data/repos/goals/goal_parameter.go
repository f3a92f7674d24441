package goals

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type GoalParameterRepo interface {
	Create(dbc dbctx.Context, p *types.GoalParameter) (*types.GoalParameter, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GoalParameter, error)
	// GetOpen returns the version with no end marker, or nil.
	GetOpen(dbc dbctx.Context, identityKey string) (*types.GoalParameter, error)
	// LockOpen is GetOpen holding a row lock.
	LockOpen(dbc dbctx.Context, identityKey string) (*types.GoalParameter, error)
	MaxVersion(dbc dbctx.Context, identityKey string) (int, error)
	// Close sets the end marker; false when the version was already closed.
	Close(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error)
	History(dbc dbctx.Context, identityKey string) ([]*types.GoalParameter, error)
	CountOpen(dbc dbctx.Context, identityKey string) (int64, error)
}

type goalParameterRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewGoalParameterRepo(db *gorm.DB, baseLog *logger.Logger) GoalParameterRepo {
	return &goalParameterRepo{db: db, log: baseLog.With("repo", "GoalParameterRepo")}
}

func (r *goalParameterRepo) Create(dbc dbctx.Context, p *types.GoalParameter) (*types.GoalParameter, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if err := transaction.WithContext(dbc.Ctx).Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (r *goalParameterRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*types.GoalParameter, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return first(transaction.WithContext(dbc.Ctx).Where("id = ?", id))
}

func (r *goalParameterRepo) GetOpen(dbc dbctx.Context, identityKey string) (*types.GoalParameter, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return first(transaction.WithContext(dbc.Ctx).
		Where("identity_key = ? AND effective_to IS NULL", identityKey).
		Order("version DESC"))
}

func (r *goalParameterRepo) LockOpen(dbc dbctx.Context, identityKey string) (*types.GoalParameter, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return first(transaction.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("identity_key = ? AND effective_to IS NULL", identityKey).
		Order("version DESC"))
}

func (r *goalParameterRepo) MaxVersion(dbc dbctx.Context, identityKey string) (int, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var max sql.NullInt64
	row := transaction.WithContext(dbc.Ctx).
		Model(&types.GoalParameter{}).
		Where("identity_key = ?", identityKey).
		Select("MAX(version)").
		Row()
	if err := row.Scan(&max); err != nil {
		return 0, err
	}
	return int(max.Int64), nil
}

func (r *goalParameterRepo) Close(dbc dbctx.Context, id uuid.UUID, at time.Time) (bool, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	res := transaction.WithContext(dbc.Ctx).
		Model(&types.GoalParameter{}).
		Where("id = ? AND effective_to IS NULL", id).
		Update("effective_to", at)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *goalParameterRepo) History(dbc dbctx.Context, identityKey string) ([]*types.GoalParameter, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.GoalParameter
	if err := transaction.WithContext(dbc.Ctx).
		Where("identity_key = ?", identityKey).
		Order("version ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *goalParameterRepo) CountOpen(dbc dbctx.Context, identityKey string) (int64, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var n int64
	err := transaction.WithContext(dbc.Ctx).
		Model(&types.GoalParameter{}).
		Where("identity_key = ? AND effective_to IS NULL", identityKey).
		Count(&n).Error
	return n, err
}

func first(q *gorm.DB) (*types.GoalParameter, error) {
	var p types.GoalParameter
	err := q.First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}
