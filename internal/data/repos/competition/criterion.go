package competition

import (
	"gorm.io/gorm"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type CriterionRepo interface {
	Create(dbc dbctx.Context, criteria []*types.Criterion) ([]*types.Criterion, error)
	ListActive(dbc dbctx.Context) ([]*types.Criterion, error)
}

type criterionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCriterionRepo(db *gorm.DB, baseLog *logger.Logger) CriterionRepo {
	return &criterionRepo{db: db, log: baseLog.With("repo", "CriterionRepo")}
}

func (r *criterionRepo) Create(dbc dbctx.Context, criteria []*types.Criterion) ([]*types.Criterion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(criteria) == 0 {
		return []*types.Criterion{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&criteria).Error; err != nil {
		return nil, err
	}
	return criteria, nil
}

// ListActive returns criteria without Kind; callers resolve it from the
// ranking rules.
func (r *criterionRepo) ListActive(dbc dbctx.Context) ([]*types.Criterion, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Criterion
	if err := transaction.WithContext(dbc.Ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
