package competition

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// ScoreRepo owns the derived ranking tables. Writes always replace a whole
// period.
type ScoreRepo interface {
	ReplaceForPeriod(dbc dbctx.Context, periodID uuid.UUID, scores []*types.CriterionScore, final []*types.FinalRanking) error
	ListScores(dbc dbctx.Context, periodID uuid.UUID) ([]*types.CriterionScore, error)
	ListFinal(dbc dbctx.Context, periodID uuid.UUID) ([]*types.FinalRanking, error)
}

type scoreRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewScoreRepo(db *gorm.DB, baseLog *logger.Logger) ScoreRepo {
	return &scoreRepo{db: db, log: baseLog.With("repo", "ScoreRepo")}
}

func (r *scoreRepo) ReplaceForPeriod(dbc dbctx.Context, periodID uuid.UUID, scores []*types.CriterionScore, final []*types.FinalRanking) error {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(dbc.Ctx).Transaction(func(txx *gorm.DB) error {
		if err := txx.Where("period_id = ?", periodID).Delete(&types.CriterionScore{}).Error; err != nil {
			return err
		}
		if err := txx.Where("period_id = ?", periodID).Delete(&types.FinalRanking{}).Error; err != nil {
			return err
		}
		if len(scores) > 0 {
			if err := txx.CreateInBatches(&scores, 200).Error; err != nil {
				return err
			}
		}
		if len(final) > 0 {
			if err := txx.CreateInBatches(&final, 200).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *scoreRepo) ListScores(dbc dbctx.Context, periodID uuid.UUID) ([]*types.CriterionScore, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.CriterionScore
	if err := transaction.WithContext(dbc.Ctx).
		Where("period_id = ?", periodID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *scoreRepo) ListFinal(dbc dbctx.Context, periodID uuid.UUID) ([]*types.FinalRanking, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.FinalRanking
	if err := transaction.WithContext(dbc.Ctx).
		Where("period_id = ?", periodID).
		Order("rank ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
