package competition

import (
	"gorm.io/gorm"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type SectorRepo interface {
	Create(dbc dbctx.Context, sectors []*types.Sector) ([]*types.Sector, error)
	ListActive(dbc dbctx.Context) ([]*types.Sector, error)
}

type sectorRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSectorRepo(db *gorm.DB, baseLog *logger.Logger) SectorRepo {
	return &sectorRepo{db: db, log: baseLog.With("repo", "SectorRepo")}
}

func (r *sectorRepo) Create(dbc dbctx.Context, sectors []*types.Sector) ([]*types.Sector, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(sectors) == 0 {
		return []*types.Sector{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&sectors).Error; err != nil {
		return nil, err
	}
	return sectors, nil
}

func (r *sectorRepo) ListActive(dbc dbctx.Context) ([]*types.Sector, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.Sector
	if err := transaction.WithContext(dbc.Ctx).
		Where("active = ?", true).
		Order("name ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
