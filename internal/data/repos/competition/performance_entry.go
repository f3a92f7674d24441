package competition

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type PerformanceEntryRepo interface {
	Create(dbc dbctx.Context, entries []*types.PerformanceEntry) ([]*types.PerformanceEntry, error)
	ListByPeriod(dbc dbctx.Context, periodID uuid.UUID) ([]*types.PerformanceEntry, error)
	Find(dbc dbctx.Context, periodID, criterionID uuid.UUID, sectorID *uuid.UUID) (*types.PerformanceEntry, error)
	// SetTarget writes the target projection for one key, updating the row
	// in place when it exists and inserting it otherwise.
	SetTarget(dbc dbctx.Context, periodID, criterionID uuid.UUID, sectorID *uuid.UUID, target float64) (*types.PerformanceEntry, error)
}

type performanceEntryRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPerformanceEntryRepo(db *gorm.DB, baseLog *logger.Logger) PerformanceEntryRepo {
	return &performanceEntryRepo{db: db, log: baseLog.With("repo", "PerformanceEntryRepo")}
}

func (r *performanceEntryRepo) Create(dbc dbctx.Context, entries []*types.PerformanceEntry) ([]*types.PerformanceEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	if len(entries) == 0 {
		return []*types.PerformanceEntry{}, nil
	}
	if err := transaction.WithContext(dbc.Ctx).Create(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *performanceEntryRepo) ListByPeriod(dbc dbctx.Context, periodID uuid.UUID) ([]*types.PerformanceEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	var out []*types.PerformanceEntry
	if periodID == uuid.Nil {
		return out, nil
	}
	if err := transaction.WithContext(dbc.Ctx).
		Where("period_id = ?", periodID).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *performanceEntryRepo) Find(dbc dbctx.Context, periodID, criterionID uuid.UUID, sectorID *uuid.UUID) (*types.PerformanceEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	return findEntry(transaction.WithContext(dbc.Ctx), periodID, criterionID, sectorID, false)
}

func (r *performanceEntryRepo) SetTarget(dbc dbctx.Context, periodID, criterionID uuid.UUID, sectorID *uuid.UUID, target float64) (*types.PerformanceEntry, error) {
	transaction := dbc.Tx
	if transaction == nil {
		transaction = r.db
	}
	q := transaction.WithContext(dbc.Ctx)
	existing, err := findEntry(q, periodID, criterionID, sectorID, true)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if err := q.Model(&types.PerformanceEntry{}).
			Where("id = ?", existing.ID).
			Updates(map[string]interface{}{"target": target, "updated_at": time.Now()}).Error; err != nil {
			return nil, err
		}
		existing.Target = &target
		return existing, nil
	}
	entry := &types.PerformanceEntry{
		PeriodID:    periodID,
		CriterionID: criterionID,
		SectorID:    sectorID,
		Target:      &target,
	}
	if err := q.Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

// findEntry matches a NULL sector with IS NULL; "= NULL" never matches.
func findEntry(q *gorm.DB, periodID, criterionID uuid.UUID, sectorID *uuid.UUID, lock bool) (*types.PerformanceEntry, error) {
	q = q.Where("period_id = ? AND criterion_id = ?", periodID, criterionID)
	if sectorID == nil {
		q = q.Where("sector_id IS NULL")
	} else {
		q = q.Where("sector_id = ?", *sectorID)
	}
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var e types.PerformanceEntry
	err := q.First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
