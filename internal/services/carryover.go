package services

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/forecast"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

// PriorBalance is last period's approved target and realized spend for one
// sector and cost category.
type PriorBalance struct {
	ApprovedTarget *float64 `json:"approved_target,omitempty"`
	RealizedSpend  *float64 `json:"realized_spend,omitempty"`
}

// CarryoverLookup reads the previous period's balances for the cost goals.
type CarryoverLookup interface {
	PriorBalances(dbc dbctx.Context, period *types.Period, criteria map[forecast.Category]uuid.UUID) (map[uuid.UUID]map[forecast.Category]PriorBalance, error)
}

type carryoverLookup struct {
	db      *gorm.DB
	log     *logger.Logger
	periods repos.PeriodRepo
	entries repos.PerformanceEntryRepo
}

func NewCarryoverLookup(db *gorm.DB, baseLog *logger.Logger, periods repos.PeriodRepo, entries repos.PerformanceEntryRepo) CarryoverLookup {
	return &carryoverLookup{
		db:      db,
		log:     baseLog.With("service", "CarryoverLookup"),
		periods: periods,
		entries: entries,
	}
}

// PriorBalances is keyed by sector. A missing previous period yields an
// empty map; the forecast then carries nothing over.
func (s *carryoverLookup) PriorBalances(dbc dbctx.Context, period *types.Period, criteria map[forecast.Category]uuid.UUID) (map[uuid.UUID]map[forecast.Category]PriorBalance, error) {
	out := map[uuid.UUID]map[forecast.Category]PriorBalance{}
	if period == nil || len(criteria) == 0 {
		return out, nil
	}
	year, month := period.Previous()
	prev, err := s.periods.GetByYearMonth(dbc, year, int(month))
	if err != nil {
		return nil, err
	}
	if prev == nil {
		s.log.Debug("No previous period, carryover is zero", "period", period.Label())
		return out, nil
	}
	entries, err := s.entries.ListByPeriod(dbc, prev.ID)
	if err != nil {
		return nil, err
	}

	categoryOf := make(map[uuid.UUID]forecast.Category, len(criteria))
	for cat, id := range criteria {
		categoryOf[id] = cat
	}
	shared := map[forecast.Category]*float64{}
	for _, e := range entries {
		cat, ok := categoryOf[e.CriterionID]
		if !ok {
			continue
		}
		if e.SectorID == nil {
			shared[cat] = e.Target
			continue
		}
		m := out[*e.SectorID]
		if m == nil {
			m = map[forecast.Category]PriorBalance{}
			out[*e.SectorID] = m
		}
		m[cat] = PriorBalance{ApprovedTarget: e.Target, RealizedSpend: e.Realized}
	}
	for _, m := range out {
		for cat, bal := range m {
			if bal.ApprovedTarget == nil && shared[cat] != nil {
				bal.ApprovedTarget = shared[cat]
				m[cat] = bal
			}
		}
	}
	return out, nil
}
