package competition

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PerformanceEntry holds realized and target for one (period, criterion,
// sector). A nil SectorID is a sector-agnostic target. Realized is written by
// the ETL; Target is the projection maintained by the parameter store.
type PerformanceEntry struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	PeriodID    uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_perf_entry_key,priority:1" json:"period_id"`
	CriterionID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:idx_perf_entry_key,priority:2" json:"criterion_id"`
	SectorID    *uuid.UUID `gorm:"type:uuid;uniqueIndex:idx_perf_entry_key,priority:3" json:"sector_id,omitempty"`
	Realized    *float64   `gorm:"column:realized;type:numeric(18,4)" json:"realized,omitempty"`
	Target      *float64   `gorm:"column:target;type:numeric(18,4)" json:"target,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (PerformanceEntry) TableName() string { return "performance_entry" }

func (e *PerformanceEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

// CriterionScore is derived; it is replaced wholesale on every ranking run.
type CriterionScore struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PeriodID    uuid.UUID `gorm:"type:uuid;not null;index:idx_criterion_score_period" json:"period_id"`
	SectorID    uuid.UUID `gorm:"type:uuid;not null;index" json:"sector_id"`
	CriterionID uuid.UUID `gorm:"type:uuid;not null;index" json:"criterion_id"`
	Realized    *float64  `gorm:"column:realized;type:numeric(18,4)" json:"realized,omitempty"`
	Target      *float64  `gorm:"column:target;type:numeric(18,4)" json:"target,omitempty"`
	Percent     *float64  `gorm:"column:percent;type:numeric(10,4)" json:"percent,omitempty"`
	Rank        *int      `gorm:"column:rank" json:"rank,omitempty"`
	Score       float64   `gorm:"column:score;type:numeric(6,2);not null" json:"score"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (CriterionScore) TableName() string { return "criterion_score" }

func (s *CriterionScore) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// FinalRanking is derived; it is replaced wholesale on every ranking run.
type FinalRanking struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PeriodID   uuid.UUID `gorm:"type:uuid;not null;index:idx_final_ranking_period" json:"period_id"`
	SectorID   uuid.UUID `gorm:"type:uuid;not null;index" json:"sector_id"`
	TotalScore float64   `gorm:"column:total_score;type:numeric(8,2);not null" json:"total_score"`
	Rank       int       `gorm:"column:rank;not null" json:"rank"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (FinalRanking) TableName() string { return "final_ranking" }

func (f *FinalRanking) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
