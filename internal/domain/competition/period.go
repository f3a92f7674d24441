package competition

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PeriodStatus string

const (
	PeriodPlanning PeriodStatus = "PLANNING"
	PeriodActive   PeriodStatus = "ACTIVE"
	PeriodClosed   PeriodStatus = "CLOSED"
)

// CanTransitionTo allows only PLANNING -> ACTIVE -> CLOSED.
func (s PeriodStatus) CanTransitionTo(to PeriodStatus) bool {
	switch s {
	case PeriodPlanning:
		return to == PeriodActive
	case PeriodActive:
		return to == PeriodClosed
	default:
		return false
	}
}

// Period is one competition month.
type Period struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Year      int       `gorm:"column:year;not null;uniqueIndex:idx_period_year_month,priority:1" json:"year"`
	Month     int       `gorm:"column:month;not null;uniqueIndex:idx_period_year_month,priority:2" json:"month"`
	Status    string    `gorm:"column:status;not null;index" json:"status"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Period) TableName() string { return "competition_period" }

func (p *Period) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = string(PeriodPlanning)
	}
	return nil
}

func (p Period) State() PeriodStatus { return PeriodStatus(p.Status) }

// Start is midnight UTC on the first day of the period.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant after the period.
func (p Period) End() time.Time { return p.Start().AddDate(0, 1, 0) }

// Previous returns the calendar month before this one.
func (p Period) Previous() (int, time.Month) {
	prev := p.Start().AddDate(0, -1, 0)
	return prev.Year(), prev.Month()
}

func (p Period) Label() string { return fmt.Sprintf("%04d-%02d", p.Year, p.Month) }
