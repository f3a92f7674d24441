package competition

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HolidayClassification must be classified (non-empty) before forecasting.
type HolidayClassification struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	PeriodID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_holiday_period_date,priority:1" json:"period_id"`
	Date           time.Time `gorm:"column:date;type:date;not null;uniqueIndex:idx_holiday_period_date,priority:2" json:"date"`
	Classification string    `gorm:"column:classification" json:"classification,omitempty"`
	Description    string    `gorm:"column:description" json:"description,omitempty"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (HolidayClassification) TableName() string { return "holiday_classification" }

func (h *HolidayClassification) BeforeCreate(tx *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
