package competition

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Criterion is a ranked metric. Direction is HIGHER, LOWER or empty
// (unranked). Kind is resolved from the name when the criterion is loaded.
type Criterion struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name       string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	Direction  string    `gorm:"column:direction" json:"direction,omitempty"`
	Expurgable bool      `gorm:"column:expurgable;not null;default:false" json:"expurgable"`
	Precision  int       `gorm:"column:precision;not null;default:2" json:"precision"`
	Kind       string    `gorm:"-" json:"kind,omitempty"`
	Active     bool      `gorm:"column:active;not null;index" json:"active"`
	CreatedAt  time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Criterion) TableName() string { return "criterion" }

func (c *Criterion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
