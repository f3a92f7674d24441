package competition

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Sector struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name string    `gorm:"column:name;not null;uniqueIndex" json:"name"`
	// UpstreamCode maps the sector to its identifier in the historical source.
	UpstreamCode string    `gorm:"column:upstream_code;index" json:"upstream_code,omitempty"`
	Active       bool      `gorm:"column:active;not null;index" json:"active"`
	CreatedAt    time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (Sector) TableName() string { return "sector" }

func (s *Sector) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

func (s Sector) Mapped() bool { return strings.TrimSpace(s.UpstreamCode) != "" }
