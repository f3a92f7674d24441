package goals

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GoalParameter is one version of a named configuration value or of a
// (criterion, sector, period) goal. At most one version per IdentityKey has
// a nil EffectiveTo.
type GoalParameter struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	IdentityKey string     `gorm:"column:identity_key;not null;uniqueIndex:idx_goal_parameter_key_version,priority:1;index" json:"identity_key"`
	Version     int        `gorm:"column:version;not null;uniqueIndex:idx_goal_parameter_key_version,priority:2" json:"version"`
	Name        string     `gorm:"column:name;index" json:"name,omitempty"`
	CriterionID *uuid.UUID `gorm:"type:uuid;column:criterion_id;index" json:"criterion_id,omitempty"`
	SectorID    *uuid.UUID `gorm:"type:uuid;column:sector_id;index" json:"sector_id,omitempty"`
	PeriodID    *uuid.UUID `gorm:"type:uuid;column:period_id;index" json:"period_id,omitempty"`
	Value       float64    `gorm:"column:value;type:numeric(18,4);not null" json:"value"`

	PreviousVersionID *uuid.UUID `gorm:"type:uuid;column:previous_version_id" json:"previous_version_id,omitempty"`
	EffectiveFrom     time.Time  `gorm:"column:effective_from;not null" json:"effective_from"`
	EffectiveTo       *time.Time `gorm:"column:effective_to;index" json:"effective_to,omitempty"`

	Justification string    `gorm:"column:justification;type:text;not null" json:"justification"`
	CreatedBy     string    `gorm:"column:created_by" json:"created_by,omitempty"`
	CreatedAt     time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

func (GoalParameter) TableName() string { return "goal_parameter" }

func (g *GoalParameter) BeforeCreate(tx *gorm.DB) error {
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	return nil
}

func (g GoalParameter) Open() bool { return g.EffectiveTo == nil }

// ParameterKey identifies a versioned value. Exactly one of Name or
// CriterionID is set.
type ParameterKey struct {
	Name        string
	CriterionID *uuid.UUID
	SectorID    *uuid.UUID
	PeriodID    *uuid.UUID
}

func NamedKey(name string) ParameterKey { return ParameterKey{Name: name} }

func GoalKey(criterionID uuid.UUID, sectorID *uuid.UUID, periodID uuid.UUID) ParameterKey {
	c, p := criterionID, periodID
	return ParameterKey{CriterionID: &c, SectorID: sectorID, PeriodID: &p}
}

func (k ParameterKey) IsGoal() bool { return k.CriterionID != nil }

func (k ParameterKey) Validate() error {
	name := strings.TrimSpace(k.Name)
	switch {
	case name != "" && k.CriterionID != nil:
		return fmt.Errorf("parameter key has both name and criterion")
	case name == "" && k.CriterionID == nil:
		return fmt.Errorf("parameter key needs a name or a criterion")
	case k.CriterionID != nil && k.PeriodID == nil:
		return fmt.Errorf("goal key needs a period")
	}
	return nil
}

// Identity renders the key stored in GoalParameter.IdentityKey.
func (k ParameterKey) Identity() string {
	if !k.IsGoal() {
		return "named:" + strings.TrimSpace(k.Name)
	}
	sector := "*"
	if k.SectorID != nil {
		sector = k.SectorID.String()
	}
	return fmt.Sprintf("goal:%s:%s:%s", k.CriterionID, sector, k.PeriodID)
}

func (k ParameterKey) String() string { return k.Identity() }
