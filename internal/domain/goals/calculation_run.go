package goals

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type RunStatus string

const (
	RunPending             RunStatus = "PENDING"
	RunValidating          RunStatus = "VALIDATING"
	RunLoadingData         RunStatus = "LOADING_DATA"
	RunCalculatingDistance RunStatus = "CALCULATING_DISTANCE"
	RunCalculatingFuel     RunStatus = "CALCULATING_FUEL"
	RunCalculatingTires    RunStatus = "CALCULATING_TIRES"
	RunCalculatingParts    RunStatus = "CALCULATING_PARTS"
	RunSaving              RunStatus = "SAVING"

	RunCompleted             RunStatus = "COMPLETED"
	RunCompletedWithWarnings RunStatus = "COMPLETED_WITH_WARNINGS"
	RunError                 RunStatus = "ERROR"
	RunCancelled             RunStatus = "CANCELLED"
	RunApproved              RunStatus = "APPROVED"
	RunSuperseded            RunStatus = "SUPERSEDED"
)

// InFlightStatuses are the non-terminal states.
var InFlightStatuses = []RunStatus{
	RunPending,
	RunValidating,
	RunLoadingData,
	RunCalculatingDistance,
	RunCalculatingFuel,
	RunCalculatingTires,
	RunCalculatingParts,
	RunSaving,
}

// TerminalStatuses are never left except by approval and supersession.
var TerminalStatuses = []RunStatus{
	RunCompleted,
	RunCompletedWithWarnings,
	RunError,
	RunCancelled,
	RunApproved,
	RunSuperseded,
}

func (s RunStatus) InFlight() bool {
	for _, v := range InFlightStatuses {
		if v == s {
			return true
		}
	}
	return false
}

func (s RunStatus) Terminal() bool { return !s.InFlight() }

func (s RunStatus) Approvable() bool {
	return s == RunCompleted || s == RunCompletedWithWarnings
}

func StatusStrings(ss []RunStatus) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// RunWarning is collected on the run record; it never fails the run.
type RunWarning struct {
	Severity Severity   `json:"severity"`
	SectorID *uuid.UUID `json:"sector_id,omitempty"`
	Step     string     `json:"step,omitempty"`
	Message  string     `json:"message"`
}

// CalculationRun is one orchestrated forecast execution. Status walks the
// state machine; Outcome keeps COMPLETED vs COMPLETED_WITH_WARNINGS after the
// run is approved or superseded.
type CalculationRun struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	PeriodID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"period_id"`
	Status         string         `gorm:"column:status;not null;index" json:"status"`
	Outcome        string         `gorm:"column:outcome" json:"outcome,omitempty"`
	Step           string         `gorm:"column:step" json:"step,omitempty"`
	Progress       int            `gorm:"column:progress;not null;default:0" json:"progress"`
	ParamsSnapshot datatypes.JSON `gorm:"column:params_snapshot;type:jsonb" json:"params_snapshot,omitempty"`
	Result         datatypes.JSON `gorm:"column:result;type:jsonb" json:"result,omitempty"`
	Warnings       datatypes.JSON `gorm:"column:warnings;type:jsonb" json:"warnings,omitempty"`
	Error          string         `gorm:"column:error;type:text" json:"error,omitempty"`
	ErrorAt        *time.Time     `gorm:"column:error_at" json:"error_at,omitempty"`
	CancelReason   string         `gorm:"column:cancel_reason;type:text" json:"cancel_reason,omitempty"`
	RequestedBy    string         `gorm:"column:requested_by" json:"requested_by,omitempty"`
	ApprovedBy     string         `gorm:"column:approved_by" json:"approved_by,omitempty"`
	ApprovedAt     *time.Time     `gorm:"column:approved_at" json:"approved_at,omitempty"`
	SupersededAt   *time.Time     `gorm:"column:superseded_at" json:"superseded_at,omitempty"`
	ClaimedAt      *time.Time     `gorm:"column:claimed_at;index" json:"claimed_at,omitempty"`
	HeartbeatAt    *time.Time     `gorm:"column:heartbeat_at" json:"heartbeat_at,omitempty"`
	Attempts       int            `gorm:"column:attempts;not null;default:0" json:"attempts"`
	StartedAt      *time.Time     `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt     *time.Time     `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

func (CalculationRun) TableName() string { return "goal_calculation_run" }

func (r *CalculationRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Status == "" {
		r.Status = string(RunPending)
	}
	return nil
}

func (r CalculationRun) State() RunStatus { return RunStatus(r.Status) }
