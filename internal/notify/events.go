// Package notify carries run progress and audit events out of the core.
// Events are emitted after the owning transaction commits.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type ProgressEvent struct {
	RunID    uuid.UUID `json:"run_id"`
	PeriodID uuid.UUID `json:"period_id"`
	Status   string    `json:"status"`
	Step     string    `json:"step"`
	Percent  int       `json:"percent"`
	At       time.Time `json:"at"`
}

type AuditKind string

const (
	AuditRunCompleted     AuditKind = "run.completed"
	AuditRunFailed        AuditKind = "run.failed"
	AuditRunCancelled     AuditKind = "run.cancelled"
	AuditRunApproved      AuditKind = "run.approved"
	AuditRunSuperseded    AuditKind = "run.superseded"
	AuditParameterVersion AuditKind = "parameter.version"
	AuditRankingComputed  AuditKind = "ranking.computed"
	AuditPeriodTransition AuditKind = "period.transition"
)

// AuditEvent is one structured audit record.
type AuditEvent struct {
	Kind          AuditKind              `json:"kind"`
	EntityID      string                 `json:"entity_id"`
	Actor         string                 `json:"actor,omitempty"`
	Before        interface{}            `json:"before,omitempty"`
	After         interface{}            `json:"after,omitempty"`
	Justification string                 `json:"justification,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
	At            time.Time              `json:"at"`
}

type ProgressSink interface {
	Progress(ctx context.Context, ev ProgressEvent) error
}

type AuditSink interface {
	Audit(ctx context.Context, ev AuditEvent) error
}
