package runtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/domain/goals"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/ctxutil"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

/*
Context is the execution handle for one calculation run.
It wraps:
  - the run row held in memory,
  - the repository that persists every status change,
  - the progress sink that mirrors those changes outward.

Every write is guarded by the in-flight statuses, so a run cancelled from
another process is never overwritten. A rejected write returns false and
emits nothing; callers treat that as "stop now".
*/
type Context struct {
	Ctx  context.Context
	Run  *types.CalculationRun
	Repo repos.CalculationRunRepo
	Sink notify.ProgressSink
	Log  *logger.Logger
	now  func() time.Time
}

func NewContext(ctx context.Context, run *types.CalculationRun, repo repos.CalculationRunRepo, sink notify.ProgressSink, log *logger.Logger) *Context {
	if log == nil {
		log = logger.Nop()
	}
	c := &Context{
		Ctx:  ctxutil.Default(ctx),
		Run:  run,
		Repo: repo,
		Sink: sink,
		Log:  log,
		now:  time.Now,
	}
	if run != nil {
		c.Log = log.With("run_id", run.ID, "period_id", run.PeriodID)
	}
	return c
}

func inFlight() []string { return goals.StatusStrings(goals.InFlightStatuses) }

func (c *Context) guarded(updates map[string]interface{}) bool {
	if c == nil || c.Run == nil || c.Run.ID == uuid.Nil || c.Repo == nil {
		return false
	}
	ok, err := c.Repo.UpdateFieldsIfStatus(dbctx.New(c.Ctx), c.Run.ID, inFlight(), updates)
	if err != nil {
		c.Log.Warn("Run update failed", "error", err)
		return false
	}
	return ok
}

/*
Advance moves the run to a non-terminal status and reports progress.
Returns false when the run has left the in-flight set (usually CANCELLED).
*/
func (c *Context) Advance(status goals.RunStatus, step string, pct int) bool {
	now := c.now()
	updates := map[string]interface{}{
		"status":     string(status),
		"step":       step,
		"progress":   pct,
		"updated_at": now,
	}
	if c.Run.StartedAt == nil {
		updates["started_at"] = now
	}
	if !c.guarded(updates) {
		return false
	}
	c.Run.Status = string(status)
	c.Run.Step = step
	c.Run.Progress = pct
	if c.Run.StartedAt == nil {
		c.Run.StartedAt = &now
	}
	c.emit(now)
	return true
}

// Cancelled re-reads the stored status.
func (c *Context) Cancelled() bool {
	if c == nil || c.Run == nil || c.Repo == nil {
		return false
	}
	cur, err := c.Repo.GetByID(dbctx.New(c.Ctx), c.Run.ID)
	if err != nil || cur == nil {
		return false
	}
	if cur.State() == goals.RunCancelled {
		c.Run.Status = cur.Status
		c.Run.CancelReason = cur.CancelReason
		return true
	}
	return false
}

/*
Fail sets ERROR with the message and timestamp. Warnings collected so far are
kept on the row.
*/
func (c *Context) Fail(step string, err error, warnings []goals.RunWarning) bool {
	now := c.now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	updates := map[string]interface{}{
		"status":      string(goals.RunError),
		"outcome":     string(goals.RunError),
		"step":        step,
		"error":       msg,
		"error_at":    now,
		"finished_at": now,
		"updated_at":  now,
	}
	if w := encode(warnings); w != nil {
		updates["warnings"] = w
	}
	if !c.guarded(updates) {
		return false
	}
	c.Run.Status = string(goals.RunError)
	c.Run.Outcome = string(goals.RunError)
	c.Run.Step = step
	c.Run.Error = msg
	c.Run.ErrorAt = &now
	c.Run.FinishedAt = &now
	c.Log.Error("Calculation run failed", "step", step, "error", msg)
	c.emit(now)
	return true
}

// Complete stores the result and finishes the run with status.
func (c *Context) Complete(status goals.RunStatus, result any, warnings []goals.RunWarning) bool {
	now := c.now()
	updates := map[string]interface{}{
		"status":      string(status),
		"outcome":     string(status),
		"step":        "done",
		"progress":    100,
		"error":       "",
		"finished_at": now,
		"updated_at":  now,
	}
	if r := encode(result); r != nil {
		updates["result"] = r
	}
	if w := encode(warnings); w != nil {
		updates["warnings"] = w
	}
	if !c.guarded(updates) {
		return false
	}
	c.Run.Status = string(status)
	c.Run.Outcome = string(status)
	c.Run.Step = "done"
	c.Run.Progress = 100
	c.Run.FinishedAt = &now
	c.emit(now)
	return true
}

func (c *Context) emit(at time.Time) {
	if c.Sink == nil {
		return
	}
	ev := notify.ProgressEvent{
		RunID:    c.Run.ID,
		PeriodID: c.Run.PeriodID,
		Status:   c.Run.Status,
		Step:     c.Run.Step,
		Percent:  c.Run.Progress,
		At:       at.UTC(),
	}
	if err := c.Sink.Progress(c.Ctx, ev); err != nil {
		c.Log.Warn("Progress emit failed", "status", ev.Status, "error", err)
	}
}

func encode(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	switch t := v.(type) {
	case []goals.RunWarning:
		if len(t) == 0 {
			return nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
