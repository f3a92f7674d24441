// Package calculation drives goal calculation runs through their state
// machine: start with an in-flight guard, execute sector by sector, then
// approve or cancel.
package calculation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/config"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/domain/goals"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
	"github.com/yungbote/sectorgoals-backend/internal/services"
	"github.com/yungbote/sectorgoals-backend/internal/upstream"
	"github.com/yungbote/sectorgoals-backend/internal/validation"
)

var tracer = otel.Tracer("github.com/yungbote/sectorgoals-backend/internal/calculation")

type StartRequest struct {
	PeriodID uuid.UUID
	Actor    string
	// Overrides replaces named parameters for this run only.
	Overrides map[string]float64
}

type Orchestrator interface {
	Start(ctx context.Context, req StartRequest) (*types.CalculationRun, error)
	Execute(ctx context.Context, runID uuid.UUID) error
	Approve(ctx context.Context, runID uuid.UUID, actor string) (*types.CalculationRun, error)
	Cancel(ctx context.Context, runID uuid.UUID, actor, reason string) (*types.CalculationRun, error)
	Get(ctx context.Context, runID uuid.UUID) (*types.CalculationRun, error)
	ListRuns(ctx context.Context, periodID uuid.UUID) ([]*types.CalculationRun, error)
}

// Deps lists the collaborators of the orchestrator.
type Deps struct {
	Repos      repos.Set
	Params     services.ConfigurationSource
	Store      services.ParameterVersionStore
	Carryover  services.CarryoverLookup
	Validator  validation.PreCalculationValidator
	Upstream   upstream.HistoricalDataSource
	Rules      *config.Store
	Progress   notify.ProgressSink
	Audit      notify.AuditSink
	Dispatcher Dispatcher
}

type orchestrator struct {
	db  *gorm.DB
	log *logger.Logger
	Deps
	now func() time.Time
}

func New(db *gorm.DB, baseLog *logger.Logger, deps Deps) Orchestrator {
	if deps.Rules == nil {
		deps.Rules = config.NewStore(nil)
	}
	o := &orchestrator{
		db:   db,
		log:  baseLog.With("service", "CalculationOrchestrator"),
		Deps: deps,
		now:  func() time.Time { return time.Now().UTC() },
	}
	if o.Dispatcher == nil {
		o.Dispatcher = QueueDispatcher{Log: o.log}
	}
	return o
}

// SetDispatcher replaces the dispatcher after construction; the Temporal
// dispatcher needs the orchestrator to exist first.
func SetDispatcher(o Orchestrator, d Dispatcher) {
	if impl, ok := o.(*orchestrator); ok && d != nil {
		impl.Dispatcher = d
	}
}

func (o *orchestrator) Start(ctx context.Context, req StartRequest) (*types.CalculationRun, error) {
	ctx, span := tracer.Start(ctx, "calculation.start")
	defer span.End()

	if o.Validator != nil {
		rep, err := o.Validator.Validate(ctx, req.PeriodID)
		if err != nil {
			return nil, err
		}
		if !rep.Valid {
			return nil, rep.Err()
		}
	}

	// Resolved before the transaction: the configuration source reads
	// through its own handle.
	params, err := resolveParams(ctx, o.Params, o.Rules.Current(), req.Overrides)
	if err != nil {
		return nil, errors.NewValidation("parameters", err.Error())
	}
	snapshot, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	var created *types.CalculationRun
	err = o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		period, err := o.Repos.Periods.LockByID(dbc, req.PeriodID)
		if err != nil {
			return err
		}
		if period == nil {
			return fmt.Errorf("%w: period %s", errors.ErrNotFound, req.PeriodID)
		}
		active, err := o.Repos.Runs.InFlightForPeriod(dbc, period.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return fmt.Errorf("%w: run %s is already %s for period %s", errors.ErrConflict, active.ID, active.Status, period.Label())
		}
		run, err := o.Repos.Runs.Create(dbc, &types.CalculationRun{
			PeriodID:       period.ID,
			Status:         string(goals.RunPending),
			Step:           "queued",
			ParamsSnapshot: datatypes.JSON(snapshot),
			RequestedBy:    req.Actor,
		})
		if err != nil {
			return err
		}
		created = run
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.log.Info("Calculation run created", "run_id", created.ID, "period_id", created.PeriodID, "actor", req.Actor)
	if err := o.Dispatcher.Dispatch(ctx, created); err != nil {
		o.newRunContext(ctx, created).Fail("dispatch", fmt.Errorf("dispatch run: %w", err), nil)
		return created, err
	}
	return created, nil
}

func (o *orchestrator) Get(ctx context.Context, runID uuid.UUID) (*types.CalculationRun, error) {
	run, err := o.Repos.Runs.GetByID(dbctx.New(ctx), runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("%w: run %s", errors.ErrNotFound, runID)
	}
	return run, nil
}

func (o *orchestrator) ListRuns(ctx context.Context, periodID uuid.UUID) ([]*types.CalculationRun, error) {
	return o.Repos.Runs.ListByPeriod(dbctx.New(ctx), periodID)
}

// Cancel is honored only while the run is in flight. Data already saved is
// left as is.
func (o *orchestrator) Cancel(ctx context.Context, runID uuid.UUID, actor, reason string) (*types.CalculationRun, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.NewValidation("cancel reason", "a reason is required to cancel a run")
	}
	dbc := dbctx.New(ctx)
	now := o.now()
	ok, err := o.Repos.Runs.UpdateFieldsIfStatus(dbc, runID, goals.StatusStrings(goals.InFlightStatuses), map[string]interface{}{
		"status":        string(goals.RunCancelled),
		"outcome":       string(goals.RunCancelled),
		"cancel_reason": reason,
		"finished_at":   now,
	})
	if err != nil {
		return nil, err
	}
	run, err := o.Get(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewValidation("run status", fmt.Sprintf("run %s is %s and can no longer be cancelled", run.ID, run.Status))
	}

	o.emitProgress(ctx, run, now)
	o.audit(ctx, notify.AuditEvent{
		Kind:          notify.AuditRunCancelled,
		EntityID:      run.ID.String(),
		Actor:         actor,
		Justification: reason,
		Data:          map[string]interface{}{"period_id": run.PeriodID.String()},
		At:            now,
	})
	o.log.Info("Calculation run cancelled", "run_id", run.ID, "actor", actor, "reason", reason)
	return run, nil
}

func (o *orchestrator) emitProgress(ctx context.Context, run *types.CalculationRun, at time.Time) {
	if o.Progress == nil {
		return
	}
	ev := notify.ProgressEvent{
		RunID:    run.ID,
		PeriodID: run.PeriodID,
		Status:   run.Status,
		Step:     run.Step,
		Percent:  run.Progress,
		At:       at,
	}
	if err := o.Progress.Progress(ctx, ev); err != nil {
		o.log.Warn("Progress emit failed", "run_id", run.ID, "error", err)
	}
}

func (o *orchestrator) audit(ctx context.Context, evs ...notify.AuditEvent) {
	var box notify.Outbox
	box.Add(evs...)
	box.Flush(ctx, o.Audit, o.log)
}
