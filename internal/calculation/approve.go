package calculation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/domain/goals"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/ranking"
	"github.com/yungbote/sectorgoals-backend/internal/services"
)

var goalKinds = []ranking.Kind{ranking.KindDistance, ranking.KindFuel, ranking.KindTires, ranking.KindParts}

// Approve marks a finished run APPROVED, supersedes the period's previously
// approved run and writes the run's goals as new parameter versions, all in
// one transaction.
func (o *orchestrator) Approve(ctx context.Context, runID uuid.UUID, actor string) (*types.CalculationRun, error) {
	ctx, span := tracer.Start(ctx, "calculation.approve")
	defer span.End()

	var (
		approved   *types.CalculationRun
		superseded []*types.CalculationRun
		written    []*services.UpsertResult
	)
	now := o.now()
	err := o.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		run, err := o.Repos.Runs.LockByID(dbc, runID)
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("%w: run %s", errors.ErrNotFound, runID)
		}
		if !run.State().Approvable() {
			return errors.NewValidation("run status", fmt.Sprintf("run %s is %s; only completed runs can be approved", run.ID, run.Status))
		}
		period, err := o.Repos.Periods.LockByID(dbc, run.PeriodID)
		if err != nil {
			return err
		}
		if period == nil {
			return fmt.Errorf("%w: period %s", errors.ErrNotFound, run.PeriodID)
		}

		prev, err := o.Repos.Runs.ApprovedForPeriod(dbc, run.PeriodID)
		if err != nil {
			return err
		}
		for _, p := range prev {
			if p.ID == run.ID {
				continue
			}
			ok, err := o.Repos.Runs.UpdateFieldsIfStatus(dbc, p.ID, []string{string(goals.RunApproved)}, map[string]interface{}{
				"status":        string(goals.RunSuperseded),
				"superseded_at": now,
			})
			if err != nil {
				return err
			}
			if ok {
				p.Status = string(goals.RunSuperseded)
				p.SupersededAt = &now
				superseded = append(superseded, p)
			}
		}

		if o.Store != nil {
			results, err := o.writeGoals(dbc, run, period, actor)
			if err != nil {
				return err
			}
			written = results
		}

		ok, err := o.Repos.Runs.UpdateFieldsIfStatus(dbc, run.ID, goals.StatusStrings([]goals.RunStatus{goals.RunCompleted, goals.RunCompletedWithWarnings}), map[string]interface{}{
			"status":      string(goals.RunApproved),
			"approved_by": actor,
			"approved_at": now,
		})
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: run %s changed during approval", errors.ErrConflict, run.ID)
		}
		run.Status = string(goals.RunApproved)
		run.ApprovedBy = actor
		run.ApprovedAt = &now
		approved = run
		return nil
	})
	if err != nil {
		return nil, err
	}

	if o.Store != nil {
		o.Store.Publish(ctx, written...)
	}
	evs := []notify.AuditEvent{{
		Kind:     notify.AuditRunApproved,
		EntityID: approved.ID.String(),
		Actor:    actor,
		Before:   approved.Outcome,
		After:    string(goals.RunApproved),
		Data: map[string]interface{}{
			"period_id":     approved.PeriodID.String(),
			"goals_written": len(written),
		},
		At: now,
	}}
	for _, s := range superseded {
		evs = append(evs, notify.AuditEvent{
			Kind:     notify.AuditRunSuperseded,
			EntityID: s.ID.String(),
			Actor:    actor,
			Before:   string(goals.RunApproved),
			After:    string(goals.RunSuperseded),
			Data:     map[string]interface{}{"superseded_by": approved.ID.String()},
			At:       now,
		})
	}
	o.audit(ctx, evs...)
	o.emitProgress(ctx, approved, now)
	o.log.Info("Calculation run approved",
		"run_id", approved.ID,
		"period_id", approved.PeriodID,
		"superseded", len(superseded),
		"goals_written", len(written),
		"actor", actor,
	)
	return approved, nil
}

func (o *orchestrator) writeGoals(dbc dbctx.Context, run *types.CalculationRun, period *types.Period, actor string) ([]*services.UpsertResult, error) {
	if len(run.Result) == 0 {
		return nil, nil
	}
	var res Result
	if err := json.Unmarshal(run.Result, &res); err != nil {
		return nil, fmt.Errorf("decode run result: %w", err)
	}
	criteria, err := o.Repos.Criteria.ListActive(dbc)
	if err != nil {
		return nil, err
	}
	services.ResolveKinds(criteria, o.Rules.Current().Ranking())
	byKind := services.CriteriaByKind(criteria)

	justification := fmt.Sprintf("approved calculation run %s for %s", run.ID, period.Label())
	var out []*services.UpsertResult
	for _, sf := range res.Sectors {
		values := sf.Goals()
		for _, kind := range goalKinds {
			v, ok := values[kind]
			crit := byKind[kind]
			if !ok || crit == nil {
				continue
			}
			sectorID := sf.SectorID
			r, err := o.Store.Upsert(dbc, services.UpsertRequest{
				Key:           types.ParameterKey{CriterionID: &crit.ID, SectorID: &sectorID, PeriodID: &period.ID},
				Value:         v,
				Justification: justification,
				Actor:         actor,
			})
			if err != nil {
				return nil, fmt.Errorf("write %s goal for sector %s: %w", kind, sf.SectorName, err)
			}
			out = append(out, r)
		}
	}
	return out, nil
}
