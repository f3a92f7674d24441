package calculation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/sectorgoals-backend/internal/calendar"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/domain/goals"
	"github.com/yungbote/sectorgoals-backend/internal/forecast"
	"github.com/yungbote/sectorgoals-backend/internal/jobs/runtime"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/ranking"
	"github.com/yungbote/sectorgoals-backend/internal/services"
)

const (
	pctValidating = 5
	pctLoading    = 15
	pctSectorsLo  = 20
	pctSectorsHi  = 90
	pctSaving     = 95
)

// prefetchLimit bounds concurrent upstream reads during LOADING_DATA.
const prefetchLimit = 4

type sectorStep struct {
	status goals.RunStatus
	label  string
}

var sectorSteps = []sectorStep{
	{goals.RunCalculatingDistance, "distance"},
	{goals.RunCalculatingFuel, "fuel"},
	{goals.RunCalculatingTires, "tires"},
	{goals.RunCalculatingParts, "parts"},
}

// runData is everything a run reads before the sector loop.
type runData struct {
	period      *types.Period
	sectors     []*types.Sector
	targetDays  []calendar.Day
	historyDays []calendar.Day
	monthly     []forecast.MonthlyAggregate
	daily       map[uuid.UUID][]forecast.DailyMetric
	dailyErr    map[uuid.UUID]error
	balances    map[uuid.UUID]map[forecast.Category]services.PriorBalance
}

func (o *orchestrator) newRunContext(ctx context.Context, run *types.CalculationRun) *runtime.Context {
	return runtime.NewContext(ctx, run, o.Repos.Runs, o.Progress, o.log)
}

// Execute runs a PENDING run to a terminal status. Failures are recorded on
// the run; the returned error only reports a run that could not be loaded or
// was not PENDING.
func (o *orchestrator) Execute(ctx context.Context, runID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "calculation.execute")
	defer span.End()
	span.SetAttributes(attribute.String("run_id", runID.String()))

	run, err := o.Get(ctx, runID)
	if err != nil {
		return err
	}
	switch st := run.State(); {
	case st.Terminal():
		o.log.Info("Run already finished, nothing to execute", "run_id", run.ID, "status", st)
		return nil
	case st != goals.RunPending:
		return fmt.Errorf("%w: run %s is already %s", errors.ErrConflict, run.ID, st)
	}

	var params Params
	if len(run.ParamsSnapshot) > 0 {
		err = json.Unmarshal(run.ParamsSnapshot, &params)
	} else {
		params, err = resolveParams(ctx, o.Params, o.Rules.Current(), nil)
	}
	if err != nil {
		o.newRunContext(ctx, run).Fail("validating", fmt.Errorf("params snapshot: %w", err), nil)
		return nil
	}

	ex := &execution{o: o, rc: o.newRunContext(ctx, run), params: params}
	ex.run(ctx)
	if ex.rc.Run.State() == goals.RunError {
		span.SetStatus(codes.Error, ex.rc.Run.Error)
	}
	return nil
}

type execution struct {
	o        *orchestrator
	rc       *runtime.Context
	params   Params
	warnings []goals.RunWarning
	mu       sync.Mutex
}

func (ex *execution) warn(sev goals.Severity, sectorID *uuid.UUID, step, msg string) {
	ex.mu.Lock()
	ex.warnings = append(ex.warnings, goals.RunWarning{Severity: sev, SectorID: sectorID, Step: step, Message: msg})
	ex.mu.Unlock()
}

func (ex *execution) fail(ctx context.Context, step string, err error) {
	if ex.rc.Fail(step, err, ex.warnings) {
		ex.o.audit(ctx, notify.AuditEvent{
			Kind:     notify.AuditRunFailed,
			EntityID: ex.rc.Run.ID.String(),
			Actor:    ex.rc.Run.RequestedBy,
			After:    string(goals.RunError),
			Data: map[string]interface{}{
				"period_id": ex.rc.Run.PeriodID.String(),
				"step":      step,
				"error":     err.Error(),
			},
			At: ex.o.now(),
		})
	}
}

// stopped reports cooperative cancellation or a dead context.
func (ex *execution) stopped(ctx context.Context) bool {
	if ex.rc.Cancelled() {
		ex.rc.Log.Info("Run cancelled, stopping", "reason", ex.rc.Run.CancelReason)
		return true
	}
	if err := ctx.Err(); err != nil {
		ex.fail(context.WithoutCancel(ctx), "interrupted", err)
		return true
	}
	return false
}

func (ex *execution) run(ctx context.Context) {
	run := ex.rc.Run
	if !ex.rc.Advance(goals.RunValidating, "validating", pctValidating) {
		return
	}
	if ex.o.Validator != nil {
		rep, err := ex.o.Validator.Validate(ctx, run.PeriodID)
		if err != nil {
			ex.fail(ctx, "validating", err)
			return
		}
		if !rep.Valid {
			ex.fail(ctx, "validating", rep.Err())
			return
		}
		for _, w := range rep.Warnings() {
			ex.warn(goals.SeverityLow, nil, "validating", w)
		}
	}

	if ex.stopped(ctx) || !ex.rc.Advance(goals.RunLoadingData, "loading_data", pctLoading) {
		return
	}
	data, err := ex.load(ctx)
	if err != nil {
		ex.fail(ctx, "loading_data", err)
		return
	}

	result := Result{PeriodID: data.period.ID, Period: data.period.Label(), Params: ex.params}
	n := len(data.sectors)
	for i, sector := range data.sectors {
		sf, ok := ex.sector(ctx, data, sector, i, n)
		if !ok {
			return
		}
		if sf.Failed {
			result.Failed++
		} else {
			result.Succeeded++
		}
		result.Sectors = append(result.Sectors, sf)
	}

	if ex.stopped(ctx) || !ex.rc.Advance(goals.RunSaving, "saving", pctSaving) {
		return
	}
	if n > 0 && result.Succeeded == 0 {
		ex.fail(ctx, "saving", fmt.Errorf("all %d sectors failed", n))
		return
	}

	status := goals.RunCompleted
	if len(ex.warnings) > 0 {
		status = goals.RunCompletedWithWarnings
	}
	if !ex.rc.Complete(status, result, ex.warnings) {
		return
	}
	ex.o.audit(ctx, notify.AuditEvent{
		Kind:     notify.AuditRunCompleted,
		EntityID: run.ID.String(),
		Actor:    run.RequestedBy,
		After:    string(status),
		Data: map[string]interface{}{
			"period_id": run.PeriodID.String(),
			"succeeded": result.Succeeded,
			"failed":    result.Failed,
			"warnings":  len(ex.warnings),
		},
		At: ex.o.now(),
	})
	ex.rc.Log.Info("Calculation run finished",
		"status", status,
		"sectors", n,
		"failed", result.Failed,
		"warnings", len(ex.warnings),
	)
}

func (ex *execution) load(ctx context.Context) (*runData, error) {
	o := ex.o
	dbc := dbctx.New(ctx)
	run := ex.rc.Run

	period, err := o.Repos.Periods.GetByID(dbc, run.PeriodID)
	if err != nil {
		return nil, err
	}
	if period == nil {
		return nil, fmt.Errorf("%w: period %s", errors.ErrNotFound, run.PeriodID)
	}
	sectors, err := o.Repos.Sectors.ListActive(dbc)
	if err != nil {
		return nil, err
	}
	data := &runData{
		period:   period,
		sectors:  sectors,
		daily:    map[uuid.UUID][]forecast.DailyMetric{},
		dailyErr: map[uuid.UUID]error{},
	}

	if data.targetDays, err = ex.days(ctx, period.ID); err != nil {
		return nil, err
	}
	y, m := period.Previous()
	prev, err := o.Repos.Periods.GetByYearMonth(dbc, y, int(m))
	if err != nil {
		return nil, err
	}
	if prev != nil {
		if data.historyDays, err = ex.days(ctx, prev.ID); err != nil {
			return nil, err
		}
	} else {
		ex.warn(goals.SeverityLow, nil, "loading_data", fmt.Sprintf("no period registered for %04d-%02d; history holidays unknown", y, m))
	}

	criteria, err := o.Repos.Criteria.ListActive(dbc)
	if err != nil {
		return nil, err
	}
	services.ResolveKinds(criteria, o.Rules.Current().Ranking())
	byKind := services.CriteriaByKind(criteria)
	costCriteria := map[forecast.Category]uuid.UUID{}
	if c := byKind[ranking.KindTires]; c != nil {
		costCriteria[forecast.CategoryTires] = c.ID
	}
	if c := byKind[ranking.KindParts]; c != nil {
		costCriteria[forecast.CategoryParts] = c.ID
	}
	if o.Carryover != nil {
		if data.balances, err = o.Carryover.PriorBalances(dbc, period, costCriteria); err != nil {
			return nil, err
		}
	}

	lookback := ex.params.CostLookbackMonths
	if ex.params.FuelLookbackMonths > lookback {
		lookback = ex.params.FuelLookbackMonths
	}
	dailyFrom, dailyTo := forecast.LookbackWindow(period.Start(), ex.params.FuelLookbackMonths)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchLimit)
	g.Go(func() error {
		rows, err := o.Upstream.FetchMonthlyAggregates(gctx, lookback, period.Start())
		if err != nil {
			return fmt.Errorf("fetch monthly aggregates: %w", err)
		}
		data.monthly = rows
		return nil
	})
	for _, s := range sectors {
		s := s
		if !s.Mapped() {
			continue
		}
		g.Go(func() error {
			rows, err := o.Upstream.FetchDailyMetrics(gctx, s.UpstreamCode, dailyFrom, dailyTo)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				data.dailyErr[s.ID] = err
				return nil
			}
			data.daily[s.ID] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return data, nil
}

func (ex *execution) days(ctx context.Context, periodID uuid.UUID) ([]calendar.Day, error) {
	rows, err := ex.o.Repos.Holidays.ListByPeriod(dbctx.New(ctx), periodID)
	if err != nil {
		return nil, err
	}
	out := make([]calendar.Day, 0, len(rows))
	for _, h := range rows {
		out = append(out, calendar.Day{Date: h.Date, Classification: calendar.Classification(h.Classification)})
	}
	return out, nil
}

func stepPercent(sector, step, sectors int) int {
	total := sectors * len(sectorSteps)
	if total == 0 {
		return pctSectorsLo
	}
	done := sector*len(sectorSteps) + step
	return pctSectorsLo + done*(pctSectorsHi-pctSectorsLo)/total
}

// sector computes one sector's forecasts. ok=false means the run stopped
// (cancelled or interrupted) and the caller must return.
func (ex *execution) sector(ctx context.Context, data *runData, s *types.Sector, idx, total int) (sf SectorForecast, ok bool) {
	sid := s.ID
	sf = SectorForecast{SectorID: s.ID, SectorName: s.Name, UpstreamCode: s.UpstreamCode}
	current := "distance"

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("sector %s panicked during %s: %v", s.Name, current, r)
			ex.warn(goals.SeverityHigh, &sid, current, msg)
			ex.rc.Log.Error("Sector calculation panic", "sector", s.Name, "step", current, "panic", r)
			sf.Failed = true
			sf.Error = msg
			ok = true
		}
	}()

	sectorFail := func(step string, err error) {
		msg := fmt.Sprintf("sector %s: %s: %v", s.Name, step, err)
		ex.warn(goals.SeverityHigh, &sid, step, msg)
		sf.Failed = true
		sf.Error = msg
	}
	subFail := func(step string, err error) {
		sev := goals.SeverityHigh
		if errors.IsDataInsufficiency(err) {
			sev = goals.SeverityMedium
		}
		ex.warn(sev, &sid, step, fmt.Sprintf("sector %s: %s: %v", s.Name, step, err))
	}
	forecastWarnings := func(step string, ws []string) {
		for _, w := range ws {
			ex.warn(goals.SeverityMedium, &sid, step, fmt.Sprintf("sector %s: %s", s.Name, w))
		}
	}

	daily := data.daily[s.ID]
	monthly := forecast.FilterMonthly(data.monthly, s.UpstreamCode)
	start := data.period.Start()
	priorStart := start.AddDate(0, -1, 0)

	for stepIdx, st := range sectorSteps {
		current = st.label
		if ex.stopped(ctx) {
			return sf, false
		}
		label := fmt.Sprintf("sector %s: %s", s.Name, st.label)
		if !ex.rc.Advance(st.status, label, stepPercent(idx, stepIdx, total)) {
			return sf, false
		}
		if sf.Failed {
			continue
		}

		switch st.status {
		case goals.RunCalculatingDistance:
			if !s.Mapped() {
				sectorFail(st.label, fmt.Errorf("no upstream code"))
				continue
			}
			if err := data.dailyErr[s.ID]; err != nil {
				sectorFail(st.label, err)
				continue
			}
			res, err := forecast.Distance(forecast.DistanceInput{
				Year:        data.period.Year,
				Month:       time.Month(data.period.Month),
				History:     inRange(daily, priorStart, start),
				HistoryDays: data.historyDays,
				TargetDays:  data.targetDays,

				QualityThreshold: ex.params.QualityThreshold,
			})
			if err != nil {
				sectorFail(st.label, err)
				continue
			}
			sf.Distance = &res
			forecastWarnings(st.label, res.Warnings)

		case goals.RunCalculatingFuel:
			res, err := forecast.Fuel(forecast.FuelInput{
				ProjectedDistance: sf.Distance.Projected,
				ReductionPct:      ex.params.FuelReductionPct,
				LookbackMonths:    ex.params.FuelLookbackMonths,
				Aggregates:        monthly,
				Daily:             daily,
				QualityThreshold:  ex.params.QualityThreshold,
			})
			if err != nil {
				subFail(st.label, err)
				continue
			}
			sf.Fuel = &res
			forecastWarnings(st.label, res.Warnings)

		case goals.RunCalculatingTires, goals.RunCalculatingParts:
			cat, award := forecast.CategoryTires, ex.params.TiresAwardPct
			if st.status == goals.RunCalculatingParts {
				cat, award = forecast.CategoryParts, ex.params.PartsAwardPct
			}
			bal := data.balances[s.ID][cat]
			carry := forecast.Carryover(forecast.CarryoverInput{
				ApprovedTarget: bal.ApprovedTarget,
				RealizedSpend:  bal.RealizedSpend,
				TolerancePct:   ex.params.TolerancePct,
			})
			res, err := forecast.Cost(forecast.CostInput{
				Category:          cat,
				ProjectedDistance: sf.Distance.Projected,
				AwardPct:          award,
				Carryover:         carry,
				Months:            ex.params.CostLookbackMonths,
				Aggregates:        monthly,
				QualityThreshold:  ex.params.QualityThreshold,
			})
			if err != nil {
				subFail(st.label, err)
				continue
			}
			if cat == forecast.CategoryTires {
				sf.Tires = &res
			} else {
				sf.Parts = &res
			}
			forecastWarnings(st.label, res.Warnings)
		}
	}
	return sf, true
}

func inRange(rows []forecast.DailyMetric, from, to time.Time) []forecast.DailyMetric {
	var out []forecast.DailyMetric
	for _, r := range rows {
		if !r.Date.Before(from) && r.Date.Before(to) {
			out = append(out, r)
		}
	}
	return out
}
