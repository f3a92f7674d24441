// Package validation holds the checks that must pass before a goal
// calculation run may start. Each check is independent; the report is
// invalid when any check reports an error. Warnings never block.
package validation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yungbote/sectorgoals-backend/internal/config"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
	"github.com/yungbote/sectorgoals-backend/internal/services"
	"github.com/yungbote/sectorgoals-backend/internal/upstream"
)

const (
	CheckPeriodStatus  = "period_status"
	CheckHolidays      = "holidays_classified"
	CheckParameters    = "required_parameters"
	CheckConnectivity  = "upstream_connectivity"
	CheckSectorMapping = "sector_mapping"
)

const (
	DefaultConnectivityTimeout = 5 * time.Second
	DefaultSlowCheck           = 2 * time.Second
)

type CheckResult struct {
	Name     string   `json:"name"`
	OK       bool     `json:"ok"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

func (c *CheckResult) fail(format string, args ...interface{}) {
	c.Errors = append(c.Errors, fmt.Sprintf(format, args...))
}

func (c *CheckResult) warn(format string, args ...interface{}) {
	c.Warnings = append(c.Warnings, fmt.Sprintf(format, args...))
}

type Report struct {
	PeriodID  uuid.UUID     `json:"period_id"`
	Valid     bool          `json:"valid"`
	Checks    []CheckResult `json:"checks"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Warnings flattens every check's warnings, prefixed by check name.
func (r *Report) Warnings() []string {
	var out []string
	for _, c := range r.Checks {
		for _, w := range c.Warnings {
			out = append(out, c.Name+": "+w)
		}
	}
	return out
}

// Err returns a ValidationError naming every failed check, or nil.
func (r *Report) Err() error {
	if r == nil || r.Valid {
		return nil
	}
	var failed, msgs []string
	for _, c := range r.Checks {
		if len(c.Errors) == 0 {
			continue
		}
		failed = append(failed, c.Name)
		msgs = append(msgs, c.Errors...)
	}
	return errors.NewValidation(strings.Join(failed, ","), msgs...)
}

type Config struct {
	ConnectivityTimeout time.Duration
	// SlowCheck turns a successful but slow check into a warning.
	SlowCheck time.Duration
}

type PreCalculationValidator interface {
	Validate(ctx context.Context, periodID uuid.UUID) (*Report, error)
}

type validator struct {
	log      *logger.Logger
	repos    repos.Set
	params   services.ConfigurationSource
	upstream upstream.HistoricalDataSource
	rules    *config.Store
	cfg      Config
}

func New(baseLog *logger.Logger, set repos.Set, params services.ConfigurationSource, source upstream.HistoricalDataSource, rules *config.Store, cfg Config) PreCalculationValidator {
	if cfg.ConnectivityTimeout <= 0 {
		cfg.ConnectivityTimeout = DefaultConnectivityTimeout
	}
	if cfg.SlowCheck <= 0 {
		cfg.SlowCheck = DefaultSlowCheck
	}
	return &validator{
		log:      baseLog.With("service", "PreCalculationValidator"),
		repos:    set,
		params:   params,
		upstream: source,
		rules:    rules,
		cfg:      cfg,
	}
}

// Validate runs all five checks concurrently. The returned error is reserved
// for the context ending; failed checks only mark the report invalid.
func (v *validator) Validate(ctx context.Context, periodID uuid.UUID) (*Report, error) {
	checks := []struct {
		name string
		run  func(context.Context, uuid.UUID, *CheckResult)
	}{
		{CheckPeriodStatus, v.checkPeriod},
		{CheckHolidays, v.checkHolidays},
		{CheckParameters, v.checkParameters},
		{CheckConnectivity, v.checkConnectivity},
		{CheckSectorMapping, v.checkSectors},
	}

	results := make([]CheckResult, len(checks))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range checks {
		i, c := i, c
		results[i].Name = c.name
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					results[i].fail("check panicked: %v", r)
				}
			}()
			c.run(gctx, periodID, &results[i])
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rep := &Report{PeriodID: periodID, Valid: true, Checks: results, CheckedAt: time.Now().UTC()}
	for i := range rep.Checks {
		rep.Checks[i].OK = len(rep.Checks[i].Errors) == 0
		if !rep.Checks[i].OK {
			rep.Valid = false
		}
	}
	if !rep.Valid {
		v.log.Warn("Pre-calculation validation failed", "period_id", periodID, "error", rep.Err())
	}
	return rep, nil
}

func (v *validator) checkPeriod(ctx context.Context, periodID uuid.UUID, res *CheckResult) {
	p, err := v.repos.Periods.GetByID(dbctx.New(ctx), periodID)
	switch {
	case err != nil:
		res.fail("load period: %v", err)
	case p == nil:
		res.fail("period %s not found", periodID)
	case p.State() != types.PeriodPlanning:
		res.fail("period %s is %s; goals are calculated only while PLANNING", p.Label(), p.Status)
	}
}

func (v *validator) checkHolidays(ctx context.Context, periodID uuid.UUID, res *CheckResult) {
	dbc := dbctx.New(ctx)
	rows, err := v.repos.Holidays.ListByPeriod(dbc, periodID)
	if err != nil {
		res.fail("load holidays: %v", err)
		return
	}
	if len(rows) == 0 {
		res.warn("no holidays registered for the period")
		return
	}
	var pending []string
	for _, h := range rows {
		if strings.TrimSpace(h.Classification) == "" {
			pending = append(pending, h.Date.Format("2006-01-02"))
		}
	}
	if len(pending) > 0 {
		res.fail("%d holiday(s) not classified: %s", len(pending), strings.Join(pending, ", "))
	}
}

func (v *validator) checkParameters(ctx context.Context, _ uuid.UUID, res *CheckResult) {
	if v.params == nil {
		res.fail("configuration source not available")
		return
	}
	rules := v.rules.Current()
	for _, name := range rules.RequiredParameters {
		val, err := v.params.GetNamedValue(ctx, name)
		switch {
		case errors.IsNotFound(err):
			res.fail("parameter %q is not configured", name)
		case err != nil:
			res.fail("parameter %q: %v", name, err)
		default:
			if err := rules.CheckParameter(name, val); err != nil {
				res.fail("parameter %q is %v; %v", name, val, err)
			}
		}
	}
}

func (v *validator) checkConnectivity(ctx context.Context, _ uuid.UUID, res *CheckResult) {
	if v.upstream == nil {
		res.fail("upstream data source not configured")
		return
	}
	pctx, cancel := context.WithTimeout(ctx, v.cfg.ConnectivityTimeout)
	defer cancel()
	latency, err := v.upstream.TestConnectivity(pctx)
	if err != nil {
		var ce *errors.ConnectivityError
		if errors.As(err, &ce) {
			res.fail("%s", ce.Error())
			return
		}
		res.fail("%s", (&errors.ConnectivityError{Source: upstream.SourceName, Latency: latency, Err: err}).Error())
		return
	}
	if latency > v.cfg.SlowCheck {
		res.warn("upstream answered in %s", latency.Round(time.Millisecond))
	}
}

func (v *validator) checkSectors(ctx context.Context, _ uuid.UUID, res *CheckResult) {
	sectors, err := v.repos.Sectors.ListActive(dbctx.New(ctx))
	if err != nil {
		res.fail("load sectors: %v", err)
		return
	}
	if len(sectors) == 0 {
		res.fail("no active sectors")
		return
	}
	var unmapped []string
	for _, s := range sectors {
		if !s.Mapped() {
			unmapped = append(unmapped, s.Name)
		}
	}
	if len(unmapped) > 0 {
		res.fail("sectors without upstream code: %s", strings.Join(unmapped, ", "))
	}
}
