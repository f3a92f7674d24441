package validation

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/sectorgoals-backend/internal/cache"
	"github.com/yungbote/sectorgoals-backend/internal/config"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos/testutil"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/services"
	"github.com/yungbote/sectorgoals-backend/internal/upstream"
)

func check(t *testing.T, rep *Report, name string) CheckResult {
	t.Helper()
	for _, c := range rep.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %s missing from report", name)
	return CheckResult{}
}

func TestValidateAllChecksPass(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	set := repos.NewSet(db, log)

	period := testutil.SeedPeriod(t, ctx, db, 2025, 9, types.PeriodPlanning)
	testutil.SeedSector(t, ctx, db, "Norte", "N01")
	testutil.SeedHoliday(t, ctx, db, period.ID, time.Date(2025, 9, 7, 0, 0, 0, 0, time.UTC), "HOLIDAY")
	for _, name := range config.DefaultRequiredParameters {
		testutil.SeedNamedParameter(t, ctx, db, name, 2)
	}
	src := services.NewConfigurationSource(db, log, set.Parameters, cache.NewMemory(time.Minute))

	v := New(log, set, src, &upstream.Memory{}, config.NewStore(nil), Config{})
	rep, err := v.Validate(ctx, period.ID)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !rep.Valid || rep.Err() != nil {
		t.Fatalf("want valid report, got %+v", rep.Checks)
	}
	if len(rep.Checks) != 5 {
		t.Fatalf("checks: want=5 got=%d", len(rep.Checks))
	}
}

func TestValidateReportsEveryFailure(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	set := repos.NewSet(db, log)

	period := testutil.SeedPeriod(t, ctx, db, 2025, 9, types.PeriodActive)
	testutil.SeedSector(t, ctx, db, "Sul", "")
	testutil.SeedHoliday(t, ctx, db, period.ID, time.Date(2025, 9, 7, 0, 0, 0, 0, time.UTC), "")
	testutil.SeedNamedParameter(t, ctx, db, config.ParamFuelReductionPct, 150)
	src := services.NewConfigurationSource(db, log, set.Parameters, nil)
	down := &upstream.Memory{Fail: &errors.ConnectivityError{Source: "upstream", Err: fmt.Errorf("connection refused")}}

	v := New(log, set, src, down, config.NewStore(nil), Config{})
	rep, err := v.Validate(ctx, period.ID)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if rep.Valid {
		t.Fatalf("want invalid report")
	}
	for _, name := range []string{CheckPeriodStatus, CheckHolidays, CheckParameters, CheckConnectivity, CheckSectorMapping} {
		if c := check(t, rep, name); c.OK || len(c.Errors) == 0 {
			t.Fatalf("%s: want error, got %+v", name, c)
		}
	}
	if params := check(t, rep, CheckParameters); len(params.Errors) != 3 {
		t.Fatalf("parameters: want out of range + 2 missing, got %v", params.Errors)
	}
	if !errors.IsValidation(rep.Err()) {
		t.Fatalf("Err: want validation error, got %v", rep.Err())
	}
}

func TestValidateConnectivityTimeout(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	slow := &upstream.Memory{Latency: time.Second}

	v := New(log, set, nil, slow, config.NewStore(nil), Config{ConnectivityTimeout: 20 * time.Millisecond})
	rep, err := v.Validate(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c := check(t, rep, CheckConnectivity); c.OK {
		t.Fatalf("slow upstream must fail the check: %+v", c)
	}
	if c := check(t, rep, CheckPeriodStatus); c.OK {
		t.Fatalf("unknown period must fail: %+v", c)
	}
}

func TestValidateSlowCheckWarns(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	set := repos.NewSet(db, log)
	slow := &upstream.Memory{Latency: 30 * time.Millisecond}

	v := New(log, set, nil, slow, config.NewStore(nil), Config{SlowCheck: time.Millisecond})
	rep, _ := v.Validate(context.Background(), uuid.New())
	c := check(t, rep, CheckConnectivity)
	if !c.OK || len(c.Warnings) != 1 {
		t.Fatalf("slow but reachable upstream: want ok with warning, got %+v", c)
	}
}

func TestValidateParameterRangesPerName(t *testing.T) {
	db := testutil.DB(t)
	log := testutil.Logger(t)
	ctx := context.Background()
	set := repos.NewSet(db, log)

	period := testutil.SeedPeriod(t, ctx, db, 2025, 9, types.PeriodPlanning)
	testutil.SeedSector(t, ctx, db, "Norte", "N01")
	testutil.SeedHoliday(t, ctx, db, period.ID, time.Date(2025, 9, 7, 0, 0, 0, 0, time.UTC), "HOLIDAY")
	testutil.SeedNamedParameter(t, ctx, db, config.ParamFuelReductionPct, 2)
	testutil.SeedNamedParameter(t, ctx, db, config.ParamFuelLookbackMonths, 2.5)
	testutil.SeedNamedParameter(t, ctx, db, config.ParamCostLookbackMonths, 240)
	testutil.SeedNamedParameter(t, ctx, db, "fleet_size", 450)
	src := services.NewConfigurationSource(db, log, set.Parameters, nil)

	rules := config.Defaults()
	rules.RequiredParameters = []string{
		config.ParamFuelReductionPct,
		config.ParamFuelLookbackMonths,
		config.ParamCostLookbackMonths,
		"fleet_size",
	}
	v := New(log, set, src, &upstream.Memory{}, config.NewStore(rules), Config{})
	rep, err := v.Validate(ctx, period.ID)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	params := check(t, rep, CheckParameters)
	if len(params.Errors) != 2 {
		t.Fatalf("parameters: want fractional + oversized lookback, got %v", params.Errors)
	}
	for _, e := range params.Errors {
		if strings.Contains(e, "fleet_size") || strings.Contains(e, config.ParamFuelReductionPct) {
			t.Fatalf("unexpected failure: %s", e)
		}
	}
}
