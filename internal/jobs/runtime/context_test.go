package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/sectorgoals-backend/internal/data/repos"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos/testutil"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/domain/goals"
	"github.com/yungbote/sectorgoals-backend/internal/notify"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
)

func newRun(t *testing.T) (context.Context, repos.CalculationRunRepo, *types.CalculationRun) {
	t.Helper()
	ctx := context.Background()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	period := testutil.SeedPeriod(t, ctx, db, 2025, 9, types.PeriodPlanning)
	runs := repos.NewCalculationRunRepo(db, log)
	run, err := runs.Create(dbctx.New(ctx), &types.CalculationRun{PeriodID: period.ID})
	if err != nil {
		t.Fatalf("create run: %v", err)
	}
	return ctx, runs, run
}

func TestAdvanceAndComplete(t *testing.T) {
	ctx, runs, run := newRun(t)
	rec := &notify.Recorder{}
	rc := NewContext(ctx, run, runs, rec, nil)

	if !rc.Advance(goals.RunValidating, "validating", 5) {
		t.Fatalf("Advance rejected")
	}
	if run.StartedAt == nil {
		t.Fatalf("StartedAt not set")
	}
	warn := []goals.RunWarning{{Severity: goals.SeverityLow, Message: "no holidays"}}
	if !rc.Complete(goals.RunCompletedWithWarnings, map[string]int{"sectors": 2}, warn) {
		t.Fatalf("Complete rejected")
	}

	got, err := runs.GetByID(dbctx.New(ctx), run.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State() != goals.RunCompletedWithWarnings || got.Progress != 100 || len(got.Result) == 0 || len(got.Warnings) == 0 {
		t.Fatalf("unexpected stored run: %+v", got)
	}
	evs := rec.ProgressEvents()
	if len(evs) != 2 || evs[0].Percent != 5 || evs[1].Percent != 100 {
		t.Fatalf("progress events: got=%+v", evs)
	}
}

func TestWritesStopAfterCancel(t *testing.T) {
	ctx, runs, run := newRun(t)
	rec := &notify.Recorder{}
	rc := NewContext(ctx, run, runs, rec, nil)

	if err := runs.UpdateFields(dbctx.New(ctx), run.ID, map[string]interface{}{
		"status":        string(goals.RunCancelled),
		"cancel_reason": "wrong period",
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if !rc.Cancelled() || run.CancelReason != "wrong period" {
		t.Fatalf("Cancelled: want=true reason got=%v %q", rc.Cancelled(), run.CancelReason)
	}
	if rc.Advance(goals.RunLoadingData, "loading", 15) {
		t.Fatalf("Advance must be rejected after cancel")
	}
	if rc.Fail("loading", errors.New("late"), nil) {
		t.Fatalf("Fail must be rejected after cancel")
	}
	if n := len(rec.ProgressEvents()); n != 0 {
		t.Fatalf("rejected writes must not emit, got=%d", n)
	}
}

func TestFailRecordsErrorAndTimestamp(t *testing.T) {
	ctx, runs, run := newRun(t)
	rc := NewContext(ctx, run, runs, nil, nil)

	if !rc.Fail("validating", errors.New("period is CLOSED"), nil) {
		t.Fatalf("Fail rejected")
	}
	got, _ := runs.GetByID(dbctx.New(ctx), run.ID)
	if got.State() != goals.RunError || got.Error != "period is CLOSED" || got.ErrorAt == nil || got.FinishedAt == nil {
		t.Fatalf("unexpected stored run: %+v", got)
	}
	if rc.Complete(goals.RunCompleted, nil, nil) {
		t.Fatalf("terminal run must not complete")
	}
}
