package services

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/sectorgoals-backend/internal/data/repos/testutil"
	types "github.com/yungbote/sectorgoals-backend/internal/domain"
	"github.com/yungbote/sectorgoals-backend/internal/forecast"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/dbctx"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
)

func seedRanking(t *testing.T, fx *fixture, status types.PeriodStatus) (*types.Period, []*types.Sector) {
	t.Helper()
	ctx := context.Background()
	period := testutil.SeedPeriod(t, ctx, fx.db, 2025, 8, status)
	sectors := []*types.Sector{
		testutil.SeedSector(t, ctx, fx.db, "Norte", "N01"),
		testutil.SeedSector(t, ctx, fx.db, "Sul", "S01"),
		testutil.SeedSector(t, ctx, fx.db, "Leste", "L01"),
	}
	km := testutil.SeedCriterion(t, ctx, fx.db, "Km Rodado", "HIGHER")
	testutil.SeedEntry(t, ctx, fx.db, period.ID, km.ID, nil, nil, f64(100))
	for i, realized := range []float64{120, 90, 120} {
		testutil.SeedEntry(t, ctx, fx.db, period.ID, km.ID, &sectors[i].ID, f64(realized), nil)
	}
	return period, sectors
}

func TestRankingServiceCalculate(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	period, sectors := seedRanking(t, fx, types.PeriodActive)

	out, err := fx.rankings.Calculate(ctx, period.ID, "ops")
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if len(out.Criteria) != 1 || out.Criteria[0].Skipped {
		t.Fatalf("criteria: got %+v", out.Criteria)
	}

	final, err := fx.rankings.Standings(dbctx.New(ctx), period.ID)
	if err != nil {
		t.Fatalf("Standings: %v", err)
	}
	ranks := map[uuid.UUID]int{}
	for _, f := range final {
		ranks[f.SectorID] = f.Rank
	}
	want := []int{1, 3, 1}
	for i, s := range sectors {
		if ranks[s.ID] != want[i] {
			t.Fatalf("rank of %s: want=%d got=%d", s.Name, want[i], ranks[s.ID])
		}
	}

	scores, err := fx.repos.Scores.ListScores(dbctx.New(ctx), period.ID)
	if err != nil || len(scores) != 3 {
		t.Fatalf("scores: want=3 got=%d err=%v", len(scores), err)
	}

	// a second run replaces instead of appending
	if _, err := fx.rankings.Calculate(ctx, period.ID, "ops"); err != nil {
		t.Fatalf("recalculate: %v", err)
	}
	scores, _ = fx.repos.Scores.ListScores(dbctx.New(ctx), period.ID)
	if len(scores) != 3 {
		t.Fatalf("scores after rerun: want=3 got=%d", len(scores))
	}
}

func TestRankingServiceRequiresActivePeriod(t *testing.T) {
	fx := newFixture(t)
	period, _ := seedRanking(t, fx, types.PeriodPlanning)
	if _, err := fx.rankings.Calculate(context.Background(), period.ID, "ops"); !errors.IsValidation(err) {
		t.Fatalf("want validation error, got %v", err)
	}
}

func TestPeriodTransitions(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	period, _ := seedRanking(t, fx, types.PeriodPlanning)

	if _, err := fx.periods.Transition(ctx, period.ID, types.PeriodClosed, "ops"); !errors.IsValidation(err) {
		t.Fatalf("PLANNING -> CLOSED: want validation error, got %v", err)
	}
	if _, err := fx.periods.Transition(ctx, period.ID, types.PeriodActive, "ops"); err != nil {
		t.Fatalf("PLANNING -> ACTIVE: %v", err)
	}
	closed, err := fx.periods.Transition(ctx, period.ID, types.PeriodClosed, "ops")
	if err != nil {
		t.Fatalf("ACTIVE -> CLOSED: %v", err)
	}
	if closed.State() != types.PeriodClosed {
		t.Fatalf("status: want=CLOSED got=%s", closed.Status)
	}
	final, _ := fx.rankings.Standings(dbctx.New(ctx), period.ID)
	if len(final) != 3 {
		t.Fatalf("closing must rank the period: want=3 got=%d", len(final))
	}
	if _, err := fx.periods.Create(ctx, 2025, 8); !errors.IsConflict(err) {
		t.Fatalf("duplicate period: want conflict, got %v", err)
	}
}

func TestCarryoverLookup(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	prev := testutil.SeedPeriod(t, ctx, fx.db, 2025, 8, types.PeriodClosed)
	cur := testutil.SeedPeriod(t, ctx, fx.db, 2025, 9, types.PeriodPlanning)
	sector := testutil.SeedSector(t, ctx, fx.db, "Norte", "N01")
	tires := testutil.SeedCriterion(t, ctx, fx.db, "Pneus", "LOWER")
	testutil.SeedEntry(t, ctx, fx.db, prev.ID, tires.ID, nil, nil, f64(1200))
	testutil.SeedEntry(t, ctx, fx.db, prev.ID, tires.ID, &sector.ID, f64(1000), nil)

	lookup := NewCarryoverLookup(fx.db, testutil.Logger(t), fx.repos.Periods, fx.repos.Entries)
	got, err := lookup.PriorBalances(dbctx.New(ctx), cur, map[forecast.Category]uuid.UUID{forecast.CategoryTires: tires.ID})
	if err != nil {
		t.Fatalf("PriorBalances: %v", err)
	}
	bal := got[sector.ID][forecast.CategoryTires]
	if bal.ApprovedTarget == nil || *bal.ApprovedTarget != 1200 || bal.RealizedSpend == nil || *bal.RealizedSpend != 1000 {
		t.Fatalf("balance: got %+v", bal)
	}

	none, err := lookup.PriorBalances(dbctx.New(ctx), prev, map[forecast.Category]uuid.UUID{forecast.CategoryTires: tires.ID})
	if err != nil || len(none) != 0 {
		t.Fatalf("no previous period: want empty got %v err=%v", none, err)
	}
}
