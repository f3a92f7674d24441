package ranking

import (
	"testing"

	"github.com/google/uuid"
)

func f(v float64) *float64 { return &v }

func scoreFor(t *testing.T, res CriterionResult, id uuid.UUID) SectorScore {
	t.Helper()
	for _, s := range res.Scores {
		if s.SectorID == id {
			return s
		}
	}
	t.Fatalf("no score for sector %s", id)
	return SectorScore{}
}

func TestRankCriterionTiesShareRank(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	e := NewEngine(DefaultRules())
	res, warns := e.RankCriterion(CriterionInput{
		CriterionID: uuid.New(),
		Name:        "productivity",
		Kind:        KindGeneric,
		Direction:   HigherIsBetter,
		Values: []SectorValue{
			{SectorID: a, Realized: f(80), Target: f(100)},
			{SectorID: b, Realized: f(80), Target: f(100)},
			{SectorID: c, Realized: f(75), Target: f(100)},
		},
	})
	if len(warns) != 0 {
		t.Fatalf("unexpected warnings: %+v", warns)
	}
	want := map[uuid.UUID]struct {
		rank  int
		score float64
	}{a: {1, 1.0}, b: {1, 1.0}, c: {3, 2.0}}
	for id, w := range want {
		s := scoreFor(t, res, id)
		if s.Rank == nil || *s.Rank != w.rank {
			t.Fatalf("sector %s rank: want=%d got=%v", id, w.rank, s.Rank)
		}
		if s.Score != w.score {
			t.Fatalf("sector %s score: want=%v got=%v", id, w.score, s.Score)
		}
	}
}

func TestRankCriterionDenseTies(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	rules := DefaultRules()
	rules.Ties = TieDense
	res, _ := NewEngine(rules).RankCriterion(CriterionInput{
		CriterionID: uuid.New(),
		Name:        "productivity",
		Direction:   HigherIsBetter,
		Values: []SectorValue{
			{SectorID: a, Realized: f(80), Target: f(100)},
			{SectorID: b, Realized: f(80), Target: f(100)},
			{SectorID: c, Realized: f(75), Target: f(100)},
		},
	})
	s := scoreFor(t, res, c)
	if s.Rank == nil || *s.Rank != 2 || s.Score != 1.5 {
		t.Fatalf("dense rank after tie: want=2/1.5 got=%v/%v", s.Rank, s.Score)
	}
}

func TestRankCriterionLowerIsBetter(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	e := NewEngine(DefaultRules())
	res, _ := e.RankCriterion(CriterionInput{
		CriterionID: uuid.New(),
		Direction:   LowerIsBetter,
		Values: []SectorValue{
			{SectorID: a, Realized: f(120), Target: f(100)},
			{SectorID: b, Realized: f(90), Target: f(100)},
		},
	})
	if got := *scoreFor(t, res, b).Rank; got != 1 {
		t.Fatalf("want=1 got=%d", got)
	}
	if got := scoreFor(t, res, a).Score; got != 1.5 {
		t.Fatalf("want=1.5 got=%v", got)
	}
}

func TestRankCriterionIsIdempotent(t *testing.T) {
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	in := CriterionInput{CriterionID: uuid.New(), Direction: HigherIsBetter}
	for i, id := range ids {
		in.Values = append(in.Values, SectorValue{SectorID: id, Realized: f(float64(50 + i*10)), Target: f(100)})
	}
	e := NewEngine(DefaultRules())
	first, _ := e.RankCriterion(in)
	second, _ := e.RankCriterion(in)
	if len(first.Scores) != len(second.Scores) {
		t.Fatalf("score count changed: %d vs %d", len(first.Scores), len(second.Scores))
	}
	for i := range first.Scores {
		x, y := first.Scores[i], second.Scores[i]
		if x.SectorID != y.SectorID || *x.Rank != *y.Rank || x.Score != y.Score {
			t.Fatalf("run differs at %d: %+v vs %+v", i, x, y)
		}
	}
	// fifth place reuses the last scale value
	if got := scoreFor(t, first, ids[0]).Score; got != 2.5 {
		t.Fatalf("want=2.5 got=%v", got)
	}
}

func TestRankCriterionMissingDataIsNeutral(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	e := NewEngine(DefaultRules())
	res, warns := e.RankCriterion(CriterionInput{
		CriterionID: uuid.New(),
		Direction:   HigherIsBetter,
		Values: []SectorValue{
			{SectorID: a, Realized: f(90), Target: f(100)},
			{SectorID: b, Realized: f(70)},
		},
	})
	s := scoreFor(t, res, b)
	if s.Rank != nil || s.Percent != nil {
		t.Fatalf("expected unranked sector, got %+v", s)
	}
	if s.Score != 1.75 {
		t.Fatalf("neutral: want=1.75 got=%v", s.Score)
	}
	if len(warns) != 1 {
		t.Fatalf("want one warning got=%d", len(warns))
	}
}

func TestRankCriterionUnrankedDirection(t *testing.T) {
	a := uuid.New()
	res, _ := NewEngine(DefaultRules()).RankCriterion(CriterionInput{
		CriterionID: uuid.New(),
		Values:      []SectorValue{{SectorID: a, Realized: f(10), Target: f(5)}},
	})
	s := scoreFor(t, res, a)
	if s.Rank != nil || s.Score != 1.75 {
		t.Fatalf("want neutral unranked, got %+v", s)
	}
	if s.Percent == nil || *s.Percent != 200 {
		t.Fatalf("percent still computed: got %v", s.Percent)
	}
}

func TestRankCriterionSpecialRule(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	e := NewEngine(DefaultRules())
	res, _ := e.RankCriterion(CriterionInput{
		CriterionID: uuid.New(),
		Name:        "Falta Func",
		Kind:        DefaultRules().KindFor("Falta  Func"),
		Direction:   LowerIsBetter,
		Values: []SectorValue{
			{SectorID: a, Realized: f(4), Target: f(2)},
			{SectorID: b, Realized: f(12), Target: f(20)},
		},
	})
	sa := scoreFor(t, res, a)
	if sa.Percent == nil || *sa.Percent != 0 {
		t.Fatalf("forced percent: want=0 got=%v", sa.Percent)
	}
	if *sa.Rank != 1 {
		t.Fatalf("want=1 got=%d", *sa.Rank)
	}
	sb := scoreFor(t, res, b)
	if *sb.Percent != 60 {
		t.Fatalf("want=60 got=%v", *sb.Percent)
	}
}

func TestRankCriterionSkipsWhenNoRealized(t *testing.T) {
	res, warns := NewEngine(DefaultRules()).RankCriterion(CriterionInput{
		CriterionID: uuid.New(),
		Direction:   HigherIsBetter,
		Values:      []SectorValue{{SectorID: uuid.New(), Target: f(10)}},
	})
	if !res.Skipped || len(res.Scores) != 0 {
		t.Fatalf("expected skipped result, got %+v", res)
	}
	if len(warns) != 1 {
		t.Fatalf("want one warning got=%d", len(warns))
	}
}

func TestAccumulatorFinal(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()
	acc := NewAccumulator([]uuid.UUID{a, b, c})
	acc.Add(CriterionResult{Scores: []SectorScore{{SectorID: a, Score: 1}, {SectorID: b, Score: 2}, {SectorID: c, Score: 1}}})
	acc.Add(CriterionResult{Scores: []SectorScore{{SectorID: a, Score: 1.5}, {SectorID: b, Score: 1}, {SectorID: c, Score: 1.5}}})
	acc.Add(CriterionResult{Skipped: true, Scores: []SectorScore{{SectorID: b, Score: 100}}})

	final := acc.Final()
	if len(final) != 3 {
		t.Fatalf("want=3 got=%d", len(final))
	}
	ranks := map[uuid.UUID]int{}
	for _, e := range final {
		ranks[e.SectorID] = e.Rank
	}
	if ranks[a] != 1 || ranks[c] != 1 || ranks[b] != 3 {
		t.Fatalf("unexpected ranks: %+v", final)
	}
	if final[2].TotalScore != 3 {
		t.Fatalf("want=3 got=%v", final[2].TotalScore)
	}
}

func TestRankPeriodSeedsEverySector(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	out := NewEngine(DefaultRules()).RankPeriod([]uuid.UUID{a, b}, []CriterionInput{{
		CriterionID: uuid.New(),
		Direction:   HigherIsBetter,
		Values:      []SectorValue{{SectorID: a, Realized: f(1), Target: f(1)}},
	}})
	if len(out.Final) != 2 {
		t.Fatalf("want=2 got=%d", len(out.Final))
	}
	if out.Final[0].SectorID != b || out.Final[0].TotalScore != 0 {
		t.Fatalf("sector without scores should lead with zero total: %+v", out.Final)
	}
}
