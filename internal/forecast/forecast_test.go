package forecast

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/sectorgoals-backend/internal/calendar"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
)

func ptr(v float64) *float64 { return &v }

func augustHistory(include func(time.Weekday) bool) []DailyMetric {
	var rows []DailyMetric
	for d := 1; d <= 31; d++ {
		date := time.Date(2025, time.August, d, 0, 0, 0, 0, time.UTC)
		if !include(date.Weekday()) {
			continue
		}
		km := 100.0
		switch date.Weekday() {
		case time.Saturday:
			km = 50
		case time.Sunday:
			km = 20
		}
		// two vehicles per day, summed per date
		rows = append(rows,
			DailyMetric{SectorCode: "G1", VehicleCode: "V1", Date: date, Distance: km / 2},
			DailyMetric{SectorCode: "G1", VehicleCode: "V2", Date: date, Distance: km / 2},
		)
	}
	return rows
}

var september = []calendar.Day{{Date: time.Date(2025, time.September, 15, 0, 0, 0, 0, time.UTC), Classification: calendar.Holiday}}

func TestDistanceProjectsByDayType(t *testing.T) {
	res, err := Distance(DistanceInput{
		Year:       2025,
		Month:      time.September,
		History:    augustHistory(func(time.Weekday) bool { return true }),
		TargetDays: september,
	})
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if res.Projected != 2400 {
		t.Fatalf("projected: want=2400 got=%v", res.Projected)
	}
	if res.Confidence != 1 {
		t.Fatalf("confidence: want=1 got=%v", res.Confidence)
	}
	if len(res.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", res.Warnings)
	}
}

func TestDistanceMissingBucketFallsBack(t *testing.T) {
	res, err := Distance(DistanceInput{
		Year:    2025,
		Month:   time.September,
		History: augustHistory(func(w time.Weekday) bool { return w != time.Saturday && w != time.Sunday }),
	})
	if err != nil {
		t.Fatalf("Distance: %v", err)
	}
	if res.Projected != 3000 {
		t.Fatalf("projected: want=3000 got=%v", res.Projected)
	}
	if math.Abs(res.PatternCompleteness-0.4) > 1e-9 {
		t.Fatalf("pattern completeness: want=0.4 got=%v", res.PatternCompleteness)
	}
	if res.Confidence < 0.1 || res.Confidence >= 0.5 {
		t.Fatalf("confidence out of range: %v", res.Confidence)
	}
	fallbacks := 0
	for _, b := range res.Buckets {
		if b.Fallback {
			fallbacks++
		}
	}
	if fallbacks != 2 {
		t.Fatalf("fallback buckets: want=2 got=%d", fallbacks)
	}
}

func TestDistanceNoHistory(t *testing.T) {
	_, err := Distance(DistanceInput{Year: 2025, Month: time.September})
	if !errors.IsDataInsufficiency(err) {
		t.Fatalf("want DataInsufficiencyError got=%v", err)
	}
}

func months(n int, fn func(i int, m time.Time) MonthlyAggregate) []MonthlyAggregate {
	out := make([]MonthlyAggregate, 0, n)
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		out = append(out, fn(i, start.AddDate(0, i, 0)))
	}
	return out
}

func TestFuelGoalFromAggregates(t *testing.T) {
	res, err := Fuel(FuelInput{
		ProjectedDistance: 1200,
		ReductionPct:      1.5,
		Aggregates: months(5, func(i int, m time.Time) MonthlyAggregate {
			return MonthlyAggregate{SectorCode: "G1", Month: m, Distance: 1000, Fuel: 100}
		}),
	})
	if err != nil {
		t.Fatalf("Fuel: %v", err)
	}
	if res.Source != SourceAggregates || res.MonthsUsed != 3 {
		t.Fatalf("source/months: got %s/%d", res.Source, res.MonthsUsed)
	}
	if res.RawForecast != 120 || res.Goal != 118.2 {
		t.Fatalf("raw/goal: want=120/118.2 got=%v/%v", res.RawForecast, res.Goal)
	}
	if res.TrendDirection != TrendStable {
		t.Fatalf("trend: want=%s got=%s", TrendStable, res.TrendDirection)
	}
}

func hasQualityWarning(warnings []string) bool {
	for _, w := range warnings {
		if strings.Contains(w, "data quality") {
			return true
		}
	}
	return false
}

func TestFuelQualityThresholdFromRules(t *testing.T) {
	fuel := []float64{100, 110, 90}
	in := FuelInput{
		ProjectedDistance: 1200,
		Aggregates: months(5, func(i int, m time.Time) MonthlyAggregate {
			return MonthlyAggregate{SectorCode: "G1", Month: m, Distance: 1000, Fuel: fuel[i%3]}
		}),
	}
	res, err := Fuel(in)
	if err != nil {
		t.Fatalf("Fuel: %v", err)
	}
	if res.Quality.Score < QualityThreshold || res.Quality.Score >= 0.99 {
		t.Fatalf("quality score: want in [0.7,0.99) got=%v", res.Quality.Score)
	}
	if hasQualityWarning(res.Warnings) {
		t.Fatalf("default threshold: unexpected warning %v", res.Warnings)
	}

	in.QualityThreshold = 0.99
	res, err = Fuel(in)
	if err != nil {
		t.Fatalf("Fuel: %v", err)
	}
	if !hasQualityWarning(res.Warnings) {
		t.Fatalf("threshold 0.99: want quality warning got=%v", res.Warnings)
	}
}

func TestCostQualityThresholdFromRules(t *testing.T) {
	cost := []float64{1000, 1300, 700}
	in := CostInput{
		Category:          CategoryTires,
		ProjectedDistance: 1000,
		Months:            3,
		Aggregates: months(3, func(i int, m time.Time) MonthlyAggregate {
			return MonthlyAggregate{SectorCode: "G1", Month: m, Distance: 1000, TireCost: cost[i]}
		}),
	}
	res, err := Cost(in)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	low := hasQualityWarning(res.Warnings)
	in.QualityThreshold = 1
	res, err = Cost(in)
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if low || !hasQualityWarning(res.Warnings) {
		t.Fatalf("quality warning: want default=false strict=true got=%v/%v (score %v)", low, hasQualityWarning(res.Warnings), res.Quality.Score)
	}
}

func TestFuelFallsBackToDaily(t *testing.T) {
	daily := []DailyMetric{
		{SectorCode: "G1", Date: time.Date(2025, time.July, 3, 0, 0, 0, 0, time.UTC), Distance: 500, Fuel: 50},
		{SectorCode: "G1", Date: time.Date(2025, time.August, 3, 0, 0, 0, 0, time.UTC), Distance: 500, Fuel: 50},
	}
	res, err := Fuel(FuelInput{ProjectedDistance: 100, Daily: daily})
	if err != nil {
		t.Fatalf("Fuel: %v", err)
	}
	if res.Source != SourceDaily {
		t.Fatalf("source: want=%s got=%s", SourceDaily, res.Source)
	}
	if res.Efficiency != 10 {
		t.Fatalf("efficiency: want=10 got=%v", res.Efficiency)
	}
}

func TestFuelImprovingTrend(t *testing.T) {
	res, err := Fuel(FuelInput{
		ProjectedDistance: 1000,
		Aggregates: months(3, func(i int, m time.Time) MonthlyAggregate {
			return MonthlyAggregate{Month: m, Distance: float64(800 + 100*i), Fuel: 100}
		}),
	})
	if err != nil {
		t.Fatalf("Fuel: %v", err)
	}
	if res.TrendDirection != TrendImproving {
		t.Fatalf("trend: want=%s got=%s", TrendImproving, res.TrendDirection)
	}
}

func TestFuelWithoutConsumption(t *testing.T) {
	_, err := Fuel(FuelInput{
		ProjectedDistance: 1000,
		Aggregates:        []MonthlyAggregate{{Month: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Distance: 1000}},
	})
	if !errors.IsDataInsufficiency(err) {
		t.Fatalf("want DataInsufficiencyError got=%v", err)
	}
}

func TestCostDeductsCarryover(t *testing.T) {
	rows := months(12, func(i int, m time.Time) MonthlyAggregate {
		return MonthlyAggregate{SectorCode: "G1", VehicleCode: "V1", Month: m, Distance: 600, TireCost: 300}
	})
	rows = append(rows, months(12, func(i int, m time.Time) MonthlyAggregate {
		return MonthlyAggregate{SectorCode: "G1", VehicleCode: "V2", Month: m, Distance: 400, TireCost: 200}
	})...)

	res, err := Cost(CostInput{
		Category:          CategoryTires,
		ProjectedDistance: 1000,
		AwardPct:          10,
		Carryover:         120,
		Aggregates:        rows,
	})
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if res.CostPerKm != 0.5 || res.RawForecast != 500 || res.BaseGoal != 450 || res.FinalGoal != 330 {
		t.Fatalf("unexpected cost result: %+v", res)
	}
	if len(res.Vehicles) != 2 || res.Vehicles[0].VehicleCode != "V1" || res.Vehicles[0].CostPerKm != 0.5 {
		t.Fatalf("unexpected breakdown: %+v", res.Vehicles)
	}
}

func TestCostFloorsAtZero(t *testing.T) {
	res, err := Cost(CostInput{
		Category:          CategoryParts,
		ProjectedDistance: 100,
		Carryover:         1000,
		Aggregates: months(2, func(i int, m time.Time) MonthlyAggregate {
			return MonthlyAggregate{Month: m, Distance: 100, PartsCost: 10}
		}),
	})
	if err != nil {
		t.Fatalf("Cost: %v", err)
	}
	if res.FinalGoal != 0 || len(res.Warnings) == 0 {
		t.Fatalf("want zero goal with warning, got %+v", res)
	}
}

func TestCarryover(t *testing.T) {
	cases := []struct {
		name   string
		in     CarryoverInput
		expect float64
	}{
		{"within tolerance", CarryoverInput{ApprovedTarget: ptr(1000), RealizedSpend: ptr(1079), TolerancePct: 8}, 0},
		{"over tolerance", CarryoverInput{ApprovedTarget: ptr(1000), RealizedSpend: ptr(1200), TolerancePct: 8}, 120},
		{"no prior target", CarryoverInput{RealizedSpend: ptr(1200), TolerancePct: 8}, 0},
		{"no realized", CarryoverInput{ApprovedTarget: ptr(1000), TolerancePct: 8}, 0},
	}
	for _, tc := range cases {
		if got := Carryover(tc.in); got != tc.expect {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.expect, got)
		}
	}
}
