package forecast

import (
	"fmt"
	"time"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/safemath"
	"github.com/yungbote/sectorgoals-backend/internal/stats"
)

const (
	DefaultFuelLookbackMonths = 3
	// TrendDeadband is the efficiency slope, per month, below which the
	// trend counts as stable.
	TrendDeadband = 0.01
)

const (
	SourceAggregates = "aggregates"
	SourceDaily      = "daily"
)

type TrendDirection string

const (
	TrendImproving TrendDirection = "IMPROVING"
	TrendStable    TrendDirection = "STABLE"
	TrendDegrading TrendDirection = "DEGRADING"
)

// ClassifyTrend applies the correlation gate and then the deadband.
func ClassifyTrend(t stats.Trend) TrendDirection {
	if !t.Reliable() {
		return TrendStable
	}
	switch {
	case t.Slope > TrendDeadband:
		return TrendImproving
	case t.Slope < -TrendDeadband:
		return TrendDegrading
	default:
		return TrendStable
	}
}

type FuelInput struct {
	ProjectedDistance float64
	// ReductionPct is the improvement demanded from the sector, in percent.
	ReductionPct   float64
	LookbackMonths int
	// Aggregates is the primary source; Daily is used only when it is empty.
	Aggregates       []MonthlyAggregate
	Daily            []DailyMetric
	QualityThreshold float64
}

type FuelResult struct {
	Source         string         `json:"source"`
	MonthsUsed     int            `json:"months_used"`
	TotalDistance  float64        `json:"total_distance"`
	TotalFuel      float64        `json:"total_fuel"`
	Efficiency     float64        `json:"efficiency"`
	RawForecast    float64        `json:"raw_forecast"`
	ReductionPct   float64        `json:"reduction_pct"`
	Goal           float64        `json:"goal"`
	Trend          stats.Trend    `json:"trend"`
	TrendDirection TrendDirection `json:"trend_direction"`
	Quality        Quality        `json:"quality"`
	Warnings       []string       `json:"warnings,omitempty"`
}

// Fuel converts projected distance into a fuel goal using historical
// distance-per-fuel efficiency.
func Fuel(in FuelInput) (FuelResult, error) {
	lookback := in.LookbackMonths
	if lookback <= 0 {
		lookback = DefaultFuelLookbackMonths
	}
	res := FuelResult{Source: SourceAggregates, ReductionPct: in.ReductionPct}
	months := rollupMonths(in.Aggregates)
	if len(months) == 0 {
		res.Source = SourceDaily
		months = MonthsFromDaily(in.Daily)
		if len(months) > 0 {
			res.Warnings = append(res.Warnings, "monthly aggregates empty; fuel history taken from daily rows")
		}
	}
	if len(months) > lookback {
		months = months[len(months)-lookback:]
	}
	res.MonthsUsed = len(months)

	efficiencies := make([]float64, 0, len(months))
	for _, m := range months {
		res.TotalDistance += m.Distance
		res.TotalFuel += m.Fuel
		if eff, ok := safemath.SafeDiv(m.Distance, m.Fuel); ok && m.Fuel > 0 {
			efficiencies = append(efficiencies, eff)
		}
	}
	if res.TotalFuel <= 0 {
		return res, &errors.DataInsufficiencyError{Metric: "fuel consumption", Have: len(months), Need: 1}
	}
	eff, ok := safemath.SafeDiv(res.TotalDistance, res.TotalFuel)
	if !ok || eff <= 0 {
		return res, &errors.DataInsufficiencyError{Metric: "fuel efficiency", Have: len(months), Need: 1}
	}
	res.Efficiency = safemath.Round4(eff)
	raw := in.ProjectedDistance / eff
	res.RawForecast = safemath.Round2(raw)
	res.Goal = safemath.Round2(raw * (1 - in.ReductionPct/100))

	res.Trend = stats.Fit(efficiencies)
	res.TrendDirection = ClassifyTrend(res.Trend)
	if res.TrendDirection == TrendDegrading {
		res.Warnings = append(res.Warnings, fmt.Sprintf("fuel efficiency degrading (slope %.4f/month)", res.Trend.Slope))
	}

	res.Quality = assessQuality(len(months), lookback, efficiencies)
	if res.Quality.Low(in.QualityThreshold) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("fuel data quality %.2f below %.2f", res.Quality.Score, thresholdOrDefault(in.QualityThreshold)))
	}
	return res, nil
}

// LookbackWindow returns [from, to) covering the months before reference.
func LookbackWindow(reference time.Time, months int) (time.Time, time.Time) {
	to := monthOf(reference)
	return to.AddDate(0, -months, 0), to
}
