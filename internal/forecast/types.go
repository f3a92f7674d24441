// Package forecast turns historical sector metrics into next-period goals.
// Every algorithm is a pure function over rows fetched by the caller.
package forecast

import (
	"sort"
	"time"

	"github.com/yungbote/sectorgoals-backend/internal/stats"
)

// QualityThreshold is the default data quality score below which a forecast
// carries a warning. Low quality never blocks a forecast.
const QualityThreshold = 0.7

func thresholdOrDefault(t float64) float64 {
	if t <= 0 {
		return QualityThreshold
	}
	return t
}

// DailyMetric is one upstream row for a sector (and optionally a vehicle) on
// one day.
type DailyMetric struct {
	SectorCode  string    `json:"sector_code"`
	VehicleCode string    `json:"vehicle_code,omitempty"`
	Date        time.Time `json:"date"`
	Distance    float64   `json:"distance"`
	Fuel        float64   `json:"fuel"`
	TireCost    float64   `json:"tire_cost"`
	PartsCost   float64   `json:"parts_cost"`
}

// MonthlyAggregate is a pre-aggregated upstream row. Month is the first day
// of the month in UTC.
type MonthlyAggregate struct {
	SectorCode  string    `json:"sector_code"`
	VehicleCode string    `json:"vehicle_code,omitempty"`
	Month       time.Time `json:"month"`
	Distance    float64   `json:"distance"`
	Fuel        float64   `json:"fuel"`
	TireCost    float64   `json:"tire_cost"`
	PartsCost   float64   `json:"parts_cost"`
}

// Category is a cost goal category.
type Category string

const (
	CategoryTires Category = "TIRES"
	CategoryParts Category = "PARTS"
)

func (c Category) Valid() bool { return c == CategoryTires || c == CategoryParts }

func (c Category) costOf(a MonthlyAggregate) float64 {
	if c == CategoryTires {
		return a.TireCost
	}
	return a.PartsCost
}

// Quality combines completeness (share of expected history present) and
// consistency (inverse relative dispersion).
type Quality struct {
	Completeness float64 `json:"completeness"`
	Consistency  float64 `json:"consistency"`
	Score        float64 `json:"score"`
}

// Low reports whether the score falls under threshold. Zero selects
// QualityThreshold.
func (q Quality) Low(threshold float64) bool { return q.Score < thresholdOrDefault(threshold) }

func assessQuality(have, want int, values []float64) Quality {
	q := Quality{
		Completeness: stats.Completeness(have, want),
		Consistency:  stats.Consistency(values),
	}
	q.Score = (q.Completeness + q.Consistency) / 2
	return q
}

// FilterDaily keeps the rows of one sector.
func FilterDaily(rows []DailyMetric, sectorCode string) []DailyMetric {
	out := make([]DailyMetric, 0, len(rows))
	for _, r := range rows {
		if r.SectorCode == sectorCode {
			out = append(out, r)
		}
	}
	return out
}

// FilterMonthly keeps the aggregates of one sector.
func FilterMonthly(rows []MonthlyAggregate, sectorCode string) []MonthlyAggregate {
	out := make([]MonthlyAggregate, 0, len(rows))
	for _, r := range rows {
		if r.SectorCode == sectorCode {
			out = append(out, r)
		}
	}
	return out
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// rollupMonths sums aggregates per month, oldest first.
func rollupMonths(rows []MonthlyAggregate) []MonthlyAggregate {
	byMonth := map[time.Time]*MonthlyAggregate{}
	for _, r := range rows {
		m := monthOf(r.Month)
		acc, ok := byMonth[m]
		if !ok {
			acc = &MonthlyAggregate{SectorCode: r.SectorCode, Month: m}
			byMonth[m] = acc
		}
		acc.Distance += r.Distance
		acc.Fuel += r.Fuel
		acc.TireCost += r.TireCost
		acc.PartsCost += r.PartsCost
	}
	out := make([]MonthlyAggregate, 0, len(byMonth))
	for _, v := range byMonth {
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// MonthsFromDaily folds daily rows into monthly aggregates.
func MonthsFromDaily(rows []DailyMetric) []MonthlyAggregate {
	agg := make([]MonthlyAggregate, 0, len(rows))
	for _, r := range rows {
		agg = append(agg, MonthlyAggregate{
			SectorCode:  r.SectorCode,
			VehicleCode: r.VehicleCode,
			Month:       monthOf(r.Date),
			Distance:    r.Distance,
			Fuel:        r.Fuel,
			TireCost:    r.TireCost,
			PartsCost:   r.PartsCost,
		})
	}
	return rollupMonths(agg)
}
