package forecast

import (
	"fmt"
	"time"

	"github.com/yungbote/sectorgoals-backend/internal/calendar"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/safemath"
	"github.com/yungbote/sectorgoals-backend/internal/stats"
)

// MissingBucketPenalty is subtracted from pattern completeness for every day
// type the target month needs but the history never observed.
const MissingBucketPenalty = 0.3

const (
	minConfidence = 0.1
	maxConfidence = 1.0
)

type DistanceInput struct {
	Year  int
	Month time.Month
	// History holds the prior month's daily rows for one sector. Several
	// vehicles on the same date are summed.
	History []DailyMetric
	// HistoryDays classifies the prior month's holidays.
	HistoryDays []calendar.Day
	// TargetDays classifies the target month's holidays.
	TargetDays       []calendar.Day
	QualityThreshold float64
}

type BucketStat struct {
	DayType   string  `json:"day_type"`
	Samples   int     `json:"samples"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Days      int     `json:"days"`
	Projected float64 `json:"projected"`
	Fallback  bool    `json:"fallback"`
}

type DistanceResult struct {
	Projected           float64            `json:"projected"`
	Counts              calendar.DayCounts `json:"counts"`
	Buckets             []BucketStat       `json:"buckets"`
	Quality             Quality            `json:"quality"`
	PatternCompleteness float64            `json:"pattern_completeness"`
	Confidence          float64            `json:"confidence"`
	Warnings            []string           `json:"warnings,omitempty"`
}

// Distance projects the target month's distance from the prior month's
// per-day-type averages.
func Distance(in DistanceInput) (DistanceResult, error) {
	var res DistanceResult
	perDay := map[string]float64{}
	dates := map[string]time.Time{}
	for _, r := range in.History {
		k := r.Date.Format("2006-01-02")
		perDay[k] += r.Distance
		dates[k] = r.Date
	}
	if len(perDay) == 0 {
		return res, &errors.DataInsufficiencyError{Metric: "daily distance", Have: 0, Need: 1}
	}

	histIdx := calendar.NewIndex(in.HistoryDays)
	buckets := map[calendar.DayType][]float64{}
	all := make([]float64, 0, len(perDay))
	for k, v := range perDay {
		dt := calendar.DayTypeOf(dates[k], histIdx)
		buckets[dt] = append(buckets[dt], v)
		all = append(all, v)
	}
	overall := stats.Mean(all)

	prior := time.Date(in.Year, in.Month-1, 1, 0, 0, 0, 0, time.UTC)
	expected := calendar.DaysIn(prior.Year(), prior.Month())

	res.Counts = calendar.Classify(in.Year, in.Month, in.TargetDays)
	pattern := 1.0
	var consistency []float64
	var projected float64
	for _, dt := range calendar.DayTypes {
		samples := buckets[dt]
		b := BucketStat{DayType: dt.String(), Samples: len(samples), Days: res.Counts.Get(dt)}
		if len(samples) > 0 {
			b.Mean = stats.Mean(samples)
			b.StdDev = stats.StdDev(samples)
			consistency = append(consistency, stats.Consistency(samples))
		} else if b.Days > 0 {
			b.Mean = overall
			b.Fallback = true
			pattern -= MissingBucketPenalty
			res.Warnings = append(res.Warnings, fmt.Sprintf("no %s history; using overall daily mean", dt))
		}
		b.Projected = safemath.Round2(b.Mean * float64(b.Days))
		projected += b.Mean * float64(b.Days)
		b.Mean = safemath.Round2(b.Mean)
		b.StdDev = safemath.Round2(b.StdDev)
		res.Buckets = append(res.Buckets, b)
	}

	res.Quality = Quality{
		Completeness: stats.Completeness(len(perDay), expected),
		Consistency:  stats.Mean(consistency),
	}
	res.Quality.Score = (res.Quality.Completeness + res.Quality.Consistency) / 2
	res.PatternCompleteness = safemath.Clamp(pattern, 0, 1)
	res.Confidence = safemath.Round4(safemath.Clamp(res.Quality.Score*res.PatternCompleteness, minConfidence, maxConfidence))
	res.Projected = safemath.Round2(projected)
	if res.Quality.Low(in.QualityThreshold) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("distance data quality %.2f below %.2f", res.Quality.Score, thresholdOrDefault(in.QualityThreshold)))
	}
	return res, nil
}
