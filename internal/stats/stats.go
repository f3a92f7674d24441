// Package stats holds the small amount of statistics the forecasting
// algorithms need: least-squares trend, dispersion and data quality signals.
package stats

import "math"

// ReliableCorrelation is the minimum |r| for a slope to count as a trend.
const ReliableCorrelation = 0.3

// Trend is an ordinary least squares fit of a series against its index.
type Trend struct {
	Slope       float64 `json:"slope"`
	Correlation float64 `json:"correlation"`
}

// Reliable reports whether the fit's correlation clears ReliableCorrelation.
func (t Trend) Reliable() bool {
	return math.Abs(t.Correlation) >= ReliableCorrelation
}

// Fit regresses series against x = 0..n-1.
// Fewer than two points, or a flat series, yield a zero correlation.
func Fit(series []float64) Trend {
	n := len(series)
	if n < 2 {
		return Trend{}
	}
	var sumX, sumY float64
	for i, y := range series {
		sumX += float64(i)
		sumY += y
	}
	meanX := sumX / float64(n)
	meanY := sumY / float64(n)

	var sxy, sxx, syy float64
	for i, y := range series {
		dx := float64(i) - meanX
		dy := y - meanY
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 {
		return Trend{}
	}
	t := Trend{Slope: sxy / sxx}
	if syy > 0 {
		t.Correlation = sxy / math.Sqrt(sxx*syy)
	}
	if math.IsNaN(t.Slope) || math.IsInf(t.Slope, 0) {
		t.Slope = 0
	}
	if math.IsNaN(t.Correlation) {
		t.Correlation = 0
	}
	return t
}

func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev is the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	m := Mean(values)
	var ss float64
	for _, v := range values {
		d := v - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)))
}

// CoefficientOfVariation is stddev/|mean|; 0 when the mean is 0.
func CoefficientOfVariation(values []float64) float64 {
	m := Mean(values)
	if m == 0 {
		return 0
	}
	return StdDev(values) / math.Abs(m)
}

// Completeness is the fraction of expected observations present, in [0,1].
func Completeness(have, want int) float64 {
	if want <= 0 {
		return 0
	}
	return clamp01(float64(have) / float64(want))
}

// Consistency is the inverse of relative dispersion, in [0,1].
// An empty series has no consistency.
func Consistency(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return clamp01(1 - CoefficientOfVariation(values))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
