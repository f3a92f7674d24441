// Package safemath guards ratio and percentage computations so that every
// stored value fits a NUMERIC(10,4) column.
package safemath

import (
	"math"

	"github.com/shopspring/decimal"
)

// Bound is the largest magnitude a stored percentage may take.
const Bound = 999999.9999

const (
	PercentPlaces = 4
	ScorePlaces   = 2
)

// PercentOf expresses realized as a percentage of target.
//
//   - target == 0 and realized == 0: 100 (goal met)
//   - target == 0 and realized > 0: Bound ("infinite" overshoot)
//   - target == 0 and realized < 0: 0
//   - otherwise (realized/target)*100, clamped to ±Bound and rounded to 4 places
//
// A nil result means the ratio is not finite and the value is unrankable.
func PercentOf(realized, target float64) *float64 {
	if !finite(realized) || !finite(target) {
		return nil
	}
	if target == 0 {
		var v float64
		switch {
		case realized == 0:
			v = 100
		case realized > 0:
			v = Bound
		default:
			v = 0
		}
		return &v
	}
	ratio := realized / target * 100
	if !finite(ratio) {
		return nil
	}
	if math.Abs(ratio) > Bound {
		v := math.Copysign(Bound, ratio)
		return &v
	}
	v := Round(ratio, PercentPlaces)
	return &v
}

// Round rounds half away from zero using decimal arithmetic so 2.675 rounds
// to 2.68 instead of inheriting binary float error.
func Round(v float64, places int32) float64 {
	if !finite(v) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func Round2(v float64) float64 { return Round(v, ScorePlaces) }
func Round4(v float64) float64 { return Round(v, PercentPlaces) }

// SafeDiv returns a/b and false when the quotient is undefined.
func SafeDiv(a, b float64) (float64, bool) {
	if b == 0 || !finite(a) || !finite(b) {
		return 0, false
	}
	q := a / b
	if !finite(q) {
		return 0, false
	}
	return q, true
}

// Clamp limits v to [lo, hi]. NaN collapses to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampStored keeps an arbitrary value inside the storage bound.
func ClampStored(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return Clamp(v, -Bound, Bound)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
