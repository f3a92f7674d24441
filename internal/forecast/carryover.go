package forecast

import (
	"github.com/shopspring/decimal"
)

// DefaultTolerancePct is the overspend allowed before a debt is carried.
const DefaultTolerancePct = 8.0

type CarryoverInput struct {
	// ApprovedTarget is the prior period's approved goal; nil when there is
	// no prior period or no approved goal.
	ApprovedTarget *float64
	RealizedSpend  *float64
	TolerancePct   float64
}

// Carryover returns the spend above target*(1+tolerance) in the prior
// period. Missing inputs yield exactly zero.
func Carryover(in CarryoverInput) float64 {
	if in.ApprovedTarget == nil || in.RealizedSpend == nil {
		return 0
	}
	tol := decimal.NewFromFloat(in.TolerancePct).Div(decimal.NewFromInt(100))
	ceiling := decimal.NewFromFloat(*in.ApprovedTarget).Mul(decimal.NewFromInt(1).Add(tol))
	excess := decimal.NewFromFloat(*in.RealizedSpend).Sub(ceiling)
	if !excess.IsPositive() {
		return 0
	}
	v, _ := excess.Round(2).Float64()
	return v
}
