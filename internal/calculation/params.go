package calculation

import (
	"context"
	"fmt"

	"github.com/yungbote/sectorgoals-backend/internal/config"
	"github.com/yungbote/sectorgoals-backend/internal/services"
)

// Params is the snapshot of every adjustable value a run uses. It is stored
// on the run so a later parameter edit does not change what a run computed.
type Params struct {
	FuelReductionPct   float64 `json:"fuel_reduction_pct"`
	TiresAwardPct      float64 `json:"tires_award_pct"`
	PartsAwardPct      float64 `json:"parts_award_pct"`
	TolerancePct       float64 `json:"carryover_tolerance_pct"`
	FuelLookbackMonths int     `json:"fuel_lookback_months"`
	CostLookbackMonths int     `json:"cost_lookback_months"`
	QualityThreshold   float64 `json:"quality_threshold"`
}

// resolveParams layers rule defaults, named configuration values and the
// request's overrides, in that order.
func resolveParams(ctx context.Context, src services.ConfigurationSource, rules *config.Rules, overrides map[string]float64) (Params, error) {
	p := Params{
		TolerancePct:       rules.Forecast.TolerancePct,
		FuelLookbackMonths: rules.Forecast.FuelLookbackMonths,
		CostLookbackMonths: rules.Forecast.CostLookbackMonths,
		QualityThreshold:   rules.QualityThreshold,
	}
	floats := map[string]*float64{
		config.ParamFuelReductionPct:   &p.FuelReductionPct,
		config.ParamTiresAwardPct:      &p.TiresAwardPct,
		config.ParamPartsAwardPct:      &p.PartsAwardPct,
		config.ParamCarryoverTolerance: &p.TolerancePct,
	}
	ints := map[string]*int{
		config.ParamFuelLookbackMonths: &p.FuelLookbackMonths,
		config.ParamCostLookbackMonths: &p.CostLookbackMonths,
	}
	if src != nil {
		for name, dst := range floats {
			v, err := services.NamedOrDefault(ctx, src, name, *dst)
			if err != nil {
				return p, err
			}
			*dst = v
		}
		for name, dst := range ints {
			v, err := services.NamedOrDefault(ctx, src, name, float64(*dst))
			if err != nil {
				return p, err
			}
			*dst = int(v)
		}
	}
	for name, v := range overrides {
		switch {
		case floats[name] != nil:
			*floats[name] = v
		case ints[name] != nil:
			*ints[name] = int(v)
		default:
			return p, fmt.Errorf("unknown parameter override %q", name)
		}
	}
	if p.FuelLookbackMonths <= 0 || p.CostLookbackMonths <= 0 {
		return p, fmt.Errorf("lookback windows must be positive")
	}
	return p, nil
}
