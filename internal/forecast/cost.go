package forecast

import (
	"fmt"
	"sort"
	"time"

	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/safemath"
)

const DefaultCostLookbackMonths = 12

type CostInput struct {
	Category          Category
	ProjectedDistance float64
	// AwardPct is the reduction granted as reward, in percent.
	AwardPct  float64
	Carryover float64
	Months    int
	// Aggregates are one sector's monthly rows; rows with a VehicleCode feed
	// the per-vehicle breakdown.
	Aggregates       []MonthlyAggregate
	QualityThreshold float64
}

type VehicleCost struct {
	VehicleCode string  `json:"vehicle_code"`
	Distance    float64 `json:"distance"`
	Cost        float64 `json:"cost"`
	CostPerKm   float64 `json:"cost_per_km"`
}

type CostResult struct {
	Category      Category      `json:"category"`
	MonthsUsed    int           `json:"months_used"`
	TotalDistance float64       `json:"total_distance"`
	TotalCost     float64       `json:"total_cost"`
	CostPerKm     float64       `json:"cost_per_km"`
	RawForecast   float64       `json:"raw_forecast"`
	AwardPct      float64       `json:"award_pct"`
	BaseGoal      float64       `json:"base_goal"`
	Carryover     float64       `json:"carryover"`
	FinalGoal     float64       `json:"final_goal"`
	Vehicles      []VehicleCost `json:"vehicles,omitempty"`
	Quality       Quality       `json:"quality"`
	Warnings      []string      `json:"warnings,omitempty"`
}

// Cost forecasts a tires or parts budget and deducts the carried-over debt.
func Cost(in CostInput) (CostResult, error) {
	res := CostResult{Category: in.Category, AwardPct: in.AwardPct, Carryover: safemath.Round2(in.Carryover)}
	if !in.Category.Valid() {
		return res, errors.NewValidation("cost category", fmt.Sprintf("unknown category %q", in.Category))
	}
	window := in.Months
	if window <= 0 {
		window = DefaultCostLookbackMonths
	}
	months := rollupMonths(in.Aggregates)
	if len(months) > window {
		months = months[len(months)-window:]
	}
	res.MonthsUsed = len(months)
	if len(months) == 0 {
		return res, &errors.DataInsufficiencyError{Metric: string(in.Category) + " cost", Have: 0, Need: 1}
	}
	first := months[0].Month

	perMonth := make([]float64, 0, len(months))
	for _, m := range months {
		c := in.Category.costOf(m)
		res.TotalDistance += m.Distance
		res.TotalCost += c
		if cpk, ok := safemath.SafeDiv(c, m.Distance); ok && m.Distance > 0 {
			perMonth = append(perMonth, cpk)
		}
	}
	cpk, ok := safemath.SafeDiv(res.TotalCost, res.TotalDistance)
	if !ok || res.TotalDistance <= 0 {
		return res, &errors.DataInsufficiencyError{Metric: string(in.Category) + " distance", Have: len(months), Need: 1}
	}
	res.CostPerKm = safemath.Round4(cpk)
	raw := in.ProjectedDistance * cpk
	base := raw * (1 - in.AwardPct/100)
	res.RawForecast = safemath.Round2(raw)
	res.BaseGoal = safemath.Round2(base)
	final := base - in.Carryover
	if final < 0 {
		final = 0
		res.Warnings = append(res.Warnings, fmt.Sprintf("carry-over %.2f exceeds %s base goal; goal floored at zero", in.Carryover, in.Category))
	}
	res.FinalGoal = safemath.Round2(final)
	res.Vehicles = vehicleBreakdown(in.Category, in.Aggregates, first)

	res.Quality = assessQuality(len(months), window, perMonth)
	if res.Quality.Low(in.QualityThreshold) {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%s data quality %.2f below %.2f", in.Category, res.Quality.Score, thresholdOrDefault(in.QualityThreshold)))
	}
	return res, nil
}

// vehicleBreakdown is informational; it does not feed the goal.
func vehicleBreakdown(cat Category, rows []MonthlyAggregate, since time.Time) []VehicleCost {
	byVehicle := map[string]*VehicleCost{}
	for _, r := range rows {
		if r.VehicleCode == "" || monthOf(r.Month).Before(since) {
			continue
		}
		v, ok := byVehicle[r.VehicleCode]
		if !ok {
			v = &VehicleCost{VehicleCode: r.VehicleCode}
			byVehicle[r.VehicleCode] = v
		}
		v.Distance += r.Distance
		v.Cost += cat.costOf(r)
	}
	out := make([]VehicleCost, 0, len(byVehicle))
	for _, v := range byVehicle {
		if cpk, ok := safemath.SafeDiv(v.Cost, v.Distance); ok {
			v.CostPerKm = safemath.Round4(cpk)
		}
		v.Distance = safemath.Round2(v.Distance)
		v.Cost = safemath.Round2(v.Cost)
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VehicleCode < out[j].VehicleCode })
	return out
}
