package calculation

import (
	"github.com/google/uuid"

	"github.com/yungbote/sectorgoals-backend/internal/forecast"
	"github.com/yungbote/sectorgoals-backend/internal/ranking"
)

// SectorForecast is one sector's computed goals. A nil member means that
// sub-calculation failed and a warning explains why.
type SectorForecast struct {
	SectorID     uuid.UUID                `json:"sector_id"`
	SectorName   string                   `json:"sector_name"`
	UpstreamCode string                   `json:"upstream_code"`
	Distance     *forecast.DistanceResult `json:"distance,omitempty"`
	Fuel         *forecast.FuelResult     `json:"fuel,omitempty"`
	Tires        *forecast.CostResult     `json:"tires,omitempty"`
	Parts        *forecast.CostResult     `json:"parts,omitempty"`
	Failed       bool                     `json:"failed"`
	Error        string                   `json:"error,omitempty"`
}

// Goals returns the value to write per criterion kind.
func (s SectorForecast) Goals() map[ranking.Kind]float64 {
	out := map[ranking.Kind]float64{}
	if s.Failed {
		return out
	}
	if s.Distance != nil {
		out[ranking.KindDistance] = s.Distance.Projected
	}
	if s.Fuel != nil {
		out[ranking.KindFuel] = s.Fuel.Goal
	}
	if s.Tires != nil {
		out[ranking.KindTires] = s.Tires.FinalGoal
	}
	if s.Parts != nil {
		out[ranking.KindParts] = s.Parts.FinalGoal
	}
	return out
}

type Result struct {
	PeriodID  uuid.UUID        `json:"period_id"`
	Period    string           `json:"period"`
	Params    Params           `json:"params"`
	Sectors   []SectorForecast `json:"sectors"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
}
