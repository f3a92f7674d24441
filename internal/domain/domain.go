package domain

import (
	"github.com/yungbote/sectorgoals-backend/internal/domain/competition"
	"github.com/yungbote/sectorgoals-backend/internal/domain/goals"
)

type Period = competition.Period
type PeriodStatus = competition.PeriodStatus
type Sector = competition.Sector
type Criterion = competition.Criterion
type PerformanceEntry = competition.PerformanceEntry
type CriterionScore = competition.CriterionScore
type FinalRanking = competition.FinalRanking
type HolidayClassification = competition.HolidayClassification

type GoalParameter = goals.GoalParameter
type ParameterKey = goals.ParameterKey
type CalculationRun = goals.CalculationRun
type RunStatus = goals.RunStatus
type RunWarning = goals.RunWarning

const (
	PeriodPlanning = competition.PeriodPlanning
	PeriodActive   = competition.PeriodActive
	PeriodClosed   = competition.PeriodClosed
)

// Models lists every table, in migration order.
func Models() []interface{} {
	return []interface{}{
		&competition.Period{},
		&competition.Sector{},
		&competition.Criterion{},
		&competition.PerformanceEntry{},
		&competition.CriterionScore{},
		&competition.FinalRanking{},
		&competition.HolidayClassification{},
		&goals.GoalParameter{},
		&goals.CalculationRun{},
	}
}
