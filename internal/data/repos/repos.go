package repos

import (
	"gorm.io/gorm"

	"github.com/yungbote/sectorgoals-backend/internal/data/repos/competition"
	"github.com/yungbote/sectorgoals-backend/internal/data/repos/goals"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

type PeriodRepo = competition.PeriodRepo
type SectorRepo = competition.SectorRepo
type CriterionRepo = competition.CriterionRepo
type PerformanceEntryRepo = competition.PerformanceEntryRepo
type HolidayRepo = competition.HolidayRepo
type ScoreRepo = competition.ScoreRepo

type GoalParameterRepo = goals.GoalParameterRepo
type CalculationRunRepo = goals.CalculationRunRepo
type StaleRelease = goals.StaleRelease

func NewPeriodRepo(db *gorm.DB, baseLog *logger.Logger) PeriodRepo {
	return competition.NewPeriodRepo(db, baseLog)
}
func NewSectorRepo(db *gorm.DB, baseLog *logger.Logger) SectorRepo {
	return competition.NewSectorRepo(db, baseLog)
}
func NewCriterionRepo(db *gorm.DB, baseLog *logger.Logger) CriterionRepo {
	return competition.NewCriterionRepo(db, baseLog)
}
func NewPerformanceEntryRepo(db *gorm.DB, baseLog *logger.Logger) PerformanceEntryRepo {
	return competition.NewPerformanceEntryRepo(db, baseLog)
}
func NewHolidayRepo(db *gorm.DB, baseLog *logger.Logger) HolidayRepo {
	return competition.NewHolidayRepo(db, baseLog)
}
func NewScoreRepo(db *gorm.DB, baseLog *logger.Logger) ScoreRepo {
	return competition.NewScoreRepo(db, baseLog)
}

func NewGoalParameterRepo(db *gorm.DB, baseLog *logger.Logger) GoalParameterRepo {
	return goals.NewGoalParameterRepo(db, baseLog)
}
func NewCalculationRunRepo(db *gorm.DB, baseLog *logger.Logger) CalculationRunRepo {
	return goals.NewCalculationRunRepo(db, baseLog)
}

// Set bundles every repository the services need.
type Set struct {
	Periods    PeriodRepo
	Sectors    SectorRepo
	Criteria   CriterionRepo
	Entries    PerformanceEntryRepo
	Holidays   HolidayRepo
	Scores     ScoreRepo
	Parameters GoalParameterRepo
	Runs       CalculationRunRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Periods:    NewPeriodRepo(db, baseLog),
		Sectors:    NewSectorRepo(db, baseLog),
		Criteria:   NewCriterionRepo(db, baseLog),
		Entries:    NewPerformanceEntryRepo(db, baseLog),
		Holidays:   NewHolidayRepo(db, baseLog),
		Scores:     NewScoreRepo(db, baseLog),
		Parameters: NewGoalParameterRepo(db, baseLog),
		Runs:       NewCalculationRunRepo(db, baseLog),
	}
}
