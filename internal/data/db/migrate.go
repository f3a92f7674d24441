package db

import (
	"fmt"

	"gorm.io/gorm"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(types.Models()...)
}

// EnsureGoalIndexes adds the partial indexes AutoMigrate cannot express.
func EnsureGoalIndexes(db *gorm.DB) error {
	// at most one open version per identity key
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_goal_parameter_open_key
		ON goal_parameter(identity_key)
		WHERE effective_to IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_goal_parameter_open_key: %w", err)
	}
	// sector-agnostic targets: NULL sector ids are distinct in the composite unique index
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_perf_entry_null_sector
		ON performance_entry(period_id, criterion_id)
		WHERE sector_id IS NULL;
	`).Error; err != nil {
		return fmt.Errorf("create idx_perf_entry_null_sector: %w", err)
	}
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_goal_calculation_run_period_created
		ON goal_calculation_run(period_id, created_at DESC);
	`).Error; err != nil {
		return fmt.Errorf("create idx_goal_calculation_run_period_created: %w", err)
	}
	return nil
}
