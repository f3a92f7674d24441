package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/sectorgoals-backend/internal/domain"
)

func SeedPeriod(tb testing.TB, ctx context.Context, tx *gorm.DB, year, month int, status types.PeriodStatus) *types.Period {
	tb.Helper()
	p := &types.Period{ID: uuid.New(), Year: year, Month: month, Status: string(status)}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed period: %v", err)
	}
	return p
}

func SeedSector(tb testing.TB, ctx context.Context, tx *gorm.DB, name, upstreamCode string) *types.Sector {
	tb.Helper()
	s := &types.Sector{ID: uuid.New(), Name: name, UpstreamCode: upstreamCode, Active: true}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed sector: %v", err)
	}
	return s
}

func SeedCriterion(tb testing.TB, ctx context.Context, tx *gorm.DB, name, direction string) *types.Criterion {
	tb.Helper()
	c := &types.Criterion{ID: uuid.New(), Name: name, Direction: direction, Precision: 2, Active: true}
	if err := tx.WithContext(ctx).Create(c).Error; err != nil {
		tb.Fatalf("seed criterion: %v", err)
	}
	return c
}

func SeedEntry(tb testing.TB, ctx context.Context, tx *gorm.DB, periodID, criterionID uuid.UUID, sectorID *uuid.UUID, realized, target *float64) *types.PerformanceEntry {
	tb.Helper()
	e := &types.PerformanceEntry{
		ID:          uuid.New(),
		PeriodID:    periodID,
		CriterionID: criterionID,
		SectorID:    sectorID,
		Realized:    realized,
		Target:      target,
	}
	if err := tx.WithContext(ctx).Create(e).Error; err != nil {
		tb.Fatalf("seed entry: %v", err)
	}
	return e
}

func SeedHoliday(tb testing.TB, ctx context.Context, tx *gorm.DB, periodID uuid.UUID, date time.Time, classification string) *types.HolidayClassification {
	tb.Helper()
	h := &types.HolidayClassification{ID: uuid.New(), PeriodID: periodID, Date: date, Classification: classification}
	if err := tx.WithContext(ctx).Create(h).Error; err != nil {
		tb.Fatalf("seed holiday: %v", err)
	}
	return h
}

func SeedNamedParameter(tb testing.TB, ctx context.Context, tx *gorm.DB, name string, value float64) *types.GoalParameter {
	tb.Helper()
	p := &types.GoalParameter{
		ID:            uuid.New(),
		IdentityKey:   types.ParameterKey{Name: name}.Identity(),
		Version:       1,
		Name:          name,
		Value:         value,
		EffectiveFrom: time.Now().UTC(),
		Justification: "seed",
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed parameter: %v", err)
	}
	return p
}
