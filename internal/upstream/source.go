// Package upstream reads sector history from the operational database the
// ETL feeds. It never retries; failures are surfaced to the caller.
package upstream

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yungbote/sectorgoals-backend/internal/forecast"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/logger"
)

const SourceName = "upstream-postgres"

type HistoricalDataSource interface {
	FetchDailyMetrics(ctx context.Context, sectorCode string, from, to time.Time) ([]forecast.DailyMetric, error)
	FetchMonthlyAggregates(ctx context.Context, lookbackMonths int, reference time.Time) ([]forecast.MonthlyAggregate, error)
	// TestConnectivity runs a trivial query and reports its latency.
	TestConnectivity(ctx context.Context) (time.Duration, error)
}

type Tables struct {
	Daily   string
	Monthly string
}

var DefaultTables = Tables{Daily: "sector_daily_metrics", Monthly: "sector_monthly_aggregates"}

type PGSource struct {
	log    *logger.Logger
	pool   *pgxpool.Pool
	tables Tables
}

// NewPGSource opens a pool against dsn. The pool connects lazily, so an
// unreachable upstream does not prevent startup.
func NewPGSource(ctx context.Context, dsn string, tables Tables, log *logger.Logger) (*PGSource, error) {
	if dsn == "" {
		return nil, fmt.Errorf("upstream dsn required")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse upstream config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream pool: %w", err)
	}
	if tables.Daily == "" {
		tables.Daily = DefaultTables.Daily
	}
	if tables.Monthly == "" {
		tables.Monthly = DefaultTables.Monthly
	}
	return &PGSource{log: log.With("service", "UpstreamSource"), pool: pool, tables: tables}, nil
}

func (s *PGSource) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

func (s *PGSource) FetchDailyMetrics(ctx context.Context, sectorCode string, from, to time.Time) ([]forecast.DailyMetric, error) {
	q := fmt.Sprintf(`
		SELECT sector_code, COALESCE(vehicle_code, ''), day,
		       COALESCE(distance_km, 0), COALESCE(fuel_liters, 0),
		       COALESCE(tire_cost, 0), COALESCE(parts_cost, 0)
		FROM %s
		WHERE sector_code = $1 AND day >= $2 AND day < $3
		ORDER BY day ASC`, pgx.Identifier{s.tables.Daily}.Sanitize())
	rows, err := s.pool.Query(ctx, q, sectorCode, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch daily metrics for %s: %w", sectorCode, err)
	}
	defer rows.Close()

	var out []forecast.DailyMetric
	for rows.Next() {
		var m forecast.DailyMetric
		if err := rows.Scan(&m.SectorCode, &m.VehicleCode, &m.Date, &m.Distance, &m.Fuel, &m.TireCost, &m.PartsCost); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// FetchMonthlyAggregates returns every sector's months in
// [reference-lookback, reference).
func (s *PGSource) FetchMonthlyAggregates(ctx context.Context, lookbackMonths int, reference time.Time) ([]forecast.MonthlyAggregate, error) {
	from, to := forecast.LookbackWindow(reference, lookbackMonths)
	q := fmt.Sprintf(`
		SELECT sector_code, COALESCE(vehicle_code, ''), month,
		       COALESCE(distance_km, 0), COALESCE(fuel_liters, 0),
		       COALESCE(tire_cost, 0), COALESCE(parts_cost, 0)
		FROM %s
		WHERE month >= $1 AND month < $2
		ORDER BY sector_code, month ASC`, pgx.Identifier{s.tables.Monthly}.Sanitize())
	rows, err := s.pool.Query(ctx, q, from, to)
	if err != nil {
		return nil, fmt.Errorf("fetch monthly aggregates: %w", err)
	}
	defer rows.Close()

	var out []forecast.MonthlyAggregate
	for rows.Next() {
		var m forecast.MonthlyAggregate
		if err := rows.Scan(&m.SectorCode, &m.VehicleCode, &m.Month, &m.Distance, &m.Fuel, &m.TireCost, &m.PartsCost); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PGSource) TestConnectivity(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	var one int
	err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one)
	latency := time.Since(start)
	if err != nil {
		return latency, &errors.ConnectivityError{Source: SourceName, Latency: latency, Err: err}
	}
	return latency, nil
}
