package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/yungbote/sectorgoals-backend/internal/forecast"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
)

func month(y int, m time.Month) time.Time { return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC) }

func TestMemoryMonthlyWindowExcludesReferenceMonth(t *testing.T) {
	src := &Memory{}
	for m := time.May; m <= time.September; m++ {
		src.Monthly = append(src.Monthly, forecast.MonthlyAggregate{SectorCode: "N01", Month: month(2025, m), Fuel: 100})
	}
	rows, err := src.FetchMonthlyAggregates(context.Background(), 3, month(2025, time.September).AddDate(0, 0, 14))
	if err != nil {
		t.Fatalf("FetchMonthlyAggregates: %v", err)
	}
	if len(rows) != 3 || !rows[0].Month.Equal(month(2025, time.June)) || !rows[2].Month.Equal(month(2025, time.August)) {
		t.Fatalf("window: want Jun..Aug got=%+v", rows)
	}
}

func TestMemoryDailyFiltersBySectorAndRange(t *testing.T) {
	src := &Memory{Daily: []forecast.DailyMetric{
		{SectorCode: "N01", Date: time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)},
		{SectorCode: "N01", Date: time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)},
		{SectorCode: "S01", Date: time.Date(2025, 8, 2, 0, 0, 0, 0, time.UTC)},
	}}
	rows, err := src.FetchDailyMetrics(context.Background(), "N01", month(2025, time.August), month(2025, time.September))
	if err != nil {
		t.Fatalf("FetchDailyMetrics: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("want=1 row got=%d", len(rows))
	}
	if src.Calls() != 1 {
		t.Fatalf("calls: want=1 got=%d", src.Calls())
	}
}

func TestMemoryConnectivityTimeout(t *testing.T) {
	src := &Memory{Latency: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := src.TestConnectivity(ctx); !errors.IsConnectivity(err) {
		t.Fatalf("want ConnectivityError got=%v", err)
	}
}

func TestNewPGSourceRejectsBadDSN(t *testing.T) {
	if _, err := NewPGSource(context.Background(), "", Tables{}, nil); err == nil {
		t.Fatalf("empty dsn: want error")
	}
	if _, err := NewPGSource(context.Background(), "postgres://%zz", Tables{}, nil); err == nil {
		t.Fatalf("malformed dsn: want error")
	}
}
