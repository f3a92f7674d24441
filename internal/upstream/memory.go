package upstream

import (
	"context"
	"sync"
	"time"

	"github.com/yungbote/sectorgoals-backend/internal/forecast"
	"github.com/yungbote/sectorgoals-backend/internal/pkg/errors"
)

// Memory serves fixed rows. Fail, when set, is returned by every call;
// FailSector fails only that sector's daily fetch.
type Memory struct {
	mu         sync.Mutex
	Daily      []forecast.DailyMetric
	Monthly    []forecast.MonthlyAggregate
	Latency    time.Duration
	Fail       error
	FailSector map[string]error
	calls      int
}

func (m *Memory) FetchDailyMetrics(ctx context.Context, sectorCode string, from, to time.Time) ([]forecast.DailyMetric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Fail != nil {
		return nil, m.Fail
	}
	if err := m.FailSector[sectorCode]; err != nil {
		return nil, err
	}
	var out []forecast.DailyMetric
	for _, r := range m.Daily {
		if r.SectorCode == sectorCode && !r.Date.Before(from) && r.Date.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) FetchMonthlyAggregates(ctx context.Context, lookbackMonths int, reference time.Time) ([]forecast.MonthlyAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.Fail != nil {
		return nil, m.Fail
	}
	from, to := forecast.LookbackWindow(reference, lookbackMonths)
	var out []forecast.MonthlyAggregate
	for _, r := range m.Monthly {
		if !r.Month.Before(from) && r.Month.Before(to) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *Memory) TestConnectivity(ctx context.Context) (time.Duration, error) {
	m.mu.Lock()
	latency, fail := m.Latency, m.Fail
	m.mu.Unlock()
	if latency > 0 {
		select {
		case <-time.After(latency):
		case <-ctx.Done():
			return latency, &errors.ConnectivityError{Source: "memory", Latency: latency, Err: ctx.Err()}
		}
	}
	if fail != nil {
		return latency, fail
	}
	return latency, nil
}

// Calls counts fetches served.
func (m *Memory) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
