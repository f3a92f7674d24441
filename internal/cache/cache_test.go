package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryTTLAndInvalidate(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory(time.Minute)
	m.now = func() time.Time { return now }

	if err := m.Set(ctx, "fuel_reduction_pct", 1.5); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := m.Get(ctx, "fuel_reduction_pct")
	if err != nil || !ok || v != 1.5 {
		t.Fatalf("Get: want=1.5 got=%v ok=%v err=%v", v, ok, err)
	}

	if err := m.Invalidate(ctx, "fuel_reduction_pct"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := m.Get(ctx, "fuel_reduction_pct"); ok {
		t.Fatalf("value survived Invalidate")
	}

	_ = m.Set(ctx, "tires_award_pct", 10)
	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, "tires_award_pct"); ok {
		t.Fatalf("value survived TTL")
	}
	if m.Len() != 0 {
		t.Fatalf("expired entry not evicted: len=%d", m.Len())
	}

	_ = m.Set(ctx, "a", 1)
	_ = m.Set(ctx, "b", 2)
	_ = m.InvalidateAll(ctx)
	if m.Len() != 0 {
		t.Fatalf("InvalidateAll left %d entries", m.Len())
	}
}
