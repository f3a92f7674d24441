package stats

import (
	"math"
	"testing"
)

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFitShortSeries(t *testing.T) {
	for _, s := range [][]float64{nil, {4}} {
		got := Fit(s)
		if got.Slope != 0 || got.Correlation != 0 {
			t.Fatalf("Fit(%v): want zero trend got=%+v", s, got)
		}
	}
}

func TestFitPerfectLine(t *testing.T) {
	got := Fit([]float64{1, 3, 5, 7})
	if !near(got.Slope, 2) {
		t.Fatalf("slope: want=2 got=%v", got.Slope)
	}
	if !near(got.Correlation, 1) {
		t.Fatalf("correlation: want=1 got=%v", got.Correlation)
	}
	if !got.Reliable() {
		t.Fatalf("expected reliable trend")
	}

	down := Fit([]float64{9, 6, 3})
	if !near(down.Slope, -3) || !near(down.Correlation, -1) {
		t.Fatalf("descending: got=%+v", down)
	}
}

func TestFitFlatSeries(t *testing.T) {
	got := Fit([]float64{5, 5, 5, 5})
	if got.Slope != 0 || got.Correlation != 0 {
		t.Fatalf("flat: want zero trend got=%+v", got)
	}
	if got.Reliable() {
		t.Fatalf("flat series should not be reliable")
	}
}

func TestFitNoisySeriesIsUnreliable(t *testing.T) {
	got := Fit([]float64{10, 2, 9, 3, 10, 2, 9})
	if got.Reliable() {
		t.Fatalf("noisy series: expected |r| < %v got=%v", ReliableCorrelation, got.Correlation)
	}
}

func TestDispersionAndQuality(t *testing.T) {
	vals := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if m := Mean(vals); m != 5 {
		t.Fatalf("Mean: want=5 got=%v", m)
	}
	if sd := StdDev(vals); !near(sd, 2) {
		t.Fatalf("StdDev: want=2 got=%v", sd)
	}
	if cv := CoefficientOfVariation(vals); !near(cv, 0.4) {
		t.Fatalf("CV: want=0.4 got=%v", cv)
	}
	if c := Consistency(vals); !near(c, 0.6) {
		t.Fatalf("Consistency: want=0.6 got=%v", c)
	}
	if c := Completeness(2, 3); !near(c, 2.0/3.0) {
		t.Fatalf("Completeness: want=0.667 got=%v", c)
	}
	if c := Completeness(5, 3); c != 1 {
		t.Fatalf("Completeness clamp: want=1 got=%v", c)
	}
	if c := Completeness(1, 0); c != 0 {
		t.Fatalf("Completeness zero want: want=0 got=%v", c)
	}
}
