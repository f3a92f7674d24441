package safemath

import (
	"math"
	"testing"
)

func TestPercentOfZeroTarget(t *testing.T) {
	cases := []struct {
		realized float64
		want     float64
	}{
		{0, 100},
		{5, Bound},
		{-5, 0},
	}
	for _, tc := range cases {
		got := PercentOf(tc.realized, 0)
		if got == nil {
			t.Fatalf("PercentOf(%v, 0): want=%v got=nil", tc.realized, tc.want)
		}
		if *got != tc.want {
			t.Fatalf("PercentOf(%v, 0): want=%v got=%v", tc.realized, tc.want, *got)
		}
	}
}

func TestPercentOfMatchesRoundedRatio(t *testing.T) {
	pairs := [][2]float64{
		{80, 100},
		{1, 3},
		{2, 3},
		{123.456789, 7},
		{0.0001, 0.0003},
		{-40, 160},
	}
	for _, p := range pairs {
		got := PercentOf(p[0], p[1])
		if got == nil {
			t.Fatalf("PercentOf(%v, %v): unexpected nil", p[0], p[1])
		}
		want := Round(p[0]/p[1]*100, 4)
		if *got != want {
			t.Fatalf("PercentOf(%v, %v): want=%v got=%v", p[0], p[1], want, *got)
		}
	}
}

func TestPercentOfClampsToBound(t *testing.T) {
	got := PercentOf(1e9, 1)
	if got == nil || *got != Bound {
		t.Fatalf("positive overflow: want=%v got=%v", Bound, got)
	}
	got = PercentOf(-1e9, 1)
	if got == nil || *got != -Bound {
		t.Fatalf("negative overflow: want=%v got=%v", -Bound, got)
	}
}

func TestPercentOfNonFinite(t *testing.T) {
	if got := PercentOf(math.Inf(1), 10); got != nil {
		t.Fatalf("inf realized: want=nil got=%v", *got)
	}
	if got := PercentOf(math.MaxFloat64, math.SmallestNonzeroFloat64); got != nil {
		t.Fatalf("overflowing ratio: want=nil got=%v", *got)
	}
	if got := PercentOf(math.NaN(), 10); got != nil {
		t.Fatalf("nan realized: want=nil got=%v", *got)
	}
}

func TestRoundHalfAwayFromZero(t *testing.T) {
	if got := Round2(2.675); got != 2.68 {
		t.Fatalf("Round2(2.675): want=2.68 got=%v", got)
	}
	if got := Round2(-1.005); got != -1.01 {
		t.Fatalf("Round2(-1.005): want=-1.01 got=%v", got)
	}
	if got := Round4(33.33333333); got != 33.3333 {
		t.Fatalf("Round4: want=33.3333 got=%v", got)
	}
}

func TestSafeDivAndClamp(t *testing.T) {
	if _, ok := SafeDiv(1, 0); ok {
		t.Fatalf("SafeDiv(1,0): expected not ok")
	}
	if q, ok := SafeDiv(9, 3); !ok || q != 3 {
		t.Fatalf("SafeDiv(9,3): want=3 got=%v ok=%v", q, ok)
	}
	if got := Clamp(math.NaN(), 0.1, 1); got != 0.1 {
		t.Fatalf("Clamp(NaN): want=0.1 got=%v", got)
	}
	if got := ClampStored(5e6); got != Bound {
		t.Fatalf("ClampStored: want=%v got=%v", Bound, got)
	}
}
