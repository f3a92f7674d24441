package calendar

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestClassifyMonthWithWeekdayHoliday(t *testing.T) {
	// September 2025: 30 days, 4 Saturdays, 4 Sundays.
	got := Classify(2025, time.September, []Day{
		{Date: date(2025, time.September, 15), Classification: Holiday},
	})
	want := DayCounts{Weekday: 21, Saturday: 4, SundayOrHoliday: 5}
	if got != want {
		t.Fatalf("Classify: want=%+v got=%+v", want, got)
	}
	if got.Total() != 30 {
		t.Fatalf("Total: want=30 got=%d", got.Total())
	}
}

func TestClassifyHolidayOnSundayCountsOnce(t *testing.T) {
	got := Classify(2025, time.September, []Day{
		{Date: date(2025, time.September, 7), Classification: Holiday},
	})
	want := DayCounts{Weekday: 22, Saturday: 4, SundayOrHoliday: 4}
	if got != want {
		t.Fatalf("Classify: want=%+v got=%+v", want, got)
	}
}

func TestClassifyPartialAndRegular(t *testing.T) {
	got := Classify(2025, time.September, []Day{
		{Date: date(2025, time.September, 5), Classification: Partial},
		{Date: date(2025, time.September, 6), Classification: Regular},
	})
	want := DayCounts{Weekday: 21, Saturday: 5, SundayOrHoliday: 4}
	if got != want {
		t.Fatalf("Classify: want=%+v got=%+v", want, got)
	}
}

func TestDaysIn(t *testing.T) {
	if n := DaysIn(2024, time.February); n != 29 {
		t.Fatalf("DaysIn leap Feb: want=29 got=%d", n)
	}
	if n := DaysIn(2025, time.December); n != 31 {
		t.Fatalf("DaysIn Dec: want=31 got=%d", n)
	}
}
