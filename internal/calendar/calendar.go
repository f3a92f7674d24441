package calendar

import "time"

// Classification is the label an operator assigns to a holiday row.
type Classification string

const (
	Unclassified Classification = ""
	// Holiday days operate on the Sunday schedule.
	Holiday Classification = "HOLIDAY"
	// Partial days ("ponto facultativo") operate on the Saturday schedule.
	Partial Classification = "PARTIAL"
	// Regular days keep their weekday schedule.
	Regular Classification = "REGULAR"
)

func (c Classification) Valid() bool {
	switch c {
	case Holiday, Partial, Regular:
		return true
	default:
		return false
	}
}

type DayType int

const (
	Weekday DayType = iota
	Saturday
	SundayOrHoliday
)

func (d DayType) String() string {
	switch d {
	case Saturday:
		return "saturday"
	case SundayOrHoliday:
		return "sunday_holiday"
	default:
		return "weekday"
	}
}

// DayTypes lists every bucket in a stable order.
var DayTypes = []DayType{Weekday, Saturday, SundayOrHoliday}

type Day struct {
	Date           time.Time
	Classification Classification
}

// Index maps a calendar date to its classification.
type Index map[string]Classification

func key(t time.Time) string { return t.Format("2006-01-02") }

func NewIndex(days []Day) Index {
	idx := make(Index, len(days))
	for _, d := range days {
		idx[key(d.Date)] = d.Classification
	}
	return idx
}

// DayTypeOf buckets one date. Classified days override the weekday.
func DayTypeOf(date time.Time, idx Index) DayType {
	switch idx[key(date)] {
	case Holiday:
		return SundayOrHoliday
	case Partial:
		return Saturday
	}
	switch date.Weekday() {
	case time.Sunday:
		return SundayOrHoliday
	case time.Saturday:
		return Saturday
	default:
		return Weekday
	}
}

type DayCounts struct {
	Weekday         int `json:"weekday"`
	Saturday        int `json:"saturday"`
	SundayOrHoliday int `json:"sunday_or_holiday"`
}

func (c DayCounts) Get(t DayType) int {
	switch t {
	case Saturday:
		return c.Saturday
	case SundayOrHoliday:
		return c.SundayOrHoliday
	default:
		return c.Weekday
	}
}

func (c DayCounts) Total() int { return c.Weekday + c.Saturday + c.SundayOrHoliday }

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Classify partitions every day of the month into the three buckets.
// It trusts the supplied classifications to be complete.
func Classify(year int, month time.Month, days []Day) DayCounts {
	idx := NewIndex(days)
	var out DayCounts
	n := DaysIn(year, month)
	for d := 1; d <= n; d++ {
		switch DayTypeOf(time.Date(year, month, d, 0, 0, 0, 0, time.UTC), idx) {
		case Saturday:
			out.Saturday++
		case SundayOrHoliday:
			out.SundayOrHoliday++
		default:
			out.Weekday++
		}
	}
	return out
}
