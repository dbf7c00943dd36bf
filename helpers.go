package scheduler

import (
	"time"
)

type maxIntegerTypes interface {
	int | int64
}

func maxOf[T maxIntegerTypes](a, b T) T {
	if a > b {
		return a
	}

	return b
}

func minOf[T maxIntegerTypes](a, b T) T {
	if a < b {
		return a
	}

	return b
}

func ternary[T any](condition bool, value1, value2 T) T {
	if condition {
		return value1
	}

	return value2
}

const _LayoutDate = "2006-01-02"

// civilDay truncates to midnight UTC of the calendar day in t's own location.
func civilDay(t time.Time) time.Time {
	year, month, day := t.Date()

	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// dayOffset returns the whole number of days from today to date.
func dayOffset(today, date time.Time) int64 {
	return int64(civilDay(date).Sub(civilDay(today)).Hours()) / 24
}

func dateAt(today time.Time, offset int64) time.Time {
	return civilDay(today).AddDate(0, 0, int(offset))
}

// ParseDate parses a calendar date in YYYY-MM-DD form.
func ParseDate(value string) (time.Time, error) {
	return time.Parse(_LayoutDate, value)
}

func FormatDate(t time.Time) string {
	return t.Format(_LayoutDate)
}
