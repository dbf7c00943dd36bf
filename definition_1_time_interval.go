package scheduler

import "fmt"

// DayInterval is a half-open range of day offsets [DayStart, DayEnd).
type DayInterval struct {
	DayStart int64
	DayEnd   int64
}

func (interval DayInterval) Length() int64 {
	return interval.DayEnd - interval.DayStart
}

func (interval DayInterval) Overlaps(other DayInterval) bool {
	return maxOf(interval.DayStart, other.DayStart) < minOf(interval.DayEnd, other.DayEnd)
}

func (interval DayInterval) Contains(day int64) bool {
	return interval.DayStart <= day && day < interval.DayEnd
}

func (interval DayInterval) String() string {
	return fmt.Sprintf("[%d-%d)", interval.DayStart, interval.DayEnd)
}
