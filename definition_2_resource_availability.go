package scheduler

import (
	"slices"
	"strings"
	"time"
)

// MachineAvailability returns the idle days of a machine in the inclusive
// date range of a solved plan:
//   - (nil, true)    = fully available (no entry overlaps the range)
//   - (slots, false) = partially available (returns the idle slots)
//   - (nil, false)   = completely unavailable (range fully booked)
func (r *ScheduleResult) MachineAvailability(machineName string, from, to time.Time) ([]DayInterval, bool) {
	var busy []DayInterval

	for _, entry := range r.Entries {
		if strings.EqualFold(entry.MachineName, machineName) {
			busy = append(busy, entry.days)
		}
	}

	return idleIntervals(
		busy,
		DayInterval{
			DayStart: dayOffset(r.Today, from),
			DayEnd:   dayOffset(r.Today, to) + 1,
		},
	)
}

func idleIntervals(busy []DayInterval, search DayInterval) ([]DayInterval, bool) {
	slices.SortFunc(
		busy,
		func(a, b DayInterval) int {
			return int(a.DayStart - b.DayStart)
		},
	)

	var availableIntervals []DayInterval

	currentStart := search.DayStart
	hasOverlap := false

	for _, interval := range busy {
		if interval.DayEnd <= currentStart {
			continue
		}

		if interval.DayStart >= search.DayEnd {
			break
		}

		hasOverlap = true

		if interval.DayStart > currentStart {
			availableIntervals = append(
				availableIntervals,
				DayInterval{
					DayStart: currentStart,
					DayEnd:   interval.DayStart,
				},
			)
		}

		currentStart = maxOf(currentStart, interval.DayEnd)
	}

	if !hasOverlap {
		return nil,
			true
	}

	if currentStart < search.DayEnd {
		availableIntervals = append(
			availableIntervals,
			DayInterval{
				DayStart: currentStart,
				DayEnd:   search.DayEnd,
			},
		)
	}

	return availableIntervals,
		false
}
