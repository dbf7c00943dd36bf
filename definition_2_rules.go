package scheduler

import (
	"fmt"
	"time"
)

// ManualGroupRow is one membership row; rows sharing GroupID form a group
// whose steps must start on the same day.
type ManualGroupRow struct {
	GroupID string
	StepID  string
}

// FixedStartRule pins a step's start date.
// ProjectName and StepName are informational and checked when present.
type FixedStartRule struct {
	StepID      string
	ProjectName string
	StepName    string
	StartDate   time.Time
}

func (rule FixedStartRule) String() string {
	return fmt.Sprintf(
		"fixed start %s on %s",

		rule.StepID,
		FormatDate(rule.StartDate),
	)
}

// CapacityOverride replaces a resource's capacity for the inclusive window
// [WindowStart, WindowEnd].
type CapacityOverride struct {
	ResourceName string
	WindowStart  time.Time
	WindowEnd    time.Time
	Capacity     int
}

func (o CapacityOverride) String() string {
	return fmt.Sprintf(
		"capacity %d for %s in [%s, %s]",

		o.Capacity,
		o.ResourceName,
		FormatDate(o.WindowStart),
		FormatDate(o.WindowEnd),
	)
}

func (o CapacityOverride) overlaps(other CapacityOverride) bool {
	return !civilDay(o.WindowStart).After(civilDay(other.WindowEnd)) &&
		!civilDay(other.WindowStart).After(civilDay(o.WindowEnd))
}

func (o CapacityOverride) sameAs(other CapacityOverride) bool {
	return o.ResourceName == other.ResourceName &&
		civilDay(o.WindowStart).Equal(civilDay(other.WindowStart)) &&
		civilDay(o.WindowEnd).Equal(civilDay(other.WindowEnd)) &&
		o.Capacity == other.Capacity
}

// ManualGroup is a compiled group.
type ManualGroup struct {
	ID      string
	StepIDs []string
}

// groupManualRows compiles rows into groups ordered by first appearance.
func groupManualRows(rows []ManualGroupRow) []ManualGroup {
	indexByID := make(map[string]int)

	var result []ManualGroup

	for _, row := range rows {
		ix, exists := indexByID[row.GroupID]
		if !exists {
			ix = len(result)
			indexByID[row.GroupID] = ix

			result = append(
				result,
				ManualGroup{
					ID: row.GroupID,
				},
			)
		}

		result[ix].StepIDs = append(result[ix].StepIDs, row.StepID)
	}

	return result
}
