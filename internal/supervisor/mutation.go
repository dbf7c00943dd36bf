package supervisor

import (
	"fmt"
	"strings"
	"time"

	scheduler "github.com/TudorHulban/production-scheduler"
)

// MutationKind names one core rule operation.
type MutationKind string

const (
	SetCapacityWindow      MutationKind = "set_capacity_window"
	ClearCapacityOverrides MutationKind = "clear_capacity_overrides"
	AddFixedStart          MutationKind = "add_fixed_start"
	RemoveFixedStart       MutationKind = "remove_fixed_start"
	AddManualGroup         MutationKind = "add_manual_group"
	DissolveManualGroup    MutationKind = "dissolve_manual_group"
	SetProjectPriority     MutationKind = "set_project_priority"
	DeleteProject          MutationKind = "delete_project"
)

// Mutation is one proposed change to the rule state. Only the fields its
// kind reads are set.
type Mutation struct {
	Kind MutationKind

	ResourceName string
	WindowStart  time.Time
	WindowEnd    time.Time
	Capacity     int

	StepID    string
	StartDate time.Time

	StepIDs []string
	GroupID string

	ProjectName string
	Priority    int
}

// Apply issues the single core operation the mutation stands for.
// For AddManualGroup the new group identifier is returned.
func (m Mutation) Apply(sc *scheduler.SchedulingContext) (*scheduler.SchedulingContext, string, error) {
	var (
		result *scheduler.SchedulingContext
		err    error
	)

	switch m.Kind {
	case SetCapacityWindow:
		result, err = sc.SetResourceCapacityWindow(m.ResourceName, m.WindowStart, m.WindowEnd, m.Capacity)

	case ClearCapacityOverrides:
		result, err = sc.ClearCapacityOverrides(m.ResourceName)

	case AddFixedStart:
		result, err = sc.AddFixedStart(m.StepID, m.StartDate)

	case RemoveFixedStart:
		result, err = sc.RemoveFixedStart(m.StepID)

	case AddManualGroup:
		return sc.AddManualGroup(m.StepIDs)

	case DissolveManualGroup:
		result, err = sc.DissolveManualGroup(m.GroupID)

	case SetProjectPriority:
		result, err = sc.SetProjectPriority(m.ProjectName, m.Priority)

	case DeleteProject:
		result, err = sc.DeleteProject(m.ProjectName)

	default:
		return nil, "", fmt.Errorf("%w: %q", ErrUnknownMutation, m.Kind)
	}

	return result, "", err
}

func (m Mutation) String() string {
	switch m.Kind {
	case SetCapacityWindow:
		return fmt.Sprintf(
			"set capacity of %s to %d in [%s, %s]",

			m.ResourceName,
			m.Capacity,
			scheduler.FormatDate(m.WindowStart),
			scheduler.FormatDate(m.WindowEnd),
		)

	case ClearCapacityOverrides:
		if len(m.ResourceName) == 0 {
			return "clear all capacity overrides"
		}

		return "clear capacity overrides of " + m.ResourceName

	case AddFixedStart:
		return fmt.Sprintf(
			"pin step %s to %s",

			m.StepID,
			scheduler.FormatDate(m.StartDate),
		)

	case RemoveFixedStart:
		return "unpin step " + m.StepID

	case AddManualGroup:
		return "group steps " + strings.Join(m.StepIDs, ", ")

	case DissolveManualGroup:
		return "dissolve group " + m.GroupID

	case SetProjectPriority:
		return fmt.Sprintf(
			"set priority of %s to %d",

			m.ProjectName,
			m.Priority,
		)

	case DeleteProject:
		return "delete project " + m.ProjectName
	}

	return string(m.Kind)
}
