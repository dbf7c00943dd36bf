package scheduler

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// ScheduleEntry is one dated step of a committed plan. End is exclusive.
type ScheduleEntry struct {
	StepID       string
	ProjectName  string
	StepName     string
	ResourceName string
	MachineName  string

	Start time.Time
	End   time.Time

	// DelayDays is End against the project due date, signed.
	DelayDays        int
	ToleranceDays    int
	ExceedsTolerance bool

	days DayInterval
}

// Days returns the entry as day offsets from the plan's today.
func (e ScheduleEntry) Days() DayInterval {
	return e.days
}

type ProjectSummary struct {
	ProjectName    string
	Priority       int
	DueDate        time.Time
	CompletionDate time.Time

	// DelayDays is completion minus due date, negative when early.
	DelayDays     int
	TardinessDays int

	// ToleranceDays is the largest tolerance among the steps finishing last.
	ToleranceDays    int
	ExceedsTolerance bool
}

type ScheduleResult struct {
	Status    SolverStatus
	Objective int64

	// Entries are ordered by start, project and step identifier.
	Entries  []ScheduleEntry
	Projects []ProjectSummary

	Today    time.Time
	Makespan int
	WallTime time.Duration

	Infeasibility  *InfeasibilityReport
	ContextVersion uint64
}

// extractSchedule maps a solution with a schedule back to calendar rows.
func extractSchedule(model *Model, solution *Solution) *ScheduleResult {
	result := ScheduleResult{
		Status:    solution.Status,
		Objective: solution.Objective,
		Today:     model.Today,
		WallTime:  solution.WallTime,
	}

	if !solution.Status.HasSchedule() || len(model.steps) == 0 {
		return &result
	}

	completion := make([]int64, len(model.projects))
	tolerance := make([]int, len(model.projects))

	for stepIx, ms := range model.steps {
		start := solution.unitStart[ms.unit]
		end := start + ms.duration

		if end > completion[ms.project] {
			completion[ms.project] = end
			tolerance[ms.project] = ms.step.ToleranceDays
		} else if end == completion[ms.project] {
			tolerance[ms.project] = maxOf(tolerance[ms.project], ms.step.ToleranceDays)
		}

		project := model.projects[ms.project]
		delay := int(end - project.due)

		entry := ScheduleEntry{
			StepID:           ms.step.ID,
			ProjectName:      project.project.Name,
			StepName:         ms.step.Name,
			ResourceName:     ms.step.Resource.Name,
			Start:            dateAt(model.Today, start),
			End:              dateAt(model.Today, end),
			DelayDays:        delay,
			ToleranceDays:    ms.step.ToleranceDays,
			ExceedsTolerance: delay > ms.step.ToleranceDays,
			days: DayInterval{
				DayStart: start,
				DayEnd:   end,
			},
		}

		if machineIx := solution.stepMachine[stepIx]; machineIx >= 0 {
			entry.MachineName = model.machines[machineIx].Name
		}

		result.Entries = append(result.Entries, entry)
		result.Makespan = maxOf(result.Makespan, int(end))
	}

	slices.SortStableFunc(
		result.Entries,
		func(a, b ScheduleEntry) int {
			if a.days.DayStart != b.days.DayStart {
				return ternary(a.days.DayStart < b.days.DayStart, -1, 1)
			}

			if c := strings.Compare(a.ProjectName, b.ProjectName); c != 0 {
				return c
			}

			return strings.Compare(a.StepID, b.StepID)
		},
	)

	for projectIx, project := range model.projects {
		if len(project.steps) == 0 {
			continue
		}

		delay := int(completion[projectIx] - project.due)

		result.Projects = append(
			result.Projects,
			ProjectSummary{
				ProjectName:      project.project.Name,
				Priority:         project.project.Priority,
				DueDate:          civilDay(project.project.DueDate),
				CompletionDate:   dateAt(model.Today, completion[projectIx]),
				DelayDays:        delay,
				TardinessDays:    maxOf(0, delay),
				ToleranceDays:    tolerance[projectIx],
				ExceedsTolerance: delay > tolerance[projectIx],
			},
		)
	}

	return &result
}

// Entry returns the entry of the step.
func (r *ScheduleResult) Entry(stepID string) (ScheduleEntry, bool) {
	ix := slices.IndexFunc(
		r.Entries,
		func(entry ScheduleEntry) bool {
			return entry.StepID == stepID
		},
	)
	if ix < 0 {
		return ScheduleEntry{}, false
	}

	return r.Entries[ix], true
}

func (r *ScheduleResult) Project(name string) (ProjectSummary, bool) {
	ix := slices.IndexFunc(
		r.Projects,
		func(summary ProjectSummary) bool {
			return summary.ProjectName == name
		},
	)
	if ix < 0 {
		return ProjectSummary{}, false
	}

	return r.Projects[ix], true
}

// EntriesForResource lists the entries running on the resource at any time in
// the inclusive date range. Matching on the resource name is case-insensitive.
func (r *ScheduleResult) EntriesForResource(resourceName string, from, to time.Time) []ScheduleEntry {
	window := DayInterval{
		DayStart: dayOffset(r.Today, from),
		DayEnd:   dayOffset(r.Today, to) + 1,
	}

	var result []ScheduleEntry

	for _, entry := range r.Entries {
		if !strings.EqualFold(entry.ResourceName, resourceName) {
			continue
		}

		if entry.days.Overlaps(window) {
			result = append(result, entry)
		}
	}

	return result
}

func (r *ScheduleResult) String() string {
	var sb strings.Builder

	sb.WriteString(
		fmt.Sprintf(
			"status: %s, objective: %d, makespan: %d days\n",

			r.Status,
			r.Objective,
			r.Makespan,
		),
	)

	if r.Infeasibility != nil {
		sb.WriteString("infeasible: " + r.Infeasibility.String() + "\n")
	}

	for _, entry := range r.Entries {
		sb.WriteString(
			fmt.Sprintf(
				"%s %s/%s on %s%s: %s -> %s (delay %d)\n",

				entry.StepID,
				entry.ProjectName,
				entry.StepName,
				entry.ResourceName,
				ternary(len(entry.MachineName) > 0, "/"+entry.MachineName, ""),
				FormatDate(entry.Start),
				FormatDate(entry.End),
				entry.DelayDays,
			),
		)
	}

	for _, summary := range r.Projects {
		sb.WriteString(
			fmt.Sprintf(
				"project %s (priority %d): completes %s, due %s, delay %d%s\n",

				summary.ProjectName,
				summary.Priority,
				FormatDate(summary.CompletionDate),
				FormatDate(summary.DueDate),
				summary.DelayDays,
				ternary(summary.ExceedsTolerance, ", exceeds tolerance", ""),
			),
		)
	}

	return sb.String()
}
