package scheduler

import (
	"fmt"
	"slices"
	"strings"
	"time"

	goerrors "github.com/TudorHulban/go-errors"
	"github.com/google/uuid"
	"github.com/sahilm/fuzzy"
)

// resourceName resolves a resource name case-insensitively to its catalog
// spelling.
func (sc *SchedulingContext) resourceName(name string) (string, error) {
	for _, resource := range sc.resources {
		if strings.EqualFold(resource.Name, name) {
			return resource.Name,
				nil
		}
	}

	return "",
		&ValidationError{
			Condition: ResourceNotFound,
			Subject:   "resource " + name,
		}
}

// SetResourceCapacityWindow adds a capacity override for the inclusive window.
// An identical override already present leaves the context unchanged.
func (sc *SchedulingContext) SetResourceCapacityWindow(resourceName string, windowStart, windowEnd time.Time, capacity int) (*SchedulingContext, error) {
	name, errResource := sc.resourceName(resourceName)
	if errResource != nil {
		return nil,
			errResource
	}

	override := CapacityOverride{
		ResourceName: name,
		WindowStart:  civilDay(windowStart),
		WindowEnd:    civilDay(windowEnd),
		Capacity:     capacity,
	}

	if slices.ContainsFunc(sc.capacityOverrides, override.sameAs) {
		return sc,
			nil
	}

	result := sc.derive()
	result.capacityOverrides = append(result.capacityOverrides, override)

	return result.commit()
}

// ClearCapacityOverrides drops every override, or only those of one resource
// when a name is given.
func (sc *SchedulingContext) ClearCapacityOverrides(resourceName string) (*SchedulingContext, error) {
	result := sc.derive()

	if len(resourceName) == 0 {
		result.capacityOverrides = nil

		return result.commit()
	}

	name, errResource := sc.resourceName(resourceName)
	if errResource != nil {
		return nil,
			errResource
	}

	result.capacityOverrides = slices.DeleteFunc(
		result.capacityOverrides,
		func(override CapacityOverride) bool {
			return strings.EqualFold(override.ResourceName, name)
		},
	)

	return result.commit()
}

// AddFixedStart pins the step's start, replacing an earlier pin of the step.
func (sc *SchedulingContext) AddFixedStart(stepID string, startDate time.Time) (*SchedulingContext, error) {
	step, exists := sc.normalized.Step(stepID)
	if !exists {
		return nil,
			&ValidationError{
				Condition: StepNotFound,
				StepID:    stepID,
				Subject:   "fixed start",
			}
	}

	if startDate.IsZero() {
		return nil,
			&ValidationError{
				Condition: MissingField,
				StepID:    stepID,
				Subject:   "fixed start without date",
			}
	}

	result := sc.derive()
	result.fixedStarts = slices.DeleteFunc(
		result.fixedStarts,
		func(rule FixedStartRule) bool {
			return rule.StepID == stepID
		},
	)
	result.fixedStarts = append(
		result.fixedStarts,
		FixedStartRule{
			StepID:      stepID,
			ProjectName: step.Project.Name,
			StepName:    step.Name,
			StartDate:   civilDay(startDate),
		},
	)

	return result.commit()
}

func (sc *SchedulingContext) RemoveFixedStart(stepID string) (*SchedulingContext, error) {
	isPinned := slices.ContainsFunc(
		sc.fixedStarts,
		func(rule FixedStartRule) bool {
			return rule.StepID == stepID
		},
	)
	if !isPinned {
		return nil,
			&ValidationError{
				Condition: StepNotFound,
				StepID:    stepID,
				Subject:   "no fixed start for step",
			}
	}

	result := sc.derive()
	result.fixedStarts = slices.DeleteFunc(
		result.fixedStarts,
		func(rule FixedStartRule) bool {
			return rule.StepID == stepID
		},
	)

	return result.commit()
}

// AddManualGroup creates a group with a fresh identifier. The new context and
// the identifier are returned.
func (sc *SchedulingContext) AddManualGroup(stepIDs []string) (*SchedulingContext, string, error) {
	var members []string

	for _, stepID := range stepIDs {
		if !slices.Contains(members, stepID) {
			members = append(members, stepID)
		}
	}

	if len(members) < 2 {
		return nil,
			"",
			&ValidationError{
				Condition: MissingField,
				Subject:   "manual group needs at least two steps",
				Issue: goerrors.ErrInvalidInput{
					Caller:     "AddManualGroup",
					InputName:  "stepIDs",
					InputValue: strings.Join(stepIDs, ","),
				},
			}
	}

	groupID := uuid.NewString()

	result := sc.derive()

	for _, stepID := range members {
		result.groups = append(
			result.groups,
			ManualGroupRow{
				GroupID: groupID,
				StepID:  stepID,
			},
		)
	}

	committed, errCommit := result.commit()
	if errCommit != nil {
		return nil,
			"",
			errCommit
	}

	return committed,
		groupID,
		nil
}

func (sc *SchedulingContext) DissolveManualGroup(groupID string) (*SchedulingContext, error) {
	exists := slices.ContainsFunc(
		sc.groups,
		func(row ManualGroupRow) bool {
			return row.GroupID == groupID
		},
	)
	if !exists {
		return nil,
			&ValidationError{
				Condition: GroupNotFound,
				Subject:   "manual group " + groupID,
			}
	}

	result := sc.derive()
	result.groups = slices.DeleteFunc(
		result.groups,
		func(row ManualGroupRow) bool {
			return row.GroupID == groupID
		},
	)

	return result.commit()
}

// SetProjectPriority changes the priority on every row of the project.
// Values outside 1..5 are rejected, not clamped.
func (sc *SchedulingContext) SetProjectPriority(projectName string, priority int) (*SchedulingContext, error) {
	if _, exists := sc.normalized.Project(projectName); !exists {
		return nil,
			sc.projectNotFound(projectName)
	}

	if !IsValidPriority(priority) {
		return nil,
			&ValidationError{
				Condition: InvalidPriority,
				Subject:   "project " + projectName,
				Issue: goerrors.ErrInvalidInput{
					Caller:     "SetProjectPriority",
					InputName:  "priority",
					InputValue: priority,
				},
			}
	}

	result := sc.derive()

	for ix := range result.steps {
		if result.steps[ix].ProjectName == projectName {
			result.steps[ix].Priority = priority
		}
	}

	return result.commit()
}

// DeleteProject removes the project's steps with every rule that references
// them. Predecessor references of other projects that resolved to a deleted
// step are dropped as well.
func (sc *SchedulingContext) DeleteProject(projectName string) (*SchedulingContext, error) {
	project, exists := sc.normalized.Project(projectName)
	if !exists {
		return nil,
			sc.projectNotFound(projectName)
	}

	deleted := make(map[string]bool, len(project.Steps))
	for _, step := range project.Steps {
		deleted[step.ID] = true
	}

	result := sc.derive()

	result.steps = slices.DeleteFunc(
		result.steps,
		func(row StepRow) bool {
			return deleted[row.StepID]
		},
	)

	for ix := range result.steps {
		row := &result.steps[ix]
		step, _ := sc.normalized.Step(row.StepID)

		row.PredecessorNames = slices.DeleteFunc(
			row.PredecessorNames,
			func(name string) bool {
				return sc.resolvesInto(step, strings.TrimSpace(name), project)
			},
		)
	}

	result.fixedStarts = slices.DeleteFunc(
		result.fixedStarts,
		func(rule FixedStartRule) bool {
			return deleted[rule.StepID]
		},
	)

	result.groups = slices.DeleteFunc(
		result.groups,
		func(row ManualGroupRow) bool {
			return deleted[row.StepID]
		},
	)

	return result.commit()
}

// resolvesInto reports whether a predecessor name of step resolved to a step
// of the given project.
func (sc *SchedulingContext) resolvesInto(step *Step, name string, project *Project) bool {
	for _, predecessor := range step.Predecessors {
		if predecessor.Name != name {
			continue
		}

		// Same-project names win, so a match there never crosses over.
		if predecessor.Project == step.Project {
			return false
		}

		return predecessor.Project == project
	}

	return false
}

// FindStep returns the identifier of the named step of a project. Misses
// carry fuzzy suggestions which callers must confirm before use.
func (sc *SchedulingContext) FindStep(projectName, stepName string) (string, error) {
	project, exists := sc.normalized.Project(projectName)
	if !exists {
		return "",
			sc.projectNotFound(projectName)
	}

	names := make([]string, 0, len(project.Steps))

	for _, step := range project.Steps {
		if step.Name == stepName {
			return step.ID,
				nil
		}

		names = append(names, step.Name)
	}

	return "",
		&ValidationError{
			Condition:   StepNotFound,
			Subject:     fmt.Sprintf("step %s in project %s", stepName, projectName),
			Suggestions: fuzzySuggestions(stepName, names),
		}
}

func (sc *SchedulingContext) projectNotFound(projectName string) error {
	return &ValidationError{
		Condition:   ProjectNotFound,
		Subject:     "project " + projectName,
		Suggestions: fuzzySuggestions(projectName, sc.ProjectNames()),
	}
}

func fuzzySuggestions(pattern string, names []string) []string {
	var result []string

	for _, match := range fuzzy.Find(pattern, names) {
		if len(result) == _MaxSuggestions {
			break
		}

		result = append(result, match.Str)
	}

	return result
}
