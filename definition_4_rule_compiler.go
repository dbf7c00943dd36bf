package scheduler

import (
	"fmt"
	"slices"
	"time"

	goerrors "github.com/TudorHulban/go-errors"
)

type ParamsCompileRules struct {
	Normalized *NormalizedSteps
	Today      time.Time

	Groups            []ManualGroupRow
	FixedStarts       []FixedStartRule
	CapacityOverrides []CapacityOverride
}

// CapacityWindow is an override translated to day offsets.
type CapacityWindow struct {
	Override CapacityOverride
	Days     DayInterval
	Capacity int
}

// CompiledRules indexes the three rule sets by step and resource identity.
type CompiledRules struct {
	Groups  []ManualGroup
	GroupOf map[string]string

	// FixedStart holds pinned start days relative to today.
	FixedStart map[string]int64

	// CapacityWindows per resource, sorted by start.
	CapacityWindows map[string][]CapacityWindow

	// EarliestStart is the precedence-only earliest start of every step.
	EarliestStart map[string]int64
}

// CapacityAt returns the capacity of the resource effective on the day.
func (c *CompiledRules) CapacityAt(resource *Resource, day int64) int {
	for _, window := range c.CapacityWindows[resource.Name] {
		if window.Days.DayStart > day {
			break
		}

		if window.Days.Contains(day) {
			return window.Capacity
		}
	}

	return resource.Capacity
}

func (c *CompiledRules) RuleClasses() []RuleClass {
	var result []RuleClass

	if len(c.Groups) > 0 {
		result = append(result, RuleClassManualGroups)
	}

	if len(c.FixedStart) > 0 {
		result = append(result, RuleClassFixedStarts)
	}

	if len(c.CapacityWindows) > 0 {
		result = append(result, RuleClassCapacityOverrides)
	}

	return result
}

// CompileRules validates manual groups, fixed starts and capacity overrides
// against the normalized steps. Nothing is dropped or defaulted: the first
// invalid rule is returned as error.
func CompileRules(params *ParamsCompileRules) (*CompiledRules, error) {
	if params.Normalized == nil {
		return nil,
			goerrors.ErrValidation{
				Caller: "CompileRules",
				Issue: goerrors.ErrNilInput{
					InputName: "Normalized",
				},
			}
	}

	result := CompiledRules{
		GroupOf:         make(map[string]string),
		FixedStart:      make(map[string]int64),
		CapacityWindows: make(map[string][]CapacityWindow),
	}

	if errGroups := result.compileGroups(params); errGroups != nil {
		return nil,
			errGroups
	}

	if errFixed := result.compileFixedStarts(params); errFixed != nil {
		return nil,
			errFixed
	}

	if errOverrides := result.compileCapacityOverrides(params); errOverrides != nil {
		return nil,
			errOverrides
	}

	return &result,
		nil
}

func (c *CompiledRules) compileGroups(params *ParamsCompileRules) error {
	for _, group := range groupManualRows(params.Groups) {
		if len(group.ID) == 0 {
			return &ValidationError{
				Condition: GroupNotFound,
				Subject:   "manual group without identifier",
			}
		}

		compiled := ManualGroup{
			ID: group.ID,
		}

		for _, stepID := range group.StepIDs {
			if _, exists := params.Normalized.Step(stepID); !exists {
				return &ValidationError{
					Condition: StepNotFound,
					StepID:    stepID,
					Subject:   "member of manual group " + group.ID,
				}
			}

			if other, isMember := c.GroupOf[stepID]; isMember {
				if other == group.ID {
					continue
				}

				return &RuleConflictError{
					Condition: ConflictingGroupMembership,
					StepID:    stepID,
					Rule: fmt.Sprintf(
						"step %s is in manual groups %s and %s",

						stepID,
						other,
						group.ID,
					),
				}
			}

			c.GroupOf[stepID] = group.ID
			compiled.StepIDs = append(compiled.StepIDs, stepID)
		}

		c.Groups = append(c.Groups, compiled)
	}

	return nil
}

func (c *CompiledRules) compileFixedStarts(params *ParamsCompileRules) error {
	rulesByStep := make(map[string]FixedStartRule)

	for _, rule := range params.FixedStarts {
		step, exists := params.Normalized.Step(rule.StepID)
		if !exists {
			return &ValidationError{
				Condition: StepNotFound,
				StepID:    rule.StepID,
				Subject:   rule.String(),
			}
		}

		if (len(rule.ProjectName) > 0 && rule.ProjectName != step.Project.Name) ||
			(len(rule.StepName) > 0 && rule.StepName != step.Name) {
			return &ValidationError{
				Condition: InconsistentProject,
				StepID:    rule.StepID,
				Subject: fmt.Sprintf(
					"fixed start names %s/%s but step is %s/%s",

					rule.ProjectName,
					rule.StepName,
					step.Project.Name,
					step.Name,
				),
			}
		}

		if rule.StartDate.IsZero() {
			return &ValidationError{
				Condition: MissingField,
				StepID:    rule.StepID,
				Subject:   "fixed start without date",
			}
		}

		day := dayOffset(params.Today, rule.StartDate)

		if previous, isPinned := c.FixedStart[rule.StepID]; isPinned {
			if previous == day {
				continue
			}

			return &RuleConflictError{
				Condition: InfeasibleFixedStart,
				StepID:    rule.StepID,
				Rule: fmt.Sprintf(
					"%s conflicts with %s",

					rule,
					rulesByStep[rule.StepID],
				),
			}
		}

		c.FixedStart[rule.StepID] = day
		rulesByStep[rule.StepID] = rule
	}

	earliestStart, errPass := forwardPass(
		params.Normalized.Steps,
		c.FixedStart,
		func(step *Step, earliest, pinnedAt int64) error {
			if pinnedAt >= earliest {
				return nil
			}

			return &RuleConflictError{
				Condition:     InfeasibleFixedStart,
				StepID:        step.ID,
				Rule:          rulesByStep[step.ID].String(),
				EarliestStart: dateAt(params.Today, earliest),
			}
		},
	)
	if errPass != nil {
		return errPass
	}

	c.EarliestStart = earliestStart

	return nil
}

func (c *CompiledRules) compileCapacityOverrides(params *ParamsCompileRules) error {
	perResource := make(map[string][]CapacityOverride)

	for _, override := range params.CapacityOverrides {
		if errValidation := validateCapacityOverride(params.Normalized, override); errValidation != nil {
			return errValidation
		}

		perResource[override.ResourceName] = append(perResource[override.ResourceName], override)
	}

	resourceNames := make([]string, 0, len(perResource))
	for resourceName := range perResource {
		resourceNames = append(resourceNames, resourceName)
	}

	slices.Sort(resourceNames)

	for _, resourceName := range resourceNames {
		sorted := sortOverrides(perResource[resourceName])

		windows := make([]CapacityWindow, 0, len(sorted))

		for ix, override := range sorted {
			if ix > 0 && sorted[ix-1].overlaps(override) {
				return &RuleConflictError{
					Condition:    ConflictingCapacityOverride,
					ResourceName: resourceName,
					Rule: fmt.Sprintf(
						"%s overlaps %s",

						override,
						sorted[ix-1],
					),
				}
			}

			windows = append(
				windows,
				CapacityWindow{
					Override: override,
					Days: DayInterval{
						DayStart: dayOffset(params.Today, override.WindowStart),
						DayEnd:   dayOffset(params.Today, override.WindowEnd) + 1,
					},
					Capacity: override.Capacity,
				},
			)
		}

		c.CapacityWindows[resourceName] = windows
	}

	return nil
}

func validateCapacityOverride(normalized *NormalizedSteps, override CapacityOverride) error {
	if _, exists := normalized.Resource(override.ResourceName); !exists {
		return &ValidationError{
			Condition: ResourceNotFound,
			Subject:   "capacity override on resource " + override.ResourceName,
		}
	}

	if override.WindowStart.IsZero() || override.WindowEnd.IsZero() {
		return &ValidationError{
			Condition: InvalidCapacityWindow,
			Subject:   override.String(),
			Issue: goerrors.ErrNilInput{
				InputName: "Window",
			},
		}
	}

	if civilDay(override.WindowEnd).Before(civilDay(override.WindowStart)) {
		return &ValidationError{
			Condition: InvalidCapacityWindow,
			Subject:   override.String(),
			Issue: goerrors.ErrInvalidInput{
				Caller:     "validateCapacityOverride",
				InputName:  "WindowEnd",
				InputValue: FormatDate(override.WindowEnd),
			},
		}
	}

	if override.Capacity < 0 {
		return &ValidationError{
			Condition: InvalidCapacityWindow,
			Subject:   override.String(),
			Issue: goerrors.ErrNegativeInput{
				InputName: "Capacity",
			},
		}
	}

	return nil
}

// sortOverrides returns a sorted copy without exact duplicates.
func sortOverrides(overrides []CapacityOverride) []CapacityOverride {
	sorted := slices.Clone(overrides)

	slices.SortStableFunc(
		sorted,
		func(a, b CapacityOverride) int {
			return civilDay(a.WindowStart).Compare(civilDay(b.WindowStart))
		},
	)

	return slices.CompactFunc(
		sorted,
		func(a, b CapacityOverride) bool {
			return a.sameAs(b)
		},
	)
}
