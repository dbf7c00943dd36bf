package snapshot

import (
	"fmt"
	"slices"
	"strings"
	"time"

	goerrors "github.com/TudorHulban/go-errors"
	scheduler "github.com/TudorHulban/production-scheduler"
	"github.com/asaskevich/govalidator"
)

// StepDocument is one step row as stored on disk. Dates are YYYY-MM-DD
// strings, quoted in TOML.
type StepDocument struct {
	ID           string   `toml:"id" yaml:"id" valid:"required"`
	Project      string   `toml:"project" yaml:"project" valid:"required"`
	DueDate      string   `toml:"due" yaml:"due" valid:"required"`
	Priority     int      `toml:"priority" yaml:"priority" valid:"-"`
	Name         string   `toml:"name" yaml:"name" valid:"required"`
	Resource     string   `toml:"resource" yaml:"resource" valid:"required"`
	Machines     []string `toml:"machines,omitempty" yaml:"machines,omitempty" valid:"-"`
	Duration     int      `toml:"duration" yaml:"duration" valid:"-"`
	Tolerance    int      `toml:"tolerance,omitempty" yaml:"tolerance,omitempty" valid:"-"`
	Predecessors []string `toml:"predecessors,omitempty" yaml:"predecessors,omitempty" valid:"-"`
}

type GroupDocument struct {
	ID    string   `toml:"id" yaml:"id" valid:"required"`
	Steps []string `toml:"steps" yaml:"steps" valid:"required"`
}

type FixedStartDocument struct {
	Step  string `toml:"step" yaml:"step" valid:"required"`
	Start string `toml:"start" yaml:"start" valid:"required"`
}

type CapacityDocument struct {
	Resource string `toml:"resource" yaml:"resource" valid:"required"`
	From     string `toml:"from" yaml:"from" valid:"required"`
	To       string `toml:"to" yaml:"to" valid:"required"`
	Capacity int    `toml:"capacity" yaml:"capacity" valid:"-"`
}

// Document is the file form of a scheduling context.
type Document struct {
	Today string `toml:"today,omitempty" yaml:"today,omitempty" valid:"-"`

	Resources []scheduler.ResourceRow `toml:"resources" yaml:"resources" valid:"required"`
	Machines  []scheduler.MachineRow  `toml:"machines,omitempty" yaml:"machines,omitempty" valid:"-"`
	Steps     []StepDocument          `toml:"steps" yaml:"steps"`

	Groups            []GroupDocument      `toml:"groups,omitempty" yaml:"groups,omitempty"`
	FixedStarts       []FixedStartDocument `toml:"fixed_starts,omitempty" yaml:"fixed_starts,omitempty"`
	CapacityOverrides []CapacityDocument   `toml:"capacity_overrides,omitempty" yaml:"capacity_overrides,omitempty"`

	BatchClasses map[string]string `toml:"batch_classes,omitempty" yaml:"batch_classes,omitempty" valid:"-"`
}

type ParamsToContext struct {
	// BatchableResources marks resources batchable by name, case insensitive.
	BatchableResources []string

	// BatchClasses add to the document's classes, the document winning.
	BatchClasses map[string]string

	// Today overrides the document date when set.
	Today time.Time
}

// ToContext validates the document and builds a scheduling context from it.
func (d *Document) ToContext(params *ParamsToContext) (*scheduler.SchedulingContext, error) {
	if params == nil {
		params = &ParamsToContext{}
	}

	if _, errValidation := govalidator.ValidateStruct(d); errValidation != nil {
		return nil,
			goerrors.ErrServiceValidation{
				ServiceName: "snapshot",
				Caller:      "ToContext",
				Issue:       errValidation,
			}
	}

	today := params.Today

	if today.IsZero() && len(d.Today) > 0 {
		parsed, errParse := parseDate("today", d.Today)
		if errParse != nil {
			return nil,
				errParse
		}

		today = parsed
	}

	steps, errSteps := d.stepRows()
	if errSteps != nil {
		return nil,
			errSteps
	}

	fixedStarts, errFixed := d.fixedStartRules()
	if errFixed != nil {
		return nil,
			errFixed
	}

	overrides, errOverrides := d.capacityOverrides()
	if errOverrides != nil {
		return nil,
			errOverrides
	}

	return scheduler.NewSchedulingContext(
		&scheduler.ParamsNewSchedulingContext{
			Steps:             steps,
			Resources:         markBatchable(d.Resources, params.BatchableResources),
			Machines:          d.Machines,
			Groups:            d.groupRows(),
			FixedStarts:       fixedStarts,
			CapacityOverrides: overrides,
			BatchClasses:      mergeBatchClasses(params.BatchClasses, d.BatchClasses),
			Today:             today,
		},
	)
}

func (d *Document) stepRows() ([]scheduler.StepRow, error) {
	result := make([]scheduler.StepRow, 0, len(d.Steps))

	for _, step := range d.Steps {
		due, errDue := parseDate("due date of step "+step.ID, step.DueDate)
		if errDue != nil {
			return nil,
				errDue
		}

		result = append(
			result,
			scheduler.StepRow{
				StepID:           step.ID,
				ProjectName:      step.Project,
				DueDate:          due,
				Priority:         step.Priority,
				StepName:         step.Name,
				ResourceName:     step.Resource,
				MachineNames:     slices.Clone(step.Machines),
				DurationDays:     step.Duration,
				ToleranceDays:    step.Tolerance,
				PredecessorNames: slices.Clone(step.Predecessors),
			},
		)
	}

	return result,
		nil
}

func (d *Document) groupRows() []scheduler.ManualGroupRow {
	var result []scheduler.ManualGroupRow

	for _, group := range d.Groups {
		for _, stepID := range group.Steps {
			result = append(
				result,
				scheduler.ManualGroupRow{
					GroupID: group.ID,
					StepID:  stepID,
				},
			)
		}
	}

	return result
}

func (d *Document) fixedStartRules() ([]scheduler.FixedStartRule, error) {
	result := make([]scheduler.FixedStartRule, 0, len(d.FixedStarts))

	for _, fixed := range d.FixedStarts {
		start, errStart := parseDate("fixed start of step "+fixed.Step, fixed.Start)
		if errStart != nil {
			return nil,
				errStart
		}

		result = append(
			result,
			scheduler.FixedStartRule{
				StepID:    fixed.Step,
				StartDate: start,
			},
		)
	}

	return result,
		nil
}

func (d *Document) capacityOverrides() ([]scheduler.CapacityOverride, error) {
	result := make([]scheduler.CapacityOverride, 0, len(d.CapacityOverrides))

	for _, override := range d.CapacityOverrides {
		from, errFrom := parseDate("capacity window start of "+override.Resource, override.From)
		if errFrom != nil {
			return nil,
				errFrom
		}

		to, errTo := parseDate("capacity window end of "+override.Resource, override.To)
		if errTo != nil {
			return nil,
				errTo
		}

		result = append(
			result,
			scheduler.CapacityOverride{
				ResourceName: override.Resource,
				WindowStart:  from,
				WindowEnd:    to,
				Capacity:     override.Capacity,
			},
		)
	}

	return result,
		nil
}

// FromContext captures the context in file form. Today is left out so the
// plan date follows the clock unless the caller pins it.
func FromContext(sc *scheduler.SchedulingContext) *Document {
	result := Document{
		Resources:    sc.Resources(),
		Machines:     sc.Machines(),
		BatchClasses: sc.BatchClasses(),
	}

	for _, row := range sc.Steps() {
		result.Steps = append(
			result.Steps,
			StepDocument{
				ID:           row.StepID,
				Project:      row.ProjectName,
				DueDate:      scheduler.FormatDate(row.DueDate),
				Priority:     row.Priority,
				Name:         row.StepName,
				Resource:     row.ResourceName,
				Machines:     slices.Clone(row.MachineNames),
				Duration:     row.DurationDays,
				Tolerance:    row.ToleranceDays,
				Predecessors: slices.Clone(row.PredecessorNames),
			},
		)
	}

	for _, group := range sc.ManualGroups() {
		result.Groups = append(
			result.Groups,
			GroupDocument{
				ID:    group.ID,
				Steps: slices.Clone(group.StepIDs),
			},
		)
	}

	for _, fixed := range sc.FixedStarts() {
		result.FixedStarts = append(
			result.FixedStarts,
			FixedStartDocument{
				Step:  fixed.StepID,
				Start: scheduler.FormatDate(fixed.StartDate),
			},
		)
	}

	for _, override := range sc.CapacityOverrides() {
		result.CapacityOverrides = append(
			result.CapacityOverrides,
			CapacityDocument{
				Resource: override.ResourceName,
				From:     scheduler.FormatDate(override.WindowStart),
				To:       scheduler.FormatDate(override.WindowEnd),
				Capacity: override.Capacity,
			},
		)
	}

	if len(result.BatchClasses) == 0 {
		result.BatchClasses = nil
	}

	return &result
}

func parseDate(subject, value string) (time.Time, error) {
	date, errParse := scheduler.ParseDate(value)
	if errParse != nil {
		return time.Time{},
			fmt.Errorf(
				"%s: %w",

				subject,
				goerrors.ErrInvalidInput{
					Caller:     "snapshot",
					InputName:  subject,
					InputValue: value,
				},
			)
	}

	return date,
		nil
}

func markBatchable(resources []scheduler.ResourceRow, names []string) []scheduler.ResourceRow {
	result := slices.Clone(resources)

	for ix := range result {
		if slices.ContainsFunc(
			names,
			func(name string) bool {
				return strings.EqualFold(strings.TrimSpace(name), result[ix].Name)
			},
		) {
			result[ix].IsBatchable = true
		}
	}

	return result
}

func mergeBatchClasses(base, document map[string]string) map[string]string {
	if len(base) == 0 && len(document) == 0 {
		return nil
	}

	result := make(map[string]string, len(base)+len(document))

	for name, class := range base {
		result[name] = class
	}

	for name, class := range document {
		result[name] = class
	}

	return result
}
