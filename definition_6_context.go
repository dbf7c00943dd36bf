package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	goerrors "github.com/TudorHulban/go-errors"
	"github.com/asaskevich/govalidator"
)

type ParamsNewSchedulingContext struct {
	Steps     []StepRow     `valid:"-"`
	Resources []ResourceRow `valid:"required"`
	Machines  []MachineRow  `valid:"-"`

	Groups            []ManualGroupRow   `valid:"-"`
	FixedStarts       []FixedStartRule   `valid:"-"`
	CapacityOverrides []CapacityOverride `valid:"-"`

	// BatchClasses maps step names to batch classes.
	BatchClasses map[string]string `valid:"-"`

	// Today is day 0 of the plan, the current date when zero.
	Today time.Time `valid:"-"`
}

// SchedulingContext is one immutable, validated snapshot of steps, catalogs
// and rules. Mutations return a new context and leave the receiver intact.
type SchedulingContext struct {
	steps     []StepRow
	resources []ResourceRow
	machines  []MachineRow

	groups            []ManualGroupRow
	fixedStarts       []FixedStartRule
	capacityOverrides []CapacityOverride

	batchClasses map[string]string

	today   time.Time
	version uint64

	normalized *NormalizedSteps
	rules      *CompiledRules
}

// NewSchedulingContext copies the inputs, normalizes the steps and compiles
// the rules. Any invalid row or rule rejects the whole context.
func NewSchedulingContext(params *ParamsNewSchedulingContext) (*SchedulingContext, error) {
	if params == nil {
		return nil,
			goerrors.ErrValidation{
				Caller: "NewSchedulingContext",
				Issue: goerrors.ErrNilInput{
					InputName: "params",
				},
			}
	}

	if _, errValidation := govalidator.ValidateStruct(params); errValidation != nil {
		return nil,
			&ValidationError{
				Condition: MissingField,
				Subject:   "scheduling context",
				Issue: goerrors.ErrServiceValidation{
					ServiceName: "SchedulingContext",
					Caller:      "NewSchedulingContext",
					Issue:       errValidation,
				},
			}
	}

	today := params.Today
	if today.IsZero() {
		today = time.Now()
	}

	candidate := SchedulingContext{
		steps:             cloneStepRows(params.Steps),
		resources:         slices.Clone(params.Resources),
		machines:          slices.Clone(params.Machines),
		groups:            slices.Clone(params.Groups),
		fixedStarts:       slices.Clone(params.FixedStarts),
		capacityOverrides: slices.Clone(params.CapacityOverrides),
		batchClasses:      maps.Clone(params.BatchClasses),
		today:             civilDay(today),
		version:           1,
	}

	if errCompile := candidate.compile(); errCompile != nil {
		return nil,
			errCompile
	}

	return &candidate,
		nil
}

func (sc *SchedulingContext) compile() error {
	normalized, errNormalize := NormalizeSteps(
		&ParamsNormalize{
			Steps:        sc.steps,
			Resources:    sc.resources,
			Machines:     sc.machines,
			BatchClasses: sc.batchClasses,
		},
	)
	if errNormalize != nil {
		return errNormalize
	}

	rules, errRules := CompileRules(
		&ParamsCompileRules{
			Normalized:        normalized,
			Today:             sc.today,
			Groups:            sc.groups,
			FixedStarts:       sc.fixedStarts,
			CapacityOverrides: sc.capacityOverrides,
		},
	)
	if errRules != nil {
		return errRules
	}

	sc.normalized = normalized
	sc.rules = rules

	return nil
}

// derive copies the receiver for a mutation. Slices are cloned so the edit
// never reaches the receiver.
func (sc *SchedulingContext) derive() *SchedulingContext {
	return &SchedulingContext{
		steps:             cloneStepRows(sc.steps),
		resources:         slices.Clone(sc.resources),
		machines:          slices.Clone(sc.machines),
		groups:            slices.Clone(sc.groups),
		fixedStarts:       slices.Clone(sc.fixedStarts),
		capacityOverrides: slices.Clone(sc.capacityOverrides),
		batchClasses:      sc.batchClasses,
		today:             sc.today,
		version:           sc.version + 1,
	}
}

// commit validates a derived context; on failure the caller keeps the
// previous one.
func (sc *SchedulingContext) commit() (*SchedulingContext, error) {
	if errCompile := sc.compile(); errCompile != nil {
		return nil,
			errCompile
	}

	return sc,
		nil
}

func cloneStepRows(rows []StepRow) []StepRow {
	result := slices.Clone(rows)

	for ix := range result {
		result[ix].MachineNames = slices.Clone(result[ix].MachineNames)
		result[ix].PredecessorNames = slices.Clone(result[ix].PredecessorNames)
	}

	return result
}

// Version grows by one with every accepted mutation.
func (sc *SchedulingContext) Version() uint64 {
	return sc.version
}

func (sc *SchedulingContext) Today() time.Time {
	return sc.today
}

func (sc *SchedulingContext) Steps() []StepRow {
	return cloneStepRows(sc.steps)
}

func (sc *SchedulingContext) Resources() []ResourceRow {
	return slices.Clone(sc.resources)
}

func (sc *SchedulingContext) Machines() []MachineRow {
	return slices.Clone(sc.machines)
}

func (sc *SchedulingContext) GroupRows() []ManualGroupRow {
	return slices.Clone(sc.groups)
}

func (sc *SchedulingContext) ManualGroups() []ManualGroup {
	result := slices.Clone(sc.rules.Groups)

	for ix := range result {
		result[ix].StepIDs = slices.Clone(result[ix].StepIDs)
	}

	return result
}

func (sc *SchedulingContext) FixedStarts() []FixedStartRule {
	return slices.Clone(sc.fixedStarts)
}

func (sc *SchedulingContext) CapacityOverrides() []CapacityOverride {
	return slices.Clone(sc.capacityOverrides)
}

func (sc *SchedulingContext) BatchClasses() map[string]string {
	return maps.Clone(sc.batchClasses)
}

// ProjectNames lists projects in input order.
func (sc *SchedulingContext) ProjectNames() []string {
	result := make([]string, len(sc.normalized.Projects))

	for ix, project := range sc.normalized.Projects {
		result[ix] = project.Name
	}

	return result
}

// PredecessorIDs returns the resolved predecessors of a step.
func (sc *SchedulingContext) PredecessorIDs(stepID string) ([]string, error) {
	step, exists := sc.normalized.Step(stepID)
	if !exists {
		return nil,
			&ValidationError{
				Condition: StepNotFound,
				StepID:    stepID,
			}
	}

	return step.PredecessorIDs(),
		nil
}

type SolveOptions struct {
	TimeLimit        time.Duration
	Workers          int
	HorizonSlackDays int64
	PriorityWeight   WeightFunc
	Logger           *slog.Logger
}

// ComputeSchedule solves the context. INFEASIBLE and UNKNOWN outcomes return
// the entry-less result together with a typed error.
func (sc *SchedulingContext) ComputeSchedule(ctx context.Context, options *SolveOptions) (*ScheduleResult, error) {
	if options == nil {
		options = &SolveOptions{}
	}

	model, errBuild := BuildModel(
		&ParamsBuildModel{
			Normalized:       sc.normalized,
			Rules:            sc.rules,
			Today:            sc.today,
			HorizonSlackDays: options.HorizonSlackDays,
			PriorityWeight:   options.PriorityWeight,
		},
	)
	if errBuild != nil {
		return nil,
			errBuild
	}

	solution := Solve(
		ctx,
		&ParamsSolve{
			Model:     model,
			TimeLimit: options.TimeLimit,
			Workers:   options.Workers,
			Logger:    options.Logger,
		},
	)

	result := extractSchedule(model, solution)
	result.ContextVersion = sc.version

	switch solution.Status {
	case StatusInfeasible:
		report := model.infeasibilityReport()
		result.Infeasibility = &report

		return result,
			&SolverInfeasibleError{
				Report: report,
			}

	case StatusUnknown:
		return result,
			&SolverTimeoutError{
				TimeLimit: ternary(options.TimeLimit > 0, options.TimeLimit, DefaultTimeLimit),
			}

	case StatusError:
		return result,
			fmt.Errorf(
				"solver fault: %w",

				solution.Fault,
			)
	}

	return result,
		nil
}

type ParamsComputeSchedule struct {
	Steps     []StepRow
	Resources []ResourceRow
	Machines  []MachineRow

	Groups            []ManualGroupRow
	FixedStarts       []FixedStartRule
	CapacityOverrides []CapacityOverride

	TimeLimit time.Duration

	BatchClasses     map[string]string
	Today            time.Time
	Workers          int
	HorizonSlackDays int64
	PriorityWeight   WeightFunc
	Logger           *slog.Logger
}

// ComputeSchedule is the one-shot form: it builds a context from the rows
// and solves it. Validation and rule errors come back without a result.
func ComputeSchedule(ctx context.Context, params *ParamsComputeSchedule) (*ScheduleResult, error) {
	if params == nil {
		return nil,
			goerrors.ErrValidation{
				Caller: "ComputeSchedule",
				Issue: goerrors.ErrNilInput{
					InputName: "params",
				},
			}
	}

	sc, errContext := NewSchedulingContext(
		&ParamsNewSchedulingContext{
			Steps:             params.Steps,
			Resources:         params.Resources,
			Machines:          params.Machines,
			Groups:            params.Groups,
			FixedStarts:       params.FixedStarts,
			CapacityOverrides: params.CapacityOverrides,
			BatchClasses:      params.BatchClasses,
			Today:             params.Today,
		},
	)
	if errContext != nil {
		return nil,
			errContext
	}

	return sc.ComputeSchedule(
		ctx,
		&SolveOptions{
			TimeLimit:        params.TimeLimit,
			Workers:          params.Workers,
			HorizonSlackDays: params.HorizonSlackDays,
			PriorityWeight:   params.PriorityWeight,
			Logger:           params.Logger,
		},
	)
}
