package scheduler

import (
	"fmt"
	"slices"
	"strings"

	goerrors "github.com/TudorHulban/go-errors"
	"github.com/asaskevich/govalidator"
)

const _MaxSuggestions = 3

type ParamsNormalize struct {
	Steps     []StepRow
	Resources []ResourceRow
	Machines  []MachineRow

	// BatchClasses maps a step name to its batch class.
	BatchClasses map[string]string
}

// NormalizedSteps is the canonical in-memory form of one snapshot.
type NormalizedSteps struct {
	Steps    []*Step
	Projects []*Project

	Resources []*Resource
	Machines  []*Machine

	stepsByID       map[string]*Step
	projectsByName  map[string]*Project
	resourcesByName map[string]*Resource
	machinesByName  map[string]*Machine
}

func (n *NormalizedSteps) Step(id string) (*Step, bool) {
	step, exists := n.stepsByID[id]

	return step, exists
}

func (n *NormalizedSteps) Project(name string) (*Project, bool) {
	project, exists := n.projectsByName[name]

	return project, exists
}

func (n *NormalizedSteps) Resource(name string) (*Resource, bool) {
	resource, exists := n.resourcesByName[name]

	return resource, exists
}

// NormalizeSteps resolves resource, machine and predecessor references of
// raw step rows. It fails on the first offending row.
func NormalizeSteps(params *ParamsNormalize) (*NormalizedSteps, error) {
	result := NormalizedSteps{
		stepsByID:       make(map[string]*Step, len(params.Steps)),
		projectsByName:  make(map[string]*Project),
		resourcesByName: make(map[string]*Resource, len(params.Resources)),
		machinesByName:  make(map[string]*Machine, len(params.Machines)),
	}

	if errResources := result.addCatalog(params); errResources != nil {
		return nil,
			errResources
	}

	for ix := range params.Steps {
		if errStep := result.addStep(&params.Steps[ix], params.BatchClasses); errStep != nil {
			return nil,
				errStep
		}
	}

	if errResolve := result.resolvePredecessors(params.Steps); errResolve != nil {
		return nil,
			errResolve
	}

	if cycle := detectStepCycle(result.Steps); cycle != nil {
		return nil,
			&ValidationError{
				Condition: PredecessorCycle,
				StepID:    cycle[0],
				Subject:   strings.Join(cycle, " -> "),
			}
	}

	return &result,
		nil
}

func (n *NormalizedSteps) addCatalog(params *ParamsNormalize) error {
	for ix := range params.Resources {
		resource, errCr := NewResource(&params.Resources[ix])
		if errCr != nil {
			return errCr
		}

		if _, exists := n.resourcesByName[resource.Name]; exists {
			return &ValidationError{
				Condition: InvalidResource,
				Subject:   "duplicate resource " + resource.Name,
			}
		}

		n.resourcesByName[resource.Name] = resource
		n.Resources = append(n.Resources, resource)
	}

	for ix := range params.Machines {
		machine, errCr := NewMachine(&params.Machines[ix], n.resourcesByName)
		if errCr != nil {
			return errCr
		}

		if _, exists := n.machinesByName[machine.Name]; exists {
			return &ValidationError{
				Condition: MachineNotFound,
				Subject:   "duplicate machine " + machine.Name,
			}
		}

		n.machinesByName[machine.Name] = machine
		n.Machines = append(n.Machines, machine)
	}

	return nil
}

func (n *NormalizedSteps) addStep(row *StepRow, batchClasses map[string]string) error {
	if _, errValidation := govalidator.ValidateStruct(row); errValidation != nil {
		return &ValidationError{
			Condition: MissingField,
			StepID:    row.StepID,
			Issue: goerrors.ErrServiceValidation{
				ServiceName: "Normalizer",
				Caller:      "addStep",
				Issue:       errValidation,
			},
		}
	}

	if _, exists := n.stepsByID[row.StepID]; exists {
		return &ValidationError{
			Condition: DuplicateStep,
			StepID:    row.StepID,
		}
	}

	if row.DurationDays <= 0 {
		return &ValidationError{
			Condition: InvalidDuration,
			StepID:    row.StepID,
			Issue: goerrors.ErrInvalidInput{
				Caller:     "addStep",
				InputName:  "DurationDays",
				InputValue: row.DurationDays,
			},
		}
	}

	if row.ToleranceDays < 0 {
		return &ValidationError{
			Condition: InvalidTolerance,
			StepID:    row.StepID,
			Issue: goerrors.ErrNegativeInput{
				InputName: "ToleranceDays",
			},
		}
	}

	project, errProject := n.projectFor(row)
	if errProject != nil {
		return errProject
	}

	resource, exists := n.resourcesByName[row.ResourceName]
	if !exists {
		return &ValidationError{
			Condition: ResourceNotFound,
			StepID:    row.StepID,
			Subject:   "resource " + row.ResourceName,
		}
	}

	machines, errMachines := n.resolveMachines(row, resource)
	if errMachines != nil {
		return errMachines
	}

	batchClass := row.StepName
	if class, mapped := batchClasses[row.StepName]; mapped && len(class) > 0 {
		batchClass = class
	}

	step := Step{
		ID:            row.StepID,
		Name:          row.StepName,
		Project:       project,
		Resource:      resource,
		Machines:      machines,
		BatchClass:    batchClass,
		DurationDays:  row.DurationDays,
		ToleranceDays: row.ToleranceDays,
	}

	project.Steps = append(project.Steps, &step)
	n.Steps = append(n.Steps, &step)
	n.stepsByID[step.ID] = &step

	return nil
}

func (n *NormalizedSteps) projectFor(row *StepRow) (*Project, error) {
	if !IsValidPriority(row.Priority) {
		return nil,
			&ValidationError{
				Condition: InvalidPriority,
				StepID:    row.StepID,
				Subject:   "project " + row.ProjectName,
				Issue: goerrors.ErrInvalidInput{
					Caller:     "projectFor",
					InputName:  "Priority",
					InputValue: row.Priority,
				},
			}
	}

	if row.DueDate.IsZero() {
		return nil,
			&ValidationError{
				Condition: MissingField,
				StepID:    row.StepID,
				Subject:   "project " + row.ProjectName + " has no due date",
			}
	}

	project, exists := n.projectsByName[row.ProjectName]
	if !exists {
		project = &Project{
			Name:     row.ProjectName,
			DueDate:  civilDay(row.DueDate),
			Priority: row.Priority,
		}

		n.projectsByName[project.Name] = project
		n.Projects = append(n.Projects, project)

		return project,
			nil
	}

	if project.Priority != row.Priority || !project.DueDate.Equal(civilDay(row.DueDate)) {
		return nil,
			&ValidationError{
				Condition: InconsistentProject,
				StepID:    row.StepID,
				Subject: fmt.Sprintf(
					"project %s declared with different due date or priority",

					row.ProjectName,
				),
			}
	}

	return project,
		nil
}

func (n *NormalizedSteps) resolveMachines(row *StepRow, resource *Resource) ([]*Machine, error) {
	var result []*Machine

	for _, name := range row.MachineNames {
		name = strings.TrimSpace(name)
		if len(name) == 0 {
			continue
		}

		machine, exists := n.machinesByName[name]
		if !exists {
			return nil,
				&ValidationError{
					Condition: ResourceNotFound,
					StepID:    row.StepID,
					Subject:   "machine " + name,
				}
		}

		if machine.Resource != resource {
			return nil,
				&ValidationError{
					Condition: MachineResourceMismatch,
					StepID:    row.StepID,
					Subject: fmt.Sprintf(
						"machine %s belongs to %s, not %s",

						name,
						machine.Resource.Name,
						resource.Name,
					),
				}
		}

		if !slices.Contains(result, machine) {
			result = append(result, machine)
		}
	}

	if len(result) > 1 && !resource.AllowsMultiMachine {
		return nil,
			&ValidationError{
				Condition: MachineResourceMismatch,
				StepID:    row.StepID,
				Subject:   "resource " + resource.Name + " does not allow several machines per step",
			}
	}

	return result,
		nil
}

// resolvePredecessors matches names within the owning project first, then
// against the global name index. Misses are reported, never dropped.
func (n *NormalizedSteps) resolvePredecessors(rows []StepRow) error {
	byProjectAndName := make(map[[2]string][]*Step)
	byName := make(map[string][]*Step)

	for _, step := range n.Steps {
		key := [2]string{step.Project.Name, step.Name}

		byProjectAndName[key] = append(byProjectAndName[key], step)
		byName[step.Name] = append(byName[step.Name], step)
	}

	for ix := range rows {
		step := n.stepsByID[rows[ix].StepID]

		for _, rawName := range rows[ix].PredecessorNames {
			name := strings.TrimSpace(rawName)
			if len(name) == 0 {
				continue
			}

			predecessor, errResolve := n.resolvePredecessor(step, name, byProjectAndName, byName)
			if errResolve != nil {
				return errResolve
			}

			if !slices.Contains(step.Predecessors, predecessor) {
				step.Predecessors = append(step.Predecessors, predecessor)
			}
		}
	}

	return nil
}

func (n *NormalizedSteps) resolvePredecessor(step *Step, name string, byProjectAndName map[[2]string][]*Step, byName map[string][]*Step) (*Step, error) {
	candidates := byProjectAndName[[2]string{step.Project.Name, name}]

	if len(candidates) == 0 {
		for _, other := range byName[name] {
			if other.Project != step.Project {
				candidates = append(candidates, other)
			}
		}
	}

	switch len(candidates) {
	case 0:
		return nil,
			&ValidationError{
				Condition:   UnresolvedPredecessor,
				StepID:      step.ID,
				Subject:     "predecessor " + name,
				Suggestions: suggestStepNames(name, byName),
			}

	case 1:
		if candidates[0] == step {
			return nil,
				&ValidationError{
					Condition: PredecessorCycle,
					StepID:    step.ID,
					Subject:   "step lists itself as predecessor",
				}
		}

		return candidates[0],
			nil

	default:
		names := make([]string, len(candidates))
		for ix, candidate := range candidates {
			names[ix] = candidate.Project.Name + "/" + candidate.Name + " (" + candidate.ID + ")"
		}

		return nil,
			&ValidationError{
				Condition:   AmbiguousPredecessor,
				StepID:      step.ID,
				Subject:     "predecessor " + name,
				Suggestions: names,
			}
	}
}

// suggestStepNames is advisory only: callers must confirm any suggestion.
func suggestStepNames(name string, byName map[string][]*Step) []string {
	names := make([]string, 0, len(byName))
	for stepName := range byName {
		names = append(names, stepName)
	}

	slices.Sort(names)

	return fuzzySuggestions(name, names)
}

// detectStepCycle returns the step IDs along a cycle, or nil.
func detectStepCycle(steps []*Step) []string {
	const (
		white = iota
		gray
		black
	)

	color := make(map[*Step]int, len(steps))
	parent := make(map[*Step]*Step)

	var cycle []string

	var visit func(step *Step) bool

	visit = func(step *Step) bool {
		color[step] = gray

		for _, predecessor := range step.Predecessors {
			switch color[predecessor] {
			case gray:
				cycle = []string{predecessor.ID}
				for current := step; current != predecessor; current = parent[current] {
					cycle = append(cycle, current.ID)
				}

				cycle = append(cycle, predecessor.ID)

				return true

			case white:
				parent[predecessor] = step

				if visit(predecessor) {
					return true
				}
			}
		}

		color[step] = black

		return false
	}

	for _, step := range steps {
		if color[step] == white && visit(step) {
			return cycle
		}
	}

	return nil
}
