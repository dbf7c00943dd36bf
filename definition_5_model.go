package scheduler

import (
	"fmt"
	"slices"
	"strings"
	"time"

	goerrors "github.com/TudorHulban/go-errors"
)

const DefaultHorizonSlackDays = 7

// WeightFunc maps a priority rank (1 highest) to its tardiness weight.
type WeightFunc func(priority int) int64

// InverseRankWeight gives weight 60/priority: 60, 30, 20, 15, 12.
func InverseRankWeight(priority int) int64 {
	return 60 / int64(priority)
}

// LinearRankWeight gives weight 6-priority: 5, 4, 3, 2, 1.
func LinearRankWeight(priority int) int64 {
	return int64(PriorityLowest + 1 - priority)
}

// ExponentialRankWeight gives weight 2^(5-priority): 16, 8, 4, 2, 1.
func ExponentialRankWeight(priority int) int64 {
	return 1 << (PriorityLowest - priority)
}

func WeightByName(name string) (WeightFunc, error) {
	switch strings.ToLower(name) {
	case "", "inverse-rank":
		return InverseRankWeight, nil

	case "linear-rank":
		return LinearRankWeight, nil

	case "exponential-rank":
		return ExponentialRankWeight, nil
	}

	return nil,
		goerrors.ErrInvalidInput{
			Caller:     "WeightByName",
			InputName:  "weighting",
			InputValue: name,
		}
}

type ParamsBuildModel struct {
	Normalized *NormalizedSteps
	Rules      *CompiledRules
	Today      time.Time

	HorizonSlackDays int64
	PriorityWeight   WeightFunc
}

type modelStep struct {
	step *Step

	unit     int
	resource int
	project  int
	machines []int

	duration int64
}

// unitEdge says the unit may start only lag days after the start of unit.
type unitEdge struct {
	unit int
	lag  int64
}

// modelUnit is a set of steps sharing one start variable: a manual group or
// a single ungrouped step.
type modelUnit struct {
	name    string
	members []int

	predecessors []unitEdge
	successors   []unitEdge

	earliestStart int64
	fixedStart    int64
	isFixed       bool

	maxDuration  int64
	tail         int64
	latestStart  int64
	weight       int64
	batchMembers bool
}

type modelResource struct {
	resource *Resource
	windows  []CapacityWindow
}

type modelProject struct {
	project *Project
	due     int64
	weight  int64
	steps   []int
}

// Model is the interval model of one solve: one start variable per unit,
// cumulative capacity per resource, exclusivity per machine, precedence
// lags between units and a priority weighted tardiness objective.
type Model struct {
	Today    time.Time
	Horizon  int64
	TieScale int64

	steps     []modelStep
	units     []modelUnit
	order     []int
	resources []modelResource
	machines  []*Machine
	projects  []modelProject

	ruleClasses []RuleClass
	conflicts   []string
}

func (m *Model) NumberSteps() int {
	return len(m.steps)
}

func (m *Model) NumberUnits() int {
	return len(m.units)
}

// Conflicts lists rule combinations that make the model infeasible before
// any search.
func (m *Model) Conflicts() []string {
	return slices.Clone(m.conflicts)
}

func (m *Model) IsInfeasibleByConstruction() bool {
	return len(m.conflicts) > 0
}

func (m *Model) capacityAt(resourceIx int, day int64) int {
	res := m.resources[resourceIx]

	for _, window := range res.windows {
		if window.Days.DayStart > day {
			break
		}

		if window.Days.Contains(day) {
			return window.Capacity
		}
	}

	return res.resource.Capacity
}

func (m *Model) infeasibilityReport() InfeasibilityReport {
	return InfeasibilityReport{
		RuleClasses: slices.Clone(m.ruleClasses),
		Conflicts:   slices.Clone(m.conflicts),
	}
}

// BuildModel constructs the model from normalized steps and compiled rules.
// Rule combinations that cannot hold together are recorded as conflicts
// rather than returned as error, so the caller gets an INFEASIBLE outcome.
func BuildModel(params *ParamsBuildModel) (*Model, error) {
	if params.Normalized == nil || params.Rules == nil {
		return nil,
			goerrors.ErrValidation{
				Caller: "BuildModel",
				Issue: goerrors.ErrNilInput{
					InputName: "Normalized or Rules",
				},
			}
	}

	weight := params.PriorityWeight
	if weight == nil {
		weight = InverseRankWeight
	}

	model := Model{
		Today:       civilDay(params.Today),
		ruleClasses: params.Rules.RuleClasses(),
	}

	model.addCatalog(params)
	model.addProjects(params, weight)
	model.addUnits(params)
	model.linkUnits()

	if !model.IsInfeasibleByConstruction() {
		model.sortUnits()
	}

	if !model.IsInfeasibleByConstruction() {
		model.propagateEarliestStarts()
	}

	model.setHorizon(
		ternary(
			params.HorizonSlackDays > 0,

			params.HorizonSlackDays,
			DefaultHorizonSlackDays,
		),
	)

	if !model.IsInfeasibleByConstruction() {
		model.computeTails()
	}

	return &model,
		nil
}

func (m *Model) addCatalog(params *ParamsBuildModel) {
	for _, resource := range params.Normalized.Resources {
		m.resources = append(
			m.resources,
			modelResource{
				resource: resource,
				windows:  params.Rules.CapacityWindows[resource.Name],
			},
		)
	}

	m.machines = slices.Clone(params.Normalized.Machines)
}

func (m *Model) addProjects(params *ParamsBuildModel, weight WeightFunc) {
	resourceIx := make(map[*Resource]int, len(m.resources))
	for ix, res := range m.resources {
		resourceIx[res.resource] = ix
	}

	machineIx := make(map[*Machine]int, len(m.machines))
	for ix, machine := range m.machines {
		machineIx[machine] = ix
	}

	for projectIx, project := range params.Normalized.Projects {
		compiled := modelProject{
			project: project,
			due:     dayOffset(params.Today, project.DueDate),
			weight:  weight(project.Priority),
		}

		for _, step := range project.Steps {
			machines := make([]int, len(step.Machines))
			for ix, machine := range step.Machines {
				machines[ix] = machineIx[machine]
			}

			compiled.steps = append(compiled.steps, len(m.steps))

			m.steps = append(
				m.steps,
				modelStep{
					step:     step,
					resource: resourceIx[step.Resource],
					project:  projectIx,
					machines: machines,
					duration: int64(step.DurationDays),
				},
			)
		}

		m.projects = append(m.projects, compiled)
	}
}

func (m *Model) addUnits(params *ParamsBuildModel) {
	stepIx := make(map[string]int, len(m.steps))
	for ix := range m.steps {
		stepIx[m.steps[ix].step.ID] = ix
	}

	unitOfGroup := make(map[string]int)

	// Units follow the input order of steps so the search is reproducible.
	for _, step := range params.Normalized.Steps {
		ix := stepIx[step.ID]

		groupID, isGrouped := params.Rules.GroupOf[step.ID]
		if !isGrouped {
			m.steps[ix].unit = len(m.units)
			m.units = append(
				m.units,
				modelUnit{
					name:    step.ID,
					members: []int{ix},
				},
			)

			continue
		}

		unit, exists := unitOfGroup[groupID]
		if !exists {
			unit = len(m.units)
			unitOfGroup[groupID] = unit

			m.units = append(
				m.units,
				modelUnit{
					name: "group " + groupID,
				},
			)
		}

		m.steps[ix].unit = unit
		m.units[unit].members = append(m.units[unit].members, ix)
	}

	for unitIx := range m.units {
		unit := &m.units[unitIx]

		for _, member := range unit.members {
			ms := m.steps[member]

			unit.maxDuration = maxOf(unit.maxDuration, ms.duration)
			unit.weight = maxOf(unit.weight, m.projects[ms.project].weight)
			unit.batchMembers = unit.batchMembers || ms.step.Resource.IsBatchable

			pinnedAt, isPinned := params.Rules.FixedStart[ms.step.ID]
			if !isPinned {
				continue
			}

			if unit.isFixed && unit.fixedStart != pinnedAt {
				m.conflicts = append(
					m.conflicts,
					fmt.Sprintf(
						"%s pins its members to different start dates (%s and %s)",

						unit.name,
						FormatDate(dateAt(m.Today, unit.fixedStart)),
						FormatDate(dateAt(m.Today, pinnedAt)),
					),
				)

				continue
			}

			unit.isFixed = true
			unit.fixedStart = pinnedAt
		}

		m.checkGroupMachines(unit)
	}
}

// checkGroupMachines flags members that can only run on the same machine:
// they cannot start together.
func (m *Model) checkGroupMachines(unit *modelUnit) {
	onlyMachine := make(map[int]string)

	for _, member := range unit.members {
		ms := m.steps[member]
		if len(ms.machines) != 1 {
			continue
		}

		if other, taken := onlyMachine[ms.machines[0]]; taken {
			m.conflicts = append(
				m.conflicts,
				fmt.Sprintf(
					"%s: steps %s and %s both need machine %s at the same time",

					unit.name,
					other,
					ms.step.ID,
					m.machines[ms.machines[0]].Name,
				),
			)

			continue
		}

		onlyMachine[ms.machines[0]] = ms.step.ID
	}
}

func (m *Model) linkUnits() {
	for ix := range m.steps {
		ms := m.steps[ix]

		for _, predecessor := range ms.step.Predecessors {
			predecessorIx := m.stepIndex(predecessor)
			predecessorUnit := m.steps[predecessorIx].unit

			if predecessorUnit == ms.unit {
				m.conflicts = append(
					m.conflicts,
					fmt.Sprintf(
						"%s: step %s must finish before member %s starts",

						m.units[ms.unit].name,
						predecessor.ID,
						ms.step.ID,
					),
				)

				continue
			}

			lag := m.steps[predecessorIx].duration

			m.units[ms.unit].predecessors = addEdge(m.units[ms.unit].predecessors, predecessorUnit, lag)
			m.units[predecessorUnit].successors = addEdge(m.units[predecessorUnit].successors, ms.unit, lag)
		}
	}
}

func (m *Model) stepIndex(step *Step) int {
	return slices.IndexFunc(
		m.steps,
		func(ms modelStep) bool {
			return ms.step == step
		},
	)
}

// addEdge keeps one edge per unit pair with the largest lag.
func addEdge(edges []unitEdge, unit int, lag int64) []unitEdge {
	for ix := range edges {
		if edges[ix].unit == unit {
			edges[ix].lag = maxOf(edges[ix].lag, lag)

			return edges
		}
	}

	return append(
		edges,
		unitEdge{
			unit: unit,
			lag:  lag,
		},
	)
}

func (m *Model) sortUnits() {
	order, errSort := topologicalOrder(
		len(m.units),
		func(ix int) []int {
			result := make([]int, len(m.units[ix].predecessors))

			for i, edge := range m.units[ix].predecessors {
				result[i] = edge.unit
			}

			return result
		},
	)
	if errSort != nil {
		m.conflicts = append(
			m.conflicts,
			"manual groups create a precedence cycle: "+errSort.Error(),
		)

		return
	}

	m.order = order
}

func (m *Model) propagateEarliestStarts() {
	for _, unitIx := range m.order {
		unit := &m.units[unitIx]

		var earliest int64

		for _, edge := range unit.predecessors {
			earliest = maxOf(earliest, m.units[edge.unit].earliestStart+edge.lag)
		}

		if unit.isFixed {
			if unit.fixedStart < earliest {
				m.conflicts = append(
					m.conflicts,
					fmt.Sprintf(
						"%s is pinned to %s but precedence allows %s at the earliest",

						unit.name,
						FormatDate(dateAt(m.Today, unit.fixedStart)),
						FormatDate(dateAt(m.Today, earliest)),
					),
				)
			}

			earliest = unit.fixedStart
		}

		unit.earliestStart = earliest
	}
}

// setHorizon bounds the last usable day: every pinned start, override window
// and precedence chain ends before it, with room to run all units one after
// another plus slack.
func (m *Model) setHorizon(slack int64) {
	var boundary, totalDuration int64

	for _, unit := range m.units {
		boundary = maxOf(boundary, unit.earliestStart+unit.maxDuration)
		totalDuration = totalDuration + unit.maxDuration
	}

	for _, res := range m.resources {
		for _, window := range res.windows {
			boundary = maxOf(boundary, window.Days.DayEnd)
		}
	}

	m.Horizon = boundary + totalDuration + slack
	m.TieScale = m.Horizon + 1
}

func (m *Model) computeTails() {
	for i := len(m.order) - 1; i >= 0; i-- {
		unit := &m.units[m.order[i]]

		unit.tail = unit.maxDuration

		for _, edge := range unit.successors {
			unit.tail = maxOf(unit.tail, edge.lag+m.units[edge.unit].tail)
		}
	}

	for unitIx := range m.units {
		unit := &m.units[unitIx]

		unit.latestStart = m.Horizon

		for _, member := range unit.members {
			due := m.projects[m.steps[member].project].due

			unit.latestStart = minOf(unit.latestStart, due-unit.tail)
		}
	}
}

// objective scores a complete assignment of unit starts.
func (m *Model) objective(unitStart []int64) int64 {
	var tardiness, makespan int64

	for _, project := range m.projects {
		var completion int64

		for _, stepIx := range project.steps {
			ms := m.steps[stepIx]

			completion = maxOf(completion, unitStart[ms.unit]+ms.duration)
		}

		makespan = maxOf(makespan, completion)
		tardiness = tardiness + project.weight*maxOf(0, completion-project.due)
	}

	return tardiness*m.TieScale + makespan
}

// lowerBound relaxes resources: unplaced units start as early as precedence
// allows after the placed ones.
func (m *Model) lowerBound(unitStart []int64, scratch []int64) int64 {
	for _, unitIx := range m.order {
		if unitStart[unitIx] >= 0 {
			scratch[unitIx] = unitStart[unitIx]

			continue
		}

		unit := &m.units[unitIx]
		if unit.isFixed {
			scratch[unitIx] = unit.fixedStart

			continue
		}

		earliest := unit.earliestStart
		for _, edge := range unit.predecessors {
			earliest = maxOf(earliest, scratch[edge.unit]+edge.lag)
		}

		scratch[unitIx] = earliest
	}

	return m.objective(scratch)
}
