package scheduler

import (
	"slices"
	"strconv"
)

const _NoAvailability = int64(-1)

// placement is the mutable search state of one worker.
type placement struct {
	model *Model

	// usage[resource][day] counts active load keys; a batch shares one key.
	usage [][]map[string]int

	// batchStarts[resource][class] counts active batches by start day.
	batchStarts []map[string]map[int64]int

	machineBusy [][]bool

	unitStart   []int64
	stepMachine []int
	placed      int
}

func newPlacement(model *Model) *placement {
	result := placement{
		model:       model,
		usage:       make([][]map[string]int, len(model.resources)),
		batchStarts: make([]map[string]map[int64]int, len(model.resources)),
		machineBusy: make([][]bool, len(model.machines)),
		unitStart:   make([]int64, len(model.units)),
		stepMachine: make([]int, len(model.steps)),
	}

	for ix := range model.resources {
		result.usage[ix] = make([]map[string]int, model.Horizon)
		result.batchStarts[ix] = make(map[string]map[int64]int)
	}

	for ix := range model.machines {
		result.machineBusy[ix] = make([]bool, model.Horizon)
	}

	for ix := range result.unitStart {
		result.unitStart[ix] = -1
	}

	for ix := range result.stepMachine {
		result.stepMachine[ix] = -1
	}

	return &result
}

func (p *placement) isComplete() bool {
	return p.placed == len(p.model.units)
}

func (p *placement) loadKey(stepIx int, start int64) string {
	ms := p.model.steps[stepIx]

	if ms.step.Resource.IsBatchable {
		return "batch:" + ms.step.BatchClass + "@" + strconv.FormatInt(start, 10)
	}

	return "step:" + ms.step.ID
}

// fits reports whether the step can occupy [start, start+duration) on its
// resource and, when machineIx >= 0, on that machine.
func (p *placement) fits(stepIx int, start int64, machineIx int) bool {
	ms := p.model.steps[stepIx]
	end := start + ms.duration

	if start < 0 || end > p.model.Horizon {
		return false
	}

	key := p.loadKey(stepIx, start)

	for day := start; day < end; day++ {
		if machineIx >= 0 && p.machineBusy[machineIx][day] {
			return false
		}

		active := p.usage[ms.resource][day]

		if _, shared := active[key]; shared {
			continue
		}

		if len(active)+1 > p.model.capacityAt(ms.resource, day) {
			return false
		}
	}

	return true
}

func (p *placement) occupy(stepIx int, start int64, machineIx int) {
	ms := p.model.steps[stepIx]
	key := p.loadKey(stepIx, start)

	for day := start; day < start+ms.duration; day++ {
		if p.usage[ms.resource][day] == nil {
			p.usage[ms.resource][day] = make(map[string]int)
		}

		p.usage[ms.resource][day][key]++

		if machineIx >= 0 {
			p.machineBusy[machineIx][day] = true
		}
	}

	if ms.step.Resource.IsBatchable {
		starts := p.batchStarts[ms.resource][ms.step.BatchClass]
		if starts == nil {
			starts = make(map[int64]int)
			p.batchStarts[ms.resource][ms.step.BatchClass] = starts
		}

		starts[start]++
	}

	p.stepMachine[stepIx] = machineIx
}

func (p *placement) release(stepIx int, start int64) {
	ms := p.model.steps[stepIx]
	key := p.loadKey(stepIx, start)
	machineIx := p.stepMachine[stepIx]

	for day := start; day < start+ms.duration; day++ {
		active := p.usage[ms.resource][day]

		active[key]--
		if active[key] == 0 {
			delete(active, key)
		}

		if machineIx >= 0 {
			p.machineBusy[machineIx][day] = false
		}
	}

	if ms.step.Resource.IsBatchable {
		starts := p.batchStarts[ms.resource][ms.step.BatchClass]

		starts[start]--
		if starts[start] == 0 {
			delete(starts, start)
		}
	}

	p.stepMachine[stepIx] = -1
}

// candidate is one way to start a unit: a day and a machine per member
// (-1 where the member needs none).
type candidate struct {
	start    int64
	machines []int
}

// tryOccupy places every member of the unit at start or nothing at all.
func (p *placement) tryOccupy(unitIx int, start int64, machines []int) bool {
	members := p.model.units[unitIx].members

	for ix, member := range members {
		if !p.fits(member, start, machines[ix]) {
			for undo := ix - 1; undo >= 0; undo-- {
				p.release(members[undo], start)
			}

			return false
		}

		p.occupy(member, start, machines[ix])
	}

	return true
}

func (p *placement) apply(unitIx int, c candidate) {
	if !p.tryOccupy(unitIx, c.start, c.machines) {
		panic("placement: applying a candidate that does not fit")
	}

	p.unitStart[unitIx] = c.start
	p.placed++
}

func (p *placement) undo(unitIx int) {
	start := p.unitStart[unitIx]

	members := p.model.units[unitIx].members
	for ix := len(members) - 1; ix >= 0; ix-- {
		p.release(members[ix], start)
	}

	p.unitStart[unitIx] = -1
	p.placed--
}

func (p *placement) isEligible(unitIx int) bool {
	if p.unitStart[unitIx] >= 0 {
		return false
	}

	for _, edge := range p.model.units[unitIx].predecessors {
		if p.unitStart[edge.unit] < 0 {
			return false
		}
	}

	return true
}

// readyAt is the earliest start allowed by placed predecessors.
func (p *placement) readyAt(unitIx int) int64 {
	unit := &p.model.units[unitIx]
	ready := unit.earliestStart

	for _, edge := range unit.predecessors {
		ready = maxOf(ready, p.unitStart[edge.unit]+edge.lag)
	}

	return ready
}

type paramsFindAvailableStart struct {
	DayStart        int64
	MaximumDayStart int64

	UnitIx   int
	Machines []int
}

// findAvailableStart returns the first day in [DayStart, MaximumDayStart]
// on which the whole unit fits, or _NoAvailability.
func (p *placement) findAvailableStart(params *paramsFindAvailableStart) int64 {
	if params.DayStart > params.MaximumDayStart {
		return _NoAvailability
	}

	for start := params.DayStart; start <= params.MaximumDayStart; start++ {
		if p.tryOccupy(params.UnitIx, start, params.Machines) {
			members := p.model.units[params.UnitIx].members
			for ix := len(members) - 1; ix >= 0; ix-- {
				p.release(members[ix], start)
			}

			return start
		}
	}

	return _NoAvailability
}

// machineChoices enumerates machine assignments for the unit members,
// skipping assignments that reuse a machine inside the unit.
func (p *placement) machineChoices(unitIx int) [][]int {
	members := p.model.units[unitIx].members

	result := [][]int{make([]int, 0, len(members))}

	for _, member := range members {
		options := p.model.steps[member].machines
		if len(options) == 0 {
			options = []int{-1}
		}

		next := make([][]int, 0, len(result)*len(options))

		for _, prefix := range result {
			for _, machine := range options {
				if machine >= 0 && slices.Contains(prefix, machine) {
					continue
				}

				choice := make([]int, len(prefix), len(members))
				copy(choice, prefix)

				next = append(next, append(choice, machine))
			}
		}

		result = next
	}

	return result
}

// candidates lists the starts worth trying for a unit. The earliest fitting
// start of every machine assignment always appears; with joins set, starts
// of already running batches of the same class are offered too, since
// joining a batch can beat starting earlier alone.
func (p *placement) candidates(unitIx int, joins bool) []candidate {
	unit := &p.model.units[unitIx]
	ready := p.readyAt(unitIx)

	maximumStart := p.model.Horizon - unit.maxDuration
	if unit.isFixed {
		if unit.fixedStart < ready {
			return nil
		}

		ready = unit.fixedStart
		maximumStart = unit.fixedStart
	}

	var result []candidate

	seen := make(map[int64]bool)

	for _, machines := range p.machineChoices(unitIx) {
		clear(seen)

		start := p.findAvailableStart(
			&paramsFindAvailableStart{
				DayStart:        ready,
				MaximumDayStart: maximumStart,
				UnitIx:          unitIx,
				Machines:        machines,
			},
		)
		if start == _NoAvailability {
			continue
		}

		seen[start] = true

		result = append(
			result,
			candidate{
				start:    start,
				machines: machines,
			},
		)

		if !joins || !unit.batchMembers || unit.isFixed {
			continue
		}

		for _, joinStart := range p.batchJoinStarts(unitIx, start, maximumStart) {
			if seen[joinStart] {
				continue
			}

			seen[joinStart] = true

			if p.findAvailableStart(
				&paramsFindAvailableStart{
					DayStart:        joinStart,
					MaximumDayStart: joinStart,
					UnitIx:          unitIx,
					Machines:        machines,
				},
			) == _NoAvailability {
				continue
			}

			result = append(
				result,
				candidate{
					start:    joinStart,
					machines: machines,
				},
			)
		}
	}

	slices.SortStableFunc(
		result,
		func(a, b candidate) int {
			switch {
			case a.start < b.start:
				return -1

			case a.start > b.start:
				return 1
			}

			return 0
		},
	)

	return result
}

// batchJoinStarts returns, sorted, start days of active batches matching a
// batchable member's class, later than after and no later than maximum.
func (p *placement) batchJoinStarts(unitIx int, after, maximum int64) []int64 {
	var result []int64

	for _, member := range p.model.units[unitIx].members {
		ms := p.model.steps[member]
		if !ms.step.Resource.IsBatchable {
			continue
		}

		for start := range p.batchStarts[ms.resource][ms.step.BatchClass] {
			if start > after && start <= maximum && !slices.Contains(result, start) {
				result = append(result, start)
			}
		}
	}

	slices.Sort(result)

	return result
}
