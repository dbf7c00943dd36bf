package scheduler

import (
	"fmt"
	"slices"
)

// topologicalOrder runs Kahn's algorithm over n nodes whose predecessors are
// given by index. Ready nodes are taken in ascending index for determinism.
func topologicalOrder(n int, predecessors func(ix int) []int) ([]int, error) {
	inDegree := make([]int, n)
	successors := make([][]int, n)

	for ix := range n {
		for _, predecessor := range predecessors(ix) {
			inDegree[ix]++
			successors[predecessor] = append(successors[predecessor], ix)
		}
	}

	var queue []int

	for ix := range n {
		if inDegree[ix] == 0 {
			queue = append(queue, ix)
		}
	}

	order := make([]int, 0, n)

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		var ready []int

		for _, successor := range successors[node] {
			inDegree[successor]--

			if inDegree[successor] == 0 {
				ready = append(ready, successor)
			}
		}

		slices.Sort(ready)
		queue = append(queue, ready...)
	}

	if len(order) != n {
		return nil,
			fmt.Errorf(
				"topological sort failed: graph has a cycle (%d of %d nodes sorted)",

				len(order),
				n,
			)
	}

	return order,
		nil
}

type stepIndex struct {
	steps []*Step
	ix    map[*Step]int
}

func newStepIndex(steps []*Step) *stepIndex {
	result := stepIndex{
		steps: steps,
		ix:    make(map[*Step]int, len(steps)),
	}

	for ix, step := range steps {
		result.ix[step] = ix
	}

	return &result
}

func (si *stepIndex) predecessors(ix int) []int {
	result := make([]int, len(si.steps[ix].Predecessors))

	for i, predecessor := range si.steps[ix].Predecessors {
		result[i] = si.ix[predecessor]
	}

	return result
}

// forwardPass computes, for every step, the earliest start day given minimum
// durations, precedence and any pinned starts. Pinned starts are taken as
// given; violating them is reported through the check callback.
func forwardPass(steps []*Step, pinned map[string]int64, check func(step *Step, earliest, pinnedAt int64) error) (map[string]int64, error) {
	index := newStepIndex(steps)

	order, errSort := topologicalOrder(len(steps), index.predecessors)
	if errSort != nil {
		return nil,
			errSort
	}

	earliestStart := make(map[string]int64, len(steps))

	for _, ix := range order {
		step := steps[ix]

		var earliest int64

		for _, predecessor := range step.Predecessors {
			earliest = maxOf(
				earliest,
				earliestStart[predecessor.ID]+int64(predecessor.DurationDays),
			)
		}

		if pinnedAt, isPinned := pinned[step.ID]; isPinned {
			if check != nil {
				if errCheck := check(step, earliest, pinnedAt); errCheck != nil {
					return nil,
						errCheck
				}
			}

			earliest = pinnedAt
		}

		earliestStart[step.ID] = earliest
	}

	return earliestStart,
		nil
}
