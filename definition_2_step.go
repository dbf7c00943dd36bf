package scheduler

import (
	"time"
)

const (
	PriorityHighest = 1
	PriorityLowest  = 5
)

// StepRow is the raw shape of one step as delivered by callers.
// Project fields repeat on every row of the same project.
type StepRow struct {
	StepID      string    `valid:"required"`
	ProjectName string    `valid:"required"`
	DueDate     time.Time `valid:"-"`
	Priority    int

	StepName         string `valid:"required"`
	ResourceName     string `valid:"required"`
	MachineNames     []string
	DurationDays     int
	ToleranceDays    int
	PredecessorNames []string
}

type Project struct {
	Name     string
	DueDate  time.Time
	Priority int

	// Steps in input order.
	Steps []*Step
}

// Step is the canonical form produced by the normalizer.
type Step struct {
	ID   string
	Name string

	Project  *Project
	Resource *Resource

	// Machines are the permitted machines; the model picks exactly one
	// when the list is not empty.
	Machines []*Machine

	Predecessors []*Step

	// BatchClass groups steps that may share one unit of a batchable resource.
	BatchClass string

	DurationDays  int
	ToleranceDays int
}

func (s *Step) PredecessorIDs() []string {
	result := make([]string, len(s.Predecessors))

	for ix, predecessor := range s.Predecessors {
		result[ix] = predecessor.ID
	}

	return result
}

func IsValidPriority(priority int) bool {
	return priority >= PriorityHighest && priority <= PriorityLowest
}
