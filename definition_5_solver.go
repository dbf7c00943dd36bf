package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

// SolverStatus classifies a solve.
type SolverStatus string

const (
	StatusOptimal    SolverStatus = "OPTIMAL"
	StatusFeasible   SolverStatus = "FEASIBLE"
	StatusInfeasible SolverStatus = "INFEASIBLE"
	StatusUnknown    SolverStatus = "UNKNOWN"
	StatusError      SolverStatus = "ERROR"
)

// HasSchedule is true for the statuses that carry a usable schedule.
func (s SolverStatus) HasSchedule() bool {
	return s == StatusOptimal || s == StatusFeasible
}

const (
	DefaultTimeLimit = 30 * time.Second
	DefaultWorkers   = 4

	_CheckEveryNodes = 256
)

type ParamsSolve struct {
	Model     *Model
	TimeLimit time.Duration

	// Workers bounds the search goroutines; the first one runs the exact
	// search, the others sample priority driven schedules.
	Workers int
	Logger  *slog.Logger
}

// Solution is the raw outcome of the solver driver.
type Solution struct {
	Status    SolverStatus
	Objective int64

	unitStart   []int64
	stepMachine []int

	WallTime time.Duration
	Nodes    int64
	Fault    error
}

type incumbent struct {
	mu sync.Mutex

	value atomic.Int64

	unitStart   []int64
	stepMachine []int
}

func newIncumbent() *incumbent {
	var result incumbent

	result.value.Store(math.MaxInt64)

	return &result
}

// offer keeps the assignment only when strictly better.
func (inc *incumbent) offer(value int64, p *placement) bool {
	if value >= inc.value.Load() {
		return false
	}

	inc.mu.Lock()
	defer inc.mu.Unlock()

	if value >= inc.value.Load() {
		return false
	}

	inc.unitStart = slices.Clone(p.unitStart)
	inc.stepMachine = slices.Clone(p.stepMachine)
	inc.value.Store(value)

	return true
}

func (inc *incumbent) snapshot() (int64, []int64, []int, bool) {
	inc.mu.Lock()
	defer inc.mu.Unlock()

	value := inc.value.Load()

	return value, inc.unitStart, inc.stepMachine, value != math.MaxInt64
}

// Solve runs the search under the wall-clock limit and classifies the result.
func Solve(ctx context.Context, params *ParamsSolve) *Solution {
	started := time.Now()

	logger := params.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	model := params.Model

	if model.IsInfeasibleByConstruction() {
		logger.Info(
			"model infeasible by construction",

			"conflicts", len(model.conflicts),
		)

		return &Solution{
			Status:   StatusInfeasible,
			WallTime: time.Since(started),
		}
	}

	if len(model.units) == 0 {
		return &Solution{
			Status:   StatusOptimal,
			WallTime: time.Since(started),
		}
	}

	timeLimit := ternary(params.TimeLimit > 0, params.TimeLimit, DefaultTimeLimit)
	workers := ternary(params.Workers > 0, params.Workers, DefaultWorkers)

	ctxLimit, cancelLimit := context.WithTimeout(ctx, timeLimit)
	defer cancelLimit()

	ctxSearch, cancelSearch := context.WithCancel(ctxLimit)
	defer cancelSearch()

	logger.Debug(
		"solve started",

		"steps", len(model.steps),
		"units", len(model.units),
		"horizon", model.Horizon,
		"workers", workers,
		"time_limit", timeLimit,
	)

	shared := newIncumbent()
	exact := exactSearch{
		model:   model,
		shared:  shared,
		ownBest: math.MaxInt64,
	}

	var exhausted atomic.Bool

	group, ctxGroup := errgroup.WithContext(ctxSearch)

	group.Go(
		func() (errWorker error) {
			defer recoverWorker(0, &errWorker)

			if exact.run(ctxGroup) {
				exhausted.Store(true)
				cancelSearch()
			}

			return nil
		},
	)

	for worker := 1; worker < workers; worker++ {
		group.Go(
			func() (errWorker error) {
				defer recoverWorker(worker, &errWorker)

				sampleSchedules(ctxGroup, model, shared, uint64(worker))

				return nil
			},
		)
	}

	errSearch := group.Wait()

	solution := Solution{
		WallTime: time.Since(started),
		Nodes:    exact.nodes,
	}

	switch {
	case errSearch != nil:
		solution.Status = StatusError
		solution.Fault = errSearch

	case exhausted.Load() && exact.found:
		solution.Status = StatusOptimal
		solution.Objective = exact.ownBest
		solution.unitStart = exact.bestStart
		solution.stepMachine = exact.bestMachine

	case exhausted.Load():
		solution.Status = StatusInfeasible

	default:
		value, unitStart, stepMachine, found := shared.snapshot()
		if found {
			solution.Status = StatusFeasible
			solution.Objective = value
			solution.unitStart = unitStart
			solution.stepMachine = stepMachine
		} else {
			solution.Status = StatusUnknown
		}
	}

	logger.Info(
		"solve finished",

		"status", solution.Status,
		"objective", solution.Objective,
		"nodes", solution.Nodes,
		"wall_time", solution.WallTime,
	)

	return &solution
}

func recoverWorker(worker int, errWorker *error) {
	if recovered := recover(); recovered != nil {
		*errWorker = fmt.Errorf(
			"solver worker %d: %v",

			worker,
			recovered,
		)
	}
}

// exactSearch enumerates unit orders depth first with bounding. The first
// optimal schedule in its own order is the one kept, so repeated runs agree.
type exactSearch struct {
	model  *Model
	shared *incumbent

	ownBest     int64
	bestStart   []int64
	bestMachine []int
	found       bool

	nodes   int64
	stopped bool
	scratch []int64
}

// run returns true when the search space was exhausted.
func (s *exactSearch) run(ctx context.Context) bool {
	p := newPlacement(s.model)
	s.scratch = make([]int64, len(s.model.units))

	s.descend(ctx, p)

	return !s.stopped
}

func (s *exactSearch) descend(ctx context.Context, p *placement) {
	if s.stopped {
		return
	}

	s.nodes++
	if s.nodes%_CheckEveryNodes == 0 && ctx.Err() != nil {
		s.stopped = true

		return
	}

	if p.isComplete() {
		value := s.model.objective(p.unitStart)
		if value < s.ownBest {
			s.ownBest = value
			s.bestStart = slices.Clone(p.unitStart)
			s.bestMachine = slices.Clone(p.stepMachine)
			s.found = true

			s.shared.offer(value, p)
		}

		return
	}

	bound := s.model.lowerBound(p.unitStart, s.scratch)
	if bound >= s.ownBest || bound > s.shared.value.Load() {
		return
	}

	for _, unitIx := range eligibleByUrgency(p) {
		for _, c := range p.candidates(unitIx, true) {
			p.apply(unitIx, c)
			s.descend(ctx, p)
			p.undo(unitIx)

			if s.stopped {
				return
			}
		}
	}
}

// eligibleByUrgency orders ready units: pinned first, then by project
// weight, latest start, earliest start and input order.
func eligibleByUrgency(p *placement) []int {
	var result []int

	for unitIx := range p.model.units {
		if p.isEligible(unitIx) {
			result = append(result, unitIx)
		}
	}

	units := p.model.units

	slices.SortStableFunc(
		result,
		func(a, b int) int {
			ua, ub := &units[a], &units[b]

			switch {
			case ua.isFixed != ub.isFixed:
				return ternary(ua.isFixed, -1, 1)

			case ua.weight != ub.weight:
				return ternary(ua.weight > ub.weight, -1, 1)

			case ua.latestStart != ub.latestStart:
				return ternary(ua.latestStart < ub.latestStart, -1, 1)

			case ua.earliestStart != ub.earliestStart:
				return ternary(ua.earliestStart < ub.earliestStart, -1, 1)
			}

			return a - b
		},
	)

	return result
}

// sampleSchedules builds serial schedules from randomized urgency orders
// until the context ends, offering each complete one to the incumbent.
func sampleSchedules(ctx context.Context, model *Model, shared *incumbent, seed uint64) {
	rng := rand.New(rand.NewPCG(seed, seed*0x9e3779b97f4a7c15))
	p := newPlacement(model)

	for ctx.Err() == nil {
		if sampleOnce(model, p, rng) {
			shared.offer(model.objective(p.unitStart), p)
		}

		for unitIx := range model.units {
			if p.unitStart[unitIx] >= 0 {
				p.undo(unitIx)
			}
		}
	}
}

// sampleOnce picks ready units with a bias towards the most urgent one.
func sampleOnce(model *Model, p *placement, rng *rand.Rand) bool {
	for !p.isComplete() {
		eligible := eligibleByUrgency(p)
		if len(eligible) == 0 {
			return false
		}

		unitIx := eligible[biasedIndex(len(eligible), rng)]

		candidates := p.candidates(unitIx, false)
		if len(candidates) == 0 {
			return false
		}

		p.apply(unitIx, candidates[rng.IntN(len(candidates))])
	}

	return true
}

// biasedIndex draws i in [0, n) with weight proportional to (n-i)^2.
func biasedIndex(n int, rng *rand.Rand) int {
	total := 0
	for i := range n {
		total = total + (n-i)*(n-i)
	}

	draw := rng.IntN(total)

	for i := range n {
		draw = draw - (n-i)*(n-i)
		if draw < 0 {
			return i
		}
	}

	return n - 1
}
