package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	scheduler "github.com/TudorHulban/production-scheduler"
)

// Publisher persists a newly accepted context before it becomes current.
// A failing publish rolls the mutation back.
type Publisher interface {
	Publish(ctx context.Context, sc *scheduler.SchedulingContext) error
}

type PublishFunc func(ctx context.Context, sc *scheduler.SchedulingContext) error

func (f PublishFunc) Publish(ctx context.Context, sc *scheduler.SchedulingContext) error {
	return f(ctx, sc)
}

// Session owns the shared rule state and serializes every
// mutate-then-recompute so at most one solve runs per context version.
type Session struct {
	mu sync.Mutex

	current *scheduler.SchedulingContext
	plan    *scheduler.ScheduleResult

	options   *scheduler.SolveOptions
	publisher Publisher
	logger    *slog.Logger
}

type ParamsNewSession struct {
	Context *scheduler.SchedulingContext
	Options *scheduler.SolveOptions

	// Publisher is optional; nil keeps accepted contexts in memory only.
	Publisher Publisher
	Logger    *slog.Logger
}

func NewSession(params *ParamsNewSession) *Session {
	logger := params.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	options := params.Options
	if options == nil {
		options = &scheduler.SolveOptions{}
	}

	return &Session{
		current:   params.Context,
		options:   options,
		publisher: params.Publisher,
		logger:    logger,
	}
}

// Context returns the current accepted context.
func (s *Session) Context() *scheduler.SchedulingContext {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.current
}

// Plan returns the last plan with a schedule, or ErrNoPlan.
func (s *Session) Plan() (*scheduler.ScheduleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.plan == nil {
		return nil, ErrNoPlan
	}

	return s.plan, nil
}

// Recompute solves the current context. A plan is kept only when the
// solver returned a schedule.
func (s *Session) Recompute(ctx context.Context) (*scheduler.ScheduleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.current.ComputeSchedule(ctx, s.options)
	if err != nil {
		s.logger.Warn(
			"recompute failed",
			"version", s.current.Version(),
			"error", err,
		)

		return result, err
	}

	s.plan = result

	s.logger.Info(
		"recomputed",
		"version", s.current.Version(),
		"status", string(result.Status),
		"objective", result.Objective,
	)

	return result, nil
}

// Apply runs one mutation and the solve that follows it as a single step.
// A rejected mutation or a solve without a schedule leaves both the
// context and the previous plan in place.
func (s *Session) Apply(ctx context.Context, mutation Mutation) (*scheduler.ScheduleResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, groupID, err := mutation.Apply(s.current)
	if err != nil {
		s.logger.Warn(
			"mutation rejected",
			"mutation", mutation.String(),
			"error", err,
		)

		return nil, err
	}

	result, err := next.ComputeSchedule(ctx, s.options)
	if err != nil {
		var errTimeout *scheduler.SolverTimeoutError

		s.logger.Warn(
			"mutation rolled back",
			"mutation", mutation.String(),
			"timeout", errors.As(err, &errTimeout),
			"error", err,
		)

		return result, err
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, next); err != nil {
			s.logger.Warn(
				"publish failed, mutation rolled back",
				"mutation", mutation.String(),
				"error", err,
			)

			return nil, err
		}
	}

	s.current = next
	s.plan = result

	s.logger.Info(
		"mutation accepted",
		"mutation", mutation.String(),
		"group", groupID,
		"version", next.Version(),
		"status", string(result.Status),
		"objective", result.Objective,
	)

	return result, nil
}
