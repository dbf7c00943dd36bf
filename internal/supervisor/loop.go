package supervisor

import (
	"context"
	"fmt"
	"log/slog"

	scheduler "github.com/TudorHulban/production-scheduler"
)

// DefaultMaxAttempts bounds the proposals one supervised run may make.
const DefaultMaxAttempts = 5

// Advice is the advisor's verdict on a plan: approve it, or propose one
// mutation. Advice with neither still spends an attempt.
type Advice struct {
	Approve  bool
	Mutation *Mutation
	Note     string
}

// Advisor reviews a committed plan.
type Advisor interface {
	Advise(ctx context.Context, plan *scheduler.ScheduleResult, attempt int) (Advice, error)
}

type AdvisorFunc func(ctx context.Context, plan *scheduler.ScheduleResult, attempt int) (Advice, error)

func (f AdvisorFunc) Advise(ctx context.Context, plan *scheduler.ScheduleResult, attempt int) (Advice, error) {
	return f(ctx, plan, attempt)
}

// Confirmer gates every proposed mutation before it touches the rule state.
type Confirmer interface {
	Confirm(ctx context.Context, mutation Mutation) (bool, error)
}

type ConfirmFunc func(ctx context.Context, mutation Mutation) (bool, error)

func (f ConfirmFunc) Confirm(ctx context.Context, mutation Mutation) (bool, error) {
	return f(ctx, mutation)
}

// Outcome holds the result of a supervised run.
type Outcome struct {
	Phase    Phase
	Attempts int
	Plan     *scheduler.ScheduleResult

	Applied  []Mutation
	Declined []Mutation
	Failed   []Mutation

	// Trace lists every phase entered, in order.
	Trace []Phase
	Notes []string
}

// Supervisor drives Reviewing, Proposing and Recomputing until the advisor
// approves or the attempts run out.
type Supervisor struct {
	Session     *Session
	Advisor     Advisor
	Confirmer   Confirmer
	MaxAttempts int
	Logger      *slog.Logger
}

func (s *Supervisor) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}

	return s.Logger
}

func (s *Supervisor) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}

	return s.MaxAttempts
}

// Run computes an initial plan and supervises it. Exhaustion returns the
// last committed plan together with ErrAttemptsExhausted.
func (s *Supervisor) Run(ctx context.Context) (*Outcome, error) {
	outcome := Outcome{
		Phase: PhaseIdle,
	}

	enter := func(phase Phase) {
		s.logger().Debug(
			"supervisor transition",
			"from", outcome.Phase.String(),
			"to", phase.String(),
			"attempt", outcome.Attempts,
		)

		outcome.Phase = phase
		outcome.Trace = append(outcome.Trace, phase)
	}

	enter(PhaseRecomputing)

	plan, err := s.Session.Recompute(ctx)
	if err != nil {
		if plan == nil {
			return &outcome, fmt.Errorf("initial recompute: %w", err)
		}

		// an infeasible start is still reviewed, the advisor may relax it
		outcome.Notes = append(outcome.Notes, "initial recompute: "+err.Error())
	}

	outcome.Plan = plan

	var proposal *Mutation

	for !outcome.Phase.IsTerminal() {
		if err := ctx.Err(); err != nil {
			return &outcome, err
		}

		switch outcome.Phase {
		case PhaseRecomputing:
			enter(PhaseReviewing)

		case PhaseReviewing:
			if outcome.Attempts >= s.maxAttempts() {
				enter(PhaseExhausted)

				continue
			}

			advice, err := s.Advisor.Advise(ctx, outcome.Plan, outcome.Attempts+1)
			if err != nil {
				return &outcome, fmt.Errorf("advisor: %w", err)
			}

			if len(advice.Note) > 0 {
				outcome.Notes = append(outcome.Notes, advice.Note)
			}

			if advice.Approve {
				enter(PhaseApproved)

				continue
			}

			outcome.Attempts++

			if advice.Mutation == nil {
				s.logger().Warn(
					"advisor neither approved nor proposed",
					"attempt", outcome.Attempts,
				)

				continue
			}

			proposal = advice.Mutation

			enter(PhaseProposing)

		case PhaseProposing:
			confirmed, err := s.Confirmer.Confirm(ctx, *proposal)
			if err != nil {
				return &outcome, fmt.Errorf("confirmer: %w", err)
			}

			if !confirmed {
				outcome.Declined = append(outcome.Declined, *proposal)

				enter(PhaseReviewing)

				continue
			}

			enter(PhaseRecomputing)

			plan, err := s.Session.Apply(ctx, *proposal)
			if err != nil {
				outcome.Failed = append(outcome.Failed, *proposal)
				outcome.Notes = append(outcome.Notes, proposal.String()+": "+err.Error())

				continue
			}

			outcome.Applied = append(outcome.Applied, *proposal)
			outcome.Plan = plan
		}
	}

	s.logger().Info(
		"supervisor finished",
		"phase", outcome.Phase.String(),
		"attempts", outcome.Attempts,
		"applied", len(outcome.Applied),
	)

	if outcome.Phase == PhaseExhausted {
		return &outcome, ErrAttemptsExhausted
	}

	return &outcome, nil
}
