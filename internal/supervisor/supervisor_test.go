package supervisor

import (
	"context"
	"errors"
	"testing"
	"time"

	scheduler "github.com/TudorHulban/production-scheduler"
	"github.com/stretchr/testify/require"
)

var testToday = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

func testDay(offset int) time.Time {
	return testToday.AddDate(0, 0, offset)
}

func testContext(t *testing.T, steps []scheduler.StepRow, fixed []scheduler.FixedStartRule) *scheduler.SchedulingContext {
	t.Helper()

	sc, errCr := scheduler.NewSchedulingContext(
		&scheduler.ParamsNewSchedulingContext{
			Steps: steps,
			Resources: []scheduler.ResourceRow{
				{Name: "Design", Capacity: 1},
				{Name: "Cutting", Capacity: 2},
				{Name: "Assembly", Capacity: 1},
			},
			FixedStarts: fixed,
			Today:       testToday,
		},
	)
	require.NoError(t, errCr)

	return sc
}

func testStep(id, projectName, resourceName string, duration, due, priority, tolerance int) scheduler.StepRow {
	return scheduler.StepRow{
		StepID:        id,
		ProjectName:   projectName,
		DueDate:       testDay(due),
		Priority:      priority,
		StepName:      "Step " + id,
		ResourceName:  resourceName,
		DurationDays:  duration,
		ToleranceDays: tolerance,
	}
}

func testSession(sc *scheduler.SchedulingContext, publisher Publisher) *Session {
	return NewSession(
		&ParamsNewSession{
			Context: sc,
			Options: &scheduler.SolveOptions{
				TimeLimit: 10 * time.Second,
				Workers:   2,
			},
			Publisher: publisher,
		},
	)
}

var confirmAll = ConfirmFunc(
	func(context.Context, Mutation) (bool, error) {
		return true, nil
	},
)

func TestSupervisorApproves(t *testing.T) {
	sc := testContext(
		t,
		[]scheduler.StepRow{
			testStep("A", "P1", "Design", 2, 5, 3, 0),
		},
		nil,
	)

	session := testSession(sc, nil)

	supervisor := Supervisor{
		Session: session,
		Advisor: AdvisorFunc(
			func(_ context.Context, _ *scheduler.ScheduleResult, attempt int) (Advice, error) {
				if attempt == 1 {
					return Advice{
							Mutation: &Mutation{
								Kind:        SetProjectPriority,
								ProjectName: "P1",
								Priority:    1,
							},
						},
						nil
				}

				return Advice{Approve: true}, nil
			},
		),
		Confirmer: confirmAll,
	}

	outcome, errRun := supervisor.Run(context.Background())
	require.NoError(t, errRun)
	require.Equal(t, PhaseApproved, outcome.Phase)
	require.Equal(t, 1, outcome.Attempts)
	require.Len(t, outcome.Applied, 1)
	require.Equal(
		t,
		[]Phase{PhaseRecomputing, PhaseReviewing, PhaseProposing, PhaseRecomputing, PhaseReviewing, PhaseApproved},
		outcome.Trace,
	)

	require.EqualValues(t, 2, session.Context().Version())

	plan, errPlan := session.Plan()
	require.NoError(t, errPlan)
	require.Same(t, outcome.Plan, plan)
	require.Equal(t, 1, plan.Projects[0].Priority)
}

func TestSupervisorExhausted(t *testing.T) {
	t.Run(
		"1. every proposal declined",
		func(t *testing.T) {
			sc := testContext(
				t,
				[]scheduler.StepRow{
					testStep("A", "P1", "Design", 2, 5, 3, 0),
				},
				nil,
			)

			session := testSession(sc, nil)

			supervisor := Supervisor{
				Session: session,
				Advisor: AdvisorFunc(
					func(context.Context, *scheduler.ScheduleResult, int) (Advice, error) {
						return Advice{
								Mutation: &Mutation{
									Kind:        DeleteProject,
									ProjectName: "P1",
								},
							},
							nil
					},
				),
				Confirmer: ConfirmFunc(
					func(context.Context, Mutation) (bool, error) {
						return false, nil
					},
				),
				MaxAttempts: 2,
			}

			outcome, errRun := supervisor.Run(context.Background())
			require.ErrorIs(t, errRun, ErrAttemptsExhausted)
			require.Equal(t, PhaseExhausted, outcome.Phase)
			require.Len(t, outcome.Declined, 2)
			require.Empty(t, outcome.Applied)
			require.EqualValues(t, 1, session.Context().Version())
		},
	)

	t.Run(
		"2. tardiness advisor runs out of ranks",
		func(t *testing.T) {
			sc := testContext(
				t,
				[]scheduler.StepRow{
					testStep("A", "P1", "Assembly", 3, 3, 5, 0),
					testStep("B", "P2", "Assembly", 3, 3, 1, 2),
				},
				nil,
			)

			session := testSession(sc, nil)

			supervisor := Supervisor{
				Session:   session,
				Advisor:   TardinessAdvisor{},
				Confirmer: confirmAll,
			}

			outcome, errRun := supervisor.Run(context.Background())
			require.ErrorIs(t, errRun, ErrAttemptsExhausted)
			require.Equal(t, DefaultMaxAttempts, outcome.Attempts)
			require.Len(t, outcome.Applied, 4)
			require.EqualValues(t, 5, session.Context().Version())

			p1, found := outcome.Plan.Project("P1")
			require.True(t, found)
			require.Equal(t, scheduler.PriorityHighest, p1.Priority)
		},
	)
}

func TestSessionRollback(t *testing.T) {
	pinned := []scheduler.FixedStartRule{
		{
			StepID:    "K1",
			StartDate: testDay(1),
		},
	}

	closeCutting := Mutation{
		Kind:         SetCapacityWindow,
		ResourceName: "Cutting",
		WindowStart:  testDay(0),
		WindowEnd:    testDay(3),
		Capacity:     0,
	}

	t.Run(
		"1. infeasible solve keeps the previous plan",
		func(t *testing.T) {
			session := testSession(
				testContext(
					t,
					[]scheduler.StepRow{
						testStep("K1", "P1", "Cutting", 2, 10, 3, 0),
					},
					pinned,
				),
				nil,
			)

			before, errRecompute := session.Recompute(context.Background())
			require.NoError(t, errRecompute)

			result, errApply := session.Apply(context.Background(), closeCutting)

			var errInfeasible *scheduler.SolverInfeasibleError
			require.True(t, errors.As(errApply, &errInfeasible))
			require.Equal(t, scheduler.StatusInfeasible, result.Status)

			require.EqualValues(t, 1, session.Context().Version())
			require.Empty(t, session.Context().CapacityOverrides())

			plan, errPlan := session.Plan()
			require.NoError(t, errPlan)
			require.Same(t, before, plan)
		},
	)

	t.Run(
		"2. failed publish rolls back",
		func(t *testing.T) {
			errStorage := errors.New("disk full")

			session := testSession(
				testContext(
					t,
					[]scheduler.StepRow{
						testStep("K1", "P1", "Cutting", 2, 10, 3, 0),
					},
					nil,
				),
				PublishFunc(
					func(context.Context, *scheduler.SchedulingContext) error {
						return errStorage
					},
				),
			)

			_, errApply := session.Apply(context.Background(), closeCutting)
			require.ErrorIs(t, errApply, errStorage)
			require.EqualValues(t, 1, session.Context().Version())

			_, errPlan := session.Plan()
			require.ErrorIs(t, errPlan, ErrNoPlan)
		},
	)

	t.Run(
		"3. rejected mutation",
		func(t *testing.T) {
			session := testSession(
				testContext(
					t,
					[]scheduler.StepRow{
						testStep("K1", "P1", "Cutting", 2, 10, 3, 0),
					},
					nil,
				),
				nil,
			)

			result, errApply := session.Apply(
				context.Background(),
				Mutation{
					Kind:        SetProjectPriority,
					ProjectName: "P9",
					Priority:    1,
				},
			)
			require.Error(t, errApply)
			require.Nil(t, result)

			_, _, errUnknown := Mutation{Kind: "rename"}.Apply(session.Context())
			require.ErrorIs(t, errUnknown, ErrUnknownMutation)
		},
	)
}

func TestTardinessAdvisor(t *testing.T) {
	tests := []struct {
		name     string
		plan     *scheduler.ScheduleResult
		approve  bool
		mutation *Mutation
	}{
		{
			name: "1. no schedule",
			plan: &scheduler.ScheduleResult{
				Status: scheduler.StatusInfeasible,
			},
		},
		{
			name: "2. all within tolerance",
			plan: &scheduler.ScheduleResult{
				Status: scheduler.StatusOptimal,
				Projects: []scheduler.ProjectSummary{
					{ProjectName: "P1", Priority: 3, DelayDays: 2, ToleranceDays: 2},
				},
			},
			approve: true,
		},
		{
			name: "3. largest excess raised one rank",
			plan: &scheduler.ScheduleResult{
				Status: scheduler.StatusFeasible,
				Projects: []scheduler.ProjectSummary{
					{ProjectName: "P1", Priority: 3, DelayDays: 3, ToleranceDays: 1, ExceedsTolerance: true},
					{ProjectName: "P2", Priority: 4, DelayDays: 6, ToleranceDays: 1, ExceedsTolerance: true},
					{ProjectName: "P3", Priority: 1, DelayDays: 9, ToleranceDays: 0, ExceedsTolerance: true},
				},
			},
			mutation: &Mutation{
				Kind:        SetProjectPriority,
				ProjectName: "P2",
				Priority:    3,
			},
		},
		{
			name: "4. late projects already highest",
			plan: &scheduler.ScheduleResult{
				Status: scheduler.StatusOptimal,
				Projects: []scheduler.ProjectSummary{
					{ProjectName: "P3", Priority: 1, DelayDays: 9, ExceedsTolerance: true},
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name,
			func(t *testing.T) {
				advice, errAdvise := TardinessAdvisor{}.Advise(context.Background(), tt.plan, 1)
				require.NoError(t, errAdvise)
				require.Equal(t, tt.approve, advice.Approve)
				require.Equal(t, tt.mutation, advice.Mutation)
				require.NotEmpty(t, advice.Note)
			},
		)
	}
}

func TestPhaseString(t *testing.T) {
	require.Equal(t, "proposing", PhaseProposing.String())
	require.Equal(t, "unknown", Phase(42).String())
	require.True(t, PhaseExhausted.IsTerminal())
	require.False(t, PhaseReviewing.IsTerminal())

	require.Equal(
		t,
		"set capacity of Cutting to 0 in [2025-03-03, 2025-03-05]",
		Mutation{
			Kind:         SetCapacityWindow,
			ResourceName: "Cutting",
			WindowStart:  testDay(0),
			WindowEnd:    testDay(2),
		}.String(),
	)
}
