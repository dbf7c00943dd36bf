package scheduler

import (
	"errors"
	"testing"
	"time"

	goerrors "github.com/TudorHulban/go-errors"
	"github.com/stretchr/testify/require"
)

func TestErrorMessages(t *testing.T) {
	t.Run(
		"1. validation error names condition, step and suggestions",
		func(t *testing.T) {
			errValidation := &ValidationError{
				Condition:   UnresolvedPredecessor,
				StepID:      "B1",
				Subject:     "predecessor Assembly",
				Suggestions: []string{"Final Assembly"},
			}

			require.Equal(
				t,
				"UnresolvedPredecessor (step B1): predecessor Assembly (did you mean Final Assembly? confirmation required)",
				errValidation.Error(),
			)
		},
	)

	t.Run(
		"2. wrapped issue reachable",
		func(t *testing.T) {
			issue := goerrors.ErrNegativeInput{
				InputName: "ToleranceDays",
			}

			var errWrapped error = &ValidationError{
				Condition: InvalidTolerance,
				Issue:     issue,
			}

			var errNegative goerrors.ErrNegativeInput
			require.True(t, errors.As(errWrapped, &errNegative))
			require.Equal(t, "ToleranceDays", errNegative.InputName)
		},
	)

	t.Run(
		"3. infeasible fixed start carries the earliest date",
		func(t *testing.T) {
			errConflict := &RuleConflictError{
				Condition:     InfeasibleFixedStart,
				Rule:          "fixed start B on 2025-03-04",
				EarliestStart: testDay(3),
			}

			require.Contains(t, errConflict.Error(), "earliest feasible start 2025-03-06")
		},
	)

	t.Run(
		"4. solver errors",
		func(t *testing.T) {
			errInfeasible := &SolverInfeasibleError{
				Report: InfeasibilityReport{
					RuleClasses: []RuleClass{RuleClassFixedStarts},
				},
			}
			require.Contains(t, errInfeasible.Error(), "fixed_starts")

			errTimeout := &SolverTimeoutError{
				TimeLimit: 30 * time.Second,
			}
			require.Contains(t, errTimeout.Error(), "30s")

			var report *InfeasibilityReport
			require.Empty(t, report.String())
		},
	)
}

func TestDates(t *testing.T) {
	date, errParse := ParseDate("2025-03-10")
	require.NoError(t, errParse)
	require.EqualValues(t, 7, dayOffset(testToday, date))
	require.Equal(t, date, dateAt(testToday, 7))
	require.Equal(t, "2025-03-10", FormatDate(date))

	evening := time.Date(2025, time.March, 3, 23, 30, 0, 0, time.FixedZone("UTC+3", 3*3600))
	require.Zero(t, dayOffset(testToday, evening))

	_, errBad := ParseDate("10.03.2025")
	require.Error(t, errBad)
}
