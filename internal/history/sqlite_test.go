package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	scheduler "github.com/TudorHulban/production-scheduler"
	"github.com/stretchr/testify/require"
)

func testResult(t *testing.T) *scheduler.ScheduleResult {
	t.Helper()

	today := time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

	result, err := scheduler.ComputeSchedule(
		context.Background(),
		&scheduler.ParamsComputeSchedule{
			Steps: []scheduler.StepRow{
				{
					StepID:       "A",
					ProjectName:  "P1",
					DueDate:      today.AddDate(0, 0, 1),
					Priority:     2,
					StepName:     "Design",
					ResourceName: "Design",
					DurationDays: 2,
				},
				{
					StepID:           "B",
					ProjectName:      "P1",
					DueDate:          today.AddDate(0, 0, 1),
					Priority:         2,
					StepName:         "Cut",
					ResourceName:     "Cutting",
					DurationDays:     1,
					PredecessorNames: []string{"Design"},
				},
			},
			Resources: []scheduler.ResourceRow{
				{Name: "Design", Capacity: 1},
				{Name: "Cutting", Capacity: 1},
			},
			Today:     today,
			TimeLimit: 10 * time.Second,
			Workers:   2,
		},
	)
	require.NoError(t, err)

	return result
}

func TestStore(t *testing.T) {
	ctx := context.Background()

	store, errOpen := Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, errOpen)
	defer store.Close()

	result := testResult(t)

	t.Run(
		"1. record and list",
		func(t *testing.T) {
			first, errRecord := store.Record(ctx, "plan.toml", result)
			require.NoError(t, errRecord)

			second, errRecord := store.Record(ctx, "plan.toml", result)
			require.NoError(t, errRecord)
			require.Greater(t, second, first)

			records, errRecent := store.Recent(ctx, 1)
			require.NoError(t, errRecent)
			require.Len(t, records, 1)
			require.Equal(t, second, records[0].ID)
			require.Equal(t, scheduler.StatusOptimal, records[0].Status)
			require.Equal(t, "2025-03-03", records[0].Today)
			require.Equal(t, 3, records[0].Makespan)
			require.Equal(t, 1, records[0].Late)
			require.False(t, records[0].RecordedAt.IsZero())
		},
	)

	t.Run(
		"2. entries round trip",
		func(t *testing.T) {
			records, errRecent := store.Recent(ctx, 0)
			require.NoError(t, errRecent)
			require.Len(t, records, 2)

			entries, errEntries := store.Entries(ctx, records[0].ID)
			require.NoError(t, errEntries)
			require.Len(t, entries, 2)
			require.Equal(t, "A", entries[0].StepID)
			require.Equal(t, result.Entries[1].End, entries[1].End)
			require.Equal(t, 2, entries[1].DelayDays)
		},
	)

	t.Run(
		"3. refusals",
		func(t *testing.T) {
			_, errRecord := store.Record(
				ctx,
				"plan.toml",
				&scheduler.ScheduleResult{
					Status: scheduler.StatusInfeasible,
				},
			)
			require.Error(t, errRecord)

			_, errEntries := store.Entries(ctx, 999)
			require.ErrorIs(t, errEntries, ErrPlanNotFound)
		},
	)
}
