package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var testToday = time.Date(2025, time.March, 3, 0, 0, 0, 0, time.UTC)

func testDay(offset int) time.Time {
	return testToday.AddDate(0, 0, offset)
}

func testResources() []ResourceRow {
	return []ResourceRow{
		{Name: "Design", Capacity: 1},
		{Name: "Cutting", Capacity: 2},
		{Name: "Assembly", Capacity: 1},
		{Name: "Freze", Capacity: 3, AllowsMultiMachine: true},
		{Name: "Kesimhane", Capacity: 1, IsBatchable: true},
	}
}

func testMachines() []MachineRow {
	return []MachineRow{
		{Name: "CNC-1", ResourceName: "Freze"},
		{Name: "CNC-2", ResourceName: "Freze"},
	}
}

// testStep is due on day 30 with priority 3 unless changed by the caller.
func testStep(id, projectName, stepName, resourceName string, duration int, predecessors ...string) StepRow {
	return StepRow{
		StepID:           id,
		ProjectName:      projectName,
		DueDate:          testDay(30),
		Priority:         3,
		StepName:         stepName,
		ResourceName:     resourceName,
		DurationDays:     duration,
		PredecessorNames: predecessors,
	}
}

func withProject(rows []StepRow, projectName string, due, priority int) []StepRow {
	for ix := range rows {
		if rows[ix].ProjectName == projectName {
			rows[ix].DueDate = testDay(due)
			rows[ix].Priority = priority
		}
	}

	return rows
}

func newTestContext(t *testing.T, params *ParamsNewSchedulingContext) *SchedulingContext {
	t.Helper()

	if params.Resources == nil {
		params.Resources = testResources()
	}

	if params.Machines == nil {
		params.Machines = testMachines()
	}

	params.Today = testToday

	sc, errCr := NewSchedulingContext(params)
	require.NoError(t, errCr)
	require.NotNil(t, sc)

	return sc
}

func solveTestContext(t *testing.T, sc *SchedulingContext) (*ScheduleResult, error) {
	t.Helper()

	return sc.ComputeSchedule(
		context.Background(),
		&SolveOptions{
			TimeLimit: 20 * time.Second,
			Workers:   2,
		},
	)
}

func buildTestModel(t *testing.T, sc *SchedulingContext) *Model {
	t.Helper()

	model, errBuild := BuildModel(
		&ParamsBuildModel{
			Normalized: sc.normalized,
			Rules:      sc.rules,
			Today:      sc.today,
		},
	)
	require.NoError(t, errBuild)

	return model
}

// requireHardConstraints checks precedence, base capacity of non-batchable
// resources and machine exclusivity on a solved schedule.
func requireHardConstraints(t *testing.T, sc *SchedulingContext, result *ScheduleResult) {
	t.Helper()

	capacity := make(map[string]int)
	batchable := make(map[string]bool)

	for _, row := range sc.Resources() {
		capacity[row.Name] = row.Capacity
		batchable[row.Name] = row.IsBatchable
	}

	for _, entry := range result.Entries {
		require.GreaterOrEqual(t, entry.Days().DayStart, int64(0), entry.StepID)

		predecessorIDs, errPredecessors := sc.PredecessorIDs(entry.StepID)
		require.NoError(t, errPredecessors)

		for _, predecessorID := range predecessorIDs {
			predecessor, found := result.Entry(predecessorID)
			require.True(t, found)
			require.False(
				t,
				entry.Start.Before(predecessor.End),
				"%s starts before %s ends",
				entry.StepID,
				predecessorID,
			)
		}
	}

	for day := int64(0); day < int64(result.Makespan); day++ {
		load := make(map[string]int)
		machines := make(map[string]int)

		for _, entry := range result.Entries {
			if !entry.Days().Contains(day) {
				continue
			}

			if !batchable[entry.ResourceName] {
				load[entry.ResourceName]++
			}

			if len(entry.MachineName) > 0 {
				machines[entry.MachineName]++
			}
		}

		for resourceName, active := range load {
			require.LessOrEqual(t, active, capacity[resourceName], "%s on day %d", resourceName, day)
		}

		for machineName, active := range machines {
			require.Equal(t, 1, active, "%s on day %d", machineName, day)
		}
	}
}
