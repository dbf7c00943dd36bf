package scheduler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFindAvailableStart(t *testing.T) {
	sc := newTestContext(
		t,
		&ParamsNewSchedulingContext{
			Steps: []StepRow{
				testStep("X", "P1", "Fit X", "Assembly", 2),
				testStep("Y", "P1", "Fit Y", "Assembly", 2),
				testStep("K", "P1", "Cut", "Cutting", 3),
			},
			CapacityOverrides: []CapacityOverride{
				{
					ResourceName: "Cutting",
					WindowStart:  testDay(0),
					WindowEnd:    testDay(1),
					Capacity:     0,
				},
			},
		},
	)

	model := buildTestModel(t, sc)
	p := newPlacement(model)

	p.apply(
		0,
		candidate{
			start:    0,
			machines: []int{-1},
		},
	)

	tests := []struct {
		name           string
		params         paramsFindAvailableStart
		expectedResult int64
	}{
		{
			name: "1. busy now, available after the first step",
			params: paramsFindAvailableStart{
				DayStart:        0,
				MaximumDayStart: model.Horizon - 2,
				UnitIx:          1,
				Machines:        []int{-1},
			},
			expectedResult: 2,
		},
		{
			name: "2. no room before the maximum start",
			params: paramsFindAvailableStart{
				DayStart:        0,
				MaximumDayStart: 1,
				UnitIx:          1,
				Machines:        []int{-1},
			},
			expectedResult: _NoAvailability,
		},
		{
			name: "3. closed window skipped",
			params: paramsFindAvailableStart{
				DayStart:        0,
				MaximumDayStart: model.Horizon - 3,
				UnitIx:          2,
				Machines:        []int{-1},
			},
			expectedResult: 2,
		},
		{
			name: "4. empty range",
			params: paramsFindAvailableStart{
				DayStart:        5,
				MaximumDayStart: 4,
				UnitIx:          2,
				Machines:        []int{-1},
			},
			expectedResult: _NoAvailability,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name,
			func(t *testing.T) {
				require.Equal(t, tt.expectedResult, p.findAvailableStart(&tt.params))
			},
		)
	}

	p.undo(0)
	require.Zero(t, p.placed)
	require.Empty(t, p.usage[model.steps[0].resource][0])
}

func TestCandidatesBatchJoins(t *testing.T) {
	sc := newTestContext(
		t,
		&ParamsNewSchedulingContext{
			Steps: []StepRow{
				testStep("K1", "P1", "Kesim", "Kesimhane", 3),
				testStep("K2", "P2", "Kesim", "Kesimhane", 1),
			},
			Resources: []ResourceRow{
				{Name: "Kesimhane", Capacity: 2, IsBatchable: true},
			},
			Machines: []MachineRow{},
		},
	)

	model := buildTestModel(t, sc)
	p := newPlacement(model)

	p.apply(
		0,
		candidate{
			start:    2,
			machines: []int{-1},
		},
	)

	starts := func(candidates []candidate) []int64 {
		result := make([]int64, len(candidates))
		for ix, c := range candidates {
			result[ix] = c.start
		}

		return result
	}

	require.Equal(t, []int64{0, 2}, starts(p.candidates(1, true)))
	require.Equal(t, []int64{0}, starts(p.candidates(1, false)))

	p.apply(1, p.candidates(1, true)[1])

	// the joined batch holds one unit of capacity
	require.Len(t, p.usage[0][2], 1)
}

func TestMachineChoices(t *testing.T) {
	rows := []StepRow{
		testStep("M1", "P1", "Mill 1", "Freze", 2),
		testStep("M2", "P1", "Mill 2", "Freze", 2),
	}
	rows[0].MachineNames = []string{"CNC-1", "CNC-2"}
	rows[1].MachineNames = []string{"CNC-1", "CNC-2"}

	sc := newTestContext(
		t,
		&ParamsNewSchedulingContext{
			Steps: rows,
			Groups: []ManualGroupRow{
				{GroupID: "g1", StepID: "M1"},
				{GroupID: "g1", StepID: "M2"},
			},
		},
	)

	model := buildTestModel(t, sc)
	p := newPlacement(model)

	require.Equal(
		t,
		[][]int{
			{0, 1},
			{1, 0},
		},
		p.machineChoices(0),
	)

	candidates := p.candidates(0, true)
	require.Len(t, candidates, 2)

	p.apply(0, candidates[0])
	require.True(t, p.isComplete())
	require.Equal(t, []int{0, 1}, p.stepMachine)
}
