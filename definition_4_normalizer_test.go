package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func normalizeTestRows(rows ...StepRow) (*NormalizedSteps, error) {
	return NormalizeSteps(
		&ParamsNormalize{
			Steps:     rows,
			Resources: testResources(),
			Machines:  testMachines(),
		},
	)
}

func TestNormalizeStepsErrors(t *testing.T) {
	withMachines := func(row StepRow, machines ...string) StepRow {
		row.MachineNames = machines

		return row
	}

	withTolerance := func(row StepRow, tolerance int) StepRow {
		row.ToleranceDays = tolerance

		return row
	}

	withPriority := func(row StepRow, priority int) StepRow {
		row.Priority = priority

		return row
	}

	tests := []struct {
		name      string
		rows      []StepRow
		condition Condition
		stepID    string
	}{
		{
			name: "1. unknown resource",
			rows: []StepRow{
				testStep("A", "P1", "Paint", "Paintshop", 1),
			},
			condition: ResourceNotFound,
			stepID:    "A",
		},
		{
			name: "2. unknown machine",
			rows: []StepRow{
				withMachines(testStep("A", "P1", "Mill", "Freze", 1), "CNC-9"),
			},
			condition: ResourceNotFound,
			stepID:    "A",
		},
		{
			name: "3. machine of another resource",
			rows: []StepRow{
				withMachines(testStep("A", "P1", "Cut", "Cutting", 1), "CNC-1"),
			},
			condition: MachineResourceMismatch,
			stepID:    "A",
		},
		{
			name: "4. zero duration",
			rows: []StepRow{
				testStep("A", "P1", "Design", "Design", 0),
			},
			condition: InvalidDuration,
			stepID:    "A",
		},
		{
			name: "5. negative tolerance",
			rows: []StepRow{
				withTolerance(testStep("A", "P1", "Design", "Design", 1), -1),
			},
			condition: InvalidTolerance,
			stepID:    "A",
		},
		{
			name: "6. priority out of range",
			rows: []StepRow{
				withPriority(testStep("A", "P1", "Design", "Design", 1), 6),
			},
			condition: InvalidPriority,
			stepID:    "A",
		},
		{
			name: "7. duplicate step",
			rows: []StepRow{
				testStep("A", "P1", "Design", "Design", 1),
				testStep("A", "P1", "Cut", "Cutting", 1),
			},
			condition: DuplicateStep,
			stepID:    "A",
		},
		{
			name: "8. project declared twice differently",
			rows: []StepRow{
				testStep("A", "P1", "Design", "Design", 1),
				withPriority(testStep("B", "P1", "Cut", "Cutting", 1), 1),
			},
			condition: InconsistentProject,
			stepID:    "B",
		},
		{
			name: "9. predecessor cycle",
			rows: []StepRow{
				testStep("A", "P1", "Design", "Design", 1, "Cut"),
				testStep("B", "P1", "Cut", "Cutting", 1, "Design"),
			},
			condition: PredecessorCycle,
		},
		{
			name: "10. own name as predecessor",
			rows: []StepRow{
				testStep("A", "P1", "Design", "Design", 1, "Design"),
			},
			condition: PredecessorCycle,
			stepID:    "A",
		},
		{
			name: "11. missing step name",
			rows: []StepRow{
				testStep("A", "P1", "", "Design", 1),
			},
			condition: MissingField,
			stepID:    "A",
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name,
			func(t *testing.T) {
				normalized, errNormalize := normalizeTestRows(tt.rows...)
				require.Error(t, errNormalize)
				require.Nil(t, normalized)

				var errValidation *ValidationError
				require.True(t, errors.As(errNormalize, &errValidation), errNormalize.Error())
				require.Equal(t, tt.condition, errValidation.Condition)

				if len(tt.stepID) > 0 {
					require.Equal(t, tt.stepID, errValidation.StepID)
				}
			},
		)
	}
}

func TestNormalizeStepsPredecessors(t *testing.T) {
	t.Run(
		"1. same project first",
		func(t *testing.T) {
			normalized, errNormalize := normalizeTestRows(
				testStep("A1", "P1", "Design", "Design", 1),
				testStep("A2", "P2", "Design", "Design", 1),
				testStep("B2", "P2", "Cut", "Cutting", 1, "Design"),
			)
			require.NoError(t, errNormalize)

			step, exists := normalized.Step("B2")
			require.True(t, exists)
			require.Equal(t, []string{"A2"}, step.PredecessorIDs())
		},
	)

	t.Run(
		"2. across projects",
		func(t *testing.T) {
			normalized, errNormalize := normalizeTestRows(
				testStep("A1", "P1", "Design", "Design", 1),
				testStep("B2", "P2", "Cut", "Cutting", 1, " Design "),
			)
			require.NoError(t, errNormalize)

			step, _ := normalized.Step("B2")
			require.Equal(t, []string{"A1"}, step.PredecessorIDs())
		},
	)

	t.Run(
		"3. ambiguous across projects",
		func(t *testing.T) {
			_, errNormalize := normalizeTestRows(
				testStep("A1", "P1", "Design", "Design", 1),
				testStep("A2", "P2", "Design", "Design", 1),
				testStep("B3", "P3", "Cut", "Cutting", 1, "Design"),
			)

			var errValidation *ValidationError
			require.True(t, errors.As(errNormalize, &errValidation))
			require.Equal(t, AmbiguousPredecessor, errValidation.Condition)
			require.Len(t, errValidation.Suggestions, 2)
		},
	)

	t.Run(
		"4. unresolved name is reported with advisory suggestions",
		func(t *testing.T) {
			_, errNormalize := normalizeTestRows(
				testStep("A1", "P1", "Final Assembly", "Assembly", 1),
				testStep("B1", "P1", "Paint", "Assembly", 1, "Assembly"),
			)

			var errValidation *ValidationError
			require.True(t, errors.As(errNormalize, &errValidation))
			require.Equal(t, UnresolvedPredecessor, errValidation.Condition)
			require.Equal(t, "B1", errValidation.StepID)
			require.Equal(t, []string{"Final Assembly"}, errValidation.Suggestions)
		},
	)

	t.Run(
		"5. batch classes and machines resolved",
		func(t *testing.T) {
			row := testStep("M1", "P1", "Kesim Operasyonu", "Freze", 1)
			row.MachineNames = []string{"CNC-1", "CNC-2", "CNC-1"}

			normalized, errNormalize := NormalizeSteps(
				&ParamsNormalize{
					Steps:     []StepRow{row},
					Resources: testResources(),
					Machines:  testMachines(),
					BatchClasses: map[string]string{
						"Kesim Operasyonu": "Genel Kesim",
					},
				},
			)
			require.NoError(t, errNormalize)

			step, _ := normalized.Step("M1")
			require.Equal(t, "Genel Kesim", step.BatchClass)
			require.Len(t, step.Machines, 2)

			project, exists := normalized.Project("P1")
			require.True(t, exists)
			require.Equal(t, testDay(30), project.DueDate)
		},
	)
}

func TestNormalizeStepsSingleMachineResource(t *testing.T) {
	row := testStep("A", "P1", "Cut", "Cutting", 1)
	row.MachineNames = []string{"Saw-1", "Saw-2"}

	_, errNormalize := NormalizeSteps(
		&ParamsNormalize{
			Steps:     []StepRow{row},
			Resources: testResources(),
			Machines: []MachineRow{
				{Name: "Saw-1", ResourceName: "Cutting"},
				{Name: "Saw-2", ResourceName: "Cutting"},
			},
		},
	)

	var errValidation *ValidationError
	require.True(t, errors.As(errNormalize, &errValidation))
	require.Equal(t, MachineResourceMismatch, errValidation.Condition)
}
