package scheduler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func compilerTestSteps(t *testing.T) *NormalizedSteps {
	normalized, errNormalize := normalizeTestRows(
		testStep("A", "P1", "Design", "Design", 3),
		testStep("B", "P1", "Cut", "Cutting", 2, "Design"),
		testStep("C", "P1", "Assemble", "Assembly", 1, "Cut"),
		testStep("D", "P2", "Sketch", "Design", 1),
	)
	require.NoError(t, errNormalize)

	return normalized
}

func TestCompileRulesGroups(t *testing.T) {
	normalized := compilerTestSteps(t)

	t.Run(
		"1. rows grouped by identifier",
		func(t *testing.T) {
			rules, errCompile := CompileRules(
				&ParamsCompileRules{
					Normalized: normalized,
					Today:      testToday,
					Groups: []ManualGroupRow{
						{GroupID: "g2", StepID: "C"},
						{GroupID: "g1", StepID: "A"},
						{GroupID: "g2", StepID: "D"},
					},
				},
			)
			require.NoError(t, errCompile)
			require.Len(t, rules.Groups, 2)
			require.Equal(t, "g2", rules.Groups[0].ID)
			require.Equal(t, []string{"C", "D"}, rules.Groups[0].StepIDs)
			require.Equal(t, "g1", rules.GroupOf["A"])
			require.Equal(t, []RuleClass{RuleClassManualGroups}, rules.RuleClasses())
		},
	)

	t.Run(
		"2. step in two groups",
		func(t *testing.T) {
			rules, errCompile := CompileRules(
				&ParamsCompileRules{
					Normalized: normalized,
					Today:      testToday,
					Groups: []ManualGroupRow{
						{GroupID: "g1", StepID: "A"},
						{GroupID: "g1", StepID: "D"},
						{GroupID: "g2", StepID: "D"},
					},
				},
			)
			require.Error(t, errCompile)
			require.Nil(t, rules)

			var errConflict *RuleConflictError
			require.True(t, errors.As(errCompile, &errConflict))
			require.Equal(t, ConflictingGroupMembership, errConflict.Condition)
			require.Equal(t, "D", errConflict.StepID)
		},
	)

	t.Run(
		"3. unknown member",
		func(t *testing.T) {
			_, errCompile := CompileRules(
				&ParamsCompileRules{
					Normalized: normalized,
					Today:      testToday,
					Groups: []ManualGroupRow{
						{GroupID: "g1", StepID: "Z"},
					},
				},
			)

			var errValidation *ValidationError
			require.True(t, errors.As(errCompile, &errValidation))
			require.Equal(t, StepNotFound, errValidation.Condition)
		},
	)
}

func TestCompileRulesFixedStarts(t *testing.T) {
	normalized := compilerTestSteps(t)

	tests := []struct {
		name      string
		rules     []FixedStartRule
		condition Condition
		earliest  int
	}{
		{
			name: "1. after the chain",
			rules: []FixedStartRule{
				{StepID: "C", StartDate: testDay(5)},
			},
		},
		{
			name: "2. before predecessor completion",
			rules: []FixedStartRule{
				{StepID: "B", StartDate: testDay(1)},
			},
			condition: InfeasibleFixedStart,
			earliest:  3,
		},
		{
			name: "3. pinned predecessor pushes successor",
			rules: []FixedStartRule{
				{StepID: "A", StartDate: testDay(4)},
				{StepID: "C", StartDate: testDay(8)},
			},
			condition: InfeasibleFixedStart,
			earliest:  9,
		},
		{
			name: "4. same date twice",
			rules: []FixedStartRule{
				{StepID: "D", StartDate: testDay(2)},
				{StepID: "D", StartDate: testDay(2)},
			},
		},
		{
			name: "5. two dates for one step",
			rules: []FixedStartRule{
				{StepID: "D", StartDate: testDay(2)},
				{StepID: "D", StartDate: testDay(3)},
			},
			condition: InfeasibleFixedStart,
		},
	}

	for _, tt := range tests {
		t.Run(
			tt.name,
			func(t *testing.T) {
				rules, errCompile := CompileRules(
					&ParamsCompileRules{
						Normalized:  normalized,
						Today:       testToday,
						FixedStarts: tt.rules,
					},
				)

				if len(tt.condition) == 0 {
					require.NoError(t, errCompile)
					require.Contains(t, rules.RuleClasses(), RuleClassFixedStarts)

					return
				}

				var errConflict *RuleConflictError
				require.True(t, errors.As(errCompile, &errConflict))
				require.Equal(t, tt.condition, errConflict.Condition)

				if tt.earliest > 0 {
					require.Equal(t, testDay(tt.earliest), errConflict.EarliestStart)
					require.Contains(t, errConflict.Error(), FormatDate(testDay(tt.earliest)))
				}
			},
		)
	}

	t.Run(
		"6. names checked when present",
		func(t *testing.T) {
			_, errCompile := CompileRules(
				&ParamsCompileRules{
					Normalized: normalized,
					Today:      testToday,
					FixedStarts: []FixedStartRule{
						{StepID: "D", ProjectName: "P1", StartDate: testDay(2)},
					},
				},
			)

			var errValidation *ValidationError
			require.True(t, errors.As(errCompile, &errValidation))
			require.Equal(t, InconsistentProject, errValidation.Condition)
		},
	)
}

func TestCompileRulesCapacityOverrides(t *testing.T) {
	normalized := compilerTestSteps(t)

	t.Run(
		"1. sorted, deduplicated and indexed",
		func(t *testing.T) {
			rules, errCompile := CompileRules(
				&ParamsCompileRules{
					Normalized: normalized,
					Today:      testToday,
					CapacityOverrides: []CapacityOverride{
						{ResourceName: "Cutting", WindowStart: testDay(10), WindowEnd: testDay(12), Capacity: 1},
						{ResourceName: "Cutting", WindowStart: testDay(5), WindowEnd: testDay(8), Capacity: 0},
						{ResourceName: "Cutting", WindowStart: testDay(10), WindowEnd: testDay(12), Capacity: 1},
					},
				},
			)
			require.NoError(t, errCompile)

			windows := rules.CapacityWindows["Cutting"]
			require.Len(t, windows, 2)
			require.Equal(t, DayInterval{DayStart: 5, DayEnd: 9}, windows[0].Days)

			cutting, _ := normalized.Resource("Cutting")
			require.Equal(t, 2, rules.CapacityAt(cutting, 4))
			require.Equal(t, 0, rules.CapacityAt(cutting, 5))
			require.Equal(t, 0, rules.CapacityAt(cutting, 8))
			require.Equal(t, 2, rules.CapacityAt(cutting, 9))
			require.Equal(t, 1, rules.CapacityAt(cutting, 12))
		},
	)

	t.Run(
		"2. overlap on one resource",
		func(t *testing.T) {
			_, errCompile := CompileRules(
				&ParamsCompileRules{
					Normalized: normalized,
					Today:      testToday,
					CapacityOverrides: []CapacityOverride{
						{ResourceName: "Cutting", WindowStart: testDay(5), WindowEnd: testDay(8), Capacity: 0},
						{ResourceName: "Cutting", WindowStart: testDay(8), WindowEnd: testDay(9), Capacity: 1},
					},
				},
			)

			var errConflict *RuleConflictError
			require.True(t, errors.As(errCompile, &errConflict))
			require.Equal(t, ConflictingCapacityOverride, errConflict.Condition)
		},
	)

	t.Run(
		"3. same window on different resources",
		func(t *testing.T) {
			_, errCompile := CompileRules(
				&ParamsCompileRules{
					Normalized: normalized,
					Today:      testToday,
					CapacityOverrides: []CapacityOverride{
						{ResourceName: "Cutting", WindowStart: testDay(5), WindowEnd: testDay(8), Capacity: 0},
						{ResourceName: "Design", WindowStart: testDay(5), WindowEnd: testDay(8), Capacity: 0},
					},
				},
			)
			require.NoError(t, errCompile)
		},
	)

	t.Run(
		"4. negative capacity",
		func(t *testing.T) {
			_, errCompile := CompileRules(
				&ParamsCompileRules{
					Normalized: normalized,
					Today:      testToday,
					CapacityOverrides: []CapacityOverride{
						{ResourceName: "Cutting", WindowStart: testDay(5), WindowEnd: testDay(8), Capacity: -1},
					},
				},
			)

			var errValidation *ValidationError
			require.True(t, errors.As(errCompile, &errValidation))
			require.Equal(t, InvalidCapacityWindow, errValidation.Condition)
		},
	)
}
