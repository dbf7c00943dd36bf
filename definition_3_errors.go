package scheduler

import (
	"fmt"
	"strings"
	"time"
)

// Condition names the specific reason behind a rejected input or rule.
type Condition string

const (
	ResourceNotFound        Condition = "ResourceNotFound"
	MachineNotFound         Condition = "MachineNotFound"
	MachineResourceMismatch Condition = "MachineResourceMismatch"
	UnresolvedPredecessor   Condition = "UnresolvedPredecessor"
	AmbiguousPredecessor    Condition = "AmbiguousPredecessor"
	PredecessorCycle        Condition = "PredecessorCycle"
	InvalidDuration         Condition = "InvalidDuration"
	InvalidTolerance        Condition = "InvalidTolerance"
	InvalidPriority         Condition = "InvalidPriority"
	InvalidCapacityWindow   Condition = "InvalidCapacityWindow"
	InvalidResource         Condition = "InvalidResource"
	DuplicateStep           Condition = "DuplicateStep"
	StepNotFound            Condition = "StepNotFound"
	ProjectNotFound         Condition = "ProjectNotFound"
	GroupNotFound           Condition = "GroupNotFound"
	InconsistentProject     Condition = "InconsistentProject"
	MissingField            Condition = "MissingField"

	ConflictingGroupMembership  Condition = "ConflictingGroupMembership"
	InfeasibleFixedStart        Condition = "InfeasibleFixedStart"
	ConflictingCapacityOverride Condition = "ConflictingCapacityOverride"
)

// ValidationError reports malformed or out-of-range input caught before
// model construction.
type ValidationError struct {
	Issue       error
	Condition   Condition
	StepID      string
	Subject     string
	Suggestions []string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder

	sb.WriteString(string(e.Condition))

	if len(e.StepID) > 0 {
		sb.WriteString(fmt.Sprintf(" (step %s)", e.StepID))
	}

	if len(e.Subject) > 0 {
		sb.WriteString(": " + e.Subject)
	}

	if e.Issue != nil {
		sb.WriteString(": " + e.Issue.Error())
	}

	if len(e.Suggestions) > 0 {
		sb.WriteString(
			fmt.Sprintf(
				" (did you mean %s? confirmation required)",

				strings.Join(e.Suggestions, ", "),
			),
		)
	}

	return sb.String()
}

func (e *ValidationError) Unwrap() error {
	return e.Issue
}

// RuleConflictError reports a rule that cannot be honored together with the
// other rules or with precedence.
type RuleConflictError struct {
	Issue        error
	Condition    Condition
	Rule         string
	StepID       string
	ResourceName string

	// EarliestStart is set for InfeasibleFixedStart.
	EarliestStart time.Time
}

func (e *RuleConflictError) Error() string {
	var sb strings.Builder

	sb.WriteString(string(e.Condition))
	sb.WriteString(": " + e.Rule)

	if e.Condition == InfeasibleFixedStart && !e.EarliestStart.IsZero() {
		sb.WriteString(
			fmt.Sprintf(
				" (earliest feasible start %s)",

				FormatDate(e.EarliestStart),
			),
		)
	}

	if e.Issue != nil {
		sb.WriteString(": " + e.Issue.Error())
	}

	return sb.String()
}

func (e *RuleConflictError) Unwrap() error {
	return e.Issue
}

// RuleClass identifies a family of business rules present in a solve.
type RuleClass string

const (
	RuleClassManualGroups      RuleClass = "manual_groups"
	RuleClassFixedStarts       RuleClass = "fixed_starts"
	RuleClassCapacityOverrides RuleClass = "capacity_overrides"
)

// InfeasibilityReport explains an INFEASIBLE outcome.
type InfeasibilityReport struct {
	// RuleClasses lists the rule families present, the usual sources of
	// infeasibility.
	RuleClasses []RuleClass

	// Conflicts holds specific conflicts found while building the model.
	Conflicts []string
}

func (r *InfeasibilityReport) String() string {
	if r == nil {
		return ""
	}

	classes := make([]string, len(r.RuleClasses))
	for ix, class := range r.RuleClasses {
		classes[ix] = string(class)
	}

	result := "rule classes present: " + ternary(len(classes) == 0, "none", strings.Join(classes, ", "))

	if len(r.Conflicts) > 0 {
		result = result + "; conflicts: " + strings.Join(r.Conflicts, "; ")
	}

	return result
}

type SolverInfeasibleError struct {
	Report InfeasibilityReport
}

func (e *SolverInfeasibleError) Error() string {
	return "no schedule satisfies all constraints: " + e.Report.String()
}

// SolverTimeoutError is a soft failure: the time budget ran out without a
// feasible schedule.
type SolverTimeoutError struct {
	TimeLimit time.Duration
}

func (e *SolverTimeoutError) Error() string {
	return fmt.Sprintf(
		"no feasible schedule found within %s",

		e.TimeLimit,
	)
}
