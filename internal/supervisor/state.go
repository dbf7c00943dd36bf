package supervisor

// Phase represents a stage in the supervised recompute lifecycle.
type Phase int

const (
	PhaseIdle        Phase = iota // No work started.
	PhaseRecomputing              // One core mutation plus solve in flight.
	PhaseReviewing                // Advisor is judging the current plan.
	PhaseProposing                // A proposed mutation awaits confirmation.
	PhaseApproved                 // Advisor approved the plan.
	PhaseExhausted                // Attempt budget spent without approval.
)

// String returns the snake_case name of the phase.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecomputing:
		return "recomputing"
	case PhaseReviewing:
		return "reviewing"
	case PhaseProposing:
		return "proposing"
	case PhaseApproved:
		return "approved"
	case PhaseExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether the loop stops in this phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseApproved || p == PhaseExhausted
}

func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
