package supervisor

import "errors"

var (
	ErrAttemptsExhausted = errors.New("maximum supervisor attempts reached")
	ErrNoPlan            = errors.New("no committed plan")
	ErrUnknownMutation   = errors.New("unknown mutation kind")
)
