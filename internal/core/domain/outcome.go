package domain

// OutcomeStatus classifies the terminal result of a pipeline execution.
type OutcomeStatus int

const (
	OutcomeOK OutcomeStatus = iota
	OutcomeNotFound
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a pipeline execution: a success envelope
// with the entity's key, a not-found signal, or a failure with its cause.
type Outcome struct {
	Status   OutcomeStatus
	Envelope Envelope
	PK       any
	Err      error
}
