package monitor

// Outcome classifies a single Execute call.
type Outcome int

const (
	// OutcomeSuccess means the check ran and met its success condition.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means the check ran and failed, errored, timed out or panicked.
	OutcomeFailure
	// OutcomeNotDue means the interval has not elapsed and nothing ran.
	// It is neither a success nor a failure.
	OutcomeNotDue
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeNotDue:
		return "not_due"
	default:
		return "unknown"
	}
}

// MarshalText lets outcomes appear as strings in JSON payloads.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result is the transient outcome of one Execute call.
type Result struct {
	Name         string  `json:"name"`
	Namespace    string  `json:"namespace,omitempty"`
	Outcome      Outcome `json:"outcome"`
	ErrorMessage string  `json:"error_message,omitempty"`
}

// Success reports whether the check ran and passed.
func (r Result) Success() bool { return r.Outcome == OutcomeSuccess }

// Failed reports whether the check ran and did not pass.
func (r Result) Failed() bool { return r.Outcome == OutcomeFailure }

// NotDue reports whether the call was gated by the interval.
func (r Result) NotDue() bool { return r.Outcome == OutcomeNotDue }
