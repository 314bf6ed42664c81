package instance

import "errors"

const (
	FallbackStartMessage = "Failed to start the challenge."
	FallbackStopMessage  = "Failed to stop instance."
)

type Op string

const (
	OpStart Op = "start"
	OpStop  Op = "stop"
)

type Kind int

const (
	// KindRejected means the orchestrator answered with a non-success status.
	KindRejected Kind = iota + 1
	// KindNetwork means the request never completed.
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindRejected:
		return "orchestrator_rejected"
	case KindNetwork:
		return "network_failure"
	default:
		return "unknown"
	}
}

// OrchestratorError is returned by RequestStart and RequestStop.
// Message is always human readable and safe to show to the user.
type OrchestratorError struct {
	Op         Op
	Kind       Kind
	StatusCode int
	Message    string
	Err        error
}

func (e *OrchestratorError) Error() string { return e.Message }

func (e *OrchestratorError) Unwrap() error { return e.Err }

// IsRejected reports whether err is an orchestrator rejection.
func IsRejected(err error) bool {
	var oe *OrchestratorError
	return errors.As(err, &oe) && oe.Kind == KindRejected
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	var oe *OrchestratorError
	return errors.As(err, &oe) && oe.Kind == KindNetwork
}

func fallbackMessage(op Op) string {
	if op == OpStop {
		return FallbackStopMessage
	}
	return FallbackStartMessage
}
