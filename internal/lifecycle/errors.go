package lifecycle

import (
	"errors"

	"github.com/csai/ctf-client/internal/instance"
)

func asOrchestratorError(err error) (*instance.OrchestratorError, bool) {
	var oe *instance.OrchestratorError
	ok := errors.As(err, &oe)
	return oe, ok
}

// userMessage is the toast text for a failed operation.
func userMessage(op instance.Op, err error) string {
	if oe, ok := asOrchestratorError(err); ok && oe.Message != "" {
		return oe.Message
	}
	if op == instance.OpStop {
		return instance.FallbackStopMessage
	}
	return instance.FallbackStartMessage
}
