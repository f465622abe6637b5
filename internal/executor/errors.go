package executor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
)

// Kind classifies why a scenario did not produce a clean result.
type Kind string

const (
	KindParse           Kind = "ParseError"
	KindTransient       Kind = "TransientExecutionError"
	KindCapability      Kind = "CapabilityViolation"
	KindBudget          Kind = "BudgetExceeded"
	KindCancellation    Kind = "CancellationError"
	KindInvalidScenario Kind = "InvalidScenario"
	KindAgent           Kind = "AgentError"
	KindInternal        Kind = "InternalError"
)

// ExecutionError is the classified failure attached to a result.
type ExecutionError struct {
	Kind       Kind   `json:"kind"`
	ScenarioID string `json:"scenario_id,omitempty"`
	Message    string `json:"message"`
	Attempts   int    `json:"attempts,omitempty"`
	Err        error  `json:"-"`
}

func (e *ExecutionError) Error() string {
	if e.Err != nil && e.Message == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// AsExecutionError finds an *ExecutionError in err's chain.
func AsExecutionError(err error) (*ExecutionError, bool) {
	var ee *ExecutionError
	ok := errors.As(err, &ee)
	return ee, ok
}

// NewTransientError marks err as retryable by Execute.
func NewTransientError(err error) error { return llmclient.NewTransientError(err) }

// IsTransient reports whether Execute would retry err: explicitly marked
// errors, deadlines and network failures.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if llmclient.IsTransient(err) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// Classify maps any error to a Kind. Cancellation wins over everything else
// so an aborted run is never reported as a component failure.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCancellation
	}
	if ee, ok := AsExecutionError(err); ok {
		return ee.Kind
	}
	if _, ok := plugin.AsParseError(err); ok {
		return KindParse
	}
	if IsTransient(err) {
		return KindTransient
	}
	return KindAgent
}
