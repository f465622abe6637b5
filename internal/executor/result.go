// Package executor runs test scenarios against the agent under evaluation,
// retrying transient failures and accounting for tokens and cost.
package executor

import (
	"context"
	"time"

	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
)

// Status is the verdict for one scenario.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusErrored Status = "errored"
)

// Transcript is what the agent did with a scenario's message.
type Transcript struct {
	// Invocations lists the components the agent invoked, in order.
	Invocations []plugin.ComponentRef `json:"invocations"`
	// Content is the agent's reply, possibly truncated.
	Content string `json:"content,omitempty"`
}

// Invoked reports whether ref appears in the transcript. An invocation with
// no kind matches any kind of the same name.
func (t Transcript) Invoked(ref plugin.ComponentRef) bool {
	for _, inv := range t.Invocations {
		if inv.Name == ref.Name && (inv.Kind == "" || inv.Kind == ref.Kind) {
			return true
		}
	}
	return false
}

// AgentResult is one successful agent call. Usage is nil when the runner
// cannot report real token counts.
type AgentResult struct {
	Transcript Transcript
	Usage      *llmclient.Usage
}

// AgentRunner sends a scenario to the agent under test. Errors wrapped with
// NewTransientError, deadline errors and network errors are retried.
type AgentRunner interface {
	Run(ctx context.Context, s scenario.TestScenario) (AgentResult, error)
}

// AgentRunnerFunc adapts a function to AgentRunner.
type AgentRunnerFunc func(ctx context.Context, s scenario.TestScenario) (AgentResult, error)

func (f AgentRunnerFunc) Run(ctx context.Context, s scenario.TestScenario) (AgentResult, error) {
	return f(ctx, s)
}

// ExecutionResult is the immutable outcome of one scenario.
type ExecutionResult struct {
	Scenario       scenario.TestScenario `json:"scenario"`
	Transcript     Transcript            `json:"transcript"`
	Status         Status                `json:"status"`
	Triggered      bool                  `json:"triggered"`
	Usage          llmclient.Usage       `json:"usage"`
	UsageEstimated bool                  `json:"usage_estimated"`
	Cost           float64               `json:"cost"`
	Elapsed        time.Duration         `json:"elapsed"`
	Attempts       int                   `json:"attempts"`
	Error          *ExecutionError       `json:"error,omitempty"`
}

// score sets Triggered and Status from the transcript and the expectation.
func score(r *ExecutionResult) {
	r.Triggered = r.Transcript.Invoked(r.Scenario.Component)
	if r.Triggered == r.Scenario.ExpectsTrigger() {
		r.Status = StatusPassed
	} else {
		r.Status = StatusFailed
	}
}
