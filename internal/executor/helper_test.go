package executor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
)

var errFlaky = errors.New("connection reset by peer")

// fastTuning keeps retry delays in the low milliseconds.
func fastTuning() config.Tuning {
	t := config.DefaultTuning()
	t.Timeouts.RetryInitialMs = 1
	t.Timeouts.RetryMaxMs = 2
	t.Retry.JitterFactor = 0
	return t
}

func skillScenario(id, message string) scenario.TestScenario {
	return scenario.TestScenario{
		ID:          id,
		Component:   plugin.ComponentRef{Kind: plugin.KindSkill, Name: "code-review"},
		Origin:      scenario.OriginTrigger,
		UserMessage: message,
		Expected:    scenario.ExpectTrigger,
		Phase:       scenario.PhaseExecute,
	}
}

// invoking returns a successful AgentResult that invokes s's component.
func invoking(s scenario.TestScenario, usage *llmclient.Usage) AgentResult {
	return AgentResult{
		Transcript: Transcript{Invocations: []plugin.ComponentRef{s.Component}, Content: "on it"},
		Usage:      usage,
	}
}

// flakyRunner fails transiently `failures` times, then invokes the component.
type flakyRunner struct {
	failures int
	calls    atomic.Int32
}

func (f *flakyRunner) Run(_ context.Context, s scenario.TestScenario) (AgentResult, error) {
	if int(f.calls.Add(1)) <= f.failures {
		return AgentResult{}, NewTransientError(errFlaky)
	}
	return invoking(s, nil), nil
}

// recordingRunner records the order in which scenarios start.
type recordingRunner struct {
	mu    sync.Mutex
	order []string
}

func (r *recordingRunner) Run(_ context.Context, s scenario.TestScenario) (AgentResult, error) {
	r.mu.Lock()
	r.order = append(r.order, s.ID)
	r.mu.Unlock()
	return invoking(s, &llmclient.Usage{InputTokens: 100, OutputTokens: 50}), nil
}
