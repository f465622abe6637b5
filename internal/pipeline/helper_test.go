package pipeline

import (
	"context"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/executor"
	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
	"github.com/xkilldash9x/plugin-eval/internal/progress"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
	"github.com/xkilldash9x/plugin-eval/internal/variation"
)

const targetModel = "claude-sonnet-4-5"

// antsDefaultPool ignores the goroutines ants starts in init for its
// package-level pool. They live for the whole process.
var antsDefaultPool = []goleak.Option{
	goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*Pool).purgeStaleWorkers"),
	goleak.IgnoreTopFunction("github.com/panjf2000/ants/v2.(*Pool).ticktock"),
}

// acmePlugin has no tool restrictions, so no scenario trips a capability check.
func acmePlugin() fstest.MapFS {
	return fstest.MapFS{
		".claude-plugin/plugin.json": {Data: []byte(`{"name": "acme"}`)},
		"skills/code-review/SKILL.md": {Data: []byte(`---
name: code-review
description: Use when the user asks to "review my code" or "check this pull request".
---
Review carefully.
`)},
		"agents/deployer.md": {Data: []byte(`---
description: Triggers on "deploy the service to staging".
---
You deploy things.
`)},
		"commands/run-tests.md": {Data: []byte(`---
description: Run the test suite
argument-hint: "[filename]"
---
Run tests for $ARGUMENTS.
`)},
	}
}

func fastTuning() config.Tuning {
	t := config.DefaultTuning()
	t.Timeouts.RetryInitialMs = 1
	t.Timeouts.RetryMaxMs = 2
	t.Retry.JitterFactor = 0
	return t
}

// oracle invokes a scenario's component exactly when it is expected to.
func oracle(_ context.Context, s scenario.TestScenario) (executor.AgentResult, error) {
	res := executor.AgentResult{Usage: &llmclient.Usage{InputTokens: 120, OutputTokens: 40}}
	if s.ExpectsTrigger() {
		res.Transcript.Invocations = []plugin.ComponentRef{s.Component}
	}
	return res, nil
}

func runnerOf(fn executor.AgentRunnerFunc) RunnerFactory {
	return func([]plugin.Component, string) (executor.AgentRunner, error) { return fn, nil }
}

// fixture bundles an orchestrator with the inventory it evaluates.
type fixture struct {
	opts   Options
	fsys   fstest.MapFS
	logger *zap.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	fsys := acmePlugin()
	return &fixture{
		fsys:   fsys,
		logger: logger,
		opts: Options{
			Analyzer:    plugin.NewAnalyzer(plugin.NewFSSource(fsys), logger),
			Builder:     scenario.NewBuilder(logger),
			NewRunner:   runnerOf(oracle),
			Tuning:      fastTuning(),
			TargetModel: targetModel,
		},
	}
}

func (f *fixture) inventory(t *testing.T) plugin.Inventory {
	t.Helper()
	inv, err := plugin.Discover(f.fsys)
	require.NoError(t, err)
	return inv
}

func (f *fixture) run(t *testing.T, ctx context.Context) (*Report, error) {
	t.Helper()
	o, err := New(f.opts, f.logger)
	require.NoError(t, err)
	return o.Run(ctx, f.inventory(t))
}

// expectedScenarios builds the scenarios the orchestrator should execute
// when no variations are generated.
func (f *fixture) expectedScenarios(t *testing.T) []scenario.TestScenario {
	t.Helper()
	an := f.opts.Analyzer.Analyze(f.inventory(t))
	return f.opts.Builder.Build(an.Components())
}

// eventLog records progress events.
type eventLog struct {
	mu        sync.Mutex
	stages    []string
	started   int
	completed []int
	errs      []error
}

func (l *eventLog) reporter() *progress.Reporter {
	return &progress.Reporter{
		OnStageStart: func(s progress.Stage, _ int) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.stages = append(l.stages, "start:"+string(s))
		},
		OnStageComplete: func(s progress.Stage, _ time.Duration, _ int) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.stages = append(l.stages, "done:"+string(s))
		},
		OnScenarioStart: func(scenario.TestScenario, int, int) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.started++
		},
		OnScenarioComplete: func(_ executor.ExecutionResult, index, _ int) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.completed = append(l.completed, index)
		},
		OnError: func(err error, _ *scenario.TestScenario) {
			l.mu.Lock()
			defer l.mu.Unlock()
			l.errs = append(l.errs, err)
		},
	}
}

// failingGenerator fails every intent.
type failingGenerator struct{ err error }

func (g failingGenerator) GenerateVariations(context.Context, plugin.SemanticIntent, variation.Budget) ([]plugin.SemanticVariation, error) {
	return nil, g.err
}
