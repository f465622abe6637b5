// Package pipeline drives an evaluation run through its stages: analysis,
// variation generation, execution and aggregation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/executor"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
	"github.com/xkilldash9x/plugin-eval/internal/progress"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
	"github.com/xkilldash9x/plugin-eval/internal/variation"
)

// RunnerFactory builds the agent runner once the components are known.
type RunnerFactory func(components []plugin.Component, prefix string) (executor.AgentRunner, error)

// Options are the orchestrator's collaborators. Generator and Reporter may be
// nil; a nil Generator skips variation generation.
type Options struct {
	Analyzer    *plugin.Analyzer
	Generator   variation.Generator
	Builder     *scenario.Builder
	NewRunner   RunnerFactory
	Reporter    *progress.Reporter
	Tuning      config.Tuning
	TargetModel string
}

// Orchestrator runs evaluations. It holds no per-run state, so one value can
// serve sequential runs.
type Orchestrator struct {
	opts   Options
	logger *zap.Logger
}

// New creates an Orchestrator.
func New(opts Options, logger *zap.Logger) (*Orchestrator, error) {
	if opts.Analyzer == nil || opts.Builder == nil || opts.NewRunner == nil || logger == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil dependencies")
	}
	if opts.TargetModel == "" {
		return nil, fmt.Errorf("cannot initialize orchestrator without a target model")
	}
	return &Orchestrator{opts: opts, logger: logger.Named("orchestrator")}, nil
}

// run carries the state of one Run call.
type run struct {
	o      *Orchestrator
	state  State
	acc    Accumulator
	report *Report
	log    *zap.Logger
}

func (r *run) to(next State) error {
	if !r.state.CanTransition(next) {
		return &executor.ExecutionError{
			Kind:    executor.KindInternal,
			Message: fmt.Sprintf("illegal transition %s -> %s", r.state, next),
		}
	}
	r.log.Debug("State transition.", zap.Stringer("from", r.state), zap.Stringer("to", next))
	r.state = next
	return nil
}

// fail moves the run to Failed and wraps err with what was produced so far.
func (r *run) fail(err error) error {
	at := r.state
	if !r.state.Terminal() {
		r.state = StateFailed
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		err = &executor.ExecutionError{Kind: executor.KindCancellation, Message: "run cancelled", Err: err}
	}
	r.log.Error("Evaluation failed.", zap.Stringer("state", at), zap.Error(err))
	return &RunError{State: at, Err: err, Partial: r.acc.Results(), Errors: r.report.Errors}
}

func (r *run) recordError(err error, ref *plugin.ComponentRef, s *scenario.TestScenario) {
	id := ""
	if s != nil {
		id = s.ID
		if ref == nil {
			ref = &s.Component
		}
	}
	r.report.Errors = append(r.report.Errors, newReportError(r.state, err, ref, id))
	r.o.opts.Reporter.Error(err, s)
}

// Run evaluates the plugin described by inv. On success it returns the report.
// If ctx is cancelled or an internal invariant breaks, it returns a nil report
// and a *RunError carrying the partial results.
func (o *Orchestrator) Run(ctx context.Context, inv plugin.Inventory) (*Report, error) {
	runID := uuid.NewString()
	r := &run{
		o:   o,
		log: o.logger.With(zap.String("run_id", runID)),
		report: &Report{
			RunID:       runID,
			Plugin:      inv.Prefix,
			TargetModel: o.opts.TargetModel,
			StartedAt:   time.Now().UTC(),
			Errors:      []ReportError{},
			Warnings:    []string{},
		},
	}
	rep := o.opts.Reporter
	r.log.Info("Evaluation starting.", zap.String("plugin", inv.Prefix), zap.Int("files", inv.Total()))

	// Analyzing
	if err := r.to(StateAnalyzing); err != nil {
		return nil, r.fail(err)
	}
	start := time.Now()
	rep.StageStart(progress.StageAnalyzing, inv.Total())
	an := o.opts.Analyzer.Analyze(inv)
	for _, pe := range an.Errors {
		r.recordError(pe, &plugin.ComponentRef{Kind: pe.Kind, Name: pe.Path, Path: pe.Path}, nil)
	}
	components := an.Components()
	r.report.Components = ComponentCounts{Skills: len(an.Skills), Agents: len(an.Agents), Commands: len(an.Commands)}
	rep.StageComplete(progress.StageAnalyzing, time.Since(start), len(components))
	if err := ctx.Err(); err != nil {
		return nil, r.fail(err)
	}

	// GeneratingVariations
	if err := r.to(StateGeneratingVariations); err != nil {
		return nil, r.fail(err)
	}
	components, err := r.generateVariations(ctx, components)
	if err != nil {
		return nil, r.fail(err)
	}

	// Executing
	if err := r.to(StateExecuting); err != nil {
		return nil, r.fail(err)
	}
	if err := r.execute(ctx, components, an.Prefix); err != nil {
		return nil, r.fail(err)
	}

	// Aggregating
	if err := r.to(StateAggregating); err != nil {
		return nil, r.fail(err)
	}
	start = time.Now()
	rep.StageStart(progress.StageAggregating, r.acc.Summary().Total)
	r.report.Results = r.acc.Results()
	r.report.Summary = r.acc.Summary()
	for _, c := range plugin.DetectConflicts(components, o.opts.Tuning.Limits.ConflictDomainPartMin) {
		r.report.Warnings = append(r.report.Warnings, fmt.Sprintf("possible trigger conflict between %s and %s (shared: %v)", c.A, c.B, c.Shared))
	}
	r.report.FinishedAt = time.Now().UTC()
	rep.StageComplete(progress.StageAggregating, time.Since(start), len(r.report.Results))

	if err := r.to(StateDone); err != nil {
		return nil, r.fail(err)
	}
	r.log.Info("Evaluation complete.",
		zap.Int("scenarios", r.report.Summary.Total),
		zap.Int("passed", r.report.Summary.Passed),
		zap.String("cost", r.report.Summary.Cost),
		zap.Duration("duration", r.report.Duration()))
	return r.report, nil
}

func (r *run) execute(ctx context.Context, components []plugin.Component, prefix string) error {
	opts := r.o.opts
	start := time.Now()
	scenarios := opts.Builder.Build(components)
	total := len(scenarios)
	opts.Reporter.StageStart(progress.StageExecuting, total)

	runner, err := opts.NewRunner(components, prefix)
	if err != nil {
		return &executor.ExecutionError{Kind: executor.KindInternal, Message: "cannot create agent runner", Err: err}
	}
	exec := executor.New(runner, opts.Tuning, opts.TargetModel, r.log)
	guard := executor.NewBudgetGuard(opts.Tuning)

	offset := 0
	for _, batch := range scenario.Batches(scenarios, opts.Tuning.Batching.BatchSize) {
		base := offset
		offset += len(batch)

		if err := guard.Check(batch); err != nil {
			r.rejectBatch(batch, base, total, err)
			continue
		}

		_, err := exec.ExecuteBatch(ctx, batch,
			func(i int, s scenario.TestScenario) { opts.Reporter.ScenarioStart(s, base+i, total) },
			func(i int, res executor.ExecutionResult) { r.complete(base+i, total, res) })
		if err != nil {
			return err
		}
	}
	opts.Reporter.StageComplete(progress.StageExecuting, time.Since(start), r.acc.Summary().Total)
	return nil
}

// complete records one finished scenario. Results cut short by cancellation
// are not outcomes and are dropped.
func (r *run) complete(index, total int, res executor.ExecutionResult) {
	if res.Error != nil && res.Error.Kind == executor.KindCancellation {
		return
	}
	r.acc.Add(index, res)
	r.o.opts.Reporter.ScenarioComplete(res, index, total)
	if res.Error != nil {
		r.o.opts.Reporter.Error(res.Error, &res.Scenario)
	}
}

// rejectBatch turns every scenario of an over-budget batch into an errored result.
func (r *run) rejectBatch(batch []scenario.TestScenario, base, total int, err error) {
	r.log.Warn("Batch rejected by budget guard.", zap.Int("first_index", base), zap.Int("size", len(batch)), zap.Error(err))
	r.recordError(err, nil, nil)
	for i, s := range batch {
		ee := &executor.ExecutionError{Kind: executor.KindBudget, ScenarioID: s.ID, Message: err.Error()}
		res := executor.ExecutionResult{Scenario: s, Status: executor.StatusErrored, Error: ee}
		r.acc.Add(base+i, res)
		r.o.opts.Reporter.ScenarioComplete(res, base+i, total)
	}
}
