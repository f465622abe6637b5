package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/observability"
	"github.com/xkilldash9x/plugin-eval/internal/pricing"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
)

// Executor runs scenarios through an AgentRunner.
type Executor struct {
	runner  AgentRunner
	tuning  config.Tuning
	model   string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New creates an Executor. model prices the usage; tuning supplies deadlines,
// the retry policy, token estimates and the request rate.
func New(runner AgentRunner, tuning config.Tuning, model string, logger *zap.Logger) *Executor {
	e := &Executor{
		runner: runner,
		tuning: tuning,
		model:  model,
		logger: logger.Named("executor"),
	}
	if rps := tuning.Batching.RequestsPerSecond; rps > 0 {
		e.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	return e
}

// Execute runs one scenario to completion. It never returns an error; failures
// are classified into the result.
func (e *Executor) Execute(ctx context.Context, s scenario.TestScenario) ExecutionResult {
	start := time.Now()
	res := ExecutionResult{Scenario: s}
	finish := func(kind Kind, msg string, err error) ExecutionResult {
		res.Status = StatusErrored
		res.Error = &ExecutionError{Kind: kind, ScenarioID: s.ID, Message: msg, Attempts: res.Attempts, Err: err}
		res.Elapsed = time.Since(start)
		return res
	}

	if e.runner == nil {
		return finish(KindInternal, "cannot execute", errNoRunner)
	}
	if err := s.Validate(); err != nil {
		return finish(KindInvalidScenario, "invalid scenario", err)
	}
	if bad := s.DisallowedTools(); len(bad) > 0 {
		return finish(KindCapability, fmt.Sprintf("requires %s, allowed: %s",
			strings.Join(bad, ", "), strings.Join(s.AllowedTools, ", ")), nil)
	}

	log := e.logger.With(zap.String("scenario_id", s.ID), zap.Stringer("component", s.Component))
	log.Debug("Executing scenario.", zap.String("message", observability.Preview(s.UserMessage, e.tuning.Limits.PromptDisplayLength)))

	var out AgentResult
	operation := func() error {
		res.Attempts++
		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, e.attemptTimeout(s.Phase))
		defer cancel()

		r, err := e.runner.Run(attemptCtx, s)
		if err == nil {
			out = r
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		if IsTransient(err) {
			log.Warn("Transient agent failure, retrying...", zap.Int("attempt", res.Attempts), zap.Error(err))
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.Retry(operation, e.policy(ctx))
	switch {
	case err == nil:
	case ctx.Err() != nil:
		return finish(KindCancellation, "run cancelled", ctx.Err())
	case IsTransient(err):
		return finish(KindTransient, fmt.Sprintf("retries exhausted after %d attempts", res.Attempts), err)
	default:
		kind := Classify(err)
		if kind == KindTransient || kind == KindCancellation {
			kind = KindAgent
		}
		return finish(kind, "agent failed", err)
	}

	res.Transcript = out.Transcript
	if out.Usage != nil {
		res.Usage = *out.Usage
	} else {
		res.Usage = EstimateUsage(s, e.tuning.TokenEstimates)
		res.UsageEstimated = true
	}
	res.Cost = pricing.CalculateCost(e.model, res.Usage.InputTokens, res.Usage.OutputTokens)
	score(&res)
	res.Elapsed = time.Since(start)

	log.Debug("Scenario finished.",
		zap.String("status", string(res.Status)),
		zap.Bool("triggered", res.Triggered),
		zap.Int("attempts", res.Attempts),
		zap.Duration("elapsed", res.Elapsed))
	return res
}

// policy builds the retry schedule. MaxRetries is the total attempt budget.
func (e *Executor) policy(ctx context.Context) backoff.BackOff {
	t := e.tuning
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.Timeouts.RetryInitial()
	b.Multiplier = t.Retry.BackoffMultiplier
	b.RandomizationFactor = t.Retry.JitterFactor
	b.MaxInterval = t.Timeouts.RetryMax()
	b.MaxElapsedTime = 0
	b.Reset()

	retries := max(t.Retry.MaxRetries-1, 0)
	return backoff.WithMaxRetries(backoff.WithContext(b, ctx), uint64(retries))
}

func (e *Executor) attemptTimeout(p scenario.Phase) time.Duration {
	if p == scenario.PhaseLoad {
		return e.tuning.Timeouts.PluginLoad()
	}
	return e.tuning.Timeouts.Execution()
}

// ExecuteBatch runs batch with at most batching.max_concurrency scenarios in
// flight. With a limit of 1 scenarios run strictly in index order. onStart and
// onDone may be nil; they are called from worker goroutines.
//
// Results are returned in batch order. When ctx is cancelled, scenarios not
// yet started are skipped and ctx.Err() is returned with the results so far.
func (e *Executor) ExecuteBatch(ctx context.Context, batch []scenario.TestScenario,
	onStart func(int, scenario.TestScenario), onDone func(int, ExecutionResult)) ([]ExecutionResult, error) {

	results := make([]ExecutionResult, len(batch))
	done := make([]bool, len(batch))

	var g errgroup.Group
	g.SetLimit(max(e.tuning.Batching.MaxConcurrency, 1))

	for i, s := range batch {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if onStart != nil {
				onStart(i, s)
			}
			r := e.Execute(ctx, s)
			results[i], done[i] = r, true
			if onDone != nil {
				onDone(i, r)
			}
			return nil
		})
	}
	_ = g.Wait()

	out := make([]ExecutionResult, 0, len(batch))
	for i, ok := range done {
		if ok {
			out = append(out, results[i])
		}
	}
	if err := ctx.Err(); err != nil {
		return out, err
	}
	return out, nil
}

var errNoRunner = errors.New("executor has no agent runner")

// Validate reports configuration problems before a run starts.
func (e *Executor) Validate() error {
	if e.runner == nil {
		return errNoRunner
	}
	return nil
}
