package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/plugin"
	"github.com/xkilldash9x/plugin-eval/internal/progress"
	"github.com/xkilldash9x/plugin-eval/internal/variation"
)

const poolReleaseTimeout = 5 * time.Second

// intentTask is one GenerateVariations call and its outcome.
type intentTask struct {
	component int
	intent    plugin.SemanticIntent
	out       []plugin.SemanticVariation
	spend     variation.Spend
	err       error
}

// generateVariations fans intents out over a bounded worker pool and returns
// new component snapshots carrying the variations. A failed intent is
// recorded and leaves its component with the variations it already had.
func (r *run) generateVariations(ctx context.Context, components []plugin.Component) ([]plugin.Component, error) {
	opts := r.o.opts
	start := time.Now()

	var tasks []*intentTask
	if opts.Generator != nil {
		for i, c := range components {
			for _, in := range c.Intents() {
				tasks = append(tasks, &intentTask{component: i, intent: in})
			}
		}
	}
	opts.Reporter.StageStart(progress.StageGeneratingVariations, len(tasks))
	if len(tasks) == 0 {
		opts.Reporter.StageComplete(progress.StageGeneratingVariations, time.Since(start), 0)
		return components, nil
	}

	budget := variation.BudgetFromTuning(opts.Tuning)
	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(max(opts.Tuning.Batching.MaxConcurrency, 1), func(arg any) {
		defer wg.Done()
		t := arg.(*intentTask)
		if err := ctx.Err(); err != nil {
			t.err = err
			return
		}
		var vs []plugin.SemanticVariation
		var err error
		if mg, ok := opts.Generator.(variation.MeteredGenerator); ok {
			vs, t.spend, err = mg.GenerateMeteredVariations(ctx, t.intent, budget)
		} else {
			vs, err = opts.Generator.GenerateVariations(ctx, t.intent, budget)
		}
		t.out, t.err = variation.Filter(t.intent.RawPhrase, vs, budget.MaxVariations), err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create variation worker pool: %w", err)
	}
	defer func() {
		if err := pool.ReleaseTimeout(poolReleaseTimeout); err != nil {
			r.log.Warn("Variation pool did not release cleanly.", zap.Error(err))
		}
	}()

	for _, t := range tasks {
		wg.Add(1)
		if err := pool.Invoke(t); err != nil {
			wg.Done()
			t.err = fmt.Errorf("failed to schedule variation task: %w", err)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	added := make([][]plugin.SemanticVariation, len(components))
	for _, t := range tasks {
		r.acc.AddGeneration(t.spend.Model, t.spend.Usage)
		if t.err != nil {
			ref := components[t.component].Ref()
			r.log.Warn("Variation generation failed for intent.",
				zap.Stringer("component", ref),
				zap.String("phrase", t.intent.RawPhrase),
				zap.Error(t.err))
			r.recordError(t.err, &ref, nil)
			continue
		}
		added[t.component] = append(added[t.component], t.out...)
	}

	out := make([]plugin.Component, len(components))
	copy(out, components)
	produced := 0
	for i, vs := range added {
		kept := variation.Dedupe(out[i], vs)
		if len(kept) == 0 {
			continue
		}
		out[i] = out[i].WithVariations(kept...)
		produced += len(kept)
	}
	opts.Reporter.StageComplete(progress.StageGeneratingVariations, time.Since(start), produced)
	return out, nil
}
