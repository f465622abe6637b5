package pipeline

import (
	"slices"
	"sync"

	"github.com/xkilldash9x/plugin-eval/internal/executor"
	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
	"github.com/xkilldash9x/plugin-eval/internal/pricing"
)

// Accumulator collects results as scenarios finish. It is the only shared
// mutable state of a run.
type Accumulator struct {
	mu      sync.Mutex
	entries []entry
	summary Summary
}

type entry struct {
	index  int
	result executor.ExecutionResult
}

// Add records the result of the scenario at index.
func (a *Accumulator) Add(index int, r executor.ExecutionResult) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, entry{index: index, result: r})

	s := &a.summary
	s.Total++
	switch r.Status {
	case executor.StatusPassed:
		s.Passed++
	case executor.StatusFailed:
		s.Failed++
	default:
		s.Errored++
	}
	if r.UsageEstimated {
		s.EstimatedResults++
	}
	s.InputTokens += r.Usage.InputTokens
	s.OutputTokens += r.Usage.OutputTokens
	s.TotalCost += r.Cost
}

// AddGeneration records tokens billed while generating variations. They count
// toward the run totals but belong to no scenario.
func (a *Accumulator) AddGeneration(model string, u llmclient.Usage) {
	if u.InputTokens == 0 && u.OutputTokens == 0 {
		return
	}
	cost := pricing.CalculateCost(model, u.InputTokens, u.OutputTokens)

	a.mu.Lock()
	defer a.mu.Unlock()
	s := &a.summary
	s.GenerationInputTokens += u.InputTokens
	s.GenerationOutputTokens += u.OutputTokens
	s.GenerationCost += cost
	s.InputTokens += u.InputTokens
	s.OutputTokens += u.OutputTokens
	s.TotalCost += cost
}

// Results returns every result in scenario order.
func (a *Accumulator) Results() []executor.ExecutionResult {
	a.mu.Lock()
	entries := slices.Clone(a.entries)
	a.mu.Unlock()

	slices.SortFunc(entries, func(x, y entry) int { return x.index - y.index })
	out := make([]executor.ExecutionResult, len(entries))
	for i, e := range entries {
		out[i] = e.result
	}
	return out
}

// Summary returns the running totals with derived fields filled in.
func (a *Accumulator) Summary() Summary {
	a.mu.Lock()
	s := a.summary
	a.mu.Unlock()

	if s.Total > 0 {
		s.PassRate = float64(s.Passed) / float64(s.Total)
	}
	s.Cost = pricing.FormatCost(s.TotalCost)
	s.Components = componentSummaries(a.Results())
	return s
}

// Summary holds the run totals.
type Summary struct {
	Total            int                `json:"total"`
	Passed           int                `json:"passed"`
	Failed           int                `json:"failed"`
	Errored          int                `json:"errored"`
	PassRate         float64            `json:"pass_rate"`
	InputTokens      int                `json:"input_tokens"`
	OutputTokens     int                `json:"output_tokens"`
	EstimatedResults int                `json:"estimated_results"`
	TotalCost        float64            `json:"total_cost"`
	Cost             string             `json:"cost"`
	Components       []ComponentSummary `json:"components"`

	// Generation* is the share of the totals billed for producing variations.
	GenerationInputTokens  int     `json:"generation_input_tokens"`
	GenerationOutputTokens int     `json:"generation_output_tokens"`
	GenerationCost         float64 `json:"generation_cost"`
}

// ComponentSummary is the per-component breakdown.
type ComponentSummary struct {
	Component plugin.ComponentRef `json:"component"`
	Total     int                 `json:"total"`
	Passed    int                 `json:"passed"`
	Failed    int                 `json:"failed"`
	Errored   int                 `json:"errored"`
}

func componentSummaries(results []executor.ExecutionResult) []ComponentSummary {
	out := []ComponentSummary{}
	at := map[plugin.ComponentRef]int{}
	for _, r := range results {
		ref := r.Scenario.Component
		i, ok := at[ref]
		if !ok {
			i = len(out)
			at[ref] = i
			out = append(out, ComponentSummary{Component: ref})
		}
		cs := &out[i]
		cs.Total++
		switch r.Status {
		case executor.StatusPassed:
			cs.Passed++
		case executor.StatusFailed:
			cs.Failed++
		default:
			cs.Errored++
		}
	}
	return out
}
