// Package progress carries pipeline progress events to optional hooks.
package progress

import (
	"fmt"
	"time"

	"github.com/xkilldash9x/plugin-eval/internal/executor"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
)

// Stage names a pipeline stage in progress events.
type Stage string

const (
	StageAnalyzing            Stage = "analyzing"
	StageGeneratingVariations Stage = "generating_variations"
	StageExecuting            Stage = "executing"
	StageAggregating          Stage = "aggregating"
)

// Reporter holds optional hooks. Any field may be nil. During execution the
// scenario hooks may be called from several goroutines at once.
type Reporter struct {
	OnStageStart       func(stage Stage, total int)
	OnScenarioStart    func(s scenario.TestScenario, index, total int)
	OnScenarioComplete func(r executor.ExecutionResult, index, total int)
	OnStageComplete    func(stage Stage, elapsed time.Duration, count int)
	OnError            func(err error, s *scenario.TestScenario)
}

// HookPanicError reports a hook that panicked.
type HookPanicError struct {
	Hook  string
	Value any
}

func (e *HookPanicError) Error() string {
	return fmt.Sprintf("progress hook %s panicked: %v", e.Hook, e.Value)
}

// The dispatch methods below are safe on a nil *Reporter. A panicking hook is
// reported through OnError; a panic in OnError itself is dropped.

func (r *Reporter) StageStart(stage Stage, total int) {
	if r == nil || r.OnStageStart == nil {
		return
	}
	defer r.recoverHook("OnStageStart", nil)
	r.OnStageStart(stage, total)
}

func (r *Reporter) ScenarioStart(s scenario.TestScenario, index, total int) {
	if r == nil || r.OnScenarioStart == nil {
		return
	}
	defer r.recoverHook("OnScenarioStart", &s)
	r.OnScenarioStart(s, index, total)
}

func (r *Reporter) ScenarioComplete(res executor.ExecutionResult, index, total int) {
	if r == nil || r.OnScenarioComplete == nil {
		return
	}
	defer r.recoverHook("OnScenarioComplete", &res.Scenario)
	r.OnScenarioComplete(res, index, total)
}

func (r *Reporter) StageComplete(stage Stage, elapsed time.Duration, count int) {
	if r == nil || r.OnStageComplete == nil {
		return
	}
	defer r.recoverHook("OnStageComplete", nil)
	r.OnStageComplete(stage, elapsed, count)
}

func (r *Reporter) Error(err error, s *scenario.TestScenario) {
	if r == nil || r.OnError == nil {
		return
	}
	defer func() { _ = recover() }()
	r.OnError(err, s)
}

func (r *Reporter) recoverHook(hook string, s *scenario.TestScenario) {
	if v := recover(); v != nil {
		r.Error(&HookPanicError{Hook: hook, Value: v}, s)
	}
}

// Multi returns a Reporter that forwards every event to each of rs in order.
// Each forwarded call is isolated, so one panicking reporter does not starve
// the others.
func Multi(rs ...*Reporter) *Reporter {
	var live []*Reporter
	for _, r := range rs {
		if r != nil {
			live = append(live, r)
		}
	}
	return &Reporter{
		OnStageStart: func(stage Stage, total int) {
			for _, r := range live {
				r.StageStart(stage, total)
			}
		},
		OnScenarioStart: func(s scenario.TestScenario, index, total int) {
			for _, r := range live {
				r.ScenarioStart(s, index, total)
			}
		},
		OnScenarioComplete: func(res executor.ExecutionResult, index, total int) {
			for _, r := range live {
				r.ScenarioComplete(res, index, total)
			}
		},
		OnStageComplete: func(stage Stage, elapsed time.Duration, count int) {
			for _, r := range live {
				r.StageComplete(stage, elapsed, count)
			}
		},
		OnError: func(err error, s *scenario.TestScenario) {
			for _, r := range live {
				r.Error(err, s)
			}
		},
	}
}
