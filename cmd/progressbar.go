package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/xkilldash9x/plugin-eval/internal/executor"
	"github.com/xkilldash9x/plugin-eval/internal/observability"
	"github.com/xkilldash9x/plugin-eval/internal/progress"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
)

// consoleProgress draws a single-line progress bar for the executing stage.
type consoleProgress struct {
	mu       sync.Mutex
	w        io.Writer
	width    int
	preview  int
	done     int
	total    int
	failures int
}

func newConsoleProgress(w io.Writer, width, preview int) *consoleProgress {
	return &consoleProgress{w: w, width: max(width, 10), preview: preview}
}

func (p *consoleProgress) Reporter() *progress.Reporter {
	return &progress.Reporter{
		OnStageStart: func(stage progress.Stage, total int) {
			p.mu.Lock()
			defer p.mu.Unlock()
			if stage == progress.StageExecuting {
				p.done, p.total, p.failures = 0, total, 0
			}
			fmt.Fprintf(p.w, "==> %s (%d)\n", stageLabel(stage), total)
		},
		OnScenarioComplete: func(r executor.ExecutionResult, _, _ int) {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.done++
			if r.Status != executor.StatusPassed {
				p.failures++
			}
			fmt.Fprintf(p.w, "\r%s", p.bar())
		},
		OnStageComplete: func(stage progress.Stage, elapsed time.Duration, count int) {
			p.mu.Lock()
			defer p.mu.Unlock()
			if stage == progress.StageExecuting && p.total > 0 {
				fmt.Fprintln(p.w)
			}
			fmt.Fprintf(p.w, "    %s done: %d in %s\n", stageLabel(stage), count, elapsed.Round(time.Millisecond))
		},
		OnError: func(err error, s *scenario.TestScenario) {
			p.mu.Lock()
			defer p.mu.Unlock()
			msg := observability.Preview(err.Error(), p.preview)
			if s != nil {
				msg = fmt.Sprintf("%s %q: %s", s.Component, observability.Preview(s.UserMessage, p.preview), msg)
			}
			if p.done > 0 && p.done < p.total {
				fmt.Fprintln(p.w)
			}
			fmt.Fprintf(p.w, "  ! %s\n", msg)
		},
	}
}

// bar renders "[#####-----] 5/10 (1 not passed)".
func (p *consoleProgress) bar() string {
	filled := 0
	if p.total > 0 {
		filled = min(p.width*p.done/p.total, p.width)
	}
	s := fmt.Sprintf("[%s%s] %d/%d", strings.Repeat("#", filled), strings.Repeat("-", p.width-filled), p.done, p.total)
	if p.failures > 0 {
		s += fmt.Sprintf(" (%d not passed)", p.failures)
	}
	return s
}

func stageLabel(s progress.Stage) string { return strings.ReplaceAll(string(s), "_", " ") }
