package pipeline

import (
	"fmt"
	"io"
	"os"
	"time"

	json "github.com/json-iterator/go"

	"github.com/xkilldash9x/plugin-eval/internal/executor"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
)

// Report is the outcome of a completed run.
type Report struct {
	RunID       string                     `json:"run_id"`
	Plugin      string                     `json:"plugin"`
	TargetModel string                     `json:"target_model"`
	StartedAt   time.Time                  `json:"started_at"`
	FinishedAt  time.Time                  `json:"finished_at"`
	Components  ComponentCounts            `json:"components"`
	Results     []executor.ExecutionResult `json:"results"`
	Summary     Summary                    `json:"summary"`
	Errors      []ReportError              `json:"errors"`
	Warnings    []string                   `json:"warnings"`
}

// ComponentCounts tallies what the analyzer produced.
type ComponentCounts struct {
	Skills   int `json:"skills"`
	Agents   int `json:"agents"`
	Commands int `json:"commands"`
}

// ReportError is a component or scenario failure captured during the run.
type ReportError struct {
	Stage      string `json:"stage"`
	Kind       string `json:"kind"`
	Component  string `json:"component,omitempty"`
	ScenarioID string `json:"scenario_id,omitempty"`
	Message    string `json:"message"`
}

func newReportError(state State, err error, ref *plugin.ComponentRef, scenarioID string) ReportError {
	re := ReportError{
		Stage:      state.String(),
		Kind:       string(executor.Classify(err)),
		ScenarioID: scenarioID,
		Message:    err.Error(),
	}
	if ref != nil {
		re.Component = ref.String()
	}
	return re
}

// Duration is the wall time of the run.
func (r *Report) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

// String is the one-line console summary.
func (r *Report) String() string {
	s := r.Summary
	return fmt.Sprintf("%s: %d scenarios, %d passed, %d failed, %d errored (%.0f%%), %d in / %d out tokens, %s",
		r.Plugin, s.Total, s.Passed, s.Failed, s.Errored, s.PassRate*100, s.InputTokens, s.OutputTokens, s.Cost)
}

// WriteJSON encodes the report as indented JSON.
func (r *Report) WriteJSON(w io.Writer) error {
	b, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if _, err := w.Write(append(b, '\n')); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// WriteFile writes the JSON report to path.
func (r *Report) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create report file: %w", err)
	}
	if err := r.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// RunError is returned when a run ends in StateFailed. Partial holds the
// results produced before the failure.
type RunError struct {
	State   State
	Err     error
	Partial []executor.ExecutionResult
	Errors  []ReportError
}

func (e *RunError) Error() string {
	return fmt.Sprintf("evaluation failed during %s: %v", e.State, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }
