// Package scenario turns analysed components into concrete test scenarios.
package scenario

import (
	"errors"
	"slices"
	"strings"

	"github.com/xkilldash9x/plugin-eval/internal/plugin"
)

// Expectation is what the agent should do with a scenario's message.
type Expectation string

const (
	ExpectTrigger   Expectation = "trigger"
	ExpectNoTrigger Expectation = "no_trigger"
)

// Phase selects the per-attempt deadline.
type Phase string

const (
	// PhaseLoad covers explicit invocations where the component is loaded
	// directly, such as a typed slash command.
	PhaseLoad    Phase = "load"
	PhaseExecute Phase = "execute"
)

// Origin records what a scenario's message was derived from.
type Origin string

const (
	OriginTrigger   Origin = "trigger"
	OriginVariation Origin = "variation"
	OriginDirect    Origin = "direct"
	OriginNegative  Origin = "negative"
)

// TestScenario is one user message sent to the agent under test.
type TestScenario struct {
	ID              string               `json:"id"`
	Component       plugin.ComponentRef  `json:"component"`
	Origin          Origin               `json:"origin"`
	OriginalTrigger string               `json:"original_trigger,omitempty"`
	VariationType   plugin.VariationType `json:"variation_type,omitempty"`
	UserMessage     string               `json:"user_message"`
	Expected        Expectation          `json:"expected"`
	Phase           Phase                `json:"phase"`
	RequiredTools   []string             `json:"required_tools,omitempty"`
	AllowedTools    []string             `json:"allowed_tools,omitempty"`
}

var (
	ErrEmptyMessage   = errors.New("scenario has an empty user message")
	ErrNoComponent    = errors.New("scenario has no component name")
	ErrBadExpectation = errors.New("scenario has an unknown expectation")
)

// Validate checks the fields execution depends on.
func (s TestScenario) Validate() error {
	switch {
	case strings.TrimSpace(s.UserMessage) == "":
		return ErrEmptyMessage
	case s.Component.Name == "":
		return ErrNoComponent
	case s.Expected != ExpectTrigger && s.Expected != ExpectNoTrigger:
		return ErrBadExpectation
	}
	return nil
}

// ExpectsTrigger reports whether the scenario passes when the component fires.
func (s TestScenario) ExpectsTrigger() bool { return s.Expected == ExpectTrigger }

// DisallowedTools returns the required tools that fall outside the allow-list.
// An empty allow-list permits everything. Entries like "Bash(git:*)" grant the
// base tool name.
func (s TestScenario) DisallowedTools() []string {
	if len(s.AllowedTools) == 0 {
		return nil
	}
	allowed := make([]string, 0, len(s.AllowedTools))
	for _, a := range s.AllowedTools {
		allowed = append(allowed, toolBase(a))
	}
	var out []string
	for _, r := range s.RequiredTools {
		if !slices.Contains(allowed, toolBase(r)) {
			out = append(out, r)
		}
	}
	return out
}

func toolBase(t string) string {
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// Batches splits scenarios into consecutive chunks of at most size.
func Batches(scenarios []TestScenario, size int) [][]TestScenario {
	if size <= 0 {
		size = len(scenarios)
	}
	var out [][]TestScenario
	for len(scenarios) > 0 {
		n := min(size, len(scenarios))
		out = append(out, scenarios[:n:n])
		scenarios = scenarios[n:]
	}
	return out
}
