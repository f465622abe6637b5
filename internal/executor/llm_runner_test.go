package executor

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/mocks"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
)

func testComponents() []plugin.Component {
	return []plugin.Component{
		plugin.SkillComponent{Name: "code-review", Description: "Reviews code.\nUse when asked to \"review my code\"."},
		plugin.AgentComponent{Name: "planner", Description: "Plans work"},
		plugin.CommandComponent{Name: "deploy", FullName: "ops/deploy", PluginPrefix: "acme", Description: "Deploys", DisableModelInvocation: true},
	}
}

func TestParseInvocations(t *testing.T) {
	text := strings.Join([]string{
		"INVOKE: skill:code-review",
		"  - invoke: agent:planner",
		"INVOKE: `command:/acme:ops/deploy staging`",
		"INVOKE: /acme:ops/deploy",
		"INVOKE: bare-name",
		"INVOKE:",
		"I will review your code now. INVOKE: skill:ignored",
	}, "\n")

	got := ParseInvocations(text, "acme")
	assert.Equal(t, []plugin.ComponentRef{
		{Kind: plugin.KindSkill, Name: "code-review"},
		{Kind: plugin.KindAgent, Name: "planner"},
		{Kind: plugin.KindCommand, Name: "ops/deploy"},
		{Name: "bare-name"},
	}, got)

	assert.Empty(t, ParseInvocations("Sure, here is a poem.", "acme"))
}

func TestAgentSystemPrompt(t *testing.T) {
	p := agentSystemPrompt(testComponents(), "acme")
	assert.Contains(t, p, "- skill:code-review: Reviews code. Use when asked to \"review my code\".")
	assert.Contains(t, p, "- agent:planner: Plans work")
	assert.Contains(t, p, "- command:ops/deploy (typed as /acme:ops/deploy, manual-only): Deploys")
	assert.Contains(t, p, "INVOKE: <kind>:<name>")
}

func TestLLMAgentRunner_Run(t *testing.T) {
	tuning := config.DefaultTuning()
	tuning.Limits.TranscriptContentLength = 40
	s := skillScenario("s1", "review my code")

	t.Run("transcript and usage", func(t *testing.T) {
		client := &mocks.MockLLMClient{}
		client.On("Generate", mock.Anything, mock.MatchedBy(func(req llmclient.GenerationRequest) bool {
			return req.UserPrompt == "review my code" &&
				strings.Contains(req.SystemPrompt, "skill:code-review") &&
				req.Options.MaxOutputTokens == tuning.TokenEstimates.OutputPerScenario
		})).Return(llmclient.Response{
			Text:  "INVOKE: skill:code-review\nLooking at your diff now, there are a few issues worth fixing.",
			Usage: llmclient.Usage{InputTokens: 321, OutputTokens: 45},
		}, nil)

		r := NewLLMAgentRunner(client, testComponents(), "acme", tuning, zaptest.NewLogger(t))
		out, err := r.Run(context.Background(), s)
		require.NoError(t, err)

		assert.True(t, out.Transcript.Invoked(s.Component))
		assert.LessOrEqual(t, len([]rune(out.Transcript.Content)), 40)
		require.NotNil(t, out.Usage)
		assert.Equal(t, 321, out.Usage.InputTokens)
		client.AssertExpectations(t)
	})

	t.Run("no usage reported", func(t *testing.T) {
		client := &mocks.MockLLMClient{}
		client.On("Generate", mock.Anything, mock.Anything).Return(llmclient.Response{Text: "No tool needed."}, nil)

		out, err := NewLLMAgentRunner(client, testComponents(), "acme", tuning, zaptest.NewLogger(t)).Run(context.Background(), s)
		require.NoError(t, err)
		assert.Nil(t, out.Usage)
		assert.Empty(t, out.Transcript.Invocations)
	})

	t.Run("transient provider errors stay transient", func(t *testing.T) {
		client := &mocks.MockLLMClient{}
		client.On("Generate", mock.Anything, mock.Anything).
			Return(llmclient.Response{}, llmclient.NewTransientError(errors.New("overloaded")))

		_, err := NewLLMAgentRunner(client, testComponents(), "acme", tuning, zaptest.NewLogger(t)).Run(context.Background(), s)
		require.Error(t, err)
		assert.True(t, IsTransient(err))
	})
}

func TestLLMAgentRunner_WithExecutor(t *testing.T) {
	client := &mocks.MockLLMClient{}
	client.On("Generate", mock.Anything, mock.Anything).
		Return(llmclient.Response{}, llmclient.NewTransientError(errors.New("overloaded"))).Once()
	client.On("Generate", mock.Anything, mock.Anything).
		Return(llmclient.Response{Text: "INVOKE: command:/acme:ops/deploy"}, nil).Once()

	tuning := fastTuning()
	runner := NewLLMAgentRunner(client, testComponents(), "acme", tuning, zaptest.NewLogger(t))
	s := scenario.TestScenario{
		ID:          "d",
		Component:   plugin.ComponentRef{Kind: plugin.KindCommand, Name: "ops/deploy"},
		UserMessage: "/acme:ops/deploy",
		Expected:    scenario.ExpectTrigger,
		Phase:       scenario.PhaseLoad,
	}

	r := New(runner, tuning, "claude-haiku-4-5", zaptest.NewLogger(t)).Execute(context.Background(), s)
	assert.Equal(t, StatusPassed, r.Status)
	assert.Equal(t, 2, r.Attempts)
	assert.True(t, r.UsageEstimated)
	client.AssertExpectations(t)
}
