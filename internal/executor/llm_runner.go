package executor

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/llmclient"
	"github.com/xkilldash9x/plugin-eval/internal/observability"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
)

// invokeMarker starts a transcript line naming an invoked component.
const invokeMarker = "INVOKE:"

// LLMAgentRunner plays the agent under test with a language model. The model
// sees the plugin's components and answers with INVOKE lines for the ones it
// would use.
type LLMAgentRunner struct {
	client    llmclient.Client
	prefix    string
	system    string
	maxTokens int
	limits    config.LimitsTuning
	logger    *zap.Logger
}

func NewLLMAgentRunner(client llmclient.Client, components []plugin.Component, prefix string, tuning config.Tuning, logger *zap.Logger) *LLMAgentRunner {
	return &LLMAgentRunner{
		client:    client,
		prefix:    prefix,
		system:    agentSystemPrompt(components, prefix),
		maxTokens: tuning.TokenEstimates.OutputPerScenario,
		limits:    tuning.Limits,
		logger:    logger.Named("llm_runner"),
	}
}

func (r *LLMAgentRunner) Run(ctx context.Context, s scenario.TestScenario) (AgentResult, error) {
	r.logger.Debug("Prompting agent.", zap.String("prompt", observability.Preview(s.UserMessage, r.limits.PromptDisplayLength)))

	resp, err := r.client.Generate(ctx, llmclient.GenerationRequest{
		SystemPrompt: r.system,
		UserPrompt:   s.UserMessage,
		Tier:         llmclient.TierPowerful,
		Options:      llmclient.GenerationOptions{Temperature: 0, MaxOutputTokens: r.maxTokens},
	})
	if err != nil {
		return AgentResult{}, fmt.Errorf("agent call failed: %w", err)
	}

	out := AgentResult{Transcript: Transcript{
		Invocations: ParseInvocations(resp.Text, r.prefix),
		Content:     observability.Preview(resp.Text, r.limits.TranscriptContentLength),
	}}
	if resp.Usage != (llmclient.Usage{}) {
		u := resp.Usage
		out.Usage = &u
	}
	return out, nil
}

// ParseInvocations reads INVOKE lines from an agent reply. Accepted forms are
// "INVOKE: kind:name", "INVOKE: name" and "INVOKE: /prefix:name args".
// Duplicates are dropped.
func ParseInvocations(text, prefix string) []plugin.ComponentRef {
	var out []plugin.ComponentRef
	seen := map[plugin.ComponentRef]struct{}{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(strings.TrimSpace(line), "-*> `")
		if len(line) < len(invokeMarker) || !strings.EqualFold(line[:len(invokeMarker)], invokeMarker) {
			continue
		}
		ref, ok := parseInvocation(strings.Trim(line[len(invokeMarker):], " `\"'"), prefix)
		if !ok {
			continue
		}
		if _, dup := seen[ref]; dup {
			continue
		}
		seen[ref] = struct{}{}
		out = append(out, ref)
	}
	return out
}

func parseInvocation(v, prefix string) (plugin.ComponentRef, bool) {
	var ref plugin.ComponentRef
	for _, k := range []plugin.Kind{plugin.KindSkill, plugin.KindAgent, plugin.KindCommand} {
		if rest, ok := strings.CutPrefix(v, string(k)+":"); ok {
			ref.Kind, v = k, strings.TrimSpace(rest)
			break
		}
	}
	if strings.HasPrefix(v, "/") {
		ref.Kind = plugin.KindCommand
		v = strings.TrimPrefix(v, "/")
		if f := strings.Fields(v); len(f) > 0 {
			v = f[0]
		}
	}
	if prefix != "" {
		v = strings.TrimPrefix(v, prefix+":")
	}
	ref.Name = strings.TrimSpace(v)
	return ref, ref.Name != ""
}

func agentSystemPrompt(components []plugin.Component, prefix string) string {
	var sb strings.Builder
	sb.WriteString(`You are an AI coding agent. The following plugin components are installed.
Decide which of them, if any, you would use to handle the user's message.

For every component you would use, output one line of the form:
INVOKE: <kind>:<name>
Output the INVOKE lines first, then a short reply. If no component fits, output no INVOKE line.
A message starting with a slash command invokes that command.
Components marked manual-only must not be invoked unless the user types their slash command.

Components:
`)
	for _, c := range components {
		ref := c.Ref()
		fmt.Fprintf(&sb, "- %s", ref)
		if cmd, ok := c.(plugin.CommandComponent); ok {
			fmt.Fprintf(&sb, " (typed as /%s:%s", prefix, cmd.FullName)
			if cmd.DisableModelInvocation {
				sb.WriteString(", manual-only")
			}
			sb.WriteString(")")
		}
		if d := strings.TrimSpace(c.Summary()); d != "" {
			fmt.Fprintf(&sb, ": %s", strings.Join(strings.Fields(d), " "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
