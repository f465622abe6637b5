package scenario

import (
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/plugin"
)

// scenarioNamespace seeds deterministic scenario IDs.
var scenarioNamespace = uuid.MustParse("6f1c1f3e-3a55-4d0b-9a53-2f7a2e3c9b10")

// actionTools maps trigger verbs to the tool an agent needs to carry them out.
var actionTools = map[string]string{
	"add":      "Edit",
	"build":    "Bash",
	"commit":   "Bash",
	"create":   "Write",
	"debug":    "Bash",
	"deploy":   "Bash",
	"edit":     "Edit",
	"fetch":    "WebFetch",
	"find":     "Grep",
	"fix":      "Edit",
	"generate": "Write",
	"install":  "Bash",
	"refactor": "Edit",
	"run":      "Bash",
	"scaffold": "Write",
	"search":   "Grep",
	"test":     "Bash",
	"update":   "Edit",
	"write":    "Write",
}

// sampleArgs fills argument-hint names with plausible values.
var sampleArgs = map[string]string{
	"branch":    "main",
	"file":      "README.md",
	"files":     "README.md",
	"id":        "42",
	"issue":     "42",
	"message":   `"update docs"`,
	"msg":       `"update docs"`,
	"name":      "example",
	"number":    "42",
	"path":      "src/",
	"pr":        "42",
	"pr-number": "42",
	"url":       "https://example.com",
	"version":   "1.0.0",
}

// Builder derives scenarios from components. The output order follows the
// input order, and within a component: triggers, variations, then the direct
// invocation for commands.
type Builder struct {
	logger *zap.Logger
}

func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger.Named("scenario_builder")}
}

// Build creates every scenario for components. Commands that disable model
// invocation get no_trigger expectations for natural-language messages, and a
// description-based negative scenario when they declare no trigger phrases.
//
// IDs are unique within the result: a scenario whose ID was already emitted
// is dropped.
func (b *Builder) Build(components []plugin.Component) []TestScenario {
	var out []TestScenario
	seen := map[string]struct{}{}
	for _, c := range components {
		out = append(out, b.forComponent(c, seen)...)
	}
	b.logger.Debug("Scenarios built.", zap.Int("components", len(components)), zap.Int("scenarios", len(out)))
	return out
}

func (b *Builder) forComponent(c plugin.Component, seen map[string]struct{}) []TestScenario {
	ref := c.Ref()
	expect := ExpectTrigger
	natural := OriginTrigger
	cmd, isCmd := c.(plugin.CommandComponent)
	if isCmd && cmd.DisableModelInvocation {
		expect, natural = ExpectNoTrigger, OriginNegative
	}

	var out []TestScenario
	add := func(s TestScenario) {
		s.Component = ref
		s.AllowedTools = c.ToolRestrictions()
		if s.Phase == "" {
			s.Phase = PhaseExecute
		}
		if s.Expected == "" {
			s.Expected = expect
		}
		s.ID = uuid.NewSHA1(scenarioNamespace, []byte(strings.Join([]string{
			ref.String(), string(s.Origin), string(s.VariationType), s.UserMessage,
		}, "\x00"))).String()
		if _, dup := seen[s.ID]; dup {
			b.logger.Debug("Skipping duplicate scenario.", zap.Stringer("component", ref), zap.String("message", s.UserMessage))
			return
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
	}

	for _, phrase := range c.Triggers() {
		add(TestScenario{
			Origin:          natural,
			OriginalTrigger: phrase,
			UserMessage:     phrase,
			RequiredTools:   requiredTools(phrase),
		})
	}
	for _, v := range c.Variations() {
		add(TestScenario{
			Origin:          OriginVariation,
			OriginalTrigger: v.OriginalTrigger,
			VariationType:   v.VariationType,
			UserMessage:     v.Variation,
			RequiredTools:   requiredTools(v.Variation),
		})
	}

	if !isCmd {
		if len(out) == 0 {
			b.logger.Debug("Component has no trigger phrases; no scenarios built.", zap.Stringer("component", ref))
		}
		return out
	}
	if cmd.DisableModelInvocation && len(c.Triggers()) == 0 && strings.TrimSpace(cmd.Description) != "" {
		add(TestScenario{Origin: OriginNegative, UserMessage: cmd.Description})
	}
	add(TestScenario{
		Origin:      OriginDirect,
		UserMessage: DirectInvocation(cmd),
		Expected:    ExpectTrigger,
		Phase:       PhaseLoad,
	})
	return out
}

// DirectInvocation renders the slash command with sample arguments.
func DirectInvocation(cmd plugin.CommandComponent) string {
	parts := []string{plugin.GetCommandInvocation(cmd)}
	for _, a := range cmd.Arguments {
		parts = append(parts, sampleArg(a))
	}
	return strings.Join(parts, " ")
}

func sampleArg(name string) string {
	key := strings.ToLower(strings.TrimSuffix(name, "..."))
	if v, ok := sampleArgs[key]; ok {
		return v
	}
	return "example-" + key
}

// requiredTools infers the tool a message needs from its action verb.
func requiredTools(message string) []string {
	in, ok := plugin.ExtractIntent(message)
	if !ok {
		return nil
	}
	if t, ok := actionTools[in.Action]; ok {
		return []string{t}
	}
	return nil
}
