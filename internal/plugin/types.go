// Package plugin turns the markdown files of an agent plugin into immutable
// component records and extracts what each component claims to respond to.
package plugin

import (
	"slices"
	"strings"
)

// Kind identifies the three component flavours a plugin can ship.
type Kind string

const (
	KindSkill   Kind = "skill"
	KindAgent   Kind = "agent"
	KindCommand Kind = "command"
)

// ComponentRef identifies a component inside a run. Name is the name the agent
// uses to invoke it (a command's FullName).
type ComponentRef struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name"`
	Path string `json:"path"`
}

func (r ComponentRef) String() string { return string(r.Kind) + ":" + r.Name }

// SemanticIntent is one parsed trigger meaning. RawPhrase is a verbatim
// substring of the description it came from.
type SemanticIntent struct {
	Action    string `json:"action"`
	Object    string `json:"object"`
	Context   string `json:"context,omitempty"`
	RawPhrase string `json:"raw_phrase"`
}

// VariationType tags how a variation departs from its original trigger.
type VariationType string

const (
	VariationSynonym        VariationType = "synonym"
	VariationRelatedConcept VariationType = "related_concept"
	VariationStructure      VariationType = "structure"
	VariationInformal       VariationType = "informal"
)

// VariationTypes lists every valid VariationType.
var VariationTypes = []VariationType{VariationSynonym, VariationRelatedConcept, VariationStructure, VariationInformal}

// ParseVariationType accepts the canonical names plus a hyphenated spelling.
func ParseVariationType(s string) (VariationType, bool) {
	t := VariationType(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	return t, slices.Contains(VariationTypes, t)
}

// SemanticVariation is a paraphrase of a trigger phrase.
type SemanticVariation struct {
	OriginalTrigger string        `json:"original_trigger"`
	Variation       string        `json:"variation"`
	VariationType   VariationType `json:"variation_type"`
	Explanation     string        `json:"explanation,omitempty"`
}

// Valid reports whether v is usable. A variation that only differs from its
// original in case or surrounding space is degenerate.
func (v SemanticVariation) Valid() bool {
	got := strings.TrimSpace(v.Variation)
	if got == "" || v.Variation == v.OriginalTrigger {
		return false
	}
	if strings.EqualFold(got, strings.TrimSpace(v.OriginalTrigger)) {
		return false
	}
	_, ok := ParseVariationType(string(v.VariationType))
	return ok
}

// Component is the read-only view the scenario builder and orchestrator use.
type Component interface {
	Ref() ComponentRef
	// Summary is the component's description.
	Summary() string
	Triggers() []string
	Intents() []SemanticIntent
	Variations() []SemanticVariation
	// ToolRestrictions returns the declared tool allow-list. Empty means
	// the component does not restrict tools.
	ToolRestrictions() []string
	// WithVariations returns a copy with vs appended. The receiver is untouched.
	WithVariations(vs ...SemanticVariation) Component
}

// SkillComponent is a snapshot of skills/<name>/SKILL.md.
type SkillComponent struct {
	Name               string              `json:"name"`
	Path               string              `json:"path"`
	Description        string              `json:"description"`
	TriggerPhrases     []string            `json:"trigger_phrases"`
	SemanticIntents    []SemanticIntent    `json:"semantic_intents"`
	SemanticVariations []SemanticVariation `json:"semantic_variations,omitempty"`
	AllowedTools       []string            `json:"allowed_tools,omitempty"`
}

func (s SkillComponent) Ref() ComponentRef {
	return ComponentRef{Kind: KindSkill, Name: s.Name, Path: s.Path}
}
func (s SkillComponent) Summary() string                 { return s.Description }
func (s SkillComponent) Triggers() []string              { return s.TriggerPhrases }
func (s SkillComponent) Intents() []SemanticIntent       { return s.SemanticIntents }
func (s SkillComponent) Variations() []SemanticVariation { return s.SemanticVariations }
func (s SkillComponent) ToolRestrictions() []string      { return s.AllowedTools }

func (s SkillComponent) WithVariations(vs ...SemanticVariation) Component {
	s.SemanticVariations = appendCopy(s.SemanticVariations, vs)
	return s
}

// AgentComponent is a snapshot of agents/<name>.md.
type AgentComponent struct {
	Name               string              `json:"name"`
	Path               string              `json:"path"`
	Description        string              `json:"description"`
	Model              string              `json:"model,omitempty"`
	TriggerPhrases     []string            `json:"trigger_phrases"`
	SemanticIntents    []SemanticIntent    `json:"semantic_intents"`
	SemanticVariations []SemanticVariation `json:"semantic_variations,omitempty"`
	Tools              []string            `json:"tools,omitempty"`
}

func (a AgentComponent) Ref() ComponentRef {
	return ComponentRef{Kind: KindAgent, Name: a.Name, Path: a.Path}
}
func (a AgentComponent) Summary() string                 { return a.Description }
func (a AgentComponent) Triggers() []string              { return a.TriggerPhrases }
func (a AgentComponent) Intents() []SemanticIntent       { return a.SemanticIntents }
func (a AgentComponent) Variations() []SemanticVariation { return a.SemanticVariations }
func (a AgentComponent) ToolRestrictions() []string      { return a.Tools }

func (a AgentComponent) WithVariations(vs ...SemanticVariation) Component {
	a.SemanticVariations = appendCopy(a.SemanticVariations, vs)
	return a
}

// CommandComponent is a snapshot of commands/[namespace/]<name>.md.
type CommandComponent struct {
	Name                   string              `json:"name"`
	Path                   string              `json:"path"`
	Namespace              string              `json:"namespace"`
	FullName               string              `json:"full_name"`
	PluginPrefix           string              `json:"plugin_prefix"`
	Description            string              `json:"description"`
	ArgumentHint           string              `json:"argument_hint,omitempty"`
	Arguments              []string            `json:"arguments"`
	AllowedTools           []string            `json:"allowed_tools,omitempty"`
	DisableModelInvocation bool                `json:"disable_model_invocation"`
	TriggerPhrases         []string            `json:"trigger_phrases"`
	SemanticIntents        []SemanticIntent    `json:"semantic_intents"`
	SemanticVariations     []SemanticVariation `json:"semantic_variations,omitempty"`
}

func (c CommandComponent) Ref() ComponentRef {
	return ComponentRef{Kind: KindCommand, Name: c.FullName, Path: c.Path}
}
func (c CommandComponent) Summary() string                 { return c.Description }
func (c CommandComponent) Triggers() []string              { return c.TriggerPhrases }
func (c CommandComponent) Intents() []SemanticIntent       { return c.SemanticIntents }
func (c CommandComponent) Variations() []SemanticVariation { return c.SemanticVariations }
func (c CommandComponent) ToolRestrictions() []string      { return c.AllowedTools }

func (c CommandComponent) WithVariations(vs ...SemanticVariation) Component {
	c.SemanticVariations = appendCopy(c.SemanticVariations, vs)
	return c
}

// appendCopy never writes into the backing array of existing, so snapshots
// that share it stay intact.
func appendCopy[T any](existing, more []T) []T {
	out := make([]T, 0, len(existing)+len(more))
	out = append(out, existing...)
	return append(out, more...)
}
