// File: internal/config/tuning.go
// Tuning holds the knobs that govern how an evaluation run spends time, tokens
// and money. A partial tree comes in from the config file (or from a caller),
// and ResolveTuning turns it into a fully populated Tuning exactly once, so no
// consumer ever has to deal with an unset leaf.
package config

import (
	"maps"
	"time"
)

// Tuning is the fully resolved tuning tree. Every leaf is populated.
type Tuning struct {
	Timeouts       TimeoutsTuning       `mapstructure:"timeouts" yaml:"timeouts" json:"timeouts"`
	Retry          RetryTuning          `mapstructure:"retry" yaml:"retry" json:"retry"`
	TokenEstimates TokenEstimatesTuning `mapstructure:"token_estimates" yaml:"token_estimates" json:"token_estimates"`
	Limits         LimitsTuning         `mapstructure:"limits" yaml:"limits" json:"limits"`
	Batching       BatchingTuning       `mapstructure:"batching" yaml:"batching" json:"batching"`
}

// TimeoutsTuning holds per-call deadlines and the retry delay window, in milliseconds.
type TimeoutsTuning struct {
	PluginLoadMs   int `mapstructure:"plugin_load_ms" yaml:"plugin_load_ms" json:"plugin_load_ms"`
	ExecutionMs    int `mapstructure:"execution_ms" yaml:"execution_ms" json:"execution_ms"`
	SemanticGenMs  int `mapstructure:"semantic_gen_ms" yaml:"semantic_gen_ms" json:"semantic_gen_ms"`
	RetryInitialMs int `mapstructure:"retry_initial_ms" yaml:"retry_initial_ms" json:"retry_initial_ms"`
	RetryMaxMs     int `mapstructure:"retry_max_ms" yaml:"retry_max_ms" json:"retry_max_ms"`

	Extra map[string]any `mapstructure:",remain" yaml:",inline" json:"-"`
}

// RetryTuning governs the exponential backoff applied to transient failures.
type RetryTuning struct {
	MaxRetries        int     `mapstructure:"max_retries" yaml:"max_retries" json:"max_retries"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier" json:"backoff_multiplier"`
	JitterFactor      float64 `mapstructure:"jitter_factor" yaml:"jitter_factor" json:"jitter_factor"`

	Extra map[string]any `mapstructure:",remain" yaml:",inline" json:"-"`
}

// TokenEstimatesTuning holds token estimates used before real usage is known.
type TokenEstimatesTuning struct {
	PerSkill             int `mapstructure:"per_skill" yaml:"per_skill" json:"per_skill"`
	PerAgent             int `mapstructure:"per_agent" yaml:"per_agent" json:"per_agent"`
	PerCommand           int `mapstructure:"per_command" yaml:"per_command" json:"per_command"`
	SystemPrompt         int `mapstructure:"system_prompt" yaml:"system_prompt" json:"system_prompt"`
	OutputPerScenario    int `mapstructure:"output_per_scenario" yaml:"output_per_scenario" json:"output_per_scenario"`
	SemanticGenMaxTokens int `mapstructure:"semantic_gen_max_tokens" yaml:"semantic_gen_max_tokens" json:"semantic_gen_max_tokens"`

	Extra map[string]any `mapstructure:",remain" yaml:",inline" json:"-"`
}

// LimitsTuning holds display and generation limits.
type LimitsTuning struct {
	ProgressBarWidth        int `mapstructure:"progress_bar_width" yaml:"progress_bar_width" json:"progress_bar_width"`
	PromptDisplayLength     int `mapstructure:"prompt_display_length" yaml:"prompt_display_length" json:"prompt_display_length"`
	TranscriptContentLength int `mapstructure:"transcript_content_length" yaml:"transcript_content_length" json:"transcript_content_length"`
	ConflictDomainPartMin   int `mapstructure:"conflict_domain_part_min" yaml:"conflict_domain_part_min" json:"conflict_domain_part_min"`
	MaxVariationsPerIntent  int `mapstructure:"max_variations_per_intent" yaml:"max_variations_per_intent" json:"max_variations_per_intent"`

	Extra map[string]any `mapstructure:",remain" yaml:",inline" json:"-"`
}

// BatchingTuning controls how scenarios are grouped and dispatched.
type BatchingTuning struct {
	SafetyMargin      float64 `mapstructure:"safety_margin" yaml:"safety_margin" json:"safety_margin"`
	TokenCeiling      int     `mapstructure:"token_ceiling" yaml:"token_ceiling" json:"token_ceiling"`
	BatchSize         int     `mapstructure:"batch_size" yaml:"batch_size" json:"batch_size"`
	MaxConcurrency    int     `mapstructure:"max_concurrency" yaml:"max_concurrency" json:"max_concurrency"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second" json:"requests_per_second"`

	Extra map[string]any `mapstructure:",remain" yaml:",inline" json:"-"`
}

// -- Partial tuning (input boundary only) --

// PartialTuning is what a user supplies. Nil sections and nil leaves fall back
// to defaults during ResolveTuning and never travel further than that.
type PartialTuning struct {
	Timeouts       *PartialTimeouts       `mapstructure:"timeouts" yaml:"timeouts"`
	Retry          *PartialRetry          `mapstructure:"retry" yaml:"retry"`
	TokenEstimates *PartialTokenEstimates `mapstructure:"token_estimates" yaml:"token_estimates"`
	Limits         *PartialLimits         `mapstructure:"limits" yaml:"limits"`
	Batching       *PartialBatching       `mapstructure:"batching" yaml:"batching"`
}

type PartialTimeouts struct {
	PluginLoadMs   *int `mapstructure:"plugin_load_ms" yaml:"plugin_load_ms"`
	ExecutionMs    *int `mapstructure:"execution_ms" yaml:"execution_ms"`
	SemanticGenMs  *int `mapstructure:"semantic_gen_ms" yaml:"semantic_gen_ms"`
	RetryInitialMs *int `mapstructure:"retry_initial_ms" yaml:"retry_initial_ms"`
	RetryMaxMs     *int `mapstructure:"retry_max_ms" yaml:"retry_max_ms"`

	Extra map[string]any `mapstructure:",remain" yaml:",inline"`
}

type PartialRetry struct {
	MaxRetries        *int     `mapstructure:"max_retries" yaml:"max_retries"`
	BackoffMultiplier *float64 `mapstructure:"backoff_multiplier" yaml:"backoff_multiplier"`
	JitterFactor      *float64 `mapstructure:"jitter_factor" yaml:"jitter_factor"`

	Extra map[string]any `mapstructure:",remain" yaml:",inline"`
}

type PartialTokenEstimates struct {
	PerSkill             *int `mapstructure:"per_skill" yaml:"per_skill"`
	PerAgent             *int `mapstructure:"per_agent" yaml:"per_agent"`
	PerCommand           *int `mapstructure:"per_command" yaml:"per_command"`
	SystemPrompt         *int `mapstructure:"system_prompt" yaml:"system_prompt"`
	OutputPerScenario    *int `mapstructure:"output_per_scenario" yaml:"output_per_scenario"`
	SemanticGenMaxTokens *int `mapstructure:"semantic_gen_max_tokens" yaml:"semantic_gen_max_tokens"`

	Extra map[string]any `mapstructure:",remain" yaml:",inline"`
}

type PartialLimits struct {
	ProgressBarWidth        *int `mapstructure:"progress_bar_width" yaml:"progress_bar_width"`
	PromptDisplayLength     *int `mapstructure:"prompt_display_length" yaml:"prompt_display_length"`
	TranscriptContentLength *int `mapstructure:"transcript_content_length" yaml:"transcript_content_length"`
	ConflictDomainPartMin   *int `mapstructure:"conflict_domain_part_min" yaml:"conflict_domain_part_min"`
	MaxVariationsPerIntent  *int `mapstructure:"max_variations_per_intent" yaml:"max_variations_per_intent"`

	Extra map[string]any `mapstructure:",remain" yaml:",inline"`
}

type PartialBatching struct {
	SafetyMargin      *float64 `mapstructure:"safety_margin" yaml:"safety_margin"`
	TokenCeiling      *int     `mapstructure:"token_ceiling" yaml:"token_ceiling"`
	BatchSize         *int     `mapstructure:"batch_size" yaml:"batch_size"`
	MaxConcurrency    *int     `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	RequestsPerSecond *float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`

	Extra map[string]any `mapstructure:",remain" yaml:",inline"`
}

// DefaultTuning returns the built-in tuning tree.
func DefaultTuning() Tuning {
	return Tuning{
		Timeouts: TimeoutsTuning{
			PluginLoadMs:   30_000,
			ExecutionMs:    120_000,
			SemanticGenMs:  60_000,
			RetryInitialMs: 1_000,
			RetryMaxMs:     30_000,
		},
		Retry: RetryTuning{
			MaxRetries:        3,
			BackoffMultiplier: 2.0,
			JitterFactor:      0.1,
		},
		TokenEstimates: TokenEstimatesTuning{
			PerSkill:             600,
			PerAgent:             800,
			PerCommand:           400,
			SystemPrompt:         2_000,
			OutputPerScenario:    800,
			SemanticGenMaxTokens: 1_000,
		},
		Limits: LimitsTuning{
			ProgressBarWidth:        30,
			PromptDisplayLength:     80,
			TranscriptContentLength: 500,
			ConflictDomainPartMin:   4,
			MaxVariationsPerIntent:  4,
		},
		Batching: BatchingTuning{
			SafetyMargin:      0.75,
			TokenCeiling:      200_000,
			BatchSize:         10,
			MaxConcurrency:    4,
			RequestsPerSecond: 0,
		},
	}
}

// ResolveTuning merges a partial tree over DefaultTuning, one section at a
// time. The merge is shallow: a leaf present in the partial replaces the
// default, everything else is kept. Unknown keys ride along in Extra.
func ResolveTuning(partial *PartialTuning) Tuning {
	t := DefaultTuning()
	if partial == nil {
		return t
	}
	t.Timeouts = mergeTimeouts(t.Timeouts, partial.Timeouts)
	t.Retry = mergeRetry(t.Retry, partial.Retry)
	t.TokenEstimates = mergeTokenEstimates(t.TokenEstimates, partial.TokenEstimates)
	t.Limits = mergeLimits(t.Limits, partial.Limits)
	t.Batching = mergeBatching(t.Batching, partial.Batching)
	return t
}

func mergeTimeouts(base TimeoutsTuning, p *PartialTimeouts) TimeoutsTuning {
	if p == nil {
		return base
	}
	setInt(&base.PluginLoadMs, p.PluginLoadMs)
	setInt(&base.ExecutionMs, p.ExecutionMs)
	setInt(&base.SemanticGenMs, p.SemanticGenMs)
	setInt(&base.RetryInitialMs, p.RetryInitialMs)
	setInt(&base.RetryMaxMs, p.RetryMaxMs)
	base.Extra = passThrough(p.Extra)
	return base
}

func mergeRetry(base RetryTuning, p *PartialRetry) RetryTuning {
	if p == nil {
		return base
	}
	setInt(&base.MaxRetries, p.MaxRetries)
	setFloat(&base.BackoffMultiplier, p.BackoffMultiplier)
	setFloat(&base.JitterFactor, p.JitterFactor)
	base.Extra = passThrough(p.Extra)
	return base
}

func mergeTokenEstimates(base TokenEstimatesTuning, p *PartialTokenEstimates) TokenEstimatesTuning {
	if p == nil {
		return base
	}
	setInt(&base.PerSkill, p.PerSkill)
	setInt(&base.PerAgent, p.PerAgent)
	setInt(&base.PerCommand, p.PerCommand)
	setInt(&base.SystemPrompt, p.SystemPrompt)
	setInt(&base.OutputPerScenario, p.OutputPerScenario)
	setInt(&base.SemanticGenMaxTokens, p.SemanticGenMaxTokens)
	base.Extra = passThrough(p.Extra)
	return base
}

func mergeLimits(base LimitsTuning, p *PartialLimits) LimitsTuning {
	if p == nil {
		return base
	}
	setInt(&base.ProgressBarWidth, p.ProgressBarWidth)
	setInt(&base.PromptDisplayLength, p.PromptDisplayLength)
	setInt(&base.TranscriptContentLength, p.TranscriptContentLength)
	setInt(&base.ConflictDomainPartMin, p.ConflictDomainPartMin)
	setInt(&base.MaxVariationsPerIntent, p.MaxVariationsPerIntent)
	base.Extra = passThrough(p.Extra)
	return base
}

func mergeBatching(base BatchingTuning, p *PartialBatching) BatchingTuning {
	if p == nil {
		return base
	}
	setFloat(&base.SafetyMargin, p.SafetyMargin)
	setInt(&base.TokenCeiling, p.TokenCeiling)
	setInt(&base.BatchSize, p.BatchSize)
	setInt(&base.MaxConcurrency, p.MaxConcurrency)
	setFloat(&base.RequestsPerSecond, p.RequestsPerSecond)
	base.Extra = passThrough(p.Extra)
	return base
}

func setInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func passThrough(extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return nil
	}
	return maps.Clone(extra)
}

// -- Duration helpers --

func ms(v int) time.Duration { return time.Duration(v) * time.Millisecond }

func (t TimeoutsTuning) PluginLoad() time.Duration   { return ms(t.PluginLoadMs) }
func (t TimeoutsTuning) Execution() time.Duration    { return ms(t.ExecutionMs) }
func (t TimeoutsTuning) SemanticGen() time.Duration  { return ms(t.SemanticGenMs) }
func (t TimeoutsTuning) RetryInitial() time.Duration { return ms(t.RetryInitialMs) }
func (t TimeoutsTuning) RetryMax() time.Duration     { return ms(t.RetryMaxMs) }

// BudgetCeiling is the number of tokens a single batch may consume.
func (b BatchingTuning) BudgetCeiling() int {
	return int(float64(b.TokenCeiling) * b.SafetyMargin)
}
