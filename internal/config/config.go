// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/prometheus/common/model"
	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Database() DatabaseConfig
	LLM() LLMRouterConfig
	Evaluation() EvaluationConfig
	Metrics() MetricsConfig
	// Tuning returns the resolved tuning tree. It is never partially populated.
	Tuning() Tuning

	// Evaluation Setters
	SetEvaluationTargetModel(string)
	SetEvaluationPluginPrefix(string)
	SetEvaluationVariationProvider(VariationProvider)
	SetEvaluationOutput(string)

	// Batching Setters
	SetBatchingMaxConcurrency(int)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	DatabaseCfg   DatabaseConfig   `mapstructure:"database" yaml:"database"`
	LLMCfg        LLMRouterConfig  `mapstructure:"llm" yaml:"llm"`
	EvaluationCfg EvaluationConfig `mapstructure:"evaluation" yaml:"evaluation"`
	MetricsCfg    MetricsConfig    `mapstructure:"metrics" yaml:"metrics"`
	// TuningCfg is the user's partial tree; it is resolved once in NewConfigFromViper.
	TuningCfg PartialTuning `mapstructure:"tuning" yaml:"tuning"`

	tuning Tuning
}

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig         { return c.LoggerCfg }
func (c *Config) Database() DatabaseConfig     { return c.DatabaseCfg }
func (c *Config) LLM() LLMRouterConfig         { return c.LLMCfg }
func (c *Config) Evaluation() EvaluationConfig { return c.EvaluationCfg }
func (c *Config) Metrics() MetricsConfig       { return c.MetricsCfg }
func (c *Config) Tuning() Tuning               { return c.tuning }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetEvaluationTargetModel(m string)  { c.EvaluationCfg.TargetModel = m }
func (c *Config) SetEvaluationPluginPrefix(p string) { c.EvaluationCfg.PluginPrefix = p }
func (c *Config) SetEvaluationVariationProvider(p VariationProvider) {
	c.EvaluationCfg.VariationProvider = p
}
func (c *Config) SetEvaluationOutput(o string) { c.EvaluationCfg.Output = o }

// SetBatchingMaxConcurrency overrides the resolved fan-out bound.
func (c *Config) SetBatchingMaxConcurrency(n int) { c.tuning.Batching.MaxConcurrency = n }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// DatabaseConfig holds the optional report sink connection details.
// An empty URL disables persistence.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// MetricsConfig toggles the prometheus recorder.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	Namespace string `mapstructure:"namespace" yaml:"namespace"`
	// Textfile, when set, receives the metrics in text exposition format
	// after each run.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// VariationProvider selects how semantic variations are produced.
type VariationProvider string

const (
	VariationProviderLLM   VariationProvider = "llm"
	VariationProviderRules VariationProvider = "rules"
	VariationProviderNone  VariationProvider = "none"
)

// EvaluationConfig holds settings for an evaluation run.
type EvaluationConfig struct {
	// TargetModel is the model identifier used for pricing and, when the LLM
	// runner is used, for the agent under test.
	TargetModel string `mapstructure:"target_model" yaml:"target_model"`
	// PluginPrefix overrides the prefix read from the plugin manifest.
	PluginPrefix      string            `mapstructure:"plugin_prefix" yaml:"plugin_prefix"`
	VariationProvider VariationProvider `mapstructure:"variation_provider" yaml:"variation_provider"`
	Output            string            `mapstructure:"output" yaml:"output"`
}

// LLMProvider defines the supported LLM providers.
type LLMProvider string

const (
	ProviderGemini    LLMProvider = "gemini"
	ProviderOpenAI    LLMProvider = "openai"
	ProviderAnthropic LLMProvider = "anthropic"
)

// InferProvider guesses the provider from a bare model name.
func InferProvider(model string) LLMProvider {
	m := strings.ToLower(model)
	switch {
	case strings.HasPrefix(m, "claude"):
		return ProviderAnthropic
	case strings.HasPrefix(m, "gpt"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return ProviderOpenAI
	default:
		return ProviderGemini
	}
}

// LLMRouterConfig configures the model routing logic.
type LLMRouterConfig struct {
	DefaultFastModel     string                    `mapstructure:"default_fast_model" yaml:"default_fast_model"`
	DefaultPowerfulModel string                    `mapstructure:"default_powerful_model" yaml:"default_powerful_model"`
	Models               map[string]LLMModelConfig `mapstructure:"models" yaml:"models"`
}

// ModelConfig returns the entry for name. Names without an entry get a
// config with an inferred provider and the API key from the environment.
func (c LLMRouterConfig) ModelConfig(name string) LLMModelConfig {
	if m, ok := c.Models[name]; ok {
		if m.Model == "" {
			m.Model = name
		}
		return m
	}
	p := InferProvider(name)
	return LLMModelConfig{
		Provider:   p,
		Model:      name,
		APIKey:     os.Getenv(APIKeyEnv(p)),
		APITimeout: 2 * time.Minute,
	}
}

// LLMModelConfig defines the configuration for a single LLM.
type LLMModelConfig struct {
	Provider    LLMProvider   `mapstructure:"provider" yaml:"provider"`
	Model       string        `mapstructure:"model" yaml:"model"`
	APIKey      string        `mapstructure:"api_key" yaml:"-"`
	Endpoint    string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	TopP        float32       `mapstructure:"top_p" yaml:"top_p"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	cfg.tuning = ResolveTuning(&cfg.TuningCfg)
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
// Tuning leaves are intentionally absent: their defaults live in DefaultTuning
// and are applied by ResolveTuning.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "plugin-eval")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")

	// -- LLM --
	v.SetDefault("llm.default_fast_model", "gemini-2.5-flash")
	v.SetDefault("llm.default_powerful_model", "gemini-2.5-pro")

	// -- Evaluation --
	v.SetDefault("evaluation.target_model", "claude-sonnet-4-5")
	v.SetDefault("evaluation.variation_provider", string(VariationProviderRules))
	v.SetDefault("evaluation.output", "")

	// -- Metrics --
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.namespace", "plugin_eval")
	v.SetDefault("metrics.textfile", "")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	v.BindEnv("database.url", "PLUGIN_EVAL_DATABASE_URL")
	bindTuningEnv(v)

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// API keys never live in the config file.
	for name, m := range cfg.LLMCfg.Models {
		if m.APIKey == "" {
			m.APIKey = os.Getenv(APIKeyEnv(m.Provider))
			cfg.LLMCfg.Models[name] = m
		}
	}

	cfg.tuning = ResolveTuning(&cfg.TuningCfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// bindTuningEnv maps every tuning leaf to PLUGIN_EVAL_TUNING_<SECTION>_<LEAF>.
// Leaves get no default, so an unset variable leaves the partial tree alone.
func bindTuningEnv(v *viper.Viper) {
	sections := reflect.TypeOf(PartialTuning{})
	for i := 0; i < sections.NumField(); i++ {
		section := sections.Field(i)
		leaves := section.Type.Elem()
		for j := 0; j < leaves.NumField(); j++ {
			leaf := leaves.Field(j).Tag.Get("mapstructure")
			if leaf == "" || strings.HasPrefix(leaf, ",") {
				continue
			}
			key := "tuning." + section.Tag.Get("mapstructure") + "." + leaf
			v.BindEnv(key, "PLUGIN_EVAL_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")))
		}
	}
}

// APIKeyEnv names the environment variable holding the key for p.
func APIKeyEnv(p LLMProvider) string {
	switch p {
	case ProviderOpenAI:
		return "PLUGIN_EVAL_OPENAI_API_KEY"
	case ProviderAnthropic:
		return "PLUGIN_EVAL_ANTHROPIC_API_KEY"
	default:
		return "PLUGIN_EVAL_GEMINI_API_KEY"
	}
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	switch c.EvaluationCfg.VariationProvider {
	case VariationProviderLLM, VariationProviderRules, VariationProviderNone:
	default:
		return fmt.Errorf("evaluation.variation_provider must be one of llm, rules, none (got %q)", c.EvaluationCfg.VariationProvider)
	}
	if c.EvaluationCfg.TargetModel == "" {
		return fmt.Errorf("evaluation.target_model is a required configuration field")
	}
	for name, m := range c.LLMCfg.Models {
		switch m.Provider {
		case ProviderGemini, ProviderOpenAI, ProviderAnthropic:
		default:
			return fmt.Errorf("llm.models.%s.provider must be one of gemini, openai, anthropic (got %q)", name, m.Provider)
		}
	}
	if ns := c.MetricsCfg.Namespace; ns != "" && !model.IsValidLegacyMetricName(ns) {
		return fmt.Errorf("metrics.namespace %q is not a valid metric name prefix", ns)
	}
	if err := c.tuning.Validate(); err != nil {
		return fmt.Errorf("tuning configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the resolved tuning tree for values the pipeline cannot work with.
func (t Tuning) Validate() error {
	if t.Retry.MaxRetries < 1 {
		return fmt.Errorf("retry.max_retries must be at least 1")
	}
	if t.Retry.BackoffMultiplier < 1.0 {
		return fmt.Errorf("retry.backoff_multiplier must be >= 1.0")
	}
	if t.Retry.JitterFactor < 0 || t.Retry.JitterFactor >= 1 {
		return fmt.Errorf("retry.jitter_factor must be in [0, 1)")
	}
	if t.Timeouts.RetryInitialMs <= 0 || t.Timeouts.RetryMaxMs < t.Timeouts.RetryInitialMs {
		return fmt.Errorf("timeouts.retry_initial_ms must be positive and not exceed timeouts.retry_max_ms")
	}
	if t.Timeouts.PluginLoadMs <= 0 || t.Timeouts.ExecutionMs <= 0 {
		return fmt.Errorf("timeouts.plugin_load_ms and timeouts.execution_ms must be positive")
	}
	if t.Batching.SafetyMargin <= 0 || t.Batching.SafetyMargin > 1 {
		return fmt.Errorf("batching.safety_margin must be in (0, 1]")
	}
	if t.Batching.BatchSize <= 0 {
		return fmt.Errorf("batching.batch_size must be a positive integer")
	}
	if t.Batching.MaxConcurrency <= 0 {
		return fmt.Errorf("batching.max_concurrency must be a positive integer")
	}
	if t.Batching.RequestsPerSecond < 0 {
		return fmt.Errorf("batching.requests_per_second must not be negative")
	}
	return nil
}
