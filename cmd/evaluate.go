package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/executor"
	"github.com/xkilldash9x/plugin-eval/internal/metrics"
	"github.com/xkilldash9x/plugin-eval/internal/observability"
	"github.com/xkilldash9x/plugin-eval/internal/pipeline"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
	"github.com/xkilldash9x/plugin-eval/internal/pricing"
	"github.com/xkilldash9x/plugin-eval/internal/progress"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
	"github.com/xkilldash9x/plugin-eval/internal/variation"
)

// evaluateDeps are the external collaborators of the evaluate command.
type evaluateDeps struct {
	clients clientProvider
	stores  storeProvider
}

func defaultDeps() evaluateDeps {
	return evaluateDeps{clients: defaultClientProvider{}, stores: NewStoreProvider()}
}

type evaluateOptions struct {
	model       string
	prefix      string
	variations  string
	output      string
	concurrency int
	quiet       bool
	persist     bool
	minPassRate float64
}

func newEvaluateCmd(deps evaluateDeps) *cobra.Command {
	var opts evaluateOptions

	cmd := &cobra.Command{
		Use:   "evaluate <plugin-dir>",
		Short: "Evaluate whether a plugin's skills, agents and commands trigger correctly",
		Long: `Analyzes the plugin at <plugin-dir>, builds test scenarios from its trigger
phrases (plus generated variations), runs each against the target model and
reports pass rates, token usage and cost.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			applyEvaluateFlags(cmd, cfg, opts)
			return runEvaluate(ctx, cmd.OutOrStdout(), observability.GetLogger(), cfg, args[0], opts, deps)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.model, "model", "m", "", "target model (overrides evaluation.target_model)")
	f.StringVar(&opts.prefix, "prefix", "", "plugin prefix (overrides the manifest name)")
	f.StringVar(&opts.variations, "variations", "", "variation provider: llm, rules or none")
	f.StringVarP(&opts.output, "output", "o", "", "write the JSON report to this file")
	f.IntVar(&opts.concurrency, "concurrency", 0, "maximum scenarios executing at once")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "disable the progress bar")
	f.BoolVar(&opts.persist, "persist", false, "store the report in PostgreSQL")
	f.Float64Var(&opts.minPassRate, "min-pass-rate", 0, "fail when the pass rate is below this fraction")
	return cmd
}

// applyEvaluateFlags copies explicitly set flags onto cfg.
func applyEvaluateFlags(cmd *cobra.Command, cfg config.Interface, opts evaluateOptions) {
	f := cmd.Flags()
	if f.Changed("model") {
		cfg.SetEvaluationTargetModel(opts.model)
	}
	if f.Changed("prefix") {
		cfg.SetEvaluationPluginPrefix(opts.prefix)
	}
	if f.Changed("variations") {
		cfg.SetEvaluationVariationProvider(config.VariationProvider(opts.variations))
	}
	if f.Changed("output") {
		cfg.SetEvaluationOutput(opts.output)
	}
	if f.Changed("concurrency") && opts.concurrency > 0 {
		cfg.SetBatchingMaxConcurrency(opts.concurrency)
	}
}

// loadInventory discovers the plugin at dir and settles its prefix.
func loadInventory(dir, prefixOverride string) (plugin.Inventory, pluginSource, error) {
	path, err := homedir.Expand(dir)
	if err != nil {
		return plugin.Inventory{}, pluginSource{}, fmt.Errorf("failed to expand plugin path: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return plugin.Inventory{}, pluginSource{}, fmt.Errorf("cannot read plugin directory: %w", err)
	}
	if !info.IsDir() {
		return plugin.Inventory{}, pluginSource{}, fmt.Errorf("%s is not a directory", path)
	}

	src := pluginSource{root: path, src: plugin.NewFSSource(os.DirFS(path))}
	inv, err := plugin.Discover(src.src.FS)
	if err != nil {
		return plugin.Inventory{}, pluginSource{}, fmt.Errorf("failed to discover plugin components: %w", err)
	}
	switch {
	case prefixOverride != "":
		inv.Prefix = prefixOverride
	case inv.Prefix == "":
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		inv.Prefix = filepath.Base(abs)
	}
	return inv, src, nil
}

// pluginSource pairs a plugin root with its component source.
type pluginSource struct {
	root string
	src  *plugin.FSSource
}

func runEvaluate(ctx context.Context, out io.Writer, logger *zap.Logger, cfg config.Interface, dir string, opts evaluateOptions, deps evaluateDeps) error {
	eval := cfg.Evaluation()
	tuning := cfg.Tuning()

	inv, src, err := loadInventory(dir, eval.PluginPrefix)
	if err != nil {
		return err
	}
	logger.Info("Evaluating plugin.",
		zap.String("path", src.root),
		zap.String("prefix", inv.Prefix),
		zap.String("target_model", eval.TargetModel),
		zap.String("variations", string(eval.VariationProvider)))

	client, cleanup, err := deps.clients.Create(ctx, cfg)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	generator, err := variation.New(eval.VariationProvider, client, tuning, logger)
	if err != nil {
		return err
	}

	reporters := []*progress.Reporter{progress.NewLogReporter(logger)}
	if !opts.quiet {
		reporters = append(reporters, newConsoleProgress(out, tuning.Limits.ProgressBarWidth, tuning.Limits.PromptDisplayLength).Reporter())
	}
	var recorder *metrics.Recorder
	if cfg.Metrics().Enabled {
		if recorder, err = metrics.NewRecorder(cfg.Metrics().Namespace); err != nil {
			return err
		}
		reporters = append(reporters, recorder.Reporter())
	}

	orch, err := pipeline.New(pipeline.Options{
		Analyzer:  plugin.NewAnalyzer(src.src, logger),
		Generator: generator,
		Builder:   scenario.NewBuilder(logger),
		NewRunner: func(components []plugin.Component, prefix string) (executor.AgentRunner, error) {
			return executor.NewLLMAgentRunner(client, components, prefix, tuning, logger), nil
		},
		Reporter:    progress.Multi(reporters...),
		Tuning:      tuning,
		TargetModel: eval.TargetModel,
	}, logger)
	if err != nil {
		return err
	}

	report, runErr := orch.Run(ctx, inv)
	if recorder != nil && cfg.Metrics().Textfile != "" {
		if err := recorder.WriteTextfile(cfg.Metrics().Textfile); err != nil {
			logger.Warn("Failed to write metrics.", zap.Error(err))
		}
	}
	if runErr != nil {
		var re *pipeline.RunError
		if errors.As(runErr, &re) {
			fmt.Fprintf(out, "Evaluation stopped during %s after %d scenarios.\n", re.State, len(re.Partial))
		}
		return runErr
	}

	printReport(out, report)
	if eval.Output != "" {
		if err := report.WriteFile(eval.Output); err != nil {
			return err
		}
		logger.Info("Report written.", zap.String("path", eval.Output))
	}
	if opts.persist {
		if err := persistReport(ctx, cfg, deps.stores, report); err != nil {
			return err
		}
	}
	if rate := report.Summary.PassRate; report.Summary.Total > 0 && rate < opts.minPassRate {
		return fmt.Errorf("pass rate %.1f%% is below the required %.1f%%", rate*100, opts.minPassRate*100)
	}
	return nil
}

func persistReport(ctx context.Context, cfg config.Interface, provider storeProvider, report *pipeline.Report) error {
	s, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}
	if err := s.EnsureSchema(ctx); err != nil {
		return err
	}
	return s.PersistReport(ctx, report)
}

// printReport writes the human-readable summary.
func printReport(out io.Writer, r *pipeline.Report) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, r.String())
	for _, c := range r.Summary.Components {
		fmt.Fprintf(out, "  %-40s %d/%d passed", c.Component, c.Passed, c.Total)
		if c.Errored > 0 {
			fmt.Fprintf(out, ", %d errored", c.Errored)
		}
		fmt.Fprintln(out)
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(out, "warning: %s\n", w)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(out, "error [%s/%s] %s: %s\n", e.Stage, e.Kind, e.Component, e.Message)
	}
	if r.Summary.EstimatedResults > 0 {
		fmt.Fprintf(out, "note: %d results use estimated token counts\n", r.Summary.EstimatedResults)
	}
	if s := r.Summary; s.GenerationInputTokens+s.GenerationOutputTokens > 0 {
		fmt.Fprintf(out, "note: totals include %d in / %d out tokens (%s) for variation generation\n",
			s.GenerationInputTokens, s.GenerationOutputTokens, pricing.FormatCost(s.GenerationCost))
	}
}
