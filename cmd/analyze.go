package cmd

import (
	"fmt"
	"io"
	"strings"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/observability"
	"github.com/xkilldash9x/plugin-eval/internal/plugin"
	"github.com/xkilldash9x/plugin-eval/internal/scenario"
)

// analysisOutput is the JSON shape of the analyze command.
type analysisOutput struct {
	Prefix    string                    `json:"prefix"`
	Skills    []plugin.SkillComponent   `json:"skills"`
	Agents    []plugin.AgentComponent   `json:"agents"`
	Commands  []plugin.CommandComponent `json:"commands"`
	Errors    []string                  `json:"errors"`
	Conflicts []plugin.Conflict         `json:"conflicts"`
	Scenarios int                       `json:"scenarios"`
}

func newAnalyzeCmd() *cobra.Command {
	var asJSON bool
	var prefix string

	cmd := &cobra.Command{
		Use:   "analyze <plugin-dir>",
		Short: "Parse a plugin and list its components, trigger phrases and conflicts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			if prefix == "" {
				prefix = cfg.Evaluation().PluginPrefix
			}
			return runAnalyze(cmd.OutOrStdout(), cfg, args[0], prefix, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the analysis as JSON")
	cmd.Flags().StringVar(&prefix, "prefix", "", "plugin prefix (overrides the manifest name)")
	return cmd
}

func runAnalyze(out io.Writer, cfg config.Interface, dir, prefix string, asJSON bool) error {
	logger := observability.GetLogger()
	inv, src, err := loadInventory(dir, prefix)
	if err != nil {
		return err
	}
	an := plugin.NewAnalyzer(src.src, logger).Analyze(inv)
	components := an.Components()
	conflicts := plugin.DetectConflicts(components, cfg.Tuning().Limits.ConflictDomainPartMin)
	scenarios := scenario.NewBuilder(logger).Build(components)

	if asJSON {
		o := analysisOutput{
			Prefix:    an.Prefix,
			Skills:    an.Skills,
			Agents:    an.Agents,
			Commands:  an.Commands,
			Errors:    []string{},
			Conflicts: conflicts,
			Scenarios: len(scenarios),
		}
		for _, e := range an.Errors {
			o.Errors = append(o.Errors, e.Error())
		}
		b, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(o, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode analysis: %w", err)
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	}

	fmt.Fprintf(out, "%s: %s\n", an.Prefix, an)
	for _, c := range components {
		fmt.Fprintf(out, "\n%s\n", c.Ref())
		if d := c.Summary(); d != "" {
			fmt.Fprintf(out, "  %s\n", observability.Preview(d, cfg.Tuning().Limits.PromptDisplayLength))
		}
		if cmd, ok := c.(plugin.CommandComponent); ok {
			fmt.Fprintf(out, "  invoke: %s\n", scenario.DirectInvocation(cmd))
			if cmd.DisableModelInvocation {
				fmt.Fprintln(out, "  manual only")
			}
		}
		for _, in := range c.Intents() {
			fmt.Fprintf(out, "  trigger: %q (action=%s object=%s)\n", in.RawPhrase, in.Action, in.Object)
		}
		if tools := c.ToolRestrictions(); len(tools) > 0 {
			fmt.Fprintf(out, "  tools: %s\n", strings.Join(tools, ", "))
		}
	}
	for _, e := range an.Errors {
		fmt.Fprintf(out, "\nerror: %v\n", e)
	}
	for _, c := range conflicts {
		fmt.Fprintf(out, "\nconflict: %s and %s share %s\n", c.A, c.B, strings.Join(c.Shared, ", "))
	}
	fmt.Fprintf(out, "\n%d scenarios would run before variations.\n", len(scenarios))
	return nil
}
