package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/plugin-eval/internal/config"
	"github.com/xkilldash9x/plugin-eval/internal/pricing"
)

func newHistoryCmd(provider storeProvider) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <plugin>",
		Short: "List recent persisted evaluation runs for a plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			return runHistory(ctx, cmd.OutOrStdout(), cfg, provider, args[0], limit)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}

func runHistory(ctx context.Context, out io.Writer, cfg config.Interface, provider storeProvider, plugin string, limit int) error {
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}
	s, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	runs, err := s.RecentRuns(ctx, plugin, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintf(out, "No runs recorded for %s.\n", plugin)
		return nil
	}
	for _, r := range runs {
		rate := 0.0
		if r.Total > 0 {
			rate = float64(r.Passed) / float64(r.Total) * 100
		}
		fmt.Fprintf(out, "%s  %s  %-24s %3d/%-3d (%.0f%%)  %s\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.RunID, r.TargetModel, r.Passed, r.Total, rate, pricing.FormatCost(r.TotalCost))
	}
	return nil
}
