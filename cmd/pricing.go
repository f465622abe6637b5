package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/plugin-eval/internal/pricing"
)

func newPricingCmd() *cobra.Command {
	var inputTokens, outputTokens int

	cmd := &cobra.Command{
		Use:   "pricing [model]",
		Short: "List model prices or estimate the cost of a token count",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				listPricing(cmd.OutOrStdout())
				return nil
			}
			return estimateCost(cmd.OutOrStdout(), args[0], inputTokens, outputTokens)
		},
	}
	cmd.Flags().IntVar(&inputTokens, "input", 0, "input tokens")
	cmd.Flags().IntVar(&outputTokens, "output", 0, "output tokens")
	return cmd
}

func listPricing(out io.Writer) {
	fmt.Fprintf(out, "%-32s %12s %12s\n", "MODEL", "INPUT/MTOK", "OUTPUT/MTOK")
	for _, m := range pricing.KnownModels() {
		p := pricing.GetModelPricing(m)
		fmt.Fprintf(out, "%-32s %12.2f %12.2f\n", m, p.Input, p.Output)
	}
}

func estimateCost(out io.Writer, model string, in, outTokens int) error {
	if in < 0 || outTokens < 0 {
		return fmt.Errorf("token counts must not be negative")
	}
	if !pricing.IsKnown(model) {
		fmt.Fprintf(out, "note: %s is not in the price table; using default rates\n", model)
	}
	fmt.Fprintf(out, "%s: %d in / %d out = %s\n", model, in, outTokens, pricing.FormatCost(pricing.CalculateCost(model, in, outTokens)))
	return nil
}
