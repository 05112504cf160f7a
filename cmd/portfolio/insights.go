package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Summarize the portfolio and suggest next steps",
	Long: `Produce a status message and up to three recommendations. A configured
text-generation provider is used when available; otherwise the built-in
analyzer answers.`,
	Args: cobra.NoArgs,
	RunE: runInsights,
}

func runInsights(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	if err := a.load(ctx); err != nil {
		return err
	}

	engine := a.insightEngine()
	ins := engine.Summarize(ctx, a.cache.Snapshot())

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), ins)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ins.Message)
	if len(ins.Recommendations) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Recommendations:")
		for i, r := range ins.Recommendations {
			fmt.Fprintf(out, "  %d. %s\n", i+1, r)
		}
	}
	fmt.Fprintf(out, "\nSource: %s (%s)\n", ins.Source, engine.ProviderName())
	return nil
}
