package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/portfolio/internal/prediction"
)

var predictOverdueOnly bool

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Estimate completion for in-progress projects",
	Long:  "Predict completion dates for every in-progress project, most urgent first.",
	Args:  cobra.NoArgs,
	RunE:  runPredict,
}

func init() {
	predictCmd.Flags().BoolVar(&predictOverdueOnly, "overdue", false,
		"Only show projects past their deadline")
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.cache.Close()

	if err := a.load(ctx); err != nil {
		return err
	}

	preds := prediction.PredictAll(a.cache.Snapshot(), time.Now())
	if predictOverdueOnly {
		preds = prediction.Overdue(preds)
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), map[string]any{
			"predictions": preds,
			"total":       len(preds),
		})
	}

	if len(preds) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No in-progress projects.")
		return nil
	}

	w := newTabWriter(cmd.OutOrStdout())
	fmt.Fprintln(w, "NAME\tESTIMATED\tREMAINING\tCONFIDENCE")
	for _, p := range preds {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			p.ProjectName,
			p.EstimatedCompletionDate,
			formatDays(p.DaysRemaining),
			p.Confidence,
		)
	}
	w.Flush()

	return nil
}
