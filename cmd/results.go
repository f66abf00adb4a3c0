package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/FrankSommer-64/issai-sub000/internal/results"
)

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List locally recorded plan runs",
	Args:  cobra.NoArgs,
	RunE:  runResults,
}

func init() {
	resultsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(resultsCmd)
}

func runResults(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	store, err := results.Open(ctx, cfg.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := store.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no recorded runs")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tPLAN\tSTARTED\tSUMMARY\tUPLOADED")
	for _, r := range runs {
		uploaded := ""
		if r.Uploaded {
			uploaded = "yes"
		}
		fmt.Fprintf(w, "%d\t%s (%d)\t%s\t%s\t%s\n",
			r.RunID, r.PlanName, r.PlanID, r.StartedAt.Format(time.DateTime), r.Summary, uploaded)
	}
	return w.Flush()
}
