package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FrankSommer-64/issai-sub000/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [directory]",
	Short: "Validate entity documents as they change",
	Long: "Watch monitors a directory and re-validates every entity document on\n" +
		"save, reporting the full issue list per document.",
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	dir := cfg.WorkingPath
	if len(args) == 1 {
		dir = args[0]
	}

	w, err := watch.New(dir)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	defer w.Stop()
	fmt.Fprintf(cmd.OutOrStdout(), "watching %s\n", dir)

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-w.Changes:
			if !ok {
				return nil
			}
			if change.Kind == watch.ChangeRemoved {
				fmt.Fprintf(cmd.OutOrStdout(), "%s removed\n", change.File)
				continue
			}
			if change.Err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", change.File, change.Err)
				continue
			}
			if ws := change.Report.Warnings(); len(ws) > 0 {
				for _, w := range ws {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: warning: %s\n", change.File, w)
				}
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", change.File)
		}
	}
}
