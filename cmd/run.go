package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/FrankSommer-64/issai-sub000/internal/document"
	"github.com/FrankSommer-64/issai-sub000/internal/entity"
	"github.com/FrankSommer-64/issai-sub000/internal/results"
	"github.com/FrankSommer-64/issai-sub000/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <planfile>",
	Short: "Run a test plan from an exported document",
	Long: "Run executes every case of an exported test plan against local script\n" +
		"drivers, records the outcomes in the local result store, and writes a\n" +
		"result document that can later be imported into the server.",
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().String("scripts", "", "directory holding case scripts")
	runCmd.Flags().Duration("timeout", 0, "per-case execution timeout")
	runCmd.Flags().StringP("output", "o", "", "output directory (default working path)")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	c, report, err := document.Load(args[0])
	if err != nil {
		return err
	}
	for _, w := range report.Warnings() {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
	}
	if c.Type != entity.TypePlan && c.Type != entity.TypeProduct {
		return fmt.Errorf("%s is a %s document; run needs a test plan or product export", args[0], c.Type)
	}

	outputDir := cfg.WorkingPath
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		outputDir = out
	}
	opts := runner.Options{OutputDir: filepath.Join(outputDir, "output")}
	opts.ScriptDir, _ = cmd.Flags().GetString("scripts")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	opts.Timeout = timeout

	ctx := cmd.Context()
	store, err := results.Open(ctx, cfg.ResultsDB)
	if err != nil {
		return err
	}
	defer store.Close()

	tel := newTelemetry(cfg)
	defer tel.Close()

	r := runner.New(store, opts)
	r.Telemetry = tel

	started := time.Now()
	result, err := r.RunPlan(ctx, c)
	if err != nil {
		return err
	}
	path := filepath.Join(outputDir, document.FileName(result))
	if err := document.Save(path, result); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", path, time.Since(started).Round(time.Millisecond))
	return nil
}
