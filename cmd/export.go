package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/FrankSommer-64/issai-sub000/internal/attach"
	"github.com/FrankSommer-64/issai-sub000/internal/exporter"
)

var exportCmd = &cobra.Command{
	Use:   "export {product|plan|case} <id>",
	Short: "Export an entity and its master data to a TOML document",
	Args:  cobra.ExactArgs(2),
	RunE:  runExport,
}

func init() {
	exportCmd.Flags().Bool("runs", false, "include test runs and executions")
	exportCmd.Flags().Bool("descendants", false, "include descendant plans (plan export)")
	exportCmd.Flags().Bool("environments", false, "include environments")
	exportCmd.Flags().Bool("attachments", false, "download attachment files")
	exportCmd.Flags().Int64("version", 0, "pin product export to one version id")
	exportCmd.Flags().Int64("build", 0, "pin product export to one build id")
	exportCmd.Flags().StringP("output", "o", "", "output directory (default working path)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	session, err := newSession(cfg)
	if err != nil {
		return err
	}
	id, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s id %q", args[0], args[1])
	}

	opts := exporter.Options{OutputDir: cfg.WorkingPath}
	opts.IncludeRuns, _ = cmd.Flags().GetBool("runs")
	opts.IncludeDescendants, _ = cmd.Flags().GetBool("descendants")
	opts.IncludeEnvironments, _ = cmd.Flags().GetBool("environments")
	opts.IncludeAttachments, _ = cmd.Flags().GetBool("attachments")
	opts.VersionID, _ = cmd.Flags().GetInt64("version")
	opts.BuildID, _ = cmd.Flags().GetInt64("build")
	if out, _ := cmd.Flags().GetString("output"); out != "" {
		opts.OutputDir = out
	}

	tel := newTelemetry(cfg)
	defer tel.Close()

	exp := exporter.New(session, opts, &cfg.Download)
	exp.Telemetry = tel
	exp.Downloader = attach.NewDownloader(cfg.Token)

	ctx := cmd.Context()
	var path string
	switch args[0] {
	case "product":
		path, err = exp.ExportProduct(ctx, id)
	case "plan":
		path, err = exp.ExportPlan(ctx, id)
	case "case":
		path, err = exp.ExportCase(ctx, id)
	default:
		return fmt.Errorf("unknown export kind %q (product, plan, case)", args[0])
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
