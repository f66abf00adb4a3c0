package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/FrankSommer-64/issai-sub000/internal/config"
	"github.com/FrankSommer-64/issai-sub000/internal/document"
	"github.com/FrankSommer-64/issai-sub000/internal/importer"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import an entity document into the server",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().Bool("dry-run", false, "match only, suppress all server writes")
	importCmd.Flags().Bool("auto-create", false, "create missing master data")
	importCmd.Flags().Bool("environments", false, "import environments")
	importCmd.Flags().Bool("attachments", false, "upload attachment files")
	importCmd.Flags().String("user-policy", "", "user mapping policy: never, always, missing")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	session, err := newSession(cfg)
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

	policy := config.UserPolicy(cfg.UserPolicy)
	if flagPolicy, _ := cmd.Flags().GetString("user-policy"); flagPolicy != "" {
		policy, err = config.ParseUserPolicy(flagPolicy)
		if err != nil {
			return err
		}
	}

	opts := importer.Options{
		UserPolicy:     policy,
		BaseDir:        filepath.Dir(args[0]),
		UploadPatterns: &cfg.Upload,
		StatusMap:      cfg.MapStatus,
	}
	opts.DryRun, _ = cmd.Flags().GetBool("dry-run")
	if cfg.DryRun {
		opts.DryRun = true
	}
	opts.AutoCreate, _ = cmd.Flags().GetBool("auto-create")
	opts.WithEnvironments, _ = cmd.Flags().GetBool("environments")
	opts.WithAttachments, _ = cmd.Flags().GetBool("attachments")

	tel := newTelemetry(cfg)
	defer tel.Close()

	imp := importer.New(session, c, opts)
	imp.Telemetry = tel

	outcome, err := imp.Run(cmd.Context())
	if outcome != nil {
		for _, w := range outcome.Warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", w)
		}
		fmt.Fprintln(cmd.OutOrStdout(), outcome.Summary())
	}
	if err != nil {
		return err
	}
	return outcome.Err()
}
