// Package cmd implements the issai command-line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/FrankSommer-64/issai-sub000/internal/config"
	"github.com/FrankSommer-64/issai-sub000/internal/logging"
	"github.com/FrankSommer-64/issai-sub000/internal/tcms"
	"github.com/FrankSommer-64/issai-sub000/internal/telemetry"
)

var rootCmd = &cobra.Command{
	Use:   "issai",
	Short: "Export, import and run test specifications against a TCMS server",
	Long: "Issai synchronizes test specifications with a test-case-management server:\n" +
		"it exports products, test plans and test cases to portable TOML documents,\n" +
		"imports them back, and runs test plans online or from exported documents.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default .issai.toml)")
	rootCmd.PersistentFlags().String("server", "", "server URL")
	rootCmd.PersistentFlags().String("token", "", "server API token")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output")
	_ = viper.BindPFlag("server_url", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}

func initConfig() {
	if cfgFile, _ := rootCmd.Flags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".issai")
		viper.SetConfigType("toml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
	}

	viper.SetEnvPrefix("ISSAI")
	viper.AutomaticEnv()

	// It's fine if no config file is found; we use defaults.
	_ = viper.ReadInConfig()
}

// loadConfig resolves configuration and initializes logging.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.LogLevel
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	logging.Init(level, cfg.LogFormat)
	return cfg, nil
}

// newSession connects to the configured server.
func newSession(cfg *config.Config) (tcms.Session, error) {
	if cfg.ServerURL == "" {
		return nil, fmt.Errorf("no server configured; set server_url or pass --server")
	}
	return tcms.NewRPCSession(cfg.ServerURL, cfg.Token), nil
}

// newTelemetry opens the sync event stream in the working path; a failure
// to open it disables telemetry rather than the operation.
func newTelemetry(cfg *config.Config) *telemetry.Emitter {
	tel, err := telemetry.NewEmitter(cfg.WorkingPath + "/issai-events.jsonl")
	if err != nil {
		return nil
	}
	return tel
}
