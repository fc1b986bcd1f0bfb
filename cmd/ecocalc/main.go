package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/common"
)

var (
	// Persistent flags
	configFiles []string // later files override earlier ones
	serverPort  int
	serverHost  string

	// Global state, resolved in PersistentPreRunE
	config *common.Config
	logger arbor.ILogger
)

func main() {
	defer common.RecoverWithCrashFile()

	rootCmd := &cobra.Command{
		Use:   "ecocalc",
		Short: "ECO4 / GBIS scoring and funding calculator",
		Long: `ecocalc scores retrofit measures against the ECO4 and GBIS rate matrices
and prices them at the configured rate per point.

Run without a subcommand to start the HTTP API:

    ecocalc -c deployments/local/ecocalc.toml`,
		SilenceUsage: true,
		RunE:         runServe,
	}

	rootCmd.PersistentFlags().StringArrayVarP(&configFiles, "config", "c", nil, "Configuration file path (repeatable, later files override earlier ones)")
	rootCmd.PersistentFlags().IntVarP(&serverPort, "port", "p", 0, "Server port (overrides config)")
	rootCmd.PersistentFlags().StringVar(&serverHost, "host", "", "Server host (overrides config)")

	rootCmd.AddCommand(
		newServeCmd(),
		newCalculateCmd(),
		newImportCmd(),
		newVersionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves configuration in order: defaults, files, env, flags.
// When no -c is given, ecocalc.toml in the working directory is used, then
// deployments/local/ecocalc.toml.
func loadConfig() error {
	if len(configFiles) == 0 {
		if _, err := os.Stat("ecocalc.toml"); err == nil {
			configFiles = append(configFiles, "ecocalc.toml")
		} else if _, err := os.Stat("deployments/local/ecocalc.toml"); err == nil {
			configFiles = append(configFiles, "deployments/local/ecocalc.toml")
		}
	}

	var err error
	config, err = common.LoadFromFiles(configFiles...)
	if err != nil {
		return fmt.Errorf("failed to load configuration %v: %w", configFiles, err)
	}

	common.ApplyFlagOverrides(config, serverPort, serverHost)
	return nil
}

// initLogging starts the configured logger. Commands that print results to
// stdout pass quiet so log lines only go to the log file.
func initLogging(quiet bool) {
	if quiet {
		config.Logging.Output = []string{"file"}
	}
	logger = common.InitLogger(config)
	common.InstallCrashHandler(common.LogDirectory())

	logger.Debug().
		Strs("config_files", configFiles).
		Str("matrix_backend", config.Matrix.Backend).
		Str("badger_path", config.Storage.Badger.Path).
		Str("sqlite_path", config.Storage.SQLite.Path).
		Str("log_level", config.Logging.Level).
		Strs("log_output", config.Logging.Output).
		Msg("Resolved configuration")
}
