package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ternarybob/ecocalc/internal/app"
)

func newImportCmd() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace the rate matrix from seed files",
		Long: `Loads gbis_partial, eco4_partial and full_project seed files (csv, toml, yaml
or yml) from a directory. Every file is parsed before any table is replaced;
tables without a seed file keep their current rows.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(dir)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "d", "", "Seed directory (defaults to matrix.seed_dir)")
	return cmd
}

func runImport(dir string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	if dir == "" {
		dir = config.Matrix.SeedDir
	}
	config.Matrix.ImportOnStartup = false
	initLogging(true)

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	ctx, cancel := cmdContext()
	defer cancel()

	summary, err := application.ImportMatrix(ctx, dir)
	if err != nil {
		return err
	}

	for _, t := range summary.Tables {
		if t.Skipped {
			fmt.Printf("%-14s skipped (no seed file)\n", t.Table)
			continue
		}
		fmt.Printf("%-14s %5d rows  %s\n", t.Table, t.Rows, t.File)
	}
	return nil
}

// cmdContext is cancelled on Ctrl+C so long imports stop cleanly.
func cmdContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
