package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/ecocalc/internal/app"
	"github.com/ternarybob/ecocalc/internal/models"
	"github.com/ternarybob/ecocalc/internal/services/calculations"
	"github.com/ternarybob/ecocalc/internal/services/report"
)

func newCalculateCmd() *cobra.Command {
	var (
		file       string
		leadID     string
		reportType string
		outPath    string
	)

	cmd := &cobra.Command{
		Use:   "calculate",
		Short: "Run one calculation from a JSON request",
		Long: `Reads a calculation request (the body accepted by POST /api/calculate) and
prints the result as JSON. With --lead the result is recorded against the lead,
and --report renders the recorded calculation instead of printing JSON.

Examples:
    ecocalc calculate --file request.json
    cat request.json | ecocalc calculate --file -
    ecocalc calculate -f request.json --lead L-1001 --report pdf --out L-1001.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCalculate(file, leadID, reportType, outPath)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Request JSON file, - for stdin")
	cmd.Flags().StringVar(&leadID, "lead", "", "Record the result against this lead")
	cmd.Flags().StringVar(&reportType, "report", "", "Render the recorded calculation: md, html or pdf (requires --lead)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write output to this file instead of stdout")

	return cmd
}

func runCalculate(file, leadID, reportType, outPath string) error {
	if reportType != "" && leadID == "" {
		return errors.New("--report needs --lead so the calculation is recorded")
	}
	format, err := report.ParseFormat(reportType)
	if err != nil {
		return err
	}

	req, err := readRequest(file)
	if err != nil {
		return err
	}

	if err := loadConfig(); err != nil {
		return err
	}
	initLogging(true)

	application, err := app.New(config, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer application.Close()

	ctx, cancel := cmdContext()
	defer cancel()

	var output []byte

	if leadID == "" {
		result, err := application.CalculationService.Calculate(ctx, req)
		if err != nil {
			return err
		}
		if output, err = json.MarshalIndent(result, "", "  "); err != nil {
			return err
		}
	} else {
		result, record, err := application.CalculationService.CalculateAndSave(ctx, leadID, req)
		if err != nil && !errors.Is(err, calculations.ErrSaveFailed) {
			return err
		}
		if err != nil {
			logger.Error().Err(err).Str("lead_id", leadID).Msg("Calculation was not recorded")
		}

		switch {
		case reportType != "" && record != nil:
			if output, err = application.ReportService.Render(record, format); err != nil {
				return err
			}
		case reportType != "":
			return fmt.Errorf("calculation was not recorded, no report to render (success=%t)", result.Success)
		default:
			if output, err = json.MarshalIndent(result, "", "  "); err != nil {
				return err
			}
		}
		if record != nil {
			fmt.Fprintf(os.Stderr, "recorded calculation %s\n", record.ID)
		}
	}

	return writeOutput(outPath, output)
}

func readRequest(file string) (*models.CalculationRequest, error) {
	var r io.Reader = os.Stdin
	if file != "-" && file != "" {
		f, err := os.Open(file)
		if err != nil {
			return nil, fmt.Errorf("failed to open request: %w", err)
		}
		defer f.Close()
		r = f
	}

	var req models.CalculationRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid request JSON: %w", err)
	}
	return &req, nil
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(append(data, '\n'))
		return err
	}
	return os.WriteFile(path, data, 0644)
}
