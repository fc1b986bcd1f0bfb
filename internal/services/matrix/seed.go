package matrix

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
	"github.com/ternarybob/ecocalc/internal/models"
	"gopkg.in/yaml.v3"
)

// seedExtensions are tried in order for each table
var seedExtensions = []string{".csv", ".toml", ".yaml", ".yml"}

// seedRow is one row of any matrix seed file. Numeric columns are decoded
// loosely so TOML and YAML files may use bare numbers or quoted strings.
type seedRow struct {
	MeasureCategory        string `toml:"measure_category" yaml:"measure_category"`
	MeasureType            string `toml:"measure_type" yaml:"measure_type"`
	PreHeatSource          string `toml:"pre_heat_source" yaml:"pre_heat_source"`
	PostHeatSource         string `toml:"post_heat_source" yaml:"post_heat_source"`
	FloorAreaBand          string `toml:"floor_area_band" yaml:"floor_area_band"`
	StartingBand           string `toml:"starting_band" yaml:"starting_band"`
	FinishingBand          string `toml:"finishing_band" yaml:"finishing_band"`
	AverageTreatableFactor any    `toml:"average_treatable_factor" yaml:"average_treatable_factor"`
	CostSavings            any    `toml:"cost_savings" yaml:"cost_savings"`
}

// seedFile is the TOML/YAML document shape:
//
//	[[rows]]
//	measure_type = "Loft"
//	cost_savings = 0.5
type seedFile struct {
	Rows []seedRow `toml:"rows" yaml:"rows"`
}

// findSeedFile returns the first seed file present for a table, or "" if none
func findSeedFile(dir string, table models.MatrixTable) string {
	for _, ext := range seedExtensions {
		path := filepath.Join(dir, string(table)+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}

// readSeedFile decodes a seed file by extension
func readSeedFile(path string) ([]seedRow, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return parseCSV(content)
	case ".toml":
		var doc seedFile
		if err := toml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return doc.Rows, nil
	case ".yaml", ".yml":
		var doc seedFile
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return doc.Rows, nil
	default:
		return nil, fmt.Errorf("unsupported seed file type: %s", path)
	}
}

// parseCSV reads a header row of snake_case column names followed by data rows.
// Unknown columns are ignored.
func parseCSV(content []byte) ([]seedRow, error) {
	reader := csv.NewReader(strings.NewReader(string(content)))
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv has no header row")
	}

	columns := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		columns[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if _, ok := columns["cost_savings"]; !ok {
		return nil, fmt.Errorf("csv header is missing cost_savings")
	}

	cell := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	rows := make([]seedRow, 0, len(records)-1)
	for _, record := range records[1:] {
		if isBlankRecord(record) {
			continue
		}
		rows = append(rows, seedRow{
			MeasureCategory:        cell(record, "measure_category"),
			MeasureType:            cell(record, "measure_type"),
			PreHeatSource:          cell(record, "pre_heat_source"),
			PostHeatSource:         cell(record, "post_heat_source"),
			FloorAreaBand:          cell(record, "floor_area_band"),
			StartingBand:           cell(record, "starting_band"),
			FinishingBand:          cell(record, "finishing_band"),
			AverageTreatableFactor: cell(record, "average_treatable_factor"),
			CostSavings:            cell(record, "cost_savings"),
		})
	}
	return rows, nil
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// parseDecimal accepts the scalar types produced by the csv, toml and yaml decoders
func parseDecimal(v any) (decimal.Decimal, bool, error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, false, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, false, nil
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil, err
	case float64:
		return decimal.NewFromFloat(t), true, nil
	case int64:
		return decimal.NewFromInt(t), true, nil
	case int:
		return decimal.NewFromInt(int64(t)), true, nil
	default:
		return decimal.Zero, false, fmt.Errorf("unsupported number %v (%T)", v, v)
	}
}

// toPartialRows converts seed rows into table rows, assigning Seq from file order
func toPartialRows(table models.MatrixTable, seeds []seedRow) ([]models.PartialScoreRow, error) {
	rows := make([]models.PartialScoreRow, 0, len(seeds))
	for i, s := range seeds {
		seq := i + 1
		line := rowLabel(table, seq)

		if strings.TrimSpace(s.MeasureType) == "" {
			return nil, fmt.Errorf("%s: measure_type is required", line)
		}
		if table == models.TableGBISPartial && strings.TrimSpace(s.PostHeatSource) != "" {
			return nil, fmt.Errorf("%s: post_heat_source is not a %s column", line, table)
		}

		cost, err := parseCostSavings(s.CostSavings, line)
		if err != nil {
			return nil, err
		}

		row := models.PartialScoreRow{
			ID:              models.MatrixRowID(table, seq),
			Table:           table,
			Seq:             seq,
			MeasureCategory: strings.TrimSpace(s.MeasureCategory),
			MeasureType:     strings.TrimSpace(s.MeasureType),
			PreHeatSource:   strings.TrimSpace(s.PreHeatSource),
			PostHeatSource:  strings.TrimSpace(s.PostHeatSource),
			FloorAreaBand:   models.NormalizeFloorAreaBand(s.FloorAreaBand),
			StartingBand:    strings.TrimSpace(s.StartingBand),
			CostSavings:     cost,
		}

		factor, ok, err := parseDecimal(s.AverageTreatableFactor)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid average_treatable_factor: %w", line, err)
		}
		if ok {
			row.AverageTreatableFactor = &factor
		}

		rows = append(rows, row)
	}
	return rows, nil
}

func toFullRows(seeds []seedRow) ([]models.FullProjectRow, error) {
	rows := make([]models.FullProjectRow, 0, len(seeds))
	for i, s := range seeds {
		seq := i + 1
		line := rowLabel(models.TableFullProject, seq)

		if strings.TrimSpace(s.StartingBand) == "" || strings.TrimSpace(s.FinishingBand) == "" {
			return nil, fmt.Errorf("%s: starting_band and finishing_band are required", line)
		}

		cost, err := parseCostSavings(s.CostSavings, line)
		if err != nil {
			return nil, err
		}

		rows = append(rows, models.FullProjectRow{
			ID:            models.MatrixRowID(models.TableFullProject, seq),
			Seq:           seq,
			FloorAreaBand: models.NormalizeFloorAreaBand(s.FloorAreaBand),
			StartingBand:  strings.TrimSpace(s.StartingBand),
			FinishingBand: strings.TrimSpace(s.FinishingBand),
			CostSavings:   cost,
		})
	}
	return rows, nil
}

func parseCostSavings(v any, line string) (decimal.Decimal, error) {
	cost, ok, err := parseDecimal(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: invalid cost_savings: %w", line, err)
	}
	if !ok {
		return decimal.Zero, fmt.Errorf("%s: cost_savings is required", line)
	}
	if cost.IsNegative() {
		return decimal.Zero, fmt.Errorf("%s: cost_savings must not be negative (%s)", line, cost)
	}
	return cost, nil
}

func rowLabel(table models.MatrixTable, seq int) string {
	return string(table) + " row " + strconv.Itoa(seq)
}
