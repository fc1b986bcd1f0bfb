package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scheme identifies the energy-efficiency programme a calculation is scored under
type Scheme string

const (
	SchemeGBIS Scheme = "GBIS"
	SchemeECO4 Scheme = "ECO4"
)

// SchemeFull is the scheme label reported by full-project calculations
const SchemeFull = "Full"

// MatrixTable names one of the three reference tables held by the rate matrix store
type MatrixTable string

const (
	TableECO4Partial MatrixTable = "eco4_partial" // Partial-Scheme-A, carries post heat source
	TableGBISPartial MatrixTable = "gbis_partial" // Partial-Scheme-B, no post heat source
	TableFullProject MatrixTable = "full_project"
)

// AllMatrixTables lists the tables in import order
var AllMatrixTables = []MatrixTable{TableECO4Partial, TableGBISPartial, TableFullProject}

// PartialTableFor returns the partial-project table used by a scheme
func PartialTableFor(scheme Scheme) (MatrixTable, error) {
	switch scheme {
	case SchemeECO4:
		return TableECO4Partial, nil
	case SchemeGBIS:
		return TableGBISPartial, nil
	default:
		return "", fmt.Errorf("unknown scheme: %s", scheme)
	}
}

// Matrix field names used in lookups. They match the PartialScoreRow field names
// so storage backends can query on them directly.
const (
	FieldMeasureType    = "MeasureType"
	FieldFloorAreaBand  = "FloorAreaBand"
	FieldStartingBand   = "StartingBand"
	FieldPreHeatSource  = "PreHeatSource"
	FieldPostHeatSource = "PostHeatSource"
	FieldFinishingBand  = "FinishingBand"
)

// FieldMatch is a single exact-match condition on a matrix row field
type FieldMatch struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// PartialScoreRow is a row of a partial-project score table.
// Rows of the GBIS table never carry PostHeatSource.
type PartialScoreRow struct {
	ID                     string           `json:"id"`
	Table                  MatrixTable      `json:"table"`
	Seq                    int              `json:"seq"`
	MeasureCategory        string           `json:"measure_category"`
	MeasureType            string           `json:"measure_type"`
	PreHeatSource          string           `json:"pre_heat_source,omitempty"`
	PostHeatSource         string           `json:"post_heat_source,omitempty"`
	FloorAreaBand          string           `json:"floor_area_band"`
	StartingBand           string           `json:"starting_band"`
	AverageTreatableFactor *decimal.Decimal `json:"average_treatable_factor,omitempty"`
	CostSavings            decimal.Decimal  `json:"cost_savings"`
}

// FieldValue returns the value of a lookup field, or false for unknown fields
func (r *PartialScoreRow) FieldValue(field string) (string, bool) {
	switch field {
	case FieldMeasureType:
		return r.MeasureType, true
	case FieldFloorAreaBand:
		return r.FloorAreaBand, true
	case FieldStartingBand:
		return r.StartingBand, true
	case FieldPreHeatSource:
		return r.PreHeatSource, true
	case FieldPostHeatSource:
		return r.PostHeatSource, true
	default:
		return "", false
	}
}

// Matches reports whether every condition holds with exact, case-sensitive equality
func (r *PartialScoreRow) Matches(conditions []FieldMatch) bool {
	for _, c := range conditions {
		v, ok := r.FieldValue(c.Field)
		if !ok || v != c.Value {
			return false
		}
	}
	return true
}

// FullProjectRow is a row of the full-project score table
type FullProjectRow struct {
	ID            string          `json:"id"`
	Seq           int             `json:"seq"`
	FloorAreaBand string          `json:"floor_area_band"`
	StartingBand  string          `json:"starting_band"`
	FinishingBand string          `json:"finishing_band"`
	CostSavings   decimal.Decimal `json:"cost_savings"`
}

// MatrixRowID builds the stable row reference for a table position
func MatrixRowID(table MatrixTable, seq int) string {
	return fmt.Sprintf("%s:%06d", table, seq)
}

// NormalizeFloorAreaBand replaces the Unicode en-dash with a plain hyphen.
// Source spreadsheets use either form for the same band.
func NormalizeFloorAreaBand(band string) string {
	return strings.TrimSpace(strings.ReplaceAll(band, "–", "-"))
}

// FloorAreaBands are the four floor-area bands used across all tables
var FloorAreaBands = []string{"0-72", "73-97", "98-199", "200+"}

// MatrixStats holds row counts per table
type MatrixStats struct {
	Tables map[MatrixTable]int `json:"tables"`
	Total  int                 `json:"total"`
}
