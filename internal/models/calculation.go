package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Monetary amounts serialise as JSON numbers rather than quoted strings
	decimal.MarshalJSONWithoutQuotes = true
}

// CalculationType selects partial (per-measure) or full-project scoring
type CalculationType string

const (
	CalculationPartial CalculationType = "partial"
	CalculationFull    CalculationType = "full"
)

// NoMatchMessage is the per-measure error reported when no matrix row matches
const NoMatchMessage = "No matching matrix row found"

// NoFullMatchMessage is the message of a full-project request without a matching row
const NoFullMatchMessage = "No matching full project matrix row found"

// MeasureRequest describes one retrofit measure of a partial-project calculation
type MeasureRequest struct {
	Type              string   `json:"type" validate:"required"`
	Variant           string   `json:"variant,omitempty"`
	PostHeatSource    string   `json:"post_heat_source,omitempty"`
	PercentageTreated *float64 `json:"percentage_treated,omitempty" validate:"omitempty,gte=0,lte=100"`
	IsInnovation      bool     `json:"is_innovation,omitempty"`
}

// CalculationRequest is the body of a calculate call
type CalculationRequest struct {
	Scheme               Scheme           `json:"scheme" validate:"required,oneof=GBIS ECO4"`
	CalculationType      CalculationType  `json:"calculation_type,omitempty" validate:"omitempty,oneof=partial full"`
	StartingSAPScore     *int             `json:"starting_sap_score,omitempty" validate:"omitempty,min=1,max=100"`
	StartingSAPBand      string           `json:"starting_sap_band" validate:"required"`
	FinishingSAPScore    *int             `json:"finishing_sap_score,omitempty" validate:"omitempty,min=1,max=100"`
	FinishingSAPBand     string           `json:"finishing_sap_band,omitempty" validate:"required_if=CalculationType full"`
	FloorAreaBand        string           `json:"floor_area_band" validate:"required"`
	PreMainHeatSource    string           `json:"pre_main_heat_source,omitempty"`
	PostMainHeatSource   string           `json:"post_main_heat_source,omitempty"`
	PPSEcoRate           *float64         `json:"pps_eco_rate,omitempty" validate:"omitempty,gte=0"`
	InnovationMultiplier *float64         `json:"innovation_multiplier,omitempty" validate:"omitempty,gte=1"`
	Measures             []MeasureRequest `json:"measures,omitempty" validate:"omitempty,dive"`

	// LeadID, when set, records the result against the lead
	LeadID string `json:"lead_id,omitempty"`
}

// Mode returns the calculation type, defaulting to partial
func (r *CalculationRequest) Mode() CalculationType {
	if r.CalculationType == "" {
		return CalculationPartial
	}
	return r.CalculationType
}

// MeasureResult is the outcome of scoring one measure.
// Either the monetary fields are populated from a matched row, or Error and
// Criteria describe the lookup that found nothing.
type MeasureResult struct {
	MeasureType       string          `json:"measure_type"`
	MeasureVariant    string          `json:"measure_variant,omitempty"`
	MeasureCategory   string          `json:"measure_category,omitempty"`
	PostHeatSource    string          `json:"post_heat_source,omitempty"`
	PercentageTreated decimal.Decimal `json:"percentage_treated"`
	IsInnovation      bool            `json:"is_innovation"`
	ABSValue          decimal.Decimal `json:"abs_value"`
	PPSPoints         decimal.Decimal `json:"pps_points"`
	ECOValue          decimal.Decimal `json:"eco_value"`
	CostSavingsBase   decimal.Decimal `json:"cost_savings_base"`
	MatchedRow        string          `json:"matched_row,omitempty"`
	Error             string          `json:"error,omitempty"`
	Criteria          []FieldMatch    `json:"criteria,omitempty"`
}

// Matched reports whether the measure was scored from a matrix row
func (m *MeasureResult) Matched() bool {
	return m.Error == ""
}

// CalculationSummary carries request-level figures. Partial results fill the
// totals; full-project results fill CostSavings and ECOValue.
type CalculationSummary struct {
	Scheme               string           `json:"scheme"`
	CalculationType      CalculationType  `json:"calculation_type"`
	StartingBand         string           `json:"starting_band"`
	FinishingBand        string           `json:"finishing_band,omitempty"`
	FloorAreaBand        string           `json:"floor_area_band"`
	PreMainHeatSource    string           `json:"pre_main_heat_source,omitempty"`
	TotalABS             *decimal.Decimal `json:"total_abs,omitempty"`
	TotalECOValue        *decimal.Decimal `json:"total_eco_value,omitempty"`
	CostSavings          *decimal.Decimal `json:"cost_savings,omitempty"`
	ECOValue             *decimal.Decimal `json:"eco_value,omitempty"`
	RateUsed             decimal.Decimal  `json:"rate_used"`
	InnovationMultiplier *decimal.Decimal `json:"innovation_multiplier,omitempty"`
	MatchedRow           string           `json:"matched_row,omitempty"`
}

// CalculationResult is the engine output for one request
type CalculationResult struct {
	Success  bool               `json:"success"`
	Message  string             `json:"message,omitempty"`
	Summary  CalculationSummary `json:"summary"`
	Measures []MeasureResult    `json:"measures,omitempty"`
	Criteria []FieldMatch       `json:"criteria,omitempty"`
}

// CalculationRecord is a persisted calculation attached to a lead
type CalculationRecord struct {
	ID        string             `json:"id"`
	LeadID    string             `json:"lead_id"`
	Success   bool               `json:"success"`
	Summary   CalculationSummary `json:"summary"`
	Measures  []MeasureResult    `json:"measures"`
	CreatedAt time.Time          `json:"created_at"`
}

// NewCalculationRecord copies a result into a record ready for saving
func NewCalculationRecord(id, leadID string, result *CalculationResult, now time.Time) *CalculationRecord {
	measures := make([]MeasureResult, len(result.Measures))
	copy(measures, result.Measures)
	return &CalculationRecord{
		ID:        id,
		LeadID:    leadID,
		Success:   result.Success,
		Summary:   result.Summary,
		Measures:  measures,
		CreatedAt: now,
	}
}
