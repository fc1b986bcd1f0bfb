package models

import "github.com/shopspring/decimal"

// BandInfo describes one SAP letter band and its Low/High sub-bands
type BandInfo struct {
	Code     string `json:"code"`
	Min      int    `json:"min"`
	Max      int    `json:"max"`
	Midpoint int    `json:"midpoint"`
	Low      string `json:"low"`
	High     string `json:"high"`
}

// RateDefaults are the current stored rate parameters
type RateDefaults struct {
	RatePerUnit          decimal.Decimal `json:"rate_per_unit"`
	InnovationMultiplier decimal.Decimal `json:"innovation_multiplier"`
}

// Metadata is the reference data needed to build a calculation request
type Metadata struct {
	Schemes          []Scheme                       `json:"schemes"`
	CalculationTypes []CalculationType              `json:"calculation_types"`
	Bands            []BandInfo                     `json:"bands"`
	FloorAreaBands   []string                       `json:"floor_area_bands"`
	HeatSources      []string                       `json:"heat_sources"`
	MeasureTypes     map[Scheme]map[string][]string `json:"measure_types"`
	Defaults         RateDefaults                   `json:"defaults"`
}
