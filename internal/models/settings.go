package models

import "time"

// Rate parameter setting keys
const (
	SettingRatePerUnit          = "eco_rate_per_unit"
	SettingInnovationMultiplier = "innovation_multiplier"
)

// Setting is a rate parameter as exposed by the settings API
type Setting struct {
	Key         string     `json:"key"`
	Value       string     `json:"value"`
	Default     string     `json:"default"`
	Description string     `json:"description,omitempty"`
	Overridden  bool       `json:"overridden"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}
