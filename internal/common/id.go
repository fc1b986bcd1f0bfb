package common

import (
	"github.com/google/uuid"
)

// NewCalculationID generates a unique calculation record ID
// Format: calc_<uuid>
func NewCalculationID() string {
	return "calc_" + uuid.New().String()
}
