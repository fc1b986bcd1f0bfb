package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/ecocalc/internal/models"
)

// ErrCalculationNotFound is returned when a calculation record does not exist
var ErrCalculationNotFound = errors.New("calculation not found")

// CalculationStorage records calculations against leads.
// Save must persist the parent record and every measure line as one unit.
type CalculationStorage interface {
	Save(ctx context.Context, record *models.CalculationRecord) error
	Get(ctx context.Context, id string) (*models.CalculationRecord, error)
	ListByLead(ctx context.Context, leadID string) ([]*models.CalculationRecord, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
