package handlers

import (
	"context"

	"github.com/ternarybob/ecocalc/internal/models"
	"github.com/ternarybob/ecocalc/internal/services/report"
)

// CalculationService is the calculation surface used by CalculationHandler
type CalculationService interface {
	Calculate(ctx context.Context, req *models.CalculationRequest) (*models.CalculationResult, error)
	CalculateAndSave(ctx context.Context, leadID string, req *models.CalculationRequest) (*models.CalculationResult, *models.CalculationRecord, error)
	Get(ctx context.Context, id string) (*models.CalculationRecord, error)
	ListByLead(ctx context.Context, leadID string) ([]*models.CalculationRecord, error)
	Delete(ctx context.Context, id string) error
}

// ReportRenderer renders a recorded calculation
type ReportRenderer interface {
	Render(record *models.CalculationRecord, format report.Format) ([]byte, error)
}

// MetadataProvider builds the request-building reference data
type MetadataProvider interface {
	Metadata(ctx context.Context) (*models.Metadata, error)
}

// SettingsService manages the stored rate parameters
type SettingsService interface {
	List(ctx context.Context) ([]models.Setting, error)
	Set(ctx context.Context, key string, value string) error
	Reset(ctx context.Context, key string) error
}
