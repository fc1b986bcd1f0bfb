// Package calculations runs validated calculations and records them against leads.
package calculations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/common"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
	"github.com/ternarybob/ecocalc/internal/services/validation"
)

// ErrSaveFailed wraps recorder failures after a successful calculation
var ErrSaveFailed = errors.New("calculation computed but could not be saved")

// Calculator is the engine contract used by the service
type Calculator interface {
	Calculate(ctx context.Context, req *models.CalculationRequest) (*models.CalculationResult, error)
}

// Service validates requests, runs the engine and records results
type Service struct {
	engine    Calculator
	validator *validation.RequestValidator
	storage   interfaces.CalculationStorage
	logger    arbor.ILogger
	now       func() time.Time
}

// NewService creates a calculation service
func NewService(engine Calculator, storage interfaces.CalculationStorage, logger arbor.ILogger) *Service {
	return &Service{
		engine:    engine,
		validator: validation.NewRequestValidator(),
		storage:   storage,
		logger:    logger,
		now:       time.Now,
	}
}

// Calculate validates and scores a request. Validation failures are returned
// as *validation.Error.
func (s *Service) Calculate(ctx context.Context, req *models.CalculationRequest) (*models.CalculationResult, error) {
	if err := s.validator.Validate(req); err != nil {
		s.logger.Debug().Err(err).Msg("Calculation request rejected")
		return nil, err
	}

	start := time.Now()
	result, err := s.engine.Calculate(ctx, req)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("scheme", string(req.Scheme)).
			Str("calculation_type", string(req.Mode())).
			Str("starting_band", req.StartingSAPBand).
			Str("floor_area_band", req.FloorAreaBand).
			Int("measures", len(req.Measures)).
			Msg("Calculation failed")
		return nil, err
	}

	s.logger.Debug().
		Str("scheme", string(req.Scheme)).
		Str("calculation_type", string(req.Mode())).
		Bool("success", result.Success).
		Dur("duration", time.Since(start)).
		Msg("Calculation complete")

	return result, nil
}

// CalculateAndSave calculates and, when the result is successful, records it
// against leadID. If recording fails the result is still returned together with
// an error wrapping ErrSaveFailed. Unsuccessful results are not recorded.
func (s *Service) CalculateAndSave(ctx context.Context, leadID string, req *models.CalculationRequest) (*models.CalculationResult, *models.CalculationRecord, error) {
	result, err := s.Calculate(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	if !result.Success {
		return result, nil, nil
	}

	record := models.NewCalculationRecord(common.NewCalculationID(), leadID, result, s.now().UTC())
	if err := s.storage.Save(ctx, record); err != nil {
		s.logger.Error().
			Err(err).
			Str("lead_id", leadID).
			Str("calculation_id", record.ID).
			Msg("Failed to record calculation")
		return result, nil, fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	s.logger.Info().
		Str("lead_id", leadID).
		Str("calculation_id", record.ID).
		Int("measures", len(record.Measures)).
		Msg("Calculation recorded")

	return result, record, nil
}

// Get returns a recorded calculation
func (s *Service) Get(ctx context.Context, id string) (*models.CalculationRecord, error) {
	return s.storage.Get(ctx, id)
}

// ListByLead returns a lead's recorded calculations, newest first
func (s *Service) ListByLead(ctx context.Context, leadID string) ([]*models.CalculationRecord, error) {
	return s.storage.ListByLead(ctx, leadID)
}

// Delete removes a recorded calculation
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.storage.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("calculation_id", id).Msg("Calculation record deleted")
	return nil
}
