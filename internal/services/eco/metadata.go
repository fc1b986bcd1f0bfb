package eco

import (
	"context"
	"fmt"

	"github.com/ternarybob/ecocalc/internal/models"
)

// Metadata returns the reference data a client needs to build a request.
// Heat sources and measure types come from the matrix store; rate defaults are
// the stored values without request overrides.
func (e *Engine) Metadata(ctx context.Context) (*models.Metadata, error) {
	heatSources, err := e.store.HeatSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list heat sources: %w", err)
	}

	measureTypes := make(map[models.Scheme]map[string][]string, 2)
	for _, scheme := range []models.Scheme{models.SchemeGBIS, models.SchemeECO4} {
		table, err := models.PartialTableFor(scheme)
		if err != nil {
			return nil, err
		}
		types, err := e.store.MeasureTypes(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("failed to list measure types for %s: %w", scheme, err)
		}
		measureTypes[scheme] = types
	}

	rates, err := e.CurrentRates(ctx)
	if err != nil {
		return nil, err
	}

	return &models.Metadata{
		Schemes:          []models.Scheme{models.SchemeGBIS, models.SchemeECO4},
		CalculationTypes: []models.CalculationType{models.CalculationPartial, models.CalculationFull},
		Bands:            BandTable(),
		FloorAreaBands:   append([]string(nil), models.FloorAreaBands...),
		HeatSources:      heatSources,
		MeasureTypes:     measureTypes,
		Defaults: models.RateDefaults{
			RatePerUnit:          rates.RatePerUnit,
			InnovationMultiplier: rates.InnovationMultiplier,
		},
	}, nil
}
