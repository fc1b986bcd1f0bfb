package eco

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
)

// Settings keys read from the configuration provider
const (
	KeyRatePerUnit          = models.SettingRatePerUnit
	KeyInnovationMultiplier = models.SettingInnovationMultiplier
)

// Rates is the rate snapshot used for every measure of one calculation
type Rates struct {
	RatePerUnit          decimal.Decimal
	InnovationMultiplier decimal.Decimal
}

// Engine scores calculation requests against the rate matrix.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	store    interfaces.RateMatrixStore
	resolver *Resolver
	settings interfaces.SettingsProvider
	defaults Rates
	logger   arbor.ILogger
}

// NewEngine creates a calculation engine. defaults are used when the settings
// provider has no stored value.
func NewEngine(store interfaces.RateMatrixStore, settings interfaces.SettingsProvider, defaults Rates, logger arbor.ILogger) *Engine {
	return &Engine{
		store:    store,
		resolver: NewResolver(store, logger),
		settings: settings,
		defaults: defaults,
		logger:   logger,
	}
}

// Calculate scores a pre-validated request. Unmatched matrix rows are reported
// inside the result; the error is only for internal failures.
func (e *Engine) Calculate(ctx context.Context, req *models.CalculationRequest) (*models.CalculationResult, error) {
	rates, err := e.loadRates(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.Mode() == models.CalculationFull {
		return e.calculateFull(ctx, req, rates)
	}
	return e.calculatePartial(ctx, req, rates)
}

// CurrentRates returns the stored rate parameters without request overrides
func (e *Engine) CurrentRates(ctx context.Context) (Rates, error) {
	return e.loadRates(ctx, &models.CalculationRequest{})
}

// loadRates resolves both rate parameters from one settings snapshot; request
// overrides win
func (e *Engine) loadRates(ctx context.Context, req *models.CalculationRequest) (Rates, error) {
	var stored map[string]string
	if req.PPSEcoRate == nil || req.InnovationMultiplier == nil {
		snapshot, err := e.settings.Snapshot(ctx)
		if err != nil {
			return Rates{}, fmt.Errorf("failed to read settings: %w", err)
		}
		stored = snapshot
	}

	rate, err := rateParameter(stored, KeyRatePerUnit, req.PPSEcoRate, e.defaults.RatePerUnit)
	if err != nil {
		return Rates{}, err
	}
	multiplier, err := rateParameter(stored, KeyInnovationMultiplier, req.InnovationMultiplier, e.defaults.InnovationMultiplier)
	if err != nil {
		return Rates{}, err
	}
	return Rates{RatePerUnit: rate, InnovationMultiplier: multiplier}, nil
}

func rateParameter(stored map[string]string, key string, override *float64, fallback decimal.Decimal) (decimal.Decimal, error) {
	if override != nil {
		return decimal.NewFromFloat(*override), nil
	}

	raw, ok := stored[key]
	if !ok {
		return fallback, nil
	}

	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("setting %s is not a number (%q): %w", key, raw, err)
	}
	return value, nil
}

func (e *Engine) calculatePartial(ctx context.Context, req *models.CalculationRequest, rates Rates) (*models.CalculationResult, error) {
	table, err := models.PartialTableFor(req.Scheme)
	if err != nil {
		return nil, err
	}

	startingBand := req.StartingSAPBand
	if req.Scheme == models.SchemeGBIS {
		startingBand = Classify(startingBand, req.StartingSAPScore).String()
	}
	floorAreaBand := models.NormalizeFloorAreaBand(req.FloorAreaBand)

	measures := make([]models.MeasureResult, 0, len(req.Measures))
	absValues := make([]decimal.Decimal, 0, len(req.Measures))
	ecoValues := make([]decimal.Decimal, 0, len(req.Measures))

	for _, m := range req.Measures {
		criteria := LookupCriteria{
			MeasureType:   m.Type,
			FloorAreaBand: floorAreaBand,
			StartingBand:  startingBand,
			PreHeatSource: req.PreMainHeatSource,
		}
		// The GBIS table has no post heat source column
		if table == models.TableECO4Partial {
			criteria.PostHeatSource = m.PostHeatSource
		}

		resolution, err := e.resolver.Resolve(ctx, table, criteria)
		if err != nil {
			e.logger.Error().
				Err(err).
				Str("scheme", string(req.Scheme)).
				Str("measure_type", m.Type).
				Str("criteria", formatConditions(resolution.Criteria)).
				Msg("Matrix lookup failed")
			return nil, err
		}

		result := scoreMeasure(m, resolution, rates)
		if result.Matched() {
			absValues = append(absValues, result.ABSValue)
			ecoValues = append(ecoValues, result.ECOValue)
		}
		measures = append(measures, result)
	}

	totalABS := SumRounded(absValues)
	totalECO := SumRounded(ecoValues)
	multiplier := rates.InnovationMultiplier

	e.logger.Debug().
		Str("scheme", string(req.Scheme)).
		Str("starting_band", startingBand).
		Int("measures", len(measures)).
		Str("total_abs", totalABS.String()).
		Str("total_eco_value", totalECO.String()).
		Msg("Partial calculation complete")

	return &models.CalculationResult{
		Success: true,
		Summary: models.CalculationSummary{
			Scheme:               string(req.Scheme),
			CalculationType:      models.CalculationPartial,
			StartingBand:         startingBand,
			FloorAreaBand:        floorAreaBand,
			PreMainHeatSource:    req.PreMainHeatSource,
			TotalABS:             &totalABS,
			TotalECOValue:        &totalECO,
			RateUsed:             rates.RatePerUnit,
			InnovationMultiplier: &multiplier,
		},
		Measures: measures,
	}, nil
}

// scoreMeasure applies percentage treated, rate and innovation multiplier,
// rounding to pennies after each stage
func scoreMeasure(m models.MeasureRequest, resolution Resolution, rates Rates) models.MeasureResult {
	pct := ClampPercentage(m.PercentageTreated)
	result := models.MeasureResult{
		MeasureType:       m.Type,
		MeasureVariant:    m.Variant,
		PostHeatSource:    m.PostHeatSource,
		PercentageTreated: pct,
		IsInnovation:      m.IsInnovation,
	}

	if !resolution.Found() {
		result.Error = models.NoMatchMessage
		result.Criteria = resolution.Criteria
		return result
	}

	row := resolution.Row
	multiplier := one
	if m.IsInnovation {
		multiplier = rates.InnovationMultiplier
	}

	absValue := Round2(row.CostSavings.Mul(pct).Div(hundred))
	ppsPoints := Round2(absValue.Mul(rates.RatePerUnit))
	ecoValue := Round2(ppsPoints.Mul(multiplier))

	result.MeasureCategory = row.MeasureCategory
	result.CostSavingsBase = row.CostSavings
	result.ABSValue = absValue
	result.PPSPoints = ppsPoints
	result.ECOValue = ecoValue
	result.MatchedRow = row.ID
	return result
}

func (e *Engine) calculateFull(ctx context.Context, req *models.CalculationRequest, rates Rates) (*models.CalculationResult, error) {
	floorAreaBand := models.NormalizeFloorAreaBand(req.FloorAreaBand)
	summary := models.CalculationSummary{
		Scheme:          models.SchemeFull,
		CalculationType: models.CalculationFull,
		StartingBand:    req.StartingSAPBand,
		FinishingBand:   req.FinishingSAPBand,
		FloorAreaBand:   floorAreaBand,
		RateUsed:        rates.RatePerUnit,
	}

	resolution, err := e.resolver.ResolveFull(ctx, floorAreaBand, req.StartingSAPBand, req.FinishingSAPBand)
	if err != nil {
		e.logger.Error().
			Err(err).
			Str("scheme", string(req.Scheme)).
			Str("criteria", formatConditions(resolution.Criteria)).
			Msg("Full project lookup failed")
		return nil, err
	}

	if !resolution.Found() {
		return &models.CalculationResult{
			Success:  false,
			Message:  models.NoFullMatchMessage,
			Summary:  summary,
			Criteria: resolution.Criteria,
		}, nil
	}

	costSavings := resolution.Row.CostSavings
	ecoValue := Round2(costSavings.Mul(rates.RatePerUnit))
	summary.CostSavings = &costSavings
	summary.ECOValue = &ecoValue
	summary.MatchedRow = resolution.Row.ID

	return &models.CalculationResult{
		Success: true,
		Summary: summary,
	}, nil
}
