package eco

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/ecocalc/internal/models"
)

func TestCalculateGBISEndToEnd(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:            models.SchemeGBIS,
		StartingSAPBand:   "D",
		StartingSAPScore:  intPtr(55),
		FloorAreaBand:     "0-72",
		PreMainHeatSource: "Condensing Gas Boiler",
		Measures: []models.MeasureRequest{
			{Type: "P&RT", PercentageTreated: floatPtr(100)},
		},
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, "GBIS", result.Summary.Scheme)
	assert.Equal(t, models.CalculationPartial, result.Summary.CalculationType)
	assert.Equal(t, "Low_D", result.Summary.StartingBand)
	assertMoney(t, "21.50", result.Summary.RateUsed)

	require.Len(t, result.Measures, 1)
	m := result.Measures[0]
	assert.True(t, m.Matched())
	assert.Equal(t, "Insulation", m.MeasureCategory)
	assertMoney(t, "0.66", m.ABSValue)
	assertMoney(t, "14.19", m.PPSPoints)
	assertMoney(t, "14.19", m.ECOValue)
	assert.Equal(t, models.MatrixRowID(models.TableGBISPartial, 1), m.MatchedRow)
	assertMoney(t, "0.66", *result.Summary.TotalABS)
	assertMoney(t, "14.19", *result.Summary.TotalECOValue)
}

func TestCalculateAggregation(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:          models.SchemeGBIS,
		StartingSAPBand: "Low_D",
		FloorAreaBand:   "0-72",
		PPSEcoRate:      floatPtr(20),
		Measures: []models.MeasureRequest{
			{Type: "Loft", PercentageTreated: floatPtr(100)},
			{Type: "CWI", PercentageTreated: floatPtr(100)},
		},
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	assertMoney(t, "0.80", *result.Summary.TotalABS)
	assertMoney(t, "16.00", *result.Summary.TotalECOValue)
	assertMoney(t, "20.00", result.Summary.RateUsed)
	assertMoney(t, "10.00", result.Measures[0].ECOValue)
	assertMoney(t, "6.00", result.Measures[1].ECOValue)
}

func TestCalculateInnovationIsPerMeasure(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:               models.SchemeGBIS,
		StartingSAPBand:      "Low_D",
		FloorAreaBand:        "0-72",
		PPSEcoRate:           floatPtr(20),
		InnovationMultiplier: floatPtr(1.5),
		Measures: []models.MeasureRequest{
			{Type: "Loft", IsInnovation: true},
			{Type: "CWI"},
		},
	})
	require.NoError(t, err)

	innovative, plain := result.Measures[0], result.Measures[1]
	assertMoney(t, "10.00", innovative.PPSPoints)
	assertMoney(t, "15.00", innovative.ECOValue)
	assertMoney(t, "6.00", plain.PPSPoints)
	assertMoney(t, "6.00", plain.ECOValue)
	assertMoney(t, "21.00", *result.Summary.TotalECOValue)
	assertMoney(t, "1.50", *result.Summary.InnovationMultiplier)
}

func TestCalculatePercentageScaling(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:          models.SchemeGBIS,
		StartingSAPBand: "Low_D",
		FloorAreaBand:   "0-72",
		Measures: []models.MeasureRequest{
			{Type: "IWI", PercentageTreated: floatPtr(50)},
		},
	})
	require.NoError(t, err)

	m := result.Measures[0]
	assertMoney(t, "50.00", m.PercentageTreated)
	assertMoney(t, "1.00", m.CostSavingsBase)
	assertMoney(t, "0.50", m.ABSValue)
	assertMoney(t, "10.75", m.PPSPoints)
}

func TestCalculateNoMatchKeepsRequestSuccessful(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:          models.SchemeGBIS,
		StartingSAPBand: "Low_D",
		FloorAreaBand:   "0-72",
		Measures: []models.MeasureRequest{
			{Type: "Loft"},
			{Type: "Solar Thermal"},
		},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.Measures, 2)

	missing := result.Measures[1]
	assert.False(t, missing.Matched())
	assert.Equal(t, models.NoMatchMessage, missing.Error)
	assert.Equal(t, "Solar Thermal", missing.MeasureType)
	assert.NotEmpty(t, missing.Criteria)
	assertMoney(t, "0.00", missing.ABSValue)
	assertMoney(t, "0.00", missing.PPSPoints)
	assertMoney(t, "0.00", missing.ECOValue)

	// Unmatched measures contribute nothing to totals
	assertMoney(t, "0.50", *result.Summary.TotalABS)
	assertMoney(t, "10.75", *result.Summary.TotalECOValue)
}

func TestCalculateGBISHighBandAndEnDash(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:           models.SchemeGBIS,
		StartingSAPBand:  "d",
		StartingSAPScore: intPtr(62),
		FloorAreaBand:    "0–72",
		Measures:         []models.MeasureRequest{{Type: "Loft"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "High_D", result.Summary.StartingBand)
	assert.Equal(t, "0-72", result.Summary.FloorAreaBand)
	assertMoney(t, "0.40", result.Measures[0].ABSValue)
}

func TestCalculateECO4UsesBandAsGivenAndPostHeatSource(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:            models.SchemeECO4,
		StartingSAPBand:   "Low_E",
		StartingSAPScore:  intPtr(50),
		FloorAreaBand:     "73-97",
		PreMainHeatSource: "Electric Storage Heaters",
		Measures: []models.MeasureRequest{
			{Type: "ASHP", PostHeatSource: "Ground Source Heat Pump"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "Low_E", result.Summary.StartingBand)
	m := result.Measures[0]
	require.True(t, m.Matched())
	assertMoney(t, "2.60", m.ABSValue)
	assert.Equal(t, models.MatrixRowID(models.TableECO4Partial, 2), m.MatchedRow)

	// ECO4 bare letters are not converted
	result, err = engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:          models.SchemeECO4,
		StartingSAPBand: "E",
		FloorAreaBand:   "73-97",
		Measures:        []models.MeasureRequest{{Type: "Loft"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "E", result.Summary.StartingBand)
	assert.False(t, result.Measures[0].Matched())
}

func TestCalculateGBISIgnoresMeasurePostHeatSource(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:          models.SchemeGBIS,
		StartingSAPBand: "Low_D",
		FloorAreaBand:   "0-72",
		Measures:        []models.MeasureRequest{{Type: "Loft", PostHeatSource: "Air Source Heat Pump"}},
	})
	require.NoError(t, err)
	assert.True(t, result.Measures[0].Matched())
}

func TestCalculateReadsRatesOncePerCall(t *testing.T) {
	settings := &countingSettings{values: map[string]string{KeyRatePerUnit: "20"}}
	engine := newTestEngine(t, settings)

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:          models.SchemeGBIS,
		StartingSAPBand: "Low_D",
		FloorAreaBand:   "0-72",
		Measures: []models.MeasureRequest{
			{Type: "Loft"}, {Type: "CWI"}, {Type: "IWI"}, {Type: "Missing"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, settings.calls)
	assertMoney(t, "20.00", result.Summary.RateUsed)
	assertMoney(t, "1.25", *result.Summary.InnovationMultiplier)
}

func TestCalculateTakesBothRatesFromOneSnapshot(t *testing.T) {
	settings := &rotatingSettings{snapshots: []map[string]string{
		{KeyRatePerUnit: "20", KeyInnovationMultiplier: "1.5"},
		{KeyRatePerUnit: "30", KeyInnovationMultiplier: "2"},
	}}
	engine := newTestEngine(t, settings)

	req := &models.CalculationRequest{
		Scheme:          models.SchemeGBIS,
		StartingSAPBand: "Low_D",
		FloorAreaBand:   "0-72",
		Measures:        []models.MeasureRequest{{Type: "Loft", IsInnovation: true}},
	}

	first, err := engine.Calculate(context.Background(), req)
	require.NoError(t, err)
	assertMoney(t, "20.00", first.Summary.RateUsed)
	assertMoney(t, "1.50", *first.Summary.InnovationMultiplier)

	second, err := engine.Calculate(context.Background(), req)
	require.NoError(t, err)
	assertMoney(t, "30.00", second.Summary.RateUsed)
	assertMoney(t, "2.00", *second.Summary.InnovationMultiplier)
	assert.Equal(t, 2, settings.calls)
}

func TestCalculateOverridesSkipSettings(t *testing.T) {
	settings := &countingSettings{}
	engine := newTestEngine(t, settings)

	_, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:               models.SchemeGBIS,
		StartingSAPBand:      "Low_D",
		FloorAreaBand:        "0-72",
		PPSEcoRate:           floatPtr(18),
		InnovationMultiplier: floatPtr(1.1),
		Measures:             []models.MeasureRequest{{Type: "Loft"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, settings.calls)
}

func TestCalculateSettingsFailureIsInternalError(t *testing.T) {
	engine := newTestEngine(t, &countingSettings{err: errSettingsDown})

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:          models.SchemeGBIS,
		StartingSAPBand: "Low_D",
		FloorAreaBand:   "0-72",
		Measures:        []models.MeasureRequest{{Type: "Loft"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errSettingsDown)
	assert.Nil(t, result)
}

func TestCalculateInvalidStoredRate(t *testing.T) {
	engine := newTestEngine(t, &countingSettings{values: map[string]string{KeyRatePerUnit: "twenty"}})

	_, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:          models.SchemeGBIS,
		StartingSAPBand: "Low_D",
		FloorAreaBand:   "0-72",
		Measures:        []models.MeasureRequest{{Type: "Loft"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), KeyRatePerUnit)
}

func TestCalculateFullProject(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:           models.SchemeECO4,
		CalculationType:  models.CalculationFull,
		StartingSAPBand:  "Low_D",
		FinishingSAPBand: "High_C",
		FloorAreaBand:    "0–72",
	})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Equal(t, models.SchemeFull, result.Summary.Scheme)
	assert.Equal(t, "High_C", result.Summary.FinishingBand)
	assertMoney(t, "2.50", *result.Summary.CostSavings)
	assertMoney(t, "53.75", *result.Summary.ECOValue)
	assert.Nil(t, result.Summary.TotalABS)
	assert.Empty(t, result.Measures)
}

func TestCalculateFullProjectNoMatch(t *testing.T) {
	engine := newTestEngine(t, nil)

	result, err := engine.Calculate(context.Background(), &models.CalculationRequest{
		Scheme:           models.SchemeGBIS,
		CalculationType:  models.CalculationFull,
		StartingSAPBand:  "D",
		FinishingSAPBand: "High_C",
		FloorAreaBand:    "0-72",
	})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, models.NoFullMatchMessage, result.Message)
	assert.Nil(t, result.Summary.ECOValue)
	assert.Len(t, result.Criteria, 3)
}

func TestCalculateIsDeterministic(t *testing.T) {
	engine := newTestEngine(t, nil)
	req := &models.CalculationRequest{
		Scheme:           models.SchemeGBIS,
		StartingSAPBand:  "D",
		StartingSAPScore: intPtr(58),
		FloorAreaBand:    "0-72",
		Measures:         []models.MeasureRequest{{Type: "Loft", PercentageTreated: floatPtr(33.3)}, {Type: "CWI", IsInnovation: true}},
	}

	first, err := engine.Calculate(context.Background(), req)
	require.NoError(t, err)
	second, err := engine.Calculate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestMetadata(t *testing.T) {
	engine := newTestEngine(t, &countingSettings{values: map[string]string{KeyInnovationMultiplier: "1.4"}})

	meta, err := engine.Metadata(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []models.Scheme{models.SchemeGBIS, models.SchemeECO4}, meta.Schemes)
	assert.Len(t, meta.Bands, 7)
	assert.Equal(t, []string{"0-72", "73-97", "98-199", "200+"}, meta.FloorAreaBands)
	assert.Equal(t, []string{
		"Air Source Heat Pump",
		"Condensing Gas Boiler",
		"Electric Storage Heaters",
		"Ground Source Heat Pump",
	}, meta.HeatSources)
	assert.Equal(t, []string{"CWI", "IWI", "Loft", "P&RT"}, meta.MeasureTypes[models.SchemeGBIS]["Insulation"])
	assert.Equal(t, []string{"ASHP"}, meta.MeasureTypes[models.SchemeECO4]["Heating"])
	assertMoney(t, "21.50", meta.Defaults.RatePerUnit)
	assertMoney(t, "1.40", meta.Defaults.InnovationMultiplier)
}
