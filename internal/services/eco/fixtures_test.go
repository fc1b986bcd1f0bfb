package eco

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
	"github.com/ternarybob/ecocalc/internal/storage/memory"
)

// countingSettings records how often the engine takes a settings snapshot
type countingSettings struct {
	values map[string]string
	calls  int
	err    error
}

func (s *countingSettings) Snapshot(ctx context.Context) (map[string]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	values := make(map[string]string, len(s.values))
	for k, v := range s.values {
		values[k] = v
	}
	return values, nil
}

// rotatingSettings hands out a different snapshot on every call
type rotatingSettings struct {
	snapshots []map[string]string
	calls     int
}

func (s *rotatingSettings) Snapshot(ctx context.Context) (map[string]string, error) {
	snapshot := s.snapshots[s.calls%len(s.snapshots)]
	s.calls++
	return snapshot, nil
}

var errSettingsDown = errors.New("settings store unavailable")

func defaultRates() Rates {
	return Rates{
		RatePerUnit:          decimal.RequireFromString("21.5"),
		InnovationMultiplier: decimal.RequireFromString("1.25"),
	}
}

func partialRow(seq int, category, measureType, pre, post, floor, band, cost string) models.PartialScoreRow {
	return models.PartialScoreRow{
		Seq:             seq,
		MeasureCategory: category,
		MeasureType:     measureType,
		PreHeatSource:   pre,
		PostHeatSource:  post,
		FloorAreaBand:   floor,
		StartingBand:    band,
		CostSavings:     decimal.RequireFromString(cost),
	}
}

func withIDs(table models.MatrixTable, rows []models.PartialScoreRow) []models.PartialScoreRow {
	for i := range rows {
		rows[i].ID = models.MatrixRowID(table, rows[i].Seq)
	}
	return rows
}

func newTestStore(t *testing.T) interfaces.RateMatrix {
	t.Helper()
	ctx := context.Background()
	store := memory.NewMatrixStorage(arbor.NewLogger())

	gbis := withIDs(models.TableGBISPartial, []models.PartialScoreRow{
		partialRow(1, "Insulation", "P&RT", "Condensing Gas Boiler", "", "0-72", "Low_D", "0.66"),
		partialRow(2, "Insulation", "Loft", "", "", "0-72", "Low_D", "0.50"),
		partialRow(3, "Insulation", "CWI", "", "", "0-72", "Low_D", "0.30"),
		partialRow(4, "Insulation", "IWI", "", "", "0-72", "Low_D", "1.00"),
		partialRow(5, "Insulation", "Loft", "", "", "0-72", "High_D", "0.40"),
	})
	require.NoError(t, store.ReplacePartialTable(ctx, models.TableGBISPartial, gbis))

	eco4 := withIDs(models.TableECO4Partial, []models.PartialScoreRow{
		partialRow(1, "Heating", "ASHP", "Electric Storage Heaters", "Air Source Heat Pump", "73-97", "Low_E", "2.10"),
		partialRow(2, "Heating", "ASHP", "Electric Storage Heaters", "Ground Source Heat Pump", "73-97", "Low_E", "2.60"),
		partialRow(3, "Insulation", "Loft", "", "", "73-97", "Low_E", "0.45"),
	})
	require.NoError(t, store.ReplacePartialTable(ctx, models.TableECO4Partial, eco4))

	full := []models.FullProjectRow{
		{ID: models.MatrixRowID(models.TableFullProject, 1), Seq: 1, FloorAreaBand: "0-72", StartingBand: "Low_D", FinishingBand: "High_C", CostSavings: decimal.RequireFromString("2.50")},
	}
	require.NoError(t, store.ReplaceFullTable(ctx, full))
	return store
}

func newTestEngine(t *testing.T, settings interfaces.SettingsProvider) *Engine {
	t.Helper()
	if settings == nil {
		settings = &countingSettings{}
	}
	return NewEngine(newTestStore(t), settings, defaultRates(), arbor.NewLogger())
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}
