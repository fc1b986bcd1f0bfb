package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/common"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(arbor.NewLogger(), &common.BadgerConfig{
		Path: filepath.Join(t.TempDir(), "badger"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func row(seq int, measureType, pre, post, band, cost string) models.PartialScoreRow {
	return models.PartialScoreRow{
		Seq:             seq,
		MeasureCategory: "Insulation",
		MeasureType:     measureType,
		PreHeatSource:   pre,
		PostHeatSource:  post,
		FloorAreaBand:   "0-72",
		StartingBand:    band,
		CostSavings:     decimal.RequireFromString(cost),
	}
}

func TestMatrixStorageFindPartialRows(t *testing.T) {
	ctx := context.Background()
	matrix := newTestManager(t).RateMatrix()

	require.NoError(t, matrix.ReplacePartialTable(ctx, models.TableGBISPartial, []models.PartialScoreRow{
		row(2, "Loft", "", "", "Low_D", "0.55"),
		row(1, "Loft", "", "", "Low_D", "0.50"),
		row(3, "P&RT", "Condensing Gas Boiler", "", "Low_D", "0.66"),
	}))
	require.NoError(t, matrix.ReplacePartialTable(ctx, models.TableECO4Partial, []models.PartialScoreRow{
		row(1, "Loft", "", "", "Low_D", "0.90"),
	}))

	rows, err := matrix.FindPartialRows(ctx, models.TableGBISPartial, []models.FieldMatch{
		{Field: models.FieldMeasureType, Value: "Loft"},
		{Field: models.FieldStartingBand, Value: "Low_D"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Seq)
	assert.Equal(t, "gbis_partial:000001", rows[0].ID)
	assert.Equal(t, models.TableGBISPartial, rows[0].Table)
	assert.True(t, rows[0].CostSavings.Equal(decimal.RequireFromString("0.50")))

	rows, err = matrix.FindPartialRows(ctx, models.TableGBISPartial, []models.FieldMatch{
		{Field: models.FieldMeasureType, Value: "P&RT"},
		{Field: models.FieldPreHeatSource, Value: "Condensing Gas Boiler"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "0.66", rows[0].CostSavings.StringFixed(2))

	rows, err = matrix.FindPartialRows(ctx, models.TableGBISPartial, []models.FieldMatch{
		{Field: models.FieldMeasureType, Value: "CWI"},
	})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMatrixStorageReplaceIsScopedToTable(t *testing.T) {
	ctx := context.Background()
	matrix := newTestManager(t).RateMatrix()

	require.NoError(t, matrix.ReplacePartialTable(ctx, models.TableGBISPartial, []models.PartialScoreRow{
		row(1, "Loft", "", "", "Low_D", "0.50"),
		row(2, "CWI", "", "", "Low_D", "0.30"),
	}))
	require.NoError(t, matrix.ReplacePartialTable(ctx, models.TableECO4Partial, []models.PartialScoreRow{
		row(1, "ASHP", "Electric Storage Heaters", "Air Source Heat Pump", "Low_E", "2.10"),
	}))
	require.NoError(t, matrix.ReplaceFullTable(ctx, []models.FullProjectRow{
		{Seq: 1, FloorAreaBand: "0-72", StartingBand: "Low_D", FinishingBand: "High_C", CostSavings: decimal.RequireFromString("2.50")},
	}))

	// Re-import GBIS with a single row
	require.NoError(t, matrix.ReplacePartialTable(ctx, models.TableGBISPartial, []models.PartialScoreRow{
		row(1, "IWI", "", "", "Low_D", "1.00"),
	}))

	stats, err := matrix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Tables[models.TableGBISPartial])
	assert.Equal(t, 1, stats.Tables[models.TableECO4Partial])
	assert.Equal(t, 1, stats.Tables[models.TableFullProject])
	assert.Equal(t, 3, stats.Total)

	types, err := matrix.MeasureTypes(ctx, models.TableGBISPartial)
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{"Insulation": {"IWI"}}, types)

	sources, err := matrix.HeatSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Air Source Heat Pump", "Electric Storage Heaters"}, sources)
}

func TestMatrixStorageFindFullRows(t *testing.T) {
	ctx := context.Background()
	matrix := newTestManager(t).RateMatrix()

	require.NoError(t, matrix.ReplaceFullTable(ctx, []models.FullProjectRow{
		{Seq: 1, FloorAreaBand: "0-72", StartingBand: "Low_D", FinishingBand: "High_C", CostSavings: decimal.RequireFromString("2.50")},
		{Seq: 2, FloorAreaBand: "0-72", StartingBand: "Low_D", FinishingBand: "Low_B", CostSavings: decimal.RequireFromString("3.75")},
	}))

	rows, err := matrix.FindFullRows(ctx, "0-72", "Low_D", "Low_B")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "full_project:000002", rows[0].ID)
	assert.Equal(t, "3.75", rows[0].CostSavings.StringFixed(2))

	rows, err = matrix.FindFullRows(ctx, "73-97", "Low_D", "Low_B")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func generatedRows(n int, cost string) []models.PartialScoreRow {
	rows := make([]models.PartialScoreRow, n)
	for i := range rows {
		rows[i] = row(i+1, fmt.Sprintf("Measure %04d", i%250), "Electric Storage Heaters", "Air Source Heat Pump",
			fmt.Sprintf("Low_%c", 'A'+rune(i%7)), cost)
	}
	return rows
}

func TestMatrixStorageReplaceLargeTable(t *testing.T) {
	ctx := context.Background()
	matrix := newTestManager(t).RateMatrix()

	require.NoError(t, matrix.ReplacePartialTable(ctx, models.TableECO4Partial, generatedRows(5000, "1.10")))

	stats, err := matrix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5000, stats.Tables[models.TableECO4Partial])

	// Row 4999 sits near the end of the table: measure 248, letter index 4998%7 = 0
	rows, err := matrix.FindPartialRows(ctx, models.TableECO4Partial, []models.FieldMatch{
		{Field: models.FieldMeasureType, Value: "Measure 0248"},
		{Field: models.FieldStartingBand, Value: "Low_A"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	last := rows[len(rows)-1]
	assert.Equal(t, 4999, last.Seq)
	assert.Equal(t, "eco4_partial:004999", last.ID)

	// A second large import replaces the first one completely
	require.NoError(t, matrix.ReplacePartialTable(ctx, models.TableECO4Partial, generatedRows(3000, "2.20")))
	stats, err = matrix.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3000, stats.Tables[models.TableECO4Partial])

	rows, err = matrix.FindPartialRows(ctx, models.TableECO4Partial, []models.FieldMatch{
		{Field: models.FieldMeasureType, Value: "Measure 0001"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	for _, r := range rows {
		assert.Equal(t, "2.20", r.CostSavings.StringFixed(2))
	}
}

func TestMatrixStorageLargeFullTable(t *testing.T) {
	ctx := context.Background()
	matrix := newTestManager(t).RateMatrix()

	rows := make([]models.FullProjectRow, 4000)
	for i := range rows {
		rows[i] = models.FullProjectRow{
			Seq:           i + 1,
			FloorAreaBand: "0-72",
			StartingBand:  fmt.Sprintf("Low_%d", i),
			FinishingBand: "High_C",
			CostSavings:   decimal.RequireFromString("2.50"),
		}
	}
	require.NoError(t, matrix.ReplaceFullTable(ctx, rows))

	found, err := matrix.FindFullRows(ctx, "0-72", "Low_3999", "High_C")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "full_project:004000", found[0].ID)
}

func TestMatrixStorageCancelledReplaceKeepsTable(t *testing.T) {
	matrix := newTestManager(t).RateMatrix()
	require.NoError(t, matrix.ReplacePartialTable(context.Background(), models.TableGBISPartial, []models.PartialScoreRow{
		row(1, "Loft", "", "", "Low_D", "0.50"),
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := matrix.ReplacePartialTable(ctx, models.TableGBISPartial, generatedRows(2500, "9.99"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)

	rows, err := matrix.FindPartialRows(context.Background(), models.TableGBISPartial, []models.FieldMatch{
		{Field: models.FieldMeasureType, Value: "Loft"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "0.50", rows[0].CostSavings.StringFixed(2))
}

func TestMatrixStorageReplaceAfterInterruptedImport(t *testing.T) {
	ctx := context.Background()
	matrix := newTestManager(t).RateMatrix().(*MatrixStorage)
	require.NoError(t, matrix.ReplacePartialTable(ctx, models.TableGBISPartial, []models.PartialScoreRow{
		row(1, "Loft", "", "", "Low_D", "0.50"),
	}))

	// Rows of an import that never switched the generation pointer
	orphan := row(1, "CWI", "", "", "Low_D", "0.30")
	orphan.ID = models.MatrixRowID(models.TableGBISPartial, 1)
	require.NoError(t, matrix.writeGeneration(ctx, models.TableGBISPartial, 2, []matrixRecord{
		{Table: models.TableGBISPartial, Slot: 0, Partial: &orphan},
	}))

	rows, err := matrix.FindPartialRows(ctx, models.TableGBISPartial, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Loft", rows[0].MeasureType)

	require.NoError(t, matrix.ReplacePartialTable(ctx, models.TableGBISPartial, []models.PartialScoreRow{
		row(1, "IWI", "", "", "Low_D", "1.00"),
	}))
	rows, err = matrix.FindPartialRows(ctx, models.TableGBISPartial, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "IWI", rows[0].MeasureType)
}

func TestKVStorage(t *testing.T) {
	ctx := context.Background()
	kv := newTestManager(t).KeyValueStorage()

	_, err := kv.Get(ctx, "eco_rate_per_unit")
	assert.True(t, errors.Is(err, interfaces.ErrKeyNotFound))

	require.NoError(t, kv.Set(ctx, "ECO_Rate_Per_Unit", "22.00", "rate"))
	value, err := kv.Get(ctx, "eco_rate_per_unit")
	require.NoError(t, err)
	assert.Equal(t, "22.00", value)

	first, err := kv.GetPair(ctx, "eco_rate_per_unit")
	require.NoError(t, err)

	require.NoError(t, kv.Set(ctx, "eco_rate_per_unit", "23.00", "rate"))
	second, err := kv.GetPair(ctx, "eco_rate_per_unit")
	require.NoError(t, err)
	assert.Equal(t, "23.00", second.Value)
	assert.True(t, first.CreatedAt.Equal(second.CreatedAt))

	require.NoError(t, kv.Set(ctx, "innovation_multiplier", "1.3", ""))
	all, err := kv.GetAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"eco_rate_per_unit": "23.00", "innovation_multiplier": "1.3"}, all)

	pairs, err := kv.List(ctx)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, "innovation_multiplier", pairs[0].Key)

	require.NoError(t, kv.Delete(ctx, "innovation_multiplier"))
	assert.True(t, errors.Is(kv.Delete(ctx, "innovation_multiplier"), interfaces.ErrKeyNotFound))
}
