package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/common"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
)

func newTestStorage(t *testing.T) *CalculationStorage {
	t.Helper()
	db, err := NewSQLiteDB(arbor.NewLogger(), &common.SQLiteConfig{
		Path:          filepath.Join(t.TempDir(), "ecocalc.db"),
		BusyTimeoutMS: 1000,
	})
	require.NoError(t, err)
	storage := NewCalculationStorage(db, arbor.NewLogger())
	t.Cleanup(func() { _ = storage.Close() })
	return storage
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func partialRecord(id, leadID string, created time.Time) *models.CalculationRecord {
	return &models.CalculationRecord{
		ID:      id,
		LeadID:  leadID,
		Success: true,
		Summary: models.CalculationSummary{
			Scheme:               "GBIS",
			CalculationType:      models.CalculationPartial,
			StartingBand:         "Low_D",
			FloorAreaBand:        "0-72",
			PreMainHeatSource:    "Condensing Gas Boiler",
			TotalABS:             decPtr("0.66"),
			TotalECOValue:        decPtr("14.19"),
			RateUsed:             dec("21.5"),
			InnovationMultiplier: decPtr("1.25"),
		},
		Measures: []models.MeasureResult{
			{
				MeasureType:       "P&RT",
				MeasureCategory:   "Insulation",
				PercentageTreated: dec("100"),
				ABSValue:          dec("0.66"),
				PPSPoints:         dec("14.19"),
				ECOValue:          dec("14.19"),
				CostSavingsBase:   dec("0.66"),
				MatchedRow:        "gbis_partial:000001",
			},
			{
				MeasureType:       "Solar Thermal",
				PercentageTreated: dec("100"),
				Error:             models.NoMatchMessage,
				Criteria:          []models.FieldMatch{{Field: models.FieldMeasureType, Value: "Solar Thermal"}},
			},
		},
		CreatedAt: created,
	}
}

func TestMigrationsApplied(t *testing.T) {
	storage := newTestStorage(t)
	version, dirty, err := storage.db.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	created := time.Date(2026, 3, 1, 10, 30, 0, 123456789, time.UTC)

	require.NoError(t, storage.Save(ctx, partialRecord("calc_1", "lead-1", created)))

	got, err := storage.Get(ctx, "calc_1")
	require.NoError(t, err)
	assert.Equal(t, "lead-1", got.LeadID)
	assert.True(t, got.Success)
	assert.True(t, got.CreatedAt.Equal(created))
	assert.Equal(t, models.CalculationPartial, got.Summary.CalculationType)
	assert.Equal(t, "14.19", got.Summary.TotalECOValue.StringFixed(2))
	assert.Equal(t, "21.5", got.Summary.RateUsed.String())
	assert.Nil(t, got.Summary.ECOValue)

	require.Len(t, got.Measures, 2)
	assert.Equal(t, "P&RT", got.Measures[0].MeasureType)
	assert.Equal(t, "14.19", got.Measures[0].PPSPoints.StringFixed(2))
	assert.Equal(t, "gbis_partial:000001", got.Measures[0].MatchedRow)
	assert.Equal(t, models.NoMatchMessage, got.Measures[1].Error)
	assert.Equal(t, []models.FieldMatch{{Field: models.FieldMeasureType, Value: "Solar Thermal"}}, got.Measures[1].Criteria)
}

func TestSaveFullProject(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	record := &models.CalculationRecord{
		ID:      "calc_full",
		LeadID:  "lead-9",
		Success: true,
		Summary: models.CalculationSummary{
			Scheme:          models.SchemeFull,
			CalculationType: models.CalculationFull,
			StartingBand:    "Low_D",
			FinishingBand:   "High_C",
			FloorAreaBand:   "0-72",
			CostSavings:     decPtr("2.5"),
			ECOValue:        decPtr("53.75"),
			RateUsed:        dec("21.5"),
			MatchedRow:      "full_project:000001",
		},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, storage.Save(ctx, record))

	got, err := storage.Get(ctx, "calc_full")
	require.NoError(t, err)
	assert.Equal(t, "High_C", got.Summary.FinishingBand)
	assert.Equal(t, "53.75", got.Summary.ECOValue.String())
	assert.Equal(t, "full_project:000001", got.Summary.MatchedRow)
	assert.Empty(t, got.Measures)
}

func TestSaveIsAtomic(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	created := time.Now().UTC()

	require.NoError(t, storage.Save(ctx, partialRecord("calc_dup", "lead-1", created)))

	// Same id again: the parent insert fails and no measure rows are added
	require.Error(t, storage.Save(ctx, partialRecord("calc_dup", "lead-1", created)))

	var measures int
	require.NoError(t, storage.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM calculation_measures WHERE calculation_id = ?`, "calc_dup").Scan(&measures))
	assert.Equal(t, 2, measures)
}

func TestListByLeadNewestFirst(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, storage.Save(ctx, partialRecord("calc_a", "lead-1", base)))
	require.NoError(t, storage.Save(ctx, partialRecord("calc_b", "lead-1", base.Add(time.Hour))))
	require.NoError(t, storage.Save(ctx, partialRecord("calc_c", "lead-2", base)))

	list, err := storage.ListByLead(ctx, "lead-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "calc_b", list[0].ID)
	assert.Equal(t, "calc_a", list[1].ID)
	assert.Len(t, list[0].Measures, 2)

	empty, err := storage.ListByLead(ctx, "lead-none")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetAndDeleteMissing(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	_, err := storage.Get(ctx, "nope")
	assert.ErrorIs(t, err, interfaces.ErrCalculationNotFound)
	assert.ErrorIs(t, storage.Delete(ctx, "nope"), interfaces.ErrCalculationNotFound)

	require.NoError(t, storage.Save(ctx, partialRecord("calc_x", "lead-1", time.Now().UTC())))
	require.NoError(t, storage.Delete(ctx, "calc_x"))
	_, err = storage.Get(ctx, "calc_x")
	assert.ErrorIs(t, err, interfaces.ErrCalculationNotFound)

	var measures int
	require.NoError(t, storage.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM calculation_measures WHERE calculation_id = ?`, "calc_x").Scan(&measures))
	assert.Equal(t, 0, measures)
}

func TestSaveRollsBackParentWhenMeasuresFail(t *testing.T) {
	ctx := context.Background()
	storage := newTestStorage(t)

	_, err := storage.db.DB().ExecContext(ctx, `DROP TABLE calculation_measures`)
	require.NoError(t, err)

	require.Error(t, storage.Save(ctx, partialRecord("calc_rb", "lead-1", time.Now().UTC())))

	var parents int
	require.NoError(t, storage.db.DB().QueryRowContext(ctx,
		`SELECT COUNT(*) FROM calculations WHERE id = ?`, "calc_rb").Scan(&parents))
	assert.Equal(t, 0, parents)
}
