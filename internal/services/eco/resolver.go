package eco

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
)

// LookupCriteria are the matrix keys for one measure. Empty fields do not
// constrain the lookup.
type LookupCriteria struct {
	MeasureType    string
	FloorAreaBand  string
	StartingBand   string
	PreHeatSource  string
	PostHeatSource string
}

// Conditions converts the criteria into exact-match conditions, dropping empty
// fields and normalising the floor-area band
func (c LookupCriteria) Conditions() []models.FieldMatch {
	conditions := make([]models.FieldMatch, 0, 5)
	add := func(field, value string) {
		if value != "" {
			conditions = append(conditions, models.FieldMatch{Field: field, Value: value})
		}
	}
	add(models.FieldMeasureType, c.MeasureType)
	add(models.FieldFloorAreaBand, models.NormalizeFloorAreaBand(c.FloorAreaBand))
	add(models.FieldStartingBand, c.StartingBand)
	add(models.FieldPreHeatSource, c.PreHeatSource)
	add(models.FieldPostHeatSource, c.PostHeatSource)
	return conditions
}

// Resolution is the outcome of a partial-table lookup. Row is nil when
// nothing matched; Criteria always holds the conditions that were used.
type Resolution struct {
	Row        *models.PartialScoreRow
	Criteria   []models.FieldMatch
	Candidates int
}

// Found reports whether a row matched
func (r Resolution) Found() bool {
	return r.Row != nil
}

// FullResolution is the outcome of a full-project lookup
type FullResolution struct {
	Row        *models.FullProjectRow
	Criteria   []models.FieldMatch
	Candidates int
}

// Found reports whether a row matched
func (r FullResolution) Found() bool {
	return r.Row != nil
}

// Resolver finds the matrix row for a measure
type Resolver struct {
	store  interfaces.RateMatrixStore
	logger arbor.ILogger
}

// NewResolver creates a resolver over a rate matrix store
func NewResolver(store interfaces.RateMatrixStore, logger arbor.ILogger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger,
	}
}

// Resolve returns the first row (store order) matching the criteria.
// A missing row is a normal result; the error is reserved for storage failures.
func (r *Resolver) Resolve(ctx context.Context, table models.MatrixTable, criteria LookupCriteria) (Resolution, error) {
	conditions := criteria.Conditions()

	rows, err := r.store.FindPartialRows(ctx, table, conditions)
	if err != nil {
		return Resolution{Criteria: conditions}, fmt.Errorf("failed to query %s: %w", table, err)
	}

	if len(rows) == 0 {
		r.logger.Debug().
			Str("table", string(table)).
			Str("criteria", formatConditions(conditions)).
			Msg("No matrix row matched")
		return Resolution{Criteria: conditions}, nil
	}

	if len(rows) > 1 && !samePartialCostSavings(rows) {
		// Tie-break beyond "first in store order" is undecided; surface it to operators
		r.logger.Warn().
			Str("table", string(table)).
			Str("criteria", formatConditions(conditions)).
			Int("candidates", len(rows)).
			Str("selected", rows[0].ID).
			Msg("Multiple matrix rows with different cost savings matched, using first")
	}

	row := rows[0]
	return Resolution{Row: &row, Criteria: conditions, Candidates: len(rows)}, nil
}

// ResolveFull looks up the full-project row for a band transition
func (r *Resolver) ResolveFull(ctx context.Context, floorAreaBand, startingBand, finishingBand string) (FullResolution, error) {
	floorAreaBand = models.NormalizeFloorAreaBand(floorAreaBand)
	conditions := []models.FieldMatch{
		{Field: models.FieldFloorAreaBand, Value: floorAreaBand},
		{Field: models.FieldStartingBand, Value: startingBand},
		{Field: models.FieldFinishingBand, Value: finishingBand},
	}

	rows, err := r.store.FindFullRows(ctx, floorAreaBand, startingBand, finishingBand)
	if err != nil {
		return FullResolution{Criteria: conditions}, fmt.Errorf("failed to query %s: %w", models.TableFullProject, err)
	}

	if len(rows) == 0 {
		r.logger.Debug().
			Str("criteria", formatConditions(conditions)).
			Msg("No full project matrix row matched")
		return FullResolution{Criteria: conditions}, nil
	}

	row := rows[0]
	return FullResolution{Row: &row, Criteria: conditions, Candidates: len(rows)}, nil
}

func samePartialCostSavings(rows []models.PartialScoreRow) bool {
	for _, row := range rows[1:] {
		if !row.CostSavings.Equal(rows[0].CostSavings) {
			return false
		}
	}
	return true
}

func formatConditions(conditions []models.FieldMatch) string {
	s := ""
	for i, c := range conditions {
		if i > 0 {
			s += ", "
		}
		s += c.Field + "=" + c.Value
	}
	return s
}
