package interfaces

import (
	"context"

	"github.com/ternarybob/ecocalc/internal/models"
)

// RateMatrixStore is the read side of the reference rate matrix.
//
// Ordering contract: every Find method returns rows sorted by Seq ascending,
// where Seq is the row's position in the imported source. Seq is fixed for the
// lifetime of an import and reassigned by the next one. Callers that take the
// first row rely on this.
type RateMatrixStore interface {
	// FindPartialRows returns rows of a partial table matching all conditions exactly
	FindPartialRows(ctx context.Context, table models.MatrixTable, conditions []models.FieldMatch) ([]models.PartialScoreRow, error)

	// FindFullRows returns full-project rows matching the three bands exactly
	FindFullRows(ctx context.Context, floorAreaBand, startingBand, finishingBand string) ([]models.FullProjectRow, error)

	// HeatSources returns the distinct non-empty pre/post heat sources, sorted
	HeatSources(ctx context.Context) ([]string, error)

	// MeasureTypes returns category -> sorted distinct measure types for a table
	MeasureTypes(ctx context.Context, table models.MatrixTable) (map[string][]string, error)

	// Stats returns row counts per table
	Stats(ctx context.Context) (*models.MatrixStats, error)
}

// RateMatrixLoader replaces table contents. Used only by the import path;
// the calculation engine never writes.
type RateMatrixLoader interface {
	ReplacePartialTable(ctx context.Context, table models.MatrixTable, rows []models.PartialScoreRow) error
	ReplaceFullTable(ctx context.Context, rows []models.FullProjectRow) error
}

// RateMatrix combines read and load access for storage backends
type RateMatrix interface {
	RateMatrixStore
	RateMatrixLoader
}
