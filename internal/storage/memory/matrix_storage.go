// Package memory holds an in-process rate matrix used for tests and for
// deployments that load the matrix from seed files on every start.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
)

// MatrixStorage implements interfaces.RateMatrix over slices kept in Seq order
type MatrixStorage struct {
	mu      sync.RWMutex
	partial map[models.MatrixTable][]models.PartialScoreRow
	full    []models.FullProjectRow
	logger  arbor.ILogger
}

// NewMatrixStorage creates an empty in-memory matrix
func NewMatrixStorage(logger arbor.ILogger) interfaces.RateMatrix {
	return &MatrixStorage{
		partial: make(map[models.MatrixTable][]models.PartialScoreRow),
		logger:  logger,
	}
}

func (s *MatrixStorage) FindPartialRows(ctx context.Context, table models.MatrixTable, conditions []models.FieldMatch) ([]models.PartialScoreRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []models.PartialScoreRow
	for i := range s.partial[table] {
		row := &s.partial[table][i]
		if row.Matches(conditions) {
			rows = append(rows, *row)
		}
	}
	return rows, nil
}

func (s *MatrixStorage) FindFullRows(ctx context.Context, floorAreaBand, startingBand, finishingBand string) ([]models.FullProjectRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows []models.FullProjectRow
	for _, row := range s.full {
		if row.FloorAreaBand == floorAreaBand && row.StartingBand == startingBand && row.FinishingBand == finishingBand {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (s *MatrixStorage) HeatSources(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, rows := range s.partial {
		for _, row := range rows {
			if row.PreHeatSource != "" {
				seen[row.PreHeatSource] = struct{}{}
			}
			if row.PostHeatSource != "" {
				seen[row.PostHeatSource] = struct{}{}
			}
		}
	}
	return sortedKeys(seen), nil
}

func (s *MatrixStorage) MeasureTypes(ctx context.Context, table models.MatrixTable) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	grouped := make(map[string]map[string]struct{})
	for _, row := range s.partial[table] {
		if grouped[row.MeasureCategory] == nil {
			grouped[row.MeasureCategory] = make(map[string]struct{})
		}
		grouped[row.MeasureCategory][row.MeasureType] = struct{}{}
	}

	result := make(map[string][]string, len(grouped))
	for category, types := range grouped {
		result[category] = sortedKeys(types)
	}
	return result, nil
}

func (s *MatrixStorage) Stats(ctx context.Context) (*models.MatrixStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.MatrixStats{Tables: make(map[models.MatrixTable]int, len(models.AllMatrixTables))}
	for _, table := range models.AllMatrixTables {
		n := len(s.partial[table])
		if table == models.TableFullProject {
			n = len(s.full)
		}
		stats.Tables[table] = n
		stats.Total += n
	}
	return stats, nil
}

// ReplacePartialTable swaps the table contents. Rows are re-sorted by Seq.
func (s *MatrixStorage) ReplacePartialTable(ctx context.Context, table models.MatrixTable, rows []models.PartialScoreRow) error {
	copied := make([]models.PartialScoreRow, len(rows))
	copy(copied, rows)
	for i := range copied {
		copied[i].Table = table
	}
	sort.SliceStable(copied, func(i, j int) bool { return copied[i].Seq < copied[j].Seq })

	s.mu.Lock()
	s.partial[table] = copied
	s.mu.Unlock()

	s.logger.Debug().Str("table", string(table)).Int("rows", len(copied)).Msg("Replaced in-memory matrix table")
	return nil
}

func (s *MatrixStorage) ReplaceFullTable(ctx context.Context, rows []models.FullProjectRow) error {
	copied := make([]models.FullProjectRow, len(rows))
	copy(copied, rows)
	sort.SliceStable(copied, func(i, j int) bool { return copied[i].Seq < copied[j].Seq })

	s.mu.Lock()
	s.full = copied
	s.mu.Unlock()

	s.logger.Debug().Str("table", string(models.TableFullProject)).Int("rows", len(copied)).Msg("Replaced in-memory matrix table")
	return nil
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
