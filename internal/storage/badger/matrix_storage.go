package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// writeChunk is the number of records written or deleted per badger transaction
const writeChunk = 1000

// matrixRecord is the stored form of one matrix row. Every import writes a new
// generation of records; readers only see the generation named by the table's
// matrixGeneration pointer.
type matrixRecord struct {
	Table      models.MatrixTable
	Generation uint64
	Slot       int
	Partial    *models.PartialScoreRow
	Full       *models.FullProjectRow
}

// matrixGeneration points a table at its live generation
type matrixGeneration struct {
	Table      models.MatrixTable
	Generation uint64
}

func recordKey(table models.MatrixTable, generation uint64, slot int) string {
	return fmt.Sprintf("%s/%d/%06d", table, generation, slot)
}

func liveQuery(table models.MatrixTable, generation uint64) *badgerhold.Query {
	return badgerhold.Where("Table").Eq(table).And("Generation").Eq(generation)
}

// MatrixStorage implements interfaces.RateMatrix for Badger
type MatrixStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
	mu     sync.Mutex // serialises imports
}

// NewMatrixStorage creates a new MatrixStorage instance
func NewMatrixStorage(db *BadgerDB, logger arbor.ILogger) interfaces.RateMatrix {
	return &MatrixStorage{
		db:     db,
		logger: logger,
	}
}

// liveGeneration returns the table's live generation, or false when the table
// has never been imported
func (s *MatrixStorage) liveGeneration(tx *badger.Txn, table models.MatrixTable) (uint64, bool, error) {
	var pointer matrixGeneration
	err := s.db.Store().TxGet(tx, string(table), &pointer)
	if errors.Is(err, badgerhold.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s generation: %w", table, err)
	}
	return pointer.Generation, true, nil
}

// forEachLive calls fn for every live record of table inside one read transaction
func (s *MatrixStorage) forEachLive(table models.MatrixTable, fn func(*matrixRecord) error) error {
	store := s.db.Store()
	return store.Badger().View(func(tx *badger.Txn) error {
		generation, ok, err := s.liveGeneration(tx, table)
		if err != nil || !ok {
			return err
		}
		return store.TxForEach(tx, liveQuery(table, generation), fn)
	})
}

func (s *MatrixStorage) FindPartialRows(ctx context.Context, table models.MatrixTable, conditions []models.FieldMatch) ([]models.PartialScoreRow, error) {
	var rows []models.PartialScoreRow
	err := s.forEachLive(table, func(record *matrixRecord) error {
		if record.Partial != nil && record.Partial.Matches(conditions) {
			rows = append(rows, *record.Partial)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find %s rows: %w", table, err)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	return rows, nil
}

func (s *MatrixStorage) FindFullRows(ctx context.Context, floorAreaBand, startingBand, finishingBand string) ([]models.FullProjectRow, error) {
	var rows []models.FullProjectRow
	err := s.forEachLive(models.TableFullProject, func(record *matrixRecord) error {
		row := record.Full
		if row != nil && row.FloorAreaBand == floorAreaBand && row.StartingBand == startingBand && row.FinishingBand == finishingBand {
			rows = append(rows, *row)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find %s rows: %w", models.TableFullProject, err)
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Seq < rows[j].Seq })
	return rows, nil
}

func (s *MatrixStorage) HeatSources(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	for _, table := range []models.MatrixTable{models.TableECO4Partial, models.TableGBISPartial} {
		err := s.forEachLive(table, func(record *matrixRecord) error {
			if record.Partial == nil {
				return nil
			}
			if record.Partial.PreHeatSource != "" {
				seen[record.Partial.PreHeatSource] = struct{}{}
			}
			if record.Partial.PostHeatSource != "" {
				seen[record.Partial.PostHeatSource] = struct{}{}
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan heat sources: %w", err)
		}
	}
	return sortedKeys(seen), nil
}

func (s *MatrixStorage) MeasureTypes(ctx context.Context, table models.MatrixTable) (map[string][]string, error) {
	grouped := make(map[string]map[string]struct{})
	err := s.forEachLive(table, func(record *matrixRecord) error {
		row := record.Partial
		if row == nil {
			return nil
		}
		if grouped[row.MeasureCategory] == nil {
			grouped[row.MeasureCategory] = make(map[string]struct{})
		}
		grouped[row.MeasureCategory][row.MeasureType] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s measure types: %w", table, err)
	}

	result := make(map[string][]string, len(grouped))
	for category, types := range grouped {
		result[category] = sortedKeys(types)
	}
	return result, nil
}

func (s *MatrixStorage) Stats(ctx context.Context) (*models.MatrixStats, error) {
	stats := &models.MatrixStats{Tables: make(map[models.MatrixTable]int, len(models.AllMatrixTables))}
	store := s.db.Store()

	err := store.Badger().View(func(tx *badger.Txn) error {
		for _, table := range models.AllMatrixTables {
			generation, ok, err := s.liveGeneration(tx, table)
			if err != nil {
				return err
			}
			count := 0
			if ok {
				n, err := store.TxCount(tx, &matrixRecord{}, liveQuery(table, generation))
				if err != nil {
					return fmt.Errorf("failed to count %s rows: %w", table, err)
				}
				count = int(n)
			}
			stats.Tables[table] = count
			stats.Total += count
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// ReplacePartialTable swaps in a new generation of the table
func (s *MatrixStorage) ReplacePartialTable(ctx context.Context, table models.MatrixTable, rows []models.PartialScoreRow) error {
	records := make([]matrixRecord, len(rows))
	for i := range rows {
		row := rows[i]
		row.Table = table
		if row.ID == "" {
			row.ID = models.MatrixRowID(table, row.Seq)
		}
		records[i] = matrixRecord{Table: table, Slot: i, Partial: &row}
	}
	return s.replace(ctx, table, records)
}

// ReplaceFullTable swaps in a new generation of the full-project table
func (s *MatrixStorage) ReplaceFullTable(ctx context.Context, rows []models.FullProjectRow) error {
	records := make([]matrixRecord, len(rows))
	for i := range rows {
		row := rows[i]
		if row.ID == "" {
			row.ID = models.MatrixRowID(models.TableFullProject, row.Seq)
		}
		records[i] = matrixRecord{Table: models.TableFullProject, Slot: i, Full: &row}
	}
	return s.replace(ctx, models.TableFullProject, records)
}

// replace writes records as the next generation in chunks, then moves the
// generation pointer in a single transaction. Readers see either the old table
// or the new one. A failed write leaves the old generation live.
func (s *MatrixStorage) replace(ctx context.Context, table models.MatrixTable, records []matrixRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	store := s.db.Store()

	var live uint64
	err := store.Badger().View(func(tx *badger.Txn) error {
		var err error
		live, _, err = s.liveGeneration(tx, table)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", table, err)
	}

	// Leftovers of an interrupted import would collide with the next generation
	if _, err := s.purge(ctx, table, live); err != nil {
		return fmt.Errorf("failed to replace %s: %w", table, err)
	}

	next := live + 1
	if err := s.writeGeneration(ctx, table, next, records); err != nil {
		if _, cleanupErr := s.purge(context.Background(), table, live); cleanupErr != nil {
			s.logger.Warn().Err(cleanupErr).Str("table", string(table)).Msg("Failed to remove partial matrix import")
		}
		return fmt.Errorf("failed to replace %s: %w", table, err)
	}

	err = store.Badger().Update(func(tx *badger.Txn) error {
		return store.TxUpsert(tx, string(table), &matrixGeneration{Table: table, Generation: next})
	})
	if err != nil {
		if _, cleanupErr := s.purge(context.Background(), table, live); cleanupErr != nil {
			s.logger.Warn().Err(cleanupErr).Str("table", string(table)).Msg("Failed to remove partial matrix import")
		}
		return fmt.Errorf("failed to replace %s: failed to switch generation: %w", table, err)
	}

	removed, err := s.purge(context.Background(), table, next)
	if err != nil {
		// Stale rows are invisible to readers and removed by the next import
		s.logger.Warn().Err(err).Str("table", string(table)).Msg("Failed to remove previous matrix generation")
	}

	s.logger.Debug().
		Str("table", string(table)).
		Int("rows", len(records)).
		Int64("generation", int64(next)).
		Int("removed", removed).
		Msg("Replaced matrix table")
	return nil
}

func (s *MatrixStorage) writeGeneration(ctx context.Context, table models.MatrixTable, generation uint64, records []matrixRecord) error {
	store := s.db.Store()
	for start := 0; start < len(records); start += writeChunk {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + writeChunk
		if end > len(records) {
			end = len(records)
		}

		err := store.Badger().Update(func(tx *badger.Txn) error {
			for i := start; i < end; i++ {
				record := records[i]
				record.Generation = generation
				if err := store.TxInsert(tx, recordKey(table, generation, record.Slot), &record); err != nil {
					return fmt.Errorf("failed to insert row %s: %w", rowID(&record), err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// purge deletes every record of table outside generation keep, in chunks
func (s *MatrixStorage) purge(ctx context.Context, table models.MatrixTable, keep uint64) (int, error) {
	store := s.db.Store()
	removed := 0

	for {
		if err := ctx.Err(); err != nil {
			return removed, err
		}

		var stale []matrixRecord
		query := badgerhold.Where("Table").Eq(table).And("Generation").Ne(keep).Limit(writeChunk)
		if err := store.Find(&stale, query); err != nil {
			return removed, fmt.Errorf("failed to find stale rows: %w", err)
		}
		if len(stale) == 0 {
			return removed, nil
		}

		err := store.Badger().Update(func(tx *badger.Txn) error {
			for _, record := range stale {
				if err := store.TxDelete(tx, recordKey(record.Table, record.Generation, record.Slot), &matrixRecord{}); err != nil {
					return fmt.Errorf("failed to delete row %s: %w", rowID(&record), err)
				}
			}
			return nil
		})
		if err != nil {
			return removed, err
		}
		removed += len(stale)
	}
}

func rowID(record *matrixRecord) string {
	switch {
	case record.Partial != nil:
		return record.Partial.ID
	case record.Full != nil:
		return record.Full.ID
	default:
		return recordKey(record.Table, record.Generation, record.Slot)
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
