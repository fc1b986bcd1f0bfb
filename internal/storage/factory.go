package storage

import (
	"errors"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/common"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/storage/badger"
	"github.com/ternarybob/ecocalc/internal/storage/memory"
	"github.com/ternarybob/ecocalc/internal/storage/sqlite"
)

// Manager composes the rate matrix, settings and calculation history backends
type Manager struct {
	matrix       interfaces.RateMatrix
	kv           interfaces.KeyValueStorage
	calculations interfaces.CalculationStorage
	closers      []func() error
	logger       arbor.ILogger
}

// NewStorageManager opens the backends selected by config. The rate matrix and
// settings live in Badger (or memory), calculation history in SQLite.
func NewStorageManager(logger arbor.ILogger, config *common.Config) (interfaces.StorageManager, error) {
	m := &Manager{logger: logger}

	switch config.Matrix.Backend {
	case common.MatrixBackendMemory:
		m.matrix = memory.NewMatrixStorage(logger)
		m.kv = memory.NewKVStorage(logger)
	case common.MatrixBackendBadger, "":
		badgerManager, err := badger.NewManager(logger, &config.Storage.Badger)
		if err != nil {
			return nil, fmt.Errorf("failed to open matrix storage: %w", err)
		}
		m.matrix = badgerManager.RateMatrix()
		m.kv = badgerManager.KeyValueStorage()
		m.closers = append(m.closers, badgerManager.Close)
	default:
		return nil, fmt.Errorf("unsupported matrix backend: %s", config.Matrix.Backend)
	}

	db, err := sqlite.NewSQLiteDB(logger, &config.Storage.SQLite)
	if err != nil {
		m.Close()
		return nil, fmt.Errorf("failed to open calculation storage: %w", err)
	}
	calculations := sqlite.NewCalculationStorage(db, logger)
	m.calculations = calculations
	m.closers = append(m.closers, calculations.Close)

	logger.Info().
		Str("matrix_backend", config.Matrix.Backend).
		Str("sqlite_path", config.Storage.SQLite.Path).
		Msg("Storage manager initialized")

	return m, nil
}

// RateMatrix returns the rate matrix store
func (m *Manager) RateMatrix() interfaces.RateMatrix {
	return m.matrix
}

// KeyValueStorage returns the settings store
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// CalculationStorage returns the calculation recorder
func (m *Manager) CalculationStorage() interfaces.CalculationStorage {
	return m.calculations
}

// Close closes every opened backend, newest first
func (m *Manager) Close() error {
	var errs []error
	for i := len(m.closers) - 1; i >= 0; i-- {
		if err := m.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	m.closers = nil
	return errors.Join(errs...)
}
