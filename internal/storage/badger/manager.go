package badger

import (
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/common"
	"github.com/ternarybob/ecocalc/internal/interfaces"
)

// Manager owns the Badger connection and the stores built on it
type Manager struct {
	db     *BadgerDB
	matrix interfaces.RateMatrix
	kv     interfaces.KeyValueStorage
	logger arbor.ILogger
}

// NewManager opens Badger and creates the rate matrix and settings stores
func NewManager(logger arbor.ILogger, config *common.BadgerConfig) (*Manager, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	manager := &Manager{
		db:     db,
		matrix: NewMatrixStorage(db, logger),
		kv:     NewKVStorage(db, logger),
		logger: logger,
	}

	logger.Debug().Str("path", config.Path).Msg("Badger storage manager initialized")

	return manager, nil
}

// RateMatrix returns the rate matrix store
func (m *Manager) RateMatrix() interfaces.RateMatrix {
	return m.matrix
}

// KeyValueStorage returns the settings store
func (m *Manager) KeyValueStorage() interfaces.KeyValueStorage {
	return m.kv
}

// Close closes the database connection
func (m *Manager) Close() error {
	if m.db != nil {
		return m.db.Close()
	}
	return nil
}
