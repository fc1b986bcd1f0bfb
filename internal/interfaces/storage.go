package interfaces

// StorageManager exposes the configured storage backends
type StorageManager interface {
	RateMatrix() RateMatrix
	KeyValueStorage() KeyValueStorage
	CalculationStorage() CalculationStorage
	Close() error
}
