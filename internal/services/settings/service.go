// Package settings provides the rate parameters used by calculations.
// Stored overrides in the key/value store take precedence over configured
// defaults, and are served from a cached snapshot.
package settings

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/interfaces"
	"github.com/ternarybob/ecocalc/internal/models"
)

var (
	// ErrUnknownSetting is returned when writing a key that is not a rate parameter
	ErrUnknownSetting = errors.New("unknown setting")

	// ErrInvalidValue is returned when a setting value fails validation
	ErrInvalidValue = errors.New("invalid setting value")
)

// definition describes one writable setting
type definition struct {
	description string
	min         decimal.Decimal
}

var definitions = map[string]definition{
	models.SettingRatePerUnit: {
		description: "Currency rate applied to annual bill savings to give PPS points",
		min:         decimal.Zero,
	},
	models.SettingInnovationMultiplier: {
		description: "Multiplier applied to PPS points of innovation measures",
		min:         decimal.NewFromInt(1),
	},
}

// Service implements interfaces.SettingsProvider over the key/value store
type Service struct {
	kv       interfaces.KeyValueStorage
	defaults map[string]string
	logger   arbor.ILogger

	mu         sync.RWMutex
	snapshot   map[string]interfaces.KeyValuePair
	cacheValid bool
}

// NewService creates a settings service. defaults are the configured values
// used when the store holds no override.
func NewService(kv interfaces.KeyValueStorage, defaults map[string]string, logger arbor.ILogger) *Service {
	copied := make(map[string]string, len(defaults))
	for k, v := range defaults {
		copied[k] = v
	}
	return &Service{
		kv:       kv,
		defaults: copied,
		logger:   logger,
	}
}

// Get returns the stored override, the configured default, or defaultValue, in that order
func (s *Service) Get(ctx context.Context, key string, defaultValue string) (string, error) {
	snapshot, err := s.load(ctx)
	if err != nil {
		return "", err
	}

	if pair, ok := snapshot[key]; ok {
		return pair.Value, nil
	}
	if v, ok := s.defaults[key]; ok {
		return v, nil
	}
	return defaultValue, nil
}

// Snapshot returns configured defaults overlaid with stored overrides, taken
// from a single cached snapshot. The returned map is owned by the caller.
func (s *Service) Snapshot(ctx context.Context) (map[string]string, error) {
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(s.defaults)+len(snapshot))
	for k, v := range s.defaults {
		values[k] = v
	}
	for k, pair := range snapshot {
		values[k] = pair.Value
	}
	return values, nil
}

// Decimal returns a setting parsed as a decimal
func (s *Service) Decimal(ctx context.Context, key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	raw, err := s.Get(ctx, key, defaultValue.String())
	if err != nil {
		return decimal.Zero, err
	}
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("setting %s is not a number (%q): %w", key, raw, err)
	}
	return value, nil
}

// Set validates and stores an override, then invalidates the cache
func (s *Service) Set(ctx context.Context, key string, value string) error {
	def, ok := definitions[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return fmt.Errorf("%w: %s must be a number", ErrInvalidValue, key)
	}
	if parsed.LessThan(def.min) {
		return fmt.Errorf("%w: %s must be at least %s", ErrInvalidValue, key, def.min)
	}

	if err := s.kv.Set(ctx, key, parsed.String(), def.description); err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to store setting")
		return err
	}

	s.InvalidateCache()
	s.logger.Info().Str("key", key).Str("value", parsed.String()).Msg("Setting updated")
	return nil
}

// Reset removes a stored override so the configured default applies again
func (s *Service) Reset(ctx context.Context, key string) error {
	if _, ok := definitions[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}

	err := s.kv.Delete(ctx, key)
	if err != nil && !errors.Is(err, interfaces.ErrKeyNotFound) {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to reset setting")
		return err
	}

	s.InvalidateCache()
	s.logger.Info().Str("key", key).Msg("Setting reset to default")
	return nil
}

// List returns every rate parameter with its effective value
func (s *Service) List(ctx context.Context) ([]models.Setting, error) {
	snapshot, err := s.load(ctx)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(definitions))
	for k := range definitions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := make([]models.Setting, 0, len(keys))
	for _, key := range keys {
		setting := models.Setting{
			Key:         key,
			Value:       s.defaults[key],
			Default:     s.defaults[key],
			Description: definitions[key].description,
		}
		if pair, ok := snapshot[key]; ok {
			updated := pair.UpdatedAt
			setting.Value = pair.Value
			setting.Overridden = true
			setting.UpdatedAt = &updated
		}
		result = append(result, setting)
	}
	return result, nil
}

// Refresh reloads the snapshot from storage. On failure the previous snapshot
// stays in use.
func (s *Service) Refresh(ctx context.Context) error {
	snapshot, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snapshot = snapshot
	s.cacheValid = true
	s.mu.Unlock()
	return nil
}

// InvalidateCache forces the next read to go to storage
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	s.cacheValid = false
	s.mu.Unlock()
}

func (s *Service) load(ctx context.Context) (map[string]interfaces.KeyValuePair, error) {
	s.mu.RLock()
	if s.cacheValid {
		snapshot := s.snapshot
		s.mu.RUnlock()
		return snapshot, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have rebuilt the cache while we waited
	if s.cacheValid {
		return s.snapshot, nil
	}

	snapshot, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.snapshot = snapshot
	s.cacheValid = true
	return snapshot, nil
}

func (s *Service) fetch(ctx context.Context) (map[string]interfaces.KeyValuePair, error) {
	pairs, err := s.kv.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	snapshot := make(map[string]interfaces.KeyValuePair, len(pairs))
	for _, pair := range pairs {
		if _, ok := definitions[pair.Key]; ok {
			snapshot[pair.Key] = pair
		}
	}

	s.logger.Debug().Int("overrides", len(snapshot)).Msg("Settings snapshot loaded")
	return snapshot, nil
}
