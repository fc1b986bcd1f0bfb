package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/ecocalc/internal/interfaces"
)

// KVStorage implements interfaces.KeyValueStorage in memory. Keys are
// case-insensitive, as in the Badger store.
type KVStorage struct {
	mu     sync.RWMutex
	pairs  map[string]interfaces.KeyValuePair
	logger arbor.ILogger
}

// NewKVStorage creates an empty in-memory key/value store
func NewKVStorage(logger arbor.ILogger) interfaces.KeyValueStorage {
	return &KVStorage{
		pairs:  make(map[string]interfaces.KeyValuePair),
		logger: logger,
	}
}

func (s *KVStorage) Get(ctx context.Context, key string) (string, error) {
	pair, err := s.GetPair(ctx, key)
	if err != nil {
		return "", err
	}
	return pair.Value, nil
}

func (s *KVStorage) GetPair(ctx context.Context, key string) (*interfaces.KeyValuePair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pair, ok := s.pairs[normalizeKey(key)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrKeyNotFound, key)
	}
	return &pair, nil
}

func (s *KVStorage) Set(ctx context.Context, key string, value string, description string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key = normalizeKey(key)
	now := time.Now()
	pair, ok := s.pairs[key]
	if !ok {
		pair = interfaces.KeyValuePair{Key: key, CreatedAt: now}
	}
	pair.Value = value
	pair.Description = description
	pair.UpdatedAt = now
	s.pairs[key] = pair
	return nil
}

func (s *KVStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := normalizeKey(key)
	if _, ok := s.pairs[normalized]; !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrKeyNotFound, key)
	}
	delete(s.pairs, normalized)
	return nil
}

func (s *KVStorage) List(ctx context.Context) ([]interfaces.KeyValuePair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pairs := make([]interfaces.KeyValuePair, 0, len(s.pairs))
	for _, p := range s.pairs {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].UpdatedAt.After(pairs[j].UpdatedAt) })
	return pairs, nil
}

func (s *KVStorage) GetAll(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]string, len(s.pairs))
	for k, p := range s.pairs {
		result[k] = p.Value
	}
	return result, nil
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
