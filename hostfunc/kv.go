package hostfunc

import (
	"errors"
	"sort"
	"sync"
)

const (
	DefaultKVMaxKeySize   = 256
	DefaultKVMaxValueSize = 64 * 1024
	DefaultKVMaxEntries   = 1000
)

var (
	ErrKVKeyRequired   = errors.New("key required")
	ErrKVKeyTooLarge   = errors.New("key exceeds max size")
	ErrKVValueTooLarge = errors.New("value exceeds max size")
	ErrKVFull          = errors.New("store is full")
)

type KVConfig struct {
	MaxKeySize   int
	MaxValueSize int
	MaxEntries   int
}

func DefaultKVConfig() KVConfig {
	return KVConfig{
		MaxKeySize:   DefaultKVMaxKeySize,
		MaxValueSize: DefaultKVMaxValueSize,
		MaxEntries:   DefaultKVMaxEntries,
	}
}

// KVStore is a string store shared by every rule file run in one environment,
// so an earlier file can leave notes for a later one.
type KVStore struct {
	cfg  KVConfig
	data map[string]string
	mu   sync.RWMutex
}

func NewKVStore(cfg KVConfig) *KVStore {
	if cfg.MaxKeySize <= 0 {
		cfg.MaxKeySize = DefaultKVMaxKeySize
	}
	if cfg.MaxValueSize <= 0 {
		cfg.MaxValueSize = DefaultKVMaxValueSize
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultKVMaxEntries
	}
	return &KVStore{cfg: cfg, data: make(map[string]string)}
}

// Get returns the stored value, or fallback when the key is unset.
func (s *KVStore) Get(key string, fallback ...string) string {
	s.mu.RLock()
	val, ok := s.data[key]
	s.mu.RUnlock()

	if !ok && len(fallback) > 0 {
		return fallback[0]
	}
	return val
}

func (s *KVStore) Has(key string) bool {
	s.mu.RLock()
	_, ok := s.data[key]
	s.mu.RUnlock()
	return ok
}

func (s *KVStore) Set(key, value string) error {
	if key == "" {
		return ErrKVKeyRequired
	}
	if len(key) > s.cfg.MaxKeySize {
		return ErrKVKeyTooLarge
	}
	if len(value) > s.cfg.MaxValueSize {
		return ErrKVValueTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; !exists && len(s.data) >= s.cfg.MaxEntries {
		return ErrKVFull
	}
	s.data[key] = value
	return nil
}

func (s *KVStore) Delete(key string) {
	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
}

// Keys returns the stored keys in sorted order.
func (s *KVStore) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}
