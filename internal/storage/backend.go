// Package storage implements the quota-aware key-value store that persists
// application collections.
package storage

import (
	"context"
	"sync"
)

// Backend is the raw key-value persistence surface. Implementations report a
// missing key as (nil, nil) from Get.
type Backend interface {
	// Get returns the stored value or nil when absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes the value under key in a single call.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes the key; absent keys are not an error.
	Delete(ctx context.Context, key string) error
	// Sizes returns the stored value length per key, for quota accounting.
	Sizes(ctx context.Context) (map[string]int, error)
}

// Memory is a map-backed Backend for tests and for degraded operation when no
// durable backend is available.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ Backend = (*Memory)(nil)

// NewMemory constructs an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.data[key] = cp
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Sizes(_ context.Context) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]int, len(m.data))
	for k, v := range m.data {
		out[k] = len(v)
	}
	return out, nil
}
