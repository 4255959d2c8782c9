package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
)

// MemoryRepository keeps documents in process memory. Values are stored
// encoded so callers never share mutable state with the repository.
type MemoryRepository struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{docs: make(map[string][]byte)}
}

func (r *MemoryRepository) Load(_ context.Context, key string, v any) (bool, error) {
	r.mu.RLock()
	value, ok := r.docs[key]
	r.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(value, v); err != nil {
		return false, fmt.Errorf("failed to decode state[%s]: %w", key, err)
	}
	return true, nil
}

func (r *MemoryRepository) Save(_ context.Context, key string, v any) error {
	value, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode state[%s]: %w", key, err)
	}
	r.mu.Lock()
	r.docs[key] = value
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.docs, key)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Keys(context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.docs))
	for k := range r.docs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (r *MemoryRepository) Clear(context.Context) error {
	r.mu.Lock()
	r.docs = make(map[string][]byte)
	r.mu.Unlock()
	return nil
}

// Raw returns the encoded document under key. Tests use it to check what
// was persisted.
func (r *MemoryRepository) Raw(key string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.docs[key]
	return v, ok
}
