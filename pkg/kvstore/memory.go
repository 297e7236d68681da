package kvstore

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryMedium keeps entries in process memory. A positive quota caps the
// total size of keys and values in bytes.
type MemoryMedium struct {
	mu      sync.RWMutex
	entries map[string]Entry
	quota   int
	now     func() time.Time
}

func NewMemoryMedium(quota int) *MemoryMedium {
	return &MemoryMedium{
		entries: map[string]Entry{},
		quota:   quota,
		now:     time.Now,
	}
}

func (m *MemoryMedium) Get(_ context.Context, key string) (Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[key]
	return e, ok, nil
}

func (m *MemoryMedium) Put(_ context.Context, key, value, origin string) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.quota > 0 {
		total := entrySize(key, value)
		for k, e := range m.entries {
			if k != key {
				total += entrySize(k, e.Value)
			}
		}
		if total > m.quota {
			return Entry{}, ErrQuotaExceeded
		}
	}

	e := m.entries[key]
	e.Key = key
	e.Value = value
	e.Origin = origin
	e.Revision++
	e.UpdatedAt = m.now()
	m.entries[key] = e
	return e, nil
}

func (m *MemoryMedium) List(_ context.Context) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
