package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store bounded by a maximum entry count.
// When full, the least recently written entry is evicted.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    map[string]*list.Element
	order      *list.List // front is the oldest write
	maxEntries int
	onEvict    func(count int)
}

// NewMemoryStore creates a memory store. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
	}
}

// OnEvict registers a callback invoked with the number of entries evicted
// for capacity.
func (m *MemoryStore) OnEvict(fn func(count int)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onEvict = fn
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	el, ok := m.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return el.Value.(*Entry).clone(), nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, entry *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry.clone()
	if el, ok := m.entries[e.Key]; ok {
		el.Value = e
		m.order.MoveToBack(el)
		return nil
	}

	evicted := 0
	for m.maxEntries > 0 && m.order.Len() >= m.maxEntries {
		m.removeElement(m.order.Front())
		evicted++
	}

	m.entries[e.Key] = m.order.PushBack(e)

	if evicted > 0 && m.onEvict != nil {
		m.onEvict(evicted)
	}
	return nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.entries[key]; ok {
		m.removeElement(el)
	}
	return nil
}

// InvalidateTag implements Store.
func (m *MemoryStore) InvalidateTag(_ context.Context, tag string) (int, error) {
	return m.removeWhere(func(e *Entry) bool { return e.HasTag(tag) }), nil
}

// PruneExpired implements Store.
func (m *MemoryStore) PruneExpired(_ context.Context, before time.Time) (int, error) {
	return m.removeWhere(func(e *Entry) bool { return e.ExpiresAt.Before(before) }), nil
}

// Purge implements Store.
func (m *MemoryStore) Purge(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.order.Len()
	m.entries = make(map[string]*list.Element)
	m.order.Init()
	return n, nil
}

// Len implements Store.
func (m *MemoryStore) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.order.Len(), nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	return nil
}

func (m *MemoryStore) removeWhere(match func(*Entry) bool) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for el := m.order.Front(); el != nil; {
		next := el.Next()
		if match(el.Value.(*Entry)) {
			m.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

func (m *MemoryStore) removeElement(el *list.Element) {
	m.order.Remove(el)
	delete(m.entries, el.Value.(*Entry).Key)
}
