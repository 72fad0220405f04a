package core

import "sync"

// Memo remembers successful results for the lifetime of one run. Failures
// are not stored, so a later call with the same key tries again.
type Memo[K comparable, V any] struct {
	mu     sync.Mutex
	values map[K]V
	hits   int64
	misses int64
}

// NewMemo returns an empty Memo.
func NewMemo[K comparable, V any]() *Memo[K, V] {
	return &Memo[K, V]{values: make(map[K]V)}
}

// Do returns the stored value for key or computes, stores and returns it.
func (m *Memo[K, V]) Do(key K, compute func() (V, error)) (V, error) {
	m.mu.Lock()
	if v, ok := m.values[key]; ok {
		m.hits++
		m.mu.Unlock()
		return v, nil
	}
	m.misses++
	m.mu.Unlock()

	v, err := compute()
	if err != nil {
		return v, err
	}
	m.mu.Lock()
	m.values[key] = v
	m.mu.Unlock()
	return v, nil
}

// Len reports the number of stored keys.
func (m *Memo[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

func (m *Memo[K, V]) Stats() (hits, misses int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.hits, m.misses
}

// HitRatio is hits over lookups, zero before the first lookup.
func (m *Memo[K, V]) HitRatio() float64 {
	hits, misses := m.Stats()
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}
