package store

import (
	"context"
	"sync"
)

// MemoryBackend keeps state in process memory. It is meant for tests.
type MemoryBackend struct {
	mu      sync.Mutex
	state   State
	saves   int
	SaveErr error // returned by Save when set
}

// NewMemoryBackend returns a backend preloaded with st.
func NewMemoryBackend(st State) *MemoryBackend {
	return &MemoryBackend{state: st.clone()}
}

func (m *MemoryBackend) Load(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone(), nil
}

func (m *MemoryBackend) Save(ctx context.Context, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.state = st.clone()
	m.saves++
	return nil
}

// Saves reports how many successful saves have happened.
func (m *MemoryBackend) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// Snapshot returns a copy of the last saved state.
func (m *MemoryBackend) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *MemoryBackend) Close() error { return nil }
