package sessioncache

import (
	"context"
	"sync"
)

// Memory is an in-process [Cache] for tests and single-node development.
type Memory struct {
	mu     sync.Mutex
	states map[string]State

	// FailLoad and FailSave, when set, make the corresponding method
	// return that error. Used to exercise storage-failure paths.
	FailLoad error
	FailSave error
}

var _ Cache = (*Memory)(nil)

// NewMemory creates an empty in-process cache.
func NewMemory() *Memory {
	return &Memory{states: make(map[string]State)}
}

// Load implements [Cache].
func (m *Memory) Load(ctx context.Context, callID string) (State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailLoad != nil {
		return State{}, false, m.FailLoad
	}
	st, ok := m.states[callID]
	return st, ok, nil
}

// Save implements [Cache].
func (m *Memory) Save(ctx context.Context, callID string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSave != nil {
		return m.FailSave
	}
	m.states[callID] = st
	return nil
}
