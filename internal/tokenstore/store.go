// Package tokenstore persists the single bearer token that survives
// gateway restarts. Only login, signup, and logout write it; everything
// else reads it per request.
package tokenstore

import "sync"

// Store holds the persisted authentication token.
type Store interface {
	// Token returns the stored token and whether one is present.
	Token() (string, bool)
	SetToken(token string) error
	Clear() error
}

// MemoryStore keeps the token in-process. Used in tests and when no
// token file is configured.
type MemoryStore struct {
	mu    sync.RWMutex
	token string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

func (m *MemoryStore) SetToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	return nil
}
