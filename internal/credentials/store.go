// Package credentials persists the shared secrets the panel attaches to
// authenticated host calls, one secret per purpose.
package credentials

import (
	"sync"
)

// Purpose names a logical credential category. Purposes are stored
// independently.
type Purpose string

const (
	// PurposeBasic guards start, wake and ip.
	PurposeBasic Purpose = "basic_token"
	// PurposeStop guards stop only.
	PurposeStop Purpose = "stop_token"
)

// Store holds at most one secret per purpose. Absence is a valid state:
// Get reports it through ok=false. Set and Clear always take effect in
// memory; a returned error only means the change could not be made durable.
type Store interface {
	Get(purpose Purpose) (secret string, ok bool)
	Set(purpose Purpose, secret string) error
	Clear(purpose Purpose) error
}

// MemoryStore is a process-lifetime Store.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[Purpose]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[Purpose]string)}
}

func (s *MemoryStore) Get(purpose Purpose) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[purpose]
	return secret, ok
}

func (s *MemoryStore) Set(purpose Purpose, secret string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[purpose] = secret
	return nil
}

func (s *MemoryStore) Clear(purpose Purpose) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, purpose)
	return nil
}
