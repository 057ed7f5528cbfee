package credentials

import (
	"context"
	"sync"
)

// MemoryStore keeps the credential in process memory. Used in tests and as a
// fallback when no persistent backend is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	cred *Credential
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(_ context.Context) (*Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return nil, ErrNotFound
	}
	c := *s.cred
	return &c, nil
}

func (s *MemoryStore) Save(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *cred
	s.cred = &c
	return nil
}
