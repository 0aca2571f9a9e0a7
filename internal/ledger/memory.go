package ledger

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store for tests and embedding.
// It honors the same contract as FileStore: Load returns a copy, Save
// validates the invariant before committing.
type MemoryStore struct {
	mu     sync.RWMutex
	ledger Ledger
}

// NewMemoryStore creates an empty in-memory ledger store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{ledger: Ledger{}}
}

// Load returns a copy of the current ledger.
func (s *MemoryStore) Load(ctx context.Context) (Ledger, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ledger.Clone(), nil
}

// Save replaces the stored ledger after validating it.
func (s *MemoryStore) Save(ctx context.Context, l Ledger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := l.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = l.Clone()
	return nil
}

// Reset replaces the stored ledger with an empty one.
func (s *MemoryStore) Reset(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ledger = Ledger{}
	return nil
}
