// Package token owns the OAuth token lifecycle: the authorization-code dance,
// refresh, and keyed persistence of exactly one token pair per subject.
package token

import (
	"context"
	"sync"

	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
)

// Store is a durable mapping from subject id to its latest token pair.
// Set overwrites: no two valid pairs coexist for one subject.
type Store interface {
	Get(ctx context.Context, subject string) (*entity.AuthTokens, error)
	Set(ctx context.Context, subject string, tokens *entity.AuthTokens) error
}

// MemoryStore keeps token pairs in process memory. Suitable for tests and the
// single-user console flow.
type MemoryStore struct {
	mu     sync.RWMutex
	tokens map[string]entity.AuthTokens
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]entity.AuthTokens)}
}

func (s *MemoryStore) Get(_ context.Context, subject string) (*entity.AuthTokens, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens, ok := s.tokens[subject]
	if !ok {
		return nil, errs.ErrNotFound
	}

	return &tokens, nil
}

func (s *MemoryStore) Set(_ context.Context, subject string, tokens *entity.AuthTokens) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[subject] = *tokens

	return nil
}
