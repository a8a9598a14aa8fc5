package generation

import (
	"context"
	"sync"

	"github.com/spigell/hh-coverbot/internal/entity"
	"github.com/spigell/hh-coverbot/internal/errs"
)

// Key addresses one durable draft slot. Keying by (user, vacancy) instead of
// user alone keeps drafts for different vacancies from clobbering each other.
type Key struct {
	UserID    string
	VacancyID string
}

// Checkpoints is the durable store of workflow state. Concurrent writes for
// the same key are the caller's problem: one chat session per user is assumed.
type Checkpoints interface {
	Get(ctx context.Context, key Key) (*entity.WorkflowState, error)
	Put(ctx context.Context, key Key, state *entity.WorkflowState) error
	// Latest returns the most recently updated state across the user's drafts.
	Latest(ctx context.Context, userID string) (*entity.WorkflowState, error)
}

// MemoryCheckpoints keeps workflow state in process memory.
type MemoryCheckpoints struct {
	mu     sync.RWMutex
	states map[Key]entity.WorkflowState
}

func NewMemoryCheckpoints() *MemoryCheckpoints {
	return &MemoryCheckpoints{states: make(map[Key]entity.WorkflowState)}
}

func (s *MemoryCheckpoints) Get(_ context.Context, key Key) (*entity.WorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.states[key]
	if !ok {
		return nil, errs.ErrNotFound
	}

	return &state, nil
}

func (s *MemoryCheckpoints) Put(_ context.Context, key Key, state *entity.WorkflowState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states[key] = *state

	return nil
}

func (s *MemoryCheckpoints) Latest(_ context.Context, userID string) (*entity.WorkflowState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *entity.WorkflowState
	for key, state := range s.states {
		if key.UserID != userID {
			continue
		}
		if latest == nil || state.UpdatedAt.After(latest.UpdatedAt) {
			copied := state
			latest = &copied
		}
	}

	if latest == nil {
		return nil, errs.ErrNotFound
	}

	return latest, nil
}
