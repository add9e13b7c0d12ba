package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/raphaelgruber/legalchat/internal/models"
)

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[models.ConversationID]*models.ConversationState
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[models.ConversationID]*models.ConversationState)}
}

func (s *MemoryStore) Load(_ context.Context, id models.ConversationID) (*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.convs[id]; ok {
		return c.Clone(), nil
	}
	return models.NewConversationState(id), nil
}

func (s *MemoryStore) Commit(_ context.Context, id models.ConversationID, expectedVersion int64, m models.Mutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.convs[id]
	if !ok {
		c = models.NewConversationState(id)
	}
	if c.Version != expectedVersion {
		return fmt.Errorf("%w: %s at version %d, expected %d", ErrStateConflict, id, c.Version, expectedVersion)
	}

	next := c.Clone()
	next.Apply(m)
	s.convs[id] = next
	return nil
}

// Conversations returns the IDs of all stored conversations.
func (s *MemoryStore) Conversations() []models.ConversationID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]models.ConversationID, 0, len(s.convs))
	for id := range s.convs {
		ids = append(ids, id)
	}
	return ids
}

func (s *MemoryStore) Close() error { return nil }
