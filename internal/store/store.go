// Package store persists conversation state. Every backend commits a
// mutation only when the stored version equals the version the caller read,
// so concurrent writers to one conversation are detected rather than merged.
package store

import (
	"context"
	"errors"

	"github.com/raphaelgruber/legalchat/internal/models"
)

// ErrStateConflict is returned by Commit when the stored version moved since Load.
var ErrStateConflict = errors.New("conversation state conflict")

// Store is a conversation state backend.
type Store interface {
	// Load returns the state for id. Unknown conversations return an empty state at version 0.
	Load(ctx context.Context, id models.ConversationID) (*models.ConversationState, error)
	// Commit appends the mutation's turns and upserts its offers if the stored
	// version equals expectedVersion; the stored version then becomes expectedVersion+1.
	Commit(ctx context.Context, id models.ConversationID, expectedVersion int64, m models.Mutation) error
	Close() error
}
