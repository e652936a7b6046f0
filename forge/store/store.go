// Package store persists conversation state snapshots keyed by conversation
// id.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/promptforge/promptforge/forge/convstate"
)

// ErrNotFound is returned when no snapshot exists for a conversation id.
var ErrNotFound = errors.New("conversation not found")

// ConversationStore saves and restores conversation state snapshots.
type ConversationStore interface {
	Save(ctx context.Context, id string, state *convstate.ConversationState) error
	Load(ctx context.Context, id string) (*convstate.ConversationState, error)
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) error
}

// NewID returns a fresh conversation id.
func NewID() string { return uuid.NewString() }
