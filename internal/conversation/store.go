// Package conversation owns the active chat session for a user: the
// in-memory message list, its write-through persistence and the
// request/response cycle with the language model.
package conversation

import (
	"context"
	"errors"

	"github.com/raphaelgruber/feelfree-go/internal/models"
)

// Store persists the conversation record of a user.
type Store interface {
	// LatestConversation returns the most recently updated conversation
	// for userID, or (nil, nil) if there is none.
	LatestConversation(ctx context.Context, userID string) (*models.Conversation, error)

	// SaveConversation updates the record in place when conv.ID is set and
	// inserts a new one otherwise. It returns the record's id.
	SaveConversation(ctx context.Context, conv models.Conversation) (string, error)

	// DeleteConversation removes the record. Deleting a missing record is
	// not an error.
	DeleteConversation(ctx context.Context, id string) error
}

// Sentinel errors.
var (
	ErrEmptyMessage       = errors.New("message is empty")
	ErrBusy               = errors.New("an exchange is already in progress")
	ErrNotActive          = errors.New("conversation session is not active")
	ErrAlreadyInitialized = errors.New("conversation session already initialized")
	ErrNoGenerator        = errors.New("no language model configured")
	ErrEmptyReply         = errors.New("language model returned an empty reply")
	ErrClosed             = errors.New("conversation session closed")
)

// PersistError reports a failed save. The in-memory list is kept as is;
// the local conversation stays authoritative.
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return "persist conversation: " + e.Err.Error()
}

func (e *PersistError) Unwrap() error { return e.Err }
