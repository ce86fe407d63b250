package models

import (
	"errors"
	"strings"
	"time"
)

// Role identifies who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is user or assistant.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ErrEmptyContent is returned when a message has no text after trimming.
var ErrEmptyContent = errors.New("message content is empty")

// Message is one chat turn. Messages are never mutated after creation.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewMessage builds a message with trimmed content.
func NewMessage(role Role, content string, at time.Time) (Message, error) {
	if !role.Valid() {
		return Message{}, errors.New("unknown message role: " + string(role))
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return Message{}, ErrEmptyContent
	}
	return Message{Role: role, Content: content, Timestamp: at.UTC()}, nil
}

// Conversation is the persisted chat record for a user. ID is assigned by
// the store on first save and is empty before that.
type Conversation struct {
	ID          string    `json:"id,omitempty"`
	UserID      string    `json:"user_id"`
	Messages    []Message `json:"messages"`
	LastUpdated time.Time `json:"last_updated"`
}

// CloneMessages returns a copy of msgs that shares no backing array.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return []Message{}
	}
	return append(make([]Message, 0, len(msgs)), msgs...)
}
