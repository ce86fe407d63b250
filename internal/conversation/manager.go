package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/persona"
)

// State is a step of the session lifecycle.
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateResumed
	StateFresh
	StateActive
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateResumed:
		return "resumed"
	case StateFresh:
		return "fresh"
	case StateActive:
		return "active"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SessionState is the outcome of Initialize. State is StateResumed or
// StateFresh; the manager itself is StateActive afterwards.
type SessionState struct {
	State     State            `json:"-"`
	SessionID string           `json:"session_id,omitempty"`
	Messages  []models.Message `json:"messages"`

	// Welcome is a display-only line for a resumed session. It is never
	// appended or stored.
	Welcome string `json:"welcome,omitempty"`
}

// Manager holds one user's active conversation.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	// saveMu serializes Persist and Reset so an identifier-less insert can
	// never run twice for the same session.
	saveMu sync.Mutex

	mu        sync.RWMutex
	state     State
	userID    string
	sessionID string
	messages  []models.Message
	// gen changes on Reset so an in-flight save can't re-adopt a cleared id.
	gen uint64
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager in StateUninitialized.
func NewManager(store Store, logger *slog.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		store:  store,
		logger: logger.With("component", "conversation"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize loads the latest conversation of userID. A non-empty record
// is resumed verbatim; otherwise a single greeting is synthesized and the
// session id stays unset until the first save.
func (m *Manager) Initialize(ctx context.Context, userID string, prefs models.Preferences) (SessionState, error) {
	m.mu.Lock()
	if m.state != StateUninitialized {
		m.mu.Unlock()
		return SessionState{}, ErrAlreadyInitialized
	}
	m.state = StateLoading
	m.userID = userID
	m.mu.Unlock()

	conv, err := m.store.LatestConversation(ctx, userID)
	if err != nil {
		m.mu.Lock()
		m.state = StateUninitialized
		m.mu.Unlock()
		return SessionState{}, fmt.Errorf("load conversation: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	out := SessionState{}
	if conv != nil && len(conv.Messages) > 0 {
		m.sessionID = conv.ID
		m.messages = models.CloneMessages(conv.Messages)
		out.State = StateResumed
	} else {
		greeting, gerr := models.NewMessage(models.RoleAssistant, persona.Greeting(prefs), m.now())
		if gerr != nil {
			m.state = StateUninitialized
			return SessionState{}, fmt.Errorf("greeting: %w", gerr)
		}
		m.sessionID = ""
		m.messages = []models.Message{greeting}
		out.State = StateFresh
	}
	m.state = StateActive
	out.SessionID = m.sessionID
	out.Messages = models.CloneMessages(m.messages)

	m.logger.Debug("session initialized",
		"user_id", userID,
		"state", out.State.String(),
		"session_id", out.SessionID,
		"messages", len(out.Messages))
	return out, nil
}

// Append adds a message and persists immediately. A *PersistError means
// the message was appended but the save failed.
func (m *Manager) Append(ctx context.Context, role models.Role, text string) (models.Message, error) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return models.Message{}, ErrNotActive
	}
	at := m.now()
	if n := len(m.messages); n > 0 && at.Before(m.messages[n-1].Timestamp) {
		at = m.messages[n-1].Timestamp
	}
	msg, err := models.NewMessage(role, text, at)
	if err != nil {
		m.mu.Unlock()
		if errors.Is(err, models.ErrEmptyContent) {
			return models.Message{}, ErrEmptyMessage
		}
		return models.Message{}, err
	}
	m.messages = append(m.messages, msg)
	m.mu.Unlock()

	if err := m.Persist(ctx); err != nil {
		return msg, err
	}
	return msg, nil
}

// Persist saves the full message list. On the first successful save the
// returned id is adopted for all later saves.
func (m *Manager) Persist(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.RLock()
	if m.state != StateActive {
		m.mu.RUnlock()
		return ErrNotActive
	}
	conv := models.Conversation{
		ID:          m.sessionID,
		UserID:      m.userID,
		Messages:    models.CloneMessages(m.messages),
		LastUpdated: m.now().UTC(),
	}
	gen := m.gen
	m.mu.RUnlock()

	id, err := m.store.SaveConversation(ctx, conv)
	if err != nil {
		m.logger.Warn("failed to persist conversation",
			"user_id", conv.UserID,
			"session_id", conv.ID,
			"error", err)
		return &PersistError{Err: err}
	}

	m.mu.Lock()
	if m.gen == gen && m.sessionID == "" && id != "" {
		m.sessionID = id
		m.logger.Debug("adopted session id", "user_id", conv.UserID, "session_id", id)
	}
	m.mu.Unlock()
	return nil
}

// Reset clears the history: the remote record is deleted (if one exists)
// and the local list becomes a single assistant notice. The session id is
// unset, so the next save inserts a new record.
func (m *Manager) Reset(ctx context.Context) error {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.mu.RLock()
	state, id, userID := m.state, m.sessionID, m.userID
	m.mu.RUnlock()
	if state != StateActive {
		return ErrNotActive
	}

	if id != "" {
		if err := m.store.DeleteConversation(ctx, id); err != nil {
			return fmt.Errorf("delete conversation: %w", err)
		}
	}

	notice, err := models.NewMessage(models.RoleAssistant, persona.ClearedGreeting, m.now())
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.messages = []models.Message{notice}
	m.sessionID = ""
	m.gen++
	m.mu.Unlock()

	m.logger.Info("conversation cleared", "user_id", userID, "session_id", id)
	return nil
}

// Messages returns a copy of the current list in display order.
func (m *Manager) Messages() []models.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return models.CloneMessages(m.messages)
}

// SessionID returns the adopted id, or "" before the first save.
func (m *Manager) SessionID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessionID
}

// State returns the lifecycle state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// UserID returns the owner of the session.
func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}
