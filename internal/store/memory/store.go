// Package memory provides in-process implementations of the storage ports.
// Data lives for the lifetime of the process.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/raphaelgruber/feelfree-go/internal/models"
)

// ErrNotFound is returned when updating a record that does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateEmail is returned by CreateUser for a taken email.
var ErrDuplicateEmail = errors.New("email already registered")

// Store holds users, refresh sessions, profiles and conversations.
// All methods are safe for concurrent use.
type Store struct {
	mu            sync.RWMutex
	users         map[string]models.User
	sessions      map[string]models.AuthSession
	profiles      map[string]models.Profile
	conversations map[string]models.Conversation
}

// New creates an empty store.
func New() *Store {
	return &Store{
		users:         make(map[string]models.User),
		sessions:      make(map[string]models.AuthSession),
		profiles:      make(map[string]models.Profile),
		conversations: make(map[string]models.Conversation),
	}
}

// Users

func (s *Store) CreateUser(_ context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return ErrDuplicateEmail
	}
	for _, existing := range s.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return ErrDuplicateEmail
		}
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) UpdateUser(_ context.Context, u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return ErrNotFound
	}
	s.users[u.ID] = u
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return &u, nil
		}
	}
	return nil, nil
}

func (s *Store) UserByVerificationToken(_ context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.VerificationToken == token {
			return &u, nil
		}
	}
	return nil, nil
}

// Refresh sessions

func (s *Store) CreateSession(_ context.Context, sess models.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.RefreshToken] = sess
	return nil
}

func (s *Store) SessionByToken(_ context.Context, token string) (*models.AuthSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	return &sess, nil
}

func (s *Store) DeleteSession(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

func (s *Store) DeleteUserSessions(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, sess := range s.sessions {
		if sess.UserID == userID {
			delete(s.sessions, tok)
		}
	}
	return nil
}

// Profiles

func (s *Store) Profile(_ context.Context, userID string) (*models.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[userID]
	if !ok {
		return nil, nil
	}
	return cloneProfile(p), nil
}

func (s *Store) UpsertProfile(_ context.Context, p models.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[p.ID] = *cloneProfile(p)
	return nil
}

func cloneProfile(p models.Profile) *models.Profile {
	out := p
	if p.Preferences != nil {
		prefs := p.Preferences.Clone()
		out.Preferences = &prefs
	}
	return &out
}

// Conversations

func (s *Store) LatestConversation(_ context.Context, userID string) (*models.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []models.Conversation
	for _, c := range s.conversations {
		if c.UserID == userID {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].LastUpdated.After(matches[j].LastUpdated)
	})
	latest := matches[0]
	latest.Messages = models.CloneMessages(latest.Messages)
	return &latest, nil
}

func (s *Store) SaveConversation(_ context.Context, conv models.Conversation) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	conv.Messages = models.CloneMessages(conv.Messages)
	s.conversations[conv.ID] = conv
	return conv.ID, nil
}

func (s *Store) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, id)
	return nil
}

// ConversationCount returns the number of stored conversations for userID.
func (s *Store) ConversationCount(userID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, c := range s.conversations {
		if c.UserID == userID {
			n++
		}
	}
	return n
}
