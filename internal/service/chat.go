// Package service provides the chat application's business logic: one
// conversation session per signed-in user, onboarding completion and
// preference edits.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/auth"
	"github.com/raphaelgruber/feelfree-go/internal/conversation"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/onboarding"
	"github.com/raphaelgruber/feelfree-go/internal/persona"
)

var (
	// ErrOnboardingIncomplete is returned by chat operations for users who
	// haven't finished the questionnaire.
	ErrOnboardingIncomplete = errors.New("onboarding not completed")

	// ErrOnboardingDone is returned when a completed profile is onboarded again.
	ErrOnboardingDone = errors.New("onboarding already completed")

	// ErrNoSession is returned when a user has no open chat session.
	ErrNoSession = errors.New("no chat session open")
)

// ProfileStore persists per-user profiles. Profile returns (nil, nil) when
// none exists.
type ProfileStore interface {
	Profile(ctx context.Context, userID string) (*models.Profile, error)
	UpsertProfile(ctx context.Context, p models.Profile) error
}

// Store is everything the chat service persists.
type Store interface {
	ProfileStore
	conversation.Store
}

// Options configures a ChatService.
type Options struct {
	Notifier     conversation.Notifier
	ComposeDelay bool
	Now          func() time.Time

	// Greeter picks the welcome-back line for resumed sessions.
	Greeter *persona.Greeter
}

// chat is one user's open session. mu serializes opening it.
type chat struct {
	mu   sync.Mutex
	orch *conversation.Orchestrator
}

// ChatService owns the active conversation session of each user.
type ChatService struct {
	store  Store
	gen    conversation.Generator
	opts   Options
	logger *slog.Logger

	mu    sync.RWMutex
	chats map[string]*chat
}

// NewChatService creates a chat service.
func NewChatService(store Store, gen conversation.Generator, opts Options, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Greeter == nil {
		opts.Greeter = persona.NewGreeter(nil)
	}
	return &ChatService{
		store:  store,
		gen:    gen,
		opts:   opts,
		logger: logger.With("component", "chat"),
		chats:  make(map[string]*chat),
	}
}

// HandleAuthEvent keeps profiles and sessions in step with identity
// changes: sign-up creates an empty profile, sign-out closes the chat.
func (s *ChatService) HandleAuthEvent(ctx context.Context, e auth.Event) {
	if e.User.ID == "" {
		return
	}
	switch e.Type {
	case auth.EventSignedUp:
		if _, err := s.EnsureProfile(ctx, e.User.ID); err != nil {
			s.logger.Warn("create profile failed", "user_id", e.User.ID, "error", err)
		}
	case auth.EventSignedOut:
		// A busy session stays registered so its exchange remains the only writer.
		if err := s.Close(e.User.ID); err != nil {
			s.logger.Debug("chat left open", "user_id", e.User.ID, "error", err)
		}
	}
}

// EnsureProfile returns the user's profile, creating an empty one if needed.
func (s *ChatService) EnsureProfile(ctx context.Context, userID string) (models.Profile, error) {
	p, err := s.store.Profile(ctx, userID)
	if err != nil {
		return models.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if p != nil {
		return *p, nil
	}
	now := s.opts.Now().UTC()
	created := models.Profile{ID: userID, CreatedAt: now, UpdatedAt: now}
	if err := s.store.UpsertProfile(ctx, created); err != nil {
		return models.Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return created, nil
}

// Profile returns the user's profile, creating an empty one if needed.
func (s *ChatService) Profile(ctx context.Context, userID string) (models.Profile, error) {
	return s.EnsureProfile(ctx, userID)
}

// CompleteOnboarding validates the questionnaire answers and writes name,
// preferences and the completion flag in a single upsert.
func (s *ChatService) CompleteOnboarding(ctx context.Context, userID string, answers onboarding.Answers) (models.Profile, error) {
	prefs, err := onboarding.Build(answers)
	if err != nil {
		return models.Profile{}, err
	}
	p, err := s.EnsureProfile(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	if p.OnboardingCompleted {
		return models.Profile{}, ErrOnboardingDone
	}

	p.FullName = prefs.Name
	p.Preferences = &prefs
	p.OnboardingCompleted = true
	p.UpdatedAt = s.opts.Now().UTC()
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return models.Profile{}, fmt.Errorf("save onboarding: %w", err)
	}
	s.logger.Info("onboarding completed", "user_id", userID)
	return p, nil
}

// UpdatePreferences merges u into the stored preferences. An open chat
// recomposes its persona before the next exchange.
func (s *ChatService) UpdatePreferences(ctx context.Context, userID string, u models.PreferencesUpdate) (models.Profile, error) {
	p, prefs, err := s.onboardedProfile(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	if u.Empty() {
		return p, nil
	}

	merged := prefs.Apply(u)
	if err := merged.Validate(); err != nil {
		return models.Profile{}, err
	}
	p.Preferences = &merged
	p.FullName = merged.Name
	p.UpdatedAt = s.opts.Now().UTC()
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return models.Profile{}, fmt.Errorf("save preferences: %w", err)
	}

	if c := s.lookup(userID); c != nil {
		c.mu.Lock()
		if c.orch != nil {
			c.orch.SetPreferences(merged)
		}
		c.mu.Unlock()
	}
	return p, nil
}

// UpdateName changes the profile's display name only.
func (s *ChatService) UpdateName(ctx context.Context, userID, fullName string) (models.Profile, error) {
	fullName = strings.TrimSpace(fullName)
	if len([]rune(fullName)) < 2 {
		return models.Profile{}, fmt.Errorf("%w: name must be at least 2 characters", models.ErrInvalidPreferences)
	}
	p, err := s.EnsureProfile(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	p.FullName = fullName
	p.UpdatedAt = s.opts.Now().UTC()
	if err := s.store.UpsertProfile(ctx, p); err != nil {
		return models.Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

// Open starts (or returns) the user's active session: the latest stored
// conversation is resumed, or a greeting starts a fresh one.
func (s *ChatService) Open(ctx context.Context, userID string) (conversation.SessionState, error) {
	orch, state, err := s.open(ctx, userID)
	if err != nil {
		return conversation.SessionState{}, err
	}
	if state != nil {
		return *state, nil
	}
	return snapshot(orch.Session()), nil
}

func (s *ChatService) open(ctx context.Context, userID string) (*conversation.Orchestrator, *conversation.SessionState, error) {
	for {
		orch, state, err := s.openChat(ctx, s.getOrCreate(userID), userID)
		// A closed entry is already out of the registry; take the next one.
		if !errors.Is(err, conversation.ErrClosed) {
			return orch, state, err
		}
	}
}

func (s *ChatService) openChat(ctx context.Context, c *chat, userID string) (*conversation.Orchestrator, *conversation.SessionState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.orch != nil && c.orch.Closed() {
		return nil, nil, conversation.ErrClosed
	}
	if c.orch != nil && c.orch.Session().State() == conversation.StateActive {
		return c.orch, nil, nil
	}

	_, prefs, err := s.onboardedProfile(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	if c.orch == nil {
		session := conversation.NewManager(s.store, s.logger, conversation.WithClock(s.opts.Now))
		opts := []conversation.OrchestratorOption{conversation.WithComposeDelay(s.opts.ComposeDelay)}
		if s.opts.Notifier != nil {
			opts = append(opts, conversation.WithNotifier(s.opts.Notifier))
		}
		c.orch = conversation.NewOrchestrator(session, s.gen, prefs, s.logger, opts...)
	} else {
		c.orch.SetPreferences(prefs)
	}

	state, err := c.orch.Session().Initialize(ctx, userID, prefs)
	if err != nil {
		return nil, nil, err
	}
	if state.State == conversation.StateResumed {
		state.Welcome = s.opts.Greeter.Greet(prefs)
	}
	s.logger.Info("chat opened", "user_id", userID, "state", state.State.String(), "messages", len(state.Messages))
	return c.orch, &state, nil
}

// Submit runs one exchange in the user's session, opening it if needed.
func (s *ChatService) Submit(ctx context.Context, userID, text string) (conversation.Exchange, error) {
	var (
		ex  conversation.Exchange
		err error
	)
	for {
		var orch *conversation.Orchestrator
		if orch, _, err = s.open(ctx, userID); err != nil {
			return conversation.Exchange{}, err
		}
		// Close may retire the session between open and Submit.
		if ex, err = orch.Submit(ctx, text); !errors.Is(err, conversation.ErrClosed) {
			break
		}
	}
	if ex.PersistErr != nil {
		s.logger.Warn("conversation save failed", "user_id", userID, "error", ex.PersistErr)
	}
	return ex, err
}

// History returns the session's messages, opening it if needed.
func (s *ChatService) History(ctx context.Context, userID string) (conversation.SessionState, error) {
	return s.Open(ctx, userID)
}

// Clear deletes the stored conversation and restarts with a single
// "cleared" greeting. It is rejected while an exchange is in flight.
func (s *ChatService) Clear(ctx context.Context, userID string) (conversation.SessionState, error) {
	for {
		orch, _, err := s.open(ctx, userID)
		if err != nil {
			return conversation.SessionState{}, err
		}
		err = orch.Clear(ctx)
		if errors.Is(err, conversation.ErrClosed) {
			continue
		}
		if err != nil {
			return conversation.SessionState{}, err
		}
		s.logger.Info("chat cleared", "user_id", userID)
		return snapshot(orch.Session()), nil
	}
}

// Busy reports whether the user's session has an exchange in flight.
func (s *ChatService) Busy(userID string) (bool, error) {
	c := s.lookup(userID)
	if c == nil {
		return false, ErrNoSession
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.orch == nil {
		return false, ErrNoSession
	}
	return c.orch.Busy(), nil
}

// Close drops the user's in-memory session. Stored data is kept. It fails
// with conversation.ErrBusy while an exchange is in flight.
func (s *ChatService) Close(userID string) error {
	c := s.lookup(userID)
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.orch != nil {
		if err := c.orch.Close(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chats[userID] == c {
		delete(s.chats, userID)
		s.logger.Debug("chat closed", "user_id", userID)
	}
	return nil
}

// ActiveChats returns the number of open sessions.
func (s *ChatService) ActiveChats() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chats)
}

func (s *ChatService) onboardedProfile(ctx context.Context, userID string) (models.Profile, models.Preferences, error) {
	p, err := s.store.Profile(ctx, userID)
	if err != nil {
		return models.Profile{}, models.Preferences{}, fmt.Errorf("load profile: %w", err)
	}
	if p == nil || !p.OnboardingCompleted || p.Preferences == nil {
		return models.Profile{}, models.Preferences{}, ErrOnboardingIncomplete
	}
	return *p, p.Preferences.Clone(), nil
}

func (s *ChatService) lookup(userID string) *chat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chats[userID]
}

func (s *ChatService) getOrCreate(userID string) *chat {
	if c := s.lookup(userID); c != nil {
		return c
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[userID]
	if !ok {
		c = &chat{}
		s.chats[userID] = c
	}
	return c
}

func snapshot(m *conversation.Manager) conversation.SessionState {
	return conversation.SessionState{
		State:     m.State(),
		SessionID: m.SessionID(),
		Messages:  m.Messages(),
	}
}
