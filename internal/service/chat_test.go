package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/auth"
	"github.com/raphaelgruber/feelfree-go/internal/conversation"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/onboarding"
	"github.com/raphaelgruber/feelfree-go/internal/persona"
	"github.com/raphaelgruber/feelfree-go/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	mu      sync.Mutex
	err     error
	prompts []string
}

func (g *stubGenerator) Generate(_ context.Context, p persona.Persona, _ []models.Message, text string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, p.Prompt)
	if g.err != nil {
		return "", g.err
	}
	return "re: " + text, nil
}

func (g *stubGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.prompts[len(g.prompts)-1]
}

func answers() onboarding.Answers {
	return onboarding.Answers{
		onboarding.KeyName:               "Asha",
		onboarding.KeyAge:                "22",
		onboarding.KeyWork:               "student",
		onboarding.KeyInterests:          "music, travel",
		onboarding.KeyFavoriteTopics:     "films, food",
		onboarding.KeyHobbies:            "guitar, hiking",
		onboarding.KeyCommunicationStyle: "casual",
		onboarding.KeyLanguagePreference: "english",
	}
}

func newService(t *testing.T) (*ChatService, *memory.Store, *stubGenerator) {
	t.Helper()
	store := memory.New()
	gen := &stubGenerator{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewChatService(store, gen, Options{}, logger), store, gen
}

func onboard(t *testing.T, s *ChatService, userID string) {
	t.Helper()
	_, err := s.CompleteOnboarding(context.Background(), userID, answers())
	require.NoError(t, err)
}

func TestHandleAuthEvent_CreatesProfileOnSignUp(t *testing.T) {
	s, store, _ := newService(t)
	ctx := context.Background()

	s.HandleAuthEvent(ctx, auth.Event{Type: auth.EventSignedUp, User: models.User{ID: "u1"}})
	p, err := store.Profile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.False(t, p.OnboardingCompleted)
}

func TestCompleteOnboarding(t *testing.T) {
	s, store, _ := newService(t)
	ctx := context.Background()

	p, err := s.CompleteOnboarding(ctx, "u1", answers())
	require.NoError(t, err)
	assert.True(t, p.OnboardingCompleted)
	assert.Equal(t, "Asha", p.FullName)
	require.NotNil(t, p.Preferences)
	assert.Equal(t, []string{"music", "travel"}, p.Preferences.Context.Interests)

	stored, err := store.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, stored.OnboardingCompleted)

	_, err = s.CompleteOnboarding(ctx, "u1", answers())
	assert.ErrorIs(t, err, ErrOnboardingDone)
}

func TestCompleteOnboarding_InvalidAnswers(t *testing.T) {
	s, store, _ := newService(t)
	a := answers()
	a[onboarding.KeyName] = "A"

	_, err := s.CompleteOnboarding(context.Background(), "u1", a)
	assert.ErrorIs(t, err, onboarding.ErrInvalidAnswer)

	p, err := store.Profile(context.Background(), "u1")
	require.NoError(t, err)
	assert.Nil(t, p, "nothing is written on invalid answers")
}

func TestOpen_RequiresOnboarding(t *testing.T) {
	s, _, _ := newService(t)
	_, err := s.Open(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrOnboardingIncomplete)

	_, err = s.Submit(context.Background(), "u1", "hi")
	assert.ErrorIs(t, err, ErrOnboardingIncomplete)
}

func TestOpen_FreshSessionGreetsByName(t *testing.T) {
	s, store, _ := newService(t)
	onboard(t, s, "u1")

	state, err := s.Open(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateFresh, state.State)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, models.RoleAssistant, state.Messages[0].Role)
	assert.Contains(t, state.Messages[0].Content, "Asha")
	assert.Empty(t, state.SessionID)
	assert.Zero(t, store.ConversationCount("u1"), "greeting alone is not saved")

	again, err := s.Open(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateActive, again.State)
	assert.Len(t, again.Messages, 1)
}

func TestOpen_ResumesExistingConversation(t *testing.T) {
	s, store, _ := newService(t)
	onboard(t, s, "u1")

	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		{Role: models.RoleAssistant, Content: "Hey Asha!", Timestamp: at},
		{Role: models.RoleUser, Content: "hi", Timestamp: at.Add(time.Second)},
		{Role: models.RoleAssistant, Content: "hello", Timestamp: at.Add(2 * time.Second)},
		{Role: models.RoleUser, Content: "bye", Timestamp: at.Add(3 * time.Second)},
	}
	id, err := store.SaveConversation(context.Background(), models.Conversation{UserID: "u1", Messages: msgs, LastUpdated: at})
	require.NoError(t, err)

	state, err := s.Open(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateResumed, state.State)
	assert.Equal(t, id, state.SessionID)
	assert.Equal(t, msgs, state.Messages)
}

func TestSubmit_PersistsOneConversation(t *testing.T) {
	s, store, _ := newService(t)
	onboard(t, s, "u1")
	ctx := context.Background()

	ex, err := s.Submit(ctx, "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusReplied, ex.Status)
	require.NotNil(t, ex.Reply)
	assert.Equal(t, "re: hello", ex.Reply.Content)

	_, err = s.Submit(ctx, "u1", "again")
	require.NoError(t, err)

	state, err := s.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, state.Messages, 5)
	assert.NotEmpty(t, state.SessionID)
	assert.Equal(t, 1, store.ConversationCount("u1"))

	_, err = s.Submit(ctx, "u1", "   ")
	assert.ErrorIs(t, err, conversation.ErrEmptyMessage)
}

func TestSubmit_ModelFailureKeepsUserMessage(t *testing.T) {
	s, _, gen := newService(t)
	onboard(t, s, "u1")
	ctx := context.Background()

	gen.err = errors.New("endpoint down")
	ex, err := s.Submit(ctx, "u1", "hello")
	require.Error(t, err)
	assert.Equal(t, conversation.StatusFailed, ex.Status)

	state, err := s.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, state.Messages, 2)
	assert.Equal(t, "hello", state.Messages[1].Content)

	gen.err = nil
	_, err = s.Submit(ctx, "u1", "hello")
	require.NoError(t, err)
	state, err = s.History(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, state.Messages, 4)
}

func TestClear(t *testing.T) {
	s, store, _ := newService(t)
	onboard(t, s, "u1")
	ctx := context.Background()

	_, err := s.Submit(ctx, "u1", "hello")
	require.NoError(t, err)
	require.Equal(t, 1, store.ConversationCount("u1"))

	state, err := s.Clear(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, persona.ClearedGreeting, state.Messages[0].Content)
	assert.Empty(t, state.SessionID)
	assert.Zero(t, store.ConversationCount("u1"))

	_, err = s.Submit(ctx, "u1", "fresh start")
	require.NoError(t, err)
	assert.Equal(t, 1, store.ConversationCount("u1"))
}

func TestUpdatePreferences_RecomposesPersona(t *testing.T) {
	s, store, gen := newService(t)
	onboard(t, s, "u1")
	ctx := context.Background()

	_, err := s.Submit(ctx, "u1", "hi")
	require.NoError(t, err)
	assert.Contains(t, gen.lastPrompt(), "Asha")

	name := "Meera"
	p, err := s.UpdatePreferences(ctx, "u1", models.PreferencesUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Meera", p.FullName)

	stored, err := store.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Meera", stored.Preferences.Name)

	_, err = s.Submit(ctx, "u1", "hi again")
	require.NoError(t, err)
	assert.Contains(t, gen.lastPrompt(), "Meera")

	bad := "M"
	_, err = s.UpdatePreferences(ctx, "u1", models.PreferencesUpdate{Name: &bad})
	assert.ErrorIs(t, err, models.ErrInvalidPreferences)
}

func TestUpdatePreferences_RequiresOnboarding(t *testing.T) {
	s, _, _ := newService(t)
	name := "Meera"
	_, err := s.UpdatePreferences(context.Background(), "u1", models.PreferencesUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrOnboardingIncomplete)
}

func TestUpdateName(t *testing.T) {
	s, _, _ := newService(t)
	p, err := s.UpdateName(context.Background(), "u1", "  Asha K ")
	require.NoError(t, err)
	assert.Equal(t, "Asha K", p.FullName)

	_, err = s.UpdateName(context.Background(), "u1", "A")
	assert.ErrorIs(t, err, models.ErrInvalidPreferences)
}

func TestBusyAndClose(t *testing.T) {
	s, _, _ := newService(t)
	onboard(t, s, "u1")

	_, err := s.Busy("u1")
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = s.Open(context.Background(), "u1")
	require.NoError(t, err)
	busy, err := s.Busy("u1")
	require.NoError(t, err)
	assert.False(t, busy)
	assert.Equal(t, 1, s.ActiveChats())

	s.HandleAuthEvent(context.Background(), auth.Event{Type: auth.EventSignedOut, User: models.User{ID: "u1"}})
	assert.Zero(t, s.ActiveChats())
}

func TestNotifierReceivesComposing(t *testing.T) {
	store := memory.New()
	var mu sync.Mutex
	var events []bool
	notifier := conversation.NotifierFunc(func(userID string, active bool) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, "u1", userID)
		events = append(events, active)
	})
	s := NewChatService(store, &stubGenerator{}, Options{Notifier: notifier}, nil)
	onboard(t, s, "u1")

	_, err := s.Submit(context.Background(), "u1", "hi")
	require.NoError(t, err)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, events)
}

func TestRoute(t *testing.T) {
	tests := []struct {
		auth, onboarded bool
		path, want      string
	}{
		{false, false, PathLogin, PathLogin},
		{false, false, PathOnboarding, PathLogin},
		{false, false, PathChat, PathLogin},
		{false, false, "/anything", PathLogin},
		{true, false, PathLogin, PathOnboarding},
		{true, false, PathOnboarding, PathOnboarding},
		{true, false, PathChat, PathOnboarding},
		{true, false, "/settings", PathOnboarding},
		{true, true, PathLogin, PathChat},
		{true, true, PathOnboarding, PathChat},
		{true, true, PathChat, PathChat},
		{true, true, "/nope", PathChat},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Route(tt.auth, tt.onboarded, tt.path), "auth=%v onboarded=%v path=%s", tt.auth, tt.onboarded, tt.path)
	}
}

// gatedStore blocks DeleteConversation until release is closed.
type gatedStore struct {
	*memory.Store
	entered chan struct{}
	release chan struct{}
}

func (s *gatedStore) DeleteConversation(ctx context.Context, id string) error {
	close(s.entered)
	<-s.release
	return s.Store.DeleteConversation(ctx, id)
}

// gatedGenerator blocks Generate until release is closed.
type gatedGenerator struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedGenerator) Generate(_ context.Context, _ persona.Persona, _ []models.Message, text string) (string, error) {
	close(g.entered)
	<-g.release
	return "re: " + text, nil
}

func TestClear_BlocksConcurrentSubmit(t *testing.T) {
	store := &gatedStore{Store: memory.New(), entered: make(chan struct{}), release: make(chan struct{})}
	s := NewChatService(store, &stubGenerator{}, Options{}, nil)
	onboard(t, s, "u1")
	ctx := context.Background()

	_, err := s.Submit(ctx, "u1", "first")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := s.Clear(ctx, "u1")
		done <- err
	}()
	<-store.entered

	_, err = s.Submit(ctx, "u1", "second")
	assert.ErrorIs(t, err, conversation.ErrBusy)

	close(store.release)
	require.NoError(t, <-done)

	state, err := s.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, state.Messages, 1)
	assert.Equal(t, persona.ClearedGreeting, state.Messages[0].Content)

	_, err = s.Submit(ctx, "u1", "second")
	require.NoError(t, err)
	state, err = s.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, state.Messages, 3)
	assert.Equal(t, models.RoleUser, state.Messages[1].Role)
	assert.Equal(t, "second", state.Messages[1].Content)
}

func TestClose_KeepsBusySession(t *testing.T) {
	store := memory.New()
	gen := &gatedGenerator{entered: make(chan struct{}), release: make(chan struct{})}
	s := NewChatService(store, gen, Options{}, nil)
	onboard(t, s, "u1")
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(ctx, "u1", "hello")
		done <- err
	}()
	<-gen.entered

	assert.ErrorIs(t, s.Close("u1"), conversation.ErrBusy)
	s.HandleAuthEvent(ctx, auth.Event{Type: auth.EventSignedOut, User: models.User{ID: "u1"}})
	assert.Equal(t, 1, s.ActiveChats(), "in-flight session stays the only writer")

	close(gen.release)
	require.NoError(t, <-done)

	require.NoError(t, s.Close("u1"))
	assert.Zero(t, s.ActiveChats())
	assert.Equal(t, 1, store.ConversationCount("u1"))

	state, err := s.Open(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, conversation.StateResumed, state.State)
	require.Len(t, state.Messages, 3)
	assert.Equal(t, "re: hello", state.Messages[2].Content)
	assert.Contains(t, state.Welcome, "Asha")
}
