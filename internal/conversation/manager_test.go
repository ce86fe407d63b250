package conversation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/persona"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freshManager(t *testing.T, store *fakeStore, opts ...ManagerOption) *Manager {
	t.Helper()
	m := NewManager(store, testLogger(), opts...)
	_, err := m.Initialize(context.Background(), "user-1", testPrefs())
	require.NoError(t, err)
	return m
}

func TestManager_InitializeFresh(t *testing.T) {
	store := &fakeStore{}
	m := NewManager(store, testLogger())
	assert.Equal(t, StateUninitialized, m.State())

	st, err := m.Initialize(context.Background(), "user-1", testPrefs())
	require.NoError(t, err)

	assert.Equal(t, StateFresh, st.State)
	assert.Equal(t, StateActive, m.State())
	assert.Empty(t, st.SessionID)
	assert.Empty(t, m.SessionID())
	require.Len(t, st.Messages, 1)
	assert.Equal(t, models.RoleAssistant, st.Messages[0].Role)
	assert.Contains(t, st.Messages[0].Content, "Asha")
	assert.Zero(t, store.saveCount(), "greeting is not saved on its own")
}

func TestManager_InitializeResumed(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msgs := []models.Message{
		{Role: models.RoleAssistant, Content: "hi", Timestamp: base},
		{Role: models.RoleUser, Content: "hello", Timestamp: base.Add(time.Second)},
		{Role: models.RoleAssistant, Content: "how are you?", Timestamp: base.Add(2 * time.Second)},
	}
	store := &fakeStore{latest: &models.Conversation{ID: "conv-9", UserID: "user-1", Messages: msgs}}

	m := NewManager(store, testLogger())
	st, err := m.Initialize(context.Background(), "user-1", testPrefs())
	require.NoError(t, err)

	assert.Equal(t, StateResumed, st.State)
	assert.Equal(t, "conv-9", st.SessionID)
	assert.Equal(t, "conv-9", m.SessionID())
	assert.Equal(t, msgs, st.Messages)
	assert.Equal(t, msgs, m.Messages())
}

func TestManager_InitializeEmptyRecordIsFresh(t *testing.T) {
	store := &fakeStore{latest: &models.Conversation{ID: "conv-1", UserID: "user-1"}}
	m := NewManager(store, testLogger())

	st, err := m.Initialize(context.Background(), "user-1", testPrefs())
	require.NoError(t, err)
	assert.Equal(t, StateFresh, st.State)
	assert.Empty(t, m.SessionID())
}

func TestManager_InitializeLoadError(t *testing.T) {
	store := &fakeStore{loadErr: errors.New("store unreachable")}
	m := NewManager(store, testLogger())

	_, err := m.Initialize(context.Background(), "user-1", testPrefs())
	require.Error(t, err)
	assert.Equal(t, StateUninitialized, m.State())

	store.loadErr = nil
	_, err = m.Initialize(context.Background(), "user-1", testPrefs())
	require.NoError(t, err, "a failed load can be retried")
}

func TestManager_InitializeTwice(t *testing.T) {
	m := freshManager(t, &fakeStore{})
	_, err := m.Initialize(context.Background(), "user-1", testPrefs())
	assert.ErrorIs(t, err, ErrAlreadyInitialized)
}

func TestManager_AppendRequiresActive(t *testing.T) {
	m := NewManager(&fakeStore{}, testLogger())
	_, err := m.Append(context.Background(), models.RoleUser, "hi")
	assert.ErrorIs(t, err, ErrNotActive)
	assert.ErrorIs(t, m.Persist(context.Background()), ErrNotActive)
	assert.ErrorIs(t, m.Reset(context.Background()), ErrNotActive)
}

func TestManager_AppendEmpty(t *testing.T) {
	store := &fakeStore{}
	m := freshManager(t, store)
	_, err := m.Append(context.Background(), models.RoleUser, "   ")
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Len(t, m.Messages(), 1)
	assert.Zero(t, store.saveCount())
}

func TestManager_AdoptsIdentifier(t *testing.T) {
	store := &fakeStore{}
	m := freshManager(t, store)
	ctx := context.Background()

	_, err := m.Append(ctx, models.RoleUser, "one")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", m.SessionID())

	_, err = m.Append(ctx, models.RoleAssistant, "two")
	require.NoError(t, err)
	require.NoError(t, m.Persist(ctx))

	assert.Equal(t, 1, store.inserts())
	require.Equal(t, 3, store.saveCount())
	for _, c := range store.saves[1:] {
		assert.Equal(t, "conv-1", c.ID)
	}
	last := store.saves[len(store.saves)-1]
	assert.Equal(t, "user-1", last.UserID)
	assert.Len(t, last.Messages, 3)
}

func TestManager_PersistFailureKeepsLocalState(t *testing.T) {
	store := &fakeStore{saveErr: errors.New("auth expired")}
	m := freshManager(t, store)
	ctx := context.Background()

	msg, err := m.Append(ctx, models.RoleUser, "hello")
	var pe *PersistError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "hello", msg.Content)
	assert.Len(t, m.Messages(), 2)
	assert.Empty(t, m.SessionID())

	store.setSaveErr(nil)
	require.NoError(t, m.Persist(ctx))
	assert.Equal(t, "conv-1", m.SessionID())
	assert.Len(t, store.saves[0].Messages, 2)
}

func TestManager_TimestampsNonDecreasing(t *testing.T) {
	start := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := &stepClock{t: start, d: -time.Minute}
	m := freshManager(t, &fakeStore{}, WithClock(clock.Now))
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		_, err := m.Append(ctx, models.RoleUser, text)
		require.NoError(t, err)
	}

	msgs := m.Messages()
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp), "message %d goes back in time", i)
	}
}

func TestManager_Reset(t *testing.T) {
	store := &fakeStore{}
	m := freshManager(t, store)
	ctx := context.Background()

	_, err := m.Append(ctx, models.RoleUser, "remember this")
	require.NoError(t, err)
	require.Equal(t, "conv-1", m.SessionID())

	require.NoError(t, m.Reset(ctx))
	assert.Equal(t, []string{"conv-1"}, store.deleted)
	assert.Empty(t, m.SessionID())
	msgs := m.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, persona.ClearedGreeting, msgs[0].Content)
	assert.Equal(t, models.RoleAssistant, msgs[0].Role)

	_, err = m.Append(ctx, models.RoleUser, "new start")
	require.NoError(t, err)
	assert.Equal(t, "conv-2", m.SessionID())
	assert.Equal(t, 2, store.inserts())
}

func TestManager_ResetWithoutIdentifier(t *testing.T) {
	store := &fakeStore{}
	m := freshManager(t, store)
	require.NoError(t, m.Reset(context.Background()))
	assert.Empty(t, store.deleted)
}

func TestManager_ResetDeleteFailure(t *testing.T) {
	store := &fakeStore{}
	m := freshManager(t, store)
	ctx := context.Background()
	_, err := m.Append(ctx, models.RoleUser, "keep me")
	require.NoError(t, err)

	store.deleteErr = errors.New("network down")
	require.Error(t, m.Reset(ctx))
	assert.Equal(t, "conv-1", m.SessionID())
	assert.Len(t, m.Messages(), 2)
}

func TestManager_MessagesIsCopy(t *testing.T) {
	m := freshManager(t, &fakeStore{})
	msgs := m.Messages()
	msgs[0].Content = "tampered"
	assert.NotEqual(t, "tampered", m.Messages()[0].Content)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "resumed", StateResumed.String())
	assert.Equal(t, "state(42)", State(42).String())
}
