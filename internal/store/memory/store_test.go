package memory

import (
	"context"
	"testing"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversations_LatestAndUpsert(t *testing.T) {
	ctx := context.Background()
	s := New()

	latest, err := s.LatestConversation(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	oldID, err := s.SaveConversation(ctx, models.Conversation{UserID: "u1", LastUpdated: base,
		Messages: []models.Message{{Role: models.RoleUser, Content: "old"}}})
	require.NoError(t, err)
	newID, err := s.SaveConversation(ctx, models.Conversation{UserID: "u1", LastUpdated: base.Add(time.Hour),
		Messages: []models.Message{{Role: models.RoleUser, Content: "new"}}})
	require.NoError(t, err)
	assert.NotEqual(t, oldID, newID)

	latest, err = s.LatestConversation(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, newID, latest.ID)

	// Update in place keeps the id and the count.
	id, err := s.SaveConversation(ctx, models.Conversation{ID: oldID, UserID: "u1", LastUpdated: base.Add(2 * time.Hour),
		Messages: []models.Message{{Role: models.RoleUser, Content: "old"}, {Role: models.RoleAssistant, Content: "reply"}}})
	require.NoError(t, err)
	assert.Equal(t, oldID, id)
	assert.Equal(t, 2, s.ConversationCount("u1"))

	latest, err = s.LatestConversation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, oldID, latest.ID)
	assert.Len(t, latest.Messages, 2)

	require.NoError(t, s.DeleteConversation(ctx, oldID))
	require.NoError(t, s.DeleteConversation(ctx, "missing"))
	assert.Equal(t, 1, s.ConversationCount("u1"))
}

func TestConversations_CopiesMessages(t *testing.T) {
	ctx := context.Background()
	s := New()
	msgs := []models.Message{{Role: models.RoleUser, Content: "a"}}
	_, err := s.SaveConversation(ctx, models.Conversation{UserID: "u1", Messages: msgs})
	require.NoError(t, err)

	msgs[0].Content = "mutated"
	latest, err := s.LatestConversation(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a", latest.Messages[0].Content)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := New()

	u := models.User{ID: "u1", Email: "asha@example.com", VerificationToken: "tok"}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.ErrorIs(t, s.CreateUser(ctx, models.User{ID: "u2", Email: "ASHA@example.com"}), ErrDuplicateEmail)

	got, err := s.UserByEmail(ctx, "Asha@Example.com")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.ID)

	got, err = s.UserByVerificationToken(ctx, "tok")
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = s.UserByVerificationToken(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, s.UpdateUser(ctx, models.User{ID: "nope"}), ErrNotFound)
}

func TestSessions(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.CreateSession(ctx, models.AuthSession{RefreshToken: "a", UserID: "u1"}))
	require.NoError(t, s.CreateSession(ctx, models.AuthSession{RefreshToken: "b", UserID: "u1"}))
	require.NoError(t, s.CreateSession(ctx, models.AuthSession{RefreshToken: "c", UserID: "u2"}))

	require.NoError(t, s.DeleteUserSessions(ctx, "u1"))
	got, err := s.SessionByToken(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)
	got, err = s.SessionByToken(ctx, "c")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()
	s := New()

	p, err := s.Profile(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, p)

	prefs := models.Preferences{Name: "Asha", Context: models.PreferenceContext{Interests: []string{"music"}}}
	require.NoError(t, s.UpsertProfile(ctx, models.Profile{ID: "u1", Preferences: &prefs}))

	prefs.Context.Interests[0] = "mutated"
	p, err = s.Profile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, p.Preferences)
	assert.Equal(t, "music", p.Preferences.Context.Interests[0])
}
