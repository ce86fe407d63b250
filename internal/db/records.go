package db

import (
	"fmt"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Row types mirror the stored shape. Secrets that models hide from JSON
// (password hash, verification token) are explicit here.

type userRow struct {
	ID                surrealmodels.RecordID `json:"id"`
	Email             string                 `json:"email"`
	PasswordHash      string                 `json:"password_hash"`
	EmailConfirmedAt  *time.Time             `json:"email_confirmed_at,omitempty"`
	VerificationToken *string                `json:"verification_token,omitempty"`
	CreatedAt         time.Time              `json:"created_at"`
}

func (r userRow) model() (models.User, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("user id: %w", err)
	}
	u := models.User{
		ID:               id,
		Email:            r.Email,
		PasswordHash:     r.PasswordHash,
		EmailConfirmedAt: r.EmailConfirmedAt,
		CreatedAt:        r.CreatedAt,
	}
	if r.VerificationToken != nil {
		u.VerificationToken = *r.VerificationToken
	}
	return u, nil
}

func userVars(u models.User) map[string]any {
	var token *string
	if u.VerificationToken != "" {
		token = &u.VerificationToken
	}
	return map[string]any{
		"id":                 u.ID,
		"email":              u.Email,
		"password_hash":      u.PasswordHash,
		"email_confirmed_at": u.EmailConfirmedAt,
		"verification_token": token,
		"created_at":         u.CreatedAt.UTC(),
	}
}

type sessionRow struct {
	ID        surrealmodels.RecordID `json:"id"`
	UserID    string                 `json:"user_id"`
	ExpiresAt time.Time              `json:"expires_at"`
	CreatedAt time.Time              `json:"created_at"`
}

func (r sessionRow) model() (models.AuthSession, error) {
	token, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.AuthSession{}, fmt.Errorf("session id: %w", err)
	}
	return models.AuthSession{
		RefreshToken: token,
		UserID:       r.UserID,
		ExpiresAt:    r.ExpiresAt,
		CreatedAt:    r.CreatedAt,
	}, nil
}

type profileRow struct {
	ID                  surrealmodels.RecordID `json:"id"`
	FullName            *string                `json:"full_name,omitempty"`
	OnboardingCompleted bool                   `json:"onboarding_completed"`
	UserPreferences     *models.Preferences    `json:"user_preferences,omitempty"`
	CreatedAt           time.Time              `json:"created_at"`
	UpdatedAt           time.Time              `json:"updated_at"`
}

func (r profileRow) model() (models.Profile, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.Profile{}, fmt.Errorf("profile id: %w", err)
	}
	p := models.Profile{
		ID:                  id,
		OnboardingCompleted: r.OnboardingCompleted,
		Preferences:         r.UserPreferences,
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}
	if r.FullName != nil {
		p.FullName = *r.FullName
	}
	return p, nil
}

type conversationRow struct {
	ID          surrealmodels.RecordID `json:"id"`
	UserID      string                 `json:"user_id"`
	Messages    []models.Message       `json:"messages"`
	LastUpdated time.Time              `json:"last_updated"`
}

func (r conversationRow) model() (models.Conversation, error) {
	id, err := models.RecordIDString(r.ID)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("conversation id: %w", err)
	}
	return models.Conversation{
		ID:          id,
		UserID:      r.UserID,
		Messages:    models.CloneMessages(r.Messages),
		LastUpdated: r.LastUpdated,
	}, nil
}

// first returns the first row of the first statement's result, or nil.
func first[T any](results *[]surrealdb.QueryResult[[]T]) *T {
	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil
	}
	return &(*results)[0].Result[0]
}
