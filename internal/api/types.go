// Package api holds the JSON wire types shared by the HTTP server and its
// client.
package api

import (
	"github.com/raphaelgruber/feelfree-go/internal/auth"
	"github.com/raphaelgruber/feelfree-go/internal/conversation"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/onboarding"
)

// Auth requests.
type (
	Credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	RefreshRequest struct {
		RefreshToken string `json:"refresh_token"`
	}

	VerifyRequest struct {
		Token string `json:"token"`
	}

	ResendRequest struct {
		Email string `json:"email"`
	}

	PasswordRequest struct {
		Password string `json:"password"`
	}
)

// SignUpResponse is returned by sign-up. Session is set only when the
// server auto-confirms new accounts.
type SignUpResponse struct {
	User                 models.User   `json:"user"`
	Session              *auth.Session `json:"session,omitempty"`
	ConfirmationRequired bool          `json:"confirmation_required"`
}

// SessionInfo describes the caller behind an access token.
type SessionInfo struct {
	User          models.User `json:"user"`
	EmailVerified bool        `json:"email_verified"`
	Onboarded     bool        `json:"onboarded"`
}

// PasswordStrength is the strength report for a candidate password.
type PasswordStrength = auth.PasswordStrength

// RouteResponse is the route guard's answer for a requested path.
type RouteResponse struct {
	Path string `json:"path"`
}

// Question is one onboarding step as the client renders it.
type Question struct {
	Key         string              `json:"key"`
	Type        onboarding.Kind     `json:"type"`
	Question    string              `json:"question"`
	Placeholder string              `json:"placeholder,omitempty"`
	Options     []onboarding.Option `json:"options,omitempty"`
}

// QuestionsResponse lists the questionnaire in order.
type QuestionsResponse struct {
	Questions []Question `json:"questions"`
}

// OnboardingRequest submits the full answer set.
type OnboardingRequest struct {
	Answers onboarding.Answers `json:"answers"`
}

// ProfileUpdate edits the profile. Nil fields are left alone.
type ProfileUpdate struct {
	FullName    *string                   `json:"full_name,omitempty"`
	Preferences *models.PreferencesUpdate `json:"user_preferences,omitempty"`
}

// ChatSession is the user's active conversation.
type ChatSession struct {
	SessionID string           `json:"session_id,omitempty"`
	State     string           `json:"state"`
	Messages  []models.Message `json:"messages"`
	Busy      bool             `json:"busy"`
	Welcome   string           `json:"welcome,omitempty"`
}

// NewChatSession converts a session snapshot.
func NewChatSession(s conversation.SessionState, busy bool) ChatSession {
	msgs := s.Messages
	if msgs == nil {
		msgs = []models.Message{}
	}
	return ChatSession{
		SessionID: s.SessionID,
		State:     s.State.String(),
		Messages:  msgs,
		Busy:      busy,
		Welcome:   s.Welcome,
	}
}

// SendRequest submits one user message.
type SendRequest struct {
	Text string `json:"text"`
}

// ExchangeResponse reports an accepted exchange. A failed model call still
// returns the kept user message, with Error holding the user-facing text.
type ExchangeResponse struct {
	Status       conversation.Status `json:"status"`
	UserMessage  models.Message      `json:"user_message"`
	Reply        *models.Message     `json:"reply,omitempty"`
	Error        string              `json:"error,omitempty"`
	PersistError string              `json:"persist_error,omitempty"`
}

// Event names pushed over the event stream.
const (
	EventComposing  = "composing"
	EventAuthPrefix = "auth."
)

// Event is one message on the WebSocket event stream.
type Event struct {
	Event  string `json:"event"`
	Active bool   `json:"active,omitempty"`
	TS     int64  `json:"ts"`
}
