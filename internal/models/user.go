package models

import "time"

// User is an identity known to the auth service.
type User struct {
	ID                string     `json:"id"`
	Email             string     `json:"email"`
	PasswordHash      string     `json:"-"`
	EmailConfirmedAt  *time.Time `json:"email_confirmed_at,omitempty"`
	VerificationToken string     `json:"-"`
	CreatedAt         time.Time  `json:"created_at"`
}

// EmailConfirmed reports whether the user verified their address.
func (u User) EmailConfirmed() bool {
	return u.EmailConfirmedAt != nil
}

// AuthSession is a refresh-token record. The access token is a stateless JWT.
type AuthSession struct {
	RefreshToken string    `json:"refresh_token"`
	UserID       string    `json:"user_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// Profile is the per-user app record: onboarding status plus preferences.
type Profile struct {
	ID                  string       `json:"id"`
	FullName            string       `json:"full_name"`
	OnboardingCompleted bool         `json:"onboarding_completed"`
	Preferences         *Preferences `json:"user_preferences,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	UpdatedAt           time.Time    `json:"updated_at"`
}
