// Package auth is the identity service: sign-up with email verification,
// password sign-in, rotating refresh tokens and session-change events.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/mail"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// UserStore persists users and refresh sessions. Lookups return (nil, nil)
// when nothing matches.
type UserStore interface {
	CreateUser(ctx context.Context, u models.User) error
	UpdateUser(ctx context.Context, u models.User) error
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UserByVerificationToken(ctx context.Context, token string) (*models.User, error)

	CreateSession(ctx context.Context, s models.AuthSession) error
	SessionByToken(ctx context.Context, refreshToken string) (*models.AuthSession, error)
	DeleteSession(ctx context.Context, refreshToken string) error
	DeleteUserSessions(ctx context.Context, userID string) error
}

// Mailer delivers verification tokens.
type Mailer interface {
	SendVerification(ctx context.Context, email, token string) error
}

// LogMailer writes verification tokens to the log. It stands in for a real
// mail transport in development.
type LogMailer struct {
	Logger *slog.Logger
}

// SendVerification logs the token.
func (m LogMailer) SendVerification(_ context.Context, email, token string) error {
	logger := m.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("verification email", "email", email, "token", token)
	return nil
}

// Config holds token and policy settings.
type Config struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// AutoConfirm marks new users verified at sign-up (development mode).
	AutoConfirm bool

	// ResendCooldown is the minimum gap between verification emails.
	ResendCooldown time.Duration

	// MaxFailedSignIns within FailedSignInWindow locks the email out.
	MaxFailedSignIns   int
	FailedSignInWindow time.Duration
}

// Defaults for zero Config fields.
const (
	DefaultAccessTTL          = 15 * time.Minute
	DefaultRefreshTTL         = 30 * 24 * time.Hour
	DefaultResendCooldown     = time.Minute
	DefaultMaxFailedSignIns   = 5
	DefaultFailedSignInWindow = 15 * time.Minute
)

// EventType names a session change.
type EventType string

const (
	EventSignedUp       EventType = "SIGNED_UP"
	EventSignedIn       EventType = "SIGNED_IN"
	EventSignedOut      EventType = "SIGNED_OUT"
	EventTokenRefreshed EventType = "TOKEN_REFRESHED"
	EventUserUpdated    EventType = "USER_UPDATED"
)

// Event is delivered to subscribers after a session change.
type Event struct {
	Type    EventType
	User    models.User
	Session *Session
}

// Listener receives events synchronously, in subscription order.
type Listener func(ctx context.Context, e Event)

// Session is what the client holds after signing in.
type Session struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresAt    time.Time   `json:"expires_at"`
	User         models.User `json:"user"`
}

// Service implements the identity operations.
type Service struct {
	store  UserStore
	mailer Mailer
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu        sync.RWMutex
	listeners map[int]Listener
	nextID    int

	failMu   sync.Mutex
	failures map[string][]time.Time
	lastSent map[string]time.Time
}

// NewService creates the identity service.
func NewService(store UserStore, mailer Mailer, cfg Config, logger *slog.Logger) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("auth: signing secret required")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = DefaultResendCooldown
	}
	if cfg.MaxFailedSignIns <= 0 {
		cfg.MaxFailedSignIns = DefaultMaxFailedSignIns
	}
	if cfg.FailedSignInWindow <= 0 {
		cfg.FailedSignInWindow = DefaultFailedSignInWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	if mailer == nil {
		mailer = LogMailer{Logger: logger}
	}
	return &Service{
		store:     store,
		mailer:    mailer,
		cfg:       cfg,
		logger:    logger.With("component", "auth"),
		now:       time.Now,
		listeners: make(map[int]Listener),
		failures:  make(map[string][]time.Time),
		lastSent:  make(map[string]time.Time),
	}, nil
}

// Subscribe registers fn for session-change events. The returned function
// removes it.
func (s *Service) Subscribe(fn Listener) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

func (s *Service) emit(ctx context.Context, e Event) {
	s.mu.RLock()
	ids := slices.Sorted(maps.Keys(s.listeners))
	fns := make([]Listener, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.listeners[id])
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(ctx, e)
	}
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// SignUp registers a user. Unless AutoConfirm is set, the user must verify
// the email before signing in.
func (s *Service) SignUp(ctx context.Context, email, password string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if len([]rune(password)) < MinPasswordLength {
		return nil, ErrWeakPassword
	}

	existing, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    now,
	}
	if s.cfg.AutoConfirm {
		user.EmailConfirmedAt = &now
	} else {
		user.VerificationToken = uuid.New().String()
	}

	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	s.logger.Info("user signed up", "user_id", user.ID, "auto_confirmed", s.cfg.AutoConfirm)

	if !s.cfg.AutoConfirm {
		s.sendVerification(ctx, user)
	}

	s.emit(ctx, Event{Type: EventSignedUp, User: user})
	return &user, nil
}

func (s *Service) sendVerification(ctx context.Context, u models.User) {
	s.failMu.Lock()
	s.lastSent[u.Email] = s.now()
	s.failMu.Unlock()

	if err := s.mailer.SendVerification(ctx, u.Email, u.VerificationToken); err != nil {
		s.logger.Warn("failed to send verification email", "user_id", u.ID, "error", err)
	}
}

// SignIn checks the password and starts a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (*Session, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if s.lockedOut(email) {
		return nil, ErrRateLimited
	}

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		s.recordFailure(email)
		return nil, ErrInvalidCredentials
	}
	s.clearFailures(email)

	if !user.EmailConfirmed() {
		return nil, ErrEmailNotConfirmed
	}

	sess, err := s.issue(ctx, *user)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed in", "user_id", user.ID)
	s.emit(ctx, Event{Type: EventSignedIn, User: *user, Session: sess})
	return sess, nil
}

func (s *Service) lockedOut(email string) bool {
	s.failMu.Lock()
	defer s.failMu.Unlock()
	cutoff := s.now().Add(-s.cfg.FailedSignInWindow)
	recent := s.failures[email][:0]
	for _, t := range s.failures[email] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	s.failures[email] = recent
	return len(recent) >= s.cfg.MaxFailedSignIns
}

func (s *Service) recordFailure(email string) {
	s.failMu.Lock()
	s.failures[email] = append(s.failures[email], s.now())
	s.failMu.Unlock()
}

func (s *Service) clearFailures(email string) {
	s.failMu.Lock()
	delete(s.failures, email)
	s.failMu.Unlock()
}

// Refresh exchanges a refresh token for a new session. The old token is
// revoked.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	rec, err := s.store.SessionByToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if rec == nil {
		return nil, ErrInvalidToken
	}
	if err := s.store.DeleteSession(ctx, refreshToken); err != nil {
		return nil, fmt.Errorf("revoke session: %w", err)
	}
	if !s.now().Before(rec.ExpiresAt) {
		return nil, ErrSessionExpired
	}

	user, err := s.store.UserByID(ctx, rec.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	sess, err := s.issue(ctx, *user)
	if err != nil {
		return nil, err
	}
	s.emit(ctx, Event{Type: EventTokenRefreshed, User: *user, Session: sess})
	return sess, nil
}

// SignOut revokes the refresh token. Unknown tokens are ignored.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	rec, err := s.store.SessionByToken(ctx, refreshToken)
	if err != nil {
		return fmt.Errorf("lookup session: %w", err)
	}
	if rec == nil {
		return nil
	}
	if err := s.store.DeleteSession(ctx, refreshToken); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}

	user, err := s.store.UserByID(ctx, rec.UserID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user != nil {
		s.logger.Info("user signed out", "user_id", user.ID)
		s.emit(ctx, Event{Type: EventSignedOut, User: *user})
	}
	return nil
}

// CurrentUser resolves an access token to its user.
func (s *Service) CurrentUser(ctx context.Context, accessToken string) (*models.User, error) {
	id, err := s.Authenticate(accessToken)
	if err != nil {
		return nil, err
	}
	user, err := s.store.UserByID(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidToken
	}
	return user, nil
}

// VerifyEmail confirms the address that token was issued for.
func (s *Service) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, ErrInvalidToken
	}
	user, err := s.store.UserByVerificationToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	now := s.now().UTC()
	user.EmailConfirmedAt = &now
	user.VerificationToken = ""
	if err := s.store.UpdateUser(ctx, *user); err != nil {
		return nil, fmt.Errorf("update user: %w", err)
	}
	s.logger.Info("email verified", "user_id", user.ID)
	s.emit(ctx, Event{Type: EventUserUpdated, User: *user})
	return user, nil
}

// ResendVerification sends a fresh token. Unknown or already verified
// addresses succeed silently so the endpoint can't be used to probe accounts.
func (s *Service) ResendVerification(ctx context.Context, email string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}

	s.failMu.Lock()
	last, sent := s.lastSent[email]
	s.failMu.Unlock()
	if sent && s.now().Sub(last) < s.cfg.ResendCooldown {
		return ErrEmailRateLimited
	}

	user, err := s.store.UserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || user.EmailConfirmed() {
		return nil
	}

	user.VerificationToken = uuid.New().String()
	if err := s.store.UpdateUser(ctx, *user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	s.sendVerification(ctx, *user)
	return nil
}

// UpdatePassword sets a new password and revokes every refresh session of
// the user.
func (s *Service) UpdatePassword(ctx context.Context, userID, newPassword string) error {
	if len([]rune(newPassword)) < MinPasswordLength {
		return ErrWeakPassword
	}
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return ErrInvalidToken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = string(hash)
	if err := s.store.UpdateUser(ctx, *user); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if err := s.store.DeleteUserSessions(ctx, userID); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	s.logger.Info("password updated", "user_id", userID)
	s.emit(ctx, Event{Type: EventUserUpdated, User: *user})
	return nil
}

// IsEmailVerified reports whether the user behind accessToken has confirmed
// their address. Any lookup failure counts as unverified.
func (s *Service) IsEmailVerified(ctx context.Context, accessToken string) bool {
	user, err := s.CurrentUser(ctx, accessToken)
	return err == nil && user.EmailConfirmed()
}

func (s *Service) issue(ctx context.Context, user models.User) (*Session, error) {
	now := s.now()
	access, exp, err := s.signAccessToken(user, now)
	if err != nil {
		return nil, err
	}
	rec := models.AuthSession{
		RefreshToken: uuid.New().String(),
		UserID:       user.ID,
		ExpiresAt:    now.Add(s.cfg.RefreshTTL).UTC(),
		CreatedAt:    now.UTC(),
	}
	if err := s.store.CreateSession(ctx, rec); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Session{
		AccessToken:  access,
		RefreshToken: rec.RefreshToken,
		ExpiresAt:    exp,
		User:         user,
	}, nil
}
