// Package client provides a typed HTTP client for the FeelFree server.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/feelfree-go/internal/api"
	"github.com/raphaelgruber/feelfree-go/internal/auth"
	"github.com/raphaelgruber/feelfree-go/internal/metrics"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/onboarding"
)

// DefaultServerURL is used when neither the caller nor FEELFREE_SERVER_URL
// names a server.
const DefaultServerURL = "http://localhost:8080"

// Client talks to the FeelFree API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

// New creates a client.
// If baseURL is empty, uses FEELFREE_SERVER_URL or defaults to localhost:8080.
// Timeout can be configured via FEELFREE_CLIENT_TIMEOUT (default 2m, model
// replies can be slow).
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = os.Getenv("FEELFREE_SERVER_URL")
	}
	if baseURL == "" {
		baseURL = DefaultServerURL
	}

	timeout := 2 * time.Minute
	if t := os.Getenv("FEELFREE_CLIENT_TIMEOUT"); t != "" {
		if d, err := time.ParseDuration(t); err == nil {
			timeout = d
		}
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetToken sets the access token sent with every request.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// Token returns the current access token.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends a JSON request and decodes a JSON response into out.
// Error bodies are turned back into the server's sentinel errors.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp, data)
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func decodeError(resp *http.Response, data []byte) error {
	var body api.ErrorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Code != "" {
		return body.Err()
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s", auth.ErrServer, resp.Status)
	}
	return fmt.Errorf("server error: %s - %s", resp.Status, strings.TrimSpace(string(data)))
}

// =============================================================================
// AUTH
// =============================================================================

// SignUp registers a new account. When the server auto-confirms, the
// returned session is set and becomes the client's token.
func (c *Client) SignUp(ctx context.Context, email, password string) (*api.SignUpResponse, error) {
	var resp api.SignUpResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/signup", api.Credentials{Email: email, Password: password}, &resp); err != nil {
		return nil, err
	}
	if resp.Session != nil {
		c.SetToken(resp.Session.AccessToken)
	}
	return &resp, nil
}

// SignIn starts a session and uses its access token from now on.
func (c *Client) SignIn(ctx context.Context, email, password string) (*auth.Session, error) {
	var sess auth.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", api.Credentials{Email: email, Password: password}, &sess); err != nil {
		return nil, err
	}
	c.SetToken(sess.AccessToken)
	return &sess, nil
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*auth.Session, error) {
	var sess auth.Session
	if err := c.do(ctx, http.MethodPost, "/api/auth/refresh", api.RefreshRequest{RefreshToken: refreshToken}, &sess); err != nil {
		return nil, err
	}
	c.SetToken(sess.AccessToken)
	return &sess, nil
}

// SignOut revokes the refresh token and forgets the access token.
func (c *Client) SignOut(ctx context.Context, refreshToken string) error {
	if err := c.do(ctx, http.MethodPost, "/api/auth/logout", api.RefreshRequest{RefreshToken: refreshToken}, nil); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// VerifyEmail confirms an address with the emailed token.
func (c *Client) VerifyEmail(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPost, "/api/auth/verify", api.VerifyRequest{Token: token}, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ResendVerification asks for a fresh verification email.
func (c *Client) ResendVerification(ctx context.Context, email string) error {
	return c.do(ctx, http.MethodPost, "/api/auth/resend", api.ResendRequest{Email: email}, nil)
}

// PasswordStrength scores a candidate password.
func (c *Client) PasswordStrength(ctx context.Context, password string) (*auth.PasswordStrength, error) {
	var s auth.PasswordStrength
	if err := c.do(ctx, http.MethodPost, "/api/auth/password/strength", api.PasswordRequest{Password: password}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Session describes the signed-in user.
func (c *Client) Session(ctx context.Context) (*api.SessionInfo, error) {
	var info api.SessionInfo
	if err := c.do(ctx, http.MethodGet, "/api/auth/session", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// UpdatePassword changes the password. Every refresh token is revoked.
func (c *Client) UpdatePassword(ctx context.Context, password string) error {
	return c.do(ctx, http.MethodPut, "/api/auth/password", api.PasswordRequest{Password: password}, nil)
}

// Route asks the route guard where path leads.
func (c *Client) Route(ctx context.Context, path string) (string, error) {
	var resp api.RouteResponse
	if err := c.do(ctx, http.MethodGet, "/api/route?path="+url.QueryEscape(path), nil, &resp); err != nil {
		return "", err
	}
	return resp.Path, nil
}

// =============================================================================
// ONBOARDING & PROFILE
// =============================================================================

// Questions returns the questionnaire, addressed to name where it applies.
func (c *Client) Questions(ctx context.Context, name string) ([]api.Question, error) {
	path := "/api/onboarding/questions"
	if name != "" {
		path += "?name=" + url.QueryEscape(name)
	}
	var resp api.QuestionsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Questions, nil
}

// CompleteOnboarding submits the answer set.
func (c *Client) CompleteOnboarding(ctx context.Context, answers onboarding.Answers) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, http.MethodPost, "/api/onboarding", api.OnboardingRequest{Answers: answers}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Profile returns the user's profile.
func (c *Client) Profile(ctx context.Context) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, http.MethodGet, "/api/profile", nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProfile edits the display name and/or preferences.
func (c *Client) UpdateProfile(ctx context.Context, u api.ProfileUpdate) (*models.Profile, error) {
	var p models.Profile
	if err := c.do(ctx, http.MethodPut, "/api/profile", u, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// =============================================================================
// CHAT
// =============================================================================

// OpenChat starts or resumes the conversation.
func (c *Client) OpenChat(ctx context.Context) (*api.ChatSession, error) {
	return c.chatSession(ctx, http.MethodGet, "/api/chat")
}

// History returns the conversation's messages.
func (c *Client) History(ctx context.Context) (*api.ChatSession, error) {
	return c.chatSession(ctx, http.MethodGet, "/api/chat/messages")
}

// Clear deletes the conversation and starts over.
func (c *Client) Clear(ctx context.Context) (*api.ChatSession, error) {
	return c.chatSession(ctx, http.MethodDelete, "/api/chat/messages")
}

func (c *Client) chatSession(ctx context.Context, method, path string) (*api.ChatSession, error) {
	var s api.ChatSession
	if err := c.do(ctx, method, path, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Send submits one message and waits for the exchange to finish.
func (c *Client) Send(ctx context.Context, text string) (*api.ExchangeResponse, error) {
	var ex api.ExchangeResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat/messages", api.SendRequest{Text: text}, &ex); err != nil {
		return nil, err
	}
	return &ex, nil
}

// CloseChat drops the server-side session. Stored data is kept.
func (c *Client) CloseChat(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/chat", nil, nil)
}

// Stats returns the server's runtime statistics.
func (c *Client) Stats(ctx context.Context) (*metrics.Snapshot, error) {
	var s metrics.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/stats", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// =============================================================================
// EVENTS
// =============================================================================

// Events streams the user's events until ctx is cancelled, the server goes
// away or onEvent returns an error.
func (c *Client) Events(ctx context.Context, onEvent func(api.Event) error) error {
	u, err := url.Parse(c.baseURL + "/api/events")
	if err != nil {
		return fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("token", c.Token())
	u.RawQuery = q.Encode()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			data, _ := io.ReadAll(resp.Body)
			if resp.StatusCode >= http.StatusBadRequest {
				return decodeError(resp, data)
			}
		}
		return fmt.Errorf("websocket connect: %w", err)
	}

	var once sync.Once
	closeConn := func() { once.Do(func() { conn.Close() }) }
	defer closeConn()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			closeConn()
		case <-done:
		}
	}()

	for {
		var ev api.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		if err := onEvent(ev); err != nil {
			if errors.Is(err, ErrStop) {
				return nil
			}
			return err
		}
	}
}

// ErrStop ends an event stream without error when returned by onEvent.
var ErrStop = errors.New("stop")
