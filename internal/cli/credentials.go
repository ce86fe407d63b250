package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/auth"
	"github.com/raphaelgruber/feelfree-go/internal/client"
	"github.com/raphaelgruber/feelfree-go/internal/config"
	"gopkg.in/yaml.v3"
)

// refreshMargin is how close to expiry a token gets before it is renewed.
const refreshMargin = time.Minute

// errNotSignedIn is returned when no credentials are stored.
var errNotSignedIn = errors.New("not signed in, run 'feelfree login' first")

// credentials is the signed-in session persisted between commands.
type credentials struct {
	Server       string    `yaml:"server"`
	Email        string    `yaml:"email"`
	UserID       string    `yaml:"user_id"`
	AccessToken  string    `yaml:"access_token"`
	RefreshToken string    `yaml:"refresh_token"`
	ExpiresAt    time.Time `yaml:"expires_at"`
}

func defaultCredentialsPath() string {
	if p := os.Getenv("FEELFREE_CREDENTIALS"); p != "" {
		return p
	}
	dir := config.Dir()
	if dir == "" {
		return "credentials.yaml"
	}
	return filepath.Join(dir, "credentials.yaml")
}

func credentialsFromSession(server string, s *auth.Session) credentials {
	return credentials{
		Server:       server,
		Email:        s.User.Email,
		UserID:       s.User.ID,
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		ExpiresAt:    s.ExpiresAt,
	}
}

// loadCredentials reads path. A missing file yields errNotSignedIn.
func loadCredentials(path string) (credentials, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return credentials{}, errNotSignedIn
	}
	if err != nil {
		return credentials{}, fmt.Errorf("read credentials: %w", err)
	}
	var c credentials
	if err := yaml.Unmarshal(data, &c); err != nil {
		return credentials{}, fmt.Errorf("parse credentials %s: %w", path, err)
	}
	if c.AccessToken == "" {
		return credentials{}, errNotSignedIn
	}
	return c, nil
}

// saveCredentials writes c readable by the owner only.
func saveCredentials(path string, c credentials) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create credentials dir: %w", err)
		}
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write credentials: %w", err)
	}
	return nil
}

func removeCredentials(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove credentials: %w", err)
	}
	return nil
}

// needsRefresh reports whether the access token expires within the margin.
func (c credentials) needsRefresh(now time.Time) bool {
	return c.RefreshToken != "" && !c.ExpiresAt.IsZero() && now.Add(refreshMargin).After(c.ExpiresAt)
}

// newClient returns an unauthenticated client for the chosen server.
func newClient() *client.Client {
	return client.New(serverURL)
}

// authedClient loads the stored session and renews it when it is about to
// expire. An expired refresh token removes the stored credentials.
func authedClient(ctx context.Context) (*client.Client, credentials, error) {
	creds, err := loadCredentials(credsPath)
	if err != nil {
		return nil, credentials{}, err
	}
	server := serverURL
	if server == "" {
		server = creds.Server
	}
	c := client.New(server)
	c.SetToken(creds.AccessToken)

	if !creds.needsRefresh(time.Now()) {
		return c, creds, nil
	}

	logger.Debug("refreshing session", "email", creds.Email, "expires_at", creds.ExpiresAt)
	sess, err := c.Refresh(ctx, creds.RefreshToken)
	if errors.Is(err, auth.ErrSessionExpired) || errors.Is(err, auth.ErrInvalidToken) {
		_ = removeCredentials(credsPath)
		return nil, credentials{}, fmt.Errorf("%s: %w", auth.Message(err), errNotSignedIn)
	}
	if err != nil {
		return nil, credentials{}, fmt.Errorf("refresh session: %w", err)
	}
	creds = credentialsFromSession(c.BaseURL(), sess)
	if err := saveCredentials(credsPath, creds); err != nil {
		logger.Warn("save refreshed credentials failed", "error", err)
	}
	return c, creds, nil
}
