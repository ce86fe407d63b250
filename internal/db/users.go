package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/feelfree-go/internal/metrics"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// CreateUser inserts a user. A taken id or email yields ErrAlreadyExists.
func (c *Client) CreateUser(ctx context.Context, u models.User) error {
	return c.metrics.Time(metrics.OpStoreSave, func() error {
		_, err := surrealdb.Query[any](ctx, c.db, `
			CREATE type::record("user", $id) CONTENT {
				email: $email,
				password_hash: $password_hash,
				email_confirmed_at: $email_confirmed_at,
				verification_token: $verification_token,
				created_at: $created_at
			}
		`, userVars(u))
		if err != nil {
			return fmt.Errorf("create user: %w", wrapQueryError(err))
		}
		return nil
	})
}

// UpdateUser replaces a user's mutable fields. ErrNotFound if absent.
func (c *Client) UpdateUser(ctx context.Context, u models.User) error {
	return c.metrics.Time(metrics.OpStoreSave, func() error {
		results, err := surrealdb.Query[[]userRow](ctx, c.db, `
			UPDATE type::record("user", $id) SET
				email = $email,
				password_hash = $password_hash,
				email_confirmed_at = $email_confirmed_at,
				verification_token = $verification_token
			RETURN AFTER
		`, userVars(u))
		if err != nil {
			return fmt.Errorf("update user: %w", wrapQueryError(err))
		}
		if first(results) == nil {
			return fmt.Errorf("update user %s: %w", u.ID, ErrNotFound)
		}
		return nil
	})
}

// UserByID returns nil when no user has id.
func (c *Client) UserByID(ctx context.Context, id string) (*models.User, error) {
	return c.queryUser(ctx, `SELECT * FROM type::record("user", $v)`, id)
}

// UserByEmail matches the stored (normalized) email exactly.
func (c *Client) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	return c.queryUser(ctx, `SELECT * FROM user WHERE email = $v LIMIT 1`, email)
}

// UserByVerificationToken returns nil for an empty or unknown token.
func (c *Client) UserByVerificationToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	return c.queryUser(ctx, `SELECT * FROM user WHERE verification_token = $v LIMIT 1`, token)
}

func (c *Client) queryUser(ctx context.Context, sql, v string) (*models.User, error) {
	var user *models.User
	err := c.metrics.Time(metrics.OpStoreLoad, func() error {
		results, err := surrealdb.Query[[]userRow](ctx, c.db, sql, map[string]any{"v": v})
		if err != nil {
			return fmt.Errorf("get user: %w", wrapQueryError(err))
		}
		row := first(results)
		if row == nil {
			return nil
		}
		u, err := row.model()
		if err != nil {
			return err
		}
		user = &u
		return nil
	})
	return user, err
}

// CreateSession stores a refresh session keyed by its token.
func (c *Client) CreateSession(ctx context.Context, s models.AuthSession) error {
	return c.metrics.Time(metrics.OpStoreSave, func() error {
		_, err := surrealdb.Query[any](ctx, c.db, `
			CREATE type::record("auth_session", $token) CONTENT {
				user_id: $user_id,
				expires_at: $expires_at,
				created_at: $created_at
			}
		`, map[string]any{
			"token":      s.RefreshToken,
			"user_id":    s.UserID,
			"expires_at": s.ExpiresAt.UTC(),
			"created_at": s.CreatedAt.UTC(),
		})
		if err != nil {
			return fmt.Errorf("create session: %w", wrapQueryError(err))
		}
		return nil
	})
}

// SessionByToken returns nil when the token is unknown.
func (c *Client) SessionByToken(ctx context.Context, token string) (*models.AuthSession, error) {
	var sess *models.AuthSession
	err := c.metrics.Time(metrics.OpStoreLoad, func() error {
		results, err := surrealdb.Query[[]sessionRow](ctx, c.db,
			`SELECT * FROM type::record("auth_session", $token)`, map[string]any{"token": token})
		if err != nil {
			return fmt.Errorf("get session: %w", wrapQueryError(err))
		}
		row := first(results)
		if row == nil {
			return nil
		}
		s, err := row.model()
		if err != nil {
			return err
		}
		sess = &s
		return nil
	})
	return sess, err
}

// DeleteSession removes one refresh session. Missing tokens are ignored.
func (c *Client) DeleteSession(ctx context.Context, token string) error {
	return c.metrics.Time(metrics.OpStoreDelete, func() error {
		_, err := surrealdb.Query[any](ctx, c.db,
			`DELETE type::record("auth_session", $token)`, map[string]any{"token": token})
		if err != nil {
			return fmt.Errorf("delete session: %w", wrapQueryError(err))
		}
		return nil
	})
}

// DeleteUserSessions revokes every refresh session of a user.
func (c *Client) DeleteUserSessions(ctx context.Context, userID string) error {
	return c.metrics.Time(metrics.OpStoreDelete, func() error {
		_, err := surrealdb.Query[any](ctx, c.db,
			`DELETE auth_session WHERE user_id = $user_id`, map[string]any{"user_id": userID})
		if err != nil {
			return fmt.Errorf("delete user sessions: %w", wrapQueryError(err))
		}
		return nil
	})
}
