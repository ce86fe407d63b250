package db

import (
	"context"
	"fmt"

	"github.com/raphaelgruber/feelfree-go/internal/metrics"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// Profile returns the profile keyed by userID, or nil.
func (c *Client) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	var profile *models.Profile
	err := c.metrics.Time(metrics.OpStoreLoad, func() error {
		results, err := surrealdb.Query[[]profileRow](ctx, c.db,
			`SELECT * FROM type::record("profile", $id)`, map[string]any{"id": userID})
		if err != nil {
			return fmt.Errorf("get profile: %w", wrapQueryError(err))
		}
		row := first(results)
		if row == nil {
			return nil
		}
		p, err := row.model()
		if err != nil {
			return err
		}
		profile = &p
		return nil
	})
	return profile, err
}

// UpsertProfile writes name, preferences and the onboarding flag in one
// statement.
func (c *Client) UpsertProfile(ctx context.Context, p models.Profile) error {
	var name *string
	if p.FullName != "" {
		name = &p.FullName
	}
	return c.metrics.Time(metrics.OpStoreSave, func() error {
		_, err := surrealdb.Query[any](ctx, c.db, `
			UPSERT type::record("profile", $id) SET
				full_name = $full_name,
				onboarding_completed = $onboarding_completed,
				user_preferences = $user_preferences,
				created_at = created_at ?? $created_at,
				updated_at = $updated_at
		`, map[string]any{
			"id":                   p.ID,
			"full_name":            name,
			"onboarding_completed": p.OnboardingCompleted,
			"user_preferences":     p.Preferences,
			"created_at":           p.CreatedAt.UTC(),
			"updated_at":           p.UpdatedAt.UTC(),
		})
		if err != nil {
			return fmt.Errorf("upsert profile: %w", wrapQueryError(err))
		}
		return nil
	})
}
