package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/raphaelgruber/feelfree-go/internal/metrics"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// LatestConversation returns the user's most recently updated
// conversation, or nil when there is none.
func (c *Client) LatestConversation(ctx context.Context, userID string) (*models.Conversation, error) {
	var conv *models.Conversation
	err := c.metrics.Time(metrics.OpStoreLoad, func() error {
		results, err := surrealdb.Query[[]conversationRow](ctx, c.db, `
			SELECT * FROM conversation
			WHERE user_id = $user_id
			ORDER BY last_updated DESC
			LIMIT 1
		`, map[string]any{"user_id": userID})
		if err != nil {
			return fmt.Errorf("latest conversation: %w", wrapQueryError(err))
		}
		row := first(results)
		if row == nil {
			return nil
		}
		m, err := row.model()
		if err != nil {
			return err
		}
		conv = &m
		return nil
	})
	return conv, err
}

// SaveConversation upserts conv by id. An empty id inserts a new record and
// the generated id is returned.
func (c *Client) SaveConversation(ctx context.Context, conv models.Conversation) (string, error) {
	id := conv.ID
	if id == "" {
		id = uuid.NewString()
	}
	messages := conv.Messages
	if messages == nil {
		messages = []models.Message{}
	}
	err := c.metrics.Time(metrics.OpStoreSave, func() error {
		_, err := surrealdb.Query[any](ctx, c.db, `
			UPSERT type::record("conversation", $id) CONTENT {
				user_id: $user_id,
				messages: $messages,
				last_updated: $last_updated
			}
		`, map[string]any{
			"id":           id,
			"user_id":      conv.UserID,
			"messages":     messages,
			"last_updated": conv.LastUpdated.UTC(),
		})
		if err != nil {
			return fmt.Errorf("save conversation: %w", wrapQueryError(err))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// DeleteConversation removes a conversation. Missing ids are ignored.
func (c *Client) DeleteConversation(ctx context.Context, id string) error {
	return c.metrics.Time(metrics.OpStoreDelete, func() error {
		_, err := surrealdb.Query[any](ctx, c.db,
			`DELETE type::record("conversation", $id)`, map[string]any{"id": id})
		if err != nil {
			return fmt.Errorf("delete conversation: %w", wrapQueryError(err))
		}
		return nil
	})
}
