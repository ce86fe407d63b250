package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/persona"
)

// Mock is a deterministic generator for local development and tests.
// It never calls out and always answers.
type Mock struct{}

// NewMock creates a mock generator.
func NewMock() *Mock {
	return &Mock{}
}

// Model returns the mock model name.
func (*Mock) Model() string {
	return "mock"
}

// Generate echoes the text with the number of prior user turns.
func (*Mock) Generate(ctx context.Context, _ persona.Persona, history []models.Message, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	turns := 0
	for _, m := range history {
		if m.Role == models.RoleUser {
			turns++
		}
	}
	return fmt.Sprintf("I hear you: %q. (turn %d)", strings.TrimSpace(text), turns+1), nil
}
