package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/feelfree-go/internal/metrics"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/persona"
	"google.golang.org/genai"
)

// contentGenerator is the slice of *genai.Models the adapter uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates replies through the Gemini API.
type Gemini struct {
	models    contentGenerator
	modelName string
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewGemini creates a Gemini API client for model.
func NewGemini(ctx context.Context, apiKey, model string, mc *metrics.Collector, logger *slog.Logger) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return newGemini(client.Models, model, mc, logger), nil
}

func newGemini(cg contentGenerator, model string, mc *metrics.Collector, logger *slog.Logger) *Gemini {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gemini{
		models:    cg,
		modelName: model,
		metrics:   mc,
		logger:    logger.With("component", "llm", "model", model),
	}
}

// Model returns the Gemini model name.
func (g *Gemini) Model() string {
	return g.modelName
}

// Generate implements conversation.Generator.
func (g *Gemini) Generate(ctx context.Context, p persona.Persona, history []models.Message, text string) (string, error) {
	contents := buildContents(history, text)

	start := time.Now()
	resp, err := g.models.GenerateContent(ctx, g.modelName, contents, generateConfig(p))
	duration := time.Since(start)

	if err != nil {
		g.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, 0, 0, err)
		g.logger.Warn("generate failed", "turns", len(history), "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("gemini generate: %w", wrapFatalError(err))
	}
	if resp == nil || len(resp.Candidates) == 0 {
		g.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, 0, 0, ErrNoChoices)
		return "", ErrNoChoices
	}

	var in, out int64
	if u := resp.UsageMetadata; u != nil {
		in, out = int64(u.PromptTokenCount), int64(u.CandidatesTokenCount)
	}
	g.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, in, out, nil)
	g.logger.Debug("generate complete", "turns", len(history), "duration_ms", duration.Milliseconds())
	return resp.Text(), nil
}

// buildContents maps the transcript to Gemini turns. The API requires the
// first turn to come from the user, so leading assistant messages (the
// greeting) are dropped.
func buildContents(history []models.Message, text string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, msg := range history {
		role := genai.Role(genai.RoleUser)
		if msg.Role == models.RoleAssistant {
			if len(contents) == 0 {
				continue
			}
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}
	return append(contents, genai.NewContentFromText(text, genai.RoleUser))
}

func generateConfig(p persona.Persona) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(p.Prompt, genai.RoleUser),
		Temperature:       genai.Ptr(float32(p.Config.Temperature)),
		TopK:              genai.Ptr(float32(p.Config.TopK)),
		TopP:              genai.Ptr(float32(p.Config.TopP)),
		MaxOutputTokens:   int32(p.Config.MaxOutputTokens),
	}
}
