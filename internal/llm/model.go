// Package llm adapts language-model endpoints to the chat reply generator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/raphaelgruber/feelfree-go/internal/config"
	"github.com/raphaelgruber/feelfree-go/internal/conversation"
	"github.com/raphaelgruber/feelfree-go/internal/metrics"
	"github.com/raphaelgruber/feelfree-go/internal/models"
	"github.com/raphaelgruber/feelfree-go/internal/persona"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// Default model names per provider, used when none is configured.
const (
	DefaultOllamaModel    = "llama3.2"
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultBedrockModel   = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultGeminiModel    = "gemini-1.5-flash"
)

// ErrNoChoices is returned when a provider answers without any candidate.
var ErrNoChoices = errors.New("no response choices")

// New builds the reply generator selected by cfg.LLMProvider.
func New(ctx context.Context, cfg config.Config, mc *metrics.Collector, logger *slog.Logger) (conversation.Generator, error) {
	switch cfg.LLMProvider {
	case config.ProviderMock, "":
		return NewMock(), nil
	case config.ProviderGemini:
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, modelOr(cfg.LLMModel, DefaultGeminiModel), mc, logger)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		m, err := NewModel(ctx, cfg, mc, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// Model wraps a langchaingo model for chat replies.
type Model struct {
	llm       llms.Model
	modelName string
	metrics   *metrics.Collector
	logger    *slog.Logger
}

// NewModel creates a langchaingo-backed model based on configuration.
func NewModel(ctx context.Context, cfg config.Config, mc *metrics.Collector, logger *slog.Logger) (*Model, error) {
	var model llms.Model
	var name string
	var err error

	switch cfg.LLMProvider {
	case config.ProviderOllama:
		name = modelOr(cfg.LLMModel, DefaultOllamaModel)
		model, err = ollama.New(
			ollama.WithModel(name),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}

	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("OpenAI API key required")
		}
		name = modelOr(cfg.LLMModel, DefaultOpenAIModel)
		model, err = openai.New(
			openai.WithToken(cfg.OpenAIAPIKey),
			openai.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create openai model: %w", err)
		}

	case config.ProviderAnthropic:
		if cfg.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("Anthropic API key required")
		}
		name = modelOr(cfg.LLMModel, DefaultAnthropicModel)
		model, err = anthropic.New(
			anthropic.WithToken(cfg.AnthropicAPIKey),
			anthropic.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create anthropic model: %w", err)
		}

	case config.ProviderBedrock:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return nil, fmt.Errorf("load aws config: %w", err)
		}
		name = modelOr(cfg.LLMModel, DefaultBedrockModel)
		model, err = bedrock.New(
			bedrock.WithClient(bedrockruntime.NewFromConfig(awsCfg)),
			bedrock.WithModel(name),
		)
		if err != nil {
			return nil, fmt.Errorf("create bedrock model: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.LLMProvider)
	}

	return newModel(model, name, mc, logger), nil
}

func newModel(model llms.Model, name string, mc *metrics.Collector, logger *slog.Logger) *Model {
	if logger == nil {
		logger = slog.Default()
	}
	return &Model{
		llm:       model,
		modelName: name,
		metrics:   mc,
		logger:    logger.With("component", "llm", "model", name),
	}
}

// Model returns the LLM model name.
func (m *Model) Model() string {
	return m.modelName
}

// Generate sends the persona prompt, the prior turns and the new user text
// in one call and returns the first candidate's text.
func (m *Model) Generate(ctx context.Context, p persona.Persona, history []models.Message, text string) (string, error) {
	messages := buildMessages(p.Prompt, history, text)

	start := time.Now()
	response, err := m.llm.GenerateContent(ctx, messages, callOptions(p.Config)...)
	duration := time.Since(start)

	if err != nil {
		m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, 0, 0, err)
		m.logger.Warn("generate failed", "turns", len(history), "duration_ms", duration.Milliseconds(), "error", err)
		return "", fmt.Errorf("generate: %w", wrapFatalError(err))
	}
	if len(response.Choices) == 0 {
		m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, 0, 0, ErrNoChoices)
		return "", ErrNoChoices
	}

	choice := response.Choices[0]
	in, out := tokenUsage(choice.GenerationInfo)
	m.metrics.RecordLLMUsage(metrics.OpLLMGenerate, duration, in, out, nil)
	m.logger.Debug("generate complete", "turns", len(history), "duration_ms", duration.Milliseconds(),
		"input_tokens", in, "output_tokens", out)
	return choice.Content, nil
}

func buildMessages(system string, history []models.Message, text string) []llms.MessageContent {
	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, system))
	for _, msg := range history {
		role := llms.ChatMessageTypeHuman
		if msg.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, msg.Content))
	}
	return append(messages, llms.TextParts(llms.ChatMessageTypeHuman, text))
}

func callOptions(g persona.GenerationConfig) []llms.CallOption {
	return []llms.CallOption{
		llms.WithTemperature(g.Temperature),
		llms.WithTopK(g.TopK),
		llms.WithTopP(g.TopP),
		llms.WithMaxTokens(g.MaxOutputTokens),
	}
}

// tokenUsage reads token counts from provider-specific generation info keys.
func tokenUsage(info map[string]any) (in, out int64) {
	in = firstInt(info, "PromptTokens", "InputTokens", "input_tokens", "prompt_tokens")
	out = firstInt(info, "CompletionTokens", "OutputTokens", "output_tokens", "completion_tokens")
	return in, out
}

func firstInt(info map[string]any, keys ...string) int64 {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return int64(v)
		case int32:
			return int64(v)
		case int64:
			return v
		case float64:
			return int64(v)
		}
	}
	return 0
}

func modelOr(name, def string) string {
	if name == "" {
		return def
	}
	return name
}
