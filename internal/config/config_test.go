package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("FEELFREE_STORAGE", "")
	t.Setenv("FEELFREE_LLM_PROVIDER", "")
	t.Setenv("FEELFREE_ACCESS_TTL", "")

	cfg := FromEnv()
	assert.Equal(t, StorageMemory, cfg.Storage)
	assert.Equal(t, ProviderMock, cfg.LLMProvider)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("FEELFREE_STORAGE", "surrealdb")
	t.Setenv("FEELFREE_ACCESS_TTL", "90")
	t.Setenv("FEELFREE_AUTO_CONFIRM", "true")
	t.Setenv("FEELFREE_LOG_LEVEL", "debug")
	t.Setenv("FEELFREE_CORS_ORIGINS", "http://localhost:5173, ,https://feelfree.app")

	cfg := FromEnv()
	assert.Equal(t, StorageSurrealDB, cfg.Storage)
	assert.Equal(t, 90*time.Second, cfg.AccessTTL)
	assert.True(t, cfg.AutoConfirm)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, []string{"http://localhost:5173", "https://feelfree.app"}, cfg.CORSOrigins)
}

func TestApplyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm_provider: gemini
gemini_api_key: key
refresh_ttl: 48h
compose_delay: true
log_level: warn
`), 0o600))

	cfg := Config{LLMProvider: ProviderMock, ServerAddr: ":9000"}
	require.NoError(t, cfg.ApplyFile(path))
	assert.Equal(t, ProviderGemini, cfg.LLMProvider)
	assert.Equal(t, "key", cfg.GeminiAPIKey)
	assert.Equal(t, 48*time.Hour, cfg.RefreshTTL)
	assert.True(t, cfg.ComposeDelay)
	assert.Equal(t, slog.LevelWarn, cfg.LogLevel)
	assert.Equal(t, ":9000", cfg.ServerAddr, "unset keys keep their value")
}

func TestApplyFile_MissingIsFine(t *testing.T) {
	cfg := Config{Storage: StorageMemory}
	require.NoError(t, cfg.ApplyFile(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Equal(t, StorageMemory, cfg.Storage)
}

func TestApplyFile_BadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("access_ttl: soon\n"), 0o600))
	var cfg Config
	err := cfg.ApplyFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_ttl")
}

func TestLoad_UsesConfigEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage: surrealdb\n"), 0o600))
	t.Setenv("FEELFREE_CONFIG", path)
	t.Setenv("FEELFREE_STORAGE", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageSurrealDB, cfg.Storage)
}

func TestValidate(t *testing.T) {
	ok := Config{Storage: StorageMemory, LLMProvider: ProviderMock, JWTSecret: "s"}
	require.NoError(t, ok.Validate())

	bad := Config{Storage: "disk", LLMProvider: ProviderOpenAI}
	err := bad.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `unknown storage backend "disk"`)
	assert.Contains(t, msg, "OPENAI_API_KEY")
	assert.Contains(t, msg, "FEELFREE_JWT_SECRET")
}

func TestNewLogger_Fanout(t *testing.T) {
	var console, structured bytes.Buffer
	logger := NewLogger(&console, &structured, slog.LevelInfo)
	logger.Debug("hidden")
	logger.Info("hello", "user_id", "u1")

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "user_id=u1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(structured.String())), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "u1", rec["user_id"])
}

func TestSetupLogger_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "feelfree.log")
	logger, cleanup := SetupLogger(path, slog.LevelInfo)
	logger.Info("started")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"started"`)
}
