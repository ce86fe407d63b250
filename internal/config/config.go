package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	StorageMemory    = "memory"
	StorageSurrealDB = "surrealdb"
)

// LLM providers.
const (
	ProviderMock      = "mock"
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderGemini    = "gemini"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	ServerAddr  string   `yaml:"server_addr"`
	ServerURL   string   `yaml:"server_url"`
	CORSOrigins []string `yaml:"cors_origins"`

	// Storage
	Storage string `yaml:"storage"`

	// SurrealDB connection
	SurrealDBURL       string `yaml:"surrealdb_url"`
	SurrealDBNamespace string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  string `yaml:"surrealdb_database"`
	SurrealDBUser      string `yaml:"surrealdb_user"`
	SurrealDBPass      string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel string `yaml:"surrealdb_auth_level"`

	// Language model
	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	OllamaHost      string `yaml:"ollama_host"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	GeminiAPIKey    string `yaml:"gemini_api_key"`
	AWSRegion       string `yaml:"aws_region"`
	ComposeDelay    bool   `yaml:"compose_delay"`

	// Identity
	JWTSecret   string        `yaml:"jwt_secret"`
	AccessTTL   time.Duration `yaml:"access_ttl"`
	RefreshTTL  time.Duration `yaml:"refresh_ttl"`
	AutoConfirm bool          `yaml:"auto_confirm"`

	// Logging
	LogFile  string     `yaml:"log_file"`
	LogLevel slog.Level `yaml:"-"`
}

// fileConfig mirrors Config for the YAML overlay. Pointers tell "unset"
// apart from zero values.
type fileConfig struct {
	ServerAddr         *string `yaml:"server_addr"`
	ServerURL          *string `yaml:"server_url"`
	Storage            *string `yaml:"storage"`
	SurrealDBURL       *string `yaml:"surrealdb_url"`
	SurrealDBNamespace *string `yaml:"surrealdb_namespace"`
	SurrealDBDatabase  *string `yaml:"surrealdb_database"`
	SurrealDBUser      *string `yaml:"surrealdb_user"`
	SurrealDBPass      *string `yaml:"surrealdb_pass"`
	SurrealDBAuthLevel *string `yaml:"surrealdb_auth_level"`
	LLMProvider        *string `yaml:"llm_provider"`
	LLMModel           *string `yaml:"llm_model"`
	OllamaHost         *string `yaml:"ollama_host"`
	OpenAIAPIKey       *string `yaml:"openai_api_key"`
	AnthropicAPIKey    *string `yaml:"anthropic_api_key"`
	GeminiAPIKey       *string `yaml:"gemini_api_key"`
	AWSRegion          *string `yaml:"aws_region"`
	ComposeDelay       *bool   `yaml:"compose_delay"`
	JWTSecret          *string `yaml:"jwt_secret"`
	AccessTTL          *string `yaml:"access_ttl"`
	RefreshTTL         *string `yaml:"refresh_ttl"`
	AutoConfirm        *bool   `yaml:"auto_confirm"`
	LogFile            *string `yaml:"log_file"`
	LogLevel           *string `yaml:"log_level"`

	CORSOrigins []string `yaml:"cors_origins"`
}

// Load reads configuration from environment variables, then applies the
// YAML file named by FEELFREE_CONFIG (default ~/.feelfree/config.yaml) if
// it exists. File values win over environment values.
func Load() (Config, error) {
	cfg := FromEnv()
	path := getEnv("FEELFREE_CONFIG", defaultConfigPath())
	if path == "" {
		return cfg, nil
	}
	if err := cfg.ApplyFile(path); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FromEnv reads configuration from environment variables only.
func FromEnv() Config {
	return Config{
		ServerAddr:  getEnv("FEELFREE_ADDR", ":8080"),
		ServerURL:   getEnv("FEELFREE_SERVER_URL", "http://localhost:8080"),
		CORSOrigins: splitList(getEnv("FEELFREE_CORS_ORIGINS", "")),
		Storage:     getEnv("FEELFREE_STORAGE", StorageMemory),

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "feelfree"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "app"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		LLMProvider:     getEnv("FEELFREE_LLM_PROVIDER", ProviderMock),
		LLMModel:        getEnv("FEELFREE_LLM_MODEL", ""),
		OllamaHost:      getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		AWSRegion:       getEnv("AWS_REGION", "us-east-1"),
		ComposeDelay:    getEnv("FEELFREE_COMPOSE_DELAY", "false") == "true",

		JWTSecret:   getEnv("FEELFREE_JWT_SECRET", ""),
		AccessTTL:   parseDuration(getEnv("FEELFREE_ACCESS_TTL", "15m"), 15*time.Minute),
		RefreshTTL:  parseDuration(getEnv("FEELFREE_REFRESH_TTL", "720h"), 720*time.Hour),
		AutoConfirm: getEnv("FEELFREE_AUTO_CONFIRM", "false") == "true",

		LogFile:  getEnv("FEELFREE_LOG_FILE", "/tmp/feelfree.log"),
		LogLevel: parseLogLevel(getEnv("FEELFREE_LOG_LEVEL", "INFO")),
	}
}

// ApplyFile overlays the YAML file at path. A missing file is not an error.
func (c *Config) ApplyFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.ServerAddr, f.ServerAddr)
	setString(&c.ServerURL, f.ServerURL)
	setString(&c.Storage, f.Storage)
	setString(&c.SurrealDBURL, f.SurrealDBURL)
	setString(&c.SurrealDBNamespace, f.SurrealDBNamespace)
	setString(&c.SurrealDBDatabase, f.SurrealDBDatabase)
	setString(&c.SurrealDBUser, f.SurrealDBUser)
	setString(&c.SurrealDBPass, f.SurrealDBPass)
	setString(&c.SurrealDBAuthLevel, f.SurrealDBAuthLevel)
	setString(&c.LLMProvider, f.LLMProvider)
	setString(&c.LLMModel, f.LLMModel)
	setString(&c.OllamaHost, f.OllamaHost)
	setString(&c.OpenAIAPIKey, f.OpenAIAPIKey)
	setString(&c.AnthropicAPIKey, f.AnthropicAPIKey)
	setString(&c.GeminiAPIKey, f.GeminiAPIKey)
	setString(&c.AWSRegion, f.AWSRegion)
	setString(&c.JWTSecret, f.JWTSecret)
	setString(&c.LogFile, f.LogFile)
	if f.CORSOrigins != nil {
		c.CORSOrigins = f.CORSOrigins
	}
	if f.ComposeDelay != nil {
		c.ComposeDelay = *f.ComposeDelay
	}
	if f.AutoConfirm != nil {
		c.AutoConfirm = *f.AutoConfirm
	}
	if f.AccessTTL != nil {
		d, err := time.ParseDuration(*f.AccessTTL)
		if err != nil {
			return fmt.Errorf("parse config %s: access_ttl: %w", path, err)
		}
		c.AccessTTL = d
	}
	if f.RefreshTTL != nil {
		d, err := time.ParseDuration(*f.RefreshTTL)
		if err != nil {
			return fmt.Errorf("parse config %s: refresh_ttl: %w", path, err)
		}
		c.RefreshTTL = d
	}
	if f.LogLevel != nil {
		c.LogLevel = parseLogLevel(*f.LogLevel)
	}
	return nil
}

// Validate checks the settings the server can't start without.
func (c Config) Validate() error {
	var errs []error
	switch c.Storage {
	case StorageMemory, StorageSurrealDB:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage))
	}
	switch c.LLMProvider {
	case ProviderMock, ProviderOllama, ProviderBedrock:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY required for openai provider"))
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, errors.New("ANTHROPIC_API_KEY required for anthropic provider"))
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY required for gemini provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LLM provider %q", c.LLMProvider))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("FEELFREE_JWT_SECRET required"))
	}
	return errors.Join(errs...)
}

// Dir returns the per-user state directory (~/.feelfree).
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".feelfree")
}

func defaultConfigPath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func parseDuration(s string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(s); err == nil {
		return time.Duration(secs) * time.Second
	}
	return def
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
