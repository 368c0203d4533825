// Package config loads the service configuration from the environment.
//
// .env files are read first (ENV_FILE if set, otherwise .env.local then .env);
// real environment variables always win because godotenv never overrides them.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"

	ProviderNone   = ""
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	DefaultTimeout = 8000 * time.Millisecond
	minTimeout     = 1000 * time.Millisecond
	maxTimeout     = 30000 * time.Millisecond
)

// Config is the full runtime configuration.
type Config struct {
	Port     int
	LogLevel string

	// ParamPrefix, when set, makes secrets resolve from SSM under this prefix.
	ParamPrefix string

	Webhook   WebhookConfig
	RateLimit RateLimitConfig
	FAQ       FAQConfig
}

type WebhookConfig struct {
	URL           string
	BearerToken   string
	SigningSecret string
	Timeout       time.Duration
}

type RateLimitConfig struct {
	Backend       string
	MaxKeys       int
	Table         string
	RedisAddress  string
	RedisPassword string
	RedisDB       int
}

type FAQConfig struct {
	Provider      string
	Timeout       time.Duration
	CorpusPath    string
	OpenAIModel   string
	OpenAIBaseURL string
	OpenAIAPIKey  string
	GeminiModel   string
	GeminiAPIKey  string
}

// Load reads .env files and the environment into a validated Config.
func Load() (*Config, error) {
	if err := loadEnvFiles(); err != nil {
		return nil, err
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:        envInt("PORT", 8080),
		LogLevel:    envString("LOG_LEVEL", "info"),
		ParamPrefix: strings.TrimRight(envString("PARAM_PREFIX", ""), "/"),
		Webhook: WebhookConfig{
			URL:           envString("CONTACT_WEBHOOK_URL", ""),
			BearerToken:   envString("CONTACT_WEBHOOK_BEARER_TOKEN", ""),
			SigningSecret: envString("CONTACT_WEBHOOK_SIGNING_SECRET", ""),
			Timeout:       ParseTimeout(os.Getenv("CONTACT_WEBHOOK_TIMEOUT_MS")),
		},
		RateLimit: RateLimitConfig{
			Backend:       strings.ToLower(envString("RATE_LIMIT_BACKEND", BackendMemory)),
			MaxKeys:       envInt("RATE_LIMIT_MAX_KEYS", 10000),
			Table:         envString("RATE_LIMIT_TABLE", ""),
			RedisAddress:  envString("REDIS_ADDRESS", ""),
			RedisPassword: envString("REDIS_PASSWORD", ""),
			RedisDB:       envInt("REDIS_DB", 0),
		},
		FAQ: FAQConfig{
			Provider:      strings.ToLower(envString("FAQ_AI_PROVIDER", ProviderNone)),
			Timeout:       ParseTimeout(os.Getenv("FAQ_AI_TIMEOUT_MS")),
			CorpusPath:    envString("FAQ_CORPUS_PATH", ""),
			OpenAIModel:   envString("OPENAI_MODEL", ""),
			OpenAIBaseURL: envString("OPENAI_BASE_URL", ""),
			OpenAIAPIKey:  envString("OPENAI_API_KEY", ""),
			GeminiModel:   envString("GEMINI_MODEL", ""),
			GeminiAPIKey:  envString("GEMINI_API_KEY", ""),
		},
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks backend and provider choices and their required settings.
func (c *Config) Validate() error {
	switch c.RateLimit.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.RateLimit.RedisAddress == "" {
			return fmt.Errorf("config: REDIS_ADDRESS is required for rate limit backend %q", BackendRedis)
		}
	case BackendDynamoDB:
		if c.RateLimit.Table == "" {
			return fmt.Errorf("config: RATE_LIMIT_TABLE is required for rate limit backend %q", BackendDynamoDB)
		}
	default:
		return fmt.Errorf("config: unknown RATE_LIMIT_BACKEND %q", c.RateLimit.Backend)
	}

	switch c.FAQ.Provider {
	case ProviderNone, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("config: unknown FAQ_AI_PROVIDER %q", c.FAQ.Provider)
	}
	return nil
}

// SecretName returns the SSM parameter name for a secret under ParamPrefix.
func (c *Config) SecretName(suffix string) string {
	return c.ParamPrefix + "/" + strings.TrimLeft(suffix, "/")
}

// ParseTimeout reads a millisecond value: missing, non-numeric, non-finite or
// below 1000ms yields the 8000ms default; values above 30000ms are capped.
func ParseTimeout(raw string) time.Duration {
	ms, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(ms) || math.IsInf(ms, 0) || ms < float64(minTimeout/time.Millisecond) {
		return DefaultTimeout
	}
	if ms > float64(maxTimeout/time.Millisecond) {
		return maxTimeout
	}
	return time.Duration(ms * float64(time.Millisecond))
}

func loadEnvFiles() error {
	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("config: load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, f := range []string{".env.local", ".env"} {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("config: load %s: %w", f, err)
		}
	}
	return nil
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
