package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables read by Load
const (
	EnvLLMAPIKey     = "LLM_API_KEY"
	EnvLLMAPIURL     = "LLM_API_URL"
	EnvLLMModel      = "LLM_MODEL"
	EnvFOFAEmail     = "FOFA_EMAIL"
	EnvFOFAKey       = "FOFA_KEY"
	EnvFOFAAPIURL    = "FOFA_API_URL"
	EnvFOFARateLimit = "FOFA_RATE_LIMIT"
)

// Defaults for optional settings
const (
	DefaultLLMAPIURL     = "https://api.siliconflow.cn/v1/chat/completions"
	DefaultLLMModel      = "deepseek-ai/DeepSeek-V3"
	DefaultFOFAAPIURL    = "https://fofa.info/api/v1/search/all"
	DefaultFOFARateLimit = 1.0
)

// Config holds everything the pipeline needs to reach the completion service and FOFA.
// It is read once at startup and passed by value afterwards.
type Config struct {
	CompletionAPIKey string
	CompletionAPIURL string
	CompletionModel  string

	SearchEmail     string
	SearchAPIKey    string
	SearchAPIURL    string
	SearchRateLimit float64 // requests per second
}

// LoadDotEnv loads variables from the given .env files (or ./.env when none are given)
// without overriding anything already set. A missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}

	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// Load builds a Config from the environment. Missing required variables are reported
// together in a single error.
func Load() (Config, error) {
	cfg := Config{
		CompletionAPIKey: strings.TrimSpace(os.Getenv(EnvLLMAPIKey)),
		CompletionAPIURL: getEnvString(EnvLLMAPIURL, DefaultLLMAPIURL),
		CompletionModel:  getEnvString(EnvLLMModel, DefaultLLMModel),
		SearchEmail:      strings.TrimSpace(os.Getenv(EnvFOFAEmail)),
		SearchAPIKey:     strings.TrimSpace(os.Getenv(EnvFOFAKey)),
		SearchAPIURL:     getEnvString(EnvFOFAAPIURL, DefaultFOFAAPIURL),
		SearchRateLimit:  getEnvFloat(EnvFOFARateLimit, DefaultFOFARateLimit),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that every required value is present.
func (c Config) Validate() error {
	var missing []string
	if c.CompletionAPIKey == "" {
		missing = append(missing, EnvLLMAPIKey)
	}
	if c.SearchEmail == "" {
		missing = append(missing, EnvFOFAEmail)
	}
	if c.SearchAPIKey == "" {
		missing = append(missing, EnvFOFAKey)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	if c.CompletionAPIURL == "" || c.SearchAPIURL == "" {
		return errors.New("completion and search API URLs must not be empty")
	}
	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil && f > 0 {
			return f
		}
	}
	return defaultValue
}
