package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	LLMProviderGemini = "gemini"
	LLMProviderGroq   = "groq"
	LLMProviderNone   = "none"
)

// Config holds the configuration for the application.
type Config struct {
	APIBaseURL        string
	APITimeout        time.Duration
	APIRateLimitRPS   int
	APIRateLimitBurst int

	// Local device state
	DatabasePath string
	DeviceSecret string
	ExportDir    string

	// Recipe import
	LLMProvider  string
	GeminiAPIKey string
	GroqAPIKey   string

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
	Port                   string
}

// NewFromEnv creates a new Config object from environment variables.
func NewFromEnv() (*Config, error) {
	apiBaseURL := strings.TrimRight(strings.TrimSpace(os.Getenv("API_BASE_URL")), "/")
	if apiBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL environment variable not set")
	}

	timeoutSeconds, err := intFromEnv("API_TIMEOUT_SECONDS", 15)
	if err != nil {
		return nil, err
	}
	rps, err := intFromEnv("API_RATE_LIMIT_RPS", 5)
	if err != nil {
		return nil, err
	}
	burst, err := intFromEnv("API_RATE_LIMIT_BURST", 10)
	if err != nil {
		return nil, err
	}

	provider := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER")))
	if provider == "" {
		provider = LLMProviderNone
	}
	geminiAPIKey := os.Getenv("GEMINI_API_KEY")
	groqAPIKey := os.Getenv("GROQ_API_KEY")
	switch provider {
	case LLMProviderNone:
	case LLMProviderGemini:
		if geminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case LLMProviderGroq:
		if groqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	default:
		return nil, fmt.Errorf("LLM_PROVIDER must be one of gemini, groq, none; got %q", provider)
	}

	// Telegram Config (Optional for CLI, required for Bot)
	allowed, err := parseIDList(os.Getenv("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}
	var adminID int64
	if raw := strings.TrimSpace(os.Getenv("ADMIN_TELEGRAM_ID")); raw != "" {
		adminID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	return &Config{
		APIBaseURL:             apiBaseURL,
		APITimeout:             time.Duration(timeoutSeconds) * time.Second,
		APIRateLimitRPS:        rps,
		APIRateLimitBurst:      burst,
		DatabasePath:           stringFromEnv("DATABASE_PATH", "data/dinner-planner.db"),
		DeviceSecret:           os.Getenv("DEVICE_SECRET"),
		ExportDir:              stringFromEnv("EXPORT_DIR", "data/exports"),
		LLMProvider:            provider,
		GeminiAPIKey:           geminiAPIKey,
		GroqAPIKey:             groqAPIKey,
		TelegramBotToken:       os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL:     os.Getenv("TELEGRAM_WEBHOOK_URL"),
		TelegramAllowedUserIDs: allowed,
		AdminTelegramID:        adminID,
		Port:                   stringFromEnv("PORT", "8080"),
	}, nil
}

// ValidateBot checks the variables the Telegram bot cannot run without.
func (c *Config) ValidateBot() error {
	if c.TelegramBotToken == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable not set")
	}
	if c.TelegramWebhookURL == "" {
		return fmt.Errorf("TELEGRAM_WEBHOOK_URL environment variable not set")
	}
	return nil
}

// IsAllowedTelegramUser reports whether id may talk to the bot.
func (c *Config) IsAllowedTelegramUser(id int64) bool {
	for _, allowed := range c.TelegramAllowedUserIDs {
		if allowed == id {
			return true
		}
	}
	return false
}

func stringFromEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intFromEnv(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parseIDList(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
