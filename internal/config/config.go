package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string

	// Database
	DatabasePath string // SQLite file path ("file::memory:?cache=shared" for tests)

	// LLM provider
	AnthropicAPIKey string
	Model           string

	// Triage pipeline
	EmailProcessInterval time.Duration // how often the email processor drains pending messages
	EmailIMAPHost        string        // non-empty enables the email channel
	CardTTL              time.Duration // pending cards expire this long after the message arrived
	ConfidenceThreshold  float64       // minimum triage confidence to mint a card
	RulesPath            string        // YAML rule file for the pre-LLM rules engine

	// Todo agent routines
	RoutinesEnabled         bool
	RoutinesCronInterval    time.Duration // pickup loop interval
	RoutinesMaxConcurrent   int           // global cap on live agent workers
	RoutinesDefaultCooldown time.Duration // min gap between agent attempts on the same todo
	RoutinesMaxTokens       int
	TodoPickupCron          string // optional cron expression overriding the interval
	JobTimeout              time.Duration
	MaxAgentIterations      int

	// Auth (optional — endpoints are open when the secret is unset)
	AuthTokenSecret string
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3001"),
		Environment: getEnv("ENVIRONMENT", "development"),

		DatabasePath: getEnv("DATABASE_PATH", "aiassist.db"),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		Model:           getEnv("AI_ASSIST_MODEL", "claude-sonnet-4-20250514"),

		EmailProcessInterval: time.Duration(getIntEnv("EMAIL_PROCESS_INTERVAL_SECS", 7200)) * time.Second,
		EmailIMAPHost:        getEnv("EMAIL_IMAP_HOST", ""),
		CardTTL:              time.Duration(getIntEnv("CARD_TTL_HOURS", 24)) * time.Hour,
		ConfidenceThreshold:  getFloatEnv("CONFIDENCE_THRESHOLD", 0.6),
		RulesPath:            getEnv("RULES_PATH", ""),

		RoutinesEnabled:         getBoolEnv("ROUTINES_ENABLED", true),
		RoutinesCronInterval:    time.Duration(getIntEnv("ROUTINES_CRON_INTERVAL", 15)) * time.Minute,
		RoutinesMaxConcurrent:   getIntEnv("ROUTINES_MAX_CONCURRENT", 10),
		RoutinesDefaultCooldown: time.Duration(getIntEnv("ROUTINES_DEFAULT_COOLDOWN", 300)) * time.Second,
		RoutinesMaxTokens:       getIntEnv("ROUTINES_MAX_TOKENS", 4096),
		TodoPickupCron:          getEnv("TODO_PICKUP_CRON", ""),
		JobTimeout:              time.Duration(getIntEnv("JOB_TIMEOUT_SECS", 600)) * time.Second,
		MaxAgentIterations:      getIntEnv("MAX_AGENT_ITERATIONS", 25),

		AuthTokenSecret: getEnv("AUTH_TOKEN_SECRET", ""),
	}
}

// Validate checks that required configuration is present.
// Missing required values are fatal at startup only.
func (c *Config) Validate() error {
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY environment variable is required")
	}
	if c.RoutinesMaxConcurrent <= 0 {
		return fmt.Errorf("ROUTINES_MAX_CONCURRENT must be positive, got %d", c.RoutinesMaxConcurrent)
	}
	return nil
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}
