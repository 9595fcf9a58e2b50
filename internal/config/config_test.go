package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "3001" {
		t.Errorf("Port = %s, want 3001", cfg.Port)
	}
	if cfg.Environment != "development" {
		t.Errorf("Environment = %s, want development", cfg.Environment)
	}
	if cfg.EmailProcessInterval != 7200*time.Second {
		t.Errorf("EmailProcessInterval = %v, want 2h", cfg.EmailProcessInterval)
	}
	if cfg.CardTTL != 24*time.Hour {
		t.Errorf("CardTTL = %v, want 24h", cfg.CardTTL)
	}
	if cfg.ConfidenceThreshold != 0.6 {
		t.Errorf("ConfidenceThreshold = %v, want 0.6", cfg.ConfidenceThreshold)
	}
	if !cfg.RoutinesEnabled {
		t.Error("RoutinesEnabled = false, want true")
	}
	if cfg.RoutinesMaxConcurrent != 10 {
		t.Errorf("RoutinesMaxConcurrent = %d, want 10", cfg.RoutinesMaxConcurrent)
	}
	if cfg.RoutinesCronInterval != 15*time.Minute {
		t.Errorf("RoutinesCronInterval = %v, want 15m", cfg.RoutinesCronInterval)
	}
	if cfg.MaxAgentIterations != 25 {
		t.Errorf("MaxAgentIterations = %d, want 25", cfg.MaxAgentIterations)
	}
	if cfg.IsProduction() {
		t.Error("IsProduction() = true for development")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ROUTINES_ENABLED", "false")
	t.Setenv("ROUTINES_MAX_CONCURRENT", "3")
	t.Setenv("CONFIDENCE_THRESHOLD", "0.85")
	t.Setenv("CARD_TTL_HOURS", "48")
	t.Setenv("ENVIRONMENT", "production")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Errorf("Port = %s, want 9090", cfg.Port)
	}
	if cfg.RoutinesEnabled {
		t.Error("RoutinesEnabled = true, want false")
	}
	if cfg.RoutinesMaxConcurrent != 3 {
		t.Errorf("RoutinesMaxConcurrent = %d, want 3", cfg.RoutinesMaxConcurrent)
	}
	if cfg.ConfidenceThreshold != 0.85 {
		t.Errorf("ConfidenceThreshold = %v, want 0.85", cfg.ConfidenceThreshold)
	}
	if cfg.CardTTL != 48*time.Hour {
		t.Errorf("CardTTL = %v, want 48h", cfg.CardTTL)
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false for production")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("ROUTINES_MAX_CONCURRENT", "many")
	t.Setenv("CONFIDENCE_THRESHOLD", "high")
	t.Setenv("ROUTINES_ENABLED", "yep")

	cfg := Load()
	if cfg.RoutinesMaxConcurrent != 10 {
		t.Errorf("RoutinesMaxConcurrent = %d, want default 10", cfg.RoutinesMaxConcurrent)
	}
	if cfg.ConfidenceThreshold != 0.6 {
		t.Errorf("ConfidenceThreshold = %v, want default 0.6", cfg.ConfidenceThreshold)
	}
	if !cfg.RoutinesEnabled {
		t.Error("RoutinesEnabled = false, want default true")
	}
}

func TestValidate(t *testing.T) {
	cfg := &Config{AnthropicAPIKey: "sk-test", RoutinesMaxConcurrent: 10}
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	cfg = &Config{RoutinesMaxConcurrent: 10}
	if err := cfg.Validate(); err == nil {
		t.Error("missing API key accepted")
	}

	cfg = &Config{AnthropicAPIKey: "sk-test", RoutinesMaxConcurrent: 0}
	if err := cfg.Validate(); err == nil {
		t.Error("zero concurrency accepted")
	}
}
