package config

import (
	"os"
	"testing"
)

func TestGetEnvOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal string
		expected   string
	}{
		{"uses env value", "TEST_CHAT_MODEL", "gemini-3-pro", "gemini-3-flash-preview", "gemini-3-pro"},
		{"uses default when empty", "TEST_CHAT_PROVIDER", "", "google", "google"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %q, got %q", tc.expected, result)
			}
		})
	}
}

func TestGetEnvAsIntOrDefault(t *testing.T) {
	tests := []struct {
		name       string
		key        string
		envValue   string
		defaultVal int
		expected   int
	}{
		{"parses integer", "TEST_CHAT_PAGE_SIZE", "50", 20, 50},
		{"uses default for empty", "TEST_TITLE_WORKERS", "", 2, 2},
		{"uses default for non-numeric", "TEST_GEMINI_CONCURRENCY", "many", 5, 5},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.envValue != "" {
				os.Setenv(tc.key, tc.envValue)
				defer os.Unsetenv(tc.key)
			}

			result := getEnvAsIntOrDefault(tc.key, tc.defaultVal)
			if result != tc.expected {
				t.Errorf("Expected %d, got %d", tc.expected, result)
			}
		})
	}
}

func TestMustGetEnv_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for missing required env var")
		}
	}()

	os.Unsetenv("NONEXISTENT_REQUIRED_VAR")
	mustGetEnv("NONEXISTENT_REQUIRED_VAR")
}

func TestMustGetEnv_ReturnsValue(t *testing.T) {
	os.Setenv("TEST_REQUIRED", "value123")
	defer os.Unsetenv("TEST_REQUIRED")

	result := mustGetEnv("TEST_REQUIRED")
	if result != "value123" {
		t.Errorf("Expected 'value123', got %q", result)
	}
}

func TestLoad_ChatDefaults(t *testing.T) {
	required := map[string]string{
		"DATABASE_URL":   "postgres://localhost:5432/dashbot",
		"REDIS_URL":      "redis://localhost:6379",
		"GEMINI_API_KEY": "test-key",
	}
	for k, v := range required {
		os.Setenv(k, v)
		defer os.Unsetenv(k)
	}
	for _, k := range []string{"CHAT_DEFAULT_MODEL", "CHAT_DEFAULT_PROVIDER", "CHAT_PAGE_SIZE", "TITLE_WORKERS"} {
		os.Unsetenv(k)
	}

	cfg := Load()

	if cfg.DefaultModel != "gemini-3-flash-preview" {
		t.Errorf("DefaultModel = %q", cfg.DefaultModel)
	}
	if cfg.DefaultProvider != "google" {
		t.Errorf("DefaultProvider = %q", cfg.DefaultProvider)
	}
	if cfg.ChatPageSize != 20 {
		t.Errorf("ChatPageSize = %d", cfg.ChatPageSize)
	}
	if cfg.TitleWorkers != 2 {
		t.Errorf("TitleWorkers = %d", cfg.TitleWorkers)
	}
}
