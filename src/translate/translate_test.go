package translate

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestTranslateValidation(t *testing.T) {
	ctx := context.Background()

	c := NewClient(Config{Model: "test_model"})
	if _, err := c.Translate(ctx, "hello", "es", ""); err == nil {
		t.Error("Expected error with missing API key")
	}

	c = NewClient(Config{APIKey: "test_api_key"})
	if _, err := c.Translate(ctx, "hello", "es", ""); err == nil {
		t.Error("Expected error with missing model")
	}

	c = NewClient(Config{APIKey: "test_api_key", Model: "test_model"})
	if _, err := c.Translate(ctx, "   ", "es", ""); err == nil {
		t.Error("Expected error for blank input text")
	}
}

func TestTranslateCancelledContext(t *testing.T) {
	c := NewClient(Config{APIKey: "mock_key_for_error_testing", Model: "test_model"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Translate(ctx, "hello", "es", "")
	if err == nil {
		t.Error("Expected error with cancelled context")
	}
}

func TestTranslationPrompt(t *testing.T) {
	p := translationPrompt("Spanish", "")
	if !strings.Contains(p, "into Spanish") {
		t.Errorf("Prompt missing target language: %q", p)
	}
	if !strings.Contains(p, "detecting the source language") {
		t.Errorf("Auto-detect prompt should mention detection: %q", p)
	}

	p = translationPrompt("German", "Japanese")
	if !strings.Contains(p, "from Japanese into German") {
		t.Errorf("Prompt missing explicit language pair: %q", p)
	}
	if strings.Contains(p, "detecting") {
		t.Errorf("Explicit-source prompt should not mention detection: %q", p)
	}

	if !strings.Contains(p, "Line breaks preserved") {
		t.Errorf("Prompt must require preserved line breaks: %q", p)
	}
}

func TestRetryDelayDoubles(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
	}

	for _, tt := range tests {
		if got := retryDelay(tt.attempt); got != tt.want {
			t.Errorf("retryDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestProviderPrefs(t *testing.T) {
	c := NewClient(Config{APIKey: "k", Model: "m"})
	if prefs := c.providerPrefs(); prefs != nil {
		t.Errorf("Expected nil prefs without providers, got %+v", prefs)
	}

	c = NewClient(Config{APIKey: "k", Model: "m", Providers: []string{"openai", "anthropic"}})
	prefs := c.providerPrefs()
	if prefs == nil {
		t.Fatal("Expected provider prefs")
	}
	if len(prefs.Order) != 2 || prefs.Order[0] != "openai" {
		t.Errorf("Unexpected provider order: %v", prefs.Order)
	}
	if prefs.AllowFallbacks == nil || *prefs.AllowFallbacks {
		t.Error("Expected fallbacks to be disabled when providers are pinned")
	}
}
