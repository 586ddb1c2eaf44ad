// Package translate defines the translation interface consumed by the
// pipeline and an OpenRouter-backed implementation.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Translator converts text to the target language. An empty sourceLang asks
// the engine to detect the source language itself.
type Translator interface {
	Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error)
}

type Config struct {
	APIKey    string
	Model     string
	Providers []string
}

// Client is an OpenRouter chat-completions translator.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 45 * time.Second},
	}
}

// OpenRouter API structures
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type providerPreferences struct {
	Order          []string `json:"order,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type chatRequest struct {
	Model       string               `json:"model"`
	Messages    []message            `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Provider    *providerPreferences `json:"provider,omitempty"`
}

type chatResponse struct {
	Choices []choice  `json:"choices"`
	Error   *apiError `json:"error,omitempty"`
}

type choice struct {
	Message responseMessage `json:"message"`
}

type responseMessage struct {
	Content string `json:"content"`
}

type apiError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"` // Can be string or number
}

const (
	openRouterURL = "https://openrouter.ai/api/v1/chat/completions"
	maxRetries    = 3
	initialDelay  = 1 * time.Second
	backoffFactor = 2.0
)

// retryDelay returns the wait before the given retry attempt, doubling each
// time: 1s before attempt 1, 2s before attempt 2.
func retryDelay(attempt int) time.Duration {
	d := initialDelay
	for i := 1; i < attempt; i++ {
		d = time.Duration(float64(d) * backoffFactor)
	}
	return d
}

func (c *Client) providerPrefs() *providerPreferences {
	if len(c.cfg.Providers) == 0 {
		// No providers specified, use default OpenRouter routing.
		return nil
	}
	allowFallbacks := false
	return &providerPreferences{
		Order:          c.cfg.Providers,
		AllowFallbacks: &allowFallbacks,
	}
}

// Translate sends one text segment to the model and returns the translation.
func (c *Client) Translate(ctx context.Context, text, targetLang, sourceLang string) (string, error) {
	if c.cfg.APIKey == "" {
		return "", fmt.Errorf("API key is required")
	}
	if c.cfg.Model == "" {
		return "", fmt.Errorf("model is required")
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("nothing to translate")
	}

	request := chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{
				Role:    "system",
				Content: translationPrompt(targetLang, sourceLang),
			},
			{
				Role:    "user",
				Content: text,
			},
		},
		Temperature: 0.1,
		MaxTokens:   2000,
		Provider:    c.providerPrefs(),
	}

	// Retry logic with exponential backoff
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryDelay(attempt)):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		response, err := c.makeAPIRequest(ctx, request)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			lastErr = err
			continue
		}

		if len(response.Choices) == 0 {
			lastErr = fmt.Errorf("no choices in API response")
			continue
		}

		translated := strings.TrimSpace(response.Choices[0].Message.Content)
		if translated == "" {
			lastErr = fmt.Errorf("empty translation in API response")
			continue
		}
		return translated, nil
	}

	return "", fmt.Errorf("failed after %d attempts: %v", maxRetries, lastErr)
}

// Ping performs a minimal request so startup can fail fast on a bad key or
// unreachable network.
func (c *Client) Ping(ctx context.Context) error {
	request := chatRequest{
		Model: c.cfg.Model,
		Messages: []message{
			{Role: "user", Content: "ping"},
		},
		Temperature: 0,
		MaxTokens:   1,
		Provider:    c.providerPrefs(),
	}
	_, err := c.makeAPIRequest(ctx, request)
	return err
}

func translationPrompt(targetLang, sourceLang string) string {
	var b strings.Builder
	if sourceLang == "" {
		fmt.Fprintf(&b, "Translate the user's text into %s, detecting the source language.\n", targetLang)
	} else {
		fmt.Fprintf(&b, "Translate the user's text from %s into %s.\n", sourceLang, targetLang)
	}
	b.WriteString("Return ONLY the translated text with:\n" +
		"- No quotes or markdown\n" +
		"- No explanations\n" +
		"- Line breaks preserved from the input")
	return b.String()
}

func (c *Client) makeAPIRequest(ctx context.Context, request chatRequest) (*chatResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", openRouterURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.cfg.APIKey))
	req.Header.Set("X-Title", "Screen Translator")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %v", err)
	}
	defer resp.Body.Close()

	var response chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode response: %v", err)
	}

	if response.Error != nil {
		return nil, fmt.Errorf("API error: %s (type: %s, code: %v)", response.Error.Message, response.Error.Type, response.Error.Code)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	return &response, nil
}
