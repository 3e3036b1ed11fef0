package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	openRouterURL = "https://openrouter.ai/api/v1"
	maxRetries    = 3
	initialDelay  = 1 * time.Second
)

var (
	// ErrNotConfigured is returned when the API key or model is missing.
	ErrNotConfigured = errors.New("LLM client not configured")
	// ErrNoChoices is returned when the API answers without any completion.
	ErrNoChoices = errors.New("no choices in API response")
)

// StatusError carries a non-200 reply or an error object returned by the API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("API returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Message)
}

// Retryable reports whether a retry may succeed.
func (e *StatusError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Config struct {
	APIKey    string
	Model     string
	Providers []string
	BaseURL   string
	// MaxRetries <= 0 selects the default of 3 attempts.
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the OpenRouter chat-completions API.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = openRouterURL
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = maxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = initialDelay
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 45 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{cfg: cfg, http: hc, logger: logger}
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.cfg.Model }

// OpenRouter API structures
type Message struct {
	Role    string    `json:"role"`
	Content []Content `json:"content"`
}

type Content struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ProviderPreferences struct {
	Order          []string `json:"order,omitempty"`
	Quantizations  []string `json:"quantizations,omitempty"`
	AllowFallbacks *bool    `json:"allow_fallbacks,omitempty"`
}

type ChatRequest struct {
	Model       string               `json:"model"`
	Messages    []Message            `json:"messages"`
	Temperature float64              `json:"temperature"`
	MaxTokens   int                  `json:"max_tokens"`
	Provider    *ProviderPreferences `json:"provider,omitempty"`
}

type ChatResponse struct {
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

type Choice struct {
	Message ResponseMessage `json:"message"`
}

type ResponseMessage struct {
	Content string `json:"content"`
}

type APIError struct {
	Message string      `json:"message"`
	Type    string      `json:"type"`
	Code    interface{} `json:"code"` // Can be string or number
}

func (c *Client) providerPreferences() *ProviderPreferences {
	if len(c.cfg.Providers) == 0 {
		return nil
	}
	allowFallbacks := false
	return &ProviderPreferences{
		Order:          c.cfg.Providers,
		AllowFallbacks: &allowFallbacks,
	}
}

func (c *Client) validate() error {
	if c.cfg.APIKey == "" {
		return fmt.Errorf("%w: API key is required", ErrNotConfigured)
	}
	if c.cfg.Model == "" {
		return fmt.Errorf("%w: model is required", ErrNotConfigured)
	}
	return nil
}

// Ping checks that the key is accepted by listing models.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.validate(); err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}

// Complete runs a text-only chat completion with a system instruction.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	request := ChatRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{Role: "system", Content: []Content{{Type: "text", Text: system}}},
			{Role: "user", Content: []Content{{Type: "text", Text: user}}},
		},
		Temperature: 0.2,
		MaxTokens:   4000,
		Provider:    c.providerPreferences(),
	}
	return c.send(ctx, request)
}

// QueryVision sends a PNG image with an instruction and returns the model's reply.
func (c *Client) QueryVision(ctx context.Context, prompt string, png []byte) (string, error) {
	if err := c.validate(); err != nil {
		return "", err
	}
	imageURL := "data:image/png;base64," + base64.StdEncoding.EncodeToString(png)
	request := ChatRequest{
		Model: c.cfg.Model,
		Messages: []Message{
			{
				Role: "user",
				Content: []Content{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
				},
			},
		},
		Temperature: 0.1,
		MaxTokens:   2000,
		Provider:    c.providerPreferences(),
	}
	text, err := c.send(ctx, request)
	if err != nil {
		return "", err
	}
	return cleanExtractedText(text), nil
}

// send posts request with retries. Non-retryable API errors return immediately.
func (c *Client) send(ctx context.Context, request ChatRequest) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(c.cfg.RetryDelay) * (1.5 * float64(attempt)))
			c.logger.Debug("retrying LLM request", zap.Int("attempt", attempt+1), zap.Duration("delay", delay))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
		}

		response, err := c.makeAPIRequest(ctx, request)
		if err != nil {
			lastErr = err
			var se *StatusError
			if errors.As(err, &se) && !se.Retryable() {
				return "", err
			}
			if ctx.Err() != nil {
				return "", err
			}
			continue
		}

		if len(response.Choices) == 0 {
			lastErr = ErrNoChoices
			continue
		}
		return strings.TrimSpace(response.Choices[0].Message.Content), nil
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.cfg.MaxRetries, lastErr)
}

func (c *Client) makeAPIRequest(ctx context.Context, request ChatRequest) (*ChatResponse, error) {
	jsonData, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("X-Title", "Clip Translator")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	var response ChatResponse
	decodeErr := json.NewDecoder(resp.Body).Decode(&response)

	if response.Error != nil {
		return nil, &StatusError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("%s (type: %s, code: %v)", response.Error.Message, response.Error.Type, response.Error.Code)}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode}
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}
	return &response, nil
}

func cleanExtractedText(text string) string {
	if text == "</image>" {
		return ""
	}
	return strings.TrimSuffix(text, "</image>")
}
