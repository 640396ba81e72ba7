// internal/app/system/summarizer/summarizer.go
// Package summarizer asks an OpenAI-compatible chat completion endpoint
// (Groq by default) for a short narrative of a dataset.
package summarizer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/stratasheet/internal/app/system/htmlsanitize"
	openai "github.com/sashabaranov/go-openai"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultBaseURL   = "https://api.groq.com/openai/v1"
	DefaultModel     = "llama-3.1-8b-instant"
	DefaultMaxTokens = 200
	DefaultTimeout   = 30 * time.Second

	// NoSummary is returned when the endpoint answers without any text.
	NoSummary = "No summary returned"
)

var (
	// ErrNotConfigured means no API key is set.
	ErrNotConfigured = errors.New("summarizer: no API key configured")
	// ErrEmptyText means there is nothing to summarize.
	ErrEmptyText = errors.New("summarizer: no text provided")
)

// APIError is a non-2xx answer from the endpoint.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("summarizer: endpoint returned %d", e.StatusCode)
	}
	return fmt.Sprintf("summarizer: endpoint returned %d: %s", e.StatusCode, e.Message)
}

// Config selects the endpoint and model.
type Config struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// Client calls the chat completion endpoint.
type Client struct {
	cfg  Config
	http *http.Client
	api  *openai.Client
}

// New returns a Client. A nil hc gets a client with cfg.Timeout.
func New(cfg Config, hc *http.Client) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}

	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	oc.HTTPClient = hc

	return &Client{cfg: cfg, http: hc, api: openai.NewClientWithConfig(oc)}
}

// Configured reports whether an API key is set.
func (c *Client) Configured() bool {
	return c != nil && c.cfg.APIKey != ""
}

// Prompt is the user message sent for text.
func Prompt(text string) string {
	return "Summarize this data: " + text
}

// Summarize returns the model's summary of text with all markup removed.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.cfg.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: Prompt(text)},
		},
		MaxTokens: c.cfg.MaxTokens,
	})
	if err != nil {
		return "", asAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return NoSummary, nil
	}
	summary := htmlsanitize.PlainText(resp.Choices[0].Message.Content)
	if summary == "" {
		return NoSummary, nil
	}
	return summary, nil
}

// asAPIError converts the client library's error types to *APIError.
// Transport errors keep their chain so context errors stay visible.
func asAPIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{StatusCode: apiErr.HTTPStatusCode, Message: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &APIError{StatusCode: reqErr.HTTPStatusCode, Message: msg}
	}
	return fmt.Errorf("summarizer: request failed: %w", err)
}
