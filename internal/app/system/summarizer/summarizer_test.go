package summarizer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL + "/", APIKey: "test-key"}, srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

type sentRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestSummarize_SendsChatRequest(t *testing.T) {
	var got sentRequest
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeJSON(w, http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":"Sales rose <b>12%</b>."}}]}`)
	})

	summary, err := c.Summarize(context.Background(), "month,sales\nJan,10")
	require.NoError(t, err)
	assert.Equal(t, "Sales rose 12%.", summary)

	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "Summarize this data: month,sales\nJan,10", got.Messages[0].Content)
}

func TestSummarize_NoChoices(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"choices":[]}`)
	})

	summary, err := c.Summarize(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, NoSummary, summary)
}

func TestSummarize_MarkupOnlyAnswer(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{"choices":[{"index":0,"message":{"role":"assistant","content":"<br/>"}}]}`)
	})

	summary, err := c.Summarize(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, NoSummary, summary)
}

func TestSummarize_APIError(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"error":{"message":"Invalid API Key","type":"invalid_request_error"}}`)
	})

	_, err := c.Summarize(context.Background(), "x")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid API Key", apiErr.Message)
}

func TestSummarize_PlainErrorBody(t *testing.T) {
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := c.Summarize(context.Background(), "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestAsAPIError(t *testing.T) {
	err := asAPIError(&openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"})
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, &APIError{StatusCode: http.StatusTooManyRequests, Message: "slow down"}, apiErr)

	err = asAPIError(&openai.RequestError{HTTPStatusCode: http.StatusBadGateway, Err: errors.New("bad gateway")})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, &APIError{StatusCode: http.StatusBadGateway, Message: "bad gateway"}, apiErr)

	err = asAPIError(context.Canceled)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, errors.As(err, &apiErr))
}

func TestSummarize_Guards(t *testing.T) {
	_, err := New(Config{}, nil).Summarize(context.Background(), "x")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(Config{APIKey: "k"}, nil).Summarize(context.Background(), "  ")
	assert.ErrorIs(t, err, ErrEmptyText)

	var nilClient *Client
	assert.False(t, nilClient.Configured())
}

func TestSummarize_ContextDeadline(t *testing.T) {
	release := make(chan struct{})
	c := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	// Registered after srv.Close, so it runs first and frees the handler.
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Summarize(ctx, "x")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNew_Defaults(t *testing.T) {
	c := New(Config{APIKey: "k", MaxTokens: -1}, nil)
	assert.Equal(t, DefaultBaseURL, c.cfg.BaseURL)
	assert.Equal(t, DefaultModel, c.cfg.Model)
	assert.Equal(t, DefaultMaxTokens, c.cfg.MaxTokens)
	assert.Equal(t, DefaultTimeout, c.http.Timeout)
	assert.NotNil(t, c.api)
}
