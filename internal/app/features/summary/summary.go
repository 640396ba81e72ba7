// internal/app/features/summary/summary.go
// Package summary serves AI-generated narratives of dataset text.
package summary

import (
	"context"
	"errors"
	"net/http"
	"strings"

	errorsfeature "github.com/dalemusser/stratasheet/internal/app/features/errors"
	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/app/system/inputval"
	"github.com/dalemusser/stratasheet/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasheet/internal/app/system/metrics"
	"github.com/dalemusser/stratasheet/internal/app/system/network"
	"github.com/dalemusser/stratasheet/internal/app/system/summarizer"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Outcome labels for the ai summaries counter.
const (
	outcomeOK           = "ok"
	outcomeInvalid      = "invalid"
	outcomeUnconfigured = "unconfigured"
	outcomeRateLimited  = "rate_limited"
	outcomeError        = "error"
)

// Summarizer produces a summary of text.
type Summarizer interface {
	Configured() bool
	Summarize(ctx context.Context, text string) (string, error)
}

// Handler provides the AI summary endpoint.
type Handler struct {
	summarizer Summarizer
	metrics    *metrics.Metrics
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

// NewHandler creates a summary Handler. m may be nil.
func NewHandler(s Summarizer, m *metrics.Metrics, errLog *errorsfeature.ErrorLogger, logger *zap.Logger) *Handler {
	return &Handler{summarizer: s, metrics: m, errLog: errLog, logger: logger}
}

// RateLimiter throttles summary requests across all callers.
type RateLimiter struct {
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewRateLimiter allows rps requests per second with the given burst.
// rps <= 0 disables limiting.
func NewRateLimiter(rps float64, burst int, m *metrics.Metrics, logger *zap.Logger) *RateLimiter {
	if rps <= 0 {
		return &RateLimiter{limiter: rate.NewLimiter(rate.Inf, 0), metrics: m, logger: logger}
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		metrics: m,
		logger:  logger,
	}
}

// Handler rejects requests over the limit with 429.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow() {
			rl.logger.Warn("ai summary rate limit exceeded",
				zap.String("path", r.URL.Path),
				zap.String("ip", network.ClientIP(r)))
			rl.metrics.AISummary(outcomeRateLimited)
			jsonutil.TooManyRequests(w, "Too many summary requests, please try again shortly", 1)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Routes returns a chi.Router with the summary route mounted. The route
// requires a signed-in user.
//
// When mounted at /api/files/summary:
//   - POST / {text}  summarize text
func Routes(h *Handler, rl *RateLimiter, sm *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)
	r.With(rl.Handler).Post("/", h.summarize)
	return r
}

type summaryInput struct {
	Text string `json:"text" validate:"required,notblank,max=20000" label:"Text"`
}

// summarize handles POST /api/files/summary.
func (h *Handler) summarize(w http.ResponseWriter, r *http.Request) {
	var in summaryInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		h.metrics.AISummary(outcomeInvalid)
		if errors.Is(err, jsonutil.ErrEmptyBody) {
			jsonutil.BadRequest(w, "No text provided")
			return
		}
		jsonutil.BadRequest(w, "Invalid JSON payload")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		h.metrics.AISummary(outcomeInvalid)
		if strings.TrimSpace(in.Text) == "" {
			jsonutil.BadRequest(w, "No text provided")
			return
		}
		jsonutil.ValidationError(w, res.First(), res.Fields())
		return
	}

	if h.summarizer == nil || !h.summarizer.Configured() {
		h.metrics.AISummary(outcomeUnconfigured)
		jsonutil.Unavailable(w, "AI summaries are not configured")
		return
	}

	text, err := h.summarizer.Summarize(r.Context(), in.Text)
	if err != nil {
		h.metrics.AISummary(outcomeError)
		var apiErr *summarizer.APIError
		if errors.As(err, &apiErr) {
			h.errLog.Internal(w, r, "Failed to generate summary", err, zap.Int("upstream_status", apiErr.StatusCode))
			return
		}
		h.errLog.Internal(w, r, "Failed to generate summary", err)
		return
	}

	h.metrics.AISummary(outcomeOK)
	jsonutil.OK(w, map[string]any{"success": true, "summary": text})
}
