package errors

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/stratasheet/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewHandler(t *testing.T) {
	h := NewHandler()
	if h == nil {
		t.Fatal("NewHandler() returned nil")
	}
}

func TestHandler_Statuses(t *testing.T) {
	h := NewHandler()
	tests := []struct {
		name   string
		handle http.HandlerFunc
		status int
	}{
		{"forbidden", h.Forbidden, http.StatusForbidden},
		{"unauthorized", h.Unauthorized, http.StatusUnauthorized},
		{"not found", h.NotFound, http.StatusNotFound},
		{"method not allowed", h.MethodNotAllowed, http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/nowhere", nil)
			rec := testutil.NewRecorder()

			tt.handle(rec, req)

			rec.AssertStatus(t, tt.status)
			var body map[string]string
			rec.DecodeJSON(t, &body)
			if body["error"] == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestNotFound_IncludesPath(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/missing", nil)
	rec := httptest.NewRecorder()

	NewHandler().NotFound(rec, req)

	if !strings.Contains(rec.Body.String(), "/api/missing") {
		t.Errorf("body = %q, want path", rec.Body.String())
	}
}

func TestErrorLogger_Log(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	errLog := NewErrorLogger(zap.New(core), false)

	req := httptest.NewRequest(http.MethodPost, "/api/files/upload", nil)
	errLog.Log(req, "test error", errors.New("boom"))

	if logs.Len() != 1 {
		t.Fatalf("logged %d entries, want 1", logs.Len())
	}
	fields := logs.All()[0].ContextMap()
	if fields["path"] != "/api/files/upload" {
		t.Errorf("path = %v, want /api/files/upload", fields["path"])
	}
	if fields["method"] != http.MethodPost {
		t.Errorf("method = %v, want POST", fields["method"])
	}
}

func TestErrorLogger_LogWithFields(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	errLog := NewErrorLogger(zap.New(core), false)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	errLog.LogWithFields(req, "test error", nil, zap.String("extra", "field"))

	if got := logs.All()[0].ContextMap()["extra"]; got != "field" {
		t.Errorf("extra = %v, want field", got)
	}
}

func TestErrorLogger_Internal(t *testing.T) {
	tests := []struct {
		name       string
		showDetail bool
		want       string
	}{
		{"prod hides detail", false, GenericInternalMessage},
		{"dev shows detail", true, "save failed: disk full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errLog := NewErrorLogger(zap.NewNop(), tt.showDetail)
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			rec := testutil.NewRecorder()

			errLog.Internal(rec, req, "save failed", errors.New("disk full"))

			rec.AssertStatus(t, http.StatusInternalServerError)
			var body map[string]string
			rec.DecodeJSON(t, &body)
			if body["error"] != tt.want {
				t.Errorf("error = %q, want %q", body["error"], tt.want)
			}
		})
	}
}
