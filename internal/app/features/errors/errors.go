// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/stratasheet/internal/app/system/jsonutil"
	"go.uber.org/zap"
)

// GenericInternalMessage is what clients see for a 500 outside dev mode.
const GenericInternalMessage = "Internal server error"

// ErrorLogger wraps the zap logger for error logging.
type ErrorLogger struct {
	logger     *zap.Logger
	showDetail bool
}

// NewErrorLogger creates a new ErrorLogger. With showDetail set, Internal
// includes the error text in the response body (dev mode).
func NewErrorLogger(logger *zap.Logger, showDetail bool) *ErrorLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorLogger{logger: logger, showDetail: showDetail}
}

// Log logs an error with the given message and error.
func (e *ErrorLogger) Log(r *http.Request, msg string, err error) {
	e.logger.Error(msg,
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	)
}

// LogWithFields logs an error with additional fields.
func (e *ErrorLogger) LogWithFields(r *http.Request, msg string, err error, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.Error(err),
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
	}, fields...)
	e.logger.Error(msg, allFields...)
}

// Internal logs err and writes a 500.
func (e *ErrorLogger) Internal(w http.ResponseWriter, r *http.Request, msg string, err error, fields ...zap.Field) {
	e.LogWithFields(r, msg, err, fields...)
	body := GenericInternalMessage
	if e.showDetail && err != nil {
		body = msg + ": " + err.Error()
	}
	jsonutil.InternalError(w, body)
}

// Handler provides the JSON fallbacks for unmatched routes.
type Handler struct{}

// NewHandler creates a new error Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Forbidden writes a 403.
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	jsonutil.Forbidden(w, "Access denied")
}

// Unauthorized writes a 401.
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	jsonutil.Unauthorized(w, "Not authorized")
}

// NotFound writes a 404 naming the path.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	jsonutil.NotFound(w, "Not found: "+r.URL.Path)
}

// MethodNotAllowed writes a 405.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	jsonutil.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
}
