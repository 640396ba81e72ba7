// internal/app/system/auditlog/logger.go
package auditlog

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/stratasheet/internal/app/store/audit"
	"github.com/dalemusser/stratasheet/internal/app/system/network"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth covers registration, sign-in, sign-out and account deletion.
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	Auth string
	// Admin covers admin deletions of users and datasets. Same values as Auth.
	Admin string
	// Data covers dataset uploads and deletions by their owners. Same values as Auth.
	Data string
}

// Logger records audit events to MongoDB (via audit.Store) and zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

// base fills the request-derived fields of an event.
func base(r *http.Request, category, eventType string, success bool) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        network.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   success,
	}
}

// logToZap logs the event to zap with consistent structure.
func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}

	if event.UserID != nil {
		fields = append(fields, zap.String("user_id", event.UserID.Hex()))
	}
	if event.ActorID != nil {
		fields = append(fields, zap.String("actor_id", event.ActorID.Hex()))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

// Log records an audit event based on configuration.
// If the logger is nil, this is a no-op (allows tests to use nil audit logger).
// Logging destination is controlled by config: "all", "db", "log", or "off".
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}

	// Determine which config setting applies based on event category
	var setting string
	switch event.Category {
	case audit.CategoryAuth:
		setting = l.config.Auth
	case audit.CategoryAdmin:
		setting = l.config.Admin
	case audit.CategoryData:
		setting = l.config.Data
	default:
		setting = "all" // Default to logging everything for unknown categories
	}

	// Check if logging is disabled for this category
	if setting == "off" {
		return
	}

	// Log to zap if configured
	if setting == "all" || setting == "log" {
		l.logToZap(event)
	}

	// Log to MongoDB if configured
	if setting == "all" || setting == "db" {
		if err := l.store.Log(ctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType),
			)
		}
	}
}

// --- Authentication Events ---

// Register logs a new password account.
func (l *Logger) Register(ctx context.Context, r *http.Request, userID primitive.ObjectID, loginID string) {
	e := base(r, audit.CategoryAuth, audit.EventRegister, true)
	e.UserID = &userID
	e.Details = map[string]string{"login_id": loginID}
	l.Log(ctx, e)
}

// LoginSuccess logs a successful sign-in.
func (l *Logger) LoginSuccess(ctx context.Context, r *http.Request, userID primitive.ObjectID, authMethod, loginID string) {
	e := base(r, audit.CategoryAuth, audit.EventLoginSuccess, true)
	e.UserID = &userID
	e.Details = map[string]string{"auth_method": authMethod, "login_id": loginID}
	l.Log(ctx, e)
}

// GoogleLogin logs a Google sign-in; created reports whether the account is new.
func (l *Logger) GoogleLogin(ctx context.Context, r *http.Request, userID primitive.ObjectID, created bool) {
	e := base(r, audit.CategoryAuth, audit.EventGoogleLogin, true)
	e.UserID = &userID
	e.Details = map[string]string{"created": strconv.FormatBool(created)}
	l.Log(ctx, e)
}

// LoginFailed logs a rejected sign-in. userID is nil when the username is unknown.
func (l *Logger) LoginFailed(ctx context.Context, r *http.Request, eventType string, userID *primitive.ObjectID, attemptedLoginID, reason string) {
	e := base(r, audit.CategoryAuth, eventType, false)
	e.UserID = userID
	e.FailureReason = reason
	e.Details = map[string]string{"attempted_login_id": attemptedLoginID}
	l.Log(ctx, e)
}

// LockedOut logs a sign-in refused because of too many failures.
func (l *Logger) LockedOut(ctx context.Context, r *http.Request, attemptedLoginID string, retryAfterSeconds int) {
	e := base(r, audit.CategoryAuth, audit.EventLoginLockedOut, false)
	e.FailureReason = "too many failed attempts"
	e.Details = map[string]string{
		"attempted_login_id":  attemptedLoginID,
		"retry_after_seconds": strconv.Itoa(retryAfterSeconds),
	}
	l.Log(ctx, e)
}

// Logout logs a sign-out. An invalid userIDStr is recorded without a user.
func (l *Logger) Logout(ctx context.Context, r *http.Request, userIDStr string) {
	e := base(r, audit.CategoryAuth, audit.EventLogout, true)
	if oid, err := primitive.ObjectIDFromHex(userIDStr); err == nil {
		e.UserID = &oid
	}
	l.Log(ctx, e)
}

// AccountDeleted logs a user deleting their own account.
func (l *Logger) AccountDeleted(ctx context.Context, r *http.Request, userID primitive.ObjectID, datasets int64) {
	e := base(r, audit.CategoryAuth, audit.EventAccountDeleted, true)
	e.UserID = &userID
	e.Details = map[string]string{"datasets_deleted": strconv.FormatInt(datasets, 10)}
	l.Log(ctx, e)
}

// --- Data Events ---

// DatasetUploaded logs a successful ingestion.
func (l *Logger) DatasetUploaded(ctx context.Context, r *http.Request, userID, datasetID primitive.ObjectID, title string, rows int) {
	e := base(r, audit.CategoryData, audit.EventDatasetUploaded, true)
	e.UserID = &userID
	e.Details = map[string]string{
		"dataset_id": datasetID.Hex(),
		"title":      title,
		"rows":       strconv.Itoa(rows),
	}
	l.Log(ctx, e)
}

// DatasetDeleted logs an owner deleting their dataset.
func (l *Logger) DatasetDeleted(ctx context.Context, r *http.Request, userID, datasetID primitive.ObjectID, title string) {
	e := base(r, audit.CategoryData, audit.EventDatasetDeleted, true)
	e.UserID = &userID
	e.Details = map[string]string{"dataset_id": datasetID.Hex(), "title": title}
	l.Log(ctx, e)
}

// --- Admin Events ---

// DatasetRemovedByAdmin logs an admin deleting someone's dataset.
func (l *Logger) DatasetRemovedByAdmin(ctx context.Context, r *http.Request, actorID, ownerID, datasetID primitive.ObjectID, title string) {
	e := base(r, audit.CategoryAdmin, audit.EventDatasetRemoved, true)
	e.ActorID = &actorID
	e.UserID = &ownerID
	e.Details = map[string]string{"dataset_id": datasetID.Hex(), "title": title}
	l.Log(ctx, e)
}

// UserDeleted logs an admin deleting a user and their datasets.
func (l *Logger) UserDeleted(ctx context.Context, r *http.Request, actorID, targetUserID primitive.ObjectID, loginID string, datasets int64) {
	e := base(r, audit.CategoryAdmin, audit.EventUserDeleted, true)
	e.ActorID = &actorID
	e.UserID = &targetUserID
	e.Details = map[string]string{
		"login_id":         loginID,
		"datasets_deleted": strconv.FormatInt(datasets, 10),
	}
	l.Log(ctx, e)
}
