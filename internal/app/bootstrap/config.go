// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// EnvVarPrefix is the prefix for environment variables.
const EnvVarPrefix = "STRATASHEET"

// appConfigKeys defines the configuration keys for this application.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: STRATASHEET_MONGO_URI, STRATASHEET_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "stratasheet", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},
	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Session signing key (must be strong in production)"},
	{Name: "session_name", Default: "stratasheet-session", Desc: "Session cookie name"},
	{Name: "session_domain", Default: "", Desc: "Session cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "24h", Desc: "Session cookie max age (e.g., 24h, 720h, 30m)"},
	{Name: "session_cross_site", Default: false, Desc: "Send the session cookie cross-site (SameSite=None; requires HTTPS)"},

	// Rate limiting configuration
	{Name: "rate_limit_enabled", Default: true, Desc: "Enable rate limiting for login attempts"},
	{Name: "rate_limit_login_attempts", Default: 5, Desc: "Max failed login attempts before lockout"},
	{Name: "rate_limit_login_window", Default: "15m", Desc: "Time window for counting failed attempts"},
	{Name: "rate_limit_login_lockout", Default: "15m", Desc: "Lockout duration after exceeding limit"},
	{Name: "rate_limit_retention", Default: "24h", Desc: "Purge login attempt records idle longer than this"},

	{Name: "csrf_key", Default: "dev-only-csrf-key-please-change-0123456789", Desc: "CSRF token signing key (32+ chars in production)"},

	{Name: "api_key", Default: "", Desc: "API key for /api/external access (leave empty to disable)"},

	// File storage configuration
	{Name: "storage_type", Default: "local", Desc: "Storage backend: 'local' or 's3'"},
	{Name: "storage_local_path", Default: "./uploads", Desc: "Local storage path for uploaded files"},
	{Name: "storage_local_url", Default: "/files", Desc: "URL prefix for serving local files"},

	// S3/CloudFront configuration
	{Name: "storage_s3_region", Default: "", Desc: "AWS region for S3"},
	{Name: "storage_s3_bucket", Default: "", Desc: "S3 bucket name"},
	{Name: "storage_s3_prefix", Default: "uploads/", Desc: "S3 key prefix"},
	{Name: "storage_cf_url", Default: "", Desc: "CloudFront distribution URL"},
	{Name: "storage_cf_keypair_id", Default: "", Desc: "CloudFront key pair ID"},
	{Name: "storage_cf_key_path", Default: "", Desc: "Path to CloudFront private key file"},

	// Uploads
	{Name: "upload_max_bytes", Default: 10485760, Desc: "Largest accepted spreadsheet in bytes"},
	{Name: "ingest_timeout", Default: "30s", Desc: "Deadline for storing, parsing and saving one upload"},
	{Name: "orphan_cleanup_interval", Default: "15m", Desc: "How often unreferenced stored files are retried"},

	{Name: "base_url", Default: "http://localhost:8080", Desc: "Public base URL of this server"},
	{Name: "frontend_url", Default: "http://localhost:3000", Desc: "Frontend URL browsers return to after Google sign-in"},

	// Audit logging settings
	{Name: "audit_log_auth", Default: "all", Desc: "Auth event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_data", Default: "all", Desc: "Dataset event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Google OAuth configuration
	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	// AI summaries
	{Name: "ai_base_url", Default: "https://api.openai.com/v1", Desc: "Chat completions API base URL"},
	{Name: "ai_api_key", Default: "", Desc: "AI provider API key (leave empty to disable summaries)"},
	{Name: "ai_model", Default: "gpt-3.5-turbo", Desc: "Model used for summaries"},
	{Name: "ai_max_tokens", Default: 200, Desc: "Max tokens per summary"},
	{Name: "ai_rate_limit_rps", Default: "1", Desc: "Summary requests per second across all users (0 disables)"},
	{Name: "ai_rate_limit_burst", Default: 5, Desc: "Summary request burst"},

	// Admin seeding configuration
	{Name: "seed_admin_username", Default: "", Desc: "Username of admin user to ensure on startup"},
	{Name: "seed_admin_name", Default: "Admin", Desc: "Display name of the seeded admin"},
	{Name: "seed_admin_password", Default: "", Desc: "Password for a newly created seeded admin"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// STRATASHEET_* environment variables and flags, with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvVarPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	rps, err := parseRate(appValues.String("ai_rate_limit_rps"))
	if err != nil {
		return nil, AppConfig{}, fmt.Errorf("ai_rate_limit_rps: %w", err)
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),
		SessionKey:       appValues.String("session_key"),
		SessionName:      appValues.String("session_name"),
		SessionDomain:    appValues.String("session_domain"),
		SessionMaxAge:    appValues.Duration("session_max_age", 24*time.Hour),
		SessionCrossSite: appValues.Bool("session_cross_site"),

		// Rate limiting
		RateLimitEnabled:       appValues.Bool("rate_limit_enabled"),
		RateLimitLoginAttempts: appValues.Int("rate_limit_login_attempts"),
		RateLimitLoginWindow:   appValues.Duration("rate_limit_login_window", 15*time.Minute),
		RateLimitLoginLockout:  appValues.Duration("rate_limit_login_lockout", 15*time.Minute),
		RateLimitRetention:     appValues.Duration("rate_limit_retention", 24*time.Hour),

		CSRFKey: appValues.String("csrf_key"),
		APIKey:  appValues.String("api_key"),

		// File storage
		StorageType:      appValues.String("storage_type"),
		StorageLocalPath: appValues.String("storage_local_path"),
		StorageLocalURL:  appValues.String("storage_local_url"),

		// S3/CloudFront
		StorageS3Region:    appValues.String("storage_s3_region"),
		StorageS3Bucket:    appValues.String("storage_s3_bucket"),
		StorageS3Prefix:    appValues.String("storage_s3_prefix"),
		StorageCFURL:       appValues.String("storage_cf_url"),
		StorageCFKeyPairID: appValues.String("storage_cf_keypair_id"),
		StorageCFKeyPath:   appValues.String("storage_cf_key_path"),

		// Uploads
		UploadMaxBytes:        int64(appValues.Int("upload_max_bytes")),
		IngestTimeout:         appValues.Duration("ingest_timeout", 30*time.Second),
		OrphanCleanupInterval: appValues.Duration("orphan_cleanup_interval", 15*time.Minute),

		BaseURL:     strings.TrimRight(appValues.String("base_url"), "/"),
		FrontendURL: strings.TrimRight(appValues.String("frontend_url"), "/"),

		// Audit logging
		AuditLogAuth:  appValues.String("audit_log_auth"),
		AuditLogAdmin: appValues.String("audit_log_admin"),
		AuditLogData:  appValues.String("audit_log_data"),

		// Google OAuth
		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		// AI summaries
		AIBaseURL:        appValues.String("ai_base_url"),
		AIAPIKey:         appValues.String("ai_api_key"),
		AIModel:          appValues.String("ai_model"),
		AIMaxTokens:      appValues.Int("ai_max_tokens"),
		AIRateLimitRPS:   rps,
		AIRateLimitBurst: appValues.Int("ai_rate_limit_burst"),

		// Admin seeding
		SeedAdminUsername: appValues.String("seed_admin_username"),
		SeedAdminName:     appValues.String("seed_admin_name"),
		SeedAdminPassword: appValues.String("seed_admin_password"),
	}

	return coreCfg, appCfg, nil
}

// parseRate reads a non-negative requests-per-second value. Empty means 0.
func parseRate(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("must not be negative")
	}
	return v, nil
}

// ValidateConfig performs app-specific config validation.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	switch appCfg.StorageType {
	case "", "local":
	case "s3":
		if appCfg.StorageS3Bucket == "" {
			return errors.New("storage_s3_bucket is required when storage_type is s3")
		}
	default:
		return fmt.Errorf("unknown storage type: %q", appCfg.StorageType)
	}

	if appCfg.UploadMaxBytes <= 0 {
		return errors.New("upload_max_bytes must be positive")
	}
	if appCfg.IngestTimeout <= 0 {
		return errors.New("ingest_timeout must be positive")
	}
	if appCfg.OrphanCleanupInterval <= 0 {
		return errors.New("orphan_cleanup_interval must be positive")
	}
	if appCfg.SessionCrossSite && !strings.HasPrefix(appCfg.BaseURL, "https://") {
		logger.Warn("session_cross_site requires HTTPS; browsers will drop the cookie over plain HTTP",
			zap.String("base_url", appCfg.BaseURL))
	}
	if appCfg.AIAPIKey == "" {
		logger.Info("ai_api_key not set; AI summaries disabled")
	}

	return nil
}
