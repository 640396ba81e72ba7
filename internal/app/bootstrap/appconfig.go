// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS, body limits);
// everything below is specific to stratasheet.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64 // Maximum connections in pool (default: 100)
	MongoMinPoolSize uint64 // Minimum connections to keep warm (default: 10)

	// Session management configuration
	SessionKey       string        // Secret key for signing session cookies (must be strong in production)
	SessionName      string        // Cookie name for sessions (default: stratasheet-session)
	SessionDomain    string        // Cookie domain (blank means current host)
	SessionMaxAge    time.Duration // Maximum session cookie lifetime (default: 24h)
	SessionCrossSite bool          // SameSite=None for a frontend served from another origin

	// Login rate limiting
	RateLimitEnabled       bool          // Enable rate limiting for login attempts (default: true)
	RateLimitLoginAttempts int           // Max failed login attempts before lockout (default: 5)
	RateLimitLoginWindow   time.Duration // Time window for counting failed attempts (default: 15m)
	RateLimitLoginLockout  time.Duration // Lockout duration after exceeding limit (default: 15m)
	RateLimitRetention     time.Duration // Idle attempt records older than this are purged (default: 24h)

	// CSRF protection configuration
	CSRFKey string // Secret key for CSRF token signing (32 bytes, must be strong in production)

	// APIKey enables Bearer token access to /api/external/*. Empty disables it.
	APIKey string

	// File storage configuration
	StorageType      string // Storage backend: "local" or "s3"
	StorageLocalPath string // Local storage path (e.g., "./uploads")
	StorageLocalURL  string // URL prefix for serving local files (e.g., "/files")

	// S3/CloudFront configuration (only used if StorageType is "s3")
	StorageS3Region    string
	StorageS3Bucket    string
	StorageS3Prefix    string
	StorageCFURL       string
	StorageCFKeyPairID string
	StorageCFKeyPath   string

	// Uploads
	UploadMaxBytes        int64         // Largest accepted spreadsheet (default: 10 MiB)
	IngestTimeout         time.Duration // Deadline for one upload's store+parse+persist (default: 30s)
	OrphanCleanupInterval time.Duration // How often unreferenced blobs are retried (default: 15m)

	// BaseURL is this server's public origin; the Google callback hangs off it.
	BaseURL     string
	// FrontendURL is where browsers land after Google sign-in.
	FrontendURL string

	// Audit logging configuration
	// Values: "all" (MongoDB + zap), "db" (MongoDB only), "log" (zap only), "off" (disabled)
	AuditLogAuth  string
	AuditLogAdmin string
	AuditLogData  string

	// Google OAuth configuration
	GoogleClientID     string
	GoogleClientSecret string

	// AI summaries
	AIBaseURL        string  // Chat completions endpoint base
	AIAPIKey         string  // Empty disables summaries
	AIModel          string  // Model name sent to the provider
	AIMaxTokens      int     // Max tokens per summary (default: 200)
	AIRateLimitRPS   float64 // Summary requests per second across all users; 0 disables
	AIRateLimitBurst int     // Requests allowed in a burst

	// Admin seeding configuration
	SeedAdminUsername string
	SeedAdminName     string
	SeedAdminPassword string
}
