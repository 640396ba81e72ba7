// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	accountfeature "github.com/dalemusser/stratasheet/internal/app/features/account"
	adminfeature "github.com/dalemusser/stratasheet/internal/app/features/admin"
	authgooglefeature "github.com/dalemusser/stratasheet/internal/app/features/authgoogle"
	datasetsfeature "github.com/dalemusser/stratasheet/internal/app/features/datasets"
	errorsfeature "github.com/dalemusser/stratasheet/internal/app/features/errors"
	healthfeature "github.com/dalemusser/stratasheet/internal/app/features/health"
	summaryfeature "github.com/dalemusser/stratasheet/internal/app/features/summary"
	"github.com/dalemusser/stratasheet/internal/app/store/audit"
	datasetstore "github.com/dalemusser/stratasheet/internal/app/store/datasets"
	"github.com/dalemusser/stratasheet/internal/app/store/oauthstate"
	"github.com/dalemusser/stratasheet/internal/app/store/orphans"
	"github.com/dalemusser/stratasheet/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/stratasheet/internal/app/store/users"
	"github.com/dalemusser/stratasheet/internal/app/system/apicors"
	"github.com/dalemusser/stratasheet/internal/app/system/auditlog"
	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/app/system/ingest"
	"github.com/dalemusser/stratasheet/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasheet/internal/app/system/metrics"
	"github.com/dalemusser/stratasheet/internal/app/system/summarizer"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/middleware"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"
)

// csrfExemptPrefix covers machine clients that authenticate with an API key
// and never hold a session cookie.
const csrfExemptPrefix = "/api/external/"

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// # Mixed Authentication Routes
//
//   - Browser routes (/api/auth, /api/files, /api/admin): session auth + CSRF + restrictive CORS
//   - Machine routes (/api/external): API key auth + no CSRF + permissive CORS
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(auth.SessionConfig{
		Key:       appCfg.SessionKey,
		Name:      appCfg.SessionName,
		Domain:    appCfg.SessionDomain,
		MaxAge:    appCfg.SessionMaxAge,
		Secure:    secure || appCfg.SessionCrossSite,
		CrossSite: appCfg.SessionCrossSite,
	}, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	// Role changes and deletions take effect on the next request.
	sessionMgr.SetUserFetcher(userstore.NewFetcher(db, logger))

	errLog := errorsfeature.NewErrorLogger(logger, coreCfg.Env == "dev")

	auditLogger := auditlog.New(audit.New(db), logger, auditlog.Config{
		Auth:  appCfg.AuditLogAuth,
		Admin: appCfg.AuditLogAdmin,
		Data:  appCfg.AuditLogData,
	})

	m := appMetrics
	if m == nil {
		m = metrics.New()
	}

	ingestSvc := ingest.NewService(
		datasetstore.New(db),
		deps.FileStorage,
		orphans.New(db),
		m,
		appCfg.IngestTimeout,
		logger,
	)

	// Login rate limiting (nil if disabled)
	var limits *ratelimit.Store
	if appCfg.RateLimitEnabled {
		limits = loginLimits(appCfg, db)
	}

	r := chi.NewRouter()

	// ─────────────────────────────────────────────────────────────────────────────
	// Global Middleware (applies to ALL routes)
	// ─────────────────────────────────────────────────────────────────────────────

	// Uploads get the ingest deadline plus headroom for reading the body.
	r.Use(chimw.Timeout(appCfg.IngestTimeout + 30*time.Second))

	// CORS middleware: must be early in the chain to handle preflight requests.
	r.Use(middleware.CORSFromConfig(coreCfg))

	r.Use(middleware.SecurityHeadersFromConfig(coreCfg))

	// Loads SessionUser into context if signed in. Machine routes have none.
	r.Use(sessionMgr.LoadSessionUser)

	r.Use(csrfMiddleware(appCfg, secure, logger))

	// ─────────────────────────────────────────────────────────────────────────────
	// Routes
	// ─────────────────────────────────────────────────────────────────────────────

	// Health check endpoints for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, orphans.New(db), logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	healthfeature.MountRootEndpoints(r, healthHandler)

	r.Handle("/metrics", m.Handler())

	// Uploaded files (local storage only)
	if appCfg.StorageType == "local" || appCfg.StorageType == "" {
		r.Handle(appCfg.StorageLocalURL+"/*", fileserver.Handler(appCfg.StorageLocalURL, appCfg.StorageLocalPath))
	}

	// Accounts: register, login, logout, me, history, delete
	accountHandler := accountfeature.NewHandler(db, sessionMgr, ingestSvc, limits, auditLogger, errLog, logger)
	r.Mount("/api/auth", accountfeature.Routes(accountHandler, sessionMgr))

	// Google OAuth (only mount if configured)
	if appCfg.GoogleClientID != "" && appCfg.GoogleClientSecret != "" {
		googleHandler := authgooglefeature.NewHandler(
			db,
			sessionMgr,
			errLog,
			auditLogger,
			oauthstate.New(db),
			authgooglefeature.Config{
				ClientID:     appCfg.GoogleClientID,
				ClientSecret: appCfg.GoogleClientSecret,
				BaseURL:      appCfg.BaseURL,
				FrontendURL:  appCfg.FrontendURL,
			},
			logger,
		)
		r.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
		logger.Info("Google OAuth enabled", zap.String("redirect_url", appCfg.BaseURL+"/auth/google/callback"))
	}

	// AI summaries. Mounted before /api/files so the longer prefix wins.
	summaryClient := summarizer.New(summarizer.Config{
		BaseURL:   appCfg.AIBaseURL,
		APIKey:    appCfg.AIAPIKey,
		Model:     appCfg.AIModel,
		MaxTokens: appCfg.AIMaxTokens,
	}, nil)
	summaryHandler := summaryfeature.NewHandler(summaryClient, m, errLog, logger)
	summaryLimiter := summaryfeature.NewRateLimiter(appCfg.AIRateLimitRPS, appCfg.AIRateLimitBurst, m, logger)
	r.Mount("/api/files/summary", summaryfeature.Routes(summaryHandler, summaryLimiter, sessionMgr))

	// Datasets: upload, list, get, download, delete
	datasetsHandler := datasetsfeature.NewHandler(db, ingestSvc, deps.FileStorage, appCfg.UploadMaxBytes, auditLogger, errLog, logger)
	r.Mount("/api/files", datasetsfeature.Routes(datasetsHandler, sessionMgr))

	// Admin (admin role only)
	adminHandler := adminfeature.NewHandler(db, ingestSvc, auditLogger, errLog, logger)
	r.Mount("/api/admin", adminfeature.Routes(adminHandler, sessionMgr))

	// Read-only admin export for machine clients, only when an API key is set.
	if appCfg.APIKey != "" {
		r.Group(func(r chi.Router) {
			r.Use(apicors.Middleware())
			r.Use(auth.APIKeyAuth(appCfg.APIKey, logger))
			r.Mount("/api/external/admin", adminfeature.ExternalRoutes(adminHandler))
		})
	}

	errorsHandler := errorsfeature.NewHandler()
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	return r, nil
}

// csrfMiddleware applies gorilla/csrf to every route except the API key
// routes. SPA clients read the token from GET /api/auth/csrf and send it back
// in the X-CSRF-Token header.
func csrfMiddleware(appCfg AppConfig, secure bool, logger *zap.Logger) func(http.Handler) http.Handler {
	sameSite := csrf.SameSiteLaxMode
	if appCfg.SessionCrossSite {
		sameSite = csrf.SameSiteNoneMode
	}
	// Cookie name is "stratasheet_csrf" to avoid collisions with other
	// services on the same domain.
	opts := []csrf.Option{
		csrf.Secure(secure || appCfg.SessionCrossSite),
		csrf.Path("/"),
		csrf.CookieName("stratasheet_csrf"),
		csrf.RequestHeader("X-CSRF-Token"),
		csrf.SameSite(sameSite),
		csrf.ErrorHandler(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			logger.Warn("CSRF validation failed",
				zap.String("path", req.URL.Path),
				zap.String("method", req.Method),
				zap.String("reason", csrf.FailureReason(req).Error()),
			)
			jsonutil.Forbidden(w, "CSRF token invalid or missing")
		})),
	}

	// The frontend origin is trusted; in dev, localhost too.
	var trusted []string
	if host := hostOf(appCfg.FrontendURL); host != "" {
		trusted = append(trusted, host)
	}
	if !secure {
		trusted = append(trusted,
			"localhost:8080",
			"localhost:3000",
			"127.0.0.1:8080",
			"127.0.0.1:3000",
		)
	}
	if len(trusted) > 0 {
		opts = append(opts, csrf.TrustedOrigins(trusted))
	}
	if appCfg.SessionDomain != "" {
		opts = append(opts, csrf.Domain(appCfg.SessionDomain))
	}
	protect := csrf.Protect([]byte(appCfg.CSRFKey), opts...)

	return func(next http.Handler) http.Handler {
		protected := protect(next)
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if strings.HasPrefix(req.URL.Path, csrfExemptPrefix) {
				next.ServeHTTP(w, req)
				return
			}
			protected.ServeHTTP(w, req)
		})
	}
}

// hostOf returns the host[:port] of an absolute URL, or "".
func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Host
}
