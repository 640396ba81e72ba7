// internal/app/features/authgoogle/authgoogle.go
// Package authgoogle signs users in with Google, creating an account on
// first sign-in.
package authgoogle

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The human-readable string users type to log in

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	errorsfeature "github.com/dalemusser/stratasheet/internal/app/features/errors"
	"github.com/dalemusser/stratasheet/internal/app/store/audit"
	"github.com/dalemusser/stratasheet/internal/app/store/oauthstate"
	userstore "github.com/dalemusser/stratasheet/internal/app/store/users"
	"github.com/dalemusser/stratasheet/internal/app/system/auditlog"
	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/app/system/authutil"
	"github.com/dalemusser/stratasheet/internal/app/system/status"
	"github.com/dalemusser/stratasheet/internal/app/system/timeouts"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// DefaultUserInfoURL is Google's OAuth2 userinfo endpoint.
const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// Config holds the OAuth client and redirect targets.
type Config struct {
	ClientID     string
	ClientSecret string
	BaseURL      string // this server; the callback is BaseURL/auth/google/callback
	FrontendURL  string // where the browser lands after sign-in
}

// Handler provides Google OAuth handlers.
type Handler struct {
	userStore       *userstore.Store
	sessionMgr      *auth.SessionManager
	errLog          *errorsfeature.ErrorLogger
	auditLogger     *auditlog.Logger
	oauthStateStore *oauthstate.Store
	oauthConfig     *oauth2.Config
	userInfoURL     string
	frontendURL     string
	logger          *zap.Logger
}

// NewHandler creates a new Google OAuth Handler.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	errLog *errorsfeature.ErrorLogger,
	auditLogger *auditlog.Logger,
	oauthStateStore *oauthstate.Store,
	cfg Config,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		userStore:       userstore.New(db),
		sessionMgr:      sessionMgr,
		errLog:          errLog,
		auditLogger:     auditLogger,
		oauthStateStore: oauthStateStore,
		oauthConfig: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  strings.TrimRight(cfg.BaseURL, "/") + "/auth/google/callback",
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		userInfoURL: DefaultUserInfoURL,
		frontendURL: strings.TrimRight(cfg.FrontendURL, "/"),
		logger:      logger,
	}
}

// Routes returns a chi.Router with Google OAuth routes mounted.
func Routes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/", h.startAuth)
	r.Get("/callback", h.handleCallback)
	return r
}

// failure sends the browser back to the frontend login page.
func (h *Handler) failure(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, h.frontendURL+"/login?error="+url.QueryEscape(code), http.StatusSeeOther)
}

// startAuth initiates the Google OAuth flow. An optional ?return=/path is
// remembered with the state.
func (h *Handler) startAuth(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		h.errLog.Log(r, "failed to generate state", err)
		h.failure(w, r, "oauth_error")
		return
	}

	if err := h.oauthStateStore.Create(r.Context(), state, safeReturn(r.URL.Query().Get("return"))); err != nil {
		h.errLog.Log(r, "failed to store state", err)
		h.failure(w, r, "oauth_error")
		return
	}

	http.Redirect(w, r, h.oauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// handleCallback processes the Google OAuth callback.
func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	// State is consumed first so a replayed callback cannot reuse it.
	st, ok := h.oauthStateStore.Consume(ctx, q.Get("state"))
	if !ok {
		h.logger.Warn("invalid oauth state")
		h.failure(w, r, "invalid_state")
		return
	}

	if errMsg := q.Get("error"); errMsg != "" {
		h.logger.Warn("oauth error from google", zap.String("error", errMsg))
		h.failure(w, r, "google_auth_failed")
		return
	}

	code := q.Get("code")
	if code == "" {
		h.failure(w, r, "google_auth_failed")
		return
	}
	token, err := h.oauthConfig.Exchange(ctx, code)
	if err != nil {
		h.errLog.Log(r, "failed to exchange code", err)
		h.failure(w, r, "token_exchange_failed")
		return
	}

	info, err := h.getUserInfo(ctx, token)
	if err != nil {
		h.errLog.Log(r, "failed to get user info", err)
		h.failure(w, r, "userinfo_failed")
		return
	}

	user, created, err := h.findOrCreate(ctx, info)
	if err != nil {
		h.errLog.Log(r, "failed to find or create google user", err)
		h.failure(w, r, "google_auth_failed")
		return
	}

	if !status.IsActive(user.Status) {
		h.auditLogger.LoginFailed(ctx, r, audit.EventLoginFailedUserDisabled, &user.ID, user.LoginID, "user disabled")
		h.failure(w, r, "account_disabled")
		return
	}

	if err := h.sessionMgr.CreateSession(w, r, user.ID, user.Role); err != nil {
		h.errLog.Log(r, "failed to create session", err)
		h.failure(w, r, "session_error")
		return
	}
	h.auditLogger.GoogleLogin(ctx, r, user.ID, created)

	http.Redirect(w, r, h.frontendURL+st.ReturnTo, http.StatusSeeOther)
}

// findOrCreate returns the account linked to the Google subject, creating
// it on first sign-in. Existing accounts get their name and picture
// refreshed.
func (h *Handler) findOrCreate(ctx context.Context, info *GoogleUserInfo) (*models.User, bool, error) {
	if info.ID == "" {
		return nil, false, errors.New("userinfo has no subject id")
	}

	user, err := h.userStore.GetByGoogleID(ctx, info.ID)
	if err == nil {
		if info.Name != user.FullName || (info.Picture != "" && info.Picture != user.AvatarURL) {
			if err := h.userStore.UpdateGoogleProfile(ctx, user.ID, info.Name, info.Picture); err != nil {
				h.logger.Warn("failed to refresh google profile", zap.String("user_id", user.ID.Hex()), zap.Error(err))
			}
		}
		return user, false, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, err
	}

	in := userstore.CreateInput{
		FullName:   info.Name,
		LoginID:    authutil.GoogleUsername(info.Name, info.ID),
		Email:      info.Email,
		GoogleID:   info.ID,
		AvatarURL:  info.Picture,
		AuthMethod: models.AuthMethodGoogle,
		Role:       models.RoleMember,
	}
	u, err := h.userStore.Create(ctx, in)
	if errors.Is(err, userstore.ErrDuplicateLoginID) {
		// A concurrent callback may have created the account already.
		if existing, gerr := h.userStore.GetByGoogleID(ctx, info.ID); gerr == nil {
			return existing, false, nil
		}
		in.LoginID = authutil.DisambiguatedUsername(in.LoginID, info.ID)
		u, err = h.userStore.Create(ctx, in)
	}
	if err != nil {
		return nil, false, fmt.Errorf("create google user: %w", err)
	}
	return &u, true, nil
}

// GoogleUserInfo represents user info from Google.
type GoogleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// getUserInfo fetches user info from Google.
func (h *Handler) getUserInfo(ctx context.Context, token *oauth2.Token) (*GoogleUserInfo, error) {
	client := h.oauthConfig.Client(ctx, token)

	ctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.userInfoURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo returned %d", resp.StatusCode)
	}

	var userInfo GoogleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, err
	}

	return &userInfo, nil
}

// generateState generates a random state token.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// safeReturn keeps only same-origin paths so the callback cannot be used
// as an open redirect.
func safeReturn(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/"
	}
	return p
}
