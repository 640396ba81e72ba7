// internal/app/features/account/account.go
// Package account serves password registration and login, the signed-in
// user's profile and upload history, and self-service account deletion.
package account

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The username people type to sign in

import (
	"context"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratasheet/internal/app/features/errors"
	datasetstore "github.com/dalemusser/stratasheet/internal/app/store/datasets"
	"github.com/dalemusser/stratasheet/internal/app/store/ratelimit"
	userstore "github.com/dalemusser/stratasheet/internal/app/store/users"
	"github.com/dalemusser/stratasheet/internal/app/system/auditlog"
	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/csrf"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// BlobRemover deletes the stored files of removed datasets.
type BlobRemover interface {
	RemoveBlobs(ctx context.Context, owner primitive.ObjectID, paths []string, reason string) int
}

// Handler provides the /api/auth endpoints.
type Handler struct {
	db         *mongo.Database
	users      *userstore.Store
	datasets   *datasetstore.Store
	blobs      BlobRemover
	limits     *ratelimit.Store // nil if rate limiting disabled
	sessionMgr *auth.SessionManager
	audit      *auditlog.Logger
	errLog     *errorsfeature.ErrorLogger
	logger     *zap.Logger
}

// NewHandler creates a new account Handler. limits may be nil.
func NewHandler(
	db *mongo.Database,
	sessionMgr *auth.SessionManager,
	blobs BlobRemover,
	limits *ratelimit.Store,
	audit *auditlog.Logger,
	errLog *errorsfeature.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		db:         db,
		users:      userstore.New(db),
		datasets:   datasetstore.New(db),
		blobs:      blobs,
		limits:     limits,
		sessionMgr: sessionMgr,
		audit:      audit,
		errLog:     errLog,
		logger:     logger,
	}
}

// Routes returns a chi.Router with account routes mounted.
//
// When mounted at /api/auth:
//   - POST   /register  create a password account and sign in
//   - POST   /login     sign in with username and password
//   - GET    /csrf      CSRF token for the X-CSRF-Token header
//   - POST   /logout    sign out
//   - GET    /me        the signed-in user
//   - GET    /history   the signed-in user's datasets, newest first
//   - DELETE /delete    delete the account and every dataset it owns
func Routes(h *Handler, sm *auth.SessionManager) http.Handler {
	r := chi.NewRouter()

	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Get("/csrf", h.csrfToken)

	r.Group(func(pr chi.Router) {
		pr.Use(sm.RequireSignedIn)
		pr.Post("/logout", h.logout)
		pr.Get("/me", h.me)
		pr.Get("/history", h.history)
		pr.Delete("/delete", h.deleteAccount)
	})

	return r
}

// UserView is the public shape of an account.
type UserView struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Name       string    `json:"name"`
	AvatarURL  string    `json:"avatarUrl"`
	AuthMethod string    `json:"authMethod"`
	Role       string    `json:"role"`
	History    []string  `json:"history"`
	CreatedAt  time.Time `json:"createdAt"`
}

func newUserView(u *models.User, history []string) UserView {
	if history == nil {
		history = []string{}
	}
	return UserView{
		ID:         u.ID.Hex(),
		Username:   u.LoginID,
		Name:       u.FullName,
		AvatarURL:  u.Avatar(),
		AuthMethod: u.AuthMethod,
		Role:       u.Role,
		History:    history,
		CreatedAt:  u.CreatedAt,
	}
}

// csrfToken handles GET /api/auth/csrf.
func (h *Handler) csrfToken(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-CSRF-Token", csrf.Token(r))
	jsonutil.OK(w, map[string]string{"csrfToken": csrf.Token(r)})
}
