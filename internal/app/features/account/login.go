// internal/app/features/account/login.go
package account

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/dalemusser/stratasheet/internal/app/store/audit"
	userstore "github.com/dalemusser/stratasheet/internal/app/store/users"
	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/app/system/authutil"
	"github.com/dalemusser/stratasheet/internal/app/system/inputval"
	"github.com/dalemusser/stratasheet/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasheet/internal/app/system/status"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	msgInvalidCredentials = "Invalid credentials"
	msgTooManyAttempts    = "Too many failed login attempts. Please try again later."
)

type registerInput struct {
	Username string `json:"username" validate:"required,username" label:"Username"`
	Password string `json:"password" validate:"required" label:"Password"`
	Name     string `json:"name" validate:"max=100" label:"Name"`
}

type loginInput struct {
	Username string `json:"username" validate:"required" label:"Username"`
	Password string `json:"password" validate:"required" label:"Password"`
}

type authResponse struct {
	User UserView `json:"user"`
}

// register handles POST /api/auth/register.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var in registerInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.BadRequest(w, "Invalid JSON payload")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res.First(), res.Fields())
		return
	}
	if err := authutil.ValidatePassword(in.Password); err != nil {
		jsonutil.ValidationError(w, err.Error(), map[string]string{"password": authutil.PasswordRules()})
		return
	}
	username, err := authutil.ValidateUsername(in.Username)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	hash, err := authutil.HashPassword(in.Password)
	if err != nil {
		h.errLog.Internal(w, r, "failed to hash password", err)
		return
	}

	name := in.Name
	if name == "" {
		name = username
	}
	u, err := h.users.Create(r.Context(), userstore.CreateInput{
		FullName:     name,
		LoginID:      username,
		AuthMethod:   models.AuthMethodPassword,
		Role:         models.RoleMember,
		PasswordHash: &hash,
	})
	if err != nil {
		if errors.Is(err, userstore.ErrDuplicateLoginID) {
			jsonutil.BadRequest(w, "Username already exists")
			return
		}
		h.errLog.Internal(w, r, "failed to create user", err)
		return
	}

	if err := h.sessionMgr.CreateSession(w, r, u.ID, u.Role); err != nil {
		h.errLog.Internal(w, r, "failed to create session", err)
		return
	}
	h.audit.Register(r.Context(), r, u.ID, u.LoginID)

	jsonutil.Created(w, authResponse{User: newUserView(&u, nil)})
}

// login handles POST /api/auth/login.
//
// Every failure answers 401 "Invalid credentials" so the response does not
// reveal whether the username exists.
func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var in loginInput
	if err := jsonutil.Decode(w, r, &in); err != nil {
		jsonutil.BadRequest(w, "Invalid JSON payload")
		return
	}
	if res := inputval.Validate(in); res.HasErrors() {
		jsonutil.ValidationError(w, res.First(), res.Fields())
		return
	}
	ctx := r.Context()

	// Check rate limit before processing
	if h.limits != nil {
		allowed, _, lockedUntil := h.limits.CheckAllowed(ctx, in.Username)
		if !allowed {
			retry := retryAfter(lockedUntil)
			h.audit.LockedOut(ctx, r, in.Username, retry)
			jsonutil.TooManyRequests(w, msgTooManyAttempts, retry)
			return
		}
	}

	user, err := h.users.GetByLoginID(ctx, in.Username)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			authutil.BurnCompare(in.Password)
			h.fail(w, r, audit.EventLoginFailedUserNotFound, nil, in.Username, "user not found")
			return
		}
		h.errLog.Internal(w, r, "database error during login lookup", err)
		return
	}

	switch {
	case user.AuthMethod != models.AuthMethodPassword:
		authutil.BurnCompare(in.Password)
		h.fail(w, r, audit.EventLoginFailedWrongMethod, &user.ID, in.Username, "account uses "+user.AuthMethod+" sign-in")
		return
	case !status.IsActive(user.Status):
		authutil.BurnCompare(in.Password)
		h.fail(w, r, audit.EventLoginFailedUserDisabled, &user.ID, in.Username, "user disabled")
		return
	case !authutil.CheckPassword(in.Password, user.PasswordHash):
		h.fail(w, r, audit.EventLoginFailedWrongPassword, &user.ID, in.Username, "wrong password")
		return
	}

	// Clear rate limit on successful login
	if h.limits != nil {
		if err := h.limits.ClearOnSuccess(ctx, in.Username); err != nil {
			h.logger.Warn("failed to clear login attempts", zap.Error(err))
		}
	}

	if err := h.sessionMgr.CreateSession(w, r, user.ID, user.Role); err != nil {
		h.errLog.Internal(w, r, "failed to create session", err)
		return
	}
	h.audit.LoginSuccess(ctx, r, user.ID, user.AuthMethod, user.LoginID)

	history, err := h.datasets.HistoryTitles(ctx, user.ID)
	if err != nil {
		h.logger.Warn("failed to load upload history", zap.String("user_id", user.ID.Hex()), zap.Error(err))
	}
	jsonutil.OK(w, authResponse{User: newUserView(user, history)})
}

// fail records a failed attempt and writes the 401, or a 429 when this
// attempt triggered a lockout.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, eventType string, userID *primitive.ObjectID, loginID, reason string) {
	ctx := r.Context()
	h.audit.LoginFailed(ctx, r, eventType, userID, loginID, reason)

	if h.limits != nil {
		lockedOut, lockedUntil, err := h.limits.RecordFailure(ctx, loginID)
		if err != nil {
			h.logger.Warn("failed to record login failure", zap.Error(err))
		}
		if lockedOut {
			retry := retryAfter(lockedUntil)
			h.audit.LockedOut(ctx, r, loginID, retry)
			jsonutil.TooManyRequests(w, msgTooManyAttempts, retry)
			return
		}
	}
	jsonutil.Unauthorized(w, msgInvalidCredentials)
}

// retryAfter converts a lockout deadline to whole seconds, at least 1.
func retryAfter(lockedUntil *time.Time) int {
	if lockedUntil == nil {
		return 0
	}
	secs := int(math.Ceil(time.Until(*lockedUntil).Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// logout handles POST /api/auth/logout.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if u, ok := auth.CurrentUser(r); ok {
		h.audit.Logout(r.Context(), r, u.ID)
	}
	h.sessionMgr.DestroySession(w, r)
	jsonutil.Message(w, "Logged out successfully")
}
