// internal/app/features/account/profile.go
package account

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasheet/internal/app/system/txn"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// me handles GET /api/auth/me.
func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	su, _ := auth.CurrentUser(r)
	ctx := r.Context()

	user, err := h.users.GetByID(ctx, su.UserID())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			jsonutil.NotFound(w, "User not found")
			return
		}
		h.errLog.Internal(w, r, "failed to load user", err)
		return
	}
	history, err := h.datasets.HistoryTitles(ctx, user.ID)
	if err != nil {
		h.errLog.Internal(w, r, "failed to load upload history", err)
		return
	}
	jsonutil.OK(w, newUserView(user, history))
}

// history handles GET /api/auth/history.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	su, _ := auth.CurrentUser(r)

	list, err := h.datasets.ListByOwner(r.Context(), su.UserID(), 0, 0)
	if err != nil {
		h.errLog.Internal(w, r, "failed to list datasets", err)
		return
	}
	if list == nil {
		list = []models.Dataset{}
	}
	jsonutil.OK(w, list)
}

// deleteAccount handles DELETE /api/auth/delete.
//
// The user and dataset records go in one transaction. Blobs are removed
// after it commits; any that cannot be removed become orphans.
func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	su, _ := auth.CurrentUser(r)
	ctx := r.Context()
	userID := su.UserID()

	if su.IsAdmin() {
		admins, err := h.users.CountActiveAdmins(ctx)
		if err != nil {
			h.errLog.Internal(w, r, "failed to count admins", err)
			return
		}
		if admins <= 1 {
			jsonutil.BadRequest(w, "Cannot delete the last admin account")
			return
		}
	}

	var (
		paths   []string
		removed int64
	)
	err := txn.Run(ctx, h.db, h.logger, func(ctx context.Context) error {
		p, n, err := h.datasets.DeleteByOwner(ctx, userID)
		if err != nil {
			return err
		}
		paths, removed = p, n
		_, err = h.users.Delete(ctx, userID)
		return err
	})
	if err != nil {
		h.errLog.Internal(w, r, "failed to delete account", err, zap.String("user_id", su.ID))
		return
	}

	if n := h.blobs.RemoveBlobs(ctx, userID, paths, "account deleted"); n > 0 {
		h.logger.Warn("account deleted with orphaned files",
			zap.String("user_id", su.ID),
			zap.Int("orphaned", n))
	}

	h.audit.AccountDeleted(ctx, r, userID, removed)
	h.sessionMgr.DestroySession(w, r)
	jsonutil.Message(w, "Account deleted successfully")
}
