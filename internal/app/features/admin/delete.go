// internal/app/features/admin/delete.go
package admin

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasheet/internal/app/system/status"
	"github.com/dalemusser/stratasheet/internal/app/system/txn"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// deleteFile handles DELETE /api/admin/delete-file/{id}.
func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.NotFound(w, "File not found")
		return
	}
	ctx := r.Context()

	d, err := h.datasets.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			jsonutil.NotFound(w, "File not found")
			return
		}
		h.errLog.Internal(w, r, "failed to load dataset", err, zap.String("dataset_id", id.Hex()))
		return
	}

	deleted, err := h.datasets.Delete(ctx, id)
	if err != nil {
		h.errLog.Internal(w, r, "failed to delete dataset", err, zap.String("dataset_id", id.Hex()))
		return
	}
	if !deleted {
		jsonutil.NotFound(w, "File not found")
		return
	}
	h.blobs.RemoveBlobs(ctx, d.UploadedBy, []string{d.StoragePath}, "dataset removed by admin")

	su, _ := auth.CurrentUser(r)
	h.audit.DatasetRemovedByAdmin(ctx, r, su.UserID(), d.UploadedBy, d.ID, d.Title)

	jsonutil.OK(w, map[string]any{"success": true, "message": "File deleted"})
}

// deleteUser handles DELETE /api/admin/delete-user/{id}.
//
// The user and their dataset records go in one transaction. Admins cannot
// delete themselves here, and the last active admin cannot be deleted.
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	userID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.NotFound(w, "User not found")
		return
	}
	ctx := r.Context()
	su, _ := auth.CurrentUser(r)
	actorID := su.UserID()

	if userID == actorID {
		jsonutil.BadRequest(w, "Use account deletion to delete your own account")
		return
	}

	target, err := h.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			jsonutil.NotFound(w, "User not found")
			return
		}
		h.errLog.Internal(w, r, "failed to load user", err, zap.String("user_id", userID.Hex()))
		return
	}

	if target.Role == models.RoleAdmin && target.Status == status.Active {
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
	err = txn.Run(ctx, h.db, h.logger, func(ctx context.Context) error {
		p, n, err := h.datasets.DeleteByOwner(ctx, userID)
		if err != nil {
			return err
		}
		paths, removed = p, n
		_, err = h.users.Delete(ctx, userID)
		return err
	})
	if err != nil {
		h.errLog.Internal(w, r, "failed to delete user", err, zap.String("user_id", userID.Hex()))
		return
	}

	if n := h.blobs.RemoveBlobs(ctx, userID, paths, "user deleted by admin"); n > 0 {
		h.logger.Warn("user deleted with orphaned files",
			zap.String("user_id", userID.Hex()),
			zap.Int("orphaned", n))
	}

	h.audit.UserDeleted(ctx, r, actorID, userID, target.LoginID, removed)

	jsonutil.OK(w, map[string]any{
		"success":         true,
		"message":         "User deleted",
		"deletedDatasets": removed,
	})
}
