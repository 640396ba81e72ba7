// internal/app/features/admin/admin.go
// Package admin serves the administrator overview of users and datasets
// and the destructive admin actions on them.
package admin

// Terminology: User Identifiers
//   - UserID / userID / user_id: The MongoDB ObjectID (_id) that uniquely identifies a user record
//   - LoginID / loginID / login_id: The username people type to sign in

import (
	"context"
	"net/http"
	"time"

	errorsfeature "github.com/dalemusser/stratasheet/internal/app/features/errors"
	datasetstore "github.com/dalemusser/stratasheet/internal/app/store/datasets"
	userstore "github.com/dalemusser/stratasheet/internal/app/store/users"
	"github.com/dalemusser/stratasheet/internal/app/system/auditlog"
	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BlobRemover deletes the stored files of removed datasets.
type BlobRemover interface {
	RemoveBlobs(ctx context.Context, owner primitive.ObjectID, paths []string, reason string) int
}

// Handler provides the /api/admin endpoints.
type Handler struct {
	db       *mongo.Database
	users    *userstore.Store
	datasets *datasetstore.Store
	blobs    BlobRemover
	audit    *auditlog.Logger
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

// NewHandler creates a new admin Handler.
func NewHandler(
	db *mongo.Database,
	blobs BlobRemover,
	audit *auditlog.Logger,
	errLog *errorsfeature.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		db:       db,
		users:    userstore.New(db),
		datasets: datasetstore.New(db),
		blobs:    blobs,
		audit:    audit,
		errLog:   errLog,
		logger:   logger,
	}
}

// Routes returns a chi.Router with admin routes mounted. Every route
// requires the admin role.
//
// When mounted at /api/admin:
//   - GET    /data              every user and dataset
//   - DELETE /delete-file/{id}  delete any dataset
//   - DELETE /delete-user/{id}  delete a user and their datasets
func Routes(h *Handler, sm *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sm.RequireRole(models.RoleAdmin))

	r.Get("/data", h.data)
	r.Delete("/delete-file/{id}", h.deleteFile)
	r.Delete("/delete-user/{id}", h.deleteUser)

	return r
}

// ExternalRoutes exposes the read-only overview to machine clients. The
// caller applies API key auth and CORS.
//
// When mounted at /api/external/admin:
//   - GET /data  every user and dataset
func ExternalRoutes(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Get("/data", h.data)
	return r
}

// UserRow is one user in the overview.
type UserRow struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Uploader names a dataset's owner.
type Uploader struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// FileRow is one dataset in the overview.
type FileRow struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Format     string    `json:"format"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"createdAt"`
	UploadedBy *Uploader `json:"uploadedBy"`
}

// Overview is the body of GET /data.
type Overview struct {
	Success    bool      `json:"success"`
	Users      []UserRow `json:"users"`
	Files      []FileRow `json:"files"`
	TotalUsers int       `json:"totalUsers"`
	TotalFiles int       `json:"totalFiles"`
}

// data handles GET /api/admin/data.
func (h *Handler) data(w http.ResponseWriter, r *http.Request) {
	var (
		users []models.User
		sets  []models.Dataset
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		users, err = h.users.ListAll(ctx)
		return err
	})
	g.Go(func() error {
		var err error
		sets, err = h.datasets.ListAll(ctx)
		return err
	})
	if err := g.Wait(); err != nil {
		h.errLog.Internal(w, r, "failed to load admin data", err)
		return
	}

	jsonutil.OK(w, buildOverview(users, sets))
}

// buildOverview joins datasets to their owners. A dataset whose owner no
// longer exists has a nil uploadedBy.
func buildOverview(users []models.User, sets []models.Dataset) Overview {
	byID := make(map[primitive.ObjectID]*Uploader, len(users))
	out := Overview{
		Success: true,
		Users:   make([]UserRow, 0, len(users)),
		Files:   make([]FileRow, 0, len(sets)),
	}
	for _, u := range users {
		out.Users = append(out.Users, UserRow{
			ID:        u.ID.Hex(),
			Username:  u.LoginID,
			Role:      u.Role,
			CreatedAt: u.CreatedAt,
		})
		byID[u.ID] = &Uploader{ID: u.ID.Hex(), Username: u.LoginID}
	}
	for _, d := range sets {
		out.Files = append(out.Files, FileRow{
			ID:         d.ID.Hex(),
			Title:      d.Title,
			Format:     d.Format,
			Size:       d.Size,
			CreatedAt:  d.CreatedAt,
			UploadedBy: byID[d.UploadedBy],
		})
	}
	out.TotalUsers = len(out.Users)
	out.TotalFiles = len(out.Files)
	return out
}
