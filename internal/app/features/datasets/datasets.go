// internal/app/features/datasets/datasets.go
// Package datasets serves spreadsheet uploads and the signed-in user's
// stored datasets.
package datasets

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	errorsfeature "github.com/dalemusser/stratasheet/internal/app/features/errors"
	datasetstore "github.com/dalemusser/stratasheet/internal/app/store/datasets"
	"github.com/dalemusser/stratasheet/internal/app/system/auditlog"
	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/app/system/authz"
	"github.com/dalemusser/stratasheet/internal/app/system/datasum"
	"github.com/dalemusser/stratasheet/internal/app/system/ingest"
	"github.com/dalemusser/stratasheet/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes caps an uploaded spreadsheet when none is configured.
const DefaultMaxUploadBytes int64 = 10 << 20

// Ingester runs uploads and removes the blobs of deleted datasets.
// *ingest.Service satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, req ingest.Request) (*ingest.Result, error)
	RemoveBlobs(ctx context.Context, owner primitive.ObjectID, paths []string, reason string) int
}

// Blobs reads stored uploads back for download.
type Blobs interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

// Handler provides the /api/files endpoints.
type Handler struct {
	datasets *datasetstore.Store
	ingester Ingester
	blobs    Blobs
	maxBytes int64
	audit    *auditlog.Logger
	errLog   *errorsfeature.ErrorLogger
	logger   *zap.Logger
}

// NewHandler creates a datasets Handler. maxBytes <= 0 selects
// DefaultMaxUploadBytes.
func NewHandler(
	db *mongo.Database,
	ingester Ingester,
	blobs Blobs,
	maxBytes int64,
	audit *auditlog.Logger,
	errLog *errorsfeature.ErrorLogger,
	logger *zap.Logger,
) *Handler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Handler{
		datasets: datasetstore.New(db),
		ingester: ingester,
		blobs:    blobs,
		maxBytes: maxBytes,
		audit:    audit,
		errLog:   errLog,
		logger:   logger,
	}
}

// Routes returns a chi.Router with dataset routes mounted. Every route
// requires a signed-in user.
//
// When mounted at /api/files:
//   - POST   /upload          upload and ingest a spreadsheet
//   - GET    /                the caller's datasets, newest first
//   - GET    /{id}            one dataset (owner or admin)
//   - GET    /{id}/download   the original upload
//   - DELETE /delete/{id}     delete a dataset and its file
func Routes(h *Handler, sm *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sm.RequireSignedIn)

	r.Post("/upload", h.upload)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Get("/{id}/download", h.download)
	r.Delete("/delete/{id}", h.delete)

	return r
}

// View is the public shape of a stored dataset.
type View struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	OriginalName string          `json:"originalName"`
	Format       string          `json:"format"`
	URL          string          `json:"url"`
	Size         int64           `json:"size"`
	SheetNames   []string        `json:"sheetNames"`
	Summary      datasum.Summary `json:"summary"`
	GraphData    *datasum.Series `json:"graphData"`
	UploadedBy   string          `json:"uploadedBy"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// NewView converts a stored dataset to its public shape.
func NewView(d models.Dataset) View {
	sheets := d.SheetNames
	if sheets == nil {
		sheets = []string{}
	}
	return View{
		ID:           d.ID.Hex(),
		Title:        d.Title,
		OriginalName: d.OriginalName,
		Format:       d.Format,
		URL:          d.URL,
		Size:         d.Size,
		SheetNames:   sheets,
		Summary:      datasum.SummaryFromModel(d.Summary),
		GraphData:    datasum.SeriesFromModel(d.GraphData),
		UploadedBy:   d.UploadedBy.Hex(),
		CreatedAt:    d.CreatedAt,
	}
}

// list handles GET /api/files. Optional ?limit and ?page page the result;
// ?sort=title orders by title instead of newest first.
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	su, _ := auth.CurrentUser(r)

	limit, _ := strconv.ParseInt(r.URL.Query().Get("limit"), 10, 64)
	page, _ := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
	if limit < 0 {
		limit = 0
	}

	list, err := h.listFor(r, su.UserID(), limit, page)
	if err != nil {
		h.errLog.Internal(w, r, "failed to list datasets", err)
		return
	}
	views := make([]View, 0, len(list))
	for _, d := range list {
		views = append(views, NewView(d))
	}
	jsonutil.OK(w, views)
}

func (h *Handler) listFor(r *http.Request, owner primitive.ObjectID, limit, page int64) ([]models.Dataset, error) {
	if r.URL.Query().Get("sort") == "title" {
		return h.datasets.ListByOwnerByTitle(r.Context(), owner, limit, page)
	}
	return h.datasets.ListByOwner(r.Context(), owner, limit, page)
}

// get handles GET /api/files/{id}.
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	jsonutil.OK(w, NewView(*d))
}

// delete handles DELETE /api/files/delete/{id}.
//
// The record goes first so a failed blob delete never leaves a dataset
// pointing at nothing; the blob then becomes an orphan instead.
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}
	ctx := r.Context()

	deleted, err := h.datasets.Delete(ctx, d.ID)
	if err != nil {
		h.errLog.Internal(w, r, "failed to delete dataset", err, zap.String("dataset_id", d.ID.Hex()))
		return
	}
	if !deleted {
		jsonutil.NotFound(w, "File not found")
		return
	}

	h.ingester.RemoveBlobs(ctx, d.UploadedBy, []string{d.StoragePath}, "dataset deleted")

	su, _ := auth.CurrentUser(r)
	if actor := su.UserID(); actor != d.UploadedBy {
		h.audit.DatasetRemovedByAdmin(ctx, r, actor, d.UploadedBy, d.ID, d.Title)
	} else {
		h.audit.DatasetDeleted(ctx, r, actor, d.ID, d.Title)
	}

	jsonutil.OK(w, map[string]any{"success": true, "message": "File deleted"})
}

// load fetches the {id} dataset and checks the caller may see it. It
// writes the error response and returns false otherwise.
func (h *Handler) load(w http.ResponseWriter, r *http.Request) (*models.Dataset, bool) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "id"))
	if err != nil {
		jsonutil.NotFound(w, "File not found")
		return nil, false
	}

	d, err := h.datasets.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			jsonutil.NotFound(w, "File not found")
			return nil, false
		}
		h.errLog.Internal(w, r, "failed to load dataset", err, zap.String("dataset_id", id.Hex()))
		return nil, false
	}

	if !authz.CanAccess(r, d.UploadedBy) {
		jsonutil.Forbidden(w, "Not authorized")
		return nil, false
	}
	return d, true
}
