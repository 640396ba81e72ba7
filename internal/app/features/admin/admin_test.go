package admin

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/stratasheet/internal/app/features/errors"
	datasetstore "github.com/dalemusser/stratasheet/internal/app/store/datasets"
	userstore "github.com/dalemusser/stratasheet/internal/app/store/users"
	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"github.com/dalemusser/stratasheet/internal/testutil"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type fakeBlobs struct {
	mu    sync.Mutex
	paths []string
}

func (f *fakeBlobs) RemoveBlobs(_ context.Context, _ primitive.ObjectID, paths []string, _ string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, paths...)
	return 0
}

func newHandler(db *mongo.Database) (*Handler, *fakeBlobs) {
	blobs := &fakeBlobs{}
	return NewHandler(db, blobs, nil, errorsfeature.NewErrorLogger(zap.NewNop(), false), zap.NewNop()), blobs
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func TestData_JoinsOwners(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(db)
	admin := testutil.InsertUser(t, db, "root", "password123", models.RoleAdmin)
	alice := testutil.InsertUser(t, db, "alice", "password123", models.RoleMember)
	testutil.InsertDataset(t, db, alice.ID, "alice data", time.Now())
	testutil.InsertDataset(t, db, primitive.NewObjectID(), "abandoned", time.Now())

	rec := testutil.NewRecorder()
	h.data(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/data", testutil.FromModel(admin)))

	rec.AssertStatus(t, http.StatusOK)
	var body Overview
	rec.DecodeJSON(t, &body)
	if body.TotalUsers != 2 || body.TotalFiles != 2 {
		t.Fatalf("totals = %d users, %d files, want 2, 2", body.TotalUsers, body.TotalFiles)
	}
	owners := map[string]*Uploader{}
	for _, f := range body.Files {
		owners[f.Title] = f.UploadedBy
	}
	if u := owners["alice data"]; u == nil || u.Username != "alice" || u.ID != alice.ID.Hex() {
		t.Errorf("alice data uploadedBy = %+v, want alice", u)
	}
	if u := owners["abandoned"]; u != nil {
		t.Errorf("abandoned uploadedBy = %+v, want nil", u)
	}
}

func TestRoutes_RequireAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(db)
	sm, err := auth.NewSessionManager(auth.SessionConfig{Key: "admin-test-session-key-32-chars!!", MaxAge: time.Hour}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewSessionManager() error = %v", err)
	}
	router := Routes(h, sm)

	rec := testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/data", testutil.MemberUser()))
	rec.AssertStatus(t, http.StatusForbidden)

	rec = testutil.NewRecorder()
	router.ServeHTTP(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/data", testutil.AdminUser()))
	rec.AssertStatus(t, http.StatusOK)
}

func TestDeleteFile(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, blobs := newHandler(db)
	owner := testutil.InsertUser(t, db, "owner", "password123", models.RoleMember)
	d := testutil.InsertDataset(t, db, owner.ID, "theirs", time.Now())

	req := withID(testutil.NewAuthenticatedRequest(http.MethodDelete, "/delete-file/"+d.ID.Hex(), testutil.AdminUser()), d.ID.Hex())
	rec := testutil.NewRecorder()
	h.deleteFile(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	if len(blobs.paths) != 1 || blobs.paths[0] != d.StoragePath {
		t.Errorf("removed blobs = %v, want [%s]", blobs.paths, d.StoragePath)
	}

	req = withID(testutil.NewAuthenticatedRequest(http.MethodDelete, "/delete-file/"+d.ID.Hex(), testutil.AdminUser()), d.ID.Hex())
	rec = testutil.NewRecorder()
	h.deleteFile(rec, req)
	rec.AssertStatus(t, http.StatusNotFound)
}

func TestDeleteUser_Cascades(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, blobs := newHandler(db)
	admin := testutil.InsertUser(t, db, "root", "password123", models.RoleAdmin)
	target := testutil.InsertUser(t, db, "target", "password123", models.RoleMember)
	d1 := testutil.InsertDataset(t, db, target.ID, "one", time.Now())
	d2 := testutil.InsertDataset(t, db, target.ID, "two", time.Now())
	kept := testutil.InsertDataset(t, db, admin.ID, "kept", time.Now())

	req := withID(testutil.NewAuthenticatedRequest(http.MethodDelete, "/delete-user/"+target.ID.Hex(), testutil.FromModel(admin)), target.ID.Hex())
	rec := testutil.NewRecorder()
	h.deleteUser(rec, req)

	rec.AssertStatus(t, http.StatusOK)

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := userstore.New(db).GetByID(ctx, target.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("GetByID(target) error = %v, want ErrNoDocuments", err)
	}
	ds := datasetstore.New(db)
	for _, d := range []models.Dataset{d1, d2} {
		if _, err := ds.GetByID(ctx, d.ID); !errors.Is(err, mongo.ErrNoDocuments) {
			t.Errorf("dataset %q still present: %v", d.Title, err)
		}
	}
	if _, err := ds.GetByID(ctx, kept.ID); err != nil {
		t.Errorf("unrelated dataset removed: %v", err)
	}
	if len(blobs.paths) != 2 {
		t.Errorf("removed blobs = %d, want 2", len(blobs.paths))
	}
}

func TestDeleteUser_Refusals(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(db)
	admin := testutil.InsertUser(t, db, "root", "password123", models.RoleAdmin)

	tests := []struct {
		name   string
		actor  testutil.TestUser
		id     string
		status int
	}{
		{"self", testutil.FromModel(admin), admin.ID.Hex(), http.StatusBadRequest},
		// the actor here is a session-only admin, so root is the last stored one
		{"last admin", testutil.AdminUser(), admin.ID.Hex(), http.StatusBadRequest},
		{"unknown user", testutil.FromModel(admin), primitive.NewObjectID().Hex(), http.StatusNotFound},
		{"malformed id", testutil.FromModel(admin), "nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withID(testutil.NewAuthenticatedRequest(http.MethodDelete, "/delete-user/"+tt.id, tt.actor), tt.id)
			rec := testutil.NewRecorder()
			h.deleteUser(rec, req)
			rec.AssertStatus(t, tt.status)
		})
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := userstore.New(db).GetByID(ctx, admin.ID); err != nil {
		t.Errorf("admin was deleted: %v", err)
	}
}

func TestBuildOverview_Empty(t *testing.T) {
	got := buildOverview(nil, nil)
	if got.Users == nil || got.Files == nil {
		t.Error("empty overview should carry empty slices, not nil")
	}
	if got.TotalUsers != 0 || got.TotalFiles != 0 {
		t.Errorf("totals = %d, %d, want 0, 0", got.TotalUsers, got.TotalFiles)
	}
}
