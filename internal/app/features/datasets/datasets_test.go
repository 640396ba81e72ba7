package datasets

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	errorsfeature "github.com/dalemusser/stratasheet/internal/app/features/errors"
	datasetstore "github.com/dalemusser/stratasheet/internal/app/store/datasets"
	"github.com/dalemusser/stratasheet/internal/app/store/orphans"
	"github.com/dalemusser/stratasheet/internal/app/system/ingest"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"github.com/dalemusser/stratasheet/internal/testutil"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

var errBlobMissing = errors.New("blob not found")

type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (m *memBlobs) Put(_ context.Context, path string, r io.Reader, _ *storage.PutOptions) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[path] = data
	return nil
}

func (m *memBlobs) Get(_ context.Context, path string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[path]
	if !ok {
		return nil, errBlobMissing
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memBlobs) Delete(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, path)
	return nil
}

func (m *memBlobs) URL(path string) string { return "/files/" + path }

func (m *memBlobs) has(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.objects[path]
	return ok
}

func newHandler(t *testing.T, db *mongo.Database, maxBytes int64) (*Handler, *memBlobs) {
	t.Helper()
	blobs := newMemBlobs()
	svc := ingest.NewService(datasetstore.New(db), blobs, orphans.New(db), nil, 0, zap.NewNop())
	h := NewHandler(db, svc, blobs, maxBytes, nil, errorsfeature.NewErrorLogger(zap.NewNop(), false), zap.NewNop())
	return h, blobs
}

type upload struct {
	filename    string
	contentType string
	content     string
	fields      map[string]string
}

func newUploadRequest(t *testing.T, u upload) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range u.fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("WriteField(%q) error = %v", k, err)
		}
	}
	if u.filename != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="`+FileField+`"; filename="`+u.filename+`"`)
		hdr.Set("Content-Type", u.contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("CreatePart() error = %v", err)
		}
		if _, err := part.Write([]byte(u.content)); err != nil {
			t.Fatalf("part.Write() error = %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("multipart Close() error = %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func withID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

const salesCSV = "month,sales,units\nJan,10,1\nFeb,20,2\nMar,30,3\n"

type uploadBody struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    struct {
		DownloadURL string `json:"downloadUrl"`
		Summary     struct {
			TotalRows      int `json:"totalRows"`
			NumericColumns map[string]struct {
				Average float64 `json:"average"`
				Total   float64 `json:"total"`
			} `json:"numericColumns"`
			ColumnNames []string `json:"columnNames"`
		} `json:"summary"`
		GraphData *struct {
			Labels   []any `json:"labels"`
			Datasets []struct {
				Label string    `json:"label"`
				Data  []float64 `json:"data"`
			} `json:"datasets"`
		} `json:"graphData"`
		Metadata struct {
			Headers    []string `json:"headers"`
			RowCount   int      `json:"rowCount"`
			SheetNames []string `json:"sheetNames"`
		} `json:"metadata"`
	} `json:"data"`
}

func TestUpload_CSV(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, blobs := newHandler(t, db, 0)
	member := testutil.MemberUser()

	req := newUploadRequest(t, upload{
		filename:    "sales.csv",
		contentType: "text/csv",
		content:     salesCSV,
		fields:      map[string]string{"title": "Q1 Sales", "fileSize": "48", "yAxisColumn": "units", "xAxisColumn": "month"},
	})
	rec := testutil.NewRecorder()
	h.upload(rec, testutil.WithUser(req, member))

	rec.AssertStatus(t, http.StatusCreated)

	var body uploadBody
	rec.DecodeJSON(t, &body)
	if !body.Success || body.Message != "File processed successfully" {
		t.Errorf("envelope = %v/%q, want true/%q", body.Success, body.Message, "File processed successfully")
	}
	if body.Data.Metadata.RowCount != 3 {
		t.Errorf("rowCount = %d, want 3", body.Data.Metadata.RowCount)
	}
	if got := body.Data.Metadata.SheetNames; len(got) != 1 || got[0] != "Sheet1" {
		t.Errorf("sheetNames = %v, want [Sheet1]", got)
	}
	if got := body.Data.Summary.NumericColumns["sales"].Total; got != 60 {
		t.Errorf("sales total = %v, want 60", got)
	}
	if body.Data.GraphData == nil || len(body.Data.GraphData.Datasets) != 1 || body.Data.GraphData.Datasets[0].Label != "units" {
		t.Fatalf("graphData = %+v, want one units dataset", body.Data.GraphData)
	}
	if !strings.HasPrefix(body.Data.DownloadURL, "/files/datasets/") {
		t.Errorf("downloadUrl = %q, want /files/datasets/ prefix", body.Data.DownloadURL)
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	owner, _ := primitive.ObjectIDFromHex(member.ID)
	list, err := datasetstore.New(db).ListByOwner(ctx, owner, 0, 0)
	if err != nil {
		t.Fatalf("ListByOwner() error = %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("stored datasets = %d, want 1", len(list))
	}
	d := list[0]
	if d.Title != "Q1 Sales" || d.Size != 48 || d.OriginalName != "sales.csv" {
		t.Errorf("stored = %q/%d/%q, want Q1 Sales/48/sales.csv", d.Title, d.Size, d.OriginalName)
	}
	if !blobs.has(d.StoragePath) {
		t.Errorf("blob %q was not stored", d.StoragePath)
	}
}

func TestUpload_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		upload   upload
		maxBytes int64
		status   int
		contains string
	}{
		{
			name:     "wrong extension",
			upload:   upload{filename: "notes.txt", contentType: "text/plain", content: salesCSV, fields: map[string]string{"title": "t"}},
			status:   http.StatusBadRequest,
			contains: msgFileType,
		},
		{
			name:     "wrong content type",
			upload:   upload{filename: "sales.xlsx", contentType: "image/png", content: salesCSV, fields: map[string]string{"title": "t"}},
			status:   http.StatusBadRequest,
			contains: msgFileType,
		},
		{
			name:     "missing file",
			upload:   upload{fields: map[string]string{"title": "t"}},
			status:   http.StatusBadRequest,
			contains: "No file uploaded",
		},
		{
			name:     "missing title",
			upload:   upload{filename: "sales.csv", contentType: "text/csv", content: salesCSV},
			status:   http.StatusBadRequest,
			contains: "title is required",
		},
		{
			name:     "header only",
			upload:   upload{filename: "empty.csv", contentType: "text/csv", content: "a,b\n", fields: map[string]string{"title": "t"}},
			status:   http.StatusBadRequest,
			contains: "Error processing file",
		},
		{
			name:     "unknown axis column",
			upload:   upload{filename: "sales.csv", contentType: "text/csv", content: salesCSV, fields: map[string]string{"title": "t", "xAxisColumn": "week"}},
			status:   http.StatusBadRequest,
			contains: "week",
		},
		{
			name:     "too large",
			upload:   upload{filename: "sales.csv", contentType: "text/csv", content: salesCSV, fields: map[string]string{"title": "t"}},
			maxBytes: 16,
			status:   http.StatusRequestEntityTooLarge,
			contains: "File too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			h, blobs := newHandler(t, db, tt.maxBytes)

			rec := testutil.NewRecorder()
			h.upload(rec, testutil.WithUser(newUploadRequest(t, tt.upload), testutil.MemberUser()))

			rec.AssertStatus(t, tt.status)
			rec.AssertContains(t, tt.contains)
			if n := len(blobs.objects); n != 0 {
				t.Errorf("stored blobs = %d, want 0", n)
			}
		})
	}
}

func TestUpload_DuplicateTitle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(t, db, 0)
	member := testutil.MemberUser()

	for i, want := range []int{http.StatusCreated, http.StatusBadRequest} {
		req := newUploadRequest(t, upload{
			filename:    "sales.csv",
			contentType: "text/csv",
			content:     salesCSV,
			fields:      map[string]string{"title": "Same"},
		})
		rec := testutil.NewRecorder()
		h.upload(rec, testutil.WithUser(req, member))
		if rec.Code != want {
			t.Errorf("upload %d: status = %d, want %d (body: %s)", i+1, rec.Code, want, rec.Body.String())
		}
	}
}

func TestList_OwnDatasetsNewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(t, db, 0)
	owner := testutil.InsertUser(t, db, "owner", "password123", models.RoleMember)
	other := testutil.InsertUser(t, db, "other", "password123", models.RoleMember)

	base := time.Now().Add(-time.Hour)
	testutil.InsertDataset(t, db, owner.ID, "older", base)
	testutil.InsertDataset(t, db, owner.ID, "newer", base.Add(time.Minute))
	testutil.InsertDataset(t, db, other.ID, "theirs", base)

	rec := testutil.NewRecorder()
	h.list(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/", testutil.FromModel(owner)))

	rec.AssertStatus(t, http.StatusOK)
	var views []View
	rec.DecodeJSON(t, &views)
	if len(views) != 2 {
		t.Fatalf("datasets = %d, want 2", len(views))
	}
	if views[0].Title != "newer" || views[1].Title != "older" {
		t.Errorf("order = %q, %q, want newer, older", views[0].Title, views[1].Title)
	}
}

func TestList_SortByTitle(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(t, db, 0)
	owner := testutil.InsertUser(t, db, "owner", "password123", models.RoleMember)

	base := time.Now().Add(-time.Hour)
	testutil.InsertDataset(t, db, owner.ID, "zeta", base)
	testutil.InsertDataset(t, db, owner.ID, "Alpha", base.Add(time.Minute))
	testutil.InsertDataset(t, db, owner.ID, "mid", base.Add(2*time.Minute))

	rec := testutil.NewRecorder()
	h.list(rec, testutil.NewAuthenticatedRequest(http.MethodGet, "/?sort=title", testutil.FromModel(owner)))

	rec.AssertStatus(t, http.StatusOK)
	var views []View
	rec.DecodeJSON(t, &views)
	if len(views) != 3 || views[0].Title != "Alpha" || views[1].Title != "mid" || views[2].Title != "zeta" {
		t.Errorf("titles = %v, want [Alpha mid zeta]", views)
	}
}

func TestGet_Access(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(t, db, 0)
	owner := testutil.InsertUser(t, db, "owner", "password123", models.RoleMember)
	d := testutil.InsertDataset(t, db, owner.ID, "mine", time.Now())

	tests := []struct {
		name   string
		user   testutil.TestUser
		id     string
		status int
	}{
		{"owner", testutil.FromModel(owner), d.ID.Hex(), http.StatusOK},
		{"admin", testutil.AdminUser(), d.ID.Hex(), http.StatusOK},
		{"other member", testutil.MemberUser(), d.ID.Hex(), http.StatusForbidden},
		{"unknown id", testutil.FromModel(owner), primitive.NewObjectID().Hex(), http.StatusNotFound},
		{"malformed id", testutil.FromModel(owner), "nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := withID(testutil.NewAuthenticatedRequest(http.MethodGet, "/"+tt.id, tt.user), tt.id)
			rec := testutil.NewRecorder()
			h.get(rec, req)
			rec.AssertStatus(t, tt.status)
		})
	}
}

func TestDelete_OwnerRemovesRecordAndBlob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, blobs := newHandler(t, db, 0)
	owner := testutil.InsertUser(t, db, "owner", "password123", models.RoleMember)
	d := testutil.InsertDataset(t, db, owner.ID, "mine", time.Now())
	blobs.objects[d.StoragePath] = []byte("a\n1\n")

	req := withID(testutil.NewAuthenticatedRequest(http.MethodDelete, "/delete/"+d.ID.Hex(), testutil.FromModel(owner)), d.ID.Hex())
	rec := testutil.NewRecorder()
	h.delete(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "File deleted")

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := datasetstore.New(db).GetByID(ctx, d.ID); !errors.Is(err, mongo.ErrNoDocuments) {
		t.Errorf("GetByID() after delete error = %v, want ErrNoDocuments", err)
	}
	if blobs.has(d.StoragePath) {
		t.Error("blob still stored after delete")
	}
}

func TestDelete_Access(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(t, db, 0)
	owner := testutil.InsertUser(t, db, "owner", "password123", models.RoleMember)
	d := testutil.InsertDataset(t, db, owner.ID, "mine", time.Now())

	req := withID(testutil.NewAuthenticatedRequest(http.MethodDelete, "/delete/"+d.ID.Hex(), testutil.MemberUser()), d.ID.Hex())
	rec := testutil.NewRecorder()
	h.delete(rec, req)
	rec.AssertStatus(t, http.StatusForbidden)

	req = withID(testutil.NewAuthenticatedRequest(http.MethodDelete, "/delete/"+d.ID.Hex(), testutil.AdminUser()), d.ID.Hex())
	rec = testutil.NewRecorder()
	h.delete(rec, req)
	rec.AssertStatus(t, http.StatusOK)
}

func TestDownload_StreamsLocalBlob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, blobs := newHandler(t, db, 0)
	owner := testutil.InsertUser(t, db, "owner", "password123", models.RoleMember)
	d := testutil.InsertDataset(t, db, owner.ID, "mine", time.Now())
	blobs.objects[d.StoragePath] = []byte("a\n1\n")

	req := withID(testutil.NewAuthenticatedRequest(http.MethodGet, "/"+d.ID.Hex()+"/download", testutil.FromModel(owner)), d.ID.Hex())
	rec := testutil.NewRecorder()
	h.download(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	if got := rec.Body.String(); got != "a\n1\n" {
		t.Errorf("body = %q, want %q", got, "a\n1\n")
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(cd, "attachment;") {
		t.Errorf("Content-Disposition = %q, want attachment", cd)
	}
}

func TestDownload_RedirectsAbsoluteURL(t *testing.T) {
	db := testutil.SetupTestDB(t)
	h, _ := newHandler(t, db, 0)
	owner := testutil.InsertUser(t, db, "owner", "password123", models.RoleMember)
	d := testutil.InsertDataset(t, db, owner.ID, "mine", time.Now())

	const signed = "https://cdn.example.com/datasets/test.csv"
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := db.Collection("datasets").UpdateByID(ctx, d.ID, map[string]any{"$set": map[string]any{"url": signed}}); err != nil {
		t.Fatalf("UpdateByID() error = %v", err)
	}

	req := withID(testutil.NewAuthenticatedRequest(http.MethodGet, "/"+d.ID.Hex()+"/download", testutil.FromModel(owner)), d.ID.Hex())
	rec := testutil.NewRecorder()
	h.download(rec, req)

	rec.AssertRedirect(t, signed)
}
