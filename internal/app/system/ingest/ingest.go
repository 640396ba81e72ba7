// Package ingest turns an uploaded spreadsheet into a stored dataset:
// parse, summarize, build chart data, store the blob, save the record.
package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
	"unicode/utf8"

	"github.com/dalemusser/stratasheet/internal/app/store/datasets"
	"github.com/dalemusser/stratasheet/internal/app/system/datasum"
	"github.com/dalemusser/stratasheet/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stratasheet/internal/app/system/metrics"
	"github.com/dalemusser/stratasheet/internal/app/system/tabular"
	"github.com/dalemusser/stratasheet/internal/app/system/timeouts"
	"github.com/dalemusser/stratasheet/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// MaxTitleLength bounds dataset titles, in characters.
const MaxTitleLength = 200

// DefaultTimeout bounds a whole ingestion when none is configured.
const DefaultTimeout = 30 * time.Second

// Records is the dataset persistence the service needs.
type Records interface {
	TitleExists(ctx context.Context, owner primitive.ObjectID, title string) (bool, error)
	Create(ctx context.Context, d models.Dataset) (*models.Dataset, error)
}

// Blobs is the subset of storage.Store the service needs.
type Blobs interface {
	Put(ctx context.Context, path string, r io.Reader, opts *storage.PutOptions) error
	Delete(ctx context.Context, path string) error
	URL(path string) string
}

// Orphans records blobs that outlived a failed insert.
type Orphans interface {
	Record(ctx context.Context, storagePath string, owner primitive.ObjectID, reason string) error
}

// Request is one upload.
type Request struct {
	OwnerID      primitive.ObjectID
	Title        string
	Filename     string
	ContentType  string
	Format       tabular.Format // derived from Filename when empty
	Data         []byte
	DeclaredSize int64 // client-reported size; len(Data) is used when <= 0
	Mapping      *datasum.Mapping
}

// Metadata describes the parsed sheet.
type Metadata struct {
	Headers    []string `json:"headers"`
	RowCount   int      `json:"rowCount"`
	SheetNames []string `json:"sheetNames"`
}

// Result is returned for a successful ingestion.
type Result struct {
	Dataset     *models.Dataset `json:"-"`
	DownloadURL string          `json:"downloadUrl"`
	Summary     datasum.Summary `json:"summary"`
	GraphData   *datasum.Series `json:"graphData"`
	Metadata    Metadata        `json:"metadata"`
}

// Service runs ingestions.
type Service struct {
	records Records
	blobs   Blobs
	orphans Orphans
	metrics *metrics.Metrics
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewService wires a Service. orphans and m may be nil.
func NewService(records Records, blobs Blobs, orphans Orphans, m *metrics.Metrics, timeout time.Duration, logger *zap.Logger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		records: records,
		blobs:   blobs,
		orphans: orphans,
		metrics: m,
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Ingest validates, parses, summarizes and persists one upload.
//
// Errors are *ValidationError, *tabular.ParseError or *ProcessingError.
// A record is only written after its blob is stored, and a blob whose
// record could not be written is deleted or recorded as an orphan.
func (s *Service) Ingest(ctx context.Context, req Request) (res *Result, err error) {
	start := s.now()
	format := req.Format
	rows := 0
	defer func() {
		label := string(format)
		if label == "" {
			label = "unknown"
		}
		s.metrics.ObserveIngest(label, outcome(err), time.Since(start), rows)
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	title, err := s.validate(ctx, &req)
	if err != nil {
		return nil, err
	}
	format = req.Format

	tbl, err := tabular.Parse(req.Data, req.Format)
	if err != nil {
		return nil, err
	}
	rows = len(tbl.Rows)

	summary := datasum.Summarize(tbl.Headers, tbl.Rows)
	series, err := datasum.BuildSeries(tbl.Headers, tbl.Rows, req.Mapping)
	if err != nil {
		var me *datasum.MappingError
		if errors.As(err, &me) {
			return nil, &ValidationError{Field: me.Field, Message: me.Error(), Err: err}
		}
		return nil, &ProcessingError{Stage: "summarize", Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &ProcessingError{Stage: "summarize", Err: err}
	}

	path := s.storagePath(req.Format)
	contentType := req.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = req.Format.ContentType()
	}
	if err := s.blobs.Put(ctx, path, bytes.NewReader(req.Data), &storage.PutOptions{ContentType: contentType}); err != nil {
		return nil, &ProcessingError{Stage: "store_blob", Err: err}
	}

	size := req.DeclaredSize
	if size <= 0 {
		size = int64(len(req.Data))
	}
	url := s.blobs.URL(path)

	rec, err := s.records.Create(ctx, models.Dataset{
		Title:        title,
		OriginalName: req.Filename,
		Format:       string(req.Format),
		ContentType:  contentType,
		StoragePath:  path,
		URL:          url,
		Size:         size,
		SheetNames:   tbl.SheetNames,
		Summary:      summary.Model(),
		GraphData:    series.Model(),
		UploadedBy:   req.OwnerID,
	})
	if err != nil {
		s.discardBlob(ctx, path, req.OwnerID, err)
		if errors.Is(err, datasets.ErrDuplicateTitle) {
			return nil, &ValidationError{Field: "title", Message: ErrDuplicateTitle.Error(), Err: ErrDuplicateTitle}
		}
		return nil, &ProcessingError{Stage: "save_record", Err: err}
	}

	s.logger.Info("dataset ingested",
		zap.String("dataset_id", rec.ID.Hex()),
		zap.String("owner_id", req.OwnerID.Hex()),
		zap.String("format", string(req.Format)),
		zap.Int("rows", rows),
		zap.Int("columns", len(tbl.Headers)),
		zap.Int64("size", size))

	return &Result{
		Dataset:     rec,
		DownloadURL: url,
		Summary:     summary,
		GraphData:   series,
		Metadata: Metadata{
			Headers:    tbl.Headers,
			RowCount:   rows,
			SheetNames: tbl.SheetNames,
		},
	}, nil
}

// validate checks the request and returns the cleaned title.
func (s *Service) validate(ctx context.Context, req *Request) (string, error) {
	if len(req.Data) == 0 {
		return "", &ValidationError{Field: "excelFile", Message: "no file uploaded"}
	}
	if req.Format == "" {
		f, ok := tabular.FormatFromFilename(req.Filename)
		if !ok {
			return "", &ValidationError{Field: "excelFile", Message: "only .xlsx, .xls and .csv files are allowed"}
		}
		req.Format = f
	}
	if !req.Format.IsValid() {
		return "", &ValidationError{Field: "excelFile", Message: "only .xlsx, .xls and .csv files are allowed"}
	}

	title := htmlsanitize.PlainText(req.Title)
	if title == "" {
		return "", &ValidationError{Field: "title", Message: "title is required"}
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", &ValidationError{Field: "title", Message: fmt.Sprintf("title must be at most %d characters", MaxTitleLength)}
	}

	exists, err := s.records.TitleExists(ctx, req.OwnerID, title)
	if err != nil {
		return "", &ProcessingError{Stage: "lookup", Err: err}
	}
	if exists {
		return "", &ValidationError{Field: "title", Message: ErrDuplicateTitle.Error(), Err: ErrDuplicateTitle}
	}
	return title, nil
}

// storagePath returns datasets/YYYY/MM/<uuid><ext>.
func (s *Service) storagePath(f tabular.Format) string {
	now := s.now().UTC()
	return fmt.Sprintf("datasets/%04d/%02d/%s%s", now.Year(), int(now.Month()), uuid.NewString(), f.Ext())
}

// discardBlob removes a blob whose record was not written.
func (s *Service) discardBlob(ctx context.Context, path string, owner primitive.ObjectID, cause error) {
	s.removeBlob(ctx, path, owner, "insert failed: "+cause.Error())
}

// RemoveBlobs deletes the blobs of removed dataset records. Blobs that
// cannot be deleted are recorded as orphans for the cleanup job. It returns
// how many were orphaned.
func (s *Service) RemoveBlobs(ctx context.Context, owner primitive.ObjectID, paths []string, reason string) int {
	orphaned := 0
	for _, p := range paths {
		if p == "" {
			continue
		}
		if !s.removeBlob(ctx, p, owner, reason) {
			orphaned++
		}
	}
	return orphaned
}

// removeBlob runs on a fresh deadline so an expired request context does
// not leave the blob behind. It reports whether the blob is gone.
func (s *Service) removeBlob(ctx context.Context, path string, owner primitive.ObjectID, reason string) bool {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeouts.Short())
	defer cancel()

	err := s.blobs.Delete(dctx, path)
	if err == nil {
		return true
	}

	s.metrics.OrphanBlob()
	s.logger.Error("orphaned blob",
		zap.String("storage_path", path),
		zap.String("owner_id", owner.Hex()),
		zap.String("reason", reason),
		zap.Error(err))

	if s.orphans == nil {
		return false
	}
	if rerr := s.orphans.Record(dctx, path, owner, reason); rerr != nil {
		s.logger.Error("failed to record orphaned blob",
			zap.String("storage_path", path),
			zap.Error(rerr))
	}
	return false
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSuccess
	}
	var (
		ve *ValidationError
		pe *tabular.ParseError
	)
	switch {
	case errors.As(err, &ve):
		return metrics.OutcomeValidation
	case errors.As(err, &pe):
		return metrics.OutcomeParse
	default:
		return metrics.OutcomeProcessing
	}
}
