// internal/app/features/datasets/upload.go
package datasets

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/dalemusser/stratasheet/internal/app/system/auth"
	"github.com/dalemusser/stratasheet/internal/app/system/datasum"
	"github.com/dalemusser/stratasheet/internal/app/system/ingest"
	"github.com/dalemusser/stratasheet/internal/app/system/jsonutil"
	"github.com/dalemusser/stratasheet/internal/app/system/tabular"
	"go.uber.org/zap"
)

// FileField is the multipart field carrying the spreadsheet.
const FileField = "excelFile"

// multipartOverhead is allowed on top of the file limit for boundaries and
// the other form fields.
const multipartOverhead = 1 << 20

// multipartMemory is how much of a form is held in memory before spilling
// to temporary files.
const multipartMemory = 4 << 20

const msgFileType = "Only Excel/CSV files are allowed"

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    *ingest.Result `json:"data"`
}

// upload handles POST /api/files/upload.
func (h *Handler) upload(w http.ResponseWriter, r *http.Request) {
	su, _ := auth.CurrentUser(r)
	ctx := r.Context()

	tooLarge := fmt.Sprintf("File too large (max %d MB)", h.maxBytes>>20)
	if r.ContentLength > h.maxBytes+multipartOverhead {
		jsonutil.TooLarge(w, tooLarge)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			jsonutil.TooLarge(w, tooLarge)
			return
		}
		jsonutil.BadRequest(w, "Invalid upload form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(FileField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			jsonutil.BadRequest(w, "No file uploaded")
			return
		}
		jsonutil.BadRequest(w, "Invalid upload form")
		return
	}
	defer file.Close()

	if header.Size > h.maxBytes {
		jsonutil.TooLarge(w, tooLarge)
		return
	}

	format, ok := tabular.FormatFromFilename(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if !ok || !format.AcceptsContentType(contentType) {
		jsonutil.BadRequest(w, msgFileType)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.errLog.Internal(w, r, "failed to read upload", err)
		return
	}

	declared, _ := strconv.ParseInt(strings.TrimSpace(r.FormValue("fileSize")), 10, 64)

	res, err := h.ingester.Ingest(ctx, ingest.Request{
		OwnerID:      su.UserID(),
		Title:        r.FormValue("title"),
		Filename:     header.Filename,
		ContentType:  contentType,
		Format:       format,
		Data:         data,
		DeclaredSize: declared,
		Mapping:      mappingFromForm(r),
	})
	if err != nil {
		h.ingestError(w, r, err)
		return
	}

	h.audit.DatasetUploaded(ctx, r, su.UserID(), res.Dataset.ID, res.Dataset.Title, res.Metadata.RowCount)

	jsonutil.Created(w, UploadResponse{
		Success: true,
		Message: "File processed successfully",
		Data:    res,
	})
}

// mappingFromForm returns nil when neither axis column is given.
func mappingFromForm(r *http.Request) *datasum.Mapping {
	m := &datasum.Mapping{
		XAxisColumn: strings.TrimSpace(r.FormValue("xAxisColumn")),
		YAxisColumn: strings.TrimSpace(r.FormValue("yAxisColumn")),
	}
	if m.IsZero() {
		return nil
	}
	return m
}

// ingestError maps an ingestion failure to a response.
func (h *Handler) ingestError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ingest.ValidationError
	if errors.As(err, &ve) {
		jsonutil.BadRequest(w, ve.Message)
		return
	}

	var pe *tabular.ParseError
	if errors.As(err, &pe) {
		msg := pe.Reason
		if msg == "" {
			msg = pe.Error()
		}
		jsonutil.BadRequest(w, "Error processing file: "+msg)
		return
	}

	var proc *ingest.ProcessingError
	if errors.As(err, &proc) {
		h.errLog.Internal(w, r, "Error processing file", err, zap.String("stage", proc.Stage))
		return
	}
	h.errLog.Internal(w, r, "Error processing file", err)
}
