// internal/app/features/datasets/download.go
package datasets

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// download handles GET /api/files/{id}/download.
//
// Blobs with an absolute URL (S3, CloudFront) are served by redirect.
// Anything else is streamed from storage as an attachment.
func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	d, ok := h.load(w, r)
	if !ok {
		return
	}

	if isAbsoluteURL(d.URL) {
		http.Redirect(w, r, d.URL, http.StatusFound)
		return
	}

	reader, err := h.blobs.Get(r.Context(), d.StoragePath)
	if err != nil {
		h.errLog.LogWithFields(r, "failed to get file from storage", err, zap.String("storage_path", d.StoragePath))
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	defer reader.Close()

	name := d.OriginalName
	if name == "" {
		name = d.Title + "." + d.Format
	}
	w.Header().Set("Content-Type", d.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))

	if _, err := io.Copy(w, reader); err != nil {
		h.logger.Warn("failed to stream file",
			zap.String("path", d.StoragePath),
			zap.Error(err))
	}
}

func isAbsoluteURL(u string) bool {
	return strings.HasPrefix(u, "https://") || strings.HasPrefix(u, "http://")
}
