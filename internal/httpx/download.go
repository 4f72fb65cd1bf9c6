package httpx

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// handleDownload implements GET /api/download/{linkID}: the byte-streaming
// access surface for file content. It runs the same gate-and-claim policy as
// a view; on the terminal access the blob is removed once the stream closes.
// The password travels in a query parameter because downloads must be
// expressible as a plain link.
func (h *Handler) handleDownload(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "linkID")
	secret := r.URL.Query().Get("password")

	meta, rc, err := h.Service.Download(r.Context(), linkID, secret, accessMeta(r))
	countAccess(err)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	defer rc.Close()

	ct := meta.MimeType
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": meta.Name}))
	w.WriteHeader(http.StatusOK)
	_, _ = io.CopyN(w, rc, meta.Size)
}
