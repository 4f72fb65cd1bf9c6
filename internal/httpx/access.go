package httpx

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skm5786/linkvault/internal/app"
)

// accessRequest carries the optional password for a gated link. POST keeps
// the password out of URLs and proxy logs, and matches the consuming nature
// of the operation: each success spends a view.
type accessRequest struct {
	Password string `json:"password"`
}

// fileMeta describes a file behind a link without its bytes.
type fileMeta struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
}

type accessResponse struct {
	Kind      string    `json:"kind"`
	Text      string    `json:"text,omitempty"`
	File      *fileMeta `json:"file,omitempty"`
	ViewCount int64     `json:"view_count"`
	MaxViews  int64     `json:"max_views,omitempty"`
	OneTime   bool      `json:"one_time"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	// Terminal tells the consumer this was the last view the link will
	// ever serve.
	Terminal bool `json:"terminal"`
}

// handleAccess implements POST /api/content/{linkID}: the primary view
// surface. An empty or absent body means no password was supplied.
func (h *Handler) handleAccess(w http.ResponseWriter, r *http.Request) {
	linkID := chi.URLParam(r, "linkID")
	var req accessRequest
	if r.Body != nil {
		body := http.MaxBytesReader(w, r.Body, 4096)
		defer body.Close()
		if err := json.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
			h.writeError(r.Context(), w, http.StatusBadRequest, "malformed json")
			return
		}
	}
	view, err := h.Service.Access(r.Context(), linkID, req.Password, accessMeta(r))
	countAccess(err)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	resp := accessResponse{
		Kind:      string(view.Kind),
		Text:      view.Text,
		ViewCount: view.ViewCount,
		MaxViews:  view.MaxViews,
		OneTime:   view.OneTime,
		CreatedAt: view.CreatedAt,
		ExpiresAt: view.ExpiresAt,
		Terminal:  view.Terminal,
	}
	if view.File != nil {
		resp.File = &fileMeta{Name: view.File.Name, Size: view.File.Size, MimeType: view.File.MimeType}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// accessMeta collects the observational request attributes for the access log.
func accessMeta(r *http.Request) app.AccessMeta {
	return app.AccessMeta{RemoteAddr: r.RemoteAddr, UserAgent: r.UserAgent()}
}
