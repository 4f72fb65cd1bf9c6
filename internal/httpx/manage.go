package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skm5786/linkvault/internal/app"
)

// summaryResponse is the owner-dashboard projection of one record.
type summaryResponse struct {
	LinkID    string    `json:"link_id"`
	Kind      string    `json:"kind"`
	FileName  string    `json:"file_name,omitempty"`
	FileSize  int64     `json:"file_size,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	ViewCount int64     `json:"view_count"`
	MaxViews  int64     `json:"max_views,omitempty"`
	OneTime   bool      `json:"one_time"`
	HasSecret bool      `json:"has_password"`
	Deleted   bool      `json:"deleted"`
}

// handleDelete implements DELETE /api/content/{linkID}. Requires the
// authenticated owner; anyone else sees the same 404 as a nonexistent link.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principal(r.Context())
	if !ok {
		h.writeError(r.Context(), w, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "linkID"), ownerID); err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListOwned implements GET /api/me/content.
func (h *Handler) handleListOwned(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principal(r.Context())
	if !ok {
		h.writeError(r.Context(), w, http.StatusUnauthorized, "authentication required")
		return
	}
	sums, err := h.Service.ListOwned(r.Context(), ownerID)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	out := make([]summaryResponse, 0, len(sums))
	for _, s := range sums {
		out = append(out, toSummaryResponse(s))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		Content []summaryResponse `json:"content"`
	}{Content: out})
}

// handleOwnedStats implements GET /api/me/stats: the aggregate dashboard
// numbers across everything the owner has shared.
func (h *Handler) handleOwnedStats(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := principal(r.Context())
	if !ok {
		h.writeError(r.Context(), w, http.StatusUnauthorized, "authentication required")
		return
	}
	stats, err := h.Service.OwnedStats(r.Context(), ownerID)
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(struct {
		TotalUploads   int64 `json:"total_uploads"`
		ActiveUploads  int64 `json:"active_uploads"`
		ExpiredUploads int64 `json:"expired_uploads"`
		TotalViews     int64 `json:"total_views"`
	}{
		TotalUploads:   stats.TotalUploads,
		ActiveUploads:  stats.ActiveUploads,
		ExpiredUploads: stats.ExpiredUploads,
		TotalViews:     stats.TotalViews,
	})
}

func toSummaryResponse(s app.Summary) summaryResponse {
	return summaryResponse{
		LinkID:    s.LinkID.String(),
		Kind:      string(s.Kind),
		FileName:  s.FileName,
		FileSize:  s.FileSize,
		CreatedAt: s.CreatedAt,
		ExpiresAt: s.ExpiresAt,
		ViewCount: s.ViewCount,
		MaxViews:  s.MaxViews,
		OneTime:   s.OneTime,
		HasSecret: s.HasSecret,
		Deleted:   s.Deleted,
	}
}
