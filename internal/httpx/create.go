package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/skm5786/linkvault/internal/app"
	"github.com/skm5786/linkvault/internal/metrics"
)

// createTextRequest is the JSON body for a text creation.
type createTextRequest struct {
	Text          string  `json:"text"`
	ExpiryMinutes float64 `json:"expiry_minutes"`
	Password      string  `json:"password"`
	OneTime       bool    `json:"one_time"`
	MaxViews      int64   `json:"max_views"`
}

// createdResponse is returned for both text and file creations.
type createdResponse struct {
	LinkID    string    `json:"link_id"`
	Kind      string    `json:"kind"`
	ExpiresAt time.Time `json:"expires_at"`
	HasSecret bool      `json:"has_password"`
	OneTime   bool      `json:"one_time"`
	MaxViews  int64     `json:"max_views,omitempty"`
}

// handleCreate implements POST /api/content. A JSON body creates text
// content; a multipart/form-data body uploads a file. The principal, when
// authenticated, becomes the content's owner.
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var owner *int64
	if id, ok := principal(r.Context()); ok {
		owner = &id
	}
	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		h.createFile(w, r, owner)
	case strings.HasPrefix(ct, "application/json"):
		h.createText(w, r, owner)
	default:
		h.writeError(r.Context(), w, http.StatusUnsupportedMediaType, "expected application/json or multipart/form-data")
	}
}

func (h *Handler) createText(w http.ResponseWriter, r *http.Request, owner *int64) {
	body := http.MaxBytesReader(w, r.Body, h.maxBody())
	defer body.Close()
	var req createTextRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "malformed json")
		return
	}
	created, err := h.Service.CreateText(r.Context(), owner, req.Text, app.CreateOptions{
		ExpiryMinutes: req.ExpiryMinutes,
		Secret:        req.Password,
		OneTime:       req.OneTime,
		MaxViews:      req.MaxViews,
	})
	if err != nil {
		h.mapServiceError(r.Context(), w, err)
		return
	}
	metrics.ContentCreated.WithLabelValues(string(created.Kind)).Inc()
	h.writeCreated(w, created)
}

// createFile reads the multipart form: a "file" part plus the same optional
// constraint fields as the JSON surface. The part size is taken from the
// multipart header so the service can enforce the upload cap before
// streaming.
func (h *Handler) createFile(w http.ResponseWriter, r *http.Request, owner *int64) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBody())
	// Small memory ceiling; file parts beyond it spill to temp files.
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "malformed multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "missing file part")
		return
	}
	defer file.Close()

	opts, err := formCreateOptions(r)
	if err != nil {
		h.writeError(r.Context(), w, http.StatusBadRequest, "invalid form field")
		return
	}
	created, svcErr := h.Service.CreateFile(r.Context(), owner, app.FileUpload{
		Reader:   file,
		Name:     header.Filename,
		Size:     header.Size,
		MimeType: header.Header.Get("Content-Type"),
	}, opts)
	if svcErr != nil {
		h.mapServiceError(r.Context(), w, svcErr)
		return
	}
	metrics.ContentCreated.WithLabelValues(string(created.Kind)).Inc()
	h.writeCreated(w, created)
}

// formCreateOptions parses the optional constraint fields of a multipart
// upload. Absent fields keep their zero values, which the service maps to
// defaults.
func formCreateOptions(r *http.Request) (app.CreateOptions, error) {
	opts := app.CreateOptions{Secret: r.FormValue("password")}
	if v := r.FormValue("expiry_minutes"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return opts, err
		}
		opts.ExpiryMinutes = f
	}
	if v := r.FormValue("one_time"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, err
		}
		opts.OneTime = b
	}
	if v := r.FormValue("max_views"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return opts, err
		}
		opts.MaxViews = n
	}
	return opts, nil
}

func (h *Handler) writeCreated(w http.ResponseWriter, created *app.Created) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(createdResponse{
		LinkID:    created.LinkID.String(),
		Kind:      string(created.Kind),
		ExpiresAt: created.ExpiresAt,
		HasSecret: created.HasSecret,
		OneTime:   created.OneTime,
		MaxViews:  created.MaxViews,
	})
}

// maxBody returns the request body ceiling, padded so multipart framing does
// not eat into the payload allowance.
func (h *Handler) maxBody() int64 {
	if h.MaxBody <= 0 {
		return 1 << 30
	}
	return h.MaxBody + (1 << 20)
}
