package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/skm5786/linkvault/internal/app"
	"github.com/skm5786/linkvault/internal/auth"
	"github.com/skm5786/linkvault/internal/domain"
	"github.com/skm5786/linkvault/internal/metrics"
)

// writeError writes a JSON error body with the given status code.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: msg})
	if cid, ok := GetCorrelationID(ctx); ok {
		slog.Debug("wrote error response", "cid", cid, "status", code, "msg", msg)
	}
}

// mapServiceError maps domain/store/service errors to HTTP responses.
// Unknown links, malformed links, and other owners' links are deliberately
// indistinguishable: all three read as 404 so the response never confirms a
// link exists.
func (h *Handler) mapServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidID), errors.Is(err, domain.ErrForbidden):
		slog.Info("service error", "cid", cid, "code", "not_found")
		h.writeError(ctx, w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrExpired):
		slog.Info("service error", "cid", cid, "code", "expired")
		h.writeError(ctx, w, http.StatusGone, "content expired")
	case errors.Is(err, domain.ErrLimitReached):
		slog.Info("service error", "cid", cid, "code", "limit_reached")
		h.writeError(ctx, w, http.StatusGone, "view limit reached")
	case errors.Is(err, domain.ErrSecretRequired):
		slog.Info("service error", "cid", cid, "code", "password_required")
		h.writeError(ctx, w, http.StatusUnauthorized, "password required")
	case errors.Is(err, domain.ErrSecretIncorrect):
		slog.Warn("service error", "cid", cid, "code", "password_incorrect")
		h.writeError(ctx, w, http.StatusUnauthorized, "incorrect password")
	case errors.Is(err, domain.ErrTTLInvalid):
		slog.Warn("service error", "cid", cid, "code", "ttl_invalid")
		h.writeError(ctx, w, http.StatusBadRequest, "invalid expiry")
	case errors.Is(err, app.ErrInvalidInput):
		slog.Warn("service error", "cid", cid, "code", "invalid_input")
		h.writeError(ctx, w, http.StatusBadRequest, "invalid input")
	case errors.Is(err, app.ErrSizeExceeded):
		slog.Warn("service error", "cid", cid, "code", "size_exceeded")
		h.writeError(ctx, w, http.StatusRequestEntityTooLarge, "size exceeded")
	case errors.Is(err, app.ErrBlockedFileType):
		slog.Warn("service error", "cid", cid, "code", "blocked_file_type")
		h.writeError(ctx, w, http.StatusBadRequest, "file type not allowed")
	default:
		// Internal / unexpected: do not echo the raw error string.
		slog.Error("unhandled service error", "cid", cid, "err", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	}
}

// mapAuthError maps credential-service errors to HTTP responses.
func (h *Handler) mapAuthError(ctx context.Context, w http.ResponseWriter, err error) {
	cid, _ := GetCorrelationID(ctx)
	switch {
	case errors.Is(err, auth.ErrCredentials):
		slog.Info("auth error", "cid", cid, "code", "bad_credentials")
		h.writeError(ctx, w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, auth.ErrUserExists):
		slog.Info("auth error", "cid", cid, "code", "user_exists")
		h.writeError(ctx, w, http.StatusConflict, "username or email already taken")
	case errors.Is(err, auth.ErrInvalidInput):
		slog.Warn("auth error", "cid", cid, "code", "invalid_input")
		h.writeError(ctx, w, http.StatusBadRequest, "invalid registration input")
	default:
		slog.Error("unhandled auth error", "cid", cid, "err", err)
		h.writeError(ctx, w, http.StatusInternalServerError, "internal")
	}
}

// accessOutcome labels the access-attempt counter from a service result.
func accessOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrExpired):
		return "expired"
	case errors.Is(err, domain.ErrLimitReached):
		return "limit_reached"
	case errors.Is(err, domain.ErrSecretRequired):
		return "secret_required"
	case errors.Is(err, domain.ErrSecretIncorrect):
		return "secret_incorrect"
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrInvalidID):
		return "not_found"
	default:
		return "storage_failure"
	}
}

func countAccess(err error) {
	metrics.AccessOutcomes.WithLabelValues(accessOutcome(err)).Inc()
}
