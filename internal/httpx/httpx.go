// Package httpx contains the HTTP delivery layer for the linkvault service.
// It maps HTTP requests to the application service while enforcing validation,
// size limits, security headers, and error translation. Handlers are split
// across files (create.go, access.go, download.go, manage.go, authapi.go,
// health.go, errors.go).
package httpx

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skm5786/linkvault/internal/app"
	"github.com/skm5786/linkvault/internal/auth"
	"github.com/skm5786/linkvault/internal/domain"
	"github.com/skm5786/linkvault/internal/metrics"
)

// ServicePort abstracts the subset of app.Service used by the HTTP layer.
// It is satisfied by *app.Service in production and mocked in tests.
type ServicePort interface {
	CreateText(ctx context.Context, owner *int64, text string, opts app.CreateOptions) (*app.Created, error)
	CreateFile(ctx context.Context, owner *int64, upload app.FileUpload, opts app.CreateOptions) (*app.Created, error)
	Access(ctx context.Context, linkID, secret string, meta app.AccessMeta) (*app.View, error)
	Download(ctx context.Context, linkID, secret string, meta app.AccessMeta) (*domain.FilePayload, io.ReadCloser, error)
	Delete(ctx context.Context, linkID string, ownerID int64) error
	ListOwned(ctx context.Context, ownerID int64) ([]app.Summary, error)
	OwnedStats(ctx context.Context, ownerID int64) (*app.OwnerStats, error)
}

// AuthPort abstracts the subset of auth.Service used by the HTTP layer.
type AuthPort interface {
	Register(ctx context.Context, username, email, password string) (*auth.User, error)
	Login(ctx context.Context, username, password string) (string, *auth.User, error)
	Verify(token string) (int64, error)
}

var (
	_ ServicePort = (*app.Service)(nil)
	_ AuthPort    = (*auth.Service)(nil)
)

// Handler wires HTTP endpoints to the application and auth services.
// It is safe for concurrent use. Zero-value is not valid; construct via New.
type Handler struct {
	Service   ServicePort
	Auth      AuthPort
	MaxBody   int64                       // mirror service.MaxUploadBytes (defense-in-depth)
	Readiness func(context.Context) error // optional readiness probe
}

// New returns a configured Handler.
func New(svc ServicePort, authSvc AuthPort, maxBody int64, readiness func(context.Context) error) *Handler {
	return &Handler{Service: svc, Auth: authSvc, MaxBody: maxBody, Readiness: readiness}
}

// Router constructs and returns an http.Handler with all routes mounted and
// the correlation-ID and security-header middlewares applied.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(CorrelationIDMiddleware)
	r.Use(secureHeaders)

	r.Get("/healthz", h.handleHealth)
	r.Get("/readyz", h.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.handleRegister)
		r.Post("/auth/login", h.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(h.optionalAuth)
			r.Post("/content", h.handleCreate)
		})
		r.Post("/content/{linkID}", h.handleAccess)
		r.Get("/download/{linkID}", h.handleDownload)

		r.Group(func(r chi.Router) {
			r.Use(h.requireAuth)
			r.Delete("/content/{linkID}", h.handleDelete)
			r.Get("/me/content", h.handleListOwned)
			r.Get("/me/stats", h.handleOwnedStats)
		})
	})
	return r
}
