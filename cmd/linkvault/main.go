// Package main provides the linkvault binary entry point: a content sharing
// service that places text and files behind expiring, optionally
// password-gated links. It loads configuration from environment variables,
// validates it, wires the storage adapters to the application services, and
// starts the HTTP server alongside the background reclaimer.
//
// The application flow:
//  1. Load defaults and apply environment variables.
//  2. Validate configuration.
//  3. Open the SQLite store and payload directory.
//  4. Build the content, auth, and reclaimer services.
//  5. Start the HTTP server; stop the reclaimer on shutdown.
//
// It blocks until the server exits with an error (other than
// http.ErrServerClosed) or a termination signal arrives.
package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/skm5786/linkvault/internal/app"
	"github.com/skm5786/linkvault/internal/auth"
	"github.com/skm5786/linkvault/internal/config"
	"github.com/skm5786/linkvault/internal/httpx"
	"github.com/skm5786/linkvault/internal/reclaimer"
	"github.com/skm5786/linkvault/internal/store/filesystem"
	"github.com/skm5786/linkvault/internal/store/sqlite"
)

// realClock implements app.Clock using time.Now.
type realClock struct{}

func (realClock) Now() time.Time { return time.Now().UTC() }

func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("configuration error", "err", err)
		os.Exit(2)
	}
	return cfg
}

func ensureDataDir(cfg *config.Config) {
	if st, err := os.Stat(cfg.DataDir); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mkErr := os.MkdirAll(cfg.DataDir, 0o700); mkErr != nil {
				slog.Error("create data directory", "dir", cfg.DataDir, "err", mkErr)
				os.Exit(3)
			}
		} else {
			slog.Error("stat data directory", "dir", cfg.DataDir, "err", err)
			os.Exit(3)
		}
	} else if !st.IsDir() {
		slog.Error("data path not directory", "dir", cfg.DataDir)
		os.Exit(3)
	}
	if err := os.MkdirAll(cfg.PayloadDir(), 0o700); err != nil {
		slog.Error("create payload dir", "err", err)
		os.Exit(3)
	}
}

func openDatabase(cfg *config.Config) (*sql.DB, *sqlite.Store) {
	db, err := sql.Open("sqlite3", cfg.SQLiteDSN())
	if err != nil {
		slog.Error("open sqlite driver", "err", err)
		os.Exit(4)
	}
	st, err := sqlite.New(db)
	if err != nil {
		slog.Error("init sqlite schema", "err", err)
		os.Exit(4)
	}
	return db, st
}

func newPayloadStore(cfg *config.Config) *filesystem.PayloadStore {
	payloads, err := filesystem.New(cfg.PayloadDir())
	if err != nil {
		slog.Error("init payload storage", "err", err)
		os.Exit(5)
	}
	return payloads
}

// jwtSecret returns the configured signing secret, or a random per-process
// one when none is configured. Sessions then do not survive restarts.
func jwtSecret(cfg *config.Config) []byte {
	if cfg.JWTSecret != "" {
		return []byte(cfg.JWTSecret)
	}
	slog.Warn("LINKVAULT_JWT_SECRET not set, using an ephemeral signing key")
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		slog.Error("generate signing key", "err", err)
		os.Exit(2)
	}
	return secret
}

func buildHandler(cfg *config.Config, svc *app.Service, authSvc *auth.Service, db *sql.DB) http.Handler {
	readiness := func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return err
		}
		if _, err := os.ReadDir(cfg.PayloadDir()); err != nil {
			return err
		}
		return nil
	}
	return httpx.New(svc, authSvc, cfg.MaxUploadBytes, readiness).Router()
}

func run() error {
	cfg := loadConfig()
	ensureDataDir(cfg)
	db, records := openDatabase(cfg)
	defer db.Close()
	payloads := newPayloadStore(cfg)
	clock := realClock{}

	svc := &app.Service{
		Records:        records,
		Payloads:       payloads,
		Clock:          clock,
		MaxUploadBytes: cfg.MaxUploadBytes,
		MaxLifetime:    cfg.MaxTTL,
		DefaultExpiry:  cfg.DefaultTTL.Minutes(),
		Logger:         slog.Default(),
	}
	authSvc := &auth.Service{
		Users:    records,
		Secret:   jwtSecret(cfg),
		TokenTTL: cfg.TokenTTL,
		Clock:    clock,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep := reclaimer.New(records, payloads, reclaimer.Config{
		Interval:     cfg.ReclaimInterval,
		LogRetention: cfg.AccessLogRetention,
		Logger:       slog.Default(),
		Clock:        clock,
	})
	sweep.Start(ctx)
	defer sweep.Stop()

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      buildHandler(cfg, svc, authSvc, db),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", cfg.Addr, "pid", os.Getpid())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		slog.Info("shutting down", "signal", sig.String())
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func main() {
	if err := run(); err != nil {
		slog.Error("server error", "err", err)
		os.Exit(1)
	}
}
