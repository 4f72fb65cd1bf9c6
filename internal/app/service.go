// Package app contains the content lifecycle and access control engine. It
// wires domain rules to the persistence ports without performing any I/O
// itself beyond what those ports expose.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/skm5786/linkvault/internal/domain"
)

// ErrInvalidInput indicates a malformed creation request (empty text, bad
// kind, negative view cap).
var ErrInvalidInput = errors.New("invalid input")

// ErrSizeExceeded indicates an upload of zero size or beyond the configured maximum.
var ErrSizeExceeded = errors.New("size exceeded")

// ErrBlockedFileType indicates an upload with a disallowed file extension.
var ErrBlockedFileType = errors.New("blocked file type")

// blockedExtensions are never accepted as uploads.
var blockedExtensions = map[string]struct{}{
	".exe": {}, ".bat": {}, ".cmd": {}, ".com": {}, ".pif": {}, ".scr": {}, ".vbs": {}, ".js": {},
}

// CreateOptions carries the optional constraints a producer may place on
// content. ExpiryMinutes of zero selects the configured default lifetime;
// fractional minutes are valid.
type CreateOptions struct {
	ExpiryMinutes float64
	Secret        string
	OneTime       bool
	MaxViews      int64 // 0 means uncapped
}

// Created is the result of a successful creation.
type Created struct {
	LinkID    domain.LinkID
	ExpiresAt time.Time
	Kind      domain.Kind
	HasSecret bool
	OneTime   bool
	MaxViews  int64
}

// FileUpload describes an incoming file payload from the transport layer.
type FileUpload struct {
	Reader   io.Reader
	Name     string
	Size     int64
	MimeType string
}

// View is a successful content-returning access outcome. For file content
// the bytes are fetched through Download; View carries the descriptor.
type View struct {
	Kind      domain.Kind
	Text      string
	File      *domain.FilePayload
	ViewCount int64
	MaxViews  int64
	OneTime   bool
	CreatedAt time.Time
	ExpiresAt time.Time
	// Terminal reports that this access exhausted the record: it has been
	// retired and no further access will succeed.
	Terminal bool
}

// Summary is the owner-dashboard projection of a record. It never includes
// the secret hash.
type Summary struct {
	LinkID    domain.LinkID
	Kind      domain.Kind
	FileName  string
	FileSize  int64
	CreatedAt time.Time
	ExpiresAt time.Time
	ViewCount int64
	MaxViews  int64
	OneTime   bool
	HasSecret bool
	Deleted   bool
}

// OwnerStats is the aggregate dashboard projection across an owner's records.
type OwnerStats struct {
	TotalUploads   int64
	ActiveUploads  int64
	ExpiredUploads int64
	TotalViews     int64
}

// Service is the access control engine. All liveness decisions are evaluated
// fresh against the record store on every access attempt; nothing is cached.
type Service struct {
	Records        ContentStore
	Payloads       PayloadStore
	Clock          Clock
	MaxUploadBytes int64
	MaxLifetime    time.Duration
	DefaultExpiry  float64 // minutes, applied when a request omits expiry
	Logger         *slog.Logger
}

func (s *Service) log() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// CreateText places text content behind a new link.
func (s *Service) CreateText(ctx context.Context, owner *int64, text string, opts CreateOptions) (*Created, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrInvalidInput
	}
	rec, err := s.newRecord(owner, opts)
	if err != nil {
		return nil, err
	}
	rec.Kind = domain.KindText
	rec.Text = text
	return s.insert(ctx, rec)
}

// CreateFile stores the uploaded payload and places it behind a new link.
// The payload write happens outside the record transaction; a failed insert
// removes the just-written blob so no orphan is left behind.
func (s *Service) CreateFile(ctx context.Context, owner *int64, upload FileUpload, opts CreateOptions) (*Created, error) {
	if upload.Reader == nil || upload.Name == "" {
		return nil, ErrInvalidInput
	}
	if upload.Size <= 0 || (s.MaxUploadBytes > 0 && upload.Size > s.MaxUploadBytes) {
		return nil, ErrSizeExceeded
	}
	if _, blocked := blockedExtensions[strings.ToLower(filepath.Ext(upload.Name))]; blocked {
		return nil, ErrBlockedFileType
	}
	rec, err := s.newRecord(owner, opts)
	if err != nil {
		return nil, err
	}
	ref, err := s.Payloads.Save(upload.Reader, upload.Size)
	if err != nil {
		return nil, fmt.Errorf("store payload: %w", err)
	}
	rec.Kind = domain.KindFile
	rec.File = &domain.FilePayload{Ref: ref, Name: upload.Name, Size: upload.Size, MimeType: upload.MimeType}
	created, err := s.insert(ctx, rec)
	if err != nil {
		if rmErr := s.Payloads.Remove(ref); rmErr != nil {
			s.log().Error("remove payload after failed insert", "ref", ref, "err", rmErr)
		}
		return nil, err
	}
	return created, nil
}

// newRecord builds a record with all immutable fields set: fresh link id,
// absolute expiry, hashed secret, and constraint flags.
func (s *Service) newRecord(owner *int64, opts CreateOptions) (*domain.ContentRecord, error) {
	minutes := opts.ExpiryMinutes
	if minutes == 0 {
		minutes = s.DefaultExpiry
	}
	if err := domain.ValidateExpiryMinutes(minutes, s.MaxLifetime); err != nil {
		return nil, err
	}
	if opts.MaxViews < 0 {
		return nil, ErrInvalidInput
	}
	id, err := domain.NewLinkID()
	if err != nil { // entropy exhaustion; fail loudly, never degrade
		return nil, err
	}
	now := s.Clock.Now()
	rec := &domain.ContentRecord{
		LinkID:    id,
		OwnerID:   owner,
		CreatedAt: now,
		ExpiresAt: domain.ComputeExpiry(now, minutes),
		OneTime:   opts.OneTime,
		MaxViews:  opts.MaxViews,
	}
	if opts.Secret != "" {
		hash, err := domain.HashSecret(opts.Secret)
		if err != nil {
			return nil, err
		}
		rec.SecretHash = hash
	}
	return rec, nil
}

func (s *Service) insert(ctx context.Context, rec *domain.ContentRecord) (*Created, error) {
	id, err := s.Records.Insert(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	rec.ID = id
	return &Created{
		LinkID:    rec.LinkID,
		ExpiresAt: rec.ExpiresAt,
		Kind:      rec.Kind,
		HasSecret: rec.HasSecret(),
		OneTime:   rec.OneTime,
		MaxViews:  rec.MaxViews,
	}, nil
}

// Access evaluates the full access policy for a link and, on success,
// returns the content view and records the access event. Each successful
// Access consumes one view against the record's effective cap.
func (s *Service) Access(ctx context.Context, linkID, secret string, meta AccessMeta) (*View, error) {
	rec, err := s.gate(ctx, linkID, secret)
	if err != nil {
		return nil, err
	}
	count, terminal, err := s.claim(ctx, rec)
	if err != nil {
		return nil, err
	}
	s.logAccess(ctx, rec.ID, meta)
	view := &View{
		Kind:      rec.Kind,
		Text:      rec.Text,
		File:      rec.File,
		ViewCount: count,
		MaxViews:  rec.MaxViews,
		OneTime:   rec.OneTime,
		CreatedAt: rec.CreatedAt,
		ExpiresAt: rec.ExpiresAt,
		Terminal:  terminal,
	}
	if terminal {
		// Serve-then-retire: the view above is still returned for this final
		// successful access.
		s.retire(ctx, rec)
	}
	return view, nil
}

// Download is the second access surface over the same state machine. It
// re-runs every gating check rather than trusting a prior Access, consumes a
// view, and streams the payload. For the terminal access the stream deletes
// the blob on Close; the reclaimer confirms the purge afterwards.
func (s *Service) Download(ctx context.Context, linkID, secret string, meta AccessMeta) (*domain.FilePayload, io.ReadCloser, error) {
	rec, err := s.gate(ctx, linkID, secret)
	if err != nil {
		return nil, nil, err
	}
	if rec.Kind != domain.KindFile || rec.File == nil {
		return nil, nil, domain.ErrNotFound
	}
	_, terminal, err := s.claim(ctx, rec)
	if err != nil {
		return nil, nil, err
	}
	s.logAccess(ctx, rec.ID, meta)
	if !terminal {
		rc, err := s.Payloads.Open(rec.File.Ref)
		if err != nil {
			return nil, nil, fmt.Errorf("open payload: %w", err)
		}
		return rec.File, rc, nil
	}
	// Open before retiring so the caller can still stream the final copy.
	rc, err := s.Payloads.Consume(rec.File.Ref)
	if err != nil {
		// The view is spent either way; retire the record and surface the
		// storage failure.
		s.retire(ctx, rec)
		return nil, nil, fmt.Errorf("open payload: %w", err)
	}
	if err := s.Records.SoftDelete(ctx, rec.ID, s.Clock.Now()); err != nil {
		s.log().Error("soft delete after terminal download", "link_id", rec.LinkID, "err", err)
	}
	return rec.File, rc, nil
}

// Delete is the owner-initiated manual deletion path. Only the creating
// owner may delete; anonymous content can never be manually deleted.
func (s *Service) Delete(ctx context.Context, linkID string, ownerID int64) error {
	if _, err := domain.ParseLinkID(linkID); err != nil {
		return domain.ErrNotFound
	}
	rec, err := s.Records.GetByLinkID(ctx, linkID)
	if err != nil {
		return err
	}
	if rec.OwnerID == nil || *rec.OwnerID != ownerID {
		return domain.ErrForbidden
	}
	s.retire(ctx, rec)
	return nil
}

// ListOwned returns the owner's dashboard projection, newest first.
func (s *Service) ListOwned(ctx context.Context, ownerID int64) ([]Summary, error) {
	recs, err := s.Records.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list by owner: %w", err)
	}
	out := make([]Summary, 0, len(recs))
	for i := range recs {
		r := &recs[i]
		sum := Summary{
			LinkID:    r.LinkID,
			Kind:      r.Kind,
			CreatedAt: r.CreatedAt,
			ExpiresAt: r.ExpiresAt,
			ViewCount: r.ViewCount,
			MaxViews:  r.MaxViews,
			OneTime:   r.OneTime,
			HasSecret: r.HasSecret(),
			Deleted:   r.Deleted,
		}
		if r.File != nil {
			sum.FileName = r.File.Name
			sum.FileSize = r.File.Size
		}
		out = append(out, sum)
	}
	return out, nil
}

// OwnedStats aggregates the owner's records: totals, liveness split, and the
// view count across everything ever shared. A record counts as expired once
// it is terminated for any reason; only records still servable are active.
func (s *Service) OwnedStats(ctx context.Context, ownerID int64) (*OwnerStats, error) {
	recs, err := s.Records.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list by owner: %w", err)
	}
	now := s.Clock.Now()
	stats := &OwnerStats{}
	for i := range recs {
		r := &recs[i]
		stats.TotalUploads++
		stats.TotalViews += r.ViewCount
		if r.Deleted || domain.IsExpired(r.ExpiresAt, now) || r.CapReached() {
			stats.ExpiredUploads++
		} else {
			stats.ActiveUploads++
		}
	}
	return stats, nil
}

// gate runs the non-mutating policy checks: lookup, expiry, defensive cap,
// secret. It never touches the counter. A lapsed record observed here is
// retired immediately (lazy expiry, independent of the reclaimer; whichever
// acts first wins and the loser's delete is a no-op).
func (s *Service) gate(ctx context.Context, linkID, secret string) (*domain.ContentRecord, error) {
	if _, err := domain.ParseLinkID(linkID); err != nil {
		return nil, domain.ErrInvalidID
	}
	rec, err := s.Records.GetByLinkID(ctx, linkID)
	if err != nil {
		return nil, err
	}
	now := s.Clock.Now()
	if domain.IsExpired(rec.ExpiresAt, now) {
		s.retire(ctx, rec)
		return nil, domain.ErrExpired
	}
	if rec.CapReached() {
		// Should already have been retired by the claim that hit the cap;
		// a record at its cap must never be servable.
		s.retire(ctx, rec)
		return nil, domain.ErrLimitReached
	}
	if rec.HasSecret() {
		if secret == "" {
			return nil, domain.ErrSecretRequired
		}
		if !domain.VerifySecret(secret, rec.SecretHash) {
			return nil, domain.ErrSecretIncorrect
		}
	}
	return rec, nil
}

// claim performs the atomic increment (a single conditional update at the
// storage boundary) and reports whether this view exhausted the cap.
// A rejected claim is classified by re-reading the record, since the store's
// primitive only says "not admitted".
func (s *Service) claim(ctx context.Context, rec *domain.ContentRecord) (count int64, terminal bool, err error) {
	now := s.Clock.Now()
	limit := rec.EffectiveCap()
	count, err = s.Records.ClaimView(ctx, rec.ID, limit, now)
	if err != nil {
		if errors.Is(err, domain.ErrLimitReached) {
			return 0, false, s.classifyRejection(ctx, rec.LinkID.String())
		}
		return 0, false, fmt.Errorf("claim view: %w", err)
	}
	rec.ViewCount = count
	return count, limit > 0 && count >= limit, nil
}

// classifyRejection decides why a claim was not admitted: the record may
// have been deleted, expired, or capped out between the gate and the claim.
func (s *Service) classifyRejection(ctx context.Context, linkID string) error {
	rec, err := s.Records.GetByLinkID(ctx, linkID)
	if err != nil {
		return err // includes domain.ErrNotFound for a concurrently retired record
	}
	now := s.Clock.Now()
	if domain.IsExpired(rec.ExpiresAt, now) {
		s.retire(ctx, rec)
		return domain.ErrExpired
	}
	s.retire(ctx, rec)
	return domain.ErrLimitReached
}

// retire is the deletion sub-procedure shared by the reactive paths, manual
// deletion, and the reclaimer: soft-delete the record (idempotent), then
// remove the binary payload if any, tolerating "already absent" as success.
// A failed payload removal is logged and left for the reclaimer, whose sweep
// revisits soft-deleted rows with an unpurged payload.
func (s *Service) retire(ctx context.Context, rec *domain.ContentRecord) {
	now := s.Clock.Now()
	if err := s.Records.SoftDelete(ctx, rec.ID, now); err != nil {
		s.log().Error("soft delete", "link_id", rec.LinkID, "err", err)
		return
	}
	if rec.Kind != domain.KindFile || rec.File == nil {
		return
	}
	if err := s.Payloads.Remove(rec.File.Ref); err != nil {
		s.log().Warn("remove payload, reclaimer will retry", "link_id", rec.LinkID, "err", err)
		return
	}
	if err := s.Records.MarkPayloadPurged(ctx, rec.ID); err != nil {
		s.log().Error("mark payload purged", "link_id", rec.LinkID, "err", err)
	}
}

// logAccess appends an observational access event. Best-effort: failures are
// logged and never affect the access outcome.
func (s *Service) logAccess(ctx context.Context, contentID int64, meta AccessMeta) {
	if err := s.Records.LogAccess(ctx, contentID, s.Clock.Now(), meta.RemoteAddr, meta.UserAgent); err != nil {
		s.log().Warn("log access", "content_id", contentID, "err", err)
	}
}
