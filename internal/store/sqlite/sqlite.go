// Package sqlite provides the SQLite-backed content record store: the single
// source of truth for liveness, view counters, and the access-event log.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/skm5786/linkvault/internal/app"
	"github.com/skm5786/linkvault/internal/domain"

	// database/sql SQLite driver
	_ "github.com/mattn/go-sqlite3"
)

var _ app.ContentStore = (*Store)(nil)

// Store implements app.ContentStore using SQLite (via database/sql). It is
// safe for concurrent use; SQLite serializes writers, which is exactly what
// the conditional-increment claim relies on.
type Store struct{ db *sql.DB }

// New constructs a Store, initializing the required schema if absent.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	schema := `CREATE TABLE IF NOT EXISTS content (
id INTEGER PRIMARY KEY AUTOINCREMENT,
link_id TEXT UNIQUE NOT NULL,
owner_id INTEGER,
kind TEXT NOT NULL CHECK(kind IN ('text','file')),
text_content TEXT,
file_ref TEXT,
file_name TEXT,
file_size INTEGER,
file_mime TEXT,
expires_at INTEGER NOT NULL,
created_at INTEGER NOT NULL,
secret_hash TEXT NOT NULL DEFAULT '',
is_one_time INTEGER NOT NULL DEFAULT 0,
max_views INTEGER NOT NULL DEFAULT 0,
view_count INTEGER NOT NULL DEFAULT 0,
is_deleted INTEGER NOT NULL DEFAULT 0,
deleted_at INTEGER,
payload_purged INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_content_link_id ON content(link_id);
CREATE INDEX IF NOT EXISTS idx_content_owner ON content(owner_id);
CREATE INDEX IF NOT EXISTS idx_content_expiry ON content(expires_at);
CREATE INDEX IF NOT EXISTS idx_content_deleted ON content(is_deleted);
CREATE TABLE IF NOT EXISTS access_logs (
id INTEGER PRIMARY KEY AUTOINCREMENT,
content_id INTEGER NOT NULL,
accessed_at INTEGER NOT NULL,
remote_addr TEXT,
user_agent TEXT,
FOREIGN KEY (content_id) REFERENCES content(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_access_logs_at ON access_logs(accessed_at);
CREATE TABLE IF NOT EXISTS users (
id INTEGER PRIMARY KEY AUTOINCREMENT,
username TEXT UNIQUE NOT NULL,
email TEXT UNIQUE NOT NULL,
password_hash TEXT NOT NULL,
created_at INTEGER NOT NULL,
last_login INTEGER
);`
	_, err := s.db.Exec(schema)
	return err
}

// Insert stores a new content row and returns its server-internal id.
func (s *Store) Insert(ctx context.Context, rec *domain.ContentRecord) (int64, error) {
	const q = `INSERT INTO content
(link_id, owner_id, kind, text_content, file_ref, file_name, file_size, file_mime,
 expires_at, created_at, secret_hash, is_one_time, max_views)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`
	var owner sql.NullInt64
	if rec.OwnerID != nil {
		owner = sql.NullInt64{Int64: *rec.OwnerID, Valid: true}
	}
	var text sql.NullString
	var fRef, fName, fMime sql.NullString
	var fSize sql.NullInt64
	switch rec.Kind {
	case domain.KindText:
		text = sql.NullString{String: rec.Text, Valid: true}
	case domain.KindFile:
		if rec.File == nil {
			return 0, errors.New("file record without payload reference")
		}
		fRef = sql.NullString{String: rec.File.Ref, Valid: true}
		fName = sql.NullString{String: rec.File.Name, Valid: true}
		fMime = sql.NullString{String: rec.File.MimeType, Valid: true}
		fSize = sql.NullInt64{Int64: rec.File.Size, Valid: true}
	default:
		return 0, fmt.Errorf("unknown content kind %q", rec.Kind)
	}
	oneTime := 0
	if rec.OneTime {
		oneTime = 1
	}
	res, err := s.db.ExecContext(ctx, q,
		rec.LinkID.String(), owner, string(rec.Kind), text, fRef, fName, fSize, fMime,
		rec.ExpiresAt.UnixMilli(), rec.CreatedAt.UnixMilli(), rec.SecretHash, oneTime, rec.MaxViews)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

const recordColumns = `id, link_id, owner_id, kind, text_content, file_ref, file_name, file_size, file_mime,
expires_at, created_at, secret_hash, is_one_time, max_views, view_count, is_deleted, deleted_at, payload_purged`

// GetByLinkID returns the record behind a link id. Soft-deleted rows are
// invisible here: deletion and absence both surface as domain.ErrNotFound.
func (s *Store) GetByLinkID(ctx context.Context, linkID string) (*domain.ContentRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM content WHERE link_id=? AND is_deleted=0`
	rec, err := scanRecord(s.db.QueryRowContext(ctx, q, linkID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// ClaimView is the serialization point for the check-then-increment hazard:
// a single conditional UPDATE that admits the view only while the record is
// undeleted, unexpired, and under the cap (0 means uncapped), returning the
// new count. No separate read-modify-write happens anywhere.
func (s *Store) ClaimView(ctx context.Context, id int64, limit int64, now time.Time) (int64, error) {
	const q = `UPDATE content SET view_count = view_count + 1
WHERE id=? AND is_deleted=0 AND expires_at >= ? AND (? <= 0 OR view_count < ?)
RETURNING view_count`
	var count int64
	err := s.db.QueryRowContext(ctx, q, id, now.UnixMilli(), limit, limit).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrLimitReached
		}
		return 0, err
	}
	return count, nil
}

// SoftDelete marks the row terminal. Already-deleted rows are untouched, so
// the first deletion timestamp is preserved and repeats are no-ops.
func (s *Store) SoftDelete(ctx context.Context, id int64, now time.Time) error {
	const q = `UPDATE content SET is_deleted=1, deleted_at=? WHERE id=? AND is_deleted=0`
	_, err := s.db.ExecContext(ctx, q, now.UnixMilli(), id)
	return err
}

// MarkPayloadPurged records that the blob is confirmed gone.
func (s *Store) MarkPayloadPurged(ctx context.Context, id int64) error {
	const q = `UPDATE content SET payload_purged=1 WHERE id=?`
	_, err := s.db.ExecContext(ctx, q, id)
	return err
}

// ListExpired returns live rows whose expiry precedes now.
func (s *Store) ListExpired(ctx context.Context, now time.Time) ([]domain.ContentRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM content WHERE is_deleted=0 AND expires_at < ?`
	return s.queryRecords(ctx, q, now.UnixMilli())
}

// ListUnpurged returns soft-deleted file rows whose payload removal has not
// been confirmed, so the reclaimer can retry the purge.
func (s *Store) ListUnpurged(ctx context.Context) ([]domain.ContentRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM content
WHERE is_deleted=1 AND kind='file' AND payload_purged=0 AND file_ref IS NOT NULL`
	return s.queryRecords(ctx, q)
}

// ListPayloadRefs returns every payload reference, including ones on
// soft-deleted rows, for orphan reconciliation.
func (s *Store) ListPayloadRefs(ctx context.Context) ([]string, error) {
	const q = `SELECT file_ref FROM content WHERE file_ref IS NOT NULL`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []string
	for rows.Next() {
		var ref string
		if err = rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// ListByOwner returns all rows created by the principal, newest first,
// including terminated ones (the dashboard shows history).
func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]domain.ContentRecord, error) {
	q := `SELECT ` + recordColumns + ` FROM content WHERE owner_id=? ORDER BY created_at DESC, id DESC`
	return s.queryRecords(ctx, q, ownerID)
}

// LogAccess appends an access event row.
func (s *Store) LogAccess(ctx context.Context, contentID int64, at time.Time, remoteAddr, userAgent string) error {
	const q = `INSERT INTO access_logs (content_id, accessed_at, remote_addr, user_agent) VALUES (?,?,?,?)`
	_, err := s.db.ExecContext(ctx, q, contentID, at.UnixMilli(), remoteAddr, userAgent)
	return err
}

// PruneAccessLogs removes events older than before, returning the count.
func (s *Store) PruneAccessLogs(ctx context.Context, before time.Time) (int64, error) {
	const q = `DELETE FROM access_logs WHERE accessed_at < ?`
	res, err := s.db.ExecContext(ctx, q, before.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *Store) queryRecords(ctx context.Context, q string, args ...any) ([]domain.ContentRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []domain.ContentRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface{ Scan(dest ...any) error }

func scanRecord(sc scanner) (*domain.ContentRecord, error) {
	var (
		rec          domain.ContentRecord
		linkID, kind string
		owner        sql.NullInt64
		text         sql.NullString
		fRef, fName  sql.NullString
		fMime        sql.NullString
		fSize        sql.NullInt64
		expiresAt    int64
		createdAt    int64
		oneTime      int
		deleted      int
		deletedAt    sql.NullInt64
		purged       int
	)
	err := sc.Scan(&rec.ID, &linkID, &owner, &kind, &text, &fRef, &fName, &fSize, &fMime,
		&expiresAt, &createdAt, &rec.SecretHash, &oneTime, &rec.MaxViews, &rec.ViewCount,
		&deleted, &deletedAt, &purged)
	if err != nil {
		return nil, err
	}
	rec.LinkID = domain.LinkID(linkID)
	rec.Kind = domain.Kind(kind)
	if owner.Valid {
		v := owner.Int64
		rec.OwnerID = &v
	}
	if text.Valid {
		rec.Text = text.String
	}
	if fRef.Valid {
		rec.File = &domain.FilePayload{
			Ref:      fRef.String,
			Name:     fName.String,
			Size:     fSize.Int64,
			MimeType: fMime.String,
		}
	}
	rec.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.OneTime = oneTime == 1
	rec.Deleted = deleted == 1
	if deletedAt.Valid {
		t := time.UnixMilli(deletedAt.Int64).UTC()
		rec.DeletedAt = &t
	}
	rec.PayloadPurged = purged == 1
	return &rec, nil
}
