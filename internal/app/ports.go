// Package app defines the application layer "ports" (interfaces) and data
// contracts the content lifecycle engine depends upon. It follows a hexagonal
// (ports & adapters) design: this package declares what the core needs, while
// adapter packages (SQLite record store, filesystem payload store, HTTP
// layer, reclaimer job) provide concrete implementations. No I/O, SQL, or
// network concerns belong here.
package app

import (
	"context"
	"io"
	"time"

	"github.com/skm5786/linkvault/internal/domain"
)

// Clock abstracts time to enable deterministic testing of expiry logic.
type Clock interface {
	// Now returns the current wall-clock time.
	Now() time.Time
}

// ContentStore is the persistence port for content records and their access
// counters. It is the single source of truth for liveness. Implementations
// must make ClaimView atomic with respect to concurrent callers on the same
// record; everything else in the engine leans on that guarantee.
type ContentStore interface {
	// Insert persists a new record and returns its server-internal id.
	Insert(ctx context.Context, rec *domain.ContentRecord) (int64, error)

	// GetByLinkID returns the record for an externally visible link id.
	// Soft-deleted records are invisible: both absence and deletion yield
	// domain.ErrNotFound.
	GetByLinkID(ctx context.Context, linkID string) (*domain.ContentRecord, error)

	// ClaimView atomically admits one view against the record: it increments
	// the view counter only if the record is not deleted, not expired at
	// 'now', and still under 'cap' (0 means uncapped), returning the new
	// count. A rejected claim returns domain.ErrLimitReached without saying
	// why; callers re-read to classify. This is the serialization point for
	// the check-then-increment hazard.
	ClaimView(ctx context.Context, id int64, limit int64, now time.Time) (int64, error)

	// SoftDelete marks the record terminal. Deleting an already-deleted
	// record is a no-op, not an error.
	SoftDelete(ctx context.Context, id int64, now time.Time) error

	// MarkPayloadPurged records that the binary payload is confirmed gone
	// from the payload store.
	MarkPayloadPurged(ctx context.Context, id int64) error

	// ListExpired returns live records whose expiry precedes now.
	ListExpired(ctx context.Context, now time.Time) ([]domain.ContentRecord, error)

	// ListUnpurged returns soft-deleted file records whose payload has not
	// been confirmed removed, so the reclaimer can retry the purge.
	ListUnpurged(ctx context.Context) ([]domain.ContentRecord, error)

	// ListPayloadRefs returns every payload reference known to the store,
	// including ones on soft-deleted rows, for orphan reconciliation.
	ListPayloadRefs(ctx context.Context) ([]string, error)

	// ListByOwner returns all records created by the given principal,
	// newest first, including terminated ones.
	ListByOwner(ctx context.Context, ownerID int64) ([]domain.ContentRecord, error)

	// LogAccess appends an access event. Observational only; never consulted
	// by access-control decisions.
	LogAccess(ctx context.Context, contentID int64, at time.Time, remoteAddr, userAgent string) error

	// PruneAccessLogs removes access events older than 'before' and returns
	// the number removed.
	PruneAccessLogs(ctx context.Context, before time.Time) (int64, error)
}

// PayloadStore is the binary blob storage port, keyed by a server-chosen
// reference. It knows nothing about expiry or access policy.
type PayloadStore interface {
	// Save streams exactly size bytes from r into a new blob and returns its
	// reference. Partial writes are cleaned up.
	Save(r io.Reader, size int64) (ref string, err error)

	// Open returns a reader over the blob.
	Open(ref string) (io.ReadCloser, error)

	// Consume returns a reader whose Close removes the blob, so a final
	// download can stream bytes that are already condemned.
	Consume(ref string) (io.ReadCloser, error)

	// Remove deletes the blob. A missing blob is success, not an error: the
	// reactive path and the reclaimer may race to delete the same payload.
	Remove(ref string) error

	// List returns all blob references currently present.
	List() ([]string, error)
}

// AccessMeta carries observational request attributes for the access log.
type AccessMeta struct {
	RemoteAddr string
	UserAgent  string
}
