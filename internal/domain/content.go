// Package domain content.go contains the canonical shared-content record.
package domain

import "time"

// Kind discriminates what a record carries: inline text or a file reference.
type Kind string

// Content kinds. Immutable once a record is created.
const (
	KindText Kind = "text"
	KindFile Kind = "file"
)

// Valid reports whether k is a known content kind.
func (k Kind) Valid() bool { return k == KindText || k == KindFile }

// FilePayload references a payload-store entry for file content.
type FilePayload struct {
	Ref      string // payload store reference (server-chosen)
	Name     string // original upload name
	Size     int64
	MimeType string
}

// ContentRecord is the canonical entity behind a share link. The record is
// the single source of truth for liveness; all immutable fields are set at
// creation and only ViewCount and the deletion markers mutate afterwards.
type ContentRecord struct {
	ID      int64 // server-internal primary key
	LinkID  LinkID
	OwnerID *int64 // nil means anonymous content

	Kind Kind
	Text string       // populated iff Kind == KindText
	File *FilePayload // populated iff Kind == KindFile

	ExpiresAt time.Time
	CreatedAt time.Time

	SecretHash string // empty means no secret required
	OneTime    bool
	MaxViews   int64 // 0 means uncapped
	ViewCount  int64

	Deleted       bool
	DeletedAt     *time.Time
	PayloadPurged bool // file payload confirmed removed from the payload store
}

// EffectiveCap collapses the OneTime flag and MaxViews into a single view
// cap: one-time content behaves exactly like MaxViews = 1. Zero means
// uncapped. Both fields are preserved at the external interface; the engine
// only ever consults this derived value.
func (r *ContentRecord) EffectiveCap() int64 {
	if r.OneTime {
		return 1
	}
	return r.MaxViews
}

// HasSecret reports whether an access secret gates this record.
func (r *ContentRecord) HasSecret() bool { return r.SecretHash != "" }

// CapReached reports whether the view counter has exhausted the effective cap.
func (r *ContentRecord) CapReached() bool {
	limit := r.EffectiveCap()
	return limit > 0 && r.ViewCount >= limit
}

// Live reports whether the record is servable at instant now. Advisory only;
// the store's claim primitive re-guards every condition atomically.
func (r *ContentRecord) Live(now time.Time) bool {
	return !r.Deleted && !IsExpired(r.ExpiresAt, now) && !r.CapReached()
}
