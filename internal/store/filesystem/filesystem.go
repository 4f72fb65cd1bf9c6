// Package filesystem provides a PayloadStore implementation backed by the
// local filesystem. It stores uploaded payloads as immutable blob files keyed
// by a server-chosen reference; it knows nothing about expiry or policy.
package filesystem

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skm5786/linkvault/internal/app"
)

// Ensure PayloadStore implements the port.
var _ app.PayloadStore = (*PayloadStore)(nil)

const blobExt = ".bin"

// PayloadStore implements app.PayloadStore using the local filesystem.
// References are random 32-char hex strings, so filenames carry no hint of
// the original upload name.
type PayloadStore struct {
	root string
}

// New returns a filesystem-backed payload store rooted at dir. The directory
// must already exist with secure permissions (0700 recommended).
func New(root string) (*PayloadStore, error) {
	fi, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, errors.New("payload root is not a directory")
	}
	return &PayloadStore{root: root}, nil
}

// path constructs the full path to the blob file for a given reference.
func (p *PayloadStore) path(ref string) string { return filepath.Join(p.root, ref+blobExt) }

// Save streams exactly size bytes from r into a new blob and returns its
// reference. A partial write removes the file so no half-stored payload
// survives.
func (p *PayloadStore) Save(r io.Reader, size int64) (string, error) {
	ref := newRef()
	fp := p.path(ref)
	// #nosec G304: path is a fixed root plus a server-generated hex ref; no traversal possible.
	f, err := os.OpenFile(fp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err = io.CopyN(f, r, size); err != nil {
		_ = os.Remove(fp)
		return "", err
	}
	if err = f.Sync(); err != nil {
		_ = os.Remove(fp)
		return "", err
	}
	return ref, nil
}

// Open returns a reader over the blob.
func (p *PayloadStore) Open(ref string) (io.ReadCloser, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	return os.Open(p.path(ref)) // #nosec G304 path constructed internally
}

// Consume opens a blob for reading and returns a ReadCloser whose Close
// deletes the underlying file (delete-on-close semantics), so the final
// admitted download can stream bytes that are already condemned.
func (p *PayloadStore) Consume(ref string) (io.ReadCloser, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	fp := p.path(ref)
	f, err := os.Open(fp) // #nosec G304 path constructed internally
	if err != nil {
		return nil, err
	}
	return &deletingReadCloser{File: f, path: fp}, nil
}

// deletingReadCloser wraps an *os.File and deletes its path on Close.
type deletingReadCloser struct {
	*os.File
	path string
}

func (d *deletingReadCloser) Close() error {
	// Close the underlying file first to flush OS buffers, capture error.
	fErr := d.File.Close()
	rmErr := os.Remove(d.path)
	if fErr != nil {
		return fErr
	}
	if rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return rmErr
	}
	return nil
}

// Remove deletes the blob for a reference. A missing blob is success: the
// reclaimer and the reactive deletion path may race to remove the same
// payload.
func (p *PayloadStore) Remove(ref string) error {
	if ref == "" {
		return nil
	}
	if err := validateRef(ref); err != nil {
		return err
	}
	err := os.Remove(p.path(ref))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns all blob references currently present. Higher layers derive
// orphans by diffing against record-store references.
func (p *PayloadStore) List() ([]string, error) {
	entries, err := os.ReadDir(p.root)
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if filepath.Ext(name) != blobExt {
			continue
		}
		ref := strings.TrimSuffix(name, blobExt)
		if validateRef(ref) != nil {
			continue
		}
		// Freshness guard: skip very recent files so an in-flight creation
		// (blob written, record not yet inserted) is never seen as an orphan.
		if info, err := e.Info(); err == nil && time.Since(info.ModTime()) < time.Second {
			continue
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// newRef produces a random 32-char lowercase hex reference.
func newRef() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")
}

// validateRef enforces that a reference is 32 lowercase hex characters. This
// both prevents path traversal (no separators, fixed length) and guarantees
// uniform filenames.
func validateRef(ref string) error {
	if len(ref) != 32 {
		return errors.New("invalid payload ref: must be 32 lowercase hex chars")
	}
	for i := 0; i < len(ref); i++ {
		c := ref[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return errors.New("invalid payload ref: must be 32 lowercase hex chars")
		}
	}
	return nil
}
