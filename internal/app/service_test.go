package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/skm5786/linkvault/internal/domain"
)

// mutClock implements Clock with an adjustable instant.
type mutClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *mutClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *mutClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore is an in-memory ContentStore whose ClaimView honors the same
// atomicity contract as the SQLite adapter (serialized conditional
// increment).
type memStore struct {
	mu     sync.Mutex
	nextID int64
	recs   map[int64]*domain.ContentRecord
	logs   []accessEvent

	insertErr error
	claimErr  error
}

type accessEvent struct {
	contentID int64
	addr, ua  string
}

func newMemStore() *memStore { return &memStore{recs: make(map[int64]*domain.ContentRecord)} }

func (m *memStore) Insert(_ context.Context, rec *domain.ContentRecord) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	m.nextID++
	cp := *rec
	cp.ID = m.nextID
	if rec.File != nil {
		f := *rec.File
		cp.File = &f
	}
	m.recs[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memStore) GetByLinkID(_ context.Context, linkID string) (*domain.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.LinkID.String() == linkID && !r.Deleted {
			cp := *r
			if r.File != nil {
				f := *r.File
				cp.File = &f
			}
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) ClaimView(_ context.Context, id int64, limit int64, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.claimErr != nil {
		return 0, m.claimErr
	}
	r, ok := m.recs[id]
	if !ok || r.Deleted || domain.IsExpired(r.ExpiresAt, now) {
		return 0, domain.ErrLimitReached
	}
	if limit > 0 && r.ViewCount >= limit {
		return 0, domain.ErrLimitReached
	}
	r.ViewCount++
	return r.ViewCount, nil
}

func (m *memStore) SoftDelete(_ context.Context, id int64, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recs[id]; ok && !r.Deleted {
		r.Deleted = true
		t := now
		r.DeletedAt = &t
	}
	return nil
}

func (m *memStore) MarkPayloadPurged(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recs[id]; ok {
		r.PayloadPurged = true
	}
	return nil
}

func (m *memStore) ListExpired(_ context.Context, now time.Time) ([]domain.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ContentRecord
	for _, r := range m.recs {
		if !r.Deleted && domain.IsExpired(r.ExpiresAt, now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) ListUnpurged(context.Context) ([]domain.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ContentRecord
	for _, r := range m.recs {
		if r.Deleted && r.Kind == domain.KindFile && !r.PayloadPurged {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) ListPayloadRefs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, r := range m.recs {
		if r.File != nil {
			out = append(out, r.File.Ref)
		}
	}
	return out, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID int64) ([]domain.ContentRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.ContentRecord
	for _, r := range m.recs {
		if r.OwnerID != nil && *r.OwnerID == ownerID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (m *memStore) LogAccess(_ context.Context, contentID int64, _ time.Time, addr, ua string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, accessEvent{contentID: contentID, addr: addr, ua: ua})
	return nil
}

func (m *memStore) PruneAccessLogs(context.Context, time.Time) (int64, error) { return 0, nil }

func (m *memStore) record(id int64) domain.ContentRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.recs[id]
}

// memPayloads is an in-memory PayloadStore.
type memPayloads struct {
	sync.Mutex
	seq       int // sequence for refs
	blobs     map[string][]byte
	removeErr error
}

func newMemPayloads() *memPayloads { return &memPayloads{blobs: make(map[string][]byte)} }

func (p *memPayloads) Save(r io.Reader, size int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, size))
	if err != nil {
		return "", err
	}
	p.Lock()
	defer p.Unlock()
	p.seq++
	ref := fmt.Sprintf("blob-%d", p.seq)
	p.blobs[ref] = data
	return ref, nil
}

func (p *memPayloads) Open(ref string) (io.ReadCloser, error) {
	p.Lock()
	defer p.Unlock()
	b, ok := p.blobs[ref]
	if !ok {
		return nil, errors.New("blob missing")
	}
	return io.NopCloser(bytes.NewReader(b)), nil
}

func (p *memPayloads) Consume(ref string) (io.ReadCloser, error) {
	p.Lock()
	defer p.Unlock()
	b, ok := p.blobs[ref]
	if !ok {
		return nil, errors.New("blob missing")
	}
	return &consumeReader{Reader: bytes.NewReader(b), p: p, ref: ref}, nil
}

type consumeReader struct {
	io.Reader
	p   *memPayloads
	ref string
}

func (c *consumeReader) Close() error {
	c.p.Lock()
	defer c.p.Unlock()
	delete(c.p.blobs, c.ref)
	return nil
}

func (p *memPayloads) Remove(ref string) error {
	p.Lock()
	defer p.Unlock()
	if p.removeErr != nil {
		return p.removeErr
	}
	delete(p.blobs, ref) // absent is success
	return nil
}

func (p *memPayloads) List() ([]string, error) {
	p.Lock()
	defer p.Unlock()
	var out []string
	for ref := range p.blobs {
		out = append(out, ref)
	}
	return out, nil
}

func (p *memPayloads) has(ref string) bool {
	p.Lock()
	defer p.Unlock()
	_, ok := p.blobs[ref]
	return ok
}

func newTestService() (*Service, *memStore, *memPayloads, *mutClock) {
	ms := newMemStore()
	mp := newMemPayloads()
	clk := &mutClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	svc := &Service{
		Records:        ms,
		Payloads:       mp,
		Clock:          clk,
		MaxUploadBytes: 1 << 20,
		MaxLifetime:    30 * 24 * time.Hour,
		DefaultExpiry:  10,
	}
	return svc, ms, mp, clk
}

func TestCreateTextSuccess(t *testing.T) {
	svc, ms, _, clk := newTestService()
	owner := int64(7)
	created, err := svc.CreateText(context.Background(), &owner, "hello", CreateOptions{ExpiryMinutes: 10, Secret: "pw", MaxViews: 3})
	if err != nil {
		t.Fatalf("CreateText: %v", err)
	}
	if !created.LinkID.Valid() {
		t.Errorf("invalid link id %q", created.LinkID)
	}
	if want := clk.Now().Add(10 * time.Minute); !created.ExpiresAt.Equal(want) {
		t.Errorf("expiry = %v, want %v", created.ExpiresAt, want)
	}
	rec := ms.record(1)
	if rec.SecretHash == "" || rec.SecretHash == "pw" {
		t.Errorf("secret not hashed: %q", rec.SecretHash)
	}
	if rec.OwnerID == nil || *rec.OwnerID != 7 {
		t.Errorf("owner not recorded")
	}
	if rec.Kind != domain.KindText || rec.Text != "hello" {
		t.Errorf("text not stored: %+v", rec)
	}
}

func TestCreateTextDefaultExpiry(t *testing.T) {
	svc, _, _, clk := newTestService()
	created, err := svc.CreateText(context.Background(), nil, "hi", CreateOptions{})
	if err != nil {
		t.Fatalf("CreateText: %v", err)
	}
	if want := clk.Now().Add(10 * time.Minute); !created.ExpiresAt.Equal(want) {
		t.Errorf("default expiry = %v, want %v", created.ExpiresAt, want)
	}
}

func TestCreateTextInvalid(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	if _, err := svc.CreateText(ctx, nil, "   ", CreateOptions{}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("blank text: %v", err)
	}
	if _, err := svc.CreateText(ctx, nil, "x", CreateOptions{MaxViews: -1}); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("negative cap: %v", err)
	}
	if _, err := svc.CreateText(ctx, nil, "x", CreateOptions{ExpiryMinutes: -5}); !errors.Is(err, domain.ErrTTLInvalid) {
		t.Errorf("negative expiry: %v", err)
	}
	if _, err := svc.CreateText(ctx, nil, "x", CreateOptions{ExpiryMinutes: 1e12}); !errors.Is(err, domain.ErrTTLInvalid) {
		t.Errorf("huge expiry: %v", err)
	}
}

func TestCreateFile(t *testing.T) {
	svc, ms, mp, _ := newTestService()
	ctx := context.Background()
	up := FileUpload{Reader: bytes.NewReader([]byte("payload")), Name: "doc.pdf", Size: 7, MimeType: "application/pdf"}
	created, err := svc.CreateFile(ctx, nil, up, CreateOptions{ExpiryMinutes: 5})
	if err != nil {
		t.Fatalf("CreateFile: %v", err)
	}
	if created.Kind != domain.KindFile {
		t.Errorf("kind = %v", created.Kind)
	}
	rec := ms.record(1)
	if rec.File == nil || rec.File.Name != "doc.pdf" || rec.File.Size != 7 {
		t.Fatalf("file payload not recorded: %+v", rec.File)
	}
	if !mp.has(rec.File.Ref) {
		t.Error("payload missing from store")
	}
}

func TestCreateFileRejections(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	mk := func(name string, size int64) FileUpload {
		return FileUpload{Reader: bytes.NewReader(make([]byte, size)), Name: name, Size: size}
	}
	if _, err := svc.CreateFile(ctx, nil, mk("evil.exe", 10), CreateOptions{ExpiryMinutes: 5}); !errors.Is(err, ErrBlockedFileType) {
		t.Errorf("exe upload: %v", err)
	}
	if _, err := svc.CreateFile(ctx, nil, mk("big.bin", 2<<20), CreateOptions{ExpiryMinutes: 5}); !errors.Is(err, ErrSizeExceeded) {
		t.Errorf("oversize upload: %v", err)
	}
	if _, err := svc.CreateFile(ctx, nil, mk("zero.bin", 0), CreateOptions{ExpiryMinutes: 5}); !errors.Is(err, ErrSizeExceeded) {
		t.Errorf("empty upload: %v", err)
	}
}

func TestCreateFileInsertFailureCleansPayload(t *testing.T) {
	svc, ms, mp, _ := newTestService()
	ms.insertErr = errors.New("db down")
	up := FileUpload{Reader: bytes.NewReader([]byte("x")), Name: "a.txt", Size: 1}
	_, err := svc.CreateFile(context.Background(), nil, up, CreateOptions{ExpiryMinutes: 5})
	if err == nil {
		t.Fatal("expected error")
	}
	if refs, _ := mp.List(); len(refs) != 0 {
		t.Errorf("orphan payload left behind: %v", refs)
	}
}

func TestAccessNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()
	if _, err := svc.Access(context.Background(), "abcdef123456", "", AccessMeta{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown link: %v", err)
	}
	if _, err := svc.Access(context.Background(), "!!!", "", AccessMeta{}); !errors.Is(err, domain.ErrInvalidID) {
		t.Errorf("malformed link: %v", err)
	}
}

func TestAccessSecretGating(t *testing.T) {
	svc, ms, _, _ := newTestService()
	ctx := context.Background()
	created, err := svc.CreateText(ctx, nil, "guarded", CreateOptions{ExpiryMinutes: 10, Secret: "open sesame"})
	if err != nil {
		t.Fatal(err)
	}
	link := created.LinkID.String()

	if _, err := svc.Access(ctx, link, "", AccessMeta{}); !errors.Is(err, domain.ErrSecretRequired) {
		t.Errorf("missing secret: %v", err)
	}
	if _, err := svc.Access(ctx, link, "wrong", AccessMeta{}); !errors.Is(err, domain.ErrSecretIncorrect) {
		t.Errorf("wrong secret: %v", err)
	}
	// Gating failures must not consume views.
	if rec := ms.record(1); rec.ViewCount != 0 {
		t.Errorf("view count mutated by gated attempts: %d", rec.ViewCount)
	}
	view, err := svc.Access(ctx, link, "open sesame", AccessMeta{})
	if err != nil {
		t.Fatalf("correct secret: %v", err)
	}
	if view.Text != "guarded" || view.ViewCount != 1 {
		t.Errorf("unexpected view %+v", view)
	}
}

func TestAccessNoSecretAcceptsAnyCandidate(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	created, _ := svc.CreateText(ctx, nil, "open", CreateOptions{ExpiryMinutes: 10})
	if _, err := svc.Access(ctx, created.LinkID.String(), "whatever", AccessMeta{}); err != nil {
		t.Errorf("candidate against open gate: %v", err)
	}
	if _, err := svc.Access(ctx, created.LinkID.String(), "", AccessMeta{}); err != nil {
		t.Errorf("no candidate against open gate: %v", err)
	}
}

func TestAccessMaxViewsScenario(t *testing.T) {
	svc, ms, _, _ := newTestService()
	ctx := context.Background()
	created, err := svc.CreateText(ctx, nil, "twice", CreateOptions{ExpiryMinutes: 10, MaxViews: 2})
	if err != nil {
		t.Fatal(err)
	}
	link := created.LinkID.String()

	v1, err := svc.Access(ctx, link, "", AccessMeta{})
	if err != nil || v1.ViewCount != 1 || v1.Terminal {
		t.Fatalf("first access: %+v, %v", v1, err)
	}
	v2, err := svc.Access(ctx, link, "", AccessMeta{})
	if err != nil || v2.ViewCount != 2 || !v2.Terminal {
		t.Fatalf("second access: %+v, %v", v2, err)
	}
	if rec := ms.record(1); !rec.Deleted {
		t.Error("record not retired after cap reached")
	}
	_, err = svc.Access(ctx, link, "", AccessMeta{})
	if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrLimitReached) {
		t.Errorf("third access: %v", err)
	}
}

func TestAccessOneTimeScenario(t *testing.T) {
	svc, ms, _, _ := newTestService()
	ctx := context.Background()
	created, err := svc.CreateText(ctx, nil, "once", CreateOptions{ExpiryMinutes: 60, OneTime: true})
	if err != nil {
		t.Fatal(err)
	}
	link := created.LinkID.String()
	view, err := svc.Access(ctx, link, "", AccessMeta{})
	if err != nil {
		t.Fatalf("first access: %v", err)
	}
	if view.Text != "once" || !view.Terminal {
		t.Fatalf("unexpected view %+v", view)
	}
	if rec := ms.record(1); !rec.Deleted {
		t.Error("one-time record not retired")
	}
	_, err = svc.Access(ctx, link, "", AccessMeta{})
	if !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrLimitReached) {
		t.Errorf("second access: %v", err)
	}
}

func TestAccessExpired(t *testing.T) {
	svc, ms, _, clk := newTestService()
	ctx := context.Background()
	created, err := svc.CreateText(ctx, nil, "fleeting", CreateOptions{ExpiryMinutes: 0.01}) // 600ms
	if err != nil {
		t.Fatal(err)
	}
	clk.advance(time.Second)
	_, err = svc.Access(ctx, created.LinkID.String(), "", AccessMeta{})
	if !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if rec := ms.record(1); !rec.Deleted {
		t.Error("expired record not retired on lazy path")
	}
}

func TestAccessExpiredFilePurgesPayload(t *testing.T) {
	svc, ms, mp, clk := newTestService()
	ctx := context.Background()
	up := FileUpload{Reader: bytes.NewReader([]byte("data")), Name: "f.txt", Size: 4}
	created, err := svc.CreateFile(ctx, nil, up, CreateOptions{ExpiryMinutes: 1})
	if err != nil {
		t.Fatal(err)
	}
	clk.advance(2 * time.Minute)
	if _, err := svc.Access(ctx, created.LinkID.String(), "", AccessMeta{}); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	rec := ms.record(1)
	if !rec.Deleted || !rec.PayloadPurged {
		t.Errorf("record not fully retired: %+v", rec)
	}
	if mp.has(rec.File.Ref) {
		t.Error("payload still present after retire")
	}
}

func TestConcurrentAccessNeverExceedsCap(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	const attempts = 64
	const capN = 3
	created, err := svc.CreateText(ctx, nil, "contended", CreateOptions{ExpiryMinutes: 10, MaxViews: capN})
	if err != nil {
		t.Fatal(err)
	}
	link := created.LinkID.String()

	var wg sync.WaitGroup
	var successes int64
	var smu sync.Mutex
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Access(ctx, link, "", AccessMeta{})
			if err == nil {
				smu.Lock()
				successes++
				smu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrLimitReached) && !errors.Is(err, domain.ErrNotFound) {
				t.Errorf("unexpected outcome: %v", err)
			}
		}()
	}
	wg.Wait()
	if successes != capN {
		t.Fatalf("got %d successes, want exactly %d", successes, capN)
	}
}

func TestConcurrentOneTimeExactlyOnce(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	created, err := svc.CreateText(ctx, nil, "burn", CreateOptions{ExpiryMinutes: 10, OneTime: true})
	if err != nil {
		t.Fatal(err)
	}
	link := created.LinkID.String()

	var wg sync.WaitGroup
	var successes int64
	var smu sync.Mutex
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Access(ctx, link, "", AccessMeta{}); err == nil {
				smu.Lock()
				successes++
				smu.Unlock()
			}
		}()
	}
	wg.Wait()
	if successes != 1 {
		t.Fatalf("one-time link succeeded %d times", successes)
	}
}

func TestDownloadFlow(t *testing.T) {
	svc, ms, mp, _ := newTestService()
	ctx := context.Background()
	up := FileUpload{Reader: bytes.NewReader([]byte("file-bytes")), Name: "r.txt", Size: 10, MimeType: "text/plain"}
	created, err := svc.CreateFile(ctx, nil, up, CreateOptions{ExpiryMinutes: 10, MaxViews: 2})
	if err != nil {
		t.Fatal(err)
	}
	link := created.LinkID.String()

	fp, rc, err := svc.Download(ctx, link, "", AccessMeta{})
	if err != nil {
		t.Fatalf("first download: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "file-bytes" || fp.Name != "r.txt" {
		t.Errorf("unexpected download %q %+v", got, fp)
	}
	if rec := ms.record(1); rec.ViewCount != 1 || rec.Deleted {
		t.Errorf("download must count a view: %+v", rec)
	}

	// Terminal download: bytes still served, payload gone after Close.
	fp, rc, err = svc.Download(ctx, link, "", AccessMeta{})
	if err != nil {
		t.Fatalf("terminal download: %v", err)
	}
	got, _ = io.ReadAll(rc)
	rc.Close()
	if string(got) != "file-bytes" {
		t.Errorf("terminal download bytes %q", got)
	}
	rec := ms.record(1)
	if !rec.Deleted {
		t.Error("record not retired after terminal download")
	}
	if mp.has(fp.Ref) {
		t.Error("payload survived delete-on-close")
	}

	if _, _, err := svc.Download(ctx, link, "", AccessMeta{}); !errors.Is(err, domain.ErrNotFound) && !errors.Is(err, domain.ErrLimitReached) {
		t.Errorf("post-terminal download: %v", err)
	}
}

func TestDownloadTextIsNotFound(t *testing.T) {
	svc, ms, _, _ := newTestService()
	ctx := context.Background()
	created, _ := svc.CreateText(ctx, nil, "not a file", CreateOptions{ExpiryMinutes: 10})
	if _, _, err := svc.Download(ctx, created.LinkID.String(), "", AccessMeta{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("download of text: %v", err)
	}
	if rec := ms.record(1); rec.ViewCount != 0 {
		t.Errorf("kind mismatch consumed a view: %d", rec.ViewCount)
	}
}

func TestManualDelete(t *testing.T) {
	svc, ms, mp, _ := newTestService()
	ctx := context.Background()
	owner := int64(1)
	up := FileUpload{Reader: bytes.NewReader([]byte("mine")), Name: "m.txt", Size: 4}
	created, err := svc.CreateFile(ctx, &owner, up, CreateOptions{ExpiryMinutes: 10})
	if err != nil {
		t.Fatal(err)
	}
	link := created.LinkID.String()

	if err := svc.Delete(ctx, link, 2); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("delete by non-owner: %v", err)
	}
	if err := svc.Delete(ctx, link, 1); err != nil {
		t.Fatalf("delete by owner: %v", err)
	}
	rec := ms.record(1)
	if !rec.Deleted || mp.has(rec.File.Ref) {
		t.Errorf("not fully retired: %+v", rec)
	}
	// Terminated content is invisible, same as never existing.
	if err := svc.Delete(ctx, link, 1); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("second delete: %v", err)
	}
}

func TestManualDeleteAnonymousContent(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	created, _ := svc.CreateText(ctx, nil, "anon", CreateOptions{ExpiryMinutes: 10})
	if err := svc.Delete(ctx, created.LinkID.String(), 1); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("anonymous content must not be manually deletable: %v", err)
	}
}

func TestRetireIdempotent(t *testing.T) {
	svc, ms, _, _ := newTestService()
	ctx := context.Background()
	created, _ := svc.CreateText(ctx, nil, "twice-deleted", CreateOptions{ExpiryMinutes: 10})
	_ = created
	rec := ms.record(1)
	svc.retire(ctx, &rec)
	first := ms.record(1)
	svc.retire(ctx, &rec)
	second := ms.record(1)
	if !first.Deleted || !second.Deleted {
		t.Fatal("record not deleted")
	}
	if first.DeletedAt == nil || second.DeletedAt == nil || !first.DeletedAt.Equal(*second.DeletedAt) {
		t.Error("second retire must be a no-op")
	}
}

func TestFailedPayloadRemovalLeftForReclaimer(t *testing.T) {
	svc, ms, mp, clk := newTestService()
	ctx := context.Background()
	up := FileUpload{Reader: bytes.NewReader([]byte("stuck")), Name: "s.txt", Size: 5}
	created, err := svc.CreateFile(ctx, nil, up, CreateOptions{ExpiryMinutes: 1})
	if err != nil {
		t.Fatal(err)
	}
	mp.removeErr = errors.New("disk unhappy")
	clk.advance(2 * time.Minute)
	if _, err := svc.Access(ctx, created.LinkID.String(), "", AccessMeta{}); !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected expired: %v", err)
	}
	rec := ms.record(1)
	if !rec.Deleted || rec.PayloadPurged {
		t.Fatalf("expected soft-deleted unpurged record: %+v", rec)
	}
	unpurged, _ := ms.ListUnpurged(ctx)
	if len(unpurged) != 1 {
		t.Errorf("reclaimer retry set should contain the record, got %d", len(unpurged))
	}
}

func TestListOwned(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	owner := int64(9)
	if _, err := svc.CreateText(ctx, &owner, "a", CreateOptions{ExpiryMinutes: 10, Secret: "pw", OneTime: true}); err != nil {
		t.Fatal(err)
	}
	other := int64(10)
	if _, err := svc.CreateText(ctx, &other, "b", CreateOptions{ExpiryMinutes: 10}); err != nil {
		t.Fatal(err)
	}
	sums, err := svc.ListOwned(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(sums) != 1 {
		t.Fatalf("got %d summaries, want 1", len(sums))
	}
	s := sums[0]
	if !s.HasSecret || !s.OneTime || s.Kind != domain.KindText {
		t.Errorf("summary fields wrong: %+v", s)
	}
}

func TestOwnedStats(t *testing.T) {
	svc, _, _, clk := newTestService()
	ctx := context.Background()
	owner := int64(9)

	// Still live.
	if _, err := svc.CreateText(ctx, &owner, "live", CreateOptions{ExpiryMinutes: 60}); err != nil {
		t.Fatal(err)
	}
	// Viewed twice, then capped out.
	capped, err := svc.CreateText(ctx, &owner, "capped", CreateOptions{ExpiryMinutes: 60, MaxViews: 2})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Access(ctx, capped.LinkID.String(), "", AccessMeta{}); err != nil {
			t.Fatal(err)
		}
	}
	// Lapses before the stats read.
	if _, err := svc.CreateText(ctx, &owner, "brief", CreateOptions{ExpiryMinutes: 0.01}); err != nil {
		t.Fatal(err)
	}
	// Someone else's record must not count.
	other := int64(10)
	if _, err := svc.CreateText(ctx, &other, "notmine", CreateOptions{ExpiryMinutes: 60}); err != nil {
		t.Fatal(err)
	}

	clk.advance(time.Second)
	stats, err := svc.OwnedStats(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalUploads != 3 {
		t.Errorf("TotalUploads = %d, want 3", stats.TotalUploads)
	}
	if stats.ActiveUploads != 1 {
		t.Errorf("ActiveUploads = %d, want 1", stats.ActiveUploads)
	}
	if stats.ExpiredUploads != 2 {
		t.Errorf("ExpiredUploads = %d, want 2", stats.ExpiredUploads)
	}
	if stats.TotalViews != 2 {
		t.Errorf("TotalViews = %d, want 2", stats.TotalViews)
	}
}

func TestAccessLoggedOnSuccessOnly(t *testing.T) {
	svc, ms, _, _ := newTestService()
	ctx := context.Background()
	created, _ := svc.CreateText(ctx, nil, "logme", CreateOptions{ExpiryMinutes: 10, Secret: "pw"})
	link := created.LinkID.String()
	_, _ = svc.Access(ctx, link, "", AccessMeta{})     // secret required
	_, _ = svc.Access(ctx, link, "nope", AccessMeta{}) // secret incorrect
	if len(ms.logs) != 0 {
		t.Fatalf("gated attempts must not be logged as accesses: %d", len(ms.logs))
	}
	if _, err := svc.Access(ctx, link, "pw", AccessMeta{RemoteAddr: "1.2.3.4", UserAgent: "ua"}); err != nil {
		t.Fatal(err)
	}
	if len(ms.logs) != 1 || ms.logs[0].addr != "1.2.3.4" {
		t.Fatalf("access event missing: %+v", ms.logs)
	}
}
