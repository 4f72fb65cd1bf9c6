// Package reclaimer implements background retirement of expired content and
// cleanup of its binary payloads. It operates independently from the main app
// Service so lifecycle sweeps (expiry, purge retries, orphan reconciliation,
// access-log pruning) stay isolated from request path logic.
package reclaimer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/skm5786/linkvault/internal/domain"
	"github.com/skm5786/linkvault/internal/metrics"
)

// Records abstracts the minimal record-store operations a sweep requires.
// The request path shares the same underlying store; only the reclaimer
// walks it in bulk.
type Records interface {
	ListExpired(ctx context.Context, now time.Time) ([]domain.ContentRecord, error)
	ListUnpurged(ctx context.Context) ([]domain.ContentRecord, error)
	ListPayloadRefs(ctx context.Context) ([]string, error)
	SoftDelete(ctx context.Context, id int64, now time.Time) error
	MarkPayloadPurged(ctx context.Context, id int64) error
	PruneAccessLogs(ctx context.Context, before time.Time) (int64, error)
}

// Payloads abstracts blob removal and enumeration for the sweep.
type Payloads interface {
	Remove(ref string) error
	List() ([]string, error)
}

// Clock abstracts time so cycle boundaries are testable.
type Clock interface {
	Now() time.Time
}

// Config holds tunables for the Reclaimer.
type Config struct {
	Interval     time.Duration // how often a cycle begins
	LogRetention time.Duration // access events older than this are pruned
	Logger       *slog.Logger  // optional logger (defaults to slog.Default())
	Clock        Clock         // optional clock (defaults to wall clock)
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Reclaimer encapsulates the background cleanup loop.
type Reclaimer struct {
	records  Records
	payloads Payloads
	cfg      Config

	ticker *time.Ticker
	stopCh chan struct{}
	doneCh chan struct{}
	once   sync.Once
}

// New constructs but does not start a Reclaimer.
func New(records Records, payloads Payloads, cfg Config) *Reclaimer {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.LogRetention <= 0 {
		cfg.LogRetention = 30 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = realClock{}
	}
	return &Reclaimer{
		records:  records,
		payloads: payloads,
		cfg:      cfg,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the reclaimer loop in a new goroutine.
func (r *Reclaimer) Start(ctx context.Context) {
	if r.ticker != nil {
		return
	} // already started
	r.ticker = time.NewTicker(r.cfg.Interval)
	go r.loop(ctx)
}

// Stop signals the loop to exit and waits for completion.
func (r *Reclaimer) Stop() {
	r.once.Do(func() { close(r.stopCh) })
	<-r.doneCh
}

func (r *Reclaimer) loop(ctx context.Context) {
	log := r.cfg.Logger.With("domain", "reclaimer")
	defer func() {
		if r.ticker != nil {
			r.ticker.Stop()
		}
		close(r.doneCh)
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("reclaimer stop", "reason", "context_cancel")
			return
		case <-r.stopCh:
			log.Info("reclaimer stop", "reason", "stop_signal")
			return
		case <-r.ticker.C:
			r.runCycle(ctx)
		}
	}
}

// runCycle performs one full sweep: retire expired records, retry pending
// payload purges, reconcile orphan blobs, and prune stale access events.
// Per-record failures are logged and skipped; the next cycle retries them.
func (r *Reclaimer) runCycle(ctx context.Context) {
	start := time.Now()
	log := r.cfg.Logger.With("domain", "reclaimer", "action", "cycle")
	now := r.cfg.Clock.Now()

	retired := r.retireExpired(ctx, now, log)
	purged := r.purgePending(ctx, log)
	orphans := r.reconcileOrphans(ctx, log)

	pruned, err := r.records.PruneAccessLogs(ctx, now.Add(-r.cfg.LogRetention))
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error("prune access logs", "error", err)
	}

	metrics.ReclaimerCycles.Inc()
	metrics.ReclaimerCycleSeconds.Observe(time.Since(start).Seconds())
	log.Info("cycle complete",
		"retired", retired, "purged", purged, "orphans", orphans,
		"logs_pruned", pruned, "ms", time.Since(start).Milliseconds())
}

// retireExpired soft-deletes every live record whose expiry has passed and
// removes its payload. The purge confirmation is a separate step so a failed
// removal is retried next cycle rather than lost.
func (r *Reclaimer) retireExpired(ctx context.Context, now time.Time, log *slog.Logger) int {
	expired, err := r.records.ListExpired(ctx, now)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("list expired", "error", err)
		}
		return 0
	}
	retired := 0
	for i := range expired {
		rec := &expired[i]
		if err := r.records.SoftDelete(ctx, rec.ID, now); err != nil {
			log.Error("retire", "link_id", rec.LinkID, "error", err)
			continue
		}
		retired++
		metrics.ReclaimedRecords.Inc()
		r.purgeRecord(ctx, rec, log)
	}
	return retired
}

// purgePending retries payload removal for records that were retired but
// whose blob deletion never got confirmed.
func (r *Reclaimer) purgePending(ctx context.Context, log *slog.Logger) int {
	pending, err := r.records.ListUnpurged(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("list unpurged", "error", err)
		}
		return 0
	}
	purged := 0
	for i := range pending {
		if r.purgeRecord(ctx, &pending[i], log) {
			purged++
		}
	}
	return purged
}

// purgeRecord removes a record's blob and records the confirmation. An
// already-absent blob counts as success. Text records have no blob and are
// confirmed immediately.
func (r *Reclaimer) purgeRecord(ctx context.Context, rec *domain.ContentRecord, log *slog.Logger) bool {
	if rec.File != nil {
		if err := r.payloads.Remove(rec.File.Ref); err != nil {
			log.Error("purge payload", "link_id", rec.LinkID, "ref", rec.File.Ref, "error", err)
			return false
		}
		metrics.PurgedPayloads.Inc()
	}
	if err := r.records.MarkPayloadPurged(ctx, rec.ID); err != nil {
		log.Error("mark purged", "link_id", rec.LinkID, "error", err)
		return false
	}
	return true
}

// reconcileOrphans removes blobs no record references. The payload store's
// listing excludes freshly written blobs, so an in-flight creation (blob
// saved, record not yet inserted) is never swept.
func (r *Reclaimer) reconcileOrphans(ctx context.Context, log *slog.Logger) int {
	refs, err := r.records.ListPayloadRefs(ctx)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			log.Error("list payload refs", "error", err)
		}
		return 0
	}
	known := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		known[ref] = struct{}{}
	}
	blobs, err := r.payloads.List()
	if err != nil {
		log.Error("list blobs", "error", err)
		return 0
	}
	removed := 0
	for _, ref := range blobs {
		if _, ok := known[ref]; ok {
			continue
		}
		if err := r.payloads.Remove(ref); err != nil {
			log.Error("remove orphan", "ref", ref, "error", err)
			continue
		}
		removed++
	}
	return removed
}
