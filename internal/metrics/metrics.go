// Package metrics exposes Prometheus instrumentation for the content
// lifecycle service. Counters here are observational only; nothing in the
// access-control decision path reads them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ContentCreated counts records created, by kind (text/file).
	ContentCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkvault_content_created_total",
			Help: "Number of content records created",
		},
		[]string{"kind"},
	)

	// AccessOutcomes counts access attempts by terminal outcome
	// (success, not_found, expired, limit_reached, secret_required,
	// secret_incorrect, storage_failure).
	AccessOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkvault_access_outcomes_total",
			Help: "Number of access attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ReclaimerCycles counts completed reclaimer sweeps.
	ReclaimerCycles = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkvault_reclaimer_cycles_total",
			Help: "Number of completed reclaimer cycles",
		},
	)

	// ReclaimedRecords counts records retired by the reclaimer (as opposed
	// to the lazy in-request path).
	ReclaimedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkvault_reclaimed_records_total",
			Help: "Number of expired records retired by the reclaimer",
		},
	)

	// PurgedPayloads counts deferred payload removals completed by the
	// reclaimer's retry pass.
	PurgedPayloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "linkvault_purged_payloads_total",
			Help: "Number of payload purges completed by the reclaimer",
		},
	)

	// ReclaimerCycleSeconds observes sweep durations.
	ReclaimerCycleSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkvault_reclaimer_cycle_duration_seconds",
			Help:    "Duration of reclaimer cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Handler returns the /metrics endpoint handler for the default registry.
func Handler() http.Handler { return promhttp.Handler() }
