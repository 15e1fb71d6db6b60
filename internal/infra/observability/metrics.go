package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Dispatcher Metrics ─────────────────────────────────────────────────────

// RecordsDispatched counts records routed to account workers.
var RecordsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "txp",
	Subsystem: "dispatcher",
	Name:      "records_total",
	Help:      "Total records routed to account workers by type.",
}, []string{"type"})

// BackpressureWaits counts pushes that found a full account queue.
var BackpressureWaits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "txp",
	Subsystem: "dispatcher",
	Name:      "backpressure_waits_total",
	Help:      "Total times the dispatcher suspended on a full account queue.",
})

// BackpressureWaitSeconds tracks how long the dispatcher stayed suspended.
var BackpressureWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "txp",
	Subsystem: "dispatcher",
	Name:      "backpressure_wait_seconds",
	Help:      "Time the dispatcher spent waiting on a full account queue.",
	Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
})

// ─── Worker Metrics ─────────────────────────────────────────────────────────

// WorkersSpawned counts account workers created.
var WorkersSpawned = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "txp",
	Subsystem: "worker",
	Name:      "spawned_total",
	Help:      "Total account workers created.",
})

// WorkersActive tracks currently running account workers.
var WorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "txp",
	Subsystem: "worker",
	Name:      "active",
	Help:      "Current number of running account workers.",
})

// RecordsApplied counts records that changed account state.
var RecordsApplied = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "txp",
	Subsystem: "worker",
	Name:      "applied_total",
	Help:      "Total records applied to accounts by type.",
}, []string{"type"})

// RecordsSkipped counts semantically invalid records ignored by workers.
var RecordsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "txp",
	Subsystem: "worker",
	Name:      "skipped_total",
	Help:      "Total records skipped by accounts, by reason.",
}, []string{"reason"})

// AccountsLocked counts accounts frozen by a chargeback.
var AccountsLocked = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "txp",
	Subsystem: "worker",
	Name:      "accounts_locked_total",
	Help:      "Total accounts locked by a chargeback.",
})

// ─── Run Metrics ────────────────────────────────────────────────────────────

// Runs counts pipeline runs by result (ok, aborted).
var Runs = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "txp",
	Subsystem: "pipeline",
	Name:      "runs_total",
	Help:      "Total pipeline runs by result.",
}, []string{"result"})

// RunDuration tracks wall time of pipeline runs.
var RunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "txp",
	Subsystem: "pipeline",
	Name:      "run_duration_seconds",
	Help:      "Wall time of pipeline runs.",
	Buckets:   prometheus.DefBuckets,
})

// ─── Trace Metrics ──────────────────────────────────────────────────────────

// SpansRecorded tracks total spans recorded.
var SpansRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "txp",
	Subsystem: "traces",
	Name:      "spans_recorded_total",
	Help:      "Total trace spans recorded.",
})

// SpanErrors tracks error spans.
var SpanErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "txp",
	Subsystem: "traces",
	Name:      "error_spans_total",
	Help:      "Total trace spans with error status.",
})
