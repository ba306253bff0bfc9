// Package metrics defines and registers the custom Prometheus metrics of the
// admin console. It is the single source of truth for metric names, labels and
// help strings.
//
// All metrics are registered with the default registry through promauto, so
// they are served by the /metrics handler without further setup.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "admin_console"

// ── Authentication metrics ────────────────────────────────────────────────────

// LoginsTotal counts login attempts.
// Label:
//   - result: "ok" or a failure kind (e.g. "invalid_credentials", "profile_unavailable")
var LoginsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "logins_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// LoginDuration measures a full login: sign-in, profile fetch and artifact signing.
var LoginDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "login_duration_seconds",
		Help:      "Duration of login from credential submission to signed session.",
		Buckets:   prometheus.DefBuckets,
	},
)

// RefreshesTotal counts session refreshes after singleflight collapsing.
// Label:
//   - result: "ok" or a failure kind
var RefreshesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refreshes_total",
		Help:      "Total number of access token refreshes, by result.",
	},
	[]string{"result"},
)

// ── Gate metrics ──────────────────────────────────────────────────────────────

// GateDecisionsTotal counts route gate decisions.
// Label:
//   - decision: "allow" or "redirect"
var GateDecisionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Total number of page requests evaluated by the route gate.",
	},
	[]string{"decision"},
)

// ── Audit metrics ─────────────────────────────────────────────────────────────

// AuditEventsTotal counts audit events persisted (or logged when no store is configured).
// Labels:
//   - kind: "login", "refresh" or "logout"
//   - outcome: "ok" or a failure kind
var AuditEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_events_total",
		Help:      "Total number of authentication audit events processed.",
	},
	[]string{"kind", "outcome"},
)

// AuditErrorsTotal counts audit events that could not be written.
var AuditErrorsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_errors_total",
		Help:      "Total number of audit events that failed to persist.",
	},
)

// AuditDroppedTotal counts events dropped because the worker queue was full.
var AuditDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "audit_dropped_total",
		Help:      "Total number of audit events dropped on a full dispatcher queue.",
	},
)

// AuditQueueDepth tracks the current number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var AuditQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "audit_queue_depth",
		Help:      "Current number of audit events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)
