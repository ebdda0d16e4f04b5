// Package metrics exposes Prometheus counters for the sync pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StanzasTotal counts inbound stanzas by classified category.
	StanzasTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsync_stanzas_total",
		Help: "Inbound stanzas by classified category.",
	}, []string{"category"})

	// AdmissionsTotal counts message admission verdicts.
	AdmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsync_admissions_total",
		Help: "Message admission verdicts (accepted, duplicate, blocked).",
	}, []string{"verdict"})

	// DroppedTotal counts stanzas dropped before admission.
	DroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roomsync_dropped_total",
		Help: "Stanzas dropped before admission (malformed, unknown).",
	}, []string{"reason"})

	// CacheWriteFailures counts persistence failures; in-memory state still
	// updates and is reconciled on the next full refresh.
	CacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_cache_write_failures_total",
		Help: "Cache writes that failed after the in-memory update.",
	})

	// MissingSettlementRefs counts settlement patches whose referenced
	// message was not present.
	MissingSettlementRefs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_missing_settlement_refs_total",
		Help: "Settlement patches referencing an unknown message id.",
	})

	// SummaryRebuilds counts bulk summary rebuilds.
	SummaryRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "roomsync_summary_rebuilds_total",
		Help: "Bulk room summary rebuilds after full archive sync.",
	})
)
