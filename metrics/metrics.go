// Copyright 2025 dacapoday
// SPDX-License-Identifier: Apache-2.0

// Package metrics collects the Prometheus counters and histograms this
// engine exposes. Each open filesystem handle owns its own prometheus.Registry
// rather than registering into the global default registry, so multiple
// corefs instances in one process (tests, multi-mount tools) never collide
// on metric names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is the set of counters and histograms one open filesystem handle
// updates as it runs.
type Metrics struct {
	Registry *prometheus.Registry

	TransactionRestarts *prometheus.CounterVec
	JournalReserveWait  prometheus.Histogram
	NodeCacheHits       prometheus.Counter
	NodeCacheMisses     prometheus.Counter
	BfloatFallbacks     prometheus.Counter
}

// New builds a fresh Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		TransactionRestarts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "corefs_transaction_restarts_total",
			Help: "Transaction restarts by sub-kind.",
		}, []string{"subkind"}),
		JournalReserveWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "corefs_journal_reserve_wait_seconds",
			Help:    "Time spent reserving journal space and writing the jset, including the device barrier on flush commits.",
			Buckets: prometheus.DefBuckets,
		}),
		NodeCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corefs_node_cache_hits_total",
			Help: "Key cache lookups on Cached trees served from the cache.",
		}),
		NodeCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corefs_node_cache_misses_total",
			Help: "Key cache lookups on Cached trees that fell through to the tree.",
		}),
		BfloatFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "corefs_bfloat_fallback_total",
			Help: "Times the bfloat fast-path search fell back to a linear scan.",
		}),
	}

	reg.MustRegister(
		m.TransactionRestarts,
		m.JournalReserveWait,
		m.NodeCacheHits,
		m.NodeCacheMisses,
		m.BfloatFallbacks,
	)
	return m
}

// RestartSubKind-keyed record helper kept alongside the counter itself so
// callers don't need to depend on corefs just to stringify a sub-kind.
func (m *Metrics) RecordRestart(subKind string) {
	m.TransactionRestarts.WithLabelValues(subKind).Inc()
}
