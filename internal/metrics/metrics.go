// Package metrics declares the Prometheus collectors exported by plsync.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "plsync"

var (
	// SyncRunsTotal counts finished sync runs by terminal state.
	SyncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_runs_total",
			Help:      "Sync runs by terminal state",
		},
		[]string{"state"},
	)

	// SyncRunDuration observes wall time of sync runs.
	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_run_duration_seconds",
			Help:      "Wall time of sync runs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	// TracksTotal counts track changes applied by sync runs.
	TracksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tracks_total",
			Help:      "Tracks changed by sync runs",
		},
		[]string{"change"},
	)

	// FetchAttemptsTotal counts individual fetch attempts by outcome.
	FetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Fetch attempts by outcome",
		},
		[]string{"outcome"},
	)

	// FetchDuration observes the duration of complete fetches, retries included.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Duration of fetches including retries",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"result"},
	)

	// ManifestCommitsTotal counts manifest commits by result.
	ManifestCommitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifest_commits_total",
			Help:      "Manifest commits by result",
		},
		[]string{"result"},
	)

	// ManifestCacheTotal counts manifest cache lookups by result (hit, miss).
	ManifestCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "manifest_cache_total",
			Help:      "Manifest cache lookups",
		},
		[]string{"result"},
	)
)
