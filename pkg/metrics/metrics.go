// Package metrics defines the Prometheus collectors used by an expansion run
// and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for a run.
type Metrics struct {
	TokensIndexedTotal   *prometheus.CounterVec
	IndexBuildDuration   *prometheus.HistogramVec
	SentencesTotal       prometheus.Counter
	SequencesTotal       prometheus.Counter
	ExtensionsTotal      *prometheus.CounterVec
	SequenceLength       prometheus.Histogram
	SequenceSuspicion    prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	CacheStoresTotal     prometheus.Counter
	SinkWritesTotal      *prometheus.CounterVec
	PhaseDurationSeconds *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg. Tests pass a fresh
// prometheus.NewRegistry(); the command passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TokensIndexedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expander_tokens_indexed_total",
				Help: "Total corpus tokens indexed, by corpus side.",
			},
			[]string{"side"},
		),
		IndexBuildDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "expander_index_build_seconds",
				Help:    "Corpus index build latency in seconds, by corpus side and source (build, snapshot).",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
			[]string{"side", "source"},
		),
		SentencesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expander_sentences_total",
				Help: "Total ERR sentences expanded.",
			},
		),
		SequencesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expander_sequences_total",
				Help: "Total finalized sequences emitted.",
			},
		),
		ExtensionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expander_extensions_total",
				Help: "Total accepted extension steps by unit kind (word, tag).",
			},
			[]string{"kind"},
		),
		SequenceLength: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "expander_sequence_length",
				Help:    "Length in units of finalized sequences.",
				Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10, 15},
			},
		),
		SequenceSuspicion: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "expander_sequence_suspicion",
				Help:    "Suspicion score of finalized sequences.",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expander_cache_hits_total",
				Help: "Total first-step expansion cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expander_cache_misses_total",
				Help: "Total first-step expansion cache misses.",
			},
		),
		CacheStoresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "expander_cache_stores_total",
				Help: "Total expansion cache entries stored.",
			},
		),
		SinkWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "expander_sink_writes_total",
				Help: "Total sentence writes per sink by status.",
			},
			[]string{"sink", "status"},
		),
		PhaseDurationSeconds: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "expander_phase_duration_seconds",
				Help: "Wall-clock duration of the last run's phases.",
			},
			[]string{"phase"},
		),
	}

	reg.MustRegister(
		m.TokensIndexedTotal,
		m.IndexBuildDuration,
		m.SentencesTotal,
		m.SequencesTotal,
		m.ExtensionsTotal,
		m.SequenceLength,
		m.SequenceSuspicion,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheStoresTotal,
		m.SinkWritesTotal,
		m.PhaseDurationSeconds,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler for g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
