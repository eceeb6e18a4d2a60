// Package metrics provides Prometheus metrics for the statute index
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the indexing and retrieval paths
type Metrics struct {
	// Indexing pipeline metrics
	PipelineRunsTotal       *prometheus.CounterVec
	ChunksProducedTotal     prometheus.Counter
	ChunkSizeWarningsTotal  prometheus.Counter
	StructuralWarningsTotal *prometheus.CounterVec

	// Index writer metrics
	WriteOperationsTotal *prometheus.CounterVec
	WriteDuration        *prometheus.HistogramVec
	WriteRetriesTotal    prometheus.Counter
	UnwrittenChunksTotal prometheus.Counter

	// Embedding metrics
	EmbedRequestsTotal *prometheus.CounterVec
	EmbedDuration      prometheus.Histogram

	// Retrieval metrics
	RetrievalsTotal    *prometheus.CounterVec
	RetrievalDuration  prometheus.Histogram
	CandidatesReturned prometheus.Histogram
	SiblingMergesTotal prometheus.Counter

	// Store metrics
	StoreRecordsTotal prometheus.Gauge

	// Server metrics
	ServerUptimeSeconds prometheus.Gauge
	ServerStartTime     time.Time
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	m := &Metrics{
		ServerStartTime: time.Now(),
	}

	m.PipelineRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexindex_pipeline_runs_total",
			Help: "Total number of indexing pipeline runs",
		},
		[]string{"status"},
	)

	m.ChunksProducedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexindex_chunks_produced_total",
			Help: "Total number of chunks produced by the chunker",
		},
	)

	m.ChunkSizeWarningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexindex_chunk_size_warnings_total",
			Help: "Total number of oversized chunks emitted whole",
		},
	)

	m.StructuralWarningsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexindex_structural_warnings_total",
			Help: "Total number of recovered structural anomalies by kind",
		},
		[]string{"kind"},
	)

	m.WriteOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexindex_write_operations_total",
			Help: "Total number of vector store write operations",
		},
		[]string{"operation", "status"},
	)

	m.WriteDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lexindex_write_duration_seconds",
			Help:    "Duration of vector store write operations in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"operation"},
	)

	m.WriteRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexindex_write_retries_total",
			Help: "Total number of write retries after transient store failures",
		},
	)

	m.UnwrittenChunksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexindex_unwritten_chunks_total",
			Help: "Total number of chunks surfaced as unwritten after retries",
		},
	)

	m.EmbedRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexindex_embed_requests_total",
			Help: "Total number of embedding gateway calls",
		},
		[]string{"status"},
	)

	m.EmbedDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lexindex_embed_duration_seconds",
			Help:    "Duration of embedding gateway calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.RetrievalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lexindex_retrievals_total",
			Help: "Total number of retrieval calls",
		},
		[]string{"outcome"},
	)

	m.RetrievalDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lexindex_retrieval_duration_seconds",
			Help:    "Duration of retrieval calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	m.CandidatesReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "lexindex_candidates_returned",
			Help:    "Number of passages returned per retrieval",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		},
	)

	m.SiblingMergesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lexindex_sibling_merges_total",
			Help: "Total number of adjacent sibling chunks merged during rerank",
		},
	)

	m.StoreRecordsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lexindex_store_records_total",
			Help: "Current number of records in the vector store",
		},
	)

	m.ServerUptimeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lexindex_server_uptime_seconds",
			Help: "Server uptime in seconds",
		},
	)

	go m.updateUptime()

	return m
}

// updateUptime periodically updates the server uptime metric
func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		m.ServerUptimeSeconds.Set(time.Since(m.ServerStartTime).Seconds())
	}
}

// RecordPipelineRun records the outcome of one indexing run
func (m *Metrics) RecordPipelineRun(status string, chunks, sizeWarnings, unwritten int, structuralKinds map[string]int) {
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
	m.ChunksProducedTotal.Add(float64(chunks))
	m.ChunkSizeWarningsTotal.Add(float64(sizeWarnings))
	m.UnwrittenChunksTotal.Add(float64(unwritten))
	for kind, n := range structuralKinds {
		m.StructuralWarningsTotal.WithLabelValues(kind).Add(float64(n))
	}
}

// RecordWrite records a vector store write operation
func (m *Metrics) RecordWrite(operation string, status string, duration time.Duration) {
	m.WriteOperationsTotal.WithLabelValues(operation, status).Inc()
	m.WriteDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordRetrieval records a retrieval call
func (m *Metrics) RecordRetrieval(outcome string, duration time.Duration, returned int) {
	m.RetrievalsTotal.WithLabelValues(outcome).Inc()
	m.RetrievalDuration.Observe(duration.Seconds())
	m.CandidatesReturned.Observe(float64(returned))
}

// RecordEmbed records an embedding gateway call
func (m *Metrics) RecordEmbed(status string, duration time.Duration) {
	m.EmbedRequestsTotal.WithLabelValues(status).Inc()
	m.EmbedDuration.Observe(duration.Seconds())
}
