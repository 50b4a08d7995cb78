// Package metrics holds the prometheus collectors of the chunk store. A
// nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "fastcdc"

	LabelResult = "result"

	ResultNew     = "new"
	ResultDeduped = "deduped"
)

type Metrics struct {
	chunksPut      *prometheus.CounterVec
	bytesPut       *prometheus.CounterVec
	storedBytes    prometheus.Counter
	chunksRead     prometheus.Counter
	bytesRead      prometheus.Counter
	corruptChunks  prometheus.Counter
	chunksDeleted  prometheus.Counter
	bytesDeleted   prometheus.Counter
	chunkSize      prometheus.Histogram
	manifestsBuilt prometheus.Counter
}

// NewMetrics creates the collectors and registers them with registry. A nil
// registry leaves them unregistered, which is what tests usually want.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		chunksPut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "chunks_put_total",
			Help:      "Chunks handed to the store, by whether they were new.",
		}, []string{LabelResult}),
		bytesPut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "bytes_put_total",
			Help:      "Raw chunk bytes handed to the store, by whether they were new.",
		}, []string{LabelResult}),
		storedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "stored_bytes_total",
			Help:      "Bytes written to disk for new entries, headers and compression included.",
		}),
		chunksRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "chunks_read_total",
			Help:      "Chunks read back from the store.",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "bytes_read_total",
			Help:      "Raw chunk bytes read back from the store.",
		}),
		corruptChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "corrupt_chunks_total",
			Help:      "Entries that failed decoding or digest verification.",
		}),
		chunksDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "chunks_deleted_total",
			Help:      "Unreferenced entries removed by prune.",
		}),
		bytesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gc",
			Name:      "bytes_deleted_total",
			Help:      "On-disk bytes released by prune.",
		}),
		chunkSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chunker",
			Name:      "chunk_size_bytes",
			Help:      "Size distribution of produced chunks.",
			Buckets:   prometheus.ExponentialBuckets(1024, 2, 16),
		}),
		manifestsBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "manifests_total",
			Help:      "Streams ingested into a manifest.",
		}),
	}
	if registry != nil {
		registry.MustRegister(
			m.chunksPut, m.bytesPut, m.storedBytes,
			m.chunksRead, m.bytesRead, m.corruptChunks,
			m.chunksDeleted, m.bytesDeleted,
			m.chunkSize, m.manifestsBuilt,
		)
	}
	return m
}

func result(isNew bool) string {
	if isNew {
		return ResultNew
	}
	return ResultDeduped
}

// ObservePut records one Put of a raw chunk of size bytes; stored is what
// landed on disk, zero for a dedup hit.
func (m *Metrics) ObservePut(isNew bool, size, stored int) {
	if m == nil {
		return
	}
	m.chunksPut.WithLabelValues(result(isNew)).Inc()
	m.bytesPut.WithLabelValues(result(isNew)).Add(float64(size))
	m.storedBytes.Add(float64(stored))
}

func (m *Metrics) ObserveRead(size int) {
	if m == nil {
		return
	}
	m.chunksRead.Inc()
	m.bytesRead.Add(float64(size))
}

func (m *Metrics) ObserveCorrupt() {
	if m == nil {
		return
	}
	m.corruptChunks.Inc()
}

func (m *Metrics) ObserveDelete(size int64) {
	if m == nil {
		return
	}
	m.chunksDeleted.Inc()
	m.bytesDeleted.Add(float64(size))
}

func (m *Metrics) ObserveChunk(size int) {
	if m == nil {
		return
	}
	m.chunkSize.Observe(float64(size))
}

func (m *Metrics) ObserveManifest() {
	if m == nil {
		return
	}
	m.manifestsBuilt.Inc()
}
