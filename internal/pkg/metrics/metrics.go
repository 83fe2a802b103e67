package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// pipelineMetrics holds Prometheus metrics for the ingestion pipeline and query path.
type pipelineMetrics struct {
	once sync.Once

	// Acquisition
	filesDownloaded prometheus.Counter
	filesAbandoned  prometheus.Counter
	filesRemoved    prometheus.Counter
	filesMalformed  prometheus.Counter
	downloadRetries prometheus.Counter
	filesPublished  *prometheus.CounterVec

	// Embedding
	docsEmbedded prometheus.Counter
	docsDropped  *prometheus.CounterVec

	// Webhook
	pushEvents *prometheus.CounterVec

	// Query
	queries *prometheus.CounterVec

	// Durations
	downloadDuration prometheus.Histogram
	embedDuration    prometheus.Histogram
	queryDuration    prometheus.Histogram
}

var m pipelineMetrics

func (pm *pipelineMetrics) init() {
	pm.once.Do(func() {
		pm.filesDownloaded = prometheus.NewCounter(prometheus.CounterOpts{Name: "repoqa_files_downloaded_total", Help: "Files downloaded and written to the content store"})
		pm.filesAbandoned = prometheus.NewCounter(prometheus.CounterOpts{Name: "repoqa_files_abandoned_total", Help: "Files abandoned after the retry ceiling"})
		pm.filesRemoved = prometheus.NewCounter(prometheus.CounterOpts{Name: "repoqa_files_removed_total", Help: "Files confirmed gone upstream and tombstoned"})
		pm.filesMalformed = prometheus.NewCounter(prometheus.CounterOpts{Name: "repoqa_files_malformed_total", Help: "Malformed Files Queue messages"})
		pm.downloadRetries = prometheus.NewCounter(prometheus.CounterOpts{Name: "repoqa_download_retries_total", Help: "Failed download attempts"})
		pm.filesPublished = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "repoqa_messages_published_total", Help: "Messages confirmed by the broker"}, []string{"queue"})

		pm.docsEmbedded = prometheus.NewCounter(prometheus.CounterOpts{Name: "repoqa_documents_embedded_total", Help: "Documents upserted into collections"})
		pm.docsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "repoqa_documents_dropped_total", Help: "Embedding messages dropped without a record"}, []string{"reason"})

		pm.pushEvents = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "repoqa_push_events_total", Help: "Push notifications by outcome"}, []string{"outcome"})
		pm.queries = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "repoqa_queries_total", Help: "Queries by result stage"}, []string{"stage"})

		buckets := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}
		pm.downloadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "repoqa_download_seconds", Help: "Duration of a file acquisition", Buckets: buckets})
		pm.embedDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "repoqa_embed_seconds", Help: "Duration of embedding one document", Buckets: buckets})
		pm.queryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "repoqa_query_seconds", Help: "Duration of answering a query", Buckets: buckets})

		prometheus.MustRegister(
			pm.filesDownloaded, pm.filesAbandoned, pm.filesRemoved, pm.filesMalformed, pm.downloadRetries, pm.filesPublished,
			pm.docsEmbedded, pm.docsDropped,
			pm.pushEvents, pm.queries,
			pm.downloadDuration, pm.embedDuration, pm.queryDuration,
		)
	})
}

func RecordDownloaded(d time.Duration) {
	m.init()
	m.filesDownloaded.Inc()
	m.downloadDuration.Observe(d.Seconds())
}

func RecordAbandoned()     { m.init(); m.filesAbandoned.Inc() }
func RecordRemoved()       { m.init(); m.filesRemoved.Inc() }
func RecordMalformed()     { m.init(); m.filesMalformed.Inc() }
func RecordDownloadRetry() { m.init(); m.downloadRetries.Inc() }

func RecordPublished(queue string, n int) {
	m.init()
	m.filesPublished.WithLabelValues(queue).Add(float64(n))
}

func RecordEmbedded(d time.Duration) {
	m.init()
	m.docsEmbedded.Inc()
	m.embedDuration.Observe(d.Seconds())
}

func RecordEmbedDropped(reason string) { m.init(); m.docsDropped.WithLabelValues(reason).Inc() }

func RecordPushEvent(outcome string) { m.init(); m.pushEvents.WithLabelValues(outcome).Inc() }

// RecordQuery counts a query by the stage it ended in ("ok" on success).
func RecordQuery(stage string, d time.Duration) {
	m.init()
	m.queries.WithLabelValues(stage).Inc()
	m.queryDuration.Observe(d.Seconds())
}
