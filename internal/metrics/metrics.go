package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcomes recorded for ingested files.
const (
	OutcomeReady   = "ready"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Generation results.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

type metricsSet struct {
	once sync.Once

	filesIngested  *prometheus.CounterVec
	chunksIndexed  prometheus.Counter
	embedBatches   prometheus.Counter
	embedErrors    prometheus.Counter
	indexDuration  prometheus.Histogram
	generations    *prometheus.CounterVec
	toolCalls      prometheus.Counter
	httpRequests   *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

var m metricsSet

func (s *metricsSet) init() {
	s.once.Do(func() {
		s.filesIngested = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "codeinsight_files_ingested_total", Help: "Files processed by the ingestion pipeline"}, []string{"outcome"})
		s.chunksIndexed = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeinsight_chunks_indexed_total", Help: "Chunks written to the vector index"})
		s.embedBatches = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeinsight_embed_batches_total", Help: "Embedding batches sent to the provider"})
		s.embedErrors = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeinsight_embed_errors_total", Help: "Embedding provider errors"})
		s.generations = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "codeinsight_generations_total", Help: "Assistant generations by result"}, []string{"result"})
		s.toolCalls = prometheus.NewCounter(prometheus.CounterOpts{Name: "codeinsight_tool_calls_total", Help: "Retrieval tool invocations"})
		s.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "codeinsight_http_requests_total", Help: "HTTP requests by status class"}, []string{"code"})

		buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
		s.indexDuration = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "codeinsight_index_seconds", Help: "Time from enqueue to ready per document", Buckets: buckets})
		s.requestLatency = prometheus.NewHistogram(prometheus.HistogramOpts{Name: "codeinsight_http_request_seconds", Help: "HTTP request latency", Buckets: buckets})

		prometheus.MustRegister(
			s.filesIngested, s.chunksIndexed, s.embedBatches, s.embedErrors, s.indexDuration,
			s.generations, s.toolCalls,
			s.httpRequests, s.requestLatency,
		)
	})
}

func FileIngested(outcome string) { m.init(); m.filesIngested.WithLabelValues(outcome).Inc() }
func ChunksIndexed(n int)          { m.init(); m.chunksIndexed.Add(float64(n)) }
func EmbedBatch()                  { m.init(); m.embedBatches.Inc() }
func EmbedError()                  { m.init(); m.embedErrors.Inc() }
func IndexDuration(sec float64)    { m.init(); m.indexDuration.Observe(sec) }
func Generation(result string)     { m.init(); m.generations.WithLabelValues(result).Inc() }
func ToolCall()                    { m.init(); m.toolCalls.Inc() }

// HTTPRequest records one served request; code is the status class, e.g. "2xx".
func HTTPRequest(code string, sec float64) {
	m.init()
	m.httpRequests.WithLabelValues(code).Inc()
	m.requestLatency.Observe(sec)
}
