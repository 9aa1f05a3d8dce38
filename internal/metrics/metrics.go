package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	backendReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuglean",
			Name:      "backend_requests_total",
			Help:      "Total backend requests by backend, model, operation and result",
		},
		[]string{"backend", "model", "op", "result"},
	)

	backendLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docuglean",
			Name:      "backend_request_duration_seconds",
			Help:      "Duration of backend requests by backend and model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "model"},
	)

	classifyReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuglean",
			Name:      "classify_requests_total",
			Help:      "Classification requests by backend and result",
		},
		[]string{"backend", "result"},
	)

	chunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuglean",
			Name:      "classify_chunks_total",
			Help:      "Chunks classified by backend and result",
		},
		[]string{"backend", "result"},
	)

	pageCountFallbacks = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "docuglean",
			Name:      "page_count_fallbacks_total",
			Help:      "Page count lookups that failed and fell back to the default page count",
		},
	)

	inflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docuglean",
			Name:      "backend_inflight",
			Help:      "Backend calls currently holding a limiter slot",
		},
	)

	batchItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuglean",
			Name:      "batch_items_total",
			Help:      "Batch items processed by operation and result",
		},
		[]string{"op", "result"},
	)

	registerOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(backendReqs, backendLatency, classifyReqs, chunksTotal, pageCountFallbacks, inflight, batchItems)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveBackend(backend, model, op, result string, dur time.Duration) {
	backendReqs.WithLabelValues(backend, model, op, result).Inc()
	backendLatency.WithLabelValues(backend, model).Observe(dur.Seconds())
}

func IncClassify(backend, result string) { classifyReqs.WithLabelValues(backend, result).Inc() }
func IncChunk(backend, result string)    { chunksTotal.WithLabelValues(backend, result).Inc() }
func IncPageCountFallback()              { pageCountFallbacks.Inc() }
func IncInFlight()                       { inflight.Inc() }
func DecInFlight()                       { inflight.Dec() }

func IncBatchItem(op string, ok bool) {
	result := "error"
	if ok {
		result = "success"
	}
	batchItems.WithLabelValues(op, result).Inc()
}
