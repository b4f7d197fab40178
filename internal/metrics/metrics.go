// Package metrics holds the process-wide prometheus registry and the
// collectors the rest of the app increments.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var Registry = prometheus.NewRegistry()

var (
	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prosodyweb",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests served, by path pattern and status code.",
	}, []string{"path", "status"})

	HTTPDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "prosodyweb",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"path"})

	StoreReads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prosodyweb",
		Subsystem: "prosody",
		Name:      "store_reads_total",
		Help:      "Reads from the shared Prosody datastore, by store.",
	}, []string{"store"})

	StoreWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "prosodyweb",
		Subsystem: "prosody",
		Name:      "store_writes_total",
		Help:      "Writes to the shared Prosody datastore, by store.",
	}, []string{"store"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequests,
		HTTPDuration,
		StoreReads,
		StoreWrites,
	)
}

// Handler serves the registry for scraping.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
