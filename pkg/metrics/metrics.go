// Package metrics exposes the Prometheus registry used by the collector.
// All metrics are defined in their respective packages (client, collector,
// sink, cache) to maintain modularity and avoid circular dependencies.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Gatherer is the registry's read side.
var Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - listing_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - listing_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - listing_errors_total{class} (Counter): Errors by class (client, forbidden, server, network)
//
// Retry Metrics (pkg/client):
//   - listing_retries_total{error_class} (Counter): Retry attempts by error class
//   - listing_retry_backoff_seconds{error_class} (Histogram): Backoff duration by error class
//   - listing_retry_exhausted_total{error_class} (Counter): Requests that exhausted max retries
//
// Collector Metrics (pkg/collector):
//   - collector_pages_total{city} (Counter): Pages fetched
//   - collector_rows_written_total{city} (Counter): Rows handed to the sink
//   - collector_duplicates_total (Counter): Records skipped by dedup
//   - collector_location_failures_total{error_class} (Counter): Abandoned locations
//
// Sink Metrics (pkg/sink):
//   - sink_rows_total (Counter): Rows persisted
//
// Place Cache Metrics (pkg/cache):
//   - places_cache_hits_total{layer="redis"} (Counter): Cache hits by layer
//   - places_cache_misses_total (Counter): Cache misses
//   - places_cache_size_bytes{layer="redis"} (Gauge): Cached bytes
//   - places_cache_errors_total{operation} (Counter): Cache operation errors
//
// Example Prometheus Queries:
//
//   # Rows per minute
//   sum(rate(collector_rows_written_total[1m])) * 60
//
//   # Share of 403 responses
//   rate(listing_errors_total{class="forbidden"}[5m]) / rate(listing_requests_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(listing_request_duration_seconds_bucket[5m]))
