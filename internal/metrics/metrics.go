// Package metrics provides Prometheus metrics for the rtfs mount.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Filesystem operation metrics
	fsOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtfs_fs_operations_total",
			Help: "Total filesystem operations dispatched by the kernel",
		},
		[]string{"op", "result"},
	)

	openHandles = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "rtfs_open_handles",
			Help: "Currently open directory and file handles",
		},
		[]string{"kind"},
	)

	locatorCacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rtfs_locator_cache_entries",
			Help: "Download locators currently cached",
		},
	)

	// Remote store metrics
	remoteRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rtfs_remote_requests_total",
			Help: "Total requests issued against the remote store",
		},
		[]string{"op", "status"},
	)

	remoteRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rtfs_remote_request_duration_seconds",
			Help:    "Remote store request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	contentBytesRead = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rtfs_content_bytes_read_total",
			Help: "Total content bytes fetched from the remote store",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordOperation records a filesystem operation and its outcome.
func RecordOperation(op string, errc int) {
	result := "ok"
	if errc != 0 {
		result = "error"
	}
	fsOperationsTotal.WithLabelValues(op, result).Inc()
}

// HandleOpened records a newly allocated handle of the given kind.
func HandleOpened(kind string) {
	openHandles.WithLabelValues(kind).Inc()
}

// HandleClosed records a released handle of the given kind.
func HandleClosed(kind string) {
	openHandles.WithLabelValues(kind).Dec()
}

// SetLocatorCacheSize sets the current locator cache size.
func SetLocatorCacheSize(n int) {
	locatorCacheEntries.Set(float64(n))
}

// RecordRemoteRequest records one remote store request.
func RecordRemoteRequest(op, status string, duration time.Duration) {
	remoteRequestsTotal.WithLabelValues(op, status).Inc()
	remoteRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordContentRead records content bytes fetched by a ranged read.
func RecordContentRead(bytes int) {
	contentBytesRead.Add(float64(bytes))
}
