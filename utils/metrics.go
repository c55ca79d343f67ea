package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dbOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gradient_db_operation_duration_seconds",
			Help:    "Duration of store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "collection"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradient_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type", "reason"},
	)

	snapshotsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradient_snapshots_total",
			Help: "Snapshots received by live collections",
		},
		[]string{"collection", "outcome"},
	)

	skippedDocumentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradient_skipped_documents_total",
			Help: "Documents skipped because they could not be decoded",
		},
		[]string{"collection"},
	)

	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gradient_media_uploads_total",
			Help: "Media uploads by type and result",
		},
		[]string{"type", "result"},
	)

	blobCleanupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gradient_blob_cleanup_failures_total",
			Help: "Best-effort blob deletions that failed",
		},
	)

	// LiveCollections is the number of live collections attached to the store.
	LiveCollections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gradient_live_collections",
			Help: "Live collections currently subscribed",
		},
	)
)

// TrackDBOperation starts a timer for a store operation; call
// ObserveDuration on the result when the operation ends.
func TrackDBOperation(operation, collection string) *prometheus.Timer {
	return prometheus.NewTimer(dbOperationDuration.WithLabelValues(operation, collection))
}

func TrackError(errorType, reason string) {
	errorsTotal.WithLabelValues(errorType, reason).Inc()
}

// TrackSnapshot counts a snapshot as "applied" or "stale".
func TrackSnapshot(collection, outcome string) {
	snapshotsTotal.WithLabelValues(collection, outcome).Inc()
}

func TrackSkippedDocuments(collection string, n int) {
	if n > 0 {
		skippedDocumentsTotal.WithLabelValues(collection).Add(float64(n))
	}
}

func TrackUpload(mediaType, result string) {
	uploadsTotal.WithLabelValues(mediaType, result).Inc()
}

func TrackBlobCleanupFailure() {
	blobCleanupFailures.Inc()
}
