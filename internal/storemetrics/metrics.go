// Package storemetrics exposes prometheus counters and histograms for
// storage-engine operations across all four stores.
package storemetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tscore_store_operations_total",
			Help: "Total number of store operations, by store, op, and outcome",
		},
		[]string{"store", "op", "outcome"}, // outcome: ok/error
	)

	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tscore_store_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"store", "op"},
	)

	PointsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tscore_points_written_total",
			Help: "Total number of points/events written",
		},
		[]string{"store", "metric"},
	)

	RowsScannedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tscore_rows_scanned_total",
			Help: "Total number of backend rows scanned",
		},
		[]string{"store"},
	)

	ActivityIncrementsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tscore_activity_increments_total",
			Help: "Total number of activity counter increments, by fan-out target",
		},
		[]string{"target"}, // total/parent
	)

	BackendPoolSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tscore_backend_pool_size",
			Help: "Current number of warmed backend handles in the connection pool",
		},
		[]string{"connection"},
	)
)
