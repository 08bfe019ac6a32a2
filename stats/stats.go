package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PushHealthStats receives push lifecycle outcomes for a cluster.
type PushHealthStats interface {
	// RecordSuccessfulPush records a push that reached COMPLETED.
	RecordSuccessfulPush(storeName string, durationSec float64)

	// RecordFailedPush records a push that reached ERROR.
	RecordFailedPush(storeName string, durationSec float64)

	// RecordPushPreparationDuration records the time between push creation
	// and the job starting to run.
	RecordPushPreparationDuration(storeName string, durationSec float64)
}

// SuccessfulPushesTotal tracks the total number of pushes that completed.
var SuccessfulPushesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pushmonitor_successful_pushes_total",
		Help: "Total pushes that reached COMPLETED",
	},
	[]string{"cluster", "store"},
)

// FailedPushesTotal tracks the total number of pushes that errored.
var FailedPushesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pushmonitor_failed_pushes_total",
		Help: "Total pushes that reached ERROR",
	},
	[]string{"cluster", "store"},
)

// SuccessfulPushDuration tracks the duration of completed pushes.
var SuccessfulPushDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pushmonitor_successful_push_duration_seconds",
		Help:    "Duration of pushes that reached COMPLETED",
		Buckets: prometheus.ExponentialBuckets(30, 2, 12),
	},
	[]string{"cluster", "store"},
)

// FailedPushDuration tracks the duration of errored pushes.
var FailedPushDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pushmonitor_failed_push_duration_seconds",
		Help:    "Duration of pushes that reached ERROR",
		Buckets: prometheus.ExponentialBuckets(30, 2, 12),
	},
	[]string{"cluster", "store"},
)

// PushPreparationDuration tracks the time between push creation and the job
// starting to run.
var PushPreparationDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pushmonitor_push_preparation_duration_seconds",
		Help:    "Time between push creation and the job starting to run",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"cluster", "store"},
)
