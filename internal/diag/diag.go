// Package diag exposes the library's own health counters. They are kept on a
// private registry so a host application's default registry is never touched.
package diag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const prefix = "telemetry_"

// Registry holds every diagnostic collector.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var DispatcherOverflow = factory.NewCounter(
	prometheus.CounterOpts{
		Name: prefix + "dispatcher_overflow_total",
		Help: "Tasks dropped because the pre-initialization buffer was full",
	},
)

var DispatcherRejected = factory.NewCounter(
	prometheus.CounterOpts{
		Name: prefix + "dispatcher_rejected_total",
		Help: "Tasks rejected because the queue was shutting down",
	},
)

var TaskFailures = factory.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "task_failures_total",
		Help: "Tasks that returned an error or panicked on the worker",
	},
	[]string{"op"},
)

var UploadAttempts = factory.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "upload_attempts_total",
		Help: "Upload attempts by outcome",
	},
	[]string{"outcome"},
)

var UploadsDropped = factory.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "uploads_dropped_total",
		Help: "Pending uploads discarded without being delivered",
	},
	[]string{"reason"},
)

var UploadDuration = factory.NewHistogram(
	prometheus.HistogramOpts{
		Name:    prefix + "upload_duration_seconds",
		Help:    "Time taken by a single upload attempt",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	},
)

var PingsSubmitted = factory.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "pings_submitted_total",
		Help: "Ping documents assembled and queued for upload",
	},
	[]string{"ping"},
)

var PingsSkipped = factory.NewCounterVec(
	prometheus.CounterOpts{
		Name: prefix + "pings_skipped_total",
		Help: "Ping submissions skipped, by reason",
	},
	[]string{"ping", "reason"},
)

var StorageCorrupt = factory.NewCounter(
	prometheus.CounterOpts{
		Name: prefix + "storage_corrupt_entries_total",
		Help: "Stored entries discarded because they could not be decoded",
	},
)
