package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swarmctl",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "swarmctl",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	tickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "swarmctl",
			Subsystem: "tick",
			Name:      "duration_seconds",
			Help:      "Duration of one state machine pass over every agent.",
			Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
	)
	ticksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "swarmctl",
			Subsystem: "tick",
			Name:      "skipped_total",
			Help:      "Ticks skipped because the previous tick was still running.",
		},
	)
	planInvocations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "swarmctl",
			Subsystem: "planner",
			Name:      "invocations_total",
			Help:      "Collision avoidance planning calls.",
		},
	)
	planNeighbors = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "swarmctl",
			Subsystem: "planner",
			Name:      "neighbors",
			Help:      "Neighbors found per planning call.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32},
		},
	)
	planDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "swarmctl",
			Subsystem: "planner",
			Name:      "duration_seconds",
			Help:      "Index build plus solve duration per planning call.",
			Buckets:   []float64{.00005, .0001, .00025, .0005, .001, .0025, .005, .01},
		},
	)
	dispatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swarmctl",
			Subsystem: "dispatch",
			Name:      "commands_total",
			Help:      "Dispatched commands by verb and outcome.",
		},
		[]string{"verb", "outcome"},
	)
	motionRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swarmctl",
			Subsystem: "motion",
			Name:      "requests_total",
			Help:      "Motion service requests by kind and result.",
		},
		[]string{"kind", "result"},
	)
	telemetryUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "swarmctl",
			Subsystem: "telemetry",
			Name:      "updates_total",
			Help:      "Telemetry updates by feed and whether the agent resolved.",
		},
		[]string{"feed", "resolved"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			tickDuration, ticksSkipped,
			planInvocations, planNeighbors, planDuration,
			dispatches, motionRequests, telemetryUpdates,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordTick(duration time.Duration) {
	RegisterMetrics()
	tickDuration.Observe(duration.Seconds())
}

func RecordTickSkipped() {
	RegisterMetrics()
	ticksSkipped.Inc()
}

func RecordPlan(neighbors int, duration time.Duration) {
	RegisterMetrics()
	planInvocations.Inc()
	planNeighbors.Observe(float64(neighbors))
	planDuration.Observe(duration.Seconds())
}

func RecordDispatch(verb, outcome string) {
	RegisterMetrics()
	dispatches.WithLabelValues(verb, outcome).Inc()
}

func RecordMotionRequest(kind, result string) {
	RegisterMetrics()
	motionRequests.WithLabelValues(kind, result).Inc()
}

func RecordTelemetry(feed string, resolved bool) {
	RegisterMetrics()
	telemetryUpdates.WithLabelValues(feed, strconv.FormatBool(resolved)).Inc()
}
