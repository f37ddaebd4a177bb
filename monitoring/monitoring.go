// Package monitoring carries the service's observability surface:
// Prometheus metrics for the matcher, store, geodesy and HTTP layers,
// OpenTelemetry tracing, and the debug/info logging switch.
package monitoring

import (
	"log"
	"strings"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "flightbind"

var (
	// Query API metrics, labeled by the callsign being looked up
	// ("all" for the full listing).
	BindingRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binding_api",
			Name:      "requests_total",
			Help:      "Binding lookups served",
		},
		[]string{"callsign"},
	)

	BindingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "binding_api",
			Name:      "errors_total",
			Help:      "Binding lookups that ended in a server error",
		},
		[]string{"callsign"},
	)

	BindingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "binding_api",
			Name:      "duration_seconds",
			Help:      "Binding lookup latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"callsign"},
	)

	LastStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "binding_api",
			Name:      "last_status",
			Help:      "HTTP status of the most recent binding lookup",
		},
		[]string{"callsign"},
	)

	// Matcher cycle metrics.
	MatcherCycleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "cycle_duration_seconds",
			Help:      "Duration of one matcher cycle against a schedule source",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	MatcherBindingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "bindings_total",
			Help:      "Verified bindings written, by quality tier",
		},
		[]string{"source", "tier"},
	)

	MatcherAmbiguousTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matcher",
			Name:      "ambiguous_total",
			Help:      "Candidate-ambiguity diagnostics emitted (no binding written)",
		},
		[]string{"source"},
	)

	// Verified-route store metrics.
	StoreConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "conflicts_total",
			Help:      "Binding writes rejected by the conflict-resolution policy",
		},
		[]string{"reason"},
	)

	CandidateSetSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "candidate_set_size",
			Help:      "Callsigns currently held in a candidate TTL set",
		},
		[]string{"set"}, // "candidates" or "failed_candidates"
	)

	GeodesyFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "geodesy",
			Name:      "fallbacks_total",
			Help:      "Vincenty inverse non-convergences that fell back to spherical distance",
		},
		nil,
	)

	// HTTP server metrics.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

var debugLogging atomic.Bool

// SetLogLevel switches between the two levels the binary distinguishes:
// "debug" enables Debugf output, anything else means info.
func SetLogLevel(level string) {
	on := strings.EqualFold(strings.TrimSpace(level), "debug")
	debugLogging.Store(on)
	if on {
		log.Printf("log_level=debug")
	}
}

// Debugf logs only when the debug level is enabled.
func Debugf(format string, args ...interface{}) {
	if debugLogging.Load() {
		log.Printf("DEBUG "+format, args...)
	}
}
