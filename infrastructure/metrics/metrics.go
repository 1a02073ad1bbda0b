// Package metrics exposes Prometheus collectors for the crypto and
// monitoring subsystems.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds this module's Prometheus collectors, kept separate from
// the default global registry so embedding applications can expose it on
// their own terms.
var Registry = prometheus.NewRegistry()

var (
	keyOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aos_core",
			Subsystem: "crypto",
			Name:      "key_operations_total",
			Help:      "Total provider key operations grouped by backend, operation and result.",
		},
		[]string{"backend", "operation", "result"},
	)

	keyOperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aos_core",
			Subsystem: "crypto",
			Name:      "key_operation_duration_seconds",
			Help:      "Duration of provider key operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~2s
		},
		[]string{"backend", "operation"},
	)

	keySlotsInUse = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aos_core",
			Subsystem: "crypto",
			Name:      "key_slots_in_use",
			Help:      "Current number of occupied opaque key registry slots.",
		},
	)

	keySlotCapacity = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "aos_core",
			Subsystem: "crypto",
			Name:      "key_slot_capacity",
			Help:      "Total capacity of the opaque key registry.",
		},
	)

	certificatesIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aos_core",
			Subsystem: "crypto",
			Name:      "certificates_issued_total",
			Help:      "Total certificates issued, grouped by signature algorithm.",
		},
		[]string{"sig_algorithm"},
	)

	circuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "aos_core",
			Subsystem: "crypto",
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state per backend (0 closed, 1 half-open, 2 open).",
		},
		[]string{"backend"},
	)

	monitorSamples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aos_core",
			Subsystem: "monitoring",
			Name:      "samples_total",
			Help:      "Total resource usage samples taken, grouped by source.",
		},
		[]string{"source"},
	)

	monitorAlerts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aos_core",
			Subsystem: "monitoring",
			Name:      "alerts_total",
			Help:      "Total threshold alerts raised or cleared, grouped by parameter and direction.",
		},
		[]string{"parameter", "direction"},
	)

	monitorCurrentUsage = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "aos_core",
			Subsystem: "monitoring",
			Name:      "current_usage",
			Help:      "Most recent averaged usage value per monitored parameter.",
		},
		[]string{"parameter", "instance_id"},
	)
)

func init() {
	Registry.MustRegister(
		keyOperations,
		keyOperationDuration,
		keySlotsInUse,
		keySlotCapacity,
		certificatesIssued,
		circuitBreakerState,
		monitorSamples,
		monitorAlerts,
		monitorCurrentUsage,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered collectors.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordKeyOperation records a provider key operation outcome and its
// duration.
func RecordKeyOperation(backend, operation string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	keyOperations.WithLabelValues(backend, operation, result).Inc()
	keyOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// SetKeySlotUsage reports the registry's current occupancy and capacity.
func SetKeySlotUsage(inUse, capacity int) {
	keySlotsInUse.Set(float64(inUse))
	keySlotCapacity.Set(float64(capacity))
}

// RecordCertificateIssued records a successful certificate issuance.
func RecordCertificateIssued(sigAlgorithm string) {
	if sigAlgorithm == "" {
		sigAlgorithm = "unknown"
	}
	certificatesIssued.WithLabelValues(sigAlgorithm).Inc()
}

// SetCircuitBreakerState reports a backend's circuit breaker state as a
// numeric gauge (0 closed, 1 half-open, 2 open).
func SetCircuitBreakerState(backend string, stateValue int) {
	circuitBreakerState.WithLabelValues(backend).Set(float64(stateValue))
}

// RecordMonitorSample records one resource sampling tick from the given
// source (e.g. "gopsutil", "test").
func RecordMonitorSample(source string) {
	if source == "" {
		source = "unknown"
	}
	monitorSamples.WithLabelValues(source).Inc()
}

// RecordMonitorAlert records an alert transition. direction is "raised" or
// "cleared".
func RecordMonitorAlert(parameter, direction string) {
	monitorAlerts.WithLabelValues(parameter, direction).Inc()
}

// SetCurrentUsage reports the latest averaged value for a monitored
// parameter and instance (instanceID is "" for node-level parameters).
func SetCurrentUsage(parameter, instanceID string, value float64) {
	if instanceID == "" {
		instanceID = "node"
	}
	monitorCurrentUsage.WithLabelValues(parameter, instanceID).Set(value)
}
