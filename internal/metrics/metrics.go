// Package metrics exposes this node's Prometheus instrumentation:
// connection, search, and relay counters/histograms scraped by the
// admin API's /metrics endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names follow the <service>_<subsystem>_<name> convention,
// with "idhost" as the service and one subsystem per area of the node.
var (
	connectionsAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idhost_connection_accepted_total",
			Help: "Total inbound connections accepted, by role port.",
		},
		[]string{"port"},
	)

	connectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "idhost_connection_active",
			Help: "Currently open connections, by role port.",
		},
		[]string{"port"},
	)

	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idhost_dispatch_requests_total",
			Help: "Total dispatched requests, by message type and status.",
		},
		[]string{"message_type", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "idhost_dispatch_request_duration_seconds",
			Help:    "Dispatch handler latency, by message type.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"message_type"},
	)

	searchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idhost_search_requests_total",
			Help: "Total SearchIdentities requests, by result (ok, overflow).",
		},
		[]string{"result"},
	)

	searchResultCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "idhost_search_result_count",
			Help:    "Number of identities returned per search page.",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	relaysCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idhost_relay_created_total",
			Help: "Total relays created via CallIdentityAppService.",
		},
	)

	relaysActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "idhost_relay_active",
			Help: "Currently live relays, across every lifecycle state.",
		},
	)

	relaysExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idhost_relay_expired_total",
			Help: "Total relays destroyed, by reason.",
		},
		[]string{"reason"},
	)

	identitiesExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idhost_identity_expired_total",
			Help: "Total hosted identities expired by the background sweep.",
		},
	)

	directoryReconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idhost_directory_reconnect_total",
			Help: "Total reconnection attempts to the directory service.",
		},
	)
)

// RecordConnectionAccepted increments the accepted-connections counter
// and the active-connections gauge for port.
func RecordConnectionAccepted(port string) {
	connectionsAccepted.WithLabelValues(port).Inc()
	connectionsActive.WithLabelValues(port).Inc()
}

// RecordConnectionClosed decrements the active-connections gauge for port.
func RecordConnectionClosed(port string) {
	connectionsActive.WithLabelValues(port).Dec()
}

// RecordRequest records a completed dispatch: its message type, final
// status, and handler latency.
func RecordRequest(messageType, status string, duration time.Duration) {
	requestsTotal.WithLabelValues(messageType, status).Inc()
	requestDuration.WithLabelValues(messageType).Observe(duration.Seconds())
}

// RecordSearch records a completed SearchIdentities call: whether the
// result was truncated, and how many rows it
// returned.
func RecordSearch(overflowed bool, resultCount int) {
	result := "ok"
	if overflowed {
		result = "overflow"
	}
	searchesTotal.WithLabelValues(result).Inc()
	searchResultCount.Observe(float64(resultCount))
}

// RecordRelayCreated increments the relay-creation counter and active gauge.
func RecordRelayCreated() {
	relaysCreated.Inc()
	relaysActive.Inc()
}

// RecordRelayDestroyed decrements the active-relay gauge and records why
// the relay ended (e.g. "callee_timeout", "idle_timeout", "closed").
func RecordRelayDestroyed(reason string) {
	relaysActive.Dec()
	relaysExpired.WithLabelValues(reason).Inc()
}

// RecordIdentitiesExpired adds n to the expired-identity counter after a
// sweep pass.
func RecordIdentitiesExpired(n int64) {
	if n <= 0 {
		return
	}
	identitiesExpired.Add(float64(n))
}

// RecordDirectoryReconnect increments the directory-reconnect counter.
func RecordDirectoryReconnect() {
	directoryReconnects.Inc()
}
