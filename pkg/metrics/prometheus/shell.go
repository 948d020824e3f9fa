// Package prometheus implements metrics interfaces with client_golang.
package prometheus

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dittosh/pkg/metrics"
)

type shellMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	authAttempts           *prometheus.CounterVec
	requests               *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	decodeErrors           prometheus.Counter
	sessionsClosed         *prometheus.CounterVec
	sessionDuration        prometheus.Histogram
	bytes                  *prometheus.CounterVec
}

// NewShellMetrics registers shell metrics on the global registry.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewShellMetrics() metrics.ShellMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	return newShellMetrics(metrics.GetRegistry())
}

func newShellMetrics(reg prometheus.Registerer) *shellMetrics {
	f := promauto.With(reg)
	return &shellMetrics{
		connectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "dittosh_connections_accepted_total",
			Help: "Total TLS connections accepted",
		}),
		connectionsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "dittosh_connections_closed_total",
			Help: "Total connections closed",
		}),
		connectionsForceClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "dittosh_connections_force_closed_total",
			Help: "Connections force-closed after the shutdown timeout",
		}),
		activeConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "dittosh_active_connections",
			Help: "Currently open connections",
		}),
		authAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dittosh_auth_attempts_total",
			Help: "Login attempts by method and result",
		}, []string{"method", "result"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dittosh_requests_total",
			Help: "Handled requests by message type, command and success",
		}, []string{"type", "command", "success"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dittosh_request_duration_seconds",
			Help:    "Request handling latency",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"type"}),
		decodeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "dittosh_decode_errors_total",
			Help: "Frames that could not be decoded",
		}),
		sessionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dittosh_sessions_closed_total",
			Help: "Sessions closed by reason",
		}, []string{"reason"}),
		sessionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "dittosh_session_duration_seconds",
			Help:    "Session lifetime",
			Buckets: prometheus.ExponentialBuckets(0.1, 4, 9),
		}),
		bytes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dittosh_frame_bytes_total",
			Help: "Framed bytes by direction",
		}, []string{"direction"}),
	}
}

func (m *shellMetrics) RecordConnectionAccepted() {
	if m == nil {
		return
	}
	m.connectionsAccepted.Inc()
}

func (m *shellMetrics) RecordConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsClosed.Inc()
}

func (m *shellMetrics) RecordConnectionForceClosed() {
	if m == nil {
		return
	}
	m.connectionsForceClosed.Inc()
}

func (m *shellMetrics) SetActiveConnections(count int32) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

func (m *shellMetrics) RecordAuthAttempt(method, result string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(method, result).Inc()
}

func (m *shellMetrics) RecordRequest(msgType, command string, d time.Duration, success bool) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(msgType, command, strconv.FormatBool(success)).Inc()
	m.requestDuration.WithLabelValues(msgType).Observe(d.Seconds())
}

func (m *shellMetrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

func (m *shellMetrics) RecordSessionClosed(reason string, d time.Duration) {
	if m == nil {
		return
	}
	m.sessionsClosed.WithLabelValues(reason).Inc()
	m.sessionDuration.Observe(d.Seconds())
}

func (m *shellMetrics) RecordBytes(direction string, n int) {
	if m == nil {
		return
	}
	m.bytes.WithLabelValues(direction).Add(float64(n))
}
