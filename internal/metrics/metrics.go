package metrics

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
	"go.uber.org/zap"

	"github.com/mingodad/libnavajo/internal/logging"
	"github.com/mingodad/libnavajo/internal/session"
	"github.com/mingodad/libnavajo/internal/web"
)

const namespace = "navajo"

// Rejection reasons for ConnectionsRejected.
const (
	RejectNetwork   = "network"
	RejectRateLimit = "rate_limit"
	RejectShutdown  = "shutdown"
)

// Metrics is the set of server collectors, registered on a private
// registry.
type Metrics struct {
	registry *prometheus.Registry

	ConnectionsAccepted  prometheus.Counter
	ConnectionsRejected  *prometheus.CounterVec
	TLSHandshakeFailures prometheus.Counter
	AuthFailures         prometheus.Counter
	Requests             *prometheus.CounterVec
	RequestDuration      prometheus.Histogram
	SessionsCreated      prometheus.Counter
	SessionsExpired      prometheus.Counter
	SessionsRemoved      prometheus.Counter
	WebSocketsActive     prometheus.Gauge
	WebSocketsTotal      prometheus.Counter
}

// New creates the collectors, including the Go runtime and process
// collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ConnectionsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_accepted_total",
			Help:      "Connections accepted and queued for a worker.",
		}),
		ConnectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Connections closed right after accept, by reason.",
		}, []string{"reason"}),
		TLSHandshakeFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tls_handshake_failures_total",
			Help:      "Failed TLS handshakes.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Requests answered with 401.",
		}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP responses sent, by status code.",
		}, []string{"code"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time from parsed request to written response.",
			Buckets:   prometheus.DefBuckets,
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_created_total",
			Help:      "Sessions created.",
		}),
		SessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_expired_total",
			Help:      "Sessions removed by the expiry sweep.",
		}),
		SessionsRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_removed_total",
			Help:      "Sessions removed explicitly.",
		}),
		WebSocketsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "websockets_active",
			Help:      "Open WebSocket connections.",
		}),
		WebSocketsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "websockets_opened_total",
			Help:      "WebSocket connections upgraded.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ConnectionsAccepted,
		m.ConnectionsRejected,
		m.TLSHandshakeFailures,
		m.AuthFailures,
		m.Requests,
		m.RequestDuration,
		m.SessionsCreated,
		m.SessionsExpired,
		m.SessionsRemoved,
		m.WebSocketsActive,
		m.WebSocketsTotal,
	)
	return m
}

// Registry returns the registry holding every collector.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SessionHooks reports session lifecycle events into the counters.
func (m *Metrics) SessionHooks() session.Hooks {
	if m == nil {
		return session.Hooks{}
	}
	return session.Hooks{
		Created: m.SessionsCreated.Inc,
		Expired: func(n int) { m.SessionsExpired.Add(float64(n)) },
		Removed: m.SessionsRemoved.Inc,
	}
}

// TrackSessions exports the live size of a session table.
func (m *Metrics) TrackSessions(sessions *session.Manager) {
	m.gaugeFunc("sessions_active", "Sessions in the table.", func() float64 {
		return float64(sessions.Len())
	})
}

// TrackQueue exports the number of connections waiting for a worker.
func (m *Metrics) TrackQueue(pending func() int) {
	m.gaugeFunc("pool_pending_connections", "Accepted connections waiting for a worker.", func() float64 {
		return float64(pending())
	})
}

func (m *Metrics) gaugeFunc(name, help string, f func() float64) {
	if m == nil {
		return
	}
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, f)
	if err := m.registry.Register(g); err != nil {
		logging.Warn("Metric not registered", zap.String("metric", name), zap.Error(err))
	}
}

// Accepted counts a queued connection.
func (m *Metrics) Accepted() {
	if m != nil {
		m.ConnectionsAccepted.Inc()
	}
}

// Rejected counts a connection closed after accept.
func (m *Metrics) Rejected(reason string) {
	if m != nil {
		m.ConnectionsRejected.WithLabelValues(reason).Inc()
	}
}

// HandshakeFailed counts a failed TLS handshake.
func (m *Metrics) HandshakeFailed() {
	if m != nil {
		m.TLSHandshakeFailures.Inc()
	}
}

// ObserveRequest records one response.
func (m *Metrics) ObserveRequest(status web.Status, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(strconv.Itoa(int(status))).Inc()
	m.RequestDuration.Observe(elapsed.Seconds())
	if status == web.StatusUnauthorized {
		m.AuthFailures.Inc()
	}
}

// WebSocketOpened and WebSocketClosed track upgraded connections.
func (m *Metrics) WebSocketOpened() {
	if m != nil {
		m.WebSocketsActive.Inc()
		m.WebSocketsTotal.Inc()
	}
}

func (m *Metrics) WebSocketClosed() {
	if m != nil {
		m.WebSocketsActive.Dec()
	}
}

// WriteText writes every metric in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, textFormat)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encoding %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

var textFormat = expfmt.NewFormat(expfmt.TypeTextPlain)

// Provider serves the metrics at path.
func (m *Metrics) Provider(path string) web.Provider {
	path = "/" + strings.Trim(path, "/")
	return web.ProviderFunc(func(req *web.Request) (*web.Response, bool) {
		if m == nil || req.Path != path {
			return nil, false
		}
		var buf bytes.Buffer
		if err := m.WriteText(&buf); err != nil {
			logging.Error("Failed to render metrics", zap.Error(err))
			return web.ErrorResponse(web.StatusInternalServerError), true
		}
		return &web.Response{Body: buf.Bytes(), MimeType: string(textFormat)}, true
	})
}
