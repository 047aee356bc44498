package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sharedcart"

// Delivery drop reasons.
const (
	DropDisconnected = "disconnected"
	DropOverflow     = "overflow"
)

// Recorder owns the cart collectors and their registry.
type Recorder struct {
	registry          *prometheus.Registry
	sessionsLive      prometheus.Gauge
	connectionsOpen   prometheus.Gauge
	eventsPublished   *prometheus.CounterVec
	deliveriesDropped *prometheus.CounterVec
	framesRejected    *prometheus.CounterVec
	reconciliations   prometheus.Counter
}

// New builds a Recorder on a fresh registry that also carries the Go runtime
// and process collectors.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		sessionsLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_live",
			Help:      "Sessions currently resident in the registry.",
		}),
		connectionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "WebSocket connections currently attached.",
		}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Outbound events accepted for delivery, by event name.",
		}, []string{"event"}),
		deliveriesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "Per-connection deliveries that were not enqueued, by reason.",
		}, []string{"reason"}),
		framesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_rejected_total",
			Help:      "Inbound frames answered with an error frame, by code.",
		}, []string{"code"}),
		reconciliations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "total_reconciliations_total",
			Help:      "Session totals snapped to their recomputed value.",
		}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.sessionsLive,
		r.connectionsOpen,
		r.eventsPublished,
		r.deliveriesDropped,
		r.framesRejected,
		r.reconciliations,
	)
	return r
}

// Handler serves the registry in Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// SessionCreated records a session entering the registry.
func (r *Recorder) SessionCreated() {
	if r == nil {
		return
	}
	r.sessionsLive.Inc()
}

// SessionRemoved records a session leaving the registry.
func (r *Recorder) SessionRemoved() {
	if r == nil {
		return
	}
	r.sessionsLive.Dec()
}

// ConnectionOpened records a new transport connection.
func (r *Recorder) ConnectionOpened() {
	if r == nil {
		return
	}
	r.connectionsOpen.Inc()
}

// ConnectionClosed records a transport connection going away.
func (r *Recorder) ConnectionClosed() {
	if r == nil {
		return
	}
	r.connectionsOpen.Dec()
}

// EventPublished records one outbound event accepted by the router.
func (r *Recorder) EventPublished(event string) {
	if r == nil {
		return
	}
	r.eventsPublished.WithLabelValues(event).Inc()
}

// DeliveryDropped records a delivery that never reached a mailbox.
func (r *Recorder) DeliveryDropped(reason string) {
	if r == nil {
		return
	}
	r.deliveriesDropped.WithLabelValues(reason).Inc()
}

// FrameRejected records an inbound frame answered with an error.
func (r *Recorder) FrameRejected(code string) {
	if r == nil {
		return
	}
	r.framesRejected.WithLabelValues(code).Inc()
}

// TotalReconciled records a drifted session total being corrected.
func (r *Recorder) TotalReconciled() {
	if r == nil {
		return
	}
	r.reconciliations.Inc()
}

// SessionsLive exposes the live sessions gauge for inspection.
func (r *Recorder) SessionsLive() prometheus.Gauge { return r.sessionsLive }

// ConnectionsOpen exposes the open connections gauge for inspection.
func (r *Recorder) ConnectionsOpen() prometheus.Gauge { return r.connectionsOpen }

// DeliveriesDropped exposes the dropped deliveries counter for reason.
func (r *Recorder) DeliveriesDropped(reason string) prometheus.Counter {
	return r.deliveriesDropped.WithLabelValues(reason)
}

// FramesRejected exposes the rejected frames counter for code.
func (r *Recorder) FramesRejected(code string) prometheus.Counter {
	return r.framesRejected.WithLabelValues(code)
}

// Reconciliations exposes the total reconciliation counter.
func (r *Recorder) Reconciliations() prometheus.Counter { return r.reconciliations }
