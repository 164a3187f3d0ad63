package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "support_desk"

// Metrics groups the Prometheus collectors of the service.
type Metrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	ErrorsTotal         *prometheus.CounterVec
	ArticlesPublished   prometheus.Counter
	TicketStatusChanges *prometheus.CounterVec
	ChatMessagesSent    *prometheus.CounterVec
	FanoutFailures      prometheus.Counter
	ChatSubscribers     prometheus.Gauge
}

// NewMetrics registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Total number of failed requests by error code",
		}, []string{"method", "route", "code"}),
		ArticlesPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "articles",
			Name:      "published_total",
			Help:      "Articles moved to published",
		}),
		TicketStatusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "status_changes_total",
			Help:      "Ticket status writes by target status",
		}, []string{"status"}),
		ChatMessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "messages_sent_total",
			Help:      "Chat messages stored by sender type",
		}, []string{"sender_type"}),
		FanoutFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "fanout_failures_total",
			Help:      "Stored chat messages whose live publish failed",
		}),
		ChatSubscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "subscribers",
			Help:      "Live chat session subscriptions in this process",
		}),
	}
}

// RecordRequest observes a finished request.
func (m *Metrics) RecordRequest(route, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(route, method, code string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(method, route, code).Inc()
}

// ArticlePublished counts an article entering the published state.
func (m *Metrics) ArticlePublished() {
	if m == nil {
		return
	}
	m.ArticlesPublished.Inc()
}

// TicketStatusChanged counts a ticket status write.
func (m *Metrics) TicketStatusChanged(status string) {
	if m == nil {
		return
	}
	m.TicketStatusChanges.WithLabelValues(status).Inc()
}

// ChatMessageSent counts a stored chat message.
func (m *Metrics) ChatMessageSent(senderType string) {
	if m == nil {
		return
	}
	m.ChatMessagesSent.WithLabelValues(senderType).Inc()
}

// FanoutFailed counts a live publish that failed after the message was stored.
func (m *Metrics) FanoutFailed() {
	if m == nil {
		return
	}
	m.FanoutFailures.Inc()
}

// SubscriberGauge exposes the live subscriber gauge, or nil when metrics are off.
func (m *Metrics) SubscriberGauge() prometheus.Gauge {
	if m == nil {
		return nil
	}
	return m.ChatSubscribers
}
