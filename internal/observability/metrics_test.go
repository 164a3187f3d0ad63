package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRecordRequest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordRequest("/tickets", "GET", 200, 15*time.Millisecond)
	m.RecordRequest("/tickets", "GET", 200, 5*time.Millisecond)
	m.RecordError("/tickets/:id", "PATCH", "NOT_FOUND")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/tickets", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("PATCH", "/tickets/:id", "NOT_FOUND")))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRequest("/", "GET", 200, time.Millisecond)
		m.RecordError("/", "GET", "INTERNAL_ERROR")
		m.ArticlePublished()
		m.TicketStatusChanged("open")
		m.ChatMessageSent("agent")
		m.FanoutFailed()
	})
	assert.Nil(t, m.SubscriberGauge())
}

func TestMetricsDomainCounters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ArticlePublished()
	m.TicketStatusChanged("closed")
	m.TicketStatusChanged("closed")
	m.ChatMessageSent("contact")
	m.FanoutFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ArticlesPublished))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.TicketStatusChanges.WithLabelValues("closed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChatMessagesSent.WithLabelValues("contact")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FanoutFailures))
}
