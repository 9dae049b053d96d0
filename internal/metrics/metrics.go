// Package metrics provides Prometheus instrumentation for the inbox.
//
// Conversation activity is recorded through ConversationMetrics, which
// implements secondary.ActivityRecorder so the application layer stays free of
// Prometheus types. HTTP latency is recorded by the API middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/example/inbox/internal/ports/secondary"
)

// Namespace for all metrics
const metricsNamespace = "inbox"

// ConversationMetrics holds the conversation activity collectors.
type ConversationMetrics struct {
	ConversationsCreated prometheus.Counter
	ConversationsOpened  prometheus.Counter
	ConversationsDeleted prometheus.Counter
	MessagesSent         prometheus.Counter
	MessagesMarkedRead   prometheus.Counter
	WriteConflicts       *prometheus.CounterVec
}

// NewConversationMetrics registers the conversation collectors with reg.
func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	factory := promauto.With(reg)
	return &ConversationMetrics{
		ConversationsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "conversations",
			Name:      "created_total",
			Help:      "Conversations created by find-or-create.",
		}),
		ConversationsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "conversations",
			Name:      "opened_total",
			Help:      "Conversation opens (mark-read requests).",
		}),
		ConversationsDeleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "conversations",
			Name:      "deleted_total",
			Help:      "Conversations permanently deleted.",
		}),
		MessagesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "messages",
			Name:      "sent_total",
			Help:      "Messages appended to conversations.",
		}),
		MessagesMarkedRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "messages",
			Name:      "marked_read_total",
			Help:      "Messages flipped to read by opens.",
		}),
		WriteConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "store",
			Name:      "write_conflicts_total",
			Help:      "Writes that hit lock contention, by operation.",
		}, []string{"operation"}),
	}
}

func (m *ConversationMetrics) ConversationCreated() { m.ConversationsCreated.Inc() }

func (m *ConversationMetrics) MessageSent() { m.MessagesSent.Inc() }

func (m *ConversationMetrics) ConversationOpened(marked int) {
	m.ConversationsOpened.Inc()
	m.MessagesMarkedRead.Add(float64(marked))
}

func (m *ConversationMetrics) ConversationDeleted() { m.ConversationsDeleted.Inc() }

func (m *ConversationMetrics) WriteConflict(operation string) {
	m.WriteConflicts.WithLabelValues(operation).Inc()
}

// Ensure ConversationMetrics implements the interface.
var _ secondary.ActivityRecorder = (*ConversationMetrics)(nil)

// HTTPMetrics holds API request collectors.
type HTTPMetrics struct {
	RequestDuration *prometheus.HistogramVec
	RateLimited     *prometheus.CounterVec
}

// NewHTTPMetrics registers the API collectors with reg.
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	factory := promauto.With(reg)
	return &HTTPMetrics{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request latency by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-identity limiter, by route.",
		}, []string{"route"}),
	}
}
