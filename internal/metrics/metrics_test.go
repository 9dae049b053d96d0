package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestConversationMetrics_RecordsActivity(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)

	m.ConversationCreated()
	m.MessageSent()
	m.MessageSent()
	m.ConversationOpened(2)
	m.ConversationOpened(0)
	m.WriteConflict("send")

	if got := testutil.ToFloat64(m.MessagesSent); got != 2 {
		t.Errorf("messages sent = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ConversationsOpened); got != 2 {
		t.Errorf("opens = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.MessagesMarkedRead); got != 2 {
		t.Errorf("marked read = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.WriteConflicts.WithLabelValues("send")); got != 1 {
		t.Errorf("send conflicts = %v, want 1", got)
	}
}

func TestNewHTTPMetrics_RegistersOnSeparateRegistries(t *testing.T) {
	// Each registry gets its own collectors; registering twice must not panic.
	NewHTTPMetrics(prometheus.NewRegistry())
	NewHTTPMetrics(prometheus.NewRegistry())
}
