package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordEvent(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordEvent(false, true, 320)
	m.RecordEvent(false, false, 300)
	m.RecordEvent(true, false, 300)

	if got := testutil.ToFloat64(m.EventsProcessed.WithLabelValues("partial")); got != 2 {
		t.Errorf("expected 2 partial events, got %v", got)
	}
	if got := testutil.ToFloat64(m.EventsProcessed.WithLabelValues("boundary")); got != 1 {
		t.Errorf("expected 1 boundary event, got %v", got)
	}
	if got := testutil.ToFloat64(m.RatesAccepted); got != 1 {
		t.Errorf("expected 1 accepted rate, got %v", got)
	}
	if got := testutil.ToFloat64(m.RatesRejected); got != 1 {
		t.Errorf("expected 1 rejected rate, got %v", got)
	}
}

func TestRecordSessionLifecycle(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordSessionStarted()
	m.RecordSessionStarted()
	m.RecordSessionStopped("explicit", 12)

	if got := testutil.ToFloat64(m.SessionsActive); got != 1 {
		t.Errorf("expected 1 active session, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsStopped.WithLabelValues("explicit")); got != 1 {
		t.Errorf("expected 1 explicit stop, got %v", got)
	}
}

func TestRecordKafkaPublish(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordKafkaPublish("practice.feedback.live", "feedback", nil, 0.01)
	m.RecordKafkaPublish("practice.feedback.live", "feedback", errors.New("broker down"), 0.5)

	if got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues("practice.feedback.live", "feedback")); got != 2 {
		t.Errorf("expected 2 publishes, got %v", got)
	}
	if got := testutil.ToFloat64(m.KafkaPublishErrors.WithLabelValues("practice.feedback.live", "feedback")); got != 1 {
		t.Errorf("expected 1 publish error, got %v", got)
	}
}
