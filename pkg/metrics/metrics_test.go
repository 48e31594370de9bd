package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewSet(WithRegistry(reg))

	s.ToggleOutcome("like", "ok")
	s.ToggleOutcome("like", "ok")
	s.ToggleOutcome("collection", "error")
	s.ObserveToggleDuration("like", 25*time.Millisecond)
	s.RollbackInc()
	s.InflightDroppedInc()
	s.ChannelConnect("ok")
	s.ChannelEvent("presence_sync")
	s.NotificationInc("error")

	if got := testutil.ToFloat64(s.togglesTotal.WithLabelValues("like", "ok")); got != 2 {
		t.Errorf("toggles_total{like,ok} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.togglesTotal.WithLabelValues("collection", "error")); got != 1 {
		t.Errorf("toggles_total{collection,error} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.rollbacksTotal); got != 1 {
		t.Errorf("rollbacks_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.inflightDropped); got != 1 {
		t.Errorf("inflight_dropped_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.channelConnects.WithLabelValues("ok")); got != 1 {
		t.Errorf("channel_connects_total{ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.channelEvents.WithLabelValues("presence_sync")); got != 1 {
		t.Errorf("channel_events_total{presence_sync} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.notificationsTotal.WithLabelValues("error")); got != 1 {
		t.Errorf("notifications_total{error} = %v, want 1", got)
	}

	// Everything lands in the registry the Set was built against.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) != 7 {
		t.Errorf("expected 7 metric families, got %d", len(families))
	}
}

func TestNilSetRecordsNothing(t *testing.T) {
	// Metrics are optional: every recorder must be a no-op on nil.
	var s *Set
	s.ToggleOutcome("like", "ok")
	s.ObserveToggleDuration("like", time.Millisecond)
	s.RollbackInc()
	s.InflightDroppedInc()
	s.ChannelConnect("ok")
	s.ChannelEvent("join")
	s.NotificationInc("info")
}

func TestDefaultIsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Error("Default returned distinct sets")
	}
}
