package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordHandshake(t *testing.T) {
	c := NewCollector()
	c.RecordHandshake("success")
	c.RecordHandshake("success")
	c.RecordHandshake("failure")

	if got := testutil.ToFloat64(c.HandshakesTotal.WithLabelValues("success")); got != 2 {
		t.Errorf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.HandshakesTotal.WithLabelValues("failure")); got != 1 {
		t.Errorf("failure count = %v, want 1", got)
	}
}

func TestSessionStartedEnded(t *testing.T) {
	c := NewCollector()
	c.SessionStarted()
	c.SessionStarted()
	c.SessionEnded()

	if got := testutil.ToFloat64(c.SessionsActive); got != 1 {
		t.Errorf("sessions active = %v, want 1", got)
	}
}

func TestSetOutboxDepth(t *testing.T) {
	c := NewCollector()
	c.SetOutboxDepth("client-a", 5)
	c.SetOutboxDepth("client-a", 3)
	c.SetOutboxDepth("client-b", 9)

	if got := testutil.ToFloat64(c.OutboxDepth.WithLabelValues("client-a")); got != 3 {
		t.Errorf("client-a depth = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.OutboxDepth.WithLabelValues("client-b")); got != 9 {
		t.Errorf("client-b depth = %v, want 9", got)
	}
}

func TestRecordRelayError(t *testing.T) {
	c := NewCollector()
	c.RecordRelayError("ciphertext_malformed")
	c.RecordRelayError("ciphertext_malformed")
	c.RecordRelayError("invalid_iv")

	if got := testutil.ToFloat64(c.RelayErrorsTotal.WithLabelValues("ciphertext_malformed")); got != 2 {
		t.Errorf("ciphertext_malformed count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.RelayErrorsTotal.WithLabelValues("invalid_iv")); got != 1 {
		t.Errorf("invalid_iv count = %v, want 1", got)
	}
}

func TestGlobalCollectorIsSingleton(t *testing.T) {
	a := Global()
	b := Global()
	if a != b {
		t.Error("Global() should return the same Collector on repeated calls")
	}
}

func TestNewCollectorRegistersAllSeries(t *testing.T) {
	c := NewCollector()
	// A labelled family with no children is not gathered; give outbox_depth one.
	c.SetOutboxDepth("client-a", 1)
	mfs, err := c.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool)
	for _, mf := range mfs {
		names[mf.GetName()] = true
	}
	for _, want := range []string{
		"vcsms_handshakes_total",
		"vcsms_sessions_active",
		"vcsms_outbox_depth",
		"vcsms_relay_errors_total",
	} {
		if !names[want] {
			t.Errorf("registry missing series %q (has %v)", want, names)
		}
	}
}
