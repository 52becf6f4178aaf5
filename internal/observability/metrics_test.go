package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	m.SessionEvent("created")
	m.ObserveFrame("inbound", "session.created")
	m.ObserveMalformed()
	m.ObserveServerError("server_error", true)
	m.ObserveWSMessage("inbound", "client_text")
	m.ObserveConnectLatency(time.Second)
	m.SetActiveSessions(3)
}

func TestMetricsCountFrames(t *testing.T) {
	m := NewMetrics("test_obs_" + time.Now().Format("150405") + "_" + time.Now().Format("000000000"))
	m.ObserveFrame("outbound", "session.update")
	m.ObserveFrame("outbound", "session.update")
	m.ObserveMalformed()

	if got := testutil.ToFloat64(m.DataFrames.WithLabelValues("outbound", "session.update")); got != 2 {
		t.Fatalf("session.update frames = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.MalformedFrames); got != 1 {
		t.Fatalf("malformed frames = %v, want 1", got)
	}
}
