package audit

import "testing"

func TestRealTimeMonitorGetRecentAlerts(t *testing.T) {
	l := newTestLogger(t)
	defer l.Close()

	l.Log(EventAuthFailure, SeverityError, "alice", "127.0.0.1", nil)
	l.Log(EventPermissionDenied, SeverityCritical, "bob", "10.0.0.5", nil)

	monitor := NewRealTimeMonitor(l)
	alerts := monitor.GetRecentAlerts()
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
}
