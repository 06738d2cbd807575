package instance

import "testing"

func TestGetIDPrefersWorkerID(t *testing.T) {
	t.Setenv("WORKER_ID", "cron-2")
	t.Setenv("HOSTNAME", "pod-abc")
	if got := GetID(); got != "cron-2" {
		t.Fatalf("expected WORKER_ID, got %q", got)
	}
}

func TestGetIDFallsBackToHostname(t *testing.T) {
	t.Setenv("WORKER_ID", "")
	t.Setenv("HOSTNAME", "pod-abc")
	if got := GetID(); got != "pod-abc" {
		t.Fatalf("expected HOSTNAME, got %q", got)
	}
}
