package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("WORKER_ENABLED", "")
	t.Setenv("SHUTDOWN_TIMEOUT", "")

	cfg := LoadConfig()
	if cfg.Addr != ":8080" {
		t.Fatalf("expected :8080, got %q", cfg.Addr)
	}
	if !cfg.WorkerEnabled || !cfg.ScheduleEnabled {
		t.Fatalf("expected worker and scheduler enabled by default: %+v", cfg)
	}
	if cfg.ShutdownTimeout != 15*time.Second {
		t.Fatalf("expected 15s shutdown timeout, got %s", cfg.ShutdownTimeout)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SCHEDULE_ENABLED", "false")
	t.Setenv("SRS_LATENCY_GRADING", "true")
	t.Setenv("SRS_SLOW_ANSWER_MS", "5000")

	cfg := LoadConfig()
	if cfg.Addr != ":9090" {
		t.Fatalf("expected :9090, got %q", cfg.Addr)
	}
	if cfg.ScheduleEnabled {
		t.Fatalf("expected scheduler disabled")
	}
	if !cfg.LatencyGrading || cfg.SlowAnswerMs != 5000 {
		t.Fatalf("unexpected grading config: %+v", cfg)
	}
}
