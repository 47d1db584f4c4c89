package main

import (
	"context"
	"testing"
	"time"
)

func TestSessionSweep_DropsIdleSessions(t *testing.T) {
	cfg := testConfig()
	cfg.Session.TTL = 50 * time.Millisecond
	cfg.Session.SweepSchedule = "@every 1s"
	app := newTestApp(t, cfg)

	stop, err := startSessionSweep(context.Background(), app)
	if err != nil {
		t.Fatalf("start sweep: %v", err)
	}
	defer stop()

	if _, _, err := app.Sessions.Create(); err != nil {
		t.Fatalf("create session: %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for app.Sessions.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected idle session to be swept, %d left", app.Sessions.Len())
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func TestSessionSweep_EmptyScheduleDisables(t *testing.T) {
	cfg := testConfig()
	cfg.Session.SweepSchedule = ""
	app := newTestApp(t, cfg)

	stop, err := startSessionSweep(context.Background(), app)
	if err != nil {
		t.Fatalf("start sweep: %v", err)
	}
	stop()
}

func TestSessionSweep_RejectsBadSchedule(t *testing.T) {
	cfg := testConfig()
	cfg.Session.SweepSchedule = "every tuesday"
	app := newTestApp(t, cfg)

	if _, err := startSessionSweep(context.Background(), app); err == nil {
		t.Fatalf("expected schedule error")
	}
}
