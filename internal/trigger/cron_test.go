package trigger

import (
	"context"
	"testing"
	"time"
)

func TestCron_Validate(t *testing.T) {
	if err := NewCron("*/5 * * * *", "UTC").Validate(); err != nil {
		t.Fatalf("expected valid schedule, got %v", err)
	}
	bad := []*Cron{
		NewCron("", ""),
		NewCron("not a schedule", ""),
		NewCron("* * * * *", "Nowhere/Land"),
	}
	for _, c := range bad {
		if err := c.Validate(); err == nil {
			t.Fatalf("expected error for schedule %q timezone %q", c.schedule, c.timezone)
		}
	}
}

func TestCron_StartClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCron("@every 1h", "")
	events, err := c.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := c.Start(ctx); err == nil {
		t.Fatalf("expected error on second start")
	}
	cancel()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatalf("expected channel to close without events")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("channel not closed after cancel")
	}
}

func TestManual_FireDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m := NewManual()
	events, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !m.Fire() {
		t.Fatalf("expected first fire to queue")
	}
	select {
	case ev := <-events:
		if ev.Source != "manual" {
			t.Fatalf("unexpected source %q", ev.Source)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("no event delivered")
	}
}
