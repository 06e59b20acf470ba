package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsJob(t *testing.T) {
	var runs atomic.Int64
	s := New(Job{
		Name: "tick",
		Spec: "@every 100ms",
		Run:  func(context.Context) { runs.Add(1) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	deadline := time.After(5 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := New(Job{Name: "broken", Spec: "not a cron spec", Run: func(context.Context) {}})
	if err := s.Start(context.Background()); err == nil {
		t.Error("Start() accepted an invalid cron spec")
		s.Stop()
	}
}

func TestSchedulerSkipsEmptySpec(t *testing.T) {
	s := New(Job{Name: "unscheduled", Spec: "", Run: func(context.Context) {}})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()
	if !s.Running() {
		t.Error("Running() = false after Start")
	}
}

func TestSchedulerStopsOnContextCancel(t *testing.T) {
	s := New(Job{Name: "tick", Spec: "@every 1h", Run: func(context.Context) {}})
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cancel()
	deadline := time.After(5 * time.Second)
	for s.Running() {
		select {
		case <-deadline:
			t.Fatal("scheduler still running after cancel")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSchedulerRecoversFromPanic(t *testing.T) {
	var after atomic.Bool
	s := New(
		Job{Name: "panics", Spec: "@every 50ms", Run: func(context.Context) { panic("boom") }},
		Job{Name: "survives", Spec: "@every 50ms", Run: func(context.Context) { after.Store(true) }},
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer s.Stop()

	deadline := time.After(5 * time.Second)
	for !after.Load() {
		select {
		case <-deadline:
			t.Fatal("second job starved by panicking sibling")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
