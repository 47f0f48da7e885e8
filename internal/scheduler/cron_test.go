package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestValidateSpec(t *testing.T) {
	for _, spec := range []string{"0 2 * * *", "@daily", "@every 15m", "*/5 * * * 1-5"} {
		if err := ValidateSpec(spec); err != nil {
			t.Fatalf("ValidateSpec(%q): %v", spec, err)
		}
	}
	for _, spec := range []string{"", "every day", "61 * * * *", "* * * * * *"} {
		if err := ValidateSpec(spec); err == nil {
			t.Fatalf("expected %q to be rejected", spec)
		}
	}
}

func TestNextRun(t *testing.T) {
	after := time.Date(2026, 2, 9, 3, 0, 0, 0, time.UTC)
	next, err := NextRun("30 2 * * *", after)
	if err != nil {
		t.Fatalf("next run: %v", err)
	}
	want := time.Date(2026, 2, 10, 2, 30, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("next = %s, want %s", next, want)
	}
}

func TestRunnerAddValidatesJobs(t *testing.T) {
	r := NewRunner()
	ctx := context.Background()
	noop := func(context.Context) error { return nil }

	if err := r.Add(ctx, Job{Spec: "@daily", Run: noop}); err == nil {
		t.Fatal("expected missing name to be rejected")
	}
	if err := r.Add(ctx, Job{Name: "gen", Spec: "@daily"}); err == nil {
		t.Fatal("expected missing run func to be rejected")
	}
	if err := r.Add(ctx, Job{Name: "gen", Spec: "whenever", Run: noop}); err == nil {
		t.Fatal("expected bad spec to be rejected")
	}
	if err := r.Add(ctx, Job{Name: "gen", Spec: "@daily", Run: noop}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if len(r.Next()) != 1 {
		t.Fatalf("expected one registered job, got %d", len(r.Next()))
	}
}

func TestRunnerRunsJobsUntilCancelled(t *testing.T) {
	r := NewRunner()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	fired := make(chan struct{}, 1)
	if err := r.Add(ctx, Job{Name: "tick", Spec: "@every 1s", Run: func(context.Context) error {
		calls.Add(1)
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}}); err != nil {
		t.Fatalf("add: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
	if calls.Load() == 0 {
		t.Fatal("expected at least one call")
	}
}
