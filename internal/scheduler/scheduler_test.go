package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerAddJob(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	for _, expr := range []string{"* * * * *", DailyReminder, "@daily", "0 8 * * 1-6"} {
		if err := s.AddJob(expr, expr, func() {}); err != nil {
			t.Errorf("Expected %q to be accepted, got %v", expr, err)
		}
	}
	if s.Jobs() != 4 {
		t.Errorf("Expected 4 jobs, got %d", s.Jobs())
	}
	if err := s.AddJob("bad", "every day", func() {}); err == nil {
		t.Error("Expected an invalid expression to be rejected")
	}
}

func TestSchedulerReplaceAndRemove(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	if err := s.AddJob("reminders", "@every 1h", func() {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.AddJob("reminders", "@every 2h", func() {}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Jobs() != 1 || len(s.cron.Entries()) != 1 {
		t.Errorf("Expected the job to be replaced, got %d jobs and %d entries", s.Jobs(), len(s.cron.Entries()))
	}
	s.RemoveJob("reminders")
	s.RemoveJob("unknown")
	if s.Jobs() != 0 || len(s.cron.Entries()) != 0 {
		t.Error("Expected no jobs after removal")
	}
}

func TestSchedulerRecoversPanics(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var runs atomic.Int32
	ran := make(chan struct{}, 8)
	if err := s.AddJob("panics-once", "@every 1s", func() {
		n := runs.Add(1)
		select {
		case ran <- struct{}{}:
		default:
		}
		if n == 1 {
			panic("boom")
		}
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 3; i++ {
		select {
		case <-ran:
		case <-time.After(5 * time.Second):
			t.Fatalf("Expected the job to keep running after a panic, got %d runs", runs.Load())
		}
	}
}
