package reconnect

import (
	"context"
	"testing"
	"time"
)

func TestScheduleFires(t *testing.T) {
	s := New()
	fc := NewFakeClock()
	fired := make(chan struct{})

	s.Schedule(context.Background(), fc, func(ctx context.Context) {
		close(fired)
	})
	if !s.Pending() {
		t.Fatal("expected pending after schedule")
	}

	fc.Fire()
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("fire callback never ran")
	}

	// Give clearIfCurrent's goroutine a moment to update state.
	deadline := time.After(time.Second)
	for s.Pending() {
		select {
		case <-deadline:
			t.Fatal("expected Pending() to clear after natural fire")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestScheduleReplacesPriorJob(t *testing.T) {
	s := New()
	fc1 := NewFakeClock()
	fc2 := NewFakeClock()

	firstFired := false
	s.Schedule(context.Background(), fc1, func(ctx context.Context) {
		firstFired = true
	})

	secondFired := make(chan struct{})
	s.Schedule(context.Background(), fc2, func(ctx context.Context) {
		close(secondFired)
	})

	fc1.Fire() // the superseded job's clock; should have no observable effect
	fc2.Fire()

	select {
	case <-secondFired:
	case <-time.After(time.Second):
		t.Fatal("second job never fired")
	}
	time.Sleep(10 * time.Millisecond)
	if firstFired {
		t.Fatal("superseded job must not fire")
	}
}

func TestCancelPreventsFire(t *testing.T) {
	s := New()
	fc := NewFakeClock()
	fired := false

	s.Schedule(context.Background(), fc, func(ctx context.Context) {
		fired = true
	})
	s.Cancel()
	if s.Pending() {
		t.Fatal("expected not pending after cancel")
	}

	fc.Fire()
	time.Sleep(20 * time.Millisecond)
	if fired {
		t.Fatal("cancelled job must not fire")
	}
}

func TestCancelIdempotent(t *testing.T) {
	s := New()
	s.Cancel()
	s.Cancel()
}
