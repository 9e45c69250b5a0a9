package scheduler

import (
	"testing"
	"time"
)

func TestSimpleTimerFires(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	id, err := timer.ScheduleAfter(10*time.Millisecond, func() { close(fired) })
	if err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}
	if id == "" {
		t.Errorf("expected a timer ID")
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	if timer.Active() != 0 {
		t.Errorf("fired timer should be removed, active=%d", timer.Active())
	}
}

func TestSimpleTimerCancel(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	id, err := timer.ScheduleAfter(50*time.Millisecond, func() { close(fired) })
	if err != nil {
		t.Fatalf("ScheduleAfter failed: %v", err)
	}
	if err := timer.Cancel(id); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(150 * time.Millisecond):
	}

	if err := timer.Cancel(id); err == nil {
		t.Errorf("cancelling an unknown ID should fail")
	}
}

func TestSimpleTimerRejectsNegativeDelay(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	if _, err := timer.ScheduleAfter(-time.Second, func() {}); err == nil {
		t.Errorf("negative delay should be rejected")
	}
}

func TestSimpleTimerScheduleAtPastFiresImmediately(t *testing.T) {
	timer := NewSimpleTimer()
	defer timer.Stop()

	fired := make(chan struct{})
	if _, err := timer.ScheduleAt(time.Now().Add(-time.Minute), func() { close(fired) }); err != nil {
		t.Fatalf("ScheduleAt failed: %v", err)
	}
	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("past instant should fire immediately")
	}
}

func TestSimpleTimerStop(t *testing.T) {
	timer := NewSimpleTimer()
	for i := 0; i < 3; i++ {
		if _, err := timer.ScheduleAfter(time.Minute, func() {}); err != nil {
			t.Fatalf("ScheduleAfter failed: %v", err)
		}
	}
	if timer.Active() != 3 {
		t.Fatalf("expected 3 active timers, got %d", timer.Active())
	}
	timer.Stop()
	if timer.Active() != 0 {
		t.Errorf("Stop should clear the registry, active=%d", timer.Active())
	}
}
