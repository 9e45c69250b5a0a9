// Package scheduler decides when and why to proactively re-engage an idle
// customer, and fires the resulting events.
package scheduler

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Timer schedules one-shot callbacks for proactive events.
type Timer interface {
	// ScheduleAfter runs fn once after the given delay and returns a timer ID.
	ScheduleAfter(delay time.Duration, fn func()) (string, error)
	// ScheduleAt runs fn once at the given instant and returns a timer ID.
	ScheduleAt(at time.Time, fn func()) (string, error)
	// Cancel stops the timer with the given ID.
	Cancel(id string) error
	// Stop cancels all outstanding timers.
	Stop()
}

// SimpleTimer implements Timer with time.AfterFunc and an in-memory registry.
type SimpleTimer struct {
	mu     sync.RWMutex
	timers map[string]*time.Timer
	nextID int64
}

// NewSimpleTimer creates an empty timer registry.
func NewSimpleTimer() *SimpleTimer {
	return &SimpleTimer{timers: make(map[string]*time.Timer)}
}

// ScheduleAfter runs fn once after delay.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	if delay < 0 {
		return "", fmt.Errorf("delay cannot be negative: %v", delay)
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)
	t.timers[id] = time.AfterFunc(delay, func() {
		t.mu.Lock()
		delete(t.timers, id)
		t.mu.Unlock()
		fn()
	})
	slog.Debug("SimpleTimer.ScheduleAfter: timer registered", "id", id, "delay", delay)
	return id, nil
}

// ScheduleAt runs fn once at the given instant. Instants in the past fire
// immediately.
func (t *SimpleTimer) ScheduleAt(at time.Time, fn func()) (string, error) {
	delay := time.Until(at)
	if delay < 0 {
		delay = 0
	}
	return t.ScheduleAfter(delay, fn)
}

// Cancel stops and removes the timer with the given ID.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	timer, ok := t.timers[id]
	if !ok {
		return fmt.Errorf("timer not found: %s", id)
	}
	timer.Stop()
	delete(t.timers, id)
	slog.Debug("SimpleTimer.Cancel: timer cancelled", "id", id)
	return nil
}

// Stop cancels all outstanding timers.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for id, timer := range t.timers {
		timer.Stop()
		delete(t.timers, id)
	}
	slog.Debug("SimpleTimer.Stop: all timers cancelled")
}

// Active returns the number of outstanding timers.
func (t *SimpleTimer) Active() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.timers)
}
