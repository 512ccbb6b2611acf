package flow

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Timer schedules cancellable deferred callbacks.
type Timer interface {
	ScheduleAfter(delay time.Duration, fn func()) (string, error)
	Cancel(id string) error
	Stop()
}

// timerEntry tracks information about a scheduled timer
type timerEntry struct {
	timer     *time.Timer
	expiresAt time.Time
}

// SimpleTimer implements Timer using time.AfterFunc.
type SimpleTimer struct {
	timers map[string]*timerEntry
	mu     sync.Mutex
	nextID int64
}

// NewSimpleTimer creates a new SimpleTimer.
func NewSimpleTimer() *SimpleTimer {
	return &SimpleTimer{
		timers: make(map[string]*timerEntry),
	}
}

// ScheduleAfter schedules fn to run after delay and returns the timer id.
func (t *SimpleTimer) ScheduleAfter(delay time.Duration, fn func()) (string, error) {
	if fn == nil {
		return "", fmt.Errorf("timer callback cannot be nil")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.nextID++
	id := fmt.Sprintf("timer_%d", t.nextID)

	timer := time.AfterFunc(delay, func() {
		t.mu.Lock()
		_, live := t.timers[id]
		delete(t.timers, id)
		t.mu.Unlock()
		if !live {
			return
		}
		slog.Debug("SimpleTimer executing scheduled function", "id", id)
		fn()
	})

	t.timers[id] = &timerEntry{timer: timer, expiresAt: time.Now().Add(delay)}
	slog.Debug("SimpleTimer ScheduleAfter succeeded", "id", id, "delay", delay)
	return id, nil
}

// Cancel stops a scheduled callback. Unknown ids are ignored.
func (t *SimpleTimer) Cancel(id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.timers[id]; exists {
		entry.timer.Stop()
		delete(t.timers, id)
		slog.Debug("SimpleTimer Cancel succeeded", "id", id)
	}
	return nil
}

// Stop cancels all scheduled timers.
func (t *SimpleTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, entry := range t.timers {
		entry.timer.Stop()
	}
	slog.Info("SimpleTimer stopped all timers", "count", len(t.timers))
	t.timers = make(map[string]*timerEntry)
}

// Active returns the number of armed timers.
func (t *SimpleTimer) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}
