package flow

import (
	"log/slog"
	"sync"
	"time"
)

// DefaultInactivityTimeout closes sessions that stay silent this long.
const DefaultInactivityTimeout = 10 * time.Minute

type inactivityEntry struct {
	timerID      string
	token        uint64
	lastActivity time.Time
}

// InactivityMonitor keeps at most one armed timeout per user.
type InactivityMonitor struct {
	timer    Timer
	timeout  time.Duration
	onExpire func(userID string)
	now      func() time.Time

	mu        sync.Mutex
	entries   map[string]*inactivityEntry
	nextToken uint64
}

// NewInactivityMonitor creates a monitor that calls onExpire when a user's timeout elapses.
func NewInactivityMonitor(timer Timer, timeout time.Duration, onExpire func(userID string)) *InactivityMonitor {
	if timer == nil {
		timer = NewSimpleTimer()
	}
	if timeout <= 0 {
		timeout = DefaultInactivityTimeout
	}
	return &InactivityMonitor{
		timer:    timer,
		timeout:  timeout,
		onExpire: onExpire,
		now:      time.Now,
		entries:  make(map[string]*inactivityEntry),
	}
}

// Touch cancels the user's armed timeout, if any, and arms a fresh one.
func (m *InactivityMonitor) Touch(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[userID]; ok {
		_ = m.timer.Cancel(e.timerID)
	}

	m.nextToken++
	token := m.nextToken
	id, err := m.timer.ScheduleAfter(m.timeout, func() { m.fire(userID, token) })
	if err != nil {
		slog.Error("InactivityMonitor.Touch: failed to arm timer", "userID", userID, "error", err)
		delete(m.entries, userID)
		return
	}
	m.entries[userID] = &inactivityEntry{timerID: id, token: token, lastActivity: m.now()}
	slog.Debug("InactivityMonitor.Touch: timer armed", "userID", userID, "timerID", id, "timeout", m.timeout)
}

// Cancel disarms the user's timeout.
func (m *InactivityMonitor) Cancel(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[userID]; ok {
		_ = m.timer.Cancel(e.timerID)
		delete(m.entries, userID)
	}
}

// Armed reports whether the user currently has a pending timeout.
func (m *InactivityMonitor) Armed(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[userID]
	return ok
}

// LastActivity returns when the user's timeout was last re-armed.
func (m *InactivityMonitor) LastActivity(userID string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[userID]
	if !ok {
		return time.Time{}, false
	}
	return e.lastActivity, true
}

// Stop disarms every timeout.
func (m *InactivityMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for userID, e := range m.entries {
		_ = m.timer.Cancel(e.timerID)
		delete(m.entries, userID)
	}
	m.timer.Stop()
}

// fire runs when a timer elapses. Callbacks from superseded timers are dropped.
func (m *InactivityMonitor) fire(userID string, token uint64) {
	m.mu.Lock()
	e, ok := m.entries[userID]
	if !ok || e.token != token {
		m.mu.Unlock()
		slog.Debug("InactivityMonitor: stale timer ignored", "userID", userID)
		return
	}
	delete(m.entries, userID)
	m.mu.Unlock()

	slog.Info("InactivityMonitor: timeout elapsed", "userID", userID, "timeout", m.timeout)
	if m.onExpire != nil {
		m.onExpire(userID)
	}
}
