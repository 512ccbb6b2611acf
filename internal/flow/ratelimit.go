package flow

import (
	"log/slog"
	"sync"
	"time"
)

// AI question limits
const (
	// DefaultAIWindow is the length of the rolling AI usage window
	DefaultAIWindow = 2 * time.Hour
	// DefaultAIMaxQuestions is the number of AI questions allowed per window
	DefaultAIMaxQuestions = 3
)

// AIUsageRecord counts the AI questions a user asked in the current window.
type AIUsageRecord struct {
	Count       int
	WindowStart time.Time
}

// RateLimiter tracks AI question usage per user.
type RateLimiter struct {
	records map[string]*AIUsageRecord
	mu      sync.Mutex
	window  time.Duration
	max     int
	now     func() time.Time
}

// RateLimiterOption configures a RateLimiter.
type RateLimiterOption func(*RateLimiter)

// WithWindow overrides the usage window length.
func WithWindow(window time.Duration) RateLimiterOption {
	return func(r *RateLimiter) { r.window = window }
}

// WithMaxQuestions overrides the number of questions per window.
func WithMaxQuestions(max int) RateLimiterOption {
	return func(r *RateLimiter) { r.max = max }
}

// WithLimiterClock injects the clock used for window arithmetic.
func WithLimiterClock(now func() time.Time) RateLimiterOption {
	return func(r *RateLimiter) { r.now = now }
}

// NewRateLimiter creates a RateLimiter with the default 3 questions per 2 hours.
func NewRateLimiter(opts ...RateLimiterOption) *RateLimiter {
	r := &RateLimiter{
		records: make(map[string]*AIUsageRecord),
		window:  DefaultAIWindow,
		max:     DefaultAIMaxQuestions,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// recordLocked returns the user's record, resetting it when the window elapsed.
// Callers must hold r.mu.
func (r *RateLimiter) recordLocked(userID string, now time.Time) *AIUsageRecord {
	rec, ok := r.records[userID]
	if !ok {
		rec = &AIUsageRecord{WindowStart: now}
		r.records[userID] = rec
		return rec
	}
	if now.Sub(rec.WindowStart) > r.window {
		slog.Debug("RateLimiter: window elapsed, resetting usage", "userID", userID, "previousCount", rec.Count)
		rec.Count = 0
		rec.WindowStart = now
	}
	return rec
}

// CanAsk reports whether the user may ask another AI question in the current window.
func (r *RateLimiter) CanAsk(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.recordLocked(userID, r.now())
	return rec.Count < r.max
}

// Record counts one answered AI question.
func (r *RateLimiter) Record(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	rec, ok := r.records[userID]
	if !ok || now.Sub(rec.WindowStart) > r.window {
		r.records[userID] = &AIUsageRecord{Count: 1, WindowStart: now}
		slog.Debug("RateLimiter.Record: started new window", "userID", userID)
		return
	}
	rec.Count++
	slog.Debug("RateLimiter.Record: usage recorded", "userID", userID, "count", rec.Count, "max", r.max)
}

// Remaining returns how many questions the user has left in the current window.
func (r *RateLimiter) Remaining(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.recordLocked(userID, r.now())
	if left := r.max - rec.Count; left > 0 {
		return left
	}
	return 0
}

// RetryAfter returns how long until the user's window resets.
func (r *RateLimiter) RetryAfter(userID string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	rec := r.recordLocked(userID, now)
	wait := rec.WindowStart.Add(r.window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Usage returns a copy of the user's usage record.
func (r *RateLimiter) Usage(userID string) (AIUsageRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[userID]
	if !ok {
		return AIUsageRecord{}, false
	}
	return *rec, true
}
