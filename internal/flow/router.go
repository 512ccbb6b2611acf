package flow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/BTreeMap/GymBro/internal/metrics"
	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/util"
)

// ErrMissingUserID is returned for inbound events that carry no sender.
var ErrMissingUserID = errors.New("inbound event has no user id")

const (
	// DefaultNoticeTimeout bounds the send of the inactivity notice.
	DefaultNoticeTimeout = 30 * time.Second
	// DefaultFinalizedRetention is how long a finalized chat stays closed to anything but a
	// greeting. After that the user is forgotten.
	DefaultFinalizedRetention = 24 * time.Hour
)

// Router is the entry point for inbound events. It serializes work per user, keeps the
// inactivity timers armed and persists the sessions the engine produces.
type Router struct {
	engine        *Engine
	sessions      SessionStore
	messenger     Messenger
	locks         *KeyedMutex
	inactivity    *InactivityMonitor
	noticeTimeout time.Duration

	// finalized holds the tombstones of closed chats, apart from live sessions.
	finalized *InMemorySessionStore
	retention *InactivityMonitor
}

// RouterOpts holds optional Router settings.
type RouterOpts struct {
	Timer              Timer
	InactivityTimeout  time.Duration
	NoticeTimeout      time.Duration
	FinalizedRetention time.Duration
}

// RouterOption configures a Router.
type RouterOption func(*RouterOpts)

// WithTimer sets the timer used for inactivity timeouts.
func WithTimer(t Timer) RouterOption {
	return func(o *RouterOpts) { o.Timer = t }
}

// WithInactivityTimeout overrides the idle time after which a session is closed.
func WithInactivityTimeout(d time.Duration) RouterOption {
	return func(o *RouterOpts) { o.InactivityTimeout = d }
}

// WithNoticeTimeout bounds the send of the inactivity notice.
func WithNoticeTimeout(d time.Duration) RouterOption {
	return func(o *RouterOpts) { o.NoticeTimeout = d }
}

// WithFinalizedRetention sets how long a finalized chat is remembered.
func WithFinalizedRetention(d time.Duration) RouterOption {
	return func(o *RouterOpts) { o.FinalizedRetention = d }
}

// NewRouter creates a Router around engine. A nil store gets an in-memory one.
func NewRouter(engine *Engine, sessions SessionStore, messenger Messenger, opts ...RouterOption) *Router {
	cfg := RouterOpts{
		InactivityTimeout:  DefaultInactivityTimeout,
		NoticeTimeout:      DefaultNoticeTimeout,
		FinalizedRetention: DefaultFinalizedRetention,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if sessions == nil {
		sessions = NewInMemorySessionStore()
	}

	r := &Router{
		engine:        engine,
		sessions:      sessions,
		messenger:     messenger,
		locks:         NewKeyedMutex(),
		noticeTimeout: cfg.NoticeTimeout,
		finalized:     NewInMemorySessionStore(),
	}
	r.inactivity = NewInactivityMonitor(cfg.Timer, cfg.InactivityTimeout, r.expire)
	r.retention = NewInactivityMonitor(cfg.Timer, cfg.FinalizedRetention, r.forget)
	slog.Debug("Router created", "inactivityTimeout", cfg.InactivityTimeout, "finalizedRetention", cfg.FinalizedRetention)
	return r
}

// Handle processes one inbound event to completion. Events for the same user are
// handled one at a time, in arrival order of the lock.
func (r *Router) Handle(ctx context.Context, ev models.InboundEvent) error {
	kind := ev.Kind()
	switch kind {
	case models.EventUnsupported:
		slog.Debug("Router.Handle: unsupported event dropped", "userID", ev.UserID, "messageID", ev.MessageID)
		return nil
	case models.EventStatus:
		return nil
	}
	if ev.UserID == "" {
		return ErrMissingUserID
	}
	if p, ok := ev.Payload.(models.TextPayload); ok && util.IsBlank(p.Body) {
		slog.Debug("Router.Handle: blank text dropped", "userID", ev.UserID)
		return nil
	}
	metrics.InboundEvents.WithLabelValues(string(kind)).Inc()

	unlock := r.locks.Lock(ev.UserID)
	defer unlock()

	var current *Session
	if s, ok := r.Session(ev.UserID); ok {
		current = &s
	}
	if current != nil && current.Finalized && !isGreetingEvent(ev) {
		slog.Debug("Router.Handle: chat finalized, event ignored", "userID", ev.UserID, "kind", kind)
		return nil
	}

	if ev.MessageID != "" {
		if err := r.messenger.MarkRead(ctx, ev.MessageID); err != nil {
			slog.Warn("Router.Handle: failed to mark message as read", "messageID", ev.MessageID, "error", err)
		}
	}

	wasFinalized := current != nil && current.Finalized
	next := r.engine.Handle(ctx, current, ev)
	if wasFinalized && (next == nil || !next.Finalized) {
		r.finalized.Delete(ev.UserID)
		r.retention.Cancel(ev.UserID)
	}
	switch {
	case next == nil:
		r.sessions.Delete(ev.UserID)
		r.inactivity.Cancel(ev.UserID)
	case next.Finalized:
		next.UpdatedAt = time.Now()
		r.sessions.Delete(ev.UserID)
		r.inactivity.Cancel(ev.UserID)
		r.finalized.Set(ev.UserID, *next)
		r.retention.Touch(ev.UserID)
	default:
		next.UpdatedAt = time.Now()
		r.sessions.Set(ev.UserID, *next)
		r.inactivity.Touch(ev.UserID)
	}
	metrics.ActiveSessions.Set(float64(r.sessions.Len()))
	return nil
}

// expire closes a session whose inactivity timeout elapsed.
func (r *Router) expire(userID string) {
	unlock := r.locks.Lock(userID)
	defer unlock()

	// Activity that arrived while this callback waited for the lock re-armed the timer.
	if r.inactivity.Armed(userID) {
		slog.Debug("Router.expire: timer re-armed, closure skipped", "userID", userID)
		return
	}
	sess, ok := r.sessions.Get(userID)
	if !ok {
		return
	}
	r.sessions.Delete(userID)
	metrics.ActiveSessions.Set(float64(r.sessions.Len()))

	ctx, cancel := context.WithTimeout(context.Background(), r.noticeTimeout)
	defer cancel()
	if err := r.messenger.SendText(ctx, userID, msgInactivity, ""); err != nil {
		slog.Error("Router.expire: failed to send inactivity notice", "userID", userID, "error", err)
	}
	metrics.InactivityClosures.Inc()
	slog.Info("Router.expire: session closed for inactivity", "userID", userID, "step", sess.Step)
}

// forget drops a finalized tombstone once its retention elapsed.
func (r *Router) forget(userID string) {
	unlock := r.locks.Lock(userID)
	defer unlock()

	if r.retention.Armed(userID) {
		return
	}
	r.finalized.Delete(userID)
	slog.Debug("Router.forget: finalized chat forgotten", "userID", userID)
}

// Session returns a copy of the user's session, or its finalized tombstone.
func (r *Router) Session(userID string) (Session, bool) {
	if s, ok := r.sessions.Get(userID); ok {
		return s, true
	}
	return r.finalized.Get(userID)
}

// ActiveSessions returns the number of live, non-finalized sessions.
func (r *Router) ActiveSessions() int {
	return r.sessions.Len()
}

// FinalizedChats returns the number of remembered finalized chats.
func (r *Router) FinalizedChats() int {
	return r.finalized.Len()
}

// Stop disarms every inactivity and retention timer.
func (r *Router) Stop() {
	r.inactivity.Stop()
	r.retention.Stop()
	slog.Info("Router stopped")
}
