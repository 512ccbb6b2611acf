package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/GymBro/internal/models"
)

// Engine is the conversation state machine. It interprets one inbound event against the
// user's current session, sends the resulting messages and returns the next session.
// A nil result means the user has no session anymore.
type Engine struct {
	messenger Messenger
	directory MembershipDirectory
	bookings  BookingLedger
	pauses    PauseLedger
	oracle    QAOracle
	limiter   *RateLimiter
	media     MediaCatalog
	now       func() time.Time
	loc       *time.Location
	maxLen    int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithClock injects the clock used for greetings, timestamps and membership arithmetic.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the timezone bookings and greetings are rendered in.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// WithMediaCatalog enables the catalog document and gym photo messages.
func WithMediaCatalog(c MediaCatalog) EngineOption {
	return func(e *Engine) { e.media = c }
}

// WithMaxMessageLength overrides the rune limit used to split long AI answers.
func WithMaxMessageLength(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxLen = n
		}
	}
}

// NewEngine creates an Engine. A nil limiter gets the default 3 questions per 2 hours.
func NewEngine(messenger Messenger, directory MembershipDirectory, bookings BookingLedger, pauses PauseLedger, oracle QAOracle, limiter *RateLimiter, opts ...EngineOption) *Engine {
	if limiter == nil {
		limiter = NewRateLimiter()
	}
	e := &Engine{
		messenger: messenger,
		directory: directory,
		bookings:  bookings,
		pauses:    pauses,
		oracle:    oracle,
		limiter:   limiter,
		now:       time.Now,
		loc:       models.LoadLocation(models.DefaultTimezone),
		maxLen:    models.MaxMessageLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Limiter returns the AI rate limiter the engine consults.
func (e *Engine) Limiter() *RateLimiter {
	return e.limiter
}

// Handle processes ev for the user owning sess (nil when the user has no session)
// and returns the session to persist.
func (e *Engine) Handle(ctx context.Context, sess *Session, ev models.InboundEvent) *Session {
	if isGreetingEvent(ev) {
		slog.Debug("Engine.Handle: greeting received", "userID", ev.UserID)
		return e.startOver(ctx, ev)
	}
	if sess != nil && sess.Finalized {
		slog.Debug("Engine.Handle: finalized session, event ignored", "userID", ev.UserID)
		return sess
	}

	switch p := ev.Payload.(type) {
	case models.ButtonPayload:
		return e.handleButton(ctx, sess, ev, p)
	case models.TextPayload:
		if sess == nil {
			slog.Debug("Engine.Handle: text without session ignored", "userID", ev.UserID)
			return nil
		}
		return e.handleText(ctx, sess, ev, strings.TrimSpace(p.Body))
	default:
		slog.Debug("Engine.Handle: payload not handled", "userID", ev.UserID, "kind", ev.Kind())
		return sess
	}
}

func (e *Engine) handleButton(ctx context.Context, sess *Session, ev models.InboundEvent, p models.ButtonPayload) *Session {
	slog.Debug("Engine.handleButton", "userID", ev.UserID, "buttonID", p.ID)
	switch p.ID {
	case ButtonFinish, ButtonServicesFinish:
		e.say(ctx, ev.UserID, msgChatFinished)
		return &Session{Step: StepIdle, Finalized: true}
	case ButtonBackToMenu:
		return e.startOver(ctx, ev)
	case ButtonBook:
		return e.startBooking(ctx, ev)
	case ButtonServices, ButtonServicesAgain:
		return e.listServices(ctx, ev)
	case ButtonStatusAgain:
		return e.askStatusID(ctx, ev)
	case ButtonAI:
		return e.startAIAccess(ctx, ev)
	case ButtonAIAgain:
		if sess != nil && sess.Step == StepAnsweringAIQuestion {
			return e.continueAI(ctx, sess, ev)
		}
		return e.startAIAccess(ctx, ev)
	case ButtonConfirm, ButtonCancel:
		if sess != nil && sess.Step == StepConfirmingBooking {
			return e.finishBooking(ctx, sess, ev, p.ID == ButtonConfirm)
		}
	}
	slog.Debug("Engine.handleButton: button not applicable", "userID", ev.UserID, "buttonID", p.ID)
	return sess
}

func (e *Engine) handleText(ctx context.Context, sess *Session, ev models.InboundEvent, text string) *Session {
	slog.Debug("Engine.handleText", "userID", ev.UserID, "step", sess.Step)
	switch {
	case sess.Step.IsBooking():
		return e.handleBooking(ctx, sess, ev, text)
	case sess.Step.IsPause():
		return e.handlePause(ctx, sess, ev, text)
	}

	switch sess.Step {
	case StepListingServices:
		return e.handleServiceChoice(ctx, sess, ev, text)
	case StepAwaitingIDForStatus:
		return e.handleStatusLookup(ctx, sess, ev, text)
	case StepAwaitingIDForAIAccess:
		return e.handleAIAccess(ctx, sess, ev, text)
	case StepAnsweringAIQuestion:
		return e.handleAIQuestion(ctx, sess, ev, text)
	}

	if IsClosure(text) {
		e.say(ctx, ev.UserID, msgClosureReply)
		e.offer(ctx, ev.UserID, msgWhatNext, afterFlowButtons)
	}
	return sess
}

// startOver greets the user and shows the main menu, discarding any flow in progress.
func (e *Engine) startOver(ctx context.Context, ev models.InboundEvent) *Session {
	e.reply(ctx, ev, welcomeMessage(ev.DisplayName(), e.localNow()))
	e.offer(ctx, ev.UserID, msgMenuPrompt, mainMenuButtons)
	return &Session{Step: StepIdle}
}

func (e *Engine) localNow() time.Time {
	return e.now().In(e.loc)
}

func (e *Engine) say(ctx context.Context, to, body string) {
	if err := e.messenger.SendText(ctx, to, body, ""); err != nil {
		slog.Error("Engine.say: failed to send text", "to", to, "error", err)
	}
}

func (e *Engine) reply(ctx context.Context, ev models.InboundEvent, body string) {
	if err := e.messenger.SendText(ctx, ev.UserID, body, ev.MessageID); err != nil {
		slog.Error("Engine.reply: failed to send text", "to", ev.UserID, "replyTo", ev.MessageID, "error", err)
	}
}

func (e *Engine) offer(ctx context.Context, to, body string, buttons []models.Button) {
	if err := e.messenger.SendButtons(ctx, to, body, buttons); err != nil {
		slog.Error("Engine.offer: failed to send buttons", "to", to, "error", err)
	}
}

// sendMedia sends a catalog item. Without a media catalog the message is skipped.
func (e *Engine) sendMedia(ctx context.Context, to, key string, kind models.MediaType, caption, filename string) {
	if e.media == nil {
		slog.Debug("Engine.sendMedia: no media catalog configured", "key", key)
		return
	}
	url, err := e.media.URL(ctx, key)
	if err != nil {
		slog.Warn("Engine.sendMedia: failed to resolve media", "key", key, "error", err)
		return
	}
	media := models.Media{Type: kind, URL: url, Caption: caption, Filename: filename}
	if err := e.messenger.SendMedia(ctx, to, media); err != nil {
		slog.Error("Engine.sendMedia: failed to send media", "to", to, "key", key, "error", err)
	}
}
