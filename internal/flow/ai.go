package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BTreeMap/GymBro/internal/metrics"
	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/util"
)

func (e *Engine) startAIAccess(ctx context.Context, ev models.InboundEvent) *Session {
	slog.Debug("Engine.startAIAccess", "userID", ev.UserID)
	e.say(ctx, ev.UserID, msgAskAIID)
	return &Session{Step: StepAwaitingIDForAIAccess}
}

// handleAIAccess admits active members with questions left in their window.
func (e *Engine) handleAIAccess(ctx context.Context, sess *Session, ev models.InboundEvent, text string) *Session {
	user := ev.UserID
	id := strings.TrimSpace(text)
	if !ValidIDNumber(id) {
		e.say(ctx, user, msgInvalidID)
		return sess
	}

	m, err := e.directory.Lookup(ctx, id)
	if errors.Is(err, models.ErrMembershipNotFound) {
		slog.Info("Engine.handleAIAccess: not a member", "userID", user)
		e.say(ctx, user, msgAINotMember)
		e.offer(ctx, user, msgWhatNext, afterFlowButtons)
		return nil
	}
	if err != nil {
		slog.Error("Engine.handleAIAccess: lookup failed", "userID", user, "error", err)
		e.say(ctx, user, msgLookupError)
		return nil
	}

	view, err := models.EvaluateMembership(*m, e.localNow())
	if err != nil {
		slog.Warn("Engine.handleAIAccess: invalid end date", "userID", user, "endDate", m.EndDate, "error", err)
		e.say(ctx, user, msgBadEndDate)
		e.offer(ctx, user, msgWhatNext, afterFlowButtons)
		return nil
	}
	if !view.IsActive() {
		slog.Info("Engine.handleAIAccess: membership not active", "userID", user, "status", view.Status)
		e.say(ctx, user, aiInactiveMembership(view.Status))
		e.offer(ctx, user, msgWhatNext, afterFlowButtons)
		return nil
	}
	if !e.limiter.CanAsk(user) {
		return e.denyAI(ctx, user)
	}

	slog.Info("Engine.handleAIAccess: AI access granted", "userID", user)
	e.say(ctx, user, aiReady(e.limiter.Remaining(user)))
	return &Session{Step: StepAnsweringAIQuestion, MemberID: id}
}

// handleAIQuestion forwards one question to the oracle and sends the answer in ordered chunks.
func (e *Engine) handleAIQuestion(ctx context.Context, sess *Session, ev models.InboundEvent, question string) *Session {
	user := ev.UserID
	if !e.limiter.CanAsk(user) {
		return e.denyAI(ctx, user)
	}

	e.say(ctx, user, msgAIThinking)
	answer, err := e.oracle.Ask(ctx, question)
	if err != nil {
		slog.Error("Engine.handleAIQuestion: oracle failed", "userID", user, "error", err)
		e.say(ctx, user, msgAIError)
		return sess
	}
	if strings.TrimSpace(answer) == "" {
		answer = msgAIEmptyAnswer
	}

	e.limiter.Record(user)
	metrics.AIQuestions.Inc()
	slog.Debug("Engine.handleAIQuestion: answer ready", "userID", user, "runes", len([]rune(answer)))

	for _, chunk := range util.ChunkRunes(answer, e.maxLen) {
		e.say(ctx, user, chunk)
	}
	e.offer(ctx, user, msgAINext, aiFollowUpButtons)
	return sess
}

// continueAI handles "ask another" while already answering questions.
func (e *Engine) continueAI(ctx context.Context, sess *Session, ev models.InboundEvent) *Session {
	if !e.limiter.CanAsk(ev.UserID) {
		return e.denyAI(ctx, ev.UserID)
	}
	e.say(ctx, ev.UserID, aiReady(e.limiter.Remaining(ev.UserID)))
	return sess
}

func (e *Engine) denyAI(ctx context.Context, user string) *Session {
	retry := e.limiter.RetryAfter(user)
	slog.Info("Engine.denyAI: AI question limit reached", "userID", user, "retryAfter", retry)
	metrics.AIRateLimited.Inc()
	e.say(ctx, user, aiLimitReached(e.limiter.max, e.limiter.window, retry))
	e.offer(ctx, user, msgWhatNext, afterFlowButtons)
	return nil
}
