package flow

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/GymBro/internal/models"
)

func (e *Engine) startPause(ctx context.Context, ev models.InboundEvent) *Session {
	slog.Debug("Engine.startPause", "userID", ev.UserID)
	e.say(ctx, ev.UserID, msgAskPauseName)
	return &Session{Step: StepCollectingPauseName}
}

func (e *Engine) handlePause(ctx context.Context, sess *Session, ev models.InboundEvent, text string) *Session {
	user := ev.UserID
	switch sess.Step {
	case StepCollectingPauseName:
		if !ValidName(text) {
			e.say(ctx, user, msgInvalidPauseName)
			return sess
		}
		sess.Pause.Name = strings.Join(strings.Fields(text), " ")
		sess.Step = StepCollectingPauseID
		e.say(ctx, user, msgAskPauseID)
		return sess

	case StepCollectingPauseID:
		if !ValidIDNumber(text) {
			e.say(ctx, user, msgInvalidPauseID)
			return sess
		}
		sess.Pause.IDNumber = strings.TrimSpace(text)
		sess.Step = StepCollectingPauseReason
		e.say(ctx, user, msgAskPauseReason)
		return sess
	}

	now := e.localNow()
	req := models.PauseRequest{
		Phone:     user,
		IDNumber:  sess.Pause.IDNumber,
		Name:      sess.Pause.Name,
		Reason:    text,
		CreatedAt: now,
		Timestamp: models.FormatLocalTimestamp(now, e.loc),
	}
	if err := e.pauses.AppendPause(ctx, req); err != nil {
		slog.Error("Engine.handlePause: failed to append pause request", "userID", user, "error", err)
		e.say(ctx, user, msgPauseError)
	} else {
		slog.Info("Engine.handlePause: pause request recorded", "userID", user)
		e.say(ctx, user, pauseConfirmation(sess.Pause))
	}
	e.offer(ctx, user, msgWhatNext, afterFlowButtons)
	return nil
}
