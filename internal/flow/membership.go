package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BTreeMap/GymBro/internal/models"
)

func (e *Engine) askStatusID(ctx context.Context, ev models.InboundEvent) *Session {
	e.say(ctx, ev.UserID, msgAskStatusID)
	return &Session{Step: StepAwaitingIDForStatus}
}

// handleStatusLookup renders the membership card for a document number and ends the step.
func (e *Engine) handleStatusLookup(ctx context.Context, sess *Session, ev models.InboundEvent, text string) *Session {
	user := ev.UserID
	id := strings.TrimSpace(text)
	if !ValidIDNumber(id) {
		e.say(ctx, user, msgInvalidID)
		return sess
	}

	m, err := e.directory.Lookup(ctx, id)
	switch {
	case errors.Is(err, models.ErrMembershipNotFound):
		slog.Info("Engine.handleStatusLookup: membership not found", "userID", user)
		e.say(ctx, user, msgNotFound)
	case err != nil:
		slog.Error("Engine.handleStatusLookup: lookup failed", "userID", user, "error", err)
		e.say(ctx, user, msgLookupError)
		return &Session{Step: StepIdle}
	default:
		view, err := models.EvaluateMembership(*m, e.localNow())
		if err != nil {
			slog.Warn("Engine.handleStatusLookup: invalid end date", "userID", user, "endDate", m.EndDate, "error", err)
			e.say(ctx, user, msgBadEndDate)
		} else {
			slog.Debug("Engine.handleStatusLookup: membership found", "userID", user, "status", view.Status, "daysRemaining", view.DaysRemaining)
			e.say(ctx, user, membershipCard(*m, view))
		}
	}

	e.offer(ctx, user, msgWhatNext, statusFollowUpButtons)
	return &Session{Step: StepIdle}
}
