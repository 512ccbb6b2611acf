package flow

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/util"
)

func (e *Engine) startBooking(ctx context.Context, ev models.InboundEvent) *Session {
	slog.Debug("Engine.startBooking", "userID", ev.UserID)
	e.say(ctx, ev.UserID, msgAskName)
	return &Session{Step: StepCollectingName}
}

// handleBooking advances the booking flow by one validated field. Invalid input re-prompts
// and leaves the step as it was.
func (e *Engine) handleBooking(ctx context.Context, sess *Session, ev models.InboundEvent, text string) *Session {
	user := ev.UserID
	switch sess.Step {
	case StepCollectingName:
		if !ValidName(text) {
			e.say(ctx, user, reprompt(msgInvalidName, msgAskName))
			return sess
		}
		sess.Booking.Name = strings.Join(strings.Fields(text), " ")
		sess.Step = StepCollectingAge
		e.say(ctx, user, msgAskAge)

	case StepCollectingAge:
		age, err := ParseAge(text)
		if err != nil {
			correction := msgAgeRange
			if errors.Is(err, errNotNumeric) {
				correction = msgAgeNotNumber
			}
			e.say(ctx, user, reprompt(correction, msgAskAge))
			return sess
		}
		sess.Booking.Age = age
		sess.Step = StepCollectingDay
		e.say(ctx, user, msgAskDay)

	case StepCollectingDay:
		day, ok := ParseDay(text)
		if !ok {
			e.say(ctx, user, reprompt(msgInvalidDay, msgAskDay))
			return sess
		}
		sess.Booking.Day = day
		sess.Step = StepCollectingHour
		e.say(ctx, user, msgAskHour)

	case StepCollectingHour:
		hour, err := ParseHour(text)
		if err != nil {
			correction := msgHourRange
			if errors.Is(err, errBadFormat) {
				correction = msgHourFormat
			}
			e.say(ctx, user, reprompt(correction, msgAskHour))
			return sess
		}
		sess.Booking.Hour = hour
		sess.Step = StepCollectingClass
		e.say(ctx, user, msgAskClass)

	case StepCollectingClass:
		class, ok := ParseClass(text)
		if !ok {
			e.say(ctx, user, reprompt(msgInvalidClass, msgAskClass))
			return sess
		}
		sess.Booking.Class = class
		if class == ClassPersonal {
			sess.Step = StepCollectingTrainer
			e.say(ctx, user, msgAskTrainer)
			return sess
		}
		sess.Booking.Reason = string(class)
		return e.askConfirmation(ctx, sess, user)

	case StepCollectingTrainer:
		trainer, ok := ParseTrainer(text)
		if !ok {
			e.say(ctx, user, reprompt(msgInvalidTrain, msgAskTrainer))
			return sess
		}
		sess.Booking.Trainer = trainer
		sess.Booking.Reason = TrainerReason(trainer)
		return e.askConfirmation(ctx, sess, user)

	case StepConfirmingBooking:
		switch util.Fold(text) {
		case ButtonConfirm:
			return e.finishBooking(ctx, sess, ev, true)
		case ButtonCancel:
			return e.finishBooking(ctx, sess, ev, false)
		}
		e.say(ctx, user, msgInvalidConf)
		e.offer(ctx, user, msgConfirmPrompt, confirmButtons)
	}
	return sess
}

func (e *Engine) askConfirmation(ctx context.Context, sess *Session, user string) *Session {
	sess.Step = StepConfirmingBooking
	e.say(ctx, user, bookingSummary(sess.Booking))
	e.offer(ctx, user, msgConfirmPrompt, confirmButtons)
	return sess
}

// finishBooking records or cancels the drafted booking. Every outcome ends the flow.
func (e *Engine) finishBooking(ctx context.Context, sess *Session, ev models.InboundEvent, confirmed bool) *Session {
	user := ev.UserID
	defer e.offer(ctx, user, msgWhatNext, afterFlowButtons)

	if !confirmed {
		slog.Info("Engine.finishBooking: booking cancelled", "userID", user)
		e.say(ctx, user, msgCancelled)
		return nil
	}

	now := e.localNow()
	draft := sess.Booking
	booking := models.Booking{
		Phone:     user,
		Name:      draft.Name,
		Age:       draft.Age,
		Day:       draft.Day,
		Reason:    draft.Reason,
		Hour:      draft.Hour,
		CreatedAt: now,
		Timestamp: models.FormatLocalTimestamp(now, e.loc),
	}

	existing, err := e.bookings.ListBookings(ctx)
	if err != nil {
		slog.Error("Engine.finishBooking: failed to list bookings", "userID", user, "error", err)
		e.say(ctx, user, msgBookingError)
		return nil
	}
	for _, b := range existing {
		if b.SameSlot(booking) {
			slog.Info("Engine.finishBooking: duplicate booking", "userID", user, "day", booking.Day, "reason", booking.Reason)
			e.reply(ctx, ev, msgDuplicate)
			return nil
		}
	}

	if err := e.bookings.AppendBooking(ctx, booking); err != nil {
		slog.Error("Engine.finishBooking: failed to append booking", "userID", user, "error", err)
		e.say(ctx, user, msgBookingError)
		return nil
	}
	slog.Info("Engine.finishBooking: booking recorded", "userID", user, "day", booking.Day, "hour", booking.Hour, "reason", booking.Reason)
	e.reply(ctx, ev, msgBooked)
	return nil
}
