// Package messaging provides the outbound WhatsApp transports used by GymBro: the
// WhatsApp Cloud API, Twilio and a whatsmeow linked device.
package messaging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BTreeMap/GymBro/internal/models"
)

// ErrServiceStopped is returned by sends issued after Stop.
var ErrServiceStopped = errors.New("messaging service stopped")

// DefaultChannelBufferSize is the buffer of inbound event channels.
const DefaultChannelBufferSize = 100

// Service defines a pluggable message delivery abstraction.
type Service interface {
	// SendText sends a text message. A non-empty replyTo quotes that inbound message.
	SendText(ctx context.Context, to, body, replyTo string) error

	// SendButtons sends body with up to three reply buttons.
	SendButtons(ctx context.Context, to, body string, buttons []models.Button) error

	// SendMedia sends an image, audio, video or document by URL.
	SendMedia(ctx context.Context, to string, media models.Media) error

	// MarkRead acknowledges an inbound message.
	MarkRead(ctx context.Context, messageID string) error

	// Start begins any background processing.
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error
}

// InboundSource is implemented by transports that receive messages over their own
// connection instead of through the HTTP webhook.
type InboundSource interface {
	Inbound() <-chan models.InboundEvent
}

// ButtonResolver maps replies typed against text-rendered buttons back to button events.
type ButtonResolver interface {
	Resolve(ev models.InboundEvent) models.InboundEvent
}

// Pump feeds events to handle one at a time until the channel closes or ctx is done.
func Pump(ctx context.Context, events <-chan models.InboundEvent, handle func(context.Context, models.InboundEvent) error) {
	for {
		select {
		case <-ctx.Done():
			slog.Debug("messaging.Pump: context done")
			return
		case ev, ok := <-events:
			if !ok {
				slog.Debug("messaging.Pump: inbound channel closed")
				return
			}
			if err := handle(ctx, ev); err != nil {
				slog.Warn("messaging.Pump: inbound event not handled", "userID", ev.UserID, "error", err)
			}
		}
	}
}

func validateText(to, body string) error {
	if to == "" {
		return models.ErrEmptyRecipient
	}
	if body == "" {
		return models.ErrEmptyBody
	}
	return nil
}

func validateMedia(to string, media models.Media) error {
	if to == "" {
		return models.ErrEmptyRecipient
	}
	if !models.IsValidMediaType(media.Type) {
		return models.ErrUnsupportedMedia
	}
	if media.URL == "" {
		return models.ErrEmptyBody
	}
	return nil
}
