package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync"

	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/twiliowhatsapp"
)

var phoneNumberRegex = regexp.MustCompile(`\D`)

// TwilioService implements Service on the Twilio WhatsApp API. Twilio's Go SDK has no
// reply buttons, so buttons are rendered as text and resolved with TextButtons.
type TwilioService struct {
	client  twiliowhatsapp.Sender
	buttons *TextButtons
	mu      sync.RWMutex
	stopped bool
}

// NewTwilioService creates a TwilioService around a Twilio client or mock.
func NewTwilioService(client twiliowhatsapp.Sender) *TwilioService {
	return &TwilioService{client: client, buttons: NewTextButtons()}
}

// canonicalizeRecipient strips everything but digits and rejects numbers shorter than 6 digits.
func canonicalizeRecipient(recipient string) (string, error) {
	if recipient == "" {
		return "", models.ErrEmptyRecipient
	}
	canonical := phoneNumberRegex.ReplaceAllString(twiliowhatsapp.StripAddress(recipient), "")
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number %q: minimum 6 digits required", recipient)
	}
	return canonical, nil
}

func (s *TwilioService) checkRunning() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return ErrServiceStopped
	}
	return nil
}

// SendText sends a text message. Twilio cannot quote messages, so replyTo is ignored.
func (s *TwilioService) SendText(ctx context.Context, to, body, replyTo string) error {
	if err := s.checkRunning(); err != nil {
		return err
	}
	if err := validateText(to, body); err != nil {
		return err
	}
	canonical, err := canonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendMessage(ctx, canonical, body)
}

// SendButtons sends body with the buttons rendered as text.
func (s *TwilioService) SendButtons(ctx context.Context, to, body string, buttons []models.Button) error {
	if err := models.ValidateButtons(buttons); err != nil {
		return err
	}
	canonical, err := canonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.SendText(ctx, canonical, s.buttons.Render(canonical, body, buttons), "")
}

// SendMedia sends a media message with its caption as body.
func (s *TwilioService) SendMedia(ctx context.Context, to string, media models.Media) error {
	if err := s.checkRunning(); err != nil {
		return err
	}
	if err := validateMedia(to, media); err != nil {
		return err
	}
	canonical, err := canonicalizeRecipient(to)
	if err != nil {
		return err
	}
	return s.client.SendMedia(ctx, canonical, media.Caption, media.URL)
}

// MarkRead is a no-op: Twilio does not expose read receipts for inbound WhatsApp messages.
func (s *TwilioService) MarkRead(ctx context.Context, messageID string) error {
	slog.Debug("TwilioService.MarkRead ignored (unsupported)", "messageID", messageID)
	return nil
}

// Resolve maps a reply typed against text-rendered buttons to a button event.
func (s *TwilioService) Resolve(ev models.InboundEvent) models.InboundEvent {
	return s.buttons.Resolve(ev)
}

// Start is a no-op; Twilio delivers inbound messages to the HTTP webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// Stop rejects further sends.
func (s *TwilioService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	slog.Info("TwilioService stopped")
	return nil
}
