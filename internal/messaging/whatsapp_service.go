package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.mau.fi/whatsmeow/types/events"

	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/whatsapp"
)

// DefaultChannelTimeout bounds how long an inbound event waits for buffer space.
const DefaultChannelTimeout = 1 * time.Second

// WhatsAppService implements Service on a whatsmeow linked device. Buttons are rendered
// as text and inbound messages are delivered on Inbound().
type WhatsAppService struct {
	client   whatsapp.Sender
	waClient *whatsapp.Client
	buttons  *TextButtons
	inbound  chan models.InboundEvent

	mu      sync.RWMutex
	stopped bool
}

// NewWhatsAppService creates a WhatsAppService. Event handling is only available when
// client is a *whatsapp.Client.
func NewWhatsAppService(client whatsapp.Sender) *WhatsAppService {
	s := &WhatsAppService{
		client:  client,
		buttons: NewTextButtons(),
		inbound: make(chan models.InboundEvent, DefaultChannelBufferSize),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		s.waClient = waClient
	} else {
		slog.Debug("WhatsAppService created without a live client (likely mock)")
	}
	return s
}

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil {
		slog.Debug("WhatsAppService.Start: no live client, skipping event handling")
		return nil
	}
	s.waClient.AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Info("WhatsAppService event handler registered")
	return nil
}

// Stop disconnects and closes the inbound channel.
func (s *WhatsAppService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if s.waClient != nil {
		s.waClient.Disconnect()
	}
	close(s.inbound)
	slog.Info("WhatsAppService stopped")
	return nil
}

// Inbound returns the channel of inbound events.
func (s *WhatsAppService) Inbound() <-chan models.InboundEvent {
	return s.inbound
}

// Resolve maps a reply typed against text-rendered buttons to a button event.
func (s *WhatsAppService) Resolve(ev models.InboundEvent) models.InboundEvent {
	return s.buttons.Resolve(ev)
}

// SendText sends a text message. Quoting is not supported, so replyTo is ignored.
func (s *WhatsAppService) SendText(ctx context.Context, to, body, replyTo string) error {
	s.mu.RLock()
	stopped := s.stopped
	s.mu.RUnlock()
	if stopped {
		return ErrServiceStopped
	}
	if err := validateText(to, body); err != nil {
		return err
	}
	return s.client.SendMessage(ctx, to, body)
}

// SendButtons sends body with the buttons rendered as text.
func (s *WhatsAppService) SendButtons(ctx context.Context, to, body string, buttons []models.Button) error {
	if err := models.ValidateButtons(buttons); err != nil {
		return err
	}
	return s.SendText(ctx, to, s.buttons.Render(to, body, buttons), "")
}

// SendMedia sends the media link as text with the caption above it.
func (s *WhatsAppService) SendMedia(ctx context.Context, to string, media models.Media) error {
	if err := validateMedia(to, media); err != nil {
		return err
	}
	body := media.URL
	if media.Caption != "" {
		body = fmt.Sprintf("%s\n%s", media.Caption, media.URL)
	}
	return s.SendText(ctx, to, body, "")
}

// MarkRead is a no-op for the linked-device transport.
func (s *WhatsAppService) MarkRead(ctx context.Context, messageID string) error {
	return nil
}

func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	ev := s.Resolve(eventFromMessage(evt))

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.stopped {
		return
	}
	select {
	case s.inbound <- ev:
		slog.Debug("WhatsAppService inbound event queued", "userID", ev.UserID, "kind", ev.Kind())
	case <-time.After(DefaultChannelTimeout):
		slog.Warn("WhatsAppService inbound channel blocked, dropping message", "userID", ev.UserID, "timeout", DefaultChannelTimeout)
	}
}

// eventFromMessage converts a whatsmeow message into an InboundEvent.
func eventFromMessage(evt *events.Message) models.InboundEvent {
	ev := models.InboundEvent{
		UserID:     strings.TrimPrefix(evt.Info.Sender.User, "+"),
		MessageID:  string(evt.Info.ID),
		SenderName: evt.Info.PushName,
		Timestamp:  evt.Info.Timestamp,
	}
	m := evt.Message
	switch {
	case m.GetConversation() != "":
		ev.Payload = models.TextPayload{Body: m.GetConversation()}
	case m.GetExtendedTextMessage() != nil:
		ev.Payload = models.TextPayload{Body: m.GetExtendedTextMessage().GetText()}
	case m.GetImageMessage() != nil:
		ev.Payload = models.MediaPayload{Type: models.MediaImage}
	case m.GetAudioMessage() != nil:
		ev.Payload = models.MediaPayload{Type: models.MediaAudio}
	case m.GetVideoMessage() != nil:
		ev.Payload = models.MediaPayload{Type: models.MediaVideo}
	case m.GetDocumentMessage() != nil:
		ev.Payload = models.MediaPayload{Type: models.MediaDocument}
	default:
		ev.Payload = models.UnsupportedPayload{Type: "whatsmeow"}
	}
	return ev
}
