package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/whatsapp"
)

func newMessageEvent(text string) *events.Message {
	return &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Sender: types.NewJID("573001234567", types.DefaultUserServer),
			},
			ID:        "3EB0ABC",
			PushName:  "Ana",
			Timestamp: time.Unix(1700000000, 0),
		},
		Message: &waE2E.Message{Conversation: &text},
	}
}

func TestEventFromMessage_Text(t *testing.T) {
	ev := eventFromMessage(newMessageEvent("Hola"))

	if ev.UserID != "573001234567" {
		t.Errorf("Expected user id 573001234567, got %q", ev.UserID)
	}
	if ev.MessageID != "3EB0ABC" {
		t.Errorf("Expected message id 3EB0ABC, got %q", ev.MessageID)
	}
	if ev.SenderName != "Ana" {
		t.Errorf("Expected sender name Ana, got %q", ev.SenderName)
	}
	p, ok := ev.Payload.(models.TextPayload)
	if !ok || p.Body != "Hola" {
		t.Errorf("Expected text payload Hola, got %+v", ev.Payload)
	}
}

func TestEventFromMessage_Media(t *testing.T) {
	evt := newMessageEvent("")
	evt.Message = &waE2E.Message{ImageMessage: &waE2E.ImageMessage{}}

	ev := eventFromMessage(evt)
	if p, ok := ev.Payload.(models.MediaPayload); !ok || p.Type != models.MediaImage {
		t.Errorf("Expected image payload, got %+v", ev.Payload)
	}
}

func TestWhatsAppService_HandleIncomingMessage(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	svc.handleIncomingMessage(newMessageEvent("Hola"))

	select {
	case ev := <-svc.Inbound():
		if ev.Kind() != models.EventText {
			t.Errorf("Expected text event, got %s", ev.Kind())
		}
	default:
		t.Fatal("Expected an inbound event")
	}

	own := newMessageEvent("eco")
	own.Info.IsFromMe = true
	svc.handleIncomingMessage(own)
	select {
	case ev := <-svc.Inbound():
		t.Errorf("Expected own message to be skipped, got %+v", ev)
	default:
	}
}

func TestWhatsAppService_SendButtonsAsText(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	buttons := []models.Button{{ID: "otra_consulta", Title: "🤖 Otra consulta IA"}}
	if err := svc.SendButtons(context.Background(), "573001234567", "¿Deseas hacer otra consulta?", buttons); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := mock.Messages()[0].Body; !strings.Contains(body, "Otra consulta IA") {
		t.Errorf("Expected rendered button, got %q", body)
	}

	svc.handleIncomingMessage(newMessageEvent("otra consulta ia"))
	ev := <-svc.Inbound()
	if p, ok := ev.Payload.(models.ButtonPayload); !ok || p.ID != "otra_consulta" {
		t.Errorf("Expected resolved button event, got %+v", ev.Payload)
	}
}

func TestWhatsAppService_SendMediaAsLink(t *testing.T) {
	mock := whatsapp.NewMockClient()
	svc := NewWhatsAppService(mock)

	media := models.Media{Type: models.MediaDocument, URL: "https://cdn.example.com/c.pdf", Caption: "Planes"}
	if err := svc.SendMedia(context.Background(), "573001234567", media); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := mock.Messages()[0].Body; got != "Planes\nhttps://cdn.example.com/c.pdf" {
		t.Errorf("Expected caption and link, got %q", got)
	}
}

func TestWhatsAppService_Stop(t *testing.T) {
	svc := NewWhatsAppService(whatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := <-svc.Inbound(); ok {
		t.Error("Expected inbound channel to be closed")
	}
	if err := svc.SendText(context.Background(), "573001234567", "x", ""); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("Expected ErrServiceStopped, got %v", err)
	}
	// Stop is idempotent and late events are dropped.
	_ = svc.Stop()
	svc.handleIncomingMessage(newMessageEvent("Hola"))
}
