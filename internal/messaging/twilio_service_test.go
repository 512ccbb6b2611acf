package messaging

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/twiliowhatsapp"
)

func TestTwilioService_SendText(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	if err := svc.SendText(context.Background(), "whatsapp:+57 300 123 4567", "Hola", "wamid"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msgs := mock.Messages()
	if len(msgs) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(msgs))
	}
	if msgs[0].To != "573001234567" {
		t.Errorf("Expected canonical recipient, got %q", msgs[0].To)
	}
}

func TestTwilioService_RejectsShortRecipient(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.SendText(context.Background(), "12ab", "Hola", ""); err == nil {
		t.Error("Expected error for short recipient")
	}
	if err := svc.SendText(context.Background(), "", "Hola", ""); !errors.Is(err, models.ErrEmptyRecipient) {
		t.Errorf("Expected ErrEmptyRecipient, got %v", err)
	}
}

func TestTwilioService_ButtonsRoundTrip(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)
	buttons := []models.Button{{ID: "confirmar", Title: "✅ Confirmar"}, {ID: "cancelar", Title: "❌ Cancelar"}}

	if err := svc.SendButtons(context.Background(), "573001234567", "Confirma tu cita:", buttons); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body := mock.Messages()[0].Body; !strings.Contains(body, "Confirmar") || !strings.Contains(body, "Cancelar") {
		t.Errorf("Expected rendered buttons in body, got %q", body)
	}

	ev := svc.Resolve(models.NewTextEvent("573001234567", "m1", "Cancelar"))
	if p, ok := ev.Payload.(models.ButtonPayload); !ok || p.ID != "cancelar" {
		t.Errorf("Expected cancelar button event, got %+v", ev.Payload)
	}
}

func TestTwilioService_SendMedia(t *testing.T) {
	mock := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(mock)

	media := models.Media{Type: models.MediaImage, URL: "https://cdn.example.com/gym.jpg", Caption: "Mira nuestro gym"}
	if err := svc.SendMedia(context.Background(), "573001234567", media); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := mock.Messages()[0]
	if got.MediaURL != media.URL || got.Body != media.Caption {
		t.Errorf("Expected media and caption to be forwarded, got %+v", got)
	}
}

func TestTwilioService_Stop(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	if err := svc.Stop(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := svc.SendText(context.Background(), "573001234567", "Hola", ""); !errors.Is(err, ErrServiceStopped) {
		t.Errorf("Expected ErrServiceStopped, got %v", err)
	}
}
