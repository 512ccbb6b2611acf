package messaging

import (
	"strings"
	"testing"

	"github.com/BTreeMap/GymBro/internal/models"
)

var followUp = []models.Button{
	{ID: "finalizar_chat", Title: "✅ Finalizar chat"},
	{ID: "volver_menu", Title: "🏠 Volver al menú"},
}

func TestTextButtonsRender(t *testing.T) {
	tb := NewTextButtons()
	out := tb.Render("573001234567", "¿Qué deseas hacer ahora?", followUp)

	if !strings.HasPrefix(out, "¿Qué deseas hacer ahora?") {
		t.Errorf("Expected body first, got %q", out)
	}
	for _, b := range followUp {
		if !strings.Contains(out, b.Title) {
			t.Errorf("Expected rendered text to contain %q", b.Title)
		}
	}
}

func TestTextButtonsResolve(t *testing.T) {
	tb := NewTextButtons()
	tb.Render("573001234567", "body", followUp)

	ev := tb.Resolve(models.NewTextEvent("573001234567", "m1", "volver al menu"))
	p, ok := ev.Payload.(models.ButtonPayload)
	if !ok {
		t.Fatalf("Expected button payload, got %T", ev.Payload)
	}
	if p.ID != "volver_menu" {
		t.Errorf("Expected volver_menu, got %q", p.ID)
	}

	// Pending buttons are consumed by a match.
	again := tb.Resolve(models.NewTextEvent("573001234567", "m2", "volver al menu"))
	if again.Kind() != models.EventText {
		t.Errorf("Expected text event after buttons were consumed, got %s", again.Kind())
	}
}

func TestTextButtonsResolveOtherUserAndText(t *testing.T) {
	tb := NewTextButtons()
	tb.Render("573001234567", "body", followUp)

	if ev := tb.Resolve(models.NewTextEvent("573009999999", "m1", "Finalizar chat")); ev.Kind() != models.EventText {
		t.Errorf("Expected buttons to be per user, got %s", ev.Kind())
	}
	if ev := tb.Resolve(models.NewTextEvent("573001234567", "m2", "quiero finalizar")); ev.Kind() != models.EventText {
		t.Errorf("Expected partial text to stay text, got %s", ev.Kind())
	}

	tb.Forget("573001234567")
	if ev := tb.Resolve(models.NewTextEvent("573001234567", "m3", "Finalizar chat")); ev.Kind() != models.EventText {
		t.Errorf("Expected forgotten buttons not to resolve, got %s", ev.Kind())
	}
}
