package messaging

import (
	"fmt"
	"strings"
	"sync"

	"github.com/BTreeMap/GymBro/internal/models"
	"github.com/BTreeMap/GymBro/internal/util"
)

// TextButtons renders reply buttons as text for transports without interactive messages
// and remembers the last set offered to each user so a reply with a button title can be
// turned back into a button event.
type TextButtons struct {
	mu      sync.Mutex
	pending map[string][]models.Button
}

// NewTextButtons creates an empty TextButtons.
func NewTextButtons() *TextButtons {
	return &TextButtons{pending: make(map[string][]models.Button)}
}

// Render formats body and buttons as one text message and records the buttons for to.
func (t *TextButtons) Render(to, body string, buttons []models.Button) string {
	t.mu.Lock()
	t.pending[to] = append([]models.Button(nil), buttons...)
	t.mu.Unlock()

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	for _, btn := range buttons {
		fmt.Fprintf(&b, "\n▫️ %s", btn.Title)
	}
	b.WriteString("\n\n_Responde con el texto de la opción._")
	return b.String()
}

// Resolve turns a text event matching one of the user's pending button titles into a
// button event. Other events pass through unchanged.
func (t *TextButtons) Resolve(ev models.InboundEvent) models.InboundEvent {
	p, ok := ev.Payload.(models.TextPayload)
	if !ok {
		return ev
	}
	in := util.NormalizePhrase(p.Body)
	if in == "" {
		return ev
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, btn := range t.pending[ev.UserID] {
		if util.NormalizePhrase(btn.Title) == in {
			delete(t.pending, ev.UserID)
			ev.Payload = models.ButtonPayload{ID: btn.ID, Title: btn.Title}
			return ev
		}
	}
	return ev
}

// Forget drops the pending buttons of a user.
func (t *TextButtons) Forget(userID string) {
	t.mu.Lock()
	delete(t.pending, userID)
	t.mu.Unlock()
}
