package messaging

import (
	"context"
	"sync"

	"github.com/BTreeMap/GymBro/internal/models"
)

// SentKind names the kind of message a MockMessenger recorded.
type SentKind string

const (
	SentText    SentKind = "text"
	SentButtons SentKind = "buttons"
	SentMedia   SentKind = "media"
)

// SentMessage is one outbound message recorded by MockMessenger.
type SentMessage struct {
	Kind    SentKind
	To      string
	Body    string
	ReplyTo string
	Buttons []models.Button
	Media   models.Media
}

// ButtonIDs returns the ids of the recorded buttons.
func (m SentMessage) ButtonIDs() []string {
	ids := make([]string, 0, len(m.Buttons))
	for _, b := range m.Buttons {
		ids = append(ids, b.ID)
	}
	return ids
}

// MockMessenger is an in-memory Service for tests. It records every send.
type MockMessenger struct {
	mu           sync.Mutex
	SentMessages []SentMessage
	ReadMessages []string
	SendErr      error
	ReadErr      error
}

// NewMockMessenger creates an empty MockMessenger.
func NewMockMessenger() *MockMessenger {
	return &MockMessenger{}
}

func (m *MockMessenger) record(msg SentMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.SentMessages = append(m.SentMessages, msg)
	return nil
}

func (m *MockMessenger) SendText(ctx context.Context, to, body, replyTo string) error {
	return m.record(SentMessage{Kind: SentText, To: to, Body: body, ReplyTo: replyTo})
}

func (m *MockMessenger) SendButtons(ctx context.Context, to, body string, buttons []models.Button) error {
	return m.record(SentMessage{Kind: SentButtons, To: to, Body: body, Buttons: append([]models.Button(nil), buttons...)})
}

func (m *MockMessenger) SendMedia(ctx context.Context, to string, media models.Media) error {
	return m.record(SentMessage{Kind: SentMedia, To: to, Body: media.Caption, Media: media})
}

func (m *MockMessenger) MarkRead(ctx context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ReadErr != nil {
		return m.ReadErr
	}
	m.ReadMessages = append(m.ReadMessages, messageID)
	return nil
}

func (m *MockMessenger) Start(ctx context.Context) error { return nil }

func (m *MockMessenger) Stop() error { return nil }

// Messages returns a copy of the recorded messages.
func (m *MockMessenger) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.SentMessages...)
}

// Reads returns a copy of the message ids marked as read.
func (m *MockMessenger) Reads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.ReadMessages...)
}

// Reset clears the recorded messages and reads.
func (m *MockMessenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = nil
	m.ReadMessages = nil
}
