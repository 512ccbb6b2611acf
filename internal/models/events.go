package models

import "time"

// EventKind names the variant carried by an InboundEvent.
type EventKind string

const (
	EventText        EventKind = "text"
	EventButton      EventKind = "button"
	EventMedia       EventKind = "media"
	EventStatus      EventKind = "status"
	EventUnsupported EventKind = "unsupported"
)

// Payload is the closed set of inbound message variants.
type Payload interface {
	Kind() EventKind
}

// TextPayload is a free-text message.
type TextPayload struct {
	Body string
}

// ButtonPayload is a tap on a reply button.
type ButtonPayload struct {
	ID    string
	Title string
}

// MediaPayload is an image, audio, video or document sent by the user.
type MediaPayload struct {
	Type MediaType
}

// StatusPayload is a delivery/read status notification.
type StatusPayload struct {
	Status string
}

// UnsupportedPayload carries any provider message type the engine does not handle.
type UnsupportedPayload struct {
	Type string
}

func (TextPayload) Kind() EventKind        { return EventText }
func (ButtonPayload) Kind() EventKind      { return EventButton }
func (MediaPayload) Kind() EventKind       { return EventMedia }
func (StatusPayload) Kind() EventKind      { return EventStatus }
func (UnsupportedPayload) Kind() EventKind { return EventUnsupported }

// InboundEvent is the canonical shape every transport normalizes into.
type InboundEvent struct {
	UserID     string
	MessageID  string
	SenderName string
	Timestamp  time.Time
	Payload    Payload
}

// Kind returns the variant of the payload, or EventUnsupported when no payload is set.
func (e InboundEvent) Kind() EventKind {
	if e.Payload == nil {
		return EventUnsupported
	}
	return e.Payload.Kind()
}

// DisplayName returns the sender's profile name, falling back to the user id.
func (e InboundEvent) DisplayName() string {
	if e.SenderName != "" {
		return e.SenderName
	}
	return e.UserID
}

// NewTextEvent builds a text InboundEvent.
func NewTextEvent(userID, messageID, body string) InboundEvent {
	return InboundEvent{UserID: userID, MessageID: messageID, Timestamp: time.Now(), Payload: TextPayload{Body: body}}
}

// NewButtonEvent builds a button InboundEvent.
func NewButtonEvent(userID, messageID, id, title string) InboundEvent {
	return InboundEvent{UserID: userID, MessageID: messageID, Timestamp: time.Now(), Payload: ButtonPayload{ID: id, Title: title}}
}
