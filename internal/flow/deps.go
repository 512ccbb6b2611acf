package flow

import (
	"context"

	"github.com/BTreeMap/GymBro/internal/models"
)

// Messenger is the outbound side of the messaging transport used by the engine.
type Messenger interface {
	SendText(ctx context.Context, to, body, replyTo string) error
	SendButtons(ctx context.Context, to, body string, buttons []models.Button) error
	SendMedia(ctx context.Context, to string, media models.Media) error
	MarkRead(ctx context.Context, messageID string) error
}

// MembershipDirectory resolves identity document numbers to memberships.
// Lookup returns models.ErrMembershipNotFound when no record matches.
type MembershipDirectory interface {
	Lookup(ctx context.Context, idNumber string) (*models.Membership, error)
}

// BookingLedger persists confirmed class bookings.
type BookingLedger interface {
	AppendBooking(ctx context.Context, b models.Booking) error
	ListBookings(ctx context.Context) ([]models.Booking, error)
}

// PauseLedger persists membership pause requests.
type PauseLedger interface {
	AppendPause(ctx context.Context, p models.PauseRequest) error
}

// QAOracle answers free-text questions about the gym.
type QAOracle interface {
	Ask(ctx context.Context, question string) (string, error)
}

// MediaCatalog resolves media keys (MediaKeyCatalog, MediaKeyGymPhoto) to fetchable URLs.
type MediaCatalog interface {
	URL(ctx context.Context, key string) (string, error)
}
