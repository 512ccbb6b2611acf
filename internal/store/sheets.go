package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/GymBro/internal/models"
)

// Default sheet names of the GymBro spreadsheet.
const (
	DefaultMembershipRange = "Base de Datos"
	DefaultBookingRange    = "Reservas GymBro"
	DefaultPauseRange      = "pausas_mensualidad"
)

// ValuesClient reads and appends spreadsheet rows. *sheets.Client implements it.
type ValuesClient interface {
	Values(ctx context.Context, rng string) ([][]string, error)
	Append(ctx context.Context, rng string, row []string) error
}

// SheetsStore keeps every dataset in a Google spreadsheet, one sheet per dataset.
// Membership rows are laid out as phone, id number, name, plan, start date, end date, status.
type SheetsStore struct {
	client ValuesClient
	cfg    Opts
}

// NewSheetsStore creates a store over client.
func NewSheetsStore(client ValuesClient, opts ...Option) *SheetsStore {
	cfg := Opts{
		MembershipRange: DefaultMembershipRange,
		BookingRange:    DefaultBookingRange,
		PauseRange:      DefaultPauseRange,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &SheetsStore{client: client, cfg: cfg}
}

func membershipFromRow(row []string) models.Membership {
	get := func(i int) string {
		if i < len(row) {
			return strings.TrimSpace(row[i])
		}
		return ""
	}
	return models.Membership{
		Phone:     get(0),
		IDNumber:  get(1),
		Name:      get(2),
		Plan:      get(3),
		StartDate: get(4),
		EndDate:   get(5),
		Status:    get(6),
	}
}

func (s *SheetsStore) memberships(ctx context.Context, op string) ([]models.Membership, error) {
	rows, err := s.client.Values(ctx, s.cfg.MembershipRange)
	if err != nil {
		observe("sheets", op, err)
		return nil, fmt.Errorf("failed to read memberships: %w", err)
	}
	out := make([]models.Membership, 0, len(rows))
	for _, row := range rows {
		out = append(out, membershipFromRow(row))
	}
	return out, nil
}

func (s *SheetsStore) Lookup(ctx context.Context, idNumber string) (*models.Membership, error) {
	all, err := s.memberships(ctx, "lookup")
	if err != nil {
		slog.Error("SheetsStore.Lookup: read failed", "error", err)
		return nil, err
	}
	observe("sheets", "lookup", nil)
	idNumber = strings.TrimSpace(idNumber)
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].IDNumber == idNumber {
			m := all[i]
			return &m, nil
		}
	}
	slog.Debug("SheetsStore.Lookup: membership not found", "idNumber", idNumber, "rows", len(all))
	return nil, models.ErrMembershipNotFound
}

func (s *SheetsStore) ListActive(ctx context.Context) ([]models.Membership, error) {
	all, err := s.memberships(ctx, "list_active")
	if err != nil {
		return nil, err
	}
	observe("sheets", "list_active", nil)
	return latestActive(all), nil
}

func (s *SheetsStore) AddMembership(ctx context.Context, m models.Membership) error {
	row := []string{m.Phone, m.IDNumber, m.Name, m.Plan, m.StartDate, m.EndDate, m.Status}
	err := s.client.Append(ctx, s.cfg.MembershipRange, row)
	observe("sheets", "add_membership", err)
	if err != nil {
		return fmt.Errorf("failed to append membership %s: %w", m.IDNumber, err)
	}
	return nil
}

func (s *SheetsStore) AppendBooking(ctx context.Context, b models.Booking) error {
	err := s.client.Append(ctx, s.cfg.BookingRange, b.Row())
	observe("sheets", "append_booking", err)
	if err != nil {
		slog.Error("SheetsStore.AppendBooking: append failed", "error", err, "phone", b.Phone)
		return fmt.Errorf("failed to append booking for %s: %w", b.Phone, err)
	}
	slog.Debug("SheetsStore.AppendBooking: booking appended", "phone", b.Phone, "day", b.Day, "reason", b.Reason)
	return nil
}

func (s *SheetsStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	rows, err := s.client.Values(ctx, s.cfg.BookingRange)
	observe("sheets", "list_bookings", err)
	if err != nil {
		return nil, fmt.Errorf("failed to read bookings: %w", err)
	}
	out := make([]models.Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.BookingFromRow(row))
	}
	return out, nil
}

func (s *SheetsStore) AppendPause(ctx context.Context, p models.PauseRequest) error {
	err := s.client.Append(ctx, s.cfg.PauseRange, p.Row())
	observe("sheets", "append_pause", err)
	if err != nil {
		slog.Error("SheetsStore.AppendPause: append failed", "error", err, "phone", p.Phone)
		return fmt.Errorf("failed to append pause request for %s: %w", p.Phone, err)
	}
	return nil
}

func (s *SheetsStore) Close() error { return nil }
