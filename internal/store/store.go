// Package store provides storage backends for GymBro.
//
// A backend serves three datasets: the membership directory (read mostly), the booking
// ledger and the pause-request ledger (append only). Backends exist for Google Sheets,
// SQLite, PostgreSQL and process memory.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/GymBro/internal/metrics"
	"github.com/BTreeMap/GymBro/internal/models"
)

// Store is implemented by every backend.
type Store interface {
	// Lookup returns the most recent membership record for idNumber, or
	// models.ErrMembershipNotFound.
	Lookup(ctx context.Context, idNumber string) (*models.Membership, error)
	// ListActive returns the most recent record of each member whose raw status is active.
	ListActive(ctx context.Context) ([]models.Membership, error)
	AddMembership(ctx context.Context, m models.Membership) error
	AppendBooking(ctx context.Context, b models.Booking) error
	ListBookings(ctx context.Context) ([]models.Booking, error)
	AppendPause(ctx context.Context, p models.PauseRequest) error
	Close() error
}

// Opts holds configuration options for the store backends.
type Opts struct {
	DSN string // connection string for the SQL backends

	MembershipRange string // sheet holding the membership directory
	BookingRange    string // sheet receiving bookings
	PauseRange      string // sheet receiving pause requests
}

// Option defines a configuration option for a store backend.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSheetRanges overrides the sheet names used by the Sheets backend. Empty values keep
// the defaults.
func WithSheetRanges(memberships, bookings, pauses string) Option {
	return func(o *Opts) {
		if memberships != "" {
			o.MembershipRange = memberships
		}
		if bookings != "" {
			o.BookingRange = bookings
		}
		if pauses != "" {
			o.PauseRange = pauses
		}
	}
}

// DetectDSNType returns the database/sql driver name for a DSN: "postgres" for URLs and
// key/value connection strings, "sqlite3" otherwise.
func DetectDSNType(dsn string) string {
	d := strings.TrimSpace(dsn)
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") ||
		strings.Contains(d, "host=") || strings.Contains(d, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}

// observe records one store call in the metrics.
func observe(backend, op string, err error) {
	metrics.StoreOperations.WithLabelValues(backend, op, metrics.Result(err)).Inc()
}

// latestActive keeps the last record of each id number and returns those whose raw
// status is active, in first-seen order.
func latestActive(records []models.Membership) []models.Membership {
	latest := make(map[string]int, len(records))
	order := make([]string, 0, len(records))
	for i, m := range records {
		id := strings.TrimSpace(m.IDNumber)
		if _, seen := latest[id]; !seen {
			order = append(order, id)
		}
		latest[id] = i
	}
	var active []models.Membership
	for _, id := range order {
		m := records[latest[id]]
		if strings.EqualFold(strings.TrimSpace(m.Status), models.MembershipActive) {
			active = append(active, m)
		}
	}
	return active
}

// InMemoryStore keeps everything in process memory. Used for development and tests.
type InMemoryStore struct {
	mu          sync.RWMutex
	memberships []models.Membership
	bookings    []models.Booking
	pauses      []models.PauseRequest
}

// NewInMemoryStore creates an empty store, optionally seeded with memberships.
func NewInMemoryStore(seed ...models.Membership) *InMemoryStore {
	s := &InMemoryStore{}
	s.memberships = append(s.memberships, seed...)
	return s
}

func (s *InMemoryStore) Lookup(ctx context.Context, idNumber string) (*models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idNumber = strings.TrimSpace(idNumber)
	for i := len(s.memberships) - 1; i >= 0; i-- {
		if strings.TrimSpace(s.memberships[i].IDNumber) == idNumber {
			m := s.memberships[i]
			observe("memory", "lookup", nil)
			return &m, nil
		}
	}
	observe("memory", "lookup", nil)
	return nil, models.ErrMembershipNotFound
}

func (s *InMemoryStore) ListActive(ctx context.Context) ([]models.Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	observe("memory", "list_active", nil)
	return latestActive(s.memberships), nil
}

func (s *InMemoryStore) AddMembership(ctx context.Context, m models.Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.memberships = append(s.memberships, m)
	observe("memory", "add_membership", nil)
	return nil
}

func (s *InMemoryStore) AppendBooking(ctx context.Context, b models.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = append(s.bookings, b)
	observe("memory", "append_booking", nil)
	slog.Debug("InMemoryStore.AppendBooking: booking stored", "phone", b.Phone, "day", b.Day, "reason", b.Reason)
	return nil
}

func (s *InMemoryStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Booking, len(s.bookings))
	copy(out, s.bookings)
	observe("memory", "list_bookings", nil)
	return out, nil
}

func (s *InMemoryStore) AppendPause(ctx context.Context, p models.PauseRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses = append(s.pauses, p)
	observe("memory", "append_pause", nil)
	return nil
}

// Pauses returns the stored pause requests.
func (s *InMemoryStore) Pauses() []models.PauseRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.PauseRequest, len(s.pauses))
	copy(out, s.pauses)
	return out
}

func (s *InMemoryStore) Close() error { return nil }

// stamp fills a missing creation time and returns it in UTC for storage.
func stamp(t time.Time) time.Time {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC()
}

// wrapNotFound converts driver "no rows" errors to the domain sentinel.
func wrapNotFound(err error, notFound error) error {
	if errors.Is(err, notFound) {
		return models.ErrMembershipNotFound
	}
	return fmt.Errorf("membership lookup failed: %w", err)
}
