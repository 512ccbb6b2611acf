package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/GymBro/internal/models"
)

// sqlStore holds the queries shared by the SQLite and Postgres backends. Queries are
// written with "?" placeholders and rebound for drivers that number them.
type sqlStore struct {
	db       *sql.DB
	backend  string
	numbered bool
}

// rebind rewrites "?" placeholders as "$1", "$2", ... when the driver needs it.
func (s *sqlStore) rebind(query string) string {
	if !s.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// pingTimeout bounds the connectivity check done when a backend is opened.
const pingTimeout = 10 * time.Second

// openSQL opens a pool for driver, lets the caller size it, verifies the connection and
// applies the embedded schema.
func openSQL(driver, dsn, schema string, tune func(*sql.DB)) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if tune != nil {
		tune(db)
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		slog.Error("store.openSQL: schema migration failed", "driver", driver, "error", err)
		return nil, fmt.Errorf("migrate %s: %w", driver, err)
	}
	return db, nil
}

const membershipColumns = `phone, id_number, name, plan, start_date, end_date, status`

func scanMembership(scan func(dest ...interface{}) error) (models.Membership, error) {
	var m models.Membership
	err := scan(&m.Phone, &m.IDNumber, &m.Name, &m.Plan, &m.StartDate, &m.EndDate, &m.Status)
	return m, err
}

func (s *sqlStore) Lookup(ctx context.Context, idNumber string) (*models.Membership, error) {
	query := s.rebind(`SELECT ` + membershipColumns + ` FROM memberships
		WHERE id_number = ? ORDER BY seq DESC LIMIT 1`)
	m, err := scanMembership(s.db.QueryRowContext(ctx, query, strings.TrimSpace(idNumber)).Scan)
	if err != nil {
		err = wrapNotFound(err, sql.ErrNoRows)
		if errors.Is(err, models.ErrMembershipNotFound) {
			observe(s.backend, "lookup", nil)
			slog.Debug("sqlStore.Lookup: membership not found", "backend", s.backend, "idNumber", idNumber)
			return nil, err
		}
		observe(s.backend, "lookup", err)
		slog.Error("sqlStore.Lookup: query failed", "backend", s.backend, "error", err)
		return nil, err
	}
	observe(s.backend, "lookup", nil)
	return &m, nil
}

func (s *sqlStore) ListActive(ctx context.Context) ([]models.Membership, error) {
	query := `SELECT ` + membershipColumns + ` FROM memberships m
		WHERE m.seq = (SELECT MAX(seq) FROM memberships WHERE id_number = m.id_number)
		AND LOWER(TRIM(m.status)) = 'activo'
		ORDER BY m.seq`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		observe(s.backend, "list_active", err)
		return nil, fmt.Errorf("failed to query active memberships: %w", err)
	}
	defer rows.Close()

	var out []models.Membership
	for rows.Next() {
		m, err := scanMembership(rows.Scan)
		if err != nil {
			observe(s.backend, "list_active", err)
			return nil, fmt.Errorf("failed to scan membership row: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		observe(s.backend, "list_active", err)
		return nil, fmt.Errorf("failed to iterate membership rows: %w", err)
	}
	observe(s.backend, "list_active", nil)
	slog.Debug("sqlStore.ListActive: loaded active memberships", "backend", s.backend, "count", len(out))
	return out, nil
}

func (s *sqlStore) AddMembership(ctx context.Context, m models.Membership) error {
	query := s.rebind(`INSERT INTO memberships (id, ` + membershipColumns + `, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, uuid.NewString(),
		m.Phone, strings.TrimSpace(m.IDNumber), m.Name, m.Plan, m.StartDate, m.EndDate, m.Status, stamp(time.Time{}))
	observe(s.backend, "add_membership", err)
	if err != nil {
		return fmt.Errorf("failed to insert membership %s: %w", m.IDNumber, err)
	}
	return nil
}

func (s *sqlStore) AppendBooking(ctx context.Context, b models.Booking) error {
	query := s.rebind(`INSERT INTO bookings (id, phone, name, age, day, reason, hour, local_timestamp, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, uuid.NewString(),
		b.Phone, b.Name, b.Age, b.Day, b.Reason, b.Hour, b.Timestamp, stamp(b.CreatedAt))
	observe(s.backend, "append_booking", err)
	if err != nil {
		slog.Error("sqlStore.AppendBooking: insert failed", "backend", s.backend, "error", err, "phone", b.Phone)
		return fmt.Errorf("failed to insert booking for %s: %w", b.Phone, err)
	}
	slog.Debug("sqlStore.AppendBooking: booking stored", "backend", s.backend, "phone", b.Phone, "day", b.Day)
	return nil
}

func (s *sqlStore) ListBookings(ctx context.Context) ([]models.Booking, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT phone, name, age, day, reason, hour, local_timestamp, created_at FROM bookings ORDER BY seq`)
	if err != nil {
		observe(s.backend, "list_bookings", err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var out []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := rows.Scan(&b.Phone, &b.Name, &b.Age, &b.Day, &b.Reason, &b.Hour, &b.Timestamp, &b.CreatedAt); err != nil {
			observe(s.backend, "list_bookings", err)
			return nil, fmt.Errorf("failed to scan booking row: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		observe(s.backend, "list_bookings", err)
		return nil, fmt.Errorf("failed to iterate booking rows: %w", err)
	}
	observe(s.backend, "list_bookings", nil)
	return out, nil
}

func (s *sqlStore) AppendPause(ctx context.Context, p models.PauseRequest) error {
	query := s.rebind(`INSERT INTO pause_requests (id, phone, id_number, name, reason, local_timestamp, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, uuid.NewString(),
		p.Phone, p.IDNumber, p.Name, p.Reason, p.Timestamp, p.Status, stamp(p.CreatedAt))
	observe(s.backend, "append_pause", err)
	if err != nil {
		slog.Error("sqlStore.AppendPause: insert failed", "backend", s.backend, "error", err, "phone", p.Phone)
		return fmt.Errorf("failed to insert pause request for %s: %w", p.Phone, err)
	}
	return nil
}

// Close closes the database connection.
func (s *sqlStore) Close() error {
	slog.Debug("sqlStore.Close: closing database", "backend", s.backend)
	return s.db.Close()
}
