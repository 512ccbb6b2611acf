package models

import (
	"fmt"
	"strconv"
	"time"
)

// DefaultTimezone is the zone bookings and pause requests are stamped in.
const DefaultTimezone = "America/Bogota"

// Booking is one confirmed class booking.
type Booking struct {
	Phone     string    `json:"phone"`
	Name      string    `json:"name"`
	Age       int       `json:"age"`
	Day       string    `json:"day"`
	Reason    string    `json:"reason"`
	Hour      string    `json:"hour"`
	CreatedAt time.Time `json:"created_at"`
	Timestamp string    `json:"timestamp"`
}

// Row returns the booking in ledger column order:
// phone, name, age, day, reason, hour, timestamp.
func (b Booking) Row() []string {
	return []string{b.Phone, b.Name, strconv.Itoa(b.Age), b.Day, b.Reason, b.Hour, b.Timestamp}
}

// SameSlot reports whether two bookings collide on name, day and reason.
func (b Booking) SameSlot(other Booking) bool {
	return b.Name == other.Name && b.Day == other.Day && b.Reason == other.Reason
}

// BookingFromRow parses a ledger row written by Booking.Row.
func BookingFromRow(row []string) Booking {
	get := func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
	age, _ := strconv.Atoi(get(2))
	return Booking{
		Phone:     get(0),
		Name:      get(1),
		Age:       age,
		Day:       get(3),
		Reason:    get(4),
		Hour:      get(5),
		Timestamp: get(6),
	}
}

// PauseRequest is a membership pause request awaiting manual handling.
type PauseRequest struct {
	Phone     string    `json:"phone"`
	IDNumber  string    `json:"id_number"`
	Name      string    `json:"name"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
	Timestamp string    `json:"timestamp"`
	Status    string    `json:"status"`
}

// Row returns the pause request in ledger column order:
// phone, id, name, reason, timestamp, status.
func (p PauseRequest) Row() []string {
	return []string{p.Phone, p.IDNumber, p.Name, p.Reason, p.Timestamp, p.Status}
}

// FormatLocalTimestamp renders t the way es-CO locale strings look,
// e.g. "12/4/2025, 3:04:05 p. m.".
func FormatLocalTimestamp(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	suffix := "a. m."
	if t.Hour() >= 12 {
		suffix = "p. m."
	}
	return fmt.Sprintf("%s %s", t.Format("2/1/2006, 3:04:05"), suffix)
}

// LoadLocation resolves a timezone name, falling back to a fixed UTC-5 zone when the
// tz database is unavailable.
func LoadLocation(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone("COT", -5*60*60)
	}
	return loc
}
