package models

import (
	"errors"
	"testing"
	"time"
)

func TestEvaluateMembership_ActiveInPastBecomesExpired(t *testing.T) {
	loc := LoadLocation(DefaultTimezone)
	now := time.Date(2025, 4, 12, 10, 0, 0, 0, loc)
	m := Membership{Name: "Ana", Status: "Activo", EndDate: "2025-04-01"}

	view, err := EvaluateMembership(m, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != MembershipExpired {
		t.Errorf("Expected status %q, got %q", MembershipExpired, view.Status)
	}
	if view.DaysRemaining > 0 {
		t.Errorf("Expected non-positive days remaining, got %d", view.DaysRemaining)
	}
}

func TestEvaluateMembership_ActiveInFuture(t *testing.T) {
	loc := LoadLocation(DefaultTimezone)
	now := time.Date(2025, 4, 12, 10, 0, 0, 0, loc)
	m := Membership{Status: "activo", EndDate: "2025-04-20"}

	view, err := EvaluateMembership(m, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !view.IsActive() {
		t.Errorf("Expected active membership, got %q", view.Status)
	}
	// 7 days and 14 hours, rounded up
	if view.DaysRemaining != 8 {
		t.Errorf("Expected 8 days remaining, got %d", view.DaysRemaining)
	}
}

func TestEvaluateMembership_OtherStatusKept(t *testing.T) {
	now := time.Date(2025, 4, 12, 10, 0, 0, 0, time.UTC)
	view, err := EvaluateMembership(Membership{Status: "Pausado", EndDate: "2025-03-01"}, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Status != "pausado" {
		t.Errorf("Expected status pausado, got %q", view.Status)
	}
}

func TestEvaluateMembership_InvalidEndDate(t *testing.T) {
	_, err := EvaluateMembership(Membership{Status: "activo", EndDate: "mañana"}, time.Now())
	if !errors.Is(err, ErrInvalidEndDate) {
		t.Errorf("Expected ErrInvalidEndDate, got %v", err)
	}
}

func TestParseMembershipDate_Layouts(t *testing.T) {
	loc := time.UTC
	for _, in := range []string{"2025-05-03", "2025/05/03", "3/5/2025", "03/05/2025", "2025-05-03T08:00:00Z"} {
		got, err := ParseMembershipDate(in, loc)
		if err != nil {
			t.Errorf("ParseMembershipDate(%q) unexpected error: %v", in, err)
			continue
		}
		if got.Year() != 2025 || got.Month() != time.May || got.Day() != 3 {
			t.Errorf("ParseMembershipDate(%q) = %v, want 2025-05-03", in, got)
		}
	}
}

func TestDaysUntil_IgnoresTimeOfDay(t *testing.T) {
	loc := LoadLocation(DefaultTimezone)
	today := time.Date(2025, 4, 12, 23, 59, 0, 0, loc)
	end := time.Date(2025, 4, 14, 0, 0, 0, 0, loc)
	if got := DaysUntil(today, end, loc); got != 2 {
		t.Errorf("Expected 2 days, got %d", got)
	}
}

func TestBookingRow_SevenFields(t *testing.T) {
	b := Booking{Phone: "573001234567", Name: "Ana Gómez", Age: 25, Day: "Lunes", Reason: "Yoga", Hour: "07:30", Timestamp: "12/4/2025, 7:00:00 a. m."}
	row := b.Row()
	if len(row) != 7 {
		t.Fatalf("Expected 7 fields, got %d", len(row))
	}
	if row[0] != "573001234567" || row[2] != "25" || row[6] != b.Timestamp {
		t.Errorf("Unexpected row: %v", row)
	}
	if parsed := BookingFromRow(row); !parsed.SameSlot(b) {
		t.Errorf("Expected parsed row to match original slot, got %+v", parsed)
	}
}

func TestFormatLocalTimestamp(t *testing.T) {
	loc := LoadLocation(DefaultTimezone)
	ts := time.Date(2025, 4, 12, 15, 4, 5, 0, loc)
	if got := FormatLocalTimestamp(ts, loc); got != "12/4/2025, 3:04:05 p. m." {
		t.Errorf("Expected es-CO timestamp, got %q", got)
	}
	morning := time.Date(2025, 4, 12, 9, 0, 0, 0, loc)
	if got := FormatLocalTimestamp(morning, loc); got != "12/4/2025, 9:00:00 a. m." {
		t.Errorf("Expected morning timestamp, got %q", got)
	}
}

func TestValidateButtons(t *testing.T) {
	if err := ValidateButtons(nil); !errors.Is(err, ErrNoButtons) {
		t.Errorf("Expected ErrNoButtons, got %v", err)
	}
	four := []Button{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	if err := ValidateButtons(four); !errors.Is(err, ErrTooManyButtons) {
		t.Errorf("Expected ErrTooManyButtons, got %v", err)
	}
}

func TestInboundEventKind(t *testing.T) {
	if k := NewTextEvent("1", "m", "hola").Kind(); k != EventText {
		t.Errorf("Expected text kind, got %s", k)
	}
	if k := (InboundEvent{}).Kind(); k != EventUnsupported {
		t.Errorf("Expected unsupported kind for empty payload, got %s", k)
	}
	if name := (InboundEvent{UserID: "573"}).DisplayName(); name != "573" {
		t.Errorf("Expected fallback to user id, got %q", name)
	}
}
