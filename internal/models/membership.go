package models

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Membership statuses as they appear in the membership directory.
const (
	MembershipActive  = "activo"
	MembershipExpired = "vencido"
)

// membershipDateLayouts are the date formats accepted in the directory's date columns.
var membershipDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"2/1/2006",
}

// Membership is a read-only view of a membership directory record.
type Membership struct {
	Phone     string `json:"phone"`
	IDNumber  string `json:"id_number"`
	Name      string `json:"name"`
	Plan      string `json:"plan"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Status    string `json:"status"`
}

// MembershipView is the effective state of a membership at a point in time.
type MembershipView struct {
	Status        string
	DaysRemaining int
	EndDate       time.Time
}

// IsActive reports whether the effective status is active.
func (v MembershipView) IsActive() bool {
	return v.Status == MembershipActive
}

// ParseMembershipDate parses a directory date in the given location.
func ParseMembershipDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range membershipDateLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", value)
}

// EvaluateMembership derives the effective status and the days remaining at now.
// An active membership whose end date has passed is reported as expired.
func EvaluateMembership(m Membership, now time.Time) (MembershipView, error) {
	end, err := ParseMembershipDate(m.EndDate, now.Location())
	if err != nil {
		return MembershipView{}, fmt.Errorf("%w: %v", ErrInvalidEndDate, err)
	}

	days := int(math.Ceil(end.Sub(now).Hours() / 24))
	status := strings.ToLower(strings.TrimSpace(m.Status))
	if status == MembershipActive && days <= 0 {
		status = MembershipExpired
	}

	return MembershipView{Status: status, DaysRemaining: days, EndDate: end}, nil
}

// DaysUntil counts whole calendar days from today to end, both taken at local midnight.
func DaysUntil(today, end time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.Local
	}
	today = today.In(loc)
	end = end.In(loc)
	from := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	to := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc)
	return int(math.Ceil(to.Sub(from).Hours() / 24))
}
