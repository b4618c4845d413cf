package model

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used for approval expiries.
const DateLayout = "2006-01-02"

// ApprovalEntry grants a requester access to the bot, optionally until
// an inclusive expiry date.
type ApprovalEntry struct {
	UserID int64 `json:"user_id" db:"user_id"`

	// Expiry is a UTC calendar date (midnight). nil means the grant is
	// permanent.
	Expiry *time.Time `json:"expiry,omitempty" db:"-"`
}

// Permanent reports whether the entry has no expiry.
func (e ApprovalEntry) Permanent() bool {
	return e.Expiry == nil
}

// ExpiredOn reports whether the entry's expiry date lies strictly before
// the calendar date of today (UTC).
func (e ApprovalEntry) ExpiredOn(today time.Time) bool {
	if e.Expiry == nil {
		return false
	}
	return Date(*e.Expiry).Before(Date(today))
}

// ExpiryString renders the expiry for display, "Never" if permanent.
func (e ApprovalEntry) ExpiryString() string {
	if e.Expiry == nil {
		return "Never"
	}
	return e.Expiry.Format(DateLayout)
}

// Date truncates t to midnight UTC of its UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string as a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}
