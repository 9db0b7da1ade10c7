package domain

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a quote.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusSent     Status = "sent"
	StatusViewed   Status = "viewed"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
	StatusExpired  Status = "expired"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusDraft, StatusSent, StatusViewed, StatusAccepted, StatusRefused, StatusExpired}

// ParseStatus converts a stored or requested value into a Status.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown quote status %q", s)
}

func (s Status) String() string { return string(s) }

// IsTerminal reports whether only an admin reopen can move the quote on.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusAccepted, StatusRefused, StatusExpired:
		return true
	case StatusDraft, StatusSent, StatusViewed:
		return false
	}
	return false
}

// CanExpire reports whether time alone may move the quote to expired.
func (s Status) CanExpire() bool {
	return s == StatusSent || s == StatusViewed
}

// EffectiveStatus applies expiry lazily: a sent or viewed quote past its
// expires_at reads as expired before the sweep has stored it.
func EffectiveStatus(stored Status, expiresAt *time.Time, now time.Time) Status {
	if stored.CanExpire() && expiresAt != nil && !now.Before(*expiresAt) {
		return StatusExpired
	}
	return stored
}
