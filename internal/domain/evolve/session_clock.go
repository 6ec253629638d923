package evolve

import (
	"fmt"
	"time"
)

// SessionClock answers "is the cash session live" against the US equity
// schedule: Mon-Fri 09:30-16:00 America/New_York. Holidays are not modeled;
// a holiday misread only delays application of an adjustment by one cycle.
type SessionClock struct {
	loc *time.Location
}

// NewSessionClock loads the exchange timezone.
func NewSessionClock() (*SessionClock, error) {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return nil, fmt.Errorf("failed to load exchange timezone: %w", err)
	}
	return &SessionClock{loc: loc}, nil
}

// IsLive reports whether t falls inside regular trading hours.
func (c *SessionClock) IsLive(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	minutes := local.Hour()*60 + local.Minute()
	return minutes >= 9*60+30 && minutes < 16*60
}

// StaticClock is a fixed-answer Clock for tests and crypto-only deployments
// that never defer application.
type StaticClock bool

// IsLive implements Clock.
func (s StaticClock) IsLive(time.Time) bool { return bool(s) }
