package guard

import (
	"time"
)

// Mode is the guard toggle mode.
type Mode string

const (
	ModeEnabled        Mode = "enabled"
	ModePendingDisable Mode = "pending_disable"
	ModeDisabled       Mode = "disabled"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeEnabled, ModePendingDisable, ModeDisabled:
		return true
	}
	return false
}

// DisableCooldown is how long a disable request stays pending before it
// takes effect. The cooldown exists so a trader cannot impulsively strip
// protection mid-drawdown.
const DisableCooldown = 10 * time.Minute

// MaxDisabledFor is the safety ceiling after which a disabled guard
// re-enables automatically.
const MaxDisabledFor = 24 * time.Hour

// Record is the stored representation of one workspace's guard toggle.
// Version supports compare-and-swap writes.
type Record struct {
	Workspace   string    `json:"workspace" db:"workspace"`
	Mode        Mode      `json:"mode" db:"mode"`
	RequestedAt time.Time `json:"requested_at" db:"requested_at"` // zero unless pending
	DisabledAt  time.Time `json:"disabled_at" db:"disabled_at"`   // zero unless disabled
	Version     int64     `json:"version" db:"version"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// State is the derived, caller-facing guard state.
type State struct {
	Mode        Mode       `json:"mode"`
	RequestedAt *time.Time `json:"requested_at,omitempty"`
	DisabledAt  *time.Time `json:"disabled_at,omitempty"`
}

// EffectivelyEnabled reports whether evaluations should treat the guard as
// on. A pending disable is still functionally enabled until the cooldown
// elapses.
func (s State) EffectivelyEnabled() bool { return s.Mode != ModeDisabled }

// DeriveState computes the current guard state from a stored record and the
// clock. Time-based transitions are observed lazily here rather than by a
// background timer: a pending disable matures into disabled after the
// cooldown, and a disable expires back to enabled after the ceiling.
func DeriveState(rec Record, now time.Time) State {
	switch rec.Mode {
	case ModePendingDisable:
		if rec.RequestedAt.IsZero() || now.Sub(rec.RequestedAt) < DisableCooldown {
			t := rec.RequestedAt
			return State{Mode: ModePendingDisable, RequestedAt: &t}
		}
		disabledAt := rec.RequestedAt.Add(DisableCooldown)
		if now.Sub(disabledAt) >= MaxDisabledFor {
			return State{Mode: ModeEnabled}
		}
		return State{Mode: ModeDisabled, DisabledAt: &disabledAt}
	case ModeDisabled:
		if !rec.DisabledAt.IsZero() && now.Sub(rec.DisabledAt) >= MaxDisabledFor {
			return State{Mode: ModeEnabled}
		}
		t := rec.DisabledAt
		return State{Mode: ModeDisabled, DisabledAt: &t}
	default:
		return State{Mode: ModeEnabled}
	}
}
