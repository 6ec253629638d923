package packet

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is a decision packet's lifecycle stage. Ranks are monotonic: a
// packet only ever moves forward, never back.
type Status string

const (
	StatusCandidate Status = "candidate"
	StatusPlanned   Status = "planned"
	StatusAlerted   Status = "alerted"
	StatusExecuted  Status = "executed"
	StatusClosed    Status = "closed"
)

var statusRank = map[Status]int{
	StatusCandidate: 1,
	StatusPlanned:   2,
	StatusAlerted:   3,
	StatusExecuted:  4,
	StatusClosed:    5,
}

// Rank returns the ordering rank of a status, 0 for unknown/empty.
func (s Status) Rank() int { return statusRank[s] }

// AdvanceStatus returns incoming when it ranks at or above current,
// otherwise keeps current. Idempotent under replay: applying the same or an
// older event twice never regresses a packet. An empty current initializes
// to incoming.
func AdvanceStatus(current, incoming Status) Status {
	if current == "" {
		return incoming
	}
	if incoming.Rank() >= current.Rank() {
		return incoming
	}
	return current
}

// StatusFromEvent maps an external event type to a status. An explicit
// status override always wins over inference from the event type.
func StatusFromEvent(eventType string, explicit Status) Status {
	if explicit != "" {
		return explicit
	}
	switch strings.ToLower(eventType) {
	case "scan_hit", "idea", "candidate":
		return StatusCandidate
	case "plan", "planned", "setup":
		return StatusPlanned
	case "alert", "alert_sent", "notified":
		return StatusAlerted
	case "fill", "entry", "executed":
		return StatusExecuted
	case "exit", "stop_out", "target", "closed":
		return StatusClosed
	default:
		return StatusCandidate
	}
}

// Packet is one surfaced trade idea.
type Packet struct {
	ID           string    `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	Symbol       string    `json:"symbol"`
	SignalSource string    `json:"signal_source"`
	SignalScore  float64   `json:"signal_score"`
	Bias         string    `json:"bias"`
	RiskScore    float64   `json:"risk_score"`
	Fingerprint  string    `json:"fingerprint"`
	Status       Status    `json:"status"`
}

// FingerprintInput collects the fields that define setup identity. Two
// packets describing the same underlying setup must collapse to one
// fingerprint regardless of minor floating-point noise.
type FingerprintInput struct {
	Symbol        string   `json:"symbol"`
	SignalSource  string   `json:"signal_source"`
	Bias          string   `json:"bias"`
	TimeframeBias []string `json:"timeframe_bias"`
	EntryZone     float64  `json:"entry_zone"`
	Invalidation  float64  `json:"invalidation"`
	RiskScore     float64  `json:"risk_score"`
}

// BuildFingerprint normalizes the identity fields and hashes them: symbol
// uppercased, source/bias lowercased, timeframes sorted, numerics rounded
// to 3 decimals.
func BuildFingerprint(in FingerprintInput) string {
	timeframes := append([]string(nil), in.TimeframeBias...)
	for i := range timeframes {
		timeframes[i] = strings.ToLower(strings.TrimSpace(timeframes[i]))
	}
	sort.Strings(timeframes)

	canonical := fmt.Sprintf("%s|%s|%s|%s|%.3f|%.3f|%.3f",
		strings.ToUpper(strings.TrimSpace(in.Symbol)),
		strings.ToLower(strings.TrimSpace(in.SignalSource)),
		strings.ToLower(strings.TrimSpace(in.Bias)),
		strings.Join(timeframes, ","),
		in.EntryZone,
		in.Invalidation,
		in.RiskScore,
	)
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:16])
}

// New creates a candidate packet with a fresh id and its fingerprint.
func New(in FingerprintInput, signalScore float64, now time.Time) Packet {
	return Packet{
		ID:           uuid.NewString(),
		CreatedAt:    now,
		Symbol:       strings.ToUpper(strings.TrimSpace(in.Symbol)),
		SignalSource: strings.ToLower(strings.TrimSpace(in.SignalSource)),
		SignalScore:  signalScore,
		Bias:         strings.ToLower(strings.TrimSpace(in.Bias)),
		RiskScore:    in.RiskScore,
		Fingerprint:  BuildFingerprint(in),
		Status:       StatusCandidate,
	}
}

// Apply advances the packet's status from an event. Returns true when the
// status actually moved.
func (p *Packet) Apply(eventType string, explicit Status) bool {
	next := AdvanceStatus(p.Status, StatusFromEvent(eventType, explicit))
	if next == p.Status {
		return false
	}
	p.Status = next
	return true
}
