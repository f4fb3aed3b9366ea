package punch

import (
	"fmt"
	"strings"
	"time"
)

// Type is the closed set of punch kinds. Values arriving from devices or
// queue replays are parsed through ParseType before they reach the machine.
type Type string

// State is the per-day attendance state derived from the ordered punch
// sequence. It is never persisted; DeriveState recomputes it on demand.
type State string

type Record struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId"`
	Type       Type      `json:"type"`
	Time       time.Time `json:"time"`
	DeviceID   string    `json:"deviceId"`
	Offline    bool      `json:"offline"`

	// IdempotencyKey ties the record to the physical tap that produced it.
	// Queue replays reuse the entry id, so a retried replay cannot commit
	// the same tap twice.
	IdempotencyKey string `json:"idempotencyKey"`

	OriginalTime     *time.Time `json:"originalTime,omitempty"`
	CorrectedBy      string     `json:"correctedBy,omitempty"`
	CorrectionReason string     `json:"correctionReason,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

func ParseType(raw string) (Type, error) {
	switch Type(strings.ToUpper(strings.TrimSpace(raw))) {
	case TypeIn:
		return TypeIn, nil
	case TypeOut:
		return TypeOut, nil
	case TypeOutside:
		return TypeOutside, nil
	case TypeReturn:
		return TypeReturn, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidType, raw)
}

// DayWindow returns the [start, end) bounds of the local calendar day
// containing t. Day bucketing is always done in the engine's time zone.
func DayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
