package capture

import (
	"time"

	"kintai/internal/domain/punch"
)

const (
	StatusPending    = "pending"
	StatusConflicted = "conflicted"
)

// Entry is a captured-but-unconfirmed tap buffered while the record store is
// unreachable. Only the card hash is stored, never the raw serial. ID doubles
// as the idempotency key for the eventual committed punch.
type Entry struct {
	ID         string     `json:"id"`
	Seq        int64      `json:"seq"`
	CardHash   string     `json:"-"`
	TypeHint   punch.Type `json:"typeHint"`
	DeviceID   string     `json:"deviceId"`
	CapturedAt time.Time  `json:"capturedAt"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
	RetryCount int        `json:"retryCount"`
	Status     string     `json:"status"`
	Detail     string     `json:"detail,omitempty"`
}
