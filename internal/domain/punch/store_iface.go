package punch

import (
	"context"
	"time"
)

// Store is the committed punch log. Records are append-only except for
// audited corrections, which keep the original timestamp alongside the fix.
type Store interface {
	Insert(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (*Record, error)

	// Records returns the employee's committed punches in [from, to),
	// ordered by punch time ascending.
	Records(ctx context.Context, employeeID string, from, to time.Time) ([]Record, error)

	// LastBefore returns the employee's most recent punch strictly before t,
	// or nil when there is none. Used by the duplicate window check.
	LastBefore(ctx context.Context, employeeID string, t time.Time) (*Record, error)

	ExistsKey(ctx context.Context, idempotencyKey string) (bool, error)

	// Correct rewrites the record's punch time, preserving the original the
	// first time a record is corrected.
	Correct(ctx context.Context, id string, newTime time.Time, correctedBy, reason string) error
}
