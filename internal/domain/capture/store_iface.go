package capture

import (
	"context"
	"time"
)

// Store persists queue entries separately from committed punches so a
// restart does not lose pending offline taps.
type Store interface {
	Insert(ctx context.Context, e Entry) (Entry, error)

	// Pending returns unreplayed entries in original capture order.
	Pending(ctx context.Context) ([]Entry, error)
	CountPending(ctx context.Context) (int, error)
	OldestPending(ctx context.Context) (*Entry, error)

	// LastPendingForCard supports the local duplicate check; full state is
	// unknown while offline, so this is the only duplicate signal we have.
	LastPendingForCard(ctx context.Context, cardHash string) (*Entry, error)

	Delete(ctx context.Context, id string) error
	MarkConflicted(ctx context.Context, id, detail string) error
	IncrementRetry(ctx context.Context, id string) error

	// ExpiredPending lists pending entries captured before the cutoff.
	ExpiredPending(ctx context.Context, cutoff time.Time) ([]Entry, error)

	// Conflicted surfaces entries awaiting manual review.
	Conflicted(ctx context.Context) ([]Entry, error)
}
