package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"kintai/internal/domain/punch"
	"kintai/internal/platform/metrics"
)

// Queue is the bounded, FIFO store-and-forward buffer for taps accepted
// while the record store is unreachable. Capacity and retention are two
// independent policies: MaxEntries bounds size, MaxAge bounds staleness.
type Queue struct {
	mu sync.Mutex

	store           Store
	maxEntries      int
	maxAge          time.Duration
	duplicateWindow time.Duration
	collector       *metrics.Collector
}

func NewQueue(store Store, maxEntries int, maxAge, duplicateWindow time.Duration, collector *metrics.Collector) *Queue {
	return &Queue{
		store:           store,
		maxEntries:      maxEntries,
		maxAge:          maxAge,
		duplicateWindow: duplicateWindow,
		collector:       collector,
	}
}

// Push buffers a tap. Only local checks run here: the card hash must not
// duplicate a pending entry inside the duplicate window. At capacity the
// oldest pending entry is evicted and the loss is logged; the new tap is
// kept, the old one is gone.
func (q *Queue) Push(ctx context.Context, cardHash string, hint punch.Type, deviceID string, capturedAt time.Time) (Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	last, err := q.store.LastPendingForCard(ctx, cardHash)
	if err != nil {
		return Entry{}, err
	}
	if last != nil {
		gap := capturedAt.Sub(last.CapturedAt)
		if gap < 0 {
			gap = -gap
		}
		if gap < q.duplicateWindow {
			return Entry{}, fmt.Errorf("%w: %s apart", ErrLocalDuplicate, gap.Round(time.Second))
		}
	}

	count, err := q.store.CountPending(ctx)
	if err != nil {
		return Entry{}, err
	}
	for count >= q.maxEntries {
		oldest, err := q.store.OldestPending(ctx)
		if err != nil {
			return Entry{}, err
		}
		if oldest == nil {
			break
		}
		if err := q.store.Delete(ctx, oldest.ID); err != nil {
			return Entry{}, err
		}
		slog.Error("offline queue full, oldest tap lost",
			"entryId", oldest.ID,
			"deviceId", oldest.DeviceID,
			"capturedAt", oldest.CapturedAt,
		)
		if q.collector != nil {
			q.collector.Eviction()
		}
		count--
	}

	entry := Entry{
		ID:         uuid.NewString(),
		CardHash:   cardHash,
		TypeHint:   hint,
		DeviceID:   deviceID,
		CapturedAt: capturedAt,
		EnqueuedAt: time.Now(),
		Status:     StatusPending,
	}
	return q.store.Insert(ctx, entry)
}

// Pending returns the replay backlog in capture order.
func (q *Queue) Pending(ctx context.Context) ([]Entry, error) {
	return q.store.Pending(ctx)
}

// Sweep drops pending entries older than the retention window. Returns how
// many expired.
func (q *Queue) Sweep(ctx context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	expired, err := q.store.ExpiredPending(ctx, now.Add(-q.maxAge))
	if err != nil {
		return 0, err
	}
	for _, entry := range expired {
		if err := q.store.Delete(ctx, entry.ID); err != nil {
			return 0, err
		}
		slog.Warn("offline queue entry expired",
			"entryId", entry.ID,
			"deviceId", entry.DeviceID,
			"capturedAt", entry.CapturedAt,
			"maxAge", q.maxAge,
		)
	}
	return len(expired), nil
}

// Resolve removes an entry after successful replay.
func (q *Queue) Resolve(ctx context.Context, id string) error {
	return q.store.Delete(ctx, id)
}

// MarkConflicted parks an entry for manual review; it is never replayed
// again and never silently dropped.
func (q *Queue) MarkConflicted(ctx context.Context, id, detail string) error {
	return q.store.MarkConflicted(ctx, id, detail)
}

func (q *Queue) IncrementRetry(ctx context.Context, id string) error {
	return q.store.IncrementRetry(ctx, id)
}

// Conflicted lists entries awaiting manual review.
func (q *Queue) Conflicted(ctx context.Context) ([]Entry, error) {
	return q.store.Conflicted(ctx)
}
