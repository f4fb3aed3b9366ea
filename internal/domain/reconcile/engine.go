package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"kintai/internal/domain/capture"
	"kintai/internal/domain/intake"
	"kintai/internal/platform/metrics"
)

// Pipeline replays one buffered tap through the same validation the live
// path uses.
type Pipeline interface {
	ProcessOffline(ctx context.Context, entry capture.Entry) error
}

type Stats struct {
	Replayed   int
	Conflicted int
	Deferred   int
}

// Engine drains the offline queue in capture order. Replays that fail on
// store availability are retried with exponential backoff and, if the store
// stays down, the run stops so later entries keep their place in line.
// Replays the state machine refuses are parked as conflicts and never
// retried.
type Engine struct {
	queue     *capture.Queue
	pipeline  Pipeline
	collector *metrics.Collector

	maxRetries      uint64
	initialInterval time.Duration
}

func NewEngine(queue *capture.Queue, pipeline Pipeline, collector *metrics.Collector) *Engine {
	return &Engine{
		queue:           queue,
		pipeline:        pipeline,
		collector:       collector,
		maxRetries:      5,
		initialInterval: 500 * time.Millisecond,
	}
}

func (e *Engine) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	pending, err := e.queue.Pending(ctx)
	if err != nil {
		return stats, err
	}

	for _, entry := range pending {
		err := e.replay(ctx, entry)
		switch {
		case err == nil:
			if err := e.queue.Resolve(ctx, entry.ID); err != nil {
				return stats, err
			}
			stats.Replayed++

		case errors.Is(err, intake.ErrStoreUnavailable):
			// Store still down. Keep the entry pending and bail out; the
			// next run picks up from here in the same order.
			if err := e.queue.IncrementRetry(ctx, entry.ID); err != nil {
				return stats, err
			}
			stats.Deferred++
			slog.Warn("reconciliation deferred, store unavailable",
				"entryId", entry.ID,
				"pendingLeft", len(pending)-stats.Replayed-stats.Conflicted,
			)
			return stats, nil

		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return stats, err

		default:
			if err := e.queue.MarkConflicted(ctx, entry.ID, err.Error()); err != nil {
				return stats, err
			}
			e.collector.Conflict()
			stats.Conflicted++
			slog.Warn("queued tap conflicts with committed log",
				"entryId", entry.ID,
				"deviceId", entry.DeviceID,
				"capturedAt", entry.CapturedAt,
				"reason", err.Error(),
			)
		}
	}

	if stats.Replayed > 0 || stats.Conflicted > 0 {
		slog.Info("reconciliation run finished",
			"replayed", stats.Replayed,
			"conflicted", stats.Conflicted,
		)
	}
	return stats, nil
}

// replay retries transient failures in place; anything else surfaces
// immediately.
func (e *Engine) replay(ctx context.Context, entry capture.Entry) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.initialInterval

	return backoff.Retry(func() error {
		err := e.pipeline.ProcessOffline(ctx, entry)
		if err == nil {
			return nil
		}
		if errors.Is(err, intake.ErrStoreUnavailable) {
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(bo, e.maxRetries), ctx))
}
