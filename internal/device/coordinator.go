package device

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Coordinator runs one polling goroutine per registered reader and hands
// every tap to the Handler. A reader that keeps faulting is marked unhealthy
// and retried with exponential backoff; one bad reader never stalls the
// others.
type Coordinator struct {
	handler     Handler
	scanTimeout time.Duration
	maxRetries  int

	mu       sync.Mutex
	readers  []Reader
	healthy  map[string]bool
	failures map[string]int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewCoordinator(handler Handler, scanTimeout time.Duration, maxRetries int) *Coordinator {
	return &Coordinator{
		handler:     handler,
		scanTimeout: scanTimeout,
		maxRetries:  maxRetries,
		healthy:     map[string]bool{},
		failures:    map[string]int{},
	}
}

// Register adds a reader. Must be called before Start.
func (c *Coordinator) Register(r Reader) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readers = append(c.readers, r)
	c.healthy[r.ID()] = true
}

func (c *Coordinator) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.mu.Lock()
	readers := make([]Reader, len(c.readers))
	copy(readers, c.readers)
	c.mu.Unlock()

	for _, r := range readers {
		c.wg.Add(1)
		go func(r Reader) {
			defer c.wg.Done()
			c.poll(runCtx, r)
		}(r)
	}
	slog.Info("reader coordinator started", "readers", len(readers))
}

func (c *Coordinator) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	slog.Info("reader coordinator stopped")
}

// Healthy reports whether the reader has produced a successful poll more
// recently than its retry budget worth of faults.
func (c *Coordinator) Healthy(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.healthy[id]
}

func (c *Coordinator) poll(ctx context.Context, r Reader) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 30 * time.Second

	for {
		ev, err := r.Poll(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, ErrReaderClosed):
			return
		case err != nil:
			wait := bo.NextBackOff()
			if c.recordFault(r.ID()) {
				slog.Error("reader unhealthy", "deviceId", r.ID(), "err", err)
			} else {
				slog.Warn("reader fault", "deviceId", r.ID(), "err", err, "retryIn", wait)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}

		bo.Reset()
		c.recordSuccess(r.ID())
		c.handle(ctx, ev)
	}
}

func (c *Coordinator) handle(ctx context.Context, ev ScanEvent) {
	handleCtx, cancel := context.WithTimeout(ctx, c.scanTimeout)
	defer cancel()
	if err := c.handler.HandleScan(handleCtx, ev); err != nil {
		// The pipeline logs the specifics; the serial never appears here.
		slog.Warn("tap not accepted", "deviceId", ev.DeviceID, "err", err)
	}
}

// recordFault returns true once the fault count crosses the retry budget.
func (c *Coordinator) recordFault(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[id]++
	if c.failures[id] >= c.maxRetries {
		c.healthy[id] = false
		return true
	}
	return false
}

func (c *Coordinator) recordSuccess(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[id] = 0
	c.healthy[id] = true
}
