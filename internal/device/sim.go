package device

import (
	"context"
	"fmt"
)

// SimReader is a channel-fed reader used in tests and store-less runs. Tap
// pushes an event as if a card were presented; Fault makes the next Poll
// fail once, as a flaky piece of hardware would.
type SimReader struct {
	id     string
	events chan ScanEvent
	faults chan error
	done   chan struct{}
}

func NewSimReader(id string) *SimReader {
	return &SimReader{
		id:     id,
		events: make(chan ScanEvent, 16),
		faults: make(chan error, 16),
		done:   make(chan struct{}),
	}
}

func (r *SimReader) ID() string { return r.id }

func (r *SimReader) Tap(ev ScanEvent) {
	ev.DeviceID = r.id
	r.events <- ev
}

func (r *SimReader) Fault(err error) {
	r.faults <- err
}

// Close ends the feed; Poll returns ErrReaderClosed afterwards.
func (r *SimReader) Close() {
	close(r.done)
}

func (r *SimReader) Poll(ctx context.Context) (ScanEvent, error) {
	select {
	case err := <-r.faults:
		return ScanEvent{}, fmt.Errorf("%w: %w", ErrDeviceError, err)
	default:
	}
	select {
	case <-ctx.Done():
		return ScanEvent{}, ctx.Err()
	case <-r.done:
		return ScanEvent{}, ErrReaderClosed
	case err := <-r.faults:
		return ScanEvent{}, fmt.Errorf("%w: %w", ErrDeviceError, err)
	case ev := <-r.events:
		return ev, nil
	}
}
