package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []ScanEvent
	err    error
}

func (h *recordingHandler) HandleScan(ctx context.Context, ev ScanEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, ev)
	return h.err
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestCoordinatorDeliversTaps(t *testing.T) {
	h := &recordingHandler{}
	c := NewCoordinator(h, time.Second, 3)
	r := NewSimReader("gate-1")
	c.Register(r)

	c.Start(context.Background())
	defer c.Stop()

	r.Tap(ScanEvent{RawCardSerial: "0123456789ABCDEF", CapturedAt: time.Now()})
	r.Tap(ScanEvent{RawCardSerial: "0123456789ABCDEF", CapturedAt: time.Now()})

	waitFor(t, func() bool { return h.count() == 2 })

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ev := range h.events {
		if ev.DeviceID != "gate-1" {
			t.Fatalf("deviceId = %q, want gate-1", ev.DeviceID)
		}
	}
}

func TestCoordinatorMarksReaderUnhealthy(t *testing.T) {
	h := &recordingHandler{}
	c := NewCoordinator(h, time.Second, 3)
	r := NewSimReader("gate-2")
	c.Register(r)

	if !c.Healthy("gate-2") {
		t.Fatal("reader must start healthy")
	}

	c.Start(context.Background())
	defer c.Stop()

	for i := 0; i < 3; i++ {
		r.Fault(errors.New("nfc timeout"))
	}
	waitFor(t, func() bool { return !c.Healthy("gate-2") })

	// A successful tap restores health.
	r.Tap(ScanEvent{RawCardSerial: "0123456789ABCDEF", CapturedAt: time.Now()})
	waitFor(t, func() bool { return c.Healthy("gate-2") && h.count() == 1 })
}

func TestCoordinatorIsolatesFaultyReader(t *testing.T) {
	h := &recordingHandler{}
	c := NewCoordinator(h, time.Second, 2)
	bad := NewSimReader("gate-bad")
	good := NewSimReader("gate-good")
	c.Register(bad)
	c.Register(good)

	c.Start(context.Background())
	defer c.Stop()

	bad.Fault(errors.New("wedged"))
	bad.Fault(errors.New("wedged"))
	good.Tap(ScanEvent{RawCardSerial: "0123456789ABCDEF", CapturedAt: time.Now()})

	waitFor(t, func() bool { return h.count() == 1 && !c.Healthy("gate-bad") })
	if !c.Healthy("gate-good") {
		t.Fatal("healthy reader affected by faulty one")
	}
}

func TestSimReaderCloseStopsPolling(t *testing.T) {
	r := NewSimReader("gate-3")
	r.Close()
	_, err := r.Poll(context.Background())
	if !errors.Is(err, ErrReaderClosed) {
		t.Fatalf("err = %v, want ErrReaderClosed", err)
	}
}
