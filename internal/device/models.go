package device

import (
	"context"
	"time"
)

// ScanEvent is one card tap as a reader reports it. RawCardSerial is the
// serial as read from the card, before normalization or hashing; it must not
// be logged or stored.
//
// TypeHint carries the punch type selected on the reader (terminals with an
// IN/OUT/OUTSIDE/RETURN button row). Readers without a selector leave it
// empty and the engine infers the type from the employee's current state.
type ScanEvent struct {
	DeviceID      string
	RawCardSerial string
	TypeHint      string
	CapturedAt    time.Time
}

// Reader is one physical or simulated card reader. Poll blocks until the
// next tap, a reader fault, or context cancellation.
type Reader interface {
	ID() string
	Poll(ctx context.Context) (ScanEvent, error)
}

// Handler consumes scan events. The tap pipeline implements it; the
// coordinator never interprets taps itself.
type Handler interface {
	HandleScan(ctx context.Context, ev ScanEvent) error
}
