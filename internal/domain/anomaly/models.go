package anomaly

import (
	"context"
	"log/slog"
	"time"
)

const (
	KindRapidAlternation = "rapid_alternation"
	KindImplausibleHours = "implausible_hours"
	KindImpossibleTravel = "impossible_travel"
	KindOverlongShift    = "overlong_shift"
)

// Alert is the outbound side-channel event. Alerts never block a commit.
type Alert struct {
	EmployeeID string    `json:"employeeId"`
	Kind       string    `json:"kind"`
	Detail     string    `json:"detail"`
	At         time.Time `json:"at"`
}

type Sink interface {
	Publish(ctx context.Context, alert Alert)
}

// LogSink writes alerts to the structured log; the default sink when no
// reporting collaborator is attached.
type LogSink struct{}

func (LogSink) Publish(ctx context.Context, alert Alert) {
	slog.Warn("anomaly alert",
		"employeeId", alert.EmployeeID,
		"kind", alert.Kind,
		"detail", alert.Detail,
		"at", alert.At,
	)
}

// Location is a registered device position used by the travel rule.
type Location struct {
	Lat float64
	Lon float64
}
