package anomaly

import (
	"context"
	"fmt"
	"math"
	"time"

	"kintai/internal/domain/punch"
)

type Config struct {
	DuplicateWindow time.Duration

	// Loc is the wall-clock zone for clock-window rules. Punch instants
	// arrive in arbitrary zones; nil falls back to UTC.
	Loc *time.Location

	ImplausibleStart string
	ImplausibleEnd   string

	ShiftCeiling time.Duration

	RapidCount  int
	RapidWindow time.Duration

	TravelEnabled bool
	// MaxTravelKmh is the fastest plausible transfer between two readers.
	MaxTravelKmh float64
}

// ScheduleFunc reports whether the employee has a shift covering t. When nil,
// every punch inside the implausible window raises an alert.
type ScheduleFunc func(employeeID string, t time.Time) bool

type rule struct {
	name  string
	check func(d *Detector, day []punch.Record, rec punch.Record) (string, bool)
}

// Detector owns the duplicate rejection rule and the non-blocking anomaly
// rules. Duplicate is the only rule allowed to fail a punch; everything else
// goes to the sink as a side alert.
type Detector struct {
	cfg       Config
	sink      Sink
	locations map[string]Location
	schedule  ScheduleFunc
	rules     []rule
}

func NewDetector(cfg Config, sink Sink, locations map[string]Location, schedule ScheduleFunc) *Detector {
	if sink == nil {
		sink = LogSink{}
	}
	if cfg.Loc == nil {
		cfg.Loc = time.UTC
	}
	d := &Detector{
		cfg:       cfg,
		sink:      sink,
		locations: locations,
		schedule:  schedule,
	}
	d.rules = []rule{
		{KindRapidAlternation, (*Detector).rapidAlternation},
		{KindImplausibleHours, (*Detector).implausibleHours},
		{KindOverlongShift, (*Detector).overlongShift},
	}
	// Travel depends on device-location metadata; it only joins the rule
	// set when enabled and at least one location is registered.
	if cfg.TravelEnabled && len(locations) > 0 {
		d.rules = append(d.rules, rule{KindImpossibleTravel, (*Detector).impossibleTravel})
	}
	return d
}

// CheckDuplicate rejects a punch landing within the configured window of the
// employee's previous punch of any type.
func (d *Detector) CheckDuplicate(prev *punch.Record, at time.Time) error {
	if prev == nil {
		return nil
	}
	gap := at.Sub(prev.Time)
	if gap < 0 {
		gap = -gap
	}
	if gap < d.cfg.DuplicateWindow {
		return fmt.Errorf("%w: %s after previous", ErrDuplicateWindow, gap.Round(time.Second))
	}
	return nil
}

// Inspect runs every anomaly rule over the day as it stands after the new
// record was accepted. day includes rec as its last element.
func (d *Detector) Inspect(ctx context.Context, day []punch.Record, rec punch.Record) []Alert {
	var alerts []Alert
	for _, r := range d.rules {
		if detail, hit := r.check(d, day, rec); hit {
			alert := Alert{
				EmployeeID: rec.EmployeeID,
				Kind:       r.name,
				Detail:     detail,
				At:         rec.Time,
			}
			alerts = append(alerts, alert)
			d.sink.Publish(ctx, alert)
		}
	}
	return alerts
}

func (d *Detector) rapidAlternation(day []punch.Record, rec punch.Record) (string, bool) {
	if d.cfg.RapidCount <= 0 || d.cfg.RapidWindow <= 0 {
		return "", false
	}
	cutoff := rec.Time.Add(-d.cfg.RapidWindow)
	count := 0
	for _, r := range day {
		if !r.Time.Before(cutoff) && !r.Time.After(rec.Time) {
			count++
		}
	}
	if count >= d.cfg.RapidCount {
		return fmt.Sprintf("%d punches within %s", count, d.cfg.RapidWindow), true
	}
	return "", false
}

func (d *Detector) implausibleHours(day []punch.Record, rec punch.Record) (string, bool) {
	local := rec.Time.In(d.cfg.Loc)
	if !clockWithin(local, d.cfg.ImplausibleStart, d.cfg.ImplausibleEnd) {
		return "", false
	}
	if d.schedule != nil && d.schedule(rec.EmployeeID, rec.Time) {
		return "", false
	}
	return fmt.Sprintf("punch at %s inside implausible hours %s-%s without a schedule",
		local.Format("15:04"), d.cfg.ImplausibleStart, d.cfg.ImplausibleEnd), true
}

func (d *Detector) overlongShift(day []punch.Record, rec punch.Record) (string, bool) {
	if d.cfg.ShiftCeiling <= 0 {
		return "", false
	}
	state := punch.DeriveState(day)
	if state == punch.StateOut {
		return "", false
	}
	var inTime time.Time
	for _, r := range day {
		if r.Type == punch.TypeIn {
			inTime = r.Time
			break
		}
	}
	if inTime.IsZero() {
		return "", false
	}
	running := rec.Time.Sub(inTime)
	if running > d.cfg.ShiftCeiling {
		return fmt.Sprintf("running %s since IN without OUT", running.Round(time.Minute)), true
	}
	return "", false
}

func (d *Detector) impossibleTravel(day []punch.Record, rec punch.Record) (string, bool) {
	if len(day) < 2 {
		return "", false
	}
	prev := day[len(day)-2]
	if prev.DeviceID == rec.DeviceID {
		return "", false
	}
	from, okFrom := d.locations[prev.DeviceID]
	to, okTo := d.locations[rec.DeviceID]
	if !okFrom || !okTo {
		return "", false
	}
	hours := rec.Time.Sub(prev.Time).Hours()
	if hours <= 0 {
		return "", false
	}
	km := haversineKm(from, to)
	speed := km / hours
	if speed > d.cfg.MaxTravelKmh {
		return fmt.Sprintf("%.1f km between %s and %s in %s implies %.0f km/h",
			km, prev.DeviceID, rec.DeviceID, rec.Time.Sub(prev.Time).Round(time.Second), speed), true
	}
	return "", false
}

// clockWithin checks whether t's wall clock, in the zone t already carries,
// lies in [start, end), handling windows that wrap midnight.
func clockWithin(t time.Time, start, end string) bool {
	minute := t.Hour()*60 + t.Minute()
	s := clockMinutes(start)
	e := clockMinutes(end)
	if s <= e {
		return minute >= s && minute < e
	}
	return minute >= s || minute < e
}

func clockMinutes(clock string) int {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return 0
	}
	return parsed.Hour()*60 + parsed.Minute()
}

func haversineKm(a, b Location) float64 {
	const earthRadiusKm = 6371.0
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
