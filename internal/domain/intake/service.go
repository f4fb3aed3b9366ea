package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"kintai/internal/device"
	"kintai/internal/domain/anomaly"
	"kintai/internal/domain/capture"
	"kintai/internal/domain/employee"
	"kintai/internal/domain/punch"
	"kintai/internal/platform/metrics"
)

// CommitSink is notified of every accepted punch. Reader feedback and live
// dashboards hang off it; a nil sink is fine.
type CommitSink interface {
	PunchCommitted(ctx context.Context, rec punch.Record)
}

// Result is the outcome of one tap: exactly one of Record and Queued is set
// when the tap was accepted.
type Result struct {
	Employee *employee.Employee
	Record   *punch.Record
	Queued   *capture.Entry
	Alerts   []anomaly.Alert
}

// Service is the tap pipeline: normalize, resolve, detect duplicates,
// validate the transition, commit. Store failures divert the tap to the
// offline queue behind a circuit breaker so a dead store is noticed once,
// not per tap.
//
// All checks for one employee run under a per-employee lock, so two taps of
// the same card racing through the pipeline serialize and the second sees
// the first's committed record.
type Service struct {
	resolver  *employee.Resolver
	punches   punch.Store
	detector  *anomaly.Detector
	queue     *capture.Queue
	refresher punch.SummaryRefresher
	sink      CommitSink
	collector *metrics.Collector
	breaker   *gobreaker.CircuitBreaker

	loc              *time.Location
	maxOutsideCycles int

	mu          sync.Mutex
	locks       map[string]*sync.Mutex
	onRecovered func()
}

type Params struct {
	Resolver         *employee.Resolver
	Punches          punch.Store
	Detector         *anomaly.Detector
	Queue            *capture.Queue
	Refresher        punch.SummaryRefresher
	Sink             CommitSink
	Collector        *metrics.Collector
	Loc              *time.Location
	MaxOutsideCycles int
}

func NewService(p Params) *Service {
	s := &Service{
		resolver:         p.Resolver,
		punches:          p.Punches,
		detector:         p.Detector,
		queue:            p.Queue,
		refresher:        p.Refresher,
		sink:             p.Sink,
		collector:        p.Collector,
		loc:              p.Loc,
		maxOutsideCycles: p.MaxOutsideCycles,
		locks:            map[string]*sync.Mutex{},
	}
	s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "punch-store",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			// Business outcomes travel through the breaker untouched;
			// only store faults count against it.
			return err == nil || errors.Is(err, employee.ErrNotRegistered)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("record store breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			if to == gobreaker.StateClosed && from != gobreaker.StateClosed {
				s.notifyRecovered()
			}
		},
	})
	return s
}

// SetRecoveryHook registers a callback fired when the breaker closes after an
// outage. The scheduler hangs an immediate reconciliation run off it so the
// backlog drains on reconnect instead of waiting for the next tick.
func (s *Service) SetRecoveryHook(fn func()) {
	s.mu.Lock()
	s.onRecovered = fn
	s.mu.Unlock()
}

func (s *Service) notifyRecovered() {
	s.mu.Lock()
	fn := s.onRecovered
	s.mu.Unlock()
	if fn != nil {
		go fn()
	}
}

// HandleScan adapts ProcessScan to the reader coordinator.
func (s *Service) HandleScan(ctx context.Context, ev device.ScanEvent) error {
	_, err := s.ProcessScan(ctx, ev)
	return err
}

// ProcessScan runs one live tap through the full pipeline. A rejection comes
// back as an error; a tap diverted to the offline queue is a success with
// Result.Queued set.
func (s *Service) ProcessScan(ctx context.Context, ev device.ScanEvent) (Result, error) {
	s.collector.Tap()

	hash, err := s.resolver.HashSerial(ev.RawCardSerial)
	if err != nil {
		s.collector.Rejected()
		return Result{}, err
	}

	hint, err := parseHint(ev.TypeHint)
	if err != nil {
		s.collector.Rejected()
		return Result{}, err
	}

	emp, err := s.resolveHash(ctx, hash)
	switch {
	case errors.Is(err, employee.ErrNotRegistered):
		s.collector.Rejected()
		slog.Info("tap rejected, card not registered", "deviceId", ev.DeviceID)
		return Result{}, err
	case err != nil:
		// Identity is unknown while the store is down; the queue keeps the
		// hash and resolution happens at replay.
		return s.divert(ctx, hash, hint, ev.DeviceID, ev.CapturedAt, err)
	}

	unlock := s.lockEmployee(emp.ID)
	defer unlock()

	res, err := s.commitLive(ctx, *emp, hint, ev.DeviceID, ev.CapturedAt)
	if errors.Is(err, ErrStoreUnavailable) {
		return s.divert(ctx, hash, hint, ev.DeviceID, ev.CapturedAt, err)
	}
	if err != nil {
		s.collector.Rejected()
		slog.Info("tap rejected",
			"employeeId", emp.ID,
			"deviceId", ev.DeviceID,
			"err", err,
		)
		return Result{}, err
	}
	return res, nil
}

func (s *Service) commitLive(ctx context.Context, emp employee.Employee, hint punch.Type, deviceID string, at time.Time) (Result, error) {
	start, end := punch.DayWindow(at, s.loc)

	var day []punch.Record
	if err := s.storeCall(func() error {
		var err error
		day, err = s.punches.Records(ctx, emp.ID, start, end)
		return err
	}); err != nil {
		return Result{}, err
	}

	typ := hint
	if typ == "" {
		var err error
		typ, err = punch.InferNext(day)
		if err != nil {
			return Result{}, err
		}
	}
	if err := punch.Validate(day, typ, at, s.maxOutsideCycles); err != nil {
		return Result{}, err
	}

	// Duplicate detection runs after state-machine acceptance, so a tap
	// that fails both surfaces the transition error.
	var prev *punch.Record
	if err := s.storeCall(func() error {
		var err error
		prev, err = s.punches.LastBefore(ctx, emp.ID, at)
		return err
	}); err != nil {
		return Result{}, err
	}
	if err := s.detector.CheckDuplicate(prev, at); err != nil {
		return Result{}, err
	}

	rec := punch.Record{
		ID:         uuid.NewString(),
		EmployeeID: emp.ID,
		Type:       typ,
		Time:       at,
		DeviceID:   deviceID,
		CreatedAt:  time.Now(),
	}
	rec.IdempotencyKey = rec.ID

	started := time.Now()
	if err := s.storeCall(func() error {
		return s.punches.Insert(ctx, rec)
	}); err != nil {
		return Result{}, err
	}
	s.collector.Commit(time.Since(started))

	alerts := s.afterCommit(ctx, emp.ID, day, rec, start)
	return Result{Employee: &emp, Record: &rec, Alerts: alerts}, nil
}

// ProcessOffline replays one buffered entry. Success means the punch is
// committed (or already was, under the entry's idempotency key). A state or
// identity conflict comes back as a plain error; ErrStoreUnavailable means
// try again later.
func (s *Service) ProcessOffline(ctx context.Context, entry capture.Entry) error {
	emp, err := s.resolveHash(ctx, entry.CardHash)
	if errors.Is(err, employee.ErrNotRegistered) {
		return fmt.Errorf("card no longer registered: %w", err)
	}
	if err != nil {
		return err
	}

	unlock := s.lockEmployee(emp.ID)
	defer unlock()

	var exists bool
	if err := s.storeCall(func() error {
		var err error
		exists, err = s.punches.ExistsKey(ctx, entry.ID)
		return err
	}); err != nil {
		return err
	}
	if exists {
		return nil
	}

	at := entry.CapturedAt
	start, end := punch.DayWindow(at, s.loc)

	var day []punch.Record
	if err := s.storeCall(func() error {
		var err error
		day, err = s.punches.Records(ctx, emp.ID, start, end)
		return err
	}); err != nil {
		return err
	}

	typ := entry.TypeHint
	if typ == "" {
		var err error
		typ, err = punch.InferNext(day)
		if err != nil {
			return err
		}
	}
	if err := punch.Validate(day, typ, at, s.maxOutsideCycles); err != nil {
		return err
	}

	var prev *punch.Record
	if err := s.storeCall(func() error {
		var err error
		prev, err = s.punches.LastBefore(ctx, emp.ID, at)
		return err
	}); err != nil {
		return err
	}
	if err := s.detector.CheckDuplicate(prev, at); err != nil {
		return err
	}

	rec := punch.Record{
		ID:             uuid.NewString(),
		EmployeeID:     emp.ID,
		Type:           typ,
		Time:           at,
		DeviceID:       entry.DeviceID,
		Offline:        true,
		IdempotencyKey: entry.ID,
		CreatedAt:      time.Now(),
	}

	started := time.Now()
	if err := s.storeCall(func() error {
		return s.punches.Insert(ctx, rec)
	}); err != nil {
		return err
	}
	s.collector.Commit(time.Since(started))

	s.afterCommit(ctx, emp.ID, day, rec, start)
	return nil
}

func (s *Service) afterCommit(ctx context.Context, employeeID string, day []punch.Record, rec punch.Record, dayStart time.Time) []anomaly.Alert {
	if s.refresher != nil {
		if err := s.refresher.Refresh(ctx, employeeID, dayStart); err != nil {
			// The close-out batch rebuilds the day anyway.
			slog.Warn("summary refresh failed", "employeeId", employeeID, "err", err)
		}
	}

	alerts := s.detector.Inspect(ctx, append(day, rec), rec)
	for range alerts {
		s.collector.Alert()
	}

	if s.sink != nil {
		s.sink.PunchCommitted(ctx, rec)
	}

	slog.Info("punch committed",
		"employeeId", employeeID,
		"type", rec.Type,
		"at", rec.Time,
		"deviceId", rec.DeviceID,
		"offline", rec.Offline,
	)
	return alerts
}

func (s *Service) divert(ctx context.Context, cardHash string, hint punch.Type, deviceID string, at time.Time, cause error) (Result, error) {
	entry, err := s.queue.Push(ctx, cardHash, hint, deviceID, at)
	if err != nil {
		s.collector.Rejected()
		return Result{}, err
	}
	s.collector.Queued()
	slog.Warn("tap buffered offline",
		"entryId", entry.ID,
		"deviceId", deviceID,
		"capturedAt", at,
		"cause", cause,
	)
	return Result{Queued: &entry}, nil
}

// storeCall routes a store operation through the breaker and folds every
// failure mode into ErrStoreUnavailable.
func (s *Service) storeCall(fn func() error) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// resolveHash goes through the breaker too, but keeps ErrNotRegistered
// intact as a business outcome.
func (s *Service) resolveHash(ctx context.Context, hash string) (*employee.Employee, error) {
	v, err := s.breaker.Execute(func() (interface{}, error) {
		return s.resolver.ResolveHash(ctx, hash)
	})
	if errors.Is(err, employee.ErrNotRegistered) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	return v.(*employee.Employee), nil
}

func (s *Service) lockEmployee(id string) func() {
	s.mu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	s.mu.Unlock()
	l.Lock()
	return l.Unlock
}

func parseHint(raw string) (punch.Type, error) {
	if raw == "" {
		return "", nil
	}
	return punch.ParseType(raw)
}
