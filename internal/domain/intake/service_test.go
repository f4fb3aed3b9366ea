package intake

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kintai/internal/device"
	"kintai/internal/domain/anomaly"
	"kintai/internal/domain/capture"
	"kintai/internal/domain/employee"
	"kintai/internal/domain/punch"
	"kintai/internal/platform/cardhash"
	"kintai/internal/platform/metrics"
)

const testSerial = "0123456789ABCDEF"

type fixture struct {
	svc       *Service
	punches   *punch.MemStore
	employees *employee.MemStore
	queue     *capture.Queue
	qstore    *capture.MemStore
	sink      *recordingSink
	empID     string
}

type recordingSink struct {
	mu      sync.Mutex
	commits []punch.Record
}

func (s *recordingSink) PunchCommitted(ctx context.Context, rec punch.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, rec)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	hasher, err := cardhash.New("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}

	punches := punch.NewMemStore()
	employees := employee.NewMemStore()
	resolver := employee.NewResolver(hasher, employees)

	serial, err := employee.Normalize(testSerial)
	if err != nil {
		t.Fatal(err)
	}
	empID, err := employees.Create(context.Background(), employee.Employee{
		Name:       "Sato",
		CardHash:   hasher.Hash(serial),
		WageKind:   employee.WageHourly,
		HourlyRate: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatal(err)
	}

	detector := anomaly.NewDetector(anomaly.Config{
		DuplicateWindow:  3 * time.Minute,
		ImplausibleStart: "01:00",
		ImplausibleEnd:   "04:00",
		ShiftCeiling:     12 * time.Hour,
		RapidCount:       4,
		RapidWindow:      30 * time.Minute,
	}, nil, nil, nil)

	collector := metrics.New()
	qstore := capture.NewMemStore()
	queue := capture.NewQueue(qstore, 200, 168*time.Hour, 3*time.Minute, collector)
	sink := &recordingSink{}

	svc := NewService(Params{
		Resolver:         resolver,
		Punches:          punches,
		Detector:         detector,
		Queue:            queue,
		Sink:             sink,
		Collector:        collector,
		Loc:              time.UTC,
		MaxOutsideCycles: punch.DefaultMaxOutsideCycles,
	})

	return &fixture{
		svc:       svc,
		punches:   punches,
		employees: employees,
		queue:     queue,
		qstore:    qstore,
		sink:      sink,
		empID:     empID,
	}
}

func scanAt(at time.Time, hint string) device.ScanEvent {
	return device.ScanEvent{
		DeviceID:      "gate-1",
		RawCardSerial: testSerial,
		TypeHint:      hint,
		CapturedAt:    at,
	}
}

func TestProcessScanCommitsPunch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	res, err := f.svc.ProcessScan(ctx, scanAt(at, "IN"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Record == nil || res.Record.Type != punch.TypeIn {
		t.Fatalf("result = %+v", res)
	}
	if res.Record.IdempotencyKey != res.Record.ID {
		t.Fatal("live tap must carry its own id as idempotency key")
	}

	all := f.punches.All()
	if len(all) != 1 || all[0].EmployeeID != f.empID || all[0].Offline {
		t.Fatalf("stored = %+v", all)
	}
	if len(f.sink.commits) != 1 {
		t.Fatalf("sink notified %d times, want 1", len(f.sink.commits))
	}
}

func TestProcessScanInfersTypeWithoutHint(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	res, err := f.svc.ProcessScan(ctx, scanAt(at, ""))
	if err != nil {
		t.Fatal(err)
	}
	if res.Record.Type != punch.TypeIn {
		t.Fatalf("inferred type on empty day = %s, want IN", res.Record.Type)
	}

	// After IN both OUT and OUTSIDE are legal; the hint-less tap reads OUT.
	res, err = f.svc.ProcessScan(ctx, scanAt(at.Add(9*time.Hour), ""))
	if err != nil {
		t.Fatal(err)
	}
	if res.Record.Type != punch.TypeOut {
		t.Fatalf("inferred type after IN = %s, want OUT", res.Record.Type)
	}
}

func TestProcessScanRejectsDuplicateWithinWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	if _, err := f.svc.ProcessScan(ctx, scanAt(at, "IN")); err != nil {
		t.Fatal(err)
	}
	first := f.punches.All()[0]

	_, err := f.svc.ProcessScan(ctx, scanAt(at.Add(90*time.Second), "OUT"))
	if !errors.Is(err, anomaly.ErrDuplicateWindow) {
		t.Fatalf("err = %v, want ErrDuplicateWindow", err)
	}

	all := f.punches.All()
	if len(all) != 1 {
		t.Fatalf("second tap committed, log = %+v", all)
	}
	if all[0] != first {
		t.Fatal("first commit changed by rejected duplicate")
	}
}

func TestProcessScanChecksTransitionBeforeDuplicate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	if _, err := f.svc.ProcessScan(ctx, scanAt(at, "IN")); err != nil {
		t.Fatal(err)
	}

	// A second IN a minute later breaks the transition table and lands in
	// the duplicate window; the transition error wins.
	_, err := f.svc.ProcessScan(ctx, scanAt(at.Add(time.Minute), "IN"))
	if !errors.Is(err, punch.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if errors.Is(err, anomaly.ErrDuplicateWindow) {
		t.Fatal("duplicate window must not mask the transition rejection")
	}
}

func TestProcessScanRejectsIllegalTransition(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	_, err := f.svc.ProcessScan(ctx, scanAt(at, "OUT"))
	if !errors.Is(err, punch.ErrInvalidTransition) {
		t.Fatalf("err = %v, want ErrInvalidTransition", err)
	}
	if len(f.punches.All()) != 0 {
		t.Fatal("rejected tap must not commit")
	}
}

func TestProcessScanRejectsUnknownCard(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := scanAt(time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC), "IN")
	ev.RawCardSerial = "FFFFFFFFFFFFFFFF"

	_, err := f.svc.ProcessScan(ctx, ev)
	if !errors.Is(err, employee.ErrNotRegistered) {
		t.Fatalf("err = %v, want ErrNotRegistered", err)
	}

	pending, _ := f.queue.Pending(ctx)
	if len(pending) != 0 {
		t.Fatal("unregistered card must be rejected, not queued")
	}
}

func TestProcessScanRejectsMalformedSerial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := scanAt(time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC), "IN")
	ev.RawCardSerial = "XYZ"

	_, err := f.svc.ProcessScan(ctx, ev)
	if !errors.Is(err, employee.ErrInvalidFormat) {
		t.Fatalf("err = %v, want ErrInvalidFormat", err)
	}
}

func TestProcessScanDivertsToQueueWhenStoreDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.punches.Fail = errors.New("connection refused")
	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	res, err := f.svc.ProcessScan(ctx, scanAt(at, "IN"))
	if err != nil {
		t.Fatalf("store outage must not reject the tap: %v", err)
	}
	if res.Queued == nil || res.Record != nil {
		t.Fatalf("result = %+v, want queued entry", res)
	}
	if res.Queued.TypeHint != punch.TypeIn {
		t.Fatalf("queued hint = %s, want IN", res.Queued.TypeHint)
	}

	pending, err := f.queue.Pending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].CapturedAt != at {
		t.Fatalf("pending = %+v", pending)
	}
}

func TestProcessOfflineReplaysEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.punches.Fail = errors.New("connection refused")
	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	res, err := f.svc.ProcessScan(ctx, scanAt(at, "IN"))
	if err != nil {
		t.Fatal(err)
	}
	entry := *res.Queued

	f.punches.Fail = nil
	if err := f.svc.ProcessOffline(ctx, entry); err != nil {
		t.Fatal(err)
	}

	all := f.punches.All()
	if len(all) != 1 {
		t.Fatalf("log = %+v", all)
	}
	rec := all[0]
	if !rec.Offline {
		t.Fatal("replayed punch must be flagged offline")
	}
	if !rec.Time.Equal(at) {
		t.Fatalf("replayed time = %v, want original capture time %v", rec.Time, at)
	}
	if rec.IdempotencyKey != entry.ID {
		t.Fatal("replay must reuse the entry id as idempotency key")
	}

	// A second replay of the same entry is a no-op.
	if err := f.svc.ProcessOffline(ctx, entry); err != nil {
		t.Fatal(err)
	}
	if len(f.punches.All()) != 1 {
		t.Fatal("retried replay committed twice")
	}
}

func TestProcessOfflineConflictsWithLiveRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	if _, err := f.svc.ProcessScan(ctx, scanAt(at, "IN")); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.ProcessScan(ctx, scanAt(at.Add(9*time.Hour), "OUT")); err != nil {
		t.Fatal(err)
	}

	hasher, _ := cardhash.New("0123456789abcdef0123456789abcdef")
	entry, err := f.queue.Push(ctx, hasher.Hash(testSerial), punch.TypeIn, "gate-2", at.Add(10*time.Hour))
	if err != nil {
		t.Fatal(err)
	}

	err = f.svc.ProcessOffline(ctx, entry)
	if !errors.Is(err, punch.ErrAlreadyTerminal) {
		t.Fatalf("err = %v, want ErrAlreadyTerminal", err)
	}
	if errors.Is(err, ErrStoreUnavailable) {
		t.Fatal("state conflict must not read as a transient store failure")
	}
	if len(f.punches.All()) != 2 {
		t.Fatal("conflicting replay must not commit")
	}
}

func TestProcessOfflineStoreStillDown(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	at := time.Date(2026, 8, 3, 9, 0, 0, 0, time.UTC)

	hasher, _ := cardhash.New("0123456789abcdef0123456789abcdef")
	entry, err := f.queue.Push(ctx, hasher.Hash(testSerial), punch.TypeIn, "gate-1", at)
	if err != nil {
		t.Fatal(err)
	}

	f.punches.Fail = errors.New("connection refused")
	err = f.svc.ProcessOffline(ctx, entry)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
}
