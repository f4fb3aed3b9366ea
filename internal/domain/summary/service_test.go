package summary

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"kintai/internal/domain/employee"
	"kintai/internal/domain/punch"
)

func newTestBuilder(t *testing.T) (*Builder, *punch.MemStore, *employee.MemStore, *MemStore, string) {
	t.Helper()
	punches := punch.NewMemStore()
	employees := employee.NewMemStore()
	store := NewMemStore()

	id, err := employees.Create(context.Background(), employee.Employee{
		Name:       "Sato",
		CardHash:   "abc",
		WageKind:   employee.WageHourly,
		HourlyRate: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatal(err)
	}

	b := NewBuilder(punches, employees, store, testRules())
	return b, punches, employees, store, id
}

func TestRefreshBuildsDailyAndMonthly(t *testing.T) {
	ctx := context.Background()
	b, punches, _, store, id := newTestBuilder(t)

	base := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	punches.Insert(ctx, punch.Record{ID: "p1", EmployeeID: id, Type: punch.TypeIn, Time: base.Add(9 * time.Hour)})
	punches.Insert(ctx, punch.Record{ID: "p2", EmployeeID: id, Type: punch.TypeOut, Time: base.Add(18 * time.Hour)})

	if err := b.Refresh(ctx, id, base); err != nil {
		t.Fatal(err)
	}

	d, err := store.GetDaily(ctx, id, base)
	if err != nil {
		t.Fatal(err)
	}
	if d.WorkedMin != 480 {
		t.Fatalf("worked = %d, want 480", d.WorkedMin)
	}
	if d.ComputedAt.IsZero() {
		t.Fatal("computed_at not stamped")
	}

	m, err := store.GetMonthly(ctx, id, 2026, time.August)
	if err != nil {
		t.Fatal(err)
	}
	if m.DaysWorked != 1 || m.WorkedMin != 480 {
		t.Fatalf("monthly = %+v", m)
	}
}

func TestRollupBoundsFollowLocalDays(t *testing.T) {
	ctx := context.Background()
	loc, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Fatal(err)
	}

	punches := punch.NewMemStore()
	employees := employee.NewMemStore()
	store := NewMemStore()
	id, err := employees.Create(ctx, employee.Employee{
		Name:       "Sato",
		CardHash:   "abc",
		WageKind:   employee.WageHourly,
		HourlyRate: decimal.NewFromInt(1000),
	})
	if err != nil {
		t.Fatal(err)
	}
	rules := testRules()
	rules.Loc = loc
	b := NewBuilder(punches, employees, store, rules)

	// Aug 1 starts at 2026-07-31T15:00Z in Tokyo; UTC month bounds would
	// push this day into July's rollup.
	in := time.Date(2026, 8, 1, 9, 0, 0, 0, loc)
	punches.Insert(ctx, punch.Record{ID: "p1", EmployeeID: id, Type: punch.TypeIn, Time: in})
	punches.Insert(ctx, punch.Record{ID: "p2", EmployeeID: id, Type: punch.TypeOut, Time: in.Add(9 * time.Hour)})

	if err := b.Refresh(ctx, id, in); err != nil {
		t.Fatal(err)
	}

	m, err := store.GetMonthly(ctx, id, 2026, time.August)
	if err != nil {
		t.Fatal(err)
	}
	if m.DaysWorked != 1 || m.WorkedMin != 480 {
		t.Fatalf("august rollup missed its first local day: %+v", m)
	}
}

func TestRefreshIsRepeatable(t *testing.T) {
	ctx := context.Background()
	b, punches, _, store, id := newTestBuilder(t)

	base := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	punches.Insert(ctx, punch.Record{ID: "p1", EmployeeID: id, Type: punch.TypeIn, Time: base.Add(9 * time.Hour)})
	punches.Insert(ctx, punch.Record{ID: "p2", EmployeeID: id, Type: punch.TypeOut, Time: base.Add(18 * time.Hour)})

	if err := b.Refresh(ctx, id, base); err != nil {
		t.Fatal(err)
	}
	first, err := store.GetDaily(ctx, id, base)
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Refresh(ctx, id, base); err != nil {
		t.Fatal(err)
	}
	second, err := store.GetDaily(ctx, id, base)
	if err != nil {
		t.Fatal(err)
	}

	if first.WorkedMin != second.WorkedMin || !first.Wage.Equal(second.Wage) {
		t.Fatalf("recompute diverged: %+v vs %+v", first, second)
	}
}

func TestRefreshPreservesApproval(t *testing.T) {
	ctx := context.Background()
	b, punches, _, store, id := newTestBuilder(t)

	base := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	punches.Insert(ctx, punch.Record{ID: "p1", EmployeeID: id, Type: punch.TypeIn, Time: base.Add(9 * time.Hour)})
	punches.Insert(ctx, punch.Record{ID: "p2", EmployeeID: id, Type: punch.TypeOut, Time: base.Add(18 * time.Hour)})

	if err := b.Refresh(ctx, id, base); err != nil {
		t.Fatal(err)
	}
	if err := store.ApproveDaily(ctx, id, base, "mgr-1", time.Now()); err != nil {
		t.Fatal(err)
	}

	if err := b.Refresh(ctx, id, base); err != nil {
		t.Fatal(err)
	}
	d, err := store.GetDaily(ctx, id, base)
	if err != nil {
		t.Fatal(err)
	}
	if d.ApprovedBy != "mgr-1" || d.ApprovedAt == nil {
		t.Fatalf("approval metadata lost on recompute: %+v", d)
	}
}

func TestCloseDayWritesAbsentRows(t *testing.T) {
	ctx := context.Background()
	b, _, employees, store, id := newTestBuilder(t)

	other, err := employees.Create(ctx, employee.Employee{
		Name:       "Tanaka",
		CardHash:   "def",
		WageKind:   employee.WageHourly,
		HourlyRate: decimal.NewFromInt(1200),
	})
	if err != nil {
		t.Fatal(err)
	}

	base := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	closed, err := b.CloseDay(ctx, base)
	if err != nil {
		t.Fatal(err)
	}
	if closed != 2 {
		t.Fatalf("closed = %d, want 2", closed)
	}

	for _, empID := range []string{id, other} {
		d, err := store.GetDaily(ctx, empID, base)
		if err != nil {
			t.Fatal(err)
		}
		if !d.Absent {
			t.Fatalf("employee %s: expected absent row", empID)
		}
	}
}
