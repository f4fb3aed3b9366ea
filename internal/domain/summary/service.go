package summary

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kintai/internal/domain/employee"
	"kintai/internal/domain/punch"
)

// Builder materializes summaries from the committed punch log. Every method
// recomputes from scratch; running one twice, or concurrently with itself,
// lands on the same rows.
type Builder struct {
	punches   punch.Store
	employees employee.Store
	store     Store
	rules     Rules
	now       func() time.Time
}

func NewBuilder(punches punch.Store, employees employee.Store, store Store, rules Rules) *Builder {
	return &Builder{
		punches:   punches,
		employees: employees,
		store:     store,
		rules:     rules,
		now:       time.Now,
	}
}

// Refresh rebuilds one employee-day and the month containing it. It is the
// correction hook: punch.Service calls it for every day a correction touches.
func (b *Builder) Refresh(ctx context.Context, employeeID string, day time.Time) error {
	emp, err := b.employees.Get(ctx, employeeID)
	if err != nil {
		return fmt.Errorf("load employee: %w", err)
	}

	start, end := punch.DayWindow(day, b.rules.Loc)
	records, err := b.punches.Records(ctx, employeeID, start, end)
	if err != nil {
		return fmt.Errorf("load day records: %w", err)
	}

	daily := BuildDaily(records, start, *emp, b.rules)
	daily.ComputedAt = b.now()
	if err := b.store.UpsertDaily(ctx, daily); err != nil {
		return fmt.Errorf("upsert daily: %w", err)
	}

	return b.rollup(ctx, *emp, start.Year(), start.Month())
}

// CloseDay builds the daily summary for every active employee for the given
// date, including absent rows for employees with no punches. The end-of-day
// batch runs this for yesterday so days without an OUT still close.
func (b *Builder) CloseDay(ctx context.Context, date time.Time) (int, error) {
	employees, err := b.employees.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list employees: %w", err)
	}

	closed := 0
	for _, emp := range employees {
		if err := b.Refresh(ctx, emp.ID, date); err != nil {
			slog.Warn("daily close-out failed", "employeeId", emp.ID, "date", date, "err", err)
			continue
		}
		closed++
	}
	return closed, nil
}

// RollupMonth recomputes the monthly summary for every active employee.
func (b *Builder) RollupMonth(ctx context.Context, year int, month time.Month) (int, error) {
	employees, err := b.employees.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list employees: %w", err)
	}

	rolled := 0
	for _, emp := range employees {
		if err := b.rollup(ctx, emp, year, month); err != nil {
			slog.Warn("monthly rollup failed", "employeeId", emp.ID, "year", year, "month", month, "err", err)
			continue
		}
		rolled++
	}
	return rolled, nil
}

func (b *Builder) rollup(ctx context.Context, emp employee.Employee, year int, month time.Month) error {
	// Month bounds in the rules zone; work_date rows are local day starts,
	// not UTC ones.
	from := time.Date(year, month, 1, 0, 0, 0, 0, b.rules.Loc)
	dailies, err := b.store.ListDailies(ctx, emp.ID, from, from.AddDate(0, 1, 0))
	if err != nil {
		return fmt.Errorf("list dailies: %w", err)
	}
	monthly := BuildMonthly(emp, year, month, dailies, b.rules)
	monthly.ComputedAt = b.now()
	if err := b.store.UpsertMonthly(ctx, monthly); err != nil {
		return fmt.Errorf("upsert monthly: %w", err)
	}
	return nil
}

// Daily and Monthly are the read contracts for reporting collaborators.
func (b *Builder) Daily(ctx context.Context, employeeID string, workDate time.Time) (*DailySummary, error) {
	start, _ := punch.DayWindow(workDate, b.rules.Loc)
	return b.store.GetDaily(ctx, employeeID, start)
}

func (b *Builder) Monthly(ctx context.Context, employeeID string, year int, month time.Month) (*MonthlySummary, error) {
	return b.store.GetMonthly(ctx, employeeID, year, month)
}
