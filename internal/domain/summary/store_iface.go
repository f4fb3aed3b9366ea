package summary

import (
	"context"
	"time"
)

// Store holds the derived summary caches. Rows are always upserted whole;
// partial mutation would break the replay-reproducibility invariant.
type Store interface {
	UpsertDaily(ctx context.Context, s DailySummary) error
	GetDaily(ctx context.Context, employeeID string, workDate time.Time) (*DailySummary, error)
	// ListDailies returns the dailies with work_date in [from, to), ordered
	// by work_date. Callers pass local-zone month bounds; work_date rows are
	// local day starts, so UTC bounds would misfile days near month edges.
	ListDailies(ctx context.Context, employeeID string, from, to time.Time) ([]DailySummary, error)

	UpsertMonthly(ctx context.Context, m MonthlySummary) error
	GetMonthly(ctx context.Context, employeeID string, year int, month time.Month) (*MonthlySummary, error)

	// ApproveDaily attaches approval metadata without touching computed values.
	ApproveDaily(ctx context.Context, employeeID string, workDate time.Time, approvedBy string, approvedAt time.Time) error
}
