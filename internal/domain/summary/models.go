package summary

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailySummary is derived data: a cache over the committed punch log,
// reproducible at any time by replaying the day's records through BuildDaily.
// It is never a source of truth.
type DailySummary struct {
	EmployeeID string    `json:"employeeId"`
	WorkDate   time.Time `json:"workDate"`

	FirstIn *time.Time `json:"firstIn,omitempty"`
	LastOut *time.Time `json:"lastOut,omitempty"`

	// WorkedMin is the legally rounded daily total; RawWorkedMin keeps the
	// pre-rounding value for audits.
	WorkedMin    int `json:"workedMin"`
	RawWorkedMin int `json:"rawWorkedMin"`
	OvertimeMin  int `json:"overtimeMin"`
	NightMin     int `json:"nightMin"`
	HolidayMin   int `json:"holidayMin"`

	Late       bool `json:"late"`
	EarlyLeave bool `json:"earlyLeave"`
	Absent     bool `json:"absent"`
	Holiday    bool `json:"holiday"`

	Wage decimal.Decimal `json:"wage"`

	ApprovedBy string     `json:"approvedBy,omitempty"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`

	ComputedAt time.Time `json:"computedAt"`
}

type MonthlySummary struct {
	EmployeeID string     `json:"employeeId"`
	Year       int        `json:"year"`
	Month      time.Month `json:"month"`

	DaysWorked  int `json:"daysWorked"`
	DaysAbsent  int `json:"daysAbsent"`
	WorkedMin   int `json:"workedMin"`
	OvertimeMin int `json:"overtimeMin"` // rounded to the monthly increment
	// EscalatedMin is the slice of overtime past the statutory monthly
	// threshold, paid at the escalated rate.
	EscalatedMin int `json:"escalatedMin"`
	NightMin     int `json:"nightMin"`
	HolidayMin   int `json:"holidayMin"`

	Wage decimal.Decimal `json:"wage"`

	ComputedAt time.Time `json:"computedAt"`
}
