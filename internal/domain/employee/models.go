package employee

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	WageHourly  = "hourly"
	WageMonthly = "monthly"
)

type Employee struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	OrgUnit  string `json:"orgUnit"`
	CardHash string `json:"-"`

	// WageKind selects between an hourly rate and a monthly salary; the
	// unused amount is zero.
	WageKind      string          `json:"wageKind"`
	HourlyRate    decimal.Decimal `json:"hourlyRate"`
	MonthlySalary decimal.Decimal `json:"monthlySalary"`

	// Active is flipped off on departure; rows are never deleted so
	// historical summaries keep resolving.
	Active bool `json:"active"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
