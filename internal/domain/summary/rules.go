package summary

import (
	"time"

	"kintai/internal/platform/config"
)

// Rules carries every statutory knob the aggregation math needs. A Rules
// value plus a punch sequence fully determines a summary; there is no other
// input.
type Rules struct {
	Loc *time.Location

	RoundingIncrementMin    int
	DailyOvertimeMin        int
	MonthlyOvertimeMin      int
	MonthlyOvertimeRoundMin int

	OvertimeRate          float64
	OvertimeEscalatedRate float64
	NightRate             float64
	HolidayRate           float64

	NightStart     string
	NightEnd       string
	BreakStart     string
	BreakEnd       string
	ScheduledStart string
	ScheduledEnd   string

	StandardMonthlyMin int

	// Holidays is keyed by local date in 2006-01-02 form.
	Holidays map[string]bool
}

func RulesFromConfig(cfg config.Config, loc *time.Location, holidays map[string]bool) Rules {
	return Rules{
		Loc:                     loc,
		RoundingIncrementMin:    cfg.RoundingIncrementMin,
		DailyOvertimeMin:        cfg.DailyOvertimeMin,
		MonthlyOvertimeMin:      cfg.MonthlyOvertimeMin,
		MonthlyOvertimeRoundMin: cfg.MonthlyOvertimeRoundMin,
		OvertimeRate:            cfg.OvertimeRate,
		OvertimeEscalatedRate:   cfg.OvertimeEscalatedRate,
		NightRate:               cfg.NightRate,
		HolidayRate:             cfg.HolidayRate,
		NightStart:              cfg.NightStart,
		NightEnd:                cfg.NightEnd,
		BreakStart:              cfg.BreakStart,
		BreakEnd:                cfg.BreakEnd,
		ScheduledStart:          cfg.ScheduledStart,
		ScheduledEnd:            cfg.ScheduledEnd,
		StandardMonthlyMin:      cfg.StandardMonthlyMin,
		Holidays:                holidays,
	}
}

func (r Rules) isHoliday(date time.Time) bool {
	return r.Holidays[date.In(r.Loc).Format("2006-01-02")]
}
