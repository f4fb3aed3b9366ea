package summary

import (
	"time"

	"github.com/shopspring/decimal"

	"kintai/internal/domain/employee"
	"kintai/internal/domain/punch"
)

// BuildDaily folds one employee-day of committed punches into a summary.
// It is a pure function of the sequence and the rules: recomputing after a
// correction yields exactly the same values for the same inputs.
func BuildDaily(day []punch.Record, date time.Time, emp employee.Employee, r Rules) DailySummary {
	dayStart, _ := punch.DayWindow(date, r.Loc)
	s := DailySummary{
		EmployeeID: emp.ID,
		WorkDate:   dayStart,
		Holiday:    r.isHoliday(dayStart),
		Wage:       decimal.Zero,
	}

	if len(day) == 0 {
		s.Absent = true
		return s
	}

	for i := range day {
		if day[i].Type == punch.TypeIn {
			t := day[i].Time
			s.FirstIn = &t
			break
		}
	}
	for i := range day {
		if day[i].Type == punch.TypeOut {
			t := day[i].Time
			s.LastOut = &t
		}
	}

	spans := workSpans(day)

	worked := 0
	night := 0
	breakStart := clockMinutes(r.BreakStart)
	breakEnd := clockMinutes(r.BreakEnd)
	nightStart := clockMinutes(r.NightStart)
	nightEnd := clockMinutes(r.NightEnd)
	for _, sp := range spans {
		a1 := minuteOfDay(sp.start, r.Loc)
		a2 := minuteOfDay(sp.end, r.Loc)
		worked += a2 - a1
		worked -= overlap(a1, a2, breakStart, breakEnd)
		// The night window wraps midnight, so it is the union of a
		// late-evening and an early-morning slice of the day.
		if nightStart > nightEnd {
			night += overlap(a1, a2, nightStart, 24*60)
			night += overlap(a1, a2, 0, nightEnd)
		} else {
			night += overlap(a1, a2, nightStart, nightEnd)
		}
	}

	s.RawWorkedMin = worked
	s.WorkedMin = roundHalfUp(worked, r.RoundingIncrementMin)
	if s.WorkedMin > r.DailyOvertimeMin {
		s.OvertimeMin = s.WorkedMin - r.DailyOvertimeMin
	}
	s.NightMin = night
	if s.Holiday {
		s.HolidayMin = s.WorkedMin
	}

	if s.FirstIn != nil && minuteOfDay(*s.FirstIn, r.Loc) > clockMinutes(r.ScheduledStart) {
		s.Late = true
	}
	if s.LastOut != nil && minuteOfDay(*s.LastOut, r.Loc) < clockMinutes(r.ScheduledEnd) {
		s.EarlyLeave = true
	}

	s.Wage = dailyWage(s, emp, r)
	return s
}

// BuildMonthly rolls daily summaries into the month aggregate, applying the
// statutory escalation on monthly overtime past the threshold. Pure and
// idempotent like BuildDaily.
func BuildMonthly(emp employee.Employee, year int, month time.Month, dailies []DailySummary, r Rules) MonthlySummary {
	m := MonthlySummary{
		EmployeeID: emp.ID,
		Year:       year,
		Month:      month,
		Wage:       decimal.Zero,
	}

	overtimeRaw := 0
	wages := decimal.Zero
	for _, d := range dailies {
		if d.Absent {
			m.DaysAbsent++
			continue
		}
		if d.WorkedMin > 0 {
			m.DaysWorked++
		}
		m.WorkedMin += d.WorkedMin
		m.NightMin += d.NightMin
		m.HolidayMin += d.HolidayMin
		overtimeRaw += d.OvertimeMin
		wages = wages.Add(d.Wage)
	}

	m.OvertimeMin = roundHalfUp(overtimeRaw, r.MonthlyOvertimeRoundMin)
	if m.OvertimeMin > r.MonthlyOvertimeMin {
		m.EscalatedMin = m.OvertimeMin - r.MonthlyOvertimeMin
	}

	// Daily wages already pay overtime at the base premium; the escalated
	// slice earns the difference up to the escalated rate on top.
	escalationStep := decimal.NewFromFloat(r.OvertimeEscalatedRate).Sub(decimal.NewFromFloat(r.OvertimeRate))
	adjustment := perMinuteRate(emp, r).
		Mul(decimal.NewFromInt(int64(m.EscalatedMin))).
		Mul(escalationStep)

	total := wages.Add(adjustment)
	if emp.WageKind == employee.WageMonthly {
		total = total.Add(emp.MonthlySalary)
	}
	m.Wage = total.Round(0)
	return m
}

type span struct {
	start time.Time
	end   time.Time
}

// workSpans pairs IN/RETURN with the following OUTSIDE/OUT. An unclosed
// trailing span contributes nothing; the close-out batch owns open days.
func workSpans(day []punch.Record) []span {
	var spans []span
	var open *time.Time
	for _, rec := range day {
		switch rec.Type {
		case punch.TypeIn, punch.TypeReturn:
			t := rec.Time
			open = &t
		case punch.TypeOut, punch.TypeOutside:
			if open != nil {
				spans = append(spans, span{start: *open, end: rec.Time})
				open = nil
			}
		}
	}
	return spans
}

func dailyWage(s DailySummary, emp employee.Employee, r Rules) decimal.Decimal {
	perMin := perMinuteRate(emp, r)
	if perMin.IsZero() {
		return decimal.Zero
	}

	one := decimal.NewFromInt(1)
	premium := decimal.NewFromInt(int64(s.OvertimeMin)).Mul(decimal.NewFromFloat(r.OvertimeRate).Sub(one)).
		Add(decimal.NewFromInt(int64(s.NightMin)).Mul(decimal.NewFromFloat(r.NightRate).Sub(one))).
		Add(decimal.NewFromInt(int64(s.HolidayMin)).Mul(decimal.NewFromFloat(r.HolidayRate).Sub(one)))

	total := perMin.Mul(premium)
	if emp.WageKind == employee.WageHourly {
		// Hourly staff are paid the worked minutes themselves; salaried
		// staff receive the base through their monthly salary.
		total = total.Add(perMin.Mul(decimal.NewFromInt(int64(s.WorkedMin))))
	}
	return total.Round(0)
}

func perMinuteRate(emp employee.Employee, r Rules) decimal.Decimal {
	switch emp.WageKind {
	case employee.WageHourly:
		return emp.HourlyRate.Div(decimal.NewFromInt(60))
	case employee.WageMonthly:
		if r.StandardMonthlyMin <= 0 {
			return decimal.Zero
		}
		return emp.MonthlySalary.Div(decimal.NewFromInt(int64(r.StandardMonthlyMin)))
	}
	return decimal.Zero
}

// roundHalfUp rounds m to the nearest multiple of inc, halves up.
func roundHalfUp(m, inc int) int {
	if inc <= 1 {
		return m
	}
	return (m + inc/2) / inc * inc
}

func minuteOfDay(t time.Time, loc *time.Location) int {
	local := t.In(loc)
	return local.Hour()*60 + local.Minute()
}

func clockMinutes(clock string) int {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return 0
	}
	return parsed.Hour()*60 + parsed.Minute()
}

func overlap(a1, a2, b1, b2 int) int {
	lo := a1
	if b1 > lo {
		lo = b1
	}
	hi := a2
	if b2 < hi {
		hi = b2
	}
	if hi <= lo {
		return 0
	}
	return hi - lo
}
