package summary

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct {
	DB *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{DB: db}
}

func (s *PGStore) UpsertDaily(ctx context.Context, d DailySummary) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO daily_summaries (
      employee_id, work_date, first_in, last_out,
      worked_min, raw_worked_min, overtime_min, night_min, holiday_min,
      late, early_leave, absent, holiday, wage, computed_at
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
    ON CONFLICT (employee_id, work_date) DO UPDATE
    SET first_in = EXCLUDED.first_in,
        last_out = EXCLUDED.last_out,
        worked_min = EXCLUDED.worked_min,
        raw_worked_min = EXCLUDED.raw_worked_min,
        overtime_min = EXCLUDED.overtime_min,
        night_min = EXCLUDED.night_min,
        holiday_min = EXCLUDED.holiday_min,
        late = EXCLUDED.late,
        early_leave = EXCLUDED.early_leave,
        absent = EXCLUDED.absent,
        holiday = EXCLUDED.holiday,
        wage = EXCLUDED.wage,
        computed_at = EXCLUDED.computed_at
  `,
		d.EmployeeID, d.WorkDate, d.FirstIn, d.LastOut,
		d.WorkedMin, d.RawWorkedMin, d.OvertimeMin, d.NightMin, d.HolidayMin,
		d.Late, d.EarlyLeave, d.Absent, d.Holiday, d.Wage, d.ComputedAt,
	)
	return err
}

func (s *PGStore) GetDaily(ctx context.Context, employeeID string, workDate time.Time) (*DailySummary, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT employee_id, work_date, first_in, last_out,
           worked_min, raw_worked_min, overtime_min, night_min, holiday_min,
           late, early_leave, absent, holiday, wage,
           COALESCE(approved_by, ''), approved_at, computed_at
    FROM daily_summaries
    WHERE employee_id = $1 AND work_date = $2
  `, employeeID, workDate)
	d, err := scanDaily(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PGStore) ListDailies(ctx context.Context, employeeID string, from, to time.Time) ([]DailySummary, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT employee_id, work_date, first_in, last_out,
           worked_min, raw_worked_min, overtime_min, night_min, holiday_min,
           late, early_leave, absent, holiday, wage,
           COALESCE(approved_by, ''), approved_at, computed_at
    FROM daily_summaries
    WHERE employee_id = $1 AND work_date >= $2 AND work_date < $3
    ORDER BY work_date
  `, employeeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DailySummary
	for rows.Next() {
		d, err := scanDaily(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func (s *PGStore) UpsertMonthly(ctx context.Context, m MonthlySummary) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO monthly_summaries (
      employee_id, year, month, days_worked, days_absent,
      worked_min, overtime_min, escalated_min, night_min, holiday_min,
      wage, computed_at
    )
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
    ON CONFLICT (employee_id, year, month) DO UPDATE
    SET days_worked = EXCLUDED.days_worked,
        days_absent = EXCLUDED.days_absent,
        worked_min = EXCLUDED.worked_min,
        overtime_min = EXCLUDED.overtime_min,
        escalated_min = EXCLUDED.escalated_min,
        night_min = EXCLUDED.night_min,
        holiday_min = EXCLUDED.holiday_min,
        wage = EXCLUDED.wage,
        computed_at = EXCLUDED.computed_at
  `,
		m.EmployeeID, m.Year, int(m.Month), m.DaysWorked, m.DaysAbsent,
		m.WorkedMin, m.OvertimeMin, m.EscalatedMin, m.NightMin, m.HolidayMin,
		m.Wage, m.ComputedAt,
	)
	return err
}

func (s *PGStore) GetMonthly(ctx context.Context, employeeID string, year int, month time.Month) (*MonthlySummary, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT employee_id, year, month, days_worked, days_absent,
           worked_min, overtime_min, escalated_min, night_min, holiday_min,
           wage, computed_at
    FROM monthly_summaries
    WHERE employee_id = $1 AND year = $2 AND month = $3
  `, employeeID, year, int(month))

	var m MonthlySummary
	var monthNum int
	err := row.Scan(
		&m.EmployeeID, &m.Year, &monthNum, &m.DaysWorked, &m.DaysAbsent,
		&m.WorkedMin, &m.OvertimeMin, &m.EscalatedMin, &m.NightMin, &m.HolidayMin,
		&m.Wage, &m.ComputedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSummaryNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Month = time.Month(monthNum)
	return &m, nil
}

func (s *PGStore) ApproveDaily(ctx context.Context, employeeID string, workDate time.Time, approvedBy string, approvedAt time.Time) error {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE daily_summaries
    SET approved_by = $1, approved_at = $2
    WHERE employee_id = $3 AND work_date = $4
  `, approvedBy, approvedAt, employeeID, workDate)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrSummaryNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDaily(row rowScanner) (*DailySummary, error) {
	var d DailySummary
	if err := row.Scan(
		&d.EmployeeID, &d.WorkDate, &d.FirstIn, &d.LastOut,
		&d.WorkedMin, &d.RawWorkedMin, &d.OvertimeMin, &d.NightMin, &d.HolidayMin,
		&d.Late, &d.EarlyLeave, &d.Absent, &d.Holiday, &d.Wage,
		&d.ApprovedBy, &d.ApprovedAt, &d.ComputedAt,
	); err != nil {
		return nil, err
	}
	return &d, nil
}
