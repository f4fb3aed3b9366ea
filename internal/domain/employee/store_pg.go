package employee

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGStore struct {
	DB *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{DB: db}
}

const employeeColumns = `
    id, name, COALESCE(org_unit, ''), card_hash, wage_kind,
    hourly_rate, monthly_salary, active, created_at, updated_at`

func (s *PGStore) GetActiveByCardHash(ctx context.Context, cardHash string) (*Employee, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT`+employeeColumns+`
    FROM employees
    WHERE card_hash = $1 AND active
  `, cardHash)
	emp, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return emp, nil
}

func (s *PGStore) Get(ctx context.Context, id string) (*Employee, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT`+employeeColumns+`
    FROM employees
    WHERE id = $1
  `, id)
	emp, err := scanEmployee(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return emp, nil
}

func (s *PGStore) ListActive(ctx context.Context) ([]Employee, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT`+employeeColumns+`
    FROM employees
    WHERE active
    ORDER BY name
  `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *emp)
	}
	return out, rows.Err()
}

func (s *PGStore) Create(ctx context.Context, emp Employee) (string, error) {
	var taken int
	if err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM employees WHERE card_hash = $1 AND active
  `, emp.CardHash).Scan(&taken); err != nil {
		return "", err
	}
	if taken > 0 {
		return "", ErrCardInUse
	}

	var id string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO employees (name, org_unit, card_hash, wage_kind, hourly_rate, monthly_salary, active)
    VALUES ($1,$2,$3,$4,$5,$6,true)
    RETURNING id
  `, emp.Name, emp.OrgUnit, emp.CardHash, emp.WageKind, emp.HourlyRate, emp.MonthlySalary).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *PGStore) Update(ctx context.Context, emp Employee) error {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET name = $1,
        org_unit = $2,
        wage_kind = $3,
        hourly_rate = $4,
        monthly_salary = $5,
        updated_at = now()
    WHERE id = $6
  `, emp.Name, emp.OrgUnit, emp.WageKind, emp.HourlyRate, emp.MonthlySalary, emp.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) Deactivate(ctx context.Context, id string) error {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE employees
    SET active = false, updated_at = now()
    WHERE id = $1
  `, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEmployee(row rowScanner) (*Employee, error) {
	var emp Employee
	if err := row.Scan(
		&emp.ID, &emp.Name, &emp.OrgUnit, &emp.CardHash, &emp.WageKind,
		&emp.HourlyRate, &emp.MonthlySalary, &emp.Active, &emp.CreatedAt, &emp.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &emp, nil
}
