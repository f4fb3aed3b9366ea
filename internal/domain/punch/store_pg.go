package punch

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

func (s *PGStore) Insert(ctx context.Context, rec Record) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO punch_records (id, employee_id, punch_type, punch_time, device_id, offline, idempotency_key)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, rec.ID, rec.EmployeeID, string(rec.Type), rec.Time, rec.DeviceID, rec.Offline, rec.IdempotencyKey)
	return err
}

func (s *PGStore) Get(ctx context.Context, id string) (*Record, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT id, employee_id, punch_type, punch_time, device_id, offline, idempotency_key,
           original_time,
           COALESCE(corrected_by, ''),
           COALESCE(correction_reason, ''),
           created_at
    FROM punch_records
    WHERE id = $1
  `, id)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PGStore) Records(ctx context.Context, employeeID string, from, to time.Time) ([]Record, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id, employee_id, punch_type, punch_time, device_id, offline, idempotency_key,
           original_time,
           COALESCE(corrected_by, ''),
           COALESCE(correction_reason, ''),
           created_at
    FROM punch_records
    WHERE employee_id = $1 AND punch_time >= $2 AND punch_time < $3
    ORDER BY punch_time
  `, employeeID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *PGStore) LastBefore(ctx context.Context, employeeID string, t time.Time) (*Record, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT id, employee_id, punch_type, punch_time, device_id, offline, idempotency_key,
           original_time,
           COALESCE(corrected_by, ''),
           COALESCE(correction_reason, ''),
           created_at
    FROM punch_records
    WHERE employee_id = $1 AND punch_time < $2
    ORDER BY punch_time DESC
    LIMIT 1
  `, employeeID, t)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *PGStore) ExistsKey(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1) FROM punch_records WHERE idempotency_key = $1
  `, idempotencyKey).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *PGStore) Correct(ctx context.Context, id string, newTime time.Time, correctedBy, reason string) error {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE punch_records
    SET original_time = COALESCE(original_time, punch_time),
        punch_time = $1,
        corrected_by = $2,
        correction_reason = $3
    WHERE id = $4
  `, newTime, correctedBy, reason, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var rec Record
	var punchType string
	if err := row.Scan(
		&rec.ID, &rec.EmployeeID, &punchType, &rec.Time, &rec.DeviceID, &rec.Offline,
		&rec.IdempotencyKey, &rec.OriginalTime, &rec.CorrectedBy, &rec.CorrectionReason,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Type = Type(punchType)
	return &rec, nil
}
