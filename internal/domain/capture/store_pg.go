package capture

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kintai/internal/domain/punch"
)

type PGStore struct {
	DB *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{DB: db}
}

const entryColumns = `
    id, seq, card_hash, type_hint, device_id, captured_at, enqueued_at,
    retry_count, status, COALESCE(detail, '')`

func (s *PGStore) Insert(ctx context.Context, e Entry) (Entry, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO capture_queue (id, card_hash, type_hint, device_id, captured_at, enqueued_at, status)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
    RETURNING seq
  `, e.ID, e.CardHash, string(e.TypeHint), e.DeviceID, e.CapturedAt, e.EnqueuedAt, e.Status).Scan(&e.Seq)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

func (s *PGStore) Pending(ctx context.Context) ([]Entry, error) {
	return s.list(ctx, `
    SELECT`+entryColumns+`
    FROM capture_queue
    WHERE status = 'pending'
    ORDER BY seq
  `)
}

func (s *PGStore) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `SELECT COUNT(1) FROM capture_queue WHERE status = 'pending'`).Scan(&count)
	return count, err
}

func (s *PGStore) OldestPending(ctx context.Context) (*Entry, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT`+entryColumns+`
    FROM capture_queue
    WHERE status = 'pending'
    ORDER BY seq
    LIMIT 1
  `)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *PGStore) LastPendingForCard(ctx context.Context, cardHash string) (*Entry, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT`+entryColumns+`
    FROM capture_queue
    WHERE status = 'pending' AND card_hash = $1
    ORDER BY seq DESC
    LIMIT 1
  `, cardHash)
	entry, err := scanEntry(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) error {
	cmd, err := s.DB.Exec(ctx, `DELETE FROM capture_queue WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *PGStore) MarkConflicted(ctx context.Context, id, detail string) error {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE capture_queue
    SET status = 'conflicted', detail = $1
    WHERE id = $2
  `, detail, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *PGStore) IncrementRetry(ctx context.Context, id string) error {
	cmd, err := s.DB.Exec(ctx, `
    UPDATE capture_queue
    SET retry_count = retry_count + 1
    WHERE id = $1
  `, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (s *PGStore) ExpiredPending(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	return s.list(ctx, `
    SELECT`+entryColumns+`
    FROM capture_queue
    WHERE status = 'pending' AND captured_at < $1
    ORDER BY seq
  `, cutoff)
}

func (s *PGStore) Conflicted(ctx context.Context) ([]Entry, error) {
	return s.list(ctx, `
    SELECT`+entryColumns+`
    FROM capture_queue
    WHERE status = 'conflicted'
    ORDER BY seq
  `)
}

func (s *PGStore) list(ctx context.Context, query string, args ...any) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var hint string
	if err := row.Scan(
		&e.ID, &e.Seq, &e.CardHash, &hint, &e.DeviceID, &e.CapturedAt, &e.EnqueuedAt,
		&e.RetryCount, &e.Status, &e.Detail,
	); err != nil {
		return nil, err
	}
	e.TypeHint = punch.Type(hint)
	return &e, nil
}
