package punch

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemStore keeps the punch log in memory. It backs tests and lets the engine
// run without Postgres; it can also stand in as an "unreachable" store by
// setting Fail.
type MemStore struct {
	mu      sync.Mutex
	records []Record

	// Fail, when set, makes every call return its value. Tests use it to
	// simulate a lost record store.
	Fail error
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Insert(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.records = append(s.records, rec)
	sort.SliceStable(s.records, func(i, j int) bool {
		return s.records[i].Time.Before(s.records[j].Time)
	})
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	for i := range s.records {
		if s.records[i].ID == id {
			rec := s.records[i]
			return &rec, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (s *MemStore) Records(ctx context.Context, employeeID string, from, to time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	var out []Record
	for _, rec := range s.records {
		if rec.EmployeeID != employeeID {
			continue
		}
		if rec.Time.Before(from) || !rec.Time.Before(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemStore) LastBefore(ctx context.Context, employeeID string, t time.Time) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	var last *Record
	for i := range s.records {
		rec := s.records[i]
		if rec.EmployeeID != employeeID || !rec.Time.Before(t) {
			continue
		}
		if last == nil || rec.Time.After(last.Time) {
			last = &s.records[i]
		}
	}
	if last == nil {
		return nil, nil
	}
	rec := *last
	return &rec, nil
}

func (s *MemStore) ExistsKey(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return false, s.Fail
	}
	for _, rec := range s.records {
		if rec.IdempotencyKey == idempotencyKey {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemStore) Correct(ctx context.Context, id string, newTime time.Time, correctedBy, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	for i := range s.records {
		if s.records[i].ID != id {
			continue
		}
		if s.records[i].OriginalTime == nil {
			original := s.records[i].Time
			s.records[i].OriginalTime = &original
		}
		s.records[i].Time = newTime
		s.records[i].CorrectedBy = correctedBy
		s.records[i].CorrectionReason = reason
		sort.SliceStable(s.records, func(i, j int) bool {
			return s.records[i].Time.Before(s.records[j].Time)
		})
		return nil
	}
	return ErrRecordNotFound
}

// All returns a copy of every record, ordered by punch time. Test helper.
func (s *MemStore) All() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}
