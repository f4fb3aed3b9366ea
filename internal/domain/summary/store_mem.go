package summary

import (
	"context"
	"sort"
	"sync"
	"time"
)

type MemStore struct {
	mu        sync.Mutex
	dailies   map[string]DailySummary
	monthlies map[string]MonthlySummary
}

func NewMemStore() *MemStore {
	return &MemStore{
		dailies:   map[string]DailySummary{},
		monthlies: map[string]MonthlySummary{},
	}
}

func dailyKey(employeeID string, workDate time.Time) string {
	return employeeID + "|" + workDate.Format("2006-01-02")
}

func monthlyKey(employeeID string, year int, month time.Month) string {
	return employeeID + "|" + time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")
}

func (s *MemStore) UpsertDaily(ctx context.Context, d DailySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.dailies[dailyKey(d.EmployeeID, d.WorkDate)]
	if ok {
		// Approval metadata survives recomputes.
		d.ApprovedBy = existing.ApprovedBy
		d.ApprovedAt = existing.ApprovedAt
	}
	s.dailies[dailyKey(d.EmployeeID, d.WorkDate)] = d
	return nil
}

func (s *MemStore) GetDaily(ctx context.Context, employeeID string, workDate time.Time) (*DailySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dailies[dailyKey(employeeID, workDate)]
	if !ok {
		return nil, ErrSummaryNotFound
	}
	return &d, nil
}

func (s *MemStore) ListDailies(ctx context.Context, employeeID string, from, to time.Time) ([]DailySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []DailySummary
	for _, d := range s.dailies {
		if d.EmployeeID == employeeID && !d.WorkDate.Before(from) && d.WorkDate.Before(to) {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WorkDate.Before(out[j].WorkDate) })
	return out, nil
}

func (s *MemStore) UpsertMonthly(ctx context.Context, m MonthlySummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monthlies[monthlyKey(m.EmployeeID, m.Year, m.Month)] = m
	return nil
}

func (s *MemStore) GetMonthly(ctx context.Context, employeeID string, year int, month time.Month) (*MonthlySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.monthlies[monthlyKey(employeeID, year, month)]
	if !ok {
		return nil, ErrSummaryNotFound
	}
	return &m, nil
}

func (s *MemStore) ApproveDaily(ctx context.Context, employeeID string, workDate time.Time, approvedBy string, approvedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dailies[dailyKey(employeeID, workDate)]
	if !ok {
		return ErrSummaryNotFound
	}
	d.ApprovedBy = approvedBy
	d.ApprovedAt = &approvedAt
	s.dailies[dailyKey(employeeID, workDate)] = d
	return nil
}
