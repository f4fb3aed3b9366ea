package employee

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore is the in-memory employee registry used by tests and by
// store-less runs.
type MemStore struct {
	mu        sync.Mutex
	employees map[string]Employee
	nextID    int

	Fail error
}

func NewMemStore() *MemStore {
	return &MemStore{employees: map[string]Employee{}}
}

func (s *MemStore) GetActiveByCardHash(ctx context.Context, cardHash string) (*Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	for _, emp := range s.employees {
		if emp.CardHash == cardHash && emp.Active {
			found := emp
			return &found, nil
		}
	}
	return nil, nil
}

func (s *MemStore) Get(ctx context.Context, id string) (*Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	emp, ok := s.employees[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &emp, nil
}

func (s *MemStore) ListActive(ctx context.Context) ([]Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return nil, s.Fail
	}
	var out []Employee
	for _, emp := range s.employees {
		if emp.Active {
			out = append(out, emp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemStore) Create(ctx context.Context, emp Employee) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return "", s.Fail
	}
	for _, existing := range s.employees {
		if existing.CardHash == emp.CardHash && existing.Active {
			return "", ErrCardInUse
		}
	}
	s.nextID++
	emp.ID = fmt.Sprintf("emp-%d", s.nextID)
	emp.Active = true
	emp.CreatedAt = time.Now()
	emp.UpdatedAt = emp.CreatedAt
	s.employees[emp.ID] = emp
	return emp.ID, nil
}

func (s *MemStore) Update(ctx context.Context, emp Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	existing, ok := s.employees[emp.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Name = emp.Name
	existing.OrgUnit = emp.OrgUnit
	existing.WageKind = emp.WageKind
	existing.HourlyRate = emp.HourlyRate
	existing.MonthlySalary = emp.MonthlySalary
	existing.UpdatedAt = time.Now()
	s.employees[emp.ID] = existing
	return nil
}

func (s *MemStore) Deactivate(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Fail != nil {
		return s.Fail
	}
	emp, ok := s.employees[id]
	if !ok {
		return ErrNotFound
	}
	emp.Active = false
	emp.UpdatedAt = time.Now()
	s.employees[id] = emp
	return nil
}
