package capture

import (
	"context"
	"sync"
	"time"
)

type MemStore struct {
	mu      sync.Mutex
	entries []Entry
	nextSeq int64
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) Insert(ctx context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	e.Seq = s.nextSeq
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *MemStore) Pending(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Status == StatusPending {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemStore) CountPending(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, e := range s.entries {
		if e.Status == StatusPending {
			count++
		}
	}
	return count, nil
}

func (s *MemStore) OldestPending(ctx context.Context) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].Status == StatusPending {
			e := s.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (s *MemStore) LastPendingForCard(ctx context.Context, cardHash string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].Status == StatusPending && s.entries[i].CardHash == cardHash {
			e := s.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (s *MemStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return nil
		}
	}
	return ErrEntryNotFound
}

func (s *MemStore) MarkConflicted(ctx context.Context, id, detail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i].Status = StatusConflicted
			s.entries[i].Detail = detail
			return nil
		}
	}
	return ErrEntryNotFound
}

func (s *MemStore) IncrementRetry(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i].RetryCount++
			return nil
		}
	}
	return ErrEntryNotFound
}

func (s *MemStore) ExpiredPending(ctx context.Context, cutoff time.Time) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Status == StatusPending && e.CapturedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemStore) Conflicted(ctx context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Entry
	for _, e := range s.entries {
		if e.Status == StatusConflicted {
			out = append(out, e)
		}
	}
	return out, nil
}
