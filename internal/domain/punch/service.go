package punch

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

// SummaryRefresher recomputes the daily (and dependent monthly) summaries for
// one employee-day after the punch log changes underneath them.
type SummaryRefresher interface {
	Refresh(ctx context.Context, employeeID string, day time.Time) error
}

// Service owns the audited correction flow. Records stay immutable except
// through Correct, which preserves the original timestamp and triggers an
// idempotent summary recompute for every affected day.
type Service struct {
	store            Store
	loc              *time.Location
	maxOutsideCycles int
	refresher        SummaryRefresher
}

func NewService(store Store, loc *time.Location, maxOutsideCycles int, refresher SummaryRefresher) *Service {
	return &Service{
		store:            store,
		loc:              loc,
		maxOutsideCycles: maxOutsideCycles,
		refresher:        refresher,
	}
}

type CorrectionRequest struct {
	RecordID    string
	NewTime     time.Time
	Reason      string
	CorrectorID string
}

func (s *Service) Correct(ctx context.Context, req CorrectionRequest) (*Record, error) {
	if req.Reason == "" {
		return nil, errors.New("correction reason is required")
	}
	if req.CorrectorID == "" {
		return nil, errors.New("corrector identity is required")
	}

	rec, err := s.store.Get(ctx, req.RecordID)
	if err != nil {
		return nil, err
	}

	if err := s.checkCorrectedDay(ctx, *rec, req.NewTime); err != nil {
		return nil, err
	}

	oldTime := rec.Time
	if err := s.store.Correct(ctx, req.RecordID, req.NewTime, req.CorrectorID, req.Reason); err != nil {
		return nil, err
	}

	if s.refresher != nil {
		oldStart, _ := DayWindow(oldTime, s.loc)
		newStart, _ := DayWindow(req.NewTime, s.loc)
		if err := s.refresher.Refresh(ctx, rec.EmployeeID, newStart); err != nil {
			return nil, fmt.Errorf("refresh summaries: %w", err)
		}
		if !oldStart.Equal(newStart) {
			if err := s.refresher.Refresh(ctx, rec.EmployeeID, oldStart); err != nil {
				return nil, fmt.Errorf("refresh summaries: %w", err)
			}
		}
	}

	return s.store.Get(ctx, req.RecordID)
}

// checkCorrectedDay simulates the day as it would look after the correction
// and rejects moves that make the sequence unproducible by the machine.
func (s *Service) checkCorrectedDay(ctx context.Context, rec Record, newTime time.Time) error {
	start, end := DayWindow(newTime, s.loc)
	day, err := s.store.Records(ctx, rec.EmployeeID, start, end)
	if err != nil {
		return err
	}

	prospective := make([]Record, 0, len(day)+1)
	for _, existing := range day {
		if existing.ID == rec.ID {
			continue
		}
		prospective = append(prospective, existing)
	}
	moved := rec
	moved.Time = newTime
	prospective = append(prospective, moved)
	sort.SliceStable(prospective, func(i, j int) bool {
		return prospective[i].Time.Before(prospective[j].Time)
	})

	if err := Replayable(prospective, s.maxOutsideCycles); err != nil {
		return fmt.Errorf("correction breaks day sequence: %w", err)
	}

	// A cross-day move also has to leave the source day in a legal shape.
	oldStart, oldEnd := DayWindow(rec.Time, s.loc)
	if oldStart.Equal(start) {
		return nil
	}
	oldDay, err := s.store.Records(ctx, rec.EmployeeID, oldStart, oldEnd)
	if err != nil {
		return err
	}
	remainder := make([]Record, 0, len(oldDay))
	for _, existing := range oldDay {
		if existing.ID == rec.ID {
			continue
		}
		remainder = append(remainder, existing)
	}
	if err := Replayable(remainder, s.maxOutsideCycles); err != nil {
		return fmt.Errorf("correction breaks day sequence: %w", err)
	}
	return nil
}
