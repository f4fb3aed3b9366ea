package punch

import (
	"context"
	"errors"
	"testing"
	"time"
)

type recordingRefresher struct {
	days []time.Time
}

func (r *recordingRefresher) Refresh(ctx context.Context, employeeID string, day time.Time) error {
	r.days = append(r.days, day)
	return nil
}

func newCorrectionFixture(t *testing.T) (*Service, *MemStore, *recordingRefresher) {
	t.Helper()
	store := NewMemStore()
	refresher := &recordingRefresher{}
	svc := NewService(store, time.UTC, DefaultMaxOutsideCycles, refresher)

	records := []Record{
		{ID: "r1", EmployeeID: "e1", Type: TypeIn, Time: time.Date(2026, 8, 3, 9, 2, 0, 0, time.UTC)},
		{ID: "r2", EmployeeID: "e1", Type: TypeOut, Time: time.Date(2026, 8, 3, 18, 7, 0, 0, time.UTC)},
	}
	for _, rec := range records {
		if err := store.Insert(context.Background(), rec); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return svc, store, refresher
}

func TestCorrectPreservesOriginalAndRefreshes(t *testing.T) {
	svc, _, refresher := newCorrectionFixture(t)

	newTime := time.Date(2026, 8, 3, 18, 0, 0, 0, time.UTC)
	updated, err := svc.Correct(context.Background(), CorrectionRequest{
		RecordID:    "r2",
		NewTime:     newTime,
		Reason:      "forgot to tap on the way out",
		CorrectorID: "hr-7",
	})
	if err != nil {
		t.Fatalf("correct: %v", err)
	}

	if !updated.Time.Equal(newTime) {
		t.Fatalf("expected corrected time %s, got %s", newTime, updated.Time)
	}
	if updated.OriginalTime == nil || !updated.OriginalTime.Equal(time.Date(2026, 8, 3, 18, 7, 0, 0, time.UTC)) {
		t.Fatalf("expected original time preserved, got %v", updated.OriginalTime)
	}
	if updated.CorrectedBy != "hr-7" {
		t.Fatalf("expected corrector recorded, got %q", updated.CorrectedBy)
	}
	if len(refresher.days) != 1 {
		t.Fatalf("expected one summary refresh, got %d", len(refresher.days))
	}
}

func TestCorrectRejectsIllegalSequence(t *testing.T) {
	svc, store, _ := newCorrectionFixture(t)

	// Moving OUT before IN leaves a day the machine cannot produce.
	_, err := svc.Correct(context.Background(), CorrectionRequest{
		RecordID:    "r2",
		NewTime:     time.Date(2026, 8, 3, 8, 0, 0, 0, time.UTC),
		Reason:      "typo",
		CorrectorID: "hr-7",
	})
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}

	// Record must be untouched.
	rec, err := store.Get(context.Background(), "r2")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.OriginalTime != nil {
		t.Fatal("rejected correction must not modify the record")
	}
}

func TestCorrectRequiresAuditFields(t *testing.T) {
	svc, _, _ := newCorrectionFixture(t)

	if _, err := svc.Correct(context.Background(), CorrectionRequest{
		RecordID: "r2", NewTime: time.Now(), CorrectorID: "hr-7",
	}); err == nil {
		t.Fatal("expected error for missing reason")
	}
	if _, err := svc.Correct(context.Background(), CorrectionRequest{
		RecordID: "r2", NewTime: time.Now(), Reason: "why",
	}); err == nil {
		t.Fatal("expected error for missing corrector")
	}
}

func TestCorrectUnknownRecord(t *testing.T) {
	svc, _, _ := newCorrectionFixture(t)
	_, err := svc.Correct(context.Background(), CorrectionRequest{
		RecordID: "missing", NewTime: time.Now(), Reason: "x", CorrectorID: "hr-7",
	})
	if !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}
