package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"kintai/internal/domain/capture"
	"kintai/internal/domain/reconcile"
	"kintai/internal/domain/summary"
	"kintai/internal/platform/config"
)

const (
	JobReconcile     = "queue_reconcile"
	JobDailyCloseout = "daily_closeout"
	JobMonthlyRollup = "monthly_rollup"
	JobQueueSweep    = "queue_sweep"
)

// Service runs the background work: queue reconciliation, the daily
// close-out, the monthly rollup and the queue retention sweep. Jobs funnel
// through one worker so a slow run never overlaps itself. With a nil DB the
// jobs still run, they just leave no job_runs trail.
type Service struct {
	DB      *pgxpool.Pool
	Cfg     config.Config
	Engine  *reconcile.Engine
	Builder *summary.Builder
	Queue   *capture.Queue

	loc   *time.Location
	queue chan job
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(db *pgxpool.Pool, cfg config.Config, engine *reconcile.Engine, builder *summary.Builder, queue *capture.Queue, loc *time.Location) *Service {
	return &Service{
		DB:      db,
		Cfg:     cfg,
		Engine:  engine,
		Builder: builder,
		Queue:   queue,
		loc:     loc,
		queue:   make(chan job, 128),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Cfg.ReconcileInterval > 0 {
		go s.schedule(ctx, s.Cfg.ReconcileInterval, JobReconcile, s.runReconcile)
	}
	if s.Cfg.CloseoutInterval > 0 {
		go s.schedule(ctx, s.Cfg.CloseoutInterval, JobDailyCloseout, s.runCloseout)
	}
	if s.Cfg.RollupInterval > 0 {
		go s.schedule(ctx, s.Cfg.RollupInterval, JobMonthlyRollup, s.runRollup)
	}
	if s.Cfg.SweepInterval > 0 {
		go s.schedule(ctx, s.Cfg.SweepInterval, JobQueueSweep, s.runSweep)
	}
}

// TriggerReconcile queues an immediate reconciliation run; the intake
// breaker fires it on store recovery.
func (s *Service) TriggerReconcile() {
	s.Enqueue(JobReconcile, s.runReconcile)
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) schedule(ctx context.Context, interval time.Duration, jobType string, run func(context.Context) (any, error)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(jobType, run)
		}
	}
}

func (s *Service) runReconcile(ctx context.Context) (any, error) {
	stats, err := s.Engine.Run(ctx)
	return map[string]any{
		"replayed":   stats.Replayed,
		"conflicted": stats.Conflicted,
		"deferred":   stats.Deferred,
	}, err
}

// runCloseout closes yesterday's books. Recomputing an already closed day is
// harmless, so the hourly cadence doubles as self-healing after downtime.
func (s *Service) runCloseout(ctx context.Context) (any, error) {
	yesterday := time.Now().In(s.loc).AddDate(0, 0, -1)
	closed, err := s.Builder.CloseDay(ctx, yesterday)
	return map[string]any{
		"date":   yesterday.Format("2006-01-02"),
		"closed": closed,
	}, err
}

func (s *Service) runRollup(ctx context.Context) (any, error) {
	now := time.Now().In(s.loc)
	rolled, err := s.Builder.RollupMonth(ctx, now.Year(), now.Month())
	if err != nil {
		return nil, err
	}
	// Corrections commonly land just after month end; keep last month warm
	// through the first week.
	if now.Day() <= 7 {
		prev := now.AddDate(0, -1, 0)
		prevRolled, err := s.Builder.RollupMonth(ctx, prev.Year(), prev.Month())
		if err != nil {
			return nil, err
		}
		rolled += prevRolled
	}
	return map[string]any{"rolled": rolled}, nil
}

func (s *Service) runSweep(ctx context.Context) (any, error) {
	expired, err := s.Queue.Sweep(ctx, time.Now())
	return map[string]any{"expired": expired}, err
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	runID := ""
	if s.DB != nil {
		if err := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); err != nil {
			slog.Warn("job run insert failed", "err", err)
		}
	}

	details, err := j.Run(ctx)
	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if runID != "" {
		if _, updErr := s.DB.Exec(ctx, `
      UPDATE job_runs
      SET status = $1, details_json = $2, completed_at = now()
      WHERE id = $3
    `, status, detailsJSON, runID); updErr != nil {
			slog.Warn("job run update failed", "err", updErr)
		}
	}
	return details, err
}
