// internal/scheduler/cron_scheduler.go
package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"taskchain-dispatcher/internal/domain"

	"github.com/robfig/cron/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// cronScheduler triggers periodic maintenance jobs on their schedules.
type cronScheduler struct {
	cron   *cron.Cron
	jobs   map[string]cron.EntryID
	mu     sync.Mutex
	ctx    context.Context
	logger *slog.Logger
	tracer trace.Tracer
}

// NewCronScheduler creates a scheduler whose schedules include a seconds field.
func NewCronScheduler(logger *slog.Logger) domain.Scheduler {
	return &cronScheduler{
		cron:   cron.New(cron.WithSeconds()),
		jobs:   make(map[string]cron.EntryID),
		ctx:    context.Background(),
		logger: logger.With("component", "cron-scheduler"),
		tracer: otel.Tracer("taskchain-scheduler"),
	}
}

// Start runs the scheduler until ctx is canceled; running jobs receive ctx.
func (s *cronScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.logger.Info("cron scheduler started")
	s.cron.Start()
	<-ctx.Done()
	s.logger.Info("cron scheduler stopping...")
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.logger.Info("cron scheduler stopped")
	return ctx.Err()
}

// AddJob adds or replaces a job.
func (s *cronScheduler) AddJob(job domain.PeriodicJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[job.Name]; ok {
		s.cron.Remove(entryID)
	}

	wrapper := &cronJobWrapper{
		job:    job,
		ctx:    s.runContext,
		logger: s.logger.With("job_name", job.Name),
		tracer: s.tracer,
	}

	entryID, err := s.cron.AddJob(job.Schedule, wrapper)
	if err != nil {
		s.logger.Error("failed to add job to cron", "job_name", job.Name, "error", err)
		return err
	}

	s.jobs[job.Name] = entryID
	s.logger.Info("added job to scheduler", "job_name", job.Name, "schedule", job.Schedule)
	return nil
}

// RemoveJob removes a job from the scheduler.
func (s *cronScheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.jobs[name]; ok {
		s.cron.Remove(entryID)
		delete(s.jobs, name)
		s.logger.Info("removed job from scheduler", "job_name", name)
	}
	return nil
}

func (s *cronScheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// cronJobWrapper adapts a PeriodicJob to cron.Job.
type cronJobWrapper struct {
	job    domain.PeriodicJob
	ctx    func() context.Context
	logger *slog.Logger
	tracer trace.Tracer
}

// Run is called by the cron library.
func (w *cronJobWrapper) Run() {
	ctx, span := w.tracer.Start(w.ctx(), "scheduler.Run",
		trace.WithAttributes(attribute.String("job.name", w.job.Name)))
	defer span.End()

	w.logger.Debug("running periodic job")
	w.job.Run(ctx)
}
