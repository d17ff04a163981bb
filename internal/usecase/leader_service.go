package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"taskchain-dispatcher/internal/domain"
)

// LeaderService runs the record source and periodic jobs only while this node is leader.
type LeaderService struct {
	leaderManager domain.LeaderElectionManager
	source        domain.RecordSource
	handler       domain.RecordHandler
	scheduler     domain.Scheduler
	jobs          []domain.PeriodicJob
	nodeID        string
	onChange      func(leader bool)
	retryDelay    time.Duration
	logger        *slog.Logger
}

// NewLeaderService creates a LeaderService. onChange, if non-nil, is called on every leadership change.
func NewLeaderService(leaderManager domain.LeaderElectionManager, source domain.RecordSource, handler domain.RecordHandler, scheduler domain.Scheduler, jobs []domain.PeriodicJob, nodeID string, onChange func(bool), logger *slog.Logger) *LeaderService {
	if onChange == nil {
		onChange = func(bool) {}
	}
	return &LeaderService{
		leaderManager: leaderManager,
		source:        source,
		handler:       handler,
		scheduler:     scheduler,
		jobs:          jobs,
		nodeID:        nodeID,
		onChange:      onChange,
		retryDelay:    5 * time.Second,
		logger:        logger.With("component", "leader-service", "node_id", nodeID),
	}
}

// Start campaigns for leadership until ctx is canceled.
func (s *LeaderService) Start(ctx context.Context) error {
	s.logger.Info("leader service starting")

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("leader service shutting down")
			return ctx.Err()
		default:
		}

		s.logger.Info("campaigning for leadership")
		lost, err := s.leaderManager.Campaign(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error("leadership campaign failed, retrying", "error", err, "retry_in", s.retryDelay)
			select {
			case <-time.After(s.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		s.logger.Info("became leader, starting record source and periodic jobs")
		s.onChange(true)
		s.lead(ctx, lost)
		s.onChange(false)

		resignCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.leaderManager.Resign(resignCtx); err != nil {
			s.logger.Warn("failed to resign leadership", "error", err)
		}
		cancel()
	}
}

// lead runs the leader workload until leadership is lost or ctx ends.
func (s *LeaderService) lead(ctx context.Context, lost <-chan struct{}) {
	leaderCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.source.Run(leaderCtx, s.handler); err != nil && leaderCtx.Err() == nil {
			s.logger.Error("record source stopped", "error", err)
			cancel()
		}
	}()

	if s.scheduler != nil {
		for _, job := range s.jobs {
			if err := s.scheduler.AddJob(job); err != nil {
				s.logger.Error("failed to add periodic job", "job", job.Name, "error", err)
			}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.scheduler.Start(leaderCtx)
			for _, job := range s.jobs {
				_ = s.scheduler.RemoveJob(job.Name)
			}
		}()
	}

	select {
	case <-lost:
		s.logger.Warn("leadership lost")
	case <-leaderCtx.Done():
	}
	cancel()
	wg.Wait()
}
