package usecase

import (
	"context"
	"log/slog"

	"taskchain-dispatcher/internal/domain"
	"taskchain-dispatcher/internal/metrics"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ReminderCounts tallies stored reminders by dispatch state.
type ReminderCounts struct {
	Pending int `json:"pending"` // Not sent and no recorded error, including reminders skipped for a missing target
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
}

// CountReminders classifies reminders by their dispatch state.
func CountReminders(docs []*domain.ReminderDocument) ReminderCounts {
	var c ReminderCounts
	for _, d := range docs {
		switch {
		case d.Sent:
			c.Sent++
		case d.Error != "":
			c.Failed++
		default:
			c.Pending++
		}
	}
	return c
}

// AuditService reports reminder states as gauges. It never dispatches.
type AuditService struct {
	records domain.RecordRepository
	logger  *slog.Logger
	tracer  trace.Tracer
}

// NewAuditService creates a new AuditService instance.
func NewAuditService(records domain.RecordRepository, logger *slog.Logger) *AuditService {
	return &AuditService{
		records: records,
		logger:  logger.With("component", "audit"),
		tracer:  otel.Tracer("taskchain-audit"),
	}
}

// Job returns the audit as a periodic job.
func (s *AuditService) Job(schedule string) domain.PeriodicJob {
	return domain.PeriodicJob{Name: "reminder-audit", Schedule: schedule, Run: func(ctx context.Context) { s.Run(ctx) }}
}

// Run scans reminders once and updates the gauges.
func (s *AuditService) Run(ctx context.Context) (ReminderCounts, error) {
	ctx, span := s.tracer.Start(ctx, "service.AuditReminders")
	defer span.End()

	docs, err := s.records.ListReminders(ctx)
	if err != nil {
		s.logger.Error("failed to list reminders for audit", "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list reminders")
		return ReminderCounts{}, err
	}

	counts := CountReminders(docs)
	metrics.Reminders.WithLabelValues("pending").Set(float64(counts.Pending))
	metrics.Reminders.WithLabelValues("sent").Set(float64(counts.Sent))
	metrics.Reminders.WithLabelValues("failed").Set(float64(counts.Failed))
	s.logger.Info("reminder audit complete", "pending", counts.Pending, "sent", counts.Sent, "failed", counts.Failed)
	return counts, nil
}
