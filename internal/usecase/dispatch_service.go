package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"taskchain-dispatcher/internal/domain"
	"taskchain-dispatcher/internal/metrics"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DispatchService drives one created record through decision, delivery and write-back.
// Every error is converted into a logged outcome; nothing propagates to the record source.
type DispatchService struct {
	engine   *DispatchEngine
	sender   domain.Sender
	recorder domain.OutcomeRecorder
	records  domain.RecordRepository // optional: refreshes reminders before the guard
	locker   domain.Locker           // optional
	log      domain.DispatchLog      // optional
	logger   *slog.Logger
	tracer   trace.Tracer
	now      func() time.Time
}

// DispatchOption configures optional collaborators of a DispatchService.
type DispatchOption func(*DispatchService)

// WithRecordRefresh makes the service re-read reminders from records before deciding.
func WithRecordRefresh(records domain.RecordRepository) DispatchOption {
	return func(s *DispatchService) { s.records = records }
}

// WithLocker serializes handling of each reminder through locker.
func WithLocker(locker domain.Locker) DispatchOption {
	return func(s *DispatchService) { s.locker = locker }
}

// WithDispatchLog appends every terminal outcome to log.
func WithDispatchLog(log domain.DispatchLog) DispatchOption {
	return func(s *DispatchService) { s.log = log }
}

// WithClock overrides the time source used for write-backs and log entries.
func WithClock(now func() time.Time) DispatchOption {
	return func(s *DispatchService) { s.now = now }
}

// NewDispatchService creates a new DispatchService instance.
func NewDispatchService(engine *DispatchEngine, sender domain.Sender, recorder domain.OutcomeRecorder, logger *slog.Logger, opts ...DispatchOption) *DispatchService {
	s := &DispatchService{
		engine:   engine,
		sender:   sender,
		recorder: recorder,
		logger:   logger.With("component", "dispatch-service"),
		tracer:   otel.Tracer("taskchain-dispatch-service"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleEvent is a domain.RecordHandler.
func (s *DispatchService) HandleEvent(ctx context.Context, event *domain.RecordEvent) {
	s.Handle(ctx, event)
}

// Handle processes one record event and returns its terminal outcome.
func (s *DispatchService) Handle(ctx context.Context, event *domain.RecordEvent) domain.DispatchOutcome {
	ctx, span := s.tracer.Start(ctx, "service.Dispatch", trace.WithAttributes(
		attribute.String("record.collection", string(event.Collection)),
		attribute.String("record.id", event.PathParams.RecordID),
	))
	defer span.End()

	rec, err := event.Record()
	if err != nil {
		s.logger.Error("dropping malformed record event", "record_id", event.PathParams.RecordID, "collection", event.Collection, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "malformed record event")
		outcome := domain.Failed(err)
		metrics.DispatchTotal.WithLabelValues("unknown", outcome.Label()).Inc()
		return outcome
	}
	return s.dispatch(ctx, span, rec)
}

// HandleRecord processes an already decoded record.
func (s *DispatchService) HandleRecord(ctx context.Context, rec *domain.SourceRecord) domain.DispatchOutcome {
	ctx, span := s.tracer.Start(ctx, "service.Dispatch", trace.WithAttributes(
		attribute.String("record.id", rec.ID),
	))
	defer span.End()
	return s.dispatch(ctx, span, rec)
}

func (s *DispatchService) dispatch(ctx context.Context, span trace.Span, rec *domain.SourceRecord) domain.DispatchOutcome {
	logger := s.logger.With("record_id", rec.ID, "kind", rec.Kind, "group_id", rec.GroupID)
	span.SetAttributes(attribute.String("record.kind", string(rec.Kind)), attribute.String("group.id", rec.GroupID))

	addressed := rec.Kind == domain.RecordKindReminder

	if addressed && s.locker != nil {
		lock, err := s.locker.Lock(ctx, domain.RecordLockName(rec.Ref()))
		if err != nil {
			if errors.Is(err, domain.ErrLockNotAcquired) {
				logger.Info("record is being handled elsewhere, skipping")
				return s.finish(ctx, span, logger, rec, domain.RecipientTarget{}, domain.Skipped(domain.SkipReasonInFlight))
			}
			// Without the lock the guard below still protects against most duplicates.
			logger.Warn("failed to lock record, continuing unlocked", "error", err)
		} else {
			defer func() {
				unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := lock.Unlock(unlockCtx); err != nil {
					logger.Error("failed to unlock record", "error", err)
				}
			}()
		}
	}

	if addressed && s.records != nil {
		doc, err := s.records.GetReminder(ctx, rec.OwnerID, rec.ID)
		switch {
		case errors.Is(err, domain.ErrRecordNotFound):
			logger.Warn("reminder no longer exists, dropping")
			return s.finish(ctx, span, logger, rec, domain.RecipientTarget{}, domain.Failed(err))
		case err != nil:
			logger.Warn("failed to refresh reminder, using event snapshot", "error", err)
		default:
			rec = doc.ToRecord(rec.OwnerID, rec.ID)
		}
	}

	decision := s.engine.Decide(ctx, rec)
	outcome := decision.Outcome

	if decision.Ready() {
		outcome = s.send(ctx, logger, decision)
	}

	if addressed {
		s.writeBack(ctx, span, logger, rec, outcome)
	}

	return s.finish(ctx, span, logger, rec, decision.Target, outcome)
}

func (s *DispatchService) send(ctx context.Context, logger *slog.Logger, decision Decision) domain.DispatchOutcome {
	targetLabel := "topic"
	if decision.Target.IsAddressed() {
		targetLabel = "token"
	}

	start := time.Now()
	messageID, err := s.sender.Send(ctx, decision.Target, decision.Payload)
	elapsed := time.Since(start).Seconds()

	if err != nil {
		metrics.SendDuration.WithLabelValues(targetLabel, "error").Observe(elapsed)
		logger.Error("push transport failed", "target", decision.Target.String(), "error", err)
		return domain.Failed(fmt.Errorf("send to %s: %w", decision.Target, err))
	}
	metrics.SendDuration.WithLabelValues(targetLabel, "ok").Observe(elapsed)
	logger.Info("notification sent", "target", decision.Target.String(), "message_id", messageID)
	return domain.Sent(messageID)
}

// writeBack requests exactly one write-back for a terminal addressed outcome.
func (s *DispatchService) writeBack(ctx context.Context, span trace.Span, logger *slog.Logger, rec *domain.SourceRecord, outcome domain.DispatchOutcome) {
	wb, ok := domain.WriteBackFor(outcome, s.now())
	if !ok {
		return
	}
	if err := s.recorder.RecordOutcome(ctx, rec.Ref(), wb); err != nil {
		logger.Error("failed to record dispatch outcome", "status", outcome.Status, "error", err)
		span.RecordError(err)
	}
}

func (s *DispatchService) finish(ctx context.Context, span trace.Span, logger *slog.Logger, rec *domain.SourceRecord, target domain.RecipientTarget, outcome domain.DispatchOutcome) domain.DispatchOutcome {
	metrics.DispatchTotal.WithLabelValues(string(rec.Kind), outcome.Label()).Inc()
	span.SetAttributes(attribute.String("dispatch.outcome", outcome.Label()))

	switch outcome.Status {
	case domain.OutcomeStatusFailed:
		span.SetStatus(codes.Error, outcome.Error)
	case domain.OutcomeStatusSkipped:
		logger.Info("dispatch skipped", "reason", outcome.SkipReason)
		span.SetStatus(codes.Ok, "skipped")
	default:
		span.SetStatus(codes.Ok, "sent")
	}

	// Replays of dispatched records leave no trace beyond the counter.
	if s.log != nil && outcome.SkipReason != domain.SkipReasonAlreadyDispatched {
		entry := &domain.DispatchLogEntry{
			ID:       uuid.NewString(),
			RecordID: rec.ID,
			Kind:     rec.Kind,
			GroupID:  rec.GroupID,
			Outcome:  outcome,
			At:       s.now().UTC(),
		}
		if target != (domain.RecipientTarget{}) {
			entry.Target = target.String()
		}
		if err := s.log.Append(ctx, entry); err != nil {
			logger.Warn("failed to append dispatch log entry", "error", err)
		}
	}
	return outcome
}
