package usecase

import (
	"context"
	"log/slog"
	"time"

	"taskchain-dispatcher/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordService implements the admin operations on source records.
type RecordService struct {
	records    domain.RecordRepository
	profiles   domain.ProfileRepository
	dispatches domain.DispatchLog
	dispatcher *DispatchService
	logger     *slog.Logger
	tracer     trace.Tracer
}

// NewRecordService creates a new RecordService instance.
func NewRecordService(records domain.RecordRepository, profiles domain.ProfileRepository, dispatches domain.DispatchLog, dispatcher *DispatchService, logger *slog.Logger) *RecordService {
	return &RecordService{
		records:    records,
		profiles:   profiles,
		dispatches: dispatches,
		dispatcher: dispatcher,
		logger:     logger.With("component", "record-service"),
		tracer:     otel.Tracer("taskchain-record-service"),
	}
}

// CreateReminder stores a new, undispatched reminder for userID and returns its id.
func (s *RecordService) CreateReminder(ctx context.Context, userID string, doc *domain.ReminderDocument) (string, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateReminder")
	defer span.End()

	id := uuid.NewString()
	doc.Sent = false
	doc.SentAt = nil
	doc.Error = ""
	doc.CreatedAt = time.Now().UTC()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("record.id", id))

	if err := s.records.SaveReminder(ctx, userID, id, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save reminder")
		return "", err
	}
	return id, nil
}

// CreateMessage stores a new chat or system message in groupID and returns its id.
func (s *RecordService) CreateMessage(ctx context.Context, groupID string, doc *domain.MessageDocument) (string, error) {
	ctx, span := s.tracer.Start(ctx, "service.CreateMessage")
	defer span.End()

	id := uuid.NewString()
	doc.CreatedAt = time.Now().UTC()
	span.SetAttributes(attribute.String("group.id", groupID), attribute.String("record.id", id))

	if err := s.records.SaveMessage(ctx, groupID, id, doc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save message")
		return "", err
	}
	return id, nil
}

// SaveProfile stores the profile and device token of userID.
func (s *RecordService) SaveProfile(ctx context.Context, userID string, profile *domain.UserProfile) error {
	ctx, span := s.tracer.Start(ctx, "service.SaveProfile")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := s.profiles.SaveProfile(ctx, userID, profile); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save profile")
		return err
	}
	return nil
}

// GetReminder returns the stored reminder, including its dispatch error if any.
func (s *RecordService) GetReminder(ctx context.Context, userID, reminderID string) (*domain.ReminderDocument, error) {
	ctx, span := s.tracer.Start(ctx, "service.GetReminder")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("record.id", reminderID))

	doc, err := s.records.GetReminder(ctx, userID, reminderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get reminder")
	}
	return doc, err
}

// RetryReminder re-runs dispatch for a stored reminder. The idempotency guard still applies,
// so a reminder that was already sent is left untouched.
func (s *RecordService) RetryReminder(ctx context.Context, userID, reminderID string) (domain.DispatchOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "service.RetryReminder")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID), attribute.String("record.id", reminderID))

	doc, err := s.records.GetReminder(ctx, userID, reminderID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get reminder")
		return domain.DispatchOutcome{}, err
	}

	s.logger.Info("manual reminder retry requested", "user_id", userID, "record_id", reminderID, "previous_error", doc.Error)
	return s.dispatcher.HandleRecord(ctx, doc.ToRecord(userID, reminderID)), nil
}

// ListDispatches lists the dispatch log of a group, newest first.
func (s *RecordService) ListDispatches(ctx context.Context, groupID string, page, pageSize int) ([]*domain.DispatchLogEntry, error) {
	ctx, span := s.tracer.Start(ctx, "service.ListDispatches")
	defer span.End()
	span.SetAttributes(
		attribute.String("group.id", groupID),
		attribute.Int("page", page),
		attribute.Int("page_size", pageSize),
	)

	entries, err := s.dispatches.ListByGroup(ctx, groupID, page, pageSize)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to list dispatch log")
	}
	return entries, err
}
