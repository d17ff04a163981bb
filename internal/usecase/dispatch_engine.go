package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"taskchain-dispatcher/internal/domain"
)

const (
	defaultReminderTitle = "TaskChain Reminder"
	defaultReminderBody  = "Time to check in!"
	defaultMessageTitle  = "TaskChain"
	defaultMessageBody   = "New message"

	// reminderMarker decorates system reminder restatements in chat.
	reminderMarker = "🔔"
)

// Decision is the engine's verdict on one record. Target and Payload are set only when
// Outcome is pending.
type Decision struct {
	Outcome domain.DispatchOutcome
	Target  domain.RecipientTarget
	Payload domain.NotificationPayload
}

// Ready reports whether the decision should be handed to the transport.
func (d Decision) Ready() bool { return d.Outcome.Status == domain.OutcomeStatusPending }

// DispatchEngine classifies a record, resolves its target and builds its payload.
// It performs no sends and no writes.
type DispatchEngine struct {
	recipients domain.RecipientLookup
	hints      domain.DeliveryHints
}

// NewDispatchEngine creates an engine that resolves addressed targets with recipients
// and stamps every payload with hints.
func NewDispatchEngine(recipients domain.RecipientLookup, hints domain.DeliveryHints) *DispatchEngine {
	return &DispatchEngine{recipients: recipients, hints: hints}
}

// Decide returns the dispatch decision for rec.
func (e *DispatchEngine) Decide(ctx context.Context, rec *domain.SourceRecord) Decision {
	// The guard runs before any lookup so replayed triggers cost nothing.
	if rec.AlreadyDispatched {
		return Decision{Outcome: domain.Skipped(domain.SkipReasonAlreadyDispatched)}
	}

	var (
		target       domain.RecipientTarget
		notification domain.Notification
		data         map[string]string
	)

	switch rec.Kind {
	case domain.RecordKindReminder:
		profile, err := e.recipients.Lookup(ctx, rec.OwnerID)
		if errors.Is(err, domain.ErrProfileNotFound) {
			return Decision{Outcome: domain.Skipped(domain.SkipReasonMissingTarget)}
		}
		if err != nil {
			return Decision{Outcome: domain.Failed(fmt.Errorf("recipient lookup for user %s: %w", rec.OwnerID, err))}
		}
		if profile == nil || profile.FCMToken == "" {
			return Decision{Outcome: domain.Skipped(domain.SkipReasonMissingTarget)}
		}
		target = domain.AddressedTarget(profile.FCMToken)
		notification = reminderNotification(rec)
		data = map[string]string{
			domain.DataKeyType:       domain.NotificationTypeGroupReminder,
			domain.DataKeyReminderID: rec.ID,
		}
	case domain.RecordKindSystemMessage:
		target = domain.BroadcastTarget(rec.GroupID)
		notification = systemMessageNotification(rec)
		data = map[string]string{
			domain.DataKeyType:      domain.NotificationTypeGroupReminder,
			domain.DataKeyMessageID: rec.ID,
		}
	case domain.RecordKindChatMessage:
		target = domain.BroadcastTarget(rec.GroupID)
		notification = chatMessageNotification(rec)
		data = map[string]string{
			domain.DataKeyType:       domain.NotificationTypeMessage,
			domain.DataKeyMessageID:  rec.ID,
			domain.DataKeySenderID:   rec.SenderID,
			domain.DataKeySenderName: rec.SenderName,
		}
	default:
		return Decision{Outcome: domain.Failed(fmt.Errorf("unknown record kind: %q", rec.Kind))}
	}

	data[domain.DataKeyGroupID] = rec.GroupID
	data[domain.DataKeyGroupTitle] = rec.GroupTitle
	data[domain.DataKeyRecordID] = rec.ID

	return Decision{
		Outcome: domain.Pending(),
		Target:  target,
		Payload: domain.NotificationPayload{
			Notification:  notification,
			Data:          data,
			DeliveryHints: e.hints,
		},
	}
}

func reminderNotification(rec *domain.SourceRecord) domain.Notification {
	return domain.Notification{
		Title: firstNonEmpty(rec.GroupTitle, defaultReminderTitle),
		Body:  firstNonEmpty(rec.Text, defaultReminderBody),
	}
}

// systemMessageNotification strips the reminder marker. Without a group title, the text
// after the first marker serves as title.
func systemMessageNotification(rec *domain.SourceRecord) domain.Notification {
	var afterMarker string
	if _, after, found := strings.Cut(rec.Text, reminderMarker); found {
		afterMarker = strings.TrimSpace(after)
	}
	body := strings.TrimSpace(strings.Replace(rec.Text, reminderMarker, "", 1))
	return domain.Notification{
		Title: firstNonEmpty(rec.GroupTitle, afterMarker, defaultReminderTitle),
		Body:  firstNonEmpty(body, defaultReminderBody),
	}
}

func chatMessageNotification(rec *domain.SourceRecord) domain.Notification {
	body := firstNonEmpty(rec.Text, defaultMessageBody)
	if rec.SenderName != "" {
		body = rec.SenderName + ": " + rec.Text
	}
	return domain.Notification{
		Title: firstNonEmpty(rec.GroupTitle, defaultMessageTitle),
		Body:  body,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
