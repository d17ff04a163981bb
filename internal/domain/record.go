// internal/domain/record.go
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRecordNotFound is returned when a source record does not exist in the store.
var ErrRecordNotFound = errors.New("record not found")

// RecordKind classifies a source record.
type RecordKind string

const (
	RecordKindReminder      RecordKind = "reminder"
	RecordKindChatMessage   RecordKind = "chat-message"
	RecordKindSystemMessage RecordKind = "system-message"
)

// Collection names the store collection a record event originates from.
type Collection string

const (
	CollectionReminders Collection = "groupReminders"
	CollectionMessages  Collection = "messages"
)

// MessageTypeGroupReminder is the message document type written for system reminder restatements.
const MessageTypeGroupReminder = "group_reminder"

// SourceRecord is a newly created reminder or message, as seen by the dispatch engine.
type SourceRecord struct {
	ID                string     `json:"id"`
	Kind              RecordKind `json:"kind"`
	OwnerID           string     `json:"owner_id,omitempty"` // Reminders only: the user the reminder belongs to
	GroupID           string     `json:"group_id"`
	GroupTitle        string     `json:"group_title"`
	Text              string     `json:"text"`
	SenderID          string     `json:"sender_id,omitempty"`
	SenderName        string     `json:"sender_name,omitempty"`
	AlreadyDispatched bool       `json:"already_dispatched"`
	DispatchError     string     `json:"dispatch_error,omitempty"`
}

// Ref returns the reference used to address the record in the store.
func (r *SourceRecord) Ref() RecordRef {
	return RecordRef{Kind: r.Kind, OwnerID: r.OwnerID, GroupID: r.GroupID, RecordID: r.ID}
}

// RecordRef locates a record in the store.
type RecordRef struct {
	Kind     RecordKind
	OwnerID  string
	GroupID  string
	RecordID string
}

// ReminderDocument is the stored shape of users/{userId}/groupReminders/{reminderId}.
type ReminderDocument struct {
	GroupID    string     `json:"groupId"`
	GroupTitle string     `json:"groupTitle"`
	Message    string     `json:"message"`
	Sent       bool       `json:"sent"`
	SentAt     *time.Time `json:"sentAt,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// MessageDocument is the stored shape of groups/{groupId}/messages/{messageId}.
type MessageDocument struct {
	GroupTitle      string    `json:"groupTitle"`
	Text            string    `json:"text"`
	SenderID        string    `json:"senderId"`
	SenderName      string    `json:"senderName"`
	IsSystemMessage bool      `json:"isSystemMessage"`
	Type            string    `json:"type"`
	CreatedAt       time.Time `json:"createdAt"`
}

// PathParams carries the identifiers encoded in a record's store path.
type PathParams struct {
	UserID   string `json:"userId,omitempty"`
	GroupID  string `json:"groupId,omitempty"`
	RecordID string `json:"recordId"`
}

// RecordEvent is a created-record notification delivered by a record source.
type RecordEvent struct {
	Collection Collection      `json:"collection"`
	PathParams PathParams      `json:"pathParams"`
	Data       json.RawMessage `json:"data"`
	Revision   int64           `json:"revision,omitempty"`
}

// Record decodes the event payload into a SourceRecord.
func (e *RecordEvent) Record() (*SourceRecord, error) {
	if e.PathParams.RecordID == "" {
		return nil, fmt.Errorf("record event has no record id")
	}
	switch e.Collection {
	case CollectionReminders:
		if e.PathParams.UserID == "" {
			return nil, fmt.Errorf("reminder event %s has no user id", e.PathParams.RecordID)
		}
		var doc ReminderDocument
		if err := json.Unmarshal(e.Data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode reminder %s: %w", e.PathParams.RecordID, err)
		}
		return doc.ToRecord(e.PathParams.UserID, e.PathParams.RecordID), nil
	case CollectionMessages:
		if e.PathParams.GroupID == "" {
			return nil, fmt.Errorf("message event %s has no group id", e.PathParams.RecordID)
		}
		var doc MessageDocument
		if err := json.Unmarshal(e.Data, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode message %s: %w", e.PathParams.RecordID, err)
		}
		return doc.ToRecord(e.PathParams.GroupID, e.PathParams.RecordID), nil
	default:
		return nil, fmt.Errorf("unknown collection: %q", e.Collection)
	}
}

// ToRecord converts a stored reminder into a SourceRecord owned by userID.
func (d *ReminderDocument) ToRecord(userID, reminderID string) *SourceRecord {
	return &SourceRecord{
		ID:                reminderID,
		Kind:              RecordKindReminder,
		OwnerID:           userID,
		GroupID:           d.GroupID,
		GroupTitle:        d.GroupTitle,
		Text:              d.Message,
		AlreadyDispatched: d.Sent,
		DispatchError:     d.Error,
	}
}

// ToRecord converts a stored message into a SourceRecord of group groupID.
// Only a system message typed group_reminder is a system-message; everything else is chat.
func (d *MessageDocument) ToRecord(groupID, messageID string) *SourceRecord {
	kind := RecordKindChatMessage
	if d.IsSystemMessage && d.Type == MessageTypeGroupReminder {
		kind = RecordKindSystemMessage
	}
	return &SourceRecord{
		ID:         messageID,
		Kind:       kind,
		GroupID:    groupID,
		GroupTitle: d.GroupTitle,
		Text:       d.Text,
		SenderID:   d.SenderID,
		SenderName: d.SenderName,
	}
}

