package domain

import "context"

// RecordRepository defines the interface for reading and writing source records in the document store.
type RecordRepository interface {
	SaveReminder(ctx context.Context, userID, reminderID string, doc *ReminderDocument) error
	// GetReminder returns ErrRecordNotFound when the reminder does not exist.
	GetReminder(ctx context.Context, userID, reminderID string) (*ReminderDocument, error)
	// ListReminders returns every stored reminder across all users.
	ListReminders(ctx context.Context) ([]*ReminderDocument, error)
	SaveMessage(ctx context.Context, groupID, messageID string, doc *MessageDocument) error
}
