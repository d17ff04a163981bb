// internal/domain/dispatch_log.go
package domain

import (
	"context"
	"fmt"
	"time"
)

// DispatchLogEntry records the terminal outcome of handling one record.
type DispatchLogEntry struct {
	ID       string          `json:"id"`
	RecordID string          `json:"record_id"`
	Kind     RecordKind      `json:"kind"`
	GroupID  string          `json:"group_id"`
	Target   string          `json:"target,omitempty"` // Log-safe target description
	Outcome  DispatchOutcome `json:"outcome"`
	At       time.Time       `json:"at"`
}

// Validate checks if the log entry is valid.
func (e *DispatchLogEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("dispatch log entry ID cannot be empty")
	}
	if e.RecordID == "" {
		return fmt.Errorf("dispatch log entry record ID cannot be empty")
	}
	if e.At.IsZero() {
		return fmt.Errorf("dispatch log entry time cannot be zero")
	}
	if e.Outcome.Status == "" {
		return fmt.Errorf("dispatch log entry status cannot be empty")
	}
	return nil
}

// DispatchLog defines the interface for persisting and retrieving dispatch log entries.
type DispatchLog interface {
	// Append persists a single entry.
	Append(ctx context.Context, entry *DispatchLogEntry) error
	// ListByGroup retrieves entries for a group with pagination, newest first.
	ListByGroup(ctx context.Context, groupID string, page, pageSize int) ([]*DispatchLogEntry, error)
}
