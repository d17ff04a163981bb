// internal/domain/locker.go
package domain

import (
	"context"
	"errors"
	"path"
)

// ErrLockNotAcquired is returned when a lock is already held by another handler.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Lock represents an acquired distributed lock.
type Lock interface {
	// Unlock releases the lock.
	Unlock(ctx context.Context) error
}

// Locker serializes handling of a single record across handlers and replicas.
type Locker interface {
	// Lock attempts to acquire a lock for the given name without waiting.
	// If the lock is already held, it must return ErrLockNotAcquired.
	Lock(ctx context.Context, name string) (Lock, error)
}

// RecordLockName returns the lock name guarding a record.
func RecordLockName(ref RecordRef) string {
	if ref.Kind == RecordKindReminder {
		return path.Join("reminders", ref.OwnerID, ref.RecordID)
	}
	return path.Join("messages", ref.GroupID, ref.RecordID)
}
