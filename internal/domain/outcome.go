// internal/domain/outcome.go
package domain

import (
	"context"
	"time"
)

// OutcomeStatus is the state of a dispatch decision or attempt.
type OutcomeStatus string

const (
	OutcomeStatusPending OutcomeStatus = "pending"
	OutcomeStatusSent    OutcomeStatus = "sent"
	OutcomeStatusSkipped OutcomeStatus = "skipped"
	OutcomeStatusFailed  OutcomeStatus = "failed"
)

// SkipReason explains why a record was not dispatched.
type SkipReason string

const (
	SkipReasonAlreadyDispatched SkipReason = "already-dispatched"
	SkipReasonMissingTarget     SkipReason = "missing-target"
	SkipReasonInFlight          SkipReason = "in-flight"
)

// DispatchOutcome is the tagged result of handling one record.
type DispatchOutcome struct {
	Status     OutcomeStatus `json:"status"`
	MessageID  string        `json:"message_id,omitempty"`  // Sent only: transport-assigned id
	SkipReason SkipReason    `json:"skip_reason,omitempty"` // Skipped only
	Error      string        `json:"error,omitempty"`       // Failed only
}

func Pending() DispatchOutcome { return DispatchOutcome{Status: OutcomeStatusPending} }

func Sent(messageID string) DispatchOutcome {
	return DispatchOutcome{Status: OutcomeStatusSent, MessageID: messageID}
}

func Skipped(reason SkipReason) DispatchOutcome {
	return DispatchOutcome{Status: OutcomeStatusSkipped, SkipReason: reason}
}

func Failed(err error) DispatchOutcome {
	return DispatchOutcome{Status: OutcomeStatusFailed, Error: err.Error()}
}

// Label returns a low-cardinality metric label for the outcome.
func (o DispatchOutcome) Label() string {
	if o.Status == OutcomeStatusSkipped {
		return string(o.Status) + "_" + string(o.SkipReason)
	}
	return string(o.Status)
}

// WriteBack is the partial update applied to a source record after an addressed dispatch.
type WriteBack struct {
	Sent   bool
	SentAt time.Time // Set only when Sent
	Error  string    // Set only when not Sent; cleared from the record otherwise
}

// WriteBackFor maps a terminal outcome to the write-back it requires.
// Skipped and pending outcomes require none.
func WriteBackFor(o DispatchOutcome, now time.Time) (WriteBack, bool) {
	switch o.Status {
	case OutcomeStatusSent:
		return WriteBack{Sent: true, SentAt: now}, true
	case OutcomeStatusFailed:
		return WriteBack{Sent: false, Error: o.Error}, true
	default:
		return WriteBack{}, false
	}
}

// OutcomeRecorder persists the terminal marker of an addressed dispatch onto its source record.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, ref RecordRef, wb WriteBack) error
}
