package domain

import "context"

// RecordHandler is invoked once per created record.
type RecordHandler func(ctx context.Context, event *RecordEvent)

// RecordSource delivers created-record events to a handler until ctx is canceled.
type RecordSource interface {
	Run(ctx context.Context, handle RecordHandler) error
}
