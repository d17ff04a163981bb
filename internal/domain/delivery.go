package domain

import "context"

// Sender delivers a notification through the push transport.
type Sender interface {
	// Send makes exactly one delivery attempt and returns the transport-assigned message id.
	Send(ctx context.Context, target RecipientTarget, payload NotificationPayload) (messageID string, err error)
}
