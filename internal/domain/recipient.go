// internal/domain/recipient.go
package domain

import (
	"context"
	"errors"
)

// ErrProfileNotFound is returned when no profile exists for a user.
var ErrProfileNotFound = errors.New("user profile not found")

// UserProfile is the stored shape of users/{userId}.
type UserProfile struct {
	DisplayName string `json:"displayName,omitempty"`
	FCMToken    string `json:"fcmToken,omitempty"`
}

// RecipientLookup resolves the device registration token of a user.
type RecipientLookup interface {
	// Lookup returns ErrProfileNotFound when the user has no profile.
	// A profile without a token is returned as-is; callers decide what an empty token means.
	Lookup(ctx context.Context, userID string) (*UserProfile, error)
}

// ProfileRepository persists user profiles.
type ProfileRepository interface {
	RecipientLookup
	SaveProfile(ctx context.Context, userID string, profile *UserProfile) error
}
