package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidTarget is returned when a target is neither addressed nor broadcast, or both.
var ErrInvalidTarget = errors.New("invalid recipient target")

// BroadcastTopicPrefix prefixes the group id to form a broadcast channel name.
const BroadcastTopicPrefix = "group_"

// RecipientTarget is either an addressed device token or a broadcast topic. Exactly one field is set.
type RecipientTarget struct {
	Token string `json:"token,omitempty"`
	Topic string `json:"topic,omitempty"`
}

// AddressedTarget targets a single device.
func AddressedTarget(token string) RecipientTarget {
	return RecipientTarget{Token: token}
}

// BroadcastTarget targets every device subscribed to the group's channel.
func BroadcastTarget(groupID string) RecipientTarget {
	return RecipientTarget{Topic: BroadcastTopicPrefix + groupID}
}

// IsAddressed reports whether the target is a single device.
func (t RecipientTarget) IsAddressed() bool { return t.Token != "" }

// Validate checks that exactly one variant is chosen.
func (t RecipientTarget) Validate() error {
	if (t.Token == "") == (t.Topic == "") {
		return fmt.Errorf("%w: token=%t topic=%t", ErrInvalidTarget, t.Token != "", t.Topic != "")
	}
	return nil
}

// String returns a log-safe description; tokens are truncated.
func (t RecipientTarget) String() string {
	if t.Topic != "" {
		return "topic:" + t.Topic
	}
	if len(t.Token) > 8 {
		return "token:" + t.Token[:8] + "..."
	}
	return "token:" + t.Token
}
