package usecase

import (
	"context"
	"errors"
	"testing"

	"taskchain-dispatcher/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(profiles map[string]*domain.UserProfile) (*DispatchEngine, *fakeRecipients) {
	recipients := &fakeRecipients{profiles: profiles}
	return NewDispatchEngine(recipients, domain.DefaultDeliveryHints()), recipients
}

func TestDecide_ReminderWithDeviceToken(t *testing.T) {
	engine, _ := newTestEngine(map[string]*domain.UserProfile{"u1": {FCMToken: "tok123"}})

	d := engine.Decide(context.Background(), &domain.SourceRecord{
		ID:         "r1",
		Kind:       domain.RecordKindReminder,
		OwnerID:    "u1",
		GroupID:    "g1",
		GroupTitle: "Chores",
		Text:       "Time!",
	})

	require.True(t, d.Ready())
	assert.Equal(t, domain.RecipientTarget{Token: "tok123"}, d.Target)
	assert.Equal(t, domain.Notification{Title: "Chores", Body: "Time!"}, d.Payload.Notification)
	assert.Equal(t, map[string]string{
		"type":       "group_reminder",
		"groupId":    "g1",
		"groupTitle": "Chores",
		"recordId":   "r1",
		"reminderId": "r1",
	}, d.Payload.Data)
	assert.Equal(t, domain.DefaultDeliveryHints(), d.Payload.DeliveryHints)
}

func TestDecide_ReminderWithoutTarget(t *testing.T) {
	tests := []struct {
		name     string
		profiles map[string]*domain.UserProfile
	}{
		{name: "no profile", profiles: nil},
		{name: "profile without token", profiles: map[string]*domain.UserProfile{"u1": {DisplayName: "Ann"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, recipients := newTestEngine(tt.profiles)

			d := engine.Decide(context.Background(), &domain.SourceRecord{ID: "r1", Kind: domain.RecordKindReminder, OwnerID: "u1", GroupID: "g1"})

			assert.Equal(t, domain.Skipped(domain.SkipReasonMissingTarget), d.Outcome)
			assert.False(t, d.Ready())
			assert.Equal(t, 1, recipients.calls)
		})
	}
}

func TestDecide_LookupErrorFails(t *testing.T) {
	engine, recipients := newTestEngine(nil)
	recipients.err = errors.New("etcd unavailable")

	d := engine.Decide(context.Background(), &domain.SourceRecord{ID: "r1", Kind: domain.RecordKindReminder, OwnerID: "u1"})

	assert.Equal(t, domain.OutcomeStatusFailed, d.Outcome.Status)
	assert.Contains(t, d.Outcome.Error, "etcd unavailable")
}

func TestDecide_AlreadyDispatchedIsNoOp(t *testing.T) {
	engine, recipients := newTestEngine(map[string]*domain.UserProfile{"u1": {FCMToken: "tok123"}})
	rec := &domain.SourceRecord{ID: "r1", Kind: domain.RecordKindReminder, OwnerID: "u1", AlreadyDispatched: true}

	for i := 0; i < 3; i++ {
		d := engine.Decide(context.Background(), rec)
		assert.Equal(t, domain.Skipped(domain.SkipReasonAlreadyDispatched), d.Outcome)
	}
	assert.Zero(t, recipients.calls, "guard must run before the lookup")
}

func TestDecide_ChatMessage(t *testing.T) {
	engine, recipients := newTestEngine(nil)

	d := engine.Decide(context.Background(), &domain.SourceRecord{
		ID:         "m1",
		Kind:       domain.RecordKindChatMessage,
		GroupID:    "g1",
		SenderID:   "u2",
		SenderName: "Ann",
		Text:       "hi",
	})

	require.True(t, d.Ready())
	assert.Equal(t, domain.RecipientTarget{Topic: "group_g1"}, d.Target)
	assert.Equal(t, "Ann: hi", d.Payload.Notification.Body)
	assert.Equal(t, "TaskChain", d.Payload.Notification.Title)
	assert.Equal(t, "message", d.Payload.Data["type"])
	assert.Equal(t, "m1", d.Payload.Data["messageId"])
	assert.Equal(t, "u2", d.Payload.Data["senderId"])
	assert.Equal(t, "Ann", d.Payload.Data["senderName"])
	assert.Zero(t, recipients.calls)
}

func TestDecide_ChatBody(t *testing.T) {
	tests := []struct {
		name       string
		senderName string
		text       string
		want       string
	}{
		{name: "sender and text", senderName: "Ann", text: "hi", want: "Ann: hi"},
		{name: "text only", text: "hi", want: "hi"},
		{name: "sender only", senderName: "Ann", want: "Ann: "},
		{name: "neither", want: "New message"},
	}
	engine, _ := newTestEngine(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := engine.Decide(context.Background(), &domain.SourceRecord{
				ID: "m1", Kind: domain.RecordKindChatMessage, GroupID: "g1", SenderName: tt.senderName, Text: tt.text,
			})
			assert.Equal(t, tt.want, d.Payload.Notification.Body)
		})
	}
}

func TestDecide_ChatTargetIgnoresSender(t *testing.T) {
	engine, _ := newTestEngine(nil)
	for _, sender := range []string{"", "u1", "u2"} {
		d := engine.Decide(context.Background(), &domain.SourceRecord{ID: "m1", Kind: domain.RecordKindChatMessage, GroupID: "g7", SenderID: sender})
		assert.Equal(t, domain.BroadcastTarget("g7"), d.Target)
	}
}

func TestDecide_SystemMessage(t *testing.T) {
	engine, _ := newTestEngine(nil)

	d := engine.Decide(context.Background(), &domain.SourceRecord{
		ID:      "m1",
		Kind:    domain.RecordKindSystemMessage,
		GroupID: "g1",
		Text:    "🔔 Reminder: Ann checked in",
	})

	require.True(t, d.Ready())
	assert.Equal(t, domain.RecipientTarget{Topic: "group_g1"}, d.Target)
	assert.Equal(t, "Reminder: Ann checked in", d.Payload.Notification.Body)
	assert.Equal(t, "Reminder: Ann checked in", d.Payload.Notification.Title)
	assert.Equal(t, "group_reminder", d.Payload.Data["type"])
	assert.Equal(t, "m1", d.Payload.Data["messageId"])
	assert.NotContains(t, d.Payload.Data, "senderId")
}

func TestDecide_SystemMessageDefaults(t *testing.T) {
	engine, _ := newTestEngine(nil)

	d := engine.Decide(context.Background(), &domain.SourceRecord{
		ID: "m1", Kind: domain.RecordKindSystemMessage, GroupID: "g1", GroupTitle: "Chores", Text: "🔔",
	})

	assert.Equal(t, "Chores", d.Payload.Notification.Title)
	assert.Equal(t, "Time to check in!", d.Payload.Notification.Body)
}

func TestDecide_ReminderDefaults(t *testing.T) {
	engine, _ := newTestEngine(map[string]*domain.UserProfile{"u1": {FCMToken: "tok"}})

	d := engine.Decide(context.Background(), &domain.SourceRecord{ID: "r1", Kind: domain.RecordKindReminder, OwnerID: "u1"})

	assert.Equal(t, domain.Notification{Title: "TaskChain Reminder", Body: "Time to check in!"}, d.Payload.Notification)
}

func TestDecide_UnknownKindFails(t *testing.T) {
	engine, _ := newTestEngine(nil)

	d := engine.Decide(context.Background(), &domain.SourceRecord{ID: "x", Kind: "poll"})

	assert.Equal(t, domain.OutcomeStatusFailed, d.Outcome.Status)
}
