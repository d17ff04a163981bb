package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientTarget_Validate(t *testing.T) {
	assert.NoError(t, AddressedTarget("tok").Validate())
	assert.NoError(t, BroadcastTarget("g1").Validate())
	assert.ErrorIs(t, RecipientTarget{}.Validate(), ErrInvalidTarget)
	assert.ErrorIs(t, RecipientTarget{Token: "tok", Topic: "group_g1"}.Validate(), ErrInvalidTarget)
}

func TestRecipientTarget_String(t *testing.T) {
	assert.Equal(t, "topic:group_g1", BroadcastTarget("g1").String())
	assert.Equal(t, "token:abcdefgh...", AddressedTarget("abcdefghijklmnop").String())
	assert.Equal(t, "token:short", AddressedTarget("short").String())
}

func TestNewMessage_WireShape(t *testing.T) {
	msg := NewMessage(BroadcastTarget("g1"), NotificationPayload{
		Notification:  Notification{Title: "Chores", Body: "Ann: hi"},
		Data:          map[string]string{"type": "message", "groupId": "g1"},
		DeliveryHints: DefaultDeliveryHints(),
	})

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"notification": {"title": "Chores", "body": "Ann: hi"},
		"data": {"type": "message", "groupId": "g1"},
		"topic": "group_g1",
		"deliveryHints": {
			"priority": "high",
			"channelId": "taskchain_channel",
			"sound": "default",
			"color": "#4CAF50",
			"icon": "taskchain_logo",
			"badge": 1
		}
	}`, string(raw))
}
