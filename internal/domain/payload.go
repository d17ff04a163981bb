// internal/domain/payload.go
package domain

// Notification type discriminators carried in the data mapping.
const (
	NotificationTypeGroupReminder = "group_reminder"
	NotificationTypeMessage       = "message"
)

// Data mapping keys read by the client app.
const (
	DataKeyType       = "type"
	DataKeyGroupID    = "groupId"
	DataKeyGroupTitle = "groupTitle"
	DataKeyRecordID   = "recordId"
	DataKeyReminderID = "reminderId"
	DataKeyMessageID  = "messageId"
	DataKeySenderID   = "senderId"
	DataKeySenderName = "senderName"
)

// Notification is the user-visible part of a push message.
type Notification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// DeliveryHints are platform rendering hints shared by every notification the service sends.
type DeliveryHints struct {
	Priority  string `json:"priority" mapstructure:"priority"`
	ChannelID string `json:"channelId" mapstructure:"channel_id"`
	Sound     string `json:"sound" mapstructure:"sound"`
	Color     string `json:"color" mapstructure:"color"`
	Icon      string `json:"icon" mapstructure:"icon"`
	Badge     int    `json:"badge,omitempty" mapstructure:"badge"`
}

// DefaultDeliveryHints returns the hints used when none are configured.
func DefaultDeliveryHints() DeliveryHints {
	return DeliveryHints{
		Priority:  "high",
		ChannelID: "taskchain_channel",
		Sound:     "default",
		Color:     "#4CAF50",
		Icon:      "taskchain_logo",
		Badge:     1,
	}
}

// NotificationPayload is everything the transport needs besides the target.
// Data is flat string-to-string; its key set is fixed per record kind.
type NotificationPayload struct {
	Notification  Notification      `json:"notification"`
	Data          map[string]string `json:"data"`
	DeliveryHints DeliveryHints     `json:"deliveryHints"`
}

// Message is the wire shape handed to the push transport.
type Message struct {
	Notification  Notification      `json:"notification"`
	Data          map[string]string `json:"data"`
	Token         string            `json:"token,omitempty"`
	Topic         string            `json:"topic,omitempty"`
	DeliveryHints DeliveryHints     `json:"deliveryHints"`
}

// NewMessage combines a target and payload into the wire shape.
func NewMessage(target RecipientTarget, payload NotificationPayload) Message {
	return Message{
		Notification:  payload.Notification,
		Data:          payload.Data,
		Token:         target.Token,
		Topic:         target.Topic,
		DeliveryHints: payload.DeliveryHints,
	}
}
