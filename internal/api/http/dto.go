package http

import "taskchain-dispatcher/internal/domain"

// CreateReminderRequest is the body of POST /users/{userId}/reminders.
type CreateReminderRequest struct {
	GroupID    string `json:"groupId" validate:"required,max=128"`
	GroupTitle string `json:"groupTitle" validate:"max=256"`
	Message    string `json:"message" validate:"max=4096"`
}

// ToDocument converts the request into a new, undispatched reminder document.
func (r *CreateReminderRequest) ToDocument() *domain.ReminderDocument {
	return &domain.ReminderDocument{
		GroupID:    r.GroupID,
		GroupTitle: r.GroupTitle,
		Message:    r.Message,
	}
}

// CreateMessageRequest is the body of POST /groups/{groupId}/messages.
type CreateMessageRequest struct {
	GroupTitle      string `json:"groupTitle" validate:"max=256"`
	Text            string `json:"text" validate:"max=4096"`
	SenderID        string `json:"senderId" validate:"required_without=IsSystemMessage,max=128"`
	SenderName      string `json:"senderName" validate:"max=256"`
	IsSystemMessage bool   `json:"isSystemMessage"`
	Type            string `json:"type" validate:"max=64"`
}

func (r *CreateMessageRequest) ToDocument() *domain.MessageDocument {
	return &domain.MessageDocument{
		GroupTitle:      r.GroupTitle,
		Text:            r.Text,
		SenderID:        r.SenderID,
		SenderName:      r.SenderName,
		IsSystemMessage: r.IsSystemMessage,
		Type:            r.Type,
	}
}

// SaveProfileRequest is the body of PUT /users/{userId}/profile.
type SaveProfileRequest struct {
	DisplayName string `json:"displayName" validate:"max=256"`
	FCMToken    string `json:"fcmToken" validate:"max=4096"`
}

func (r *SaveProfileRequest) ToProfile() *domain.UserProfile {
	return &domain.UserProfile{DisplayName: r.DisplayName, FCMToken: r.FCMToken}
}

// CreatedResponse returns the id assigned to a new record.
type CreatedResponse struct {
	ID string `json:"id"`
}

// OutcomeResponse reports the result of a manual retry.
type OutcomeResponse struct {
	Status     domain.OutcomeStatus `json:"status"`
	MessageID  string               `json:"messageId,omitempty"`
	SkipReason domain.SkipReason    `json:"skipReason,omitempty"`
	Error      string               `json:"error,omitempty"`
}

func newOutcomeResponse(o domain.DispatchOutcome) OutcomeResponse {
	return OutcomeResponse{
		Status:     o.Status,
		MessageID:  o.MessageID,
		SkipReason: o.SkipReason,
		Error:      o.Error,
	}
}
