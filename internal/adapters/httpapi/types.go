package httpapi

import "github.com/example/inbox/internal/ports/primary"

// StartConversationRequest is the body of POST /v1/conversations.
// When Content is set the message is posted in the same call.
type StartConversationRequest struct {
	Recipient string `json:"recipient" binding:"required"`
	Topic     string `json:"topic" binding:"omitempty,max=200"`
	Content   string `json:"content" binding:"omitempty,max=4000"`
}

// SendMessageRequest is the body of POST /v1/conversations/:id/messages.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
}

// ListConversationsQuery holds the query parameters of GET /v1/conversations.
type ListConversationsQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200"`
}

// ListConversationsResponse is the body of GET /v1/conversations.
type ListConversationsResponse struct {
	Conversations []*primary.ConversationSummary `json:"conversations"`
}

// UnreadResponse is the body of GET /v1/unread.
type UnreadResponse struct {
	User  string `json:"user"`
	Total int    `json:"total"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is returned for every failed request.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code"`

	// Fields maps request fields to the validation rule they failed.
	Fields map[string]string `json:"fields,omitempty"`
}
