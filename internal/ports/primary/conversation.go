package primary

import (
	"context"

	coreconversation "github.com/example/inbox/internal/core/conversation"
)

// ConversationService defines the primary port for conversation operations.
type ConversationService interface {
	// StartConversation finds the conversation between two participants for a
	// topic, creating an empty one if none exists.
	StartConversation(ctx context.Context, req StartConversationRequest) (*StartConversationResponse, error)

	// SendMessage posts a message to an existing conversation.
	SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error)

	// StartAndSend finds or creates the conversation and posts the first message.
	StartAndSend(ctx context.Context, req StartAndSendRequest) (*StartAndSendResponse, error)

	// OpenConversation returns the conversation after marking it read for reader.
	OpenConversation(ctx context.Context, conversationID, reader string) (*Conversation, error)

	// GetConversation returns the conversation without changing read state.
	GetConversation(ctx context.Context, conversationID, viewer string) (*Conversation, error)

	// DeleteConversation permanently removes a conversation.
	DeleteConversation(ctx context.Context, conversationID, requester string) error

	// ListConversations lists the user's conversations, most recent activity first.
	ListConversations(ctx context.Context, user string, limit int) ([]*ConversationSummary, error)

	// TotalUnread sums the user's unread counters across all conversations.
	TotalUnread(ctx context.Context, user string) (int, error)

	// Reconcile recomputes a conversation's unread counters from message state.
	Reconcile(ctx context.Context, conversationID string) (*ReconcileResponse, error)
}

// StartConversationRequest contains parameters for finding or creating a conversation.
type StartConversationRequest struct {
	Initiator string
	Recipient string
	Topic     string
}

// StartConversationResponse contains the found or created conversation.
type StartConversationResponse struct {
	Conversation *Conversation `json:"conversation"`
	Created      bool          `json:"created"`
}

// SendMessageRequest contains parameters for posting a message.
type SendMessageRequest struct {
	ConversationID string
	Sender         string
	Content        string
}

// StartAndSendRequest contains parameters for the first message to a recipient.
type StartAndSendRequest struct {
	Sender    string
	Recipient string
	Topic     string
	Content   string
}

// StartAndSendResponse contains the result of StartAndSend.
type StartAndSendResponse struct {
	ConversationID string   `json:"conversation_id"`
	Created        bool     `json:"created"`
	Message        *Message `json:"message"`
}

// Conversation represents a conversation aggregate at the port boundary.
type Conversation struct {
	ID           string         `json:"id"`
	Participants []string       `json:"participants"`
	Topic        string         `json:"topic,omitempty"`
	Messages     []*Message     `json:"messages"`
	LastMessage  *LastMessage   `json:"last_message,omitempty"`
	UnreadCount  map[string]int `json:"unread_count"`
	Version      int64          `json:"version"`
	CreatedAt    string         `json:"created_at"`
	UpdatedAt    string         `json:"updated_at"`
}

// Message represents a message entry at the port boundary.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Seq            int    `json:"seq"`
	Sender         string `json:"sender"`
	Content        string `json:"content"`
	Read           bool   `json:"read"`
	CreatedAt      string `json:"created_at"`
}

// LastMessage is the denormalized snapshot of the most recent message.
type LastMessage struct {
	Content   string `json:"content"`
	Sender    string `json:"sender"`
	CreatedAt string `json:"created_at"`
}

// ConversationSummary is one inbox row for a user.
type ConversationSummary struct {
	ID           string       `json:"id"`
	Participants []string     `json:"participants"`
	Topic        string       `json:"topic,omitempty"`
	LastMessage  *LastMessage `json:"last_message,omitempty"`
	Unread       int          `json:"unread"`
	UpdatedAt    string       `json:"updated_at"`
}

// ReconcileResponse reports the counters a reconcile corrected.
type ReconcileResponse struct {
	ConversationID string                        `json:"conversation_id"`
	Fixes          []coreconversation.CounterFix `json:"fixes"`
}
