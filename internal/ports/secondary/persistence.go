// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import "context"

// ConversationRepository defines the secondary port for conversation persistence.
// It is the only component that mutates stored conversations. Implementations
// return errors wrapping the kinds in internal/core/conversation.
type ConversationRepository interface {
	// FindOrCreate returns the conversation matching record.ParticipantKey and
	// record.Topic, creating it from record when none exists. The bool reports
	// whether a new conversation was created.
	FindOrCreate(ctx context.Context, record *ConversationRecord) (*ConversationRecord, bool, error)

	// GetByID retrieves a conversation header with its participants.
	GetByID(ctx context.Context, id string) (*ConversationRecord, error)

	// ListMessages retrieves a conversation's messages in append order.
	ListMessages(ctx context.Context, conversationID string) ([]*MessageRecord, error)

	// AppendMessage appends a message, refreshes the last-message snapshot and
	// increments every other participant's unread counter in one atomic write.
	AppendMessage(ctx context.Context, conversationID, sender, content string) (*MessageRecord, error)

	// MarkRead marks every unread message not authored by reader as read and
	// zeroes the reader's counter. Returns the number of messages changed;
	// nothing is written when it is zero.
	MarkRead(ctx context.Context, conversationID, reader string) (int, error)

	// Delete permanently removes a conversation and its messages.
	Delete(ctx context.Context, id string) error

	// ListByParticipant retrieves conversations containing participant,
	// most recent activity first.
	ListByParticipant(ctx context.Context, participant string, limit int) ([]*ConversationRecord, error)

	// SumUnread returns the participant's unread counters summed across conversations.
	SumUnread(ctx context.Context, participant string) (int, error)

	// SetUnreadCounts overwrites counters if the conversation is still at
	// expectedVersion, returning a conflict error otherwise.
	SetUnreadCounts(ctx context.Context, conversationID string, expectedVersion int64, counts map[string]int) error
}

// ConversationRecord represents a conversation as stored in persistence.
type ConversationRecord struct {
	ID                 string
	ParticipantKey     string
	Topic              string // empty when not scoped to a listing
	Participants       []ParticipantRecord
	LastMessageContent string
	LastMessageSender  string
	LastMessageAt      string // empty until the first message
	Version            int64
	CreatedAt          string
	UpdatedAt          string
}

// HasParticipant reports whether id is one of the conversation's participants.
func (r *ConversationRecord) HasParticipant(id string) bool {
	for _, p := range r.Participants {
		if p.ParticipantID == id {
			return true
		}
	}
	return false
}

// UnreadFor returns the participant's unread counter, 0 when absent.
func (r *ConversationRecord) UnreadFor(id string) int {
	for _, p := range r.Participants {
		if p.ParticipantID == id {
			return p.UnreadCount
		}
	}
	return 0
}

// ParticipantRecord is one participant row with its unread counter.
type ParticipantRecord struct {
	ParticipantID string
	UnreadCount   int
}

// MessageRecord represents a message entry as stored in persistence.
type MessageRecord struct {
	ID             string
	ConversationID string
	Seq            int
	Sender         string
	Content        string
	Read           bool
	CreatedAt      string
}

// ActivityRecorder receives conversation activity for observability.
type ActivityRecorder interface {
	ConversationCreated()
	MessageSent()
	ConversationOpened(marked int)
	ConversationDeleted()
	WriteConflict(operation string)
}

// NoopRecorder discards all activity.
type NoopRecorder struct{}

func (NoopRecorder) ConversationCreated() {}
func (NoopRecorder) MessageSent() {}
func (NoopRecorder) ConversationOpened(int) {}
func (NoopRecorder) ConversationDeleted() {}
func (NoopRecorder) WriteConflict(string) {}

var _ ActivityRecorder = NoopRecorder{}
