package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	coreconversation "github.com/example/inbox/internal/core/conversation"
	"github.com/example/inbox/internal/ctxutil"
	"github.com/example/inbox/internal/identity"
	"github.com/example/inbox/internal/ports/primary"
	"github.com/example/inbox/internal/ports/secondary"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// RetryPolicy controls how conflicting writes are retried.
type RetryPolicy struct {
	Attempts int           // total tries, including the first
	Backoff  time.Duration // multiplied by the attempt number between tries
}

// DefaultRetryPolicy is one try plus three retries with a short linear backoff.
var DefaultRetryPolicy = RetryPolicy{Attempts: 4, Backoff: 25 * time.Millisecond}

// ConversationServiceImpl implements the ConversationService interface.
type ConversationServiceImpl struct {
	conversationRepo secondary.ConversationRepository
	recorder         secondary.ActivityRecorder
	logger           *zap.Logger
	retry            RetryPolicy
}

// NewConversationService creates a new ConversationService with injected dependencies.
// A nil recorder or logger disables that concern.
func NewConversationService(
	conversationRepo secondary.ConversationRepository,
	recorder secondary.ActivityRecorder,
	logger *zap.Logger,
	retry RetryPolicy,
) *ConversationServiceImpl {
	if recorder == nil {
		recorder = secondary.NoopRecorder{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry.Attempts < 1 {
		retry.Attempts = 1
	}
	return &ConversationServiceImpl{
		conversationRepo: conversationRepo,
		recorder:         recorder,
		logger:           logger,
		retry:            retry,
	}
}

// StartConversation finds or creates the conversation between two participants.
func (s *ConversationServiceImpl) StartConversation(ctx context.Context, req primary.StartConversationRequest) (*primary.StartConversationResponse, error) {
	// 1. Parse identities and check guard
	initiator, recipient, err := parsePair(req.Initiator, req.Recipient)
	if err != nil {
		return nil, err
	}
	if result := coreconversation.CanStartConversation(coreconversation.StartContext{
		Initiator: initiator,
		Recipient: recipient,
	}); !result.Allowed {
		return nil, result.Error()
	}

	// 2. Build lookup record using core rules
	record := &secondary.ConversationRecord{
		ParticipantKey: coreconversation.ParticipantKey(initiator, recipient),
		Topic:          coreconversation.NormalizeTopic(req.Topic),
	}
	for _, p := range coreconversation.SortedParticipants(initiator, recipient) {
		record.Participants = append(record.Participants, secondary.ParticipantRecord{ParticipantID: p})
	}

	// 3. Find or create
	var (
		found   *secondary.ConversationRecord
		created bool
	)
	err = s.withRetry(ctx, "start", func() error {
		var err error
		found, created, err = s.conversationRepo.FindOrCreate(ctx, record)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start conversation: %w", err)
	}

	if created {
		s.recorder.ConversationCreated()
		s.log(ctx).Debug("conversation created",
			zap.String("conversation_id", found.ID),
			zap.String("topic", found.Topic))
	}

	// 4. Existing conversations come back with their history
	var messages []*secondary.MessageRecord
	if !created {
		messages, err = s.conversationRepo.ListMessages(ctx, found.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load messages: %w", err)
		}
	}

	return &primary.StartConversationResponse{
		Conversation: s.recordToConversation(found, messages),
		Created:      created,
	}, nil
}

// SendMessage posts a message to an existing conversation.
func (s *ConversationServiceImpl) SendMessage(ctx context.Context, req primary.SendMessageRequest) (*primary.Message, error) {
	// 1. Load conversation for the guard
	record, err := s.conversationRepo.GetByID(ctx, req.ConversationID)
	if err != nil {
		return nil, err
	}

	// 2. Check guard
	if result := coreconversation.CanSendMessage(coreconversation.SendContext{
		ConversationID: req.ConversationID,
		Sender:         req.Sender,
		IsParticipant:  record.HasParticipant(req.Sender),
		Content:        req.Content,
	}); !result.Allowed {
		return nil, result.Error()
	}

	content, _ := coreconversation.NormalizeContent(req.Content)

	// 3. Append atomically
	var created *secondary.MessageRecord
	err = s.withRetry(ctx, "send", func() error {
		var err error
		created, err = s.conversationRepo.AppendMessage(ctx, req.ConversationID, req.Sender, content)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	s.recorder.MessageSent()
	s.log(ctx).Debug("message sent",
		zap.String("conversation_id", created.ConversationID),
		zap.String("message_id", created.ID),
		zap.String("sender", created.Sender))

	return s.recordToMessage(created), nil
}

// StartAndSend finds or creates the conversation and posts a message to it.
// Content is validated first so a rejected message never creates a conversation.
func (s *ConversationServiceImpl) StartAndSend(ctx context.Context, req primary.StartAndSendRequest) (*primary.StartAndSendResponse, error) {
	sender, recipient, err := parsePair(req.Sender, req.Recipient)
	if err != nil {
		return nil, err
	}
	if result := coreconversation.CheckContent(req.Content); !result.Allowed {
		return nil, result.Error()
	}

	started, err := s.StartConversation(ctx, primary.StartConversationRequest{
		Initiator: sender,
		Recipient: recipient,
		Topic:     req.Topic,
	})
	if err != nil {
		return nil, err
	}

	msg, err := s.SendMessage(ctx, primary.SendMessageRequest{
		ConversationID: started.Conversation.ID,
		Sender:         sender,
		Content:        req.Content,
	})
	if err != nil {
		return nil, err
	}

	return &primary.StartAndSendResponse{
		ConversationID: started.Conversation.ID,
		Created:        started.Created,
		Message:        msg,
	}, nil
}

// OpenConversation marks the conversation read for reader and returns it.
func (s *ConversationServiceImpl) OpenConversation(ctx context.Context, conversationID, reader string) (*primary.Conversation, error) {
	if _, err := s.loadForParticipant(ctx, conversationID, reader); err != nil {
		return nil, err
	}

	var marked int
	err := s.withRetry(ctx, "open", func() error {
		var err error
		marked, err = s.conversationRepo.MarkRead(ctx, conversationID, reader)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation: %w", err)
	}

	s.recorder.ConversationOpened(marked)
	if marked > 0 {
		s.log(ctx).Debug("conversation read",
			zap.String("conversation_id", conversationID),
			zap.String("reader", reader),
			zap.Int("marked", marked))
	}

	return s.loadConversation(ctx, conversationID)
}

// GetConversation returns the conversation without changing read state.
func (s *ConversationServiceImpl) GetConversation(ctx context.Context, conversationID, viewer string) (*primary.Conversation, error) {
	record, err := s.loadForParticipant(ctx, conversationID, viewer)
	if err != nil {
		return nil, err
	}

	messages, err := s.conversationRepo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	return s.recordToConversation(record, messages), nil
}

// DeleteConversation permanently removes a conversation.
func (s *ConversationServiceImpl) DeleteConversation(ctx context.Context, conversationID, requester string) error {
	if _, err := s.loadForParticipant(ctx, conversationID, requester); err != nil {
		return err
	}

	err := s.withRetry(ctx, "delete", func() error {
		return s.conversationRepo.Delete(ctx, conversationID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}

	s.recorder.ConversationDeleted()
	s.log(ctx).Debug("conversation deleted",
		zap.String("conversation_id", conversationID),
		zap.String("requester", requester))

	return nil
}

// ListConversations lists the user's conversations, most recent activity first.
func (s *ConversationServiceImpl) ListConversations(ctx context.Context, user string, limit int) ([]*primary.ConversationSummary, error) {
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", coreconversation.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	records, err := s.conversationRepo.ListByParticipant(ctx, user, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}

	summaries := make([]*primary.ConversationSummary, len(records))
	for i, r := range records {
		summaries[i] = &primary.ConversationSummary{
			ID:           r.ID,
			Participants: participantIDs(r),
			Topic:        r.Topic,
			LastMessage:  lastMessage(r),
			Unread:       r.UnreadFor(user),
			UpdatedAt:    r.UpdatedAt,
		}
	}
	return summaries, nil
}

// TotalUnread sums the user's unread counters across all conversations.
func (s *ConversationServiceImpl) TotalUnread(ctx context.Context, user string) (int, error) {
	if user == "" {
		return 0, fmt.Errorf("%w: user is required", coreconversation.ErrInvalidInput)
	}

	total, err := s.conversationRepo.SumUnread(ctx, user)
	if err != nil {
		return 0, fmt.Errorf("failed to get unread count: %w", err)
	}
	return total, nil
}

// Reconcile recomputes a conversation's unread counters from message state and
// rewrites any that drifted. The rewrite is guarded by the version read, so a
// concurrent send or open forces a fresh plan.
func (s *ConversationServiceImpl) Reconcile(ctx context.Context, conversationID string) (*primary.ReconcileResponse, error) {
	var plan coreconversation.ReconcilePlan

	err := s.withRetry(ctx, "reconcile", func() error {
		record, err := s.conversationRepo.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		messages, err := s.conversationRepo.ListMessages(ctx, conversationID)
		if err != nil {
			return err
		}

		stored := make(map[string]int, len(record.Participants))
		for _, p := range record.Participants {
			stored[p.ParticipantID] = p.UnreadCount
		}

		plan = coreconversation.PlanReconcile(conversationID, stored, messageStates(messages))
		if len(plan.Fixes) == 0 {
			return nil
		}
		return s.conversationRepo.SetUnreadCounts(ctx, conversationID, record.Version, plan.Counts())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile conversation: %w", err)
	}

	for _, f := range plan.Fixes {
		s.log(ctx).Warn("unread counter repaired",
			zap.String("conversation_id", conversationID),
			zap.String("participant", f.Participant),
			zap.Int("stored", f.Stored),
			zap.Int("expected", f.Expected))
	}

	return &primary.ReconcileResponse{
		ConversationID: conversationID,
		Fixes:          plan.Fixes,
	}, nil
}

// Helper methods

// parsePair validates both identity references of a new conversation. The
// participant key relies on identities never containing whitespace.
func parsePair(initiator, recipient string) (string, string, error) {
	a, err := identity.Parse(initiator)
	if err != nil {
		return "", "", fmt.Errorf("invalid initiator: %w", err)
	}
	b, err := identity.Parse(recipient)
	if err != nil {
		return "", "", fmt.Errorf("invalid recipient: %w", err)
	}
	return a, b, nil
}

// loadForParticipant loads a conversation and hides it from non-participants.
func (s *ConversationServiceImpl) loadForParticipant(ctx context.Context, conversationID, actor string) (*secondary.ConversationRecord, error) {
	record, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	if result := coreconversation.CanAccessConversation(coreconversation.AccessContext{
		ConversationID: conversationID,
		Actor:          actor,
		IsParticipant:  record.HasParticipant(actor),
	}); !result.Allowed {
		return nil, result.Error()
	}

	return record, nil
}

func (s *ConversationServiceImpl) loadConversation(ctx context.Context, conversationID string) (*primary.Conversation, error) {
	record, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	messages, err := s.conversationRepo.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	return s.recordToConversation(record, messages), nil
}

// log returns the service logger annotated with the request's correlation fields.
func (s *ConversationServiceImpl) log(ctx context.Context) *zap.Logger {
	l := s.logger
	if id := ctxutil.RequestIDFromContext(ctx); id != "" {
		l = l.With(zap.String("request_id", id))
	}
	if actor := ctxutil.ActorFromContext(ctx); actor != "" {
		l = l.With(zap.String("actor", actor))
	}
	return l
}

// withRetry runs fn, retrying while it fails with ErrConflict.
func (s *ConversationServiceImpl) withRetry(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, coreconversation.ErrConflict) {
			return err
		}

		s.recorder.WriteConflict(operation)
		if attempt == s.retry.Attempts {
			break
		}

		s.log(ctx).Warn("write conflict, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retry.Backoff * time.Duration(attempt)):
		}
	}
	return err
}

func (s *ConversationServiceImpl) recordToConversation(r *secondary.ConversationRecord, messages []*secondary.MessageRecord) *primary.Conversation {
	conv := &primary.Conversation{
		ID:           r.ID,
		Participants: participantIDs(r),
		Topic:        r.Topic,
		Messages:     make([]*primary.Message, len(messages)),
		LastMessage:  lastMessage(r),
		UnreadCount:  make(map[string]int, len(r.Participants)),
		Version:      r.Version,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	for _, p := range r.Participants {
		conv.UnreadCount[p.ParticipantID] = p.UnreadCount
	}
	for i, m := range messages {
		conv.Messages[i] = s.recordToMessage(m)
	}
	return conv
}

func (s *ConversationServiceImpl) recordToMessage(r *secondary.MessageRecord) *primary.Message {
	return &primary.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Seq:            r.Seq,
		Sender:         r.Sender,
		Content:        r.Content,
		Read:           r.Read,
		CreatedAt:      r.CreatedAt,
	}
}

func participantIDs(r *secondary.ConversationRecord) []string {
	ids := make([]string, len(r.Participants))
	for i, p := range r.Participants {
		ids[i] = p.ParticipantID
	}
	return ids
}

func lastMessage(r *secondary.ConversationRecord) *primary.LastMessage {
	if r.LastMessageAt == "" {
		return nil
	}
	return &primary.LastMessage{
		Content:   r.LastMessageContent,
		Sender:    r.LastMessageSender,
		CreatedAt: r.LastMessageAt,
	}
}

func messageStates(messages []*secondary.MessageRecord) []coreconversation.MessageState {
	states := make([]coreconversation.MessageState, len(messages))
	for i, m := range messages {
		states[i] = coreconversation.MessageState{Seq: m.Seq, Sender: m.Sender, Read: m.Read}
	}
	return states
}

// Ensure ConversationServiceImpl implements the interface.
var _ primary.ConversationService = (*ConversationServiceImpl)(nil)
