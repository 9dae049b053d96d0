package sqlite_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/inbox/internal/adapters/sqlite"
	"github.com/example/inbox/internal/app"
	coreconversation "github.com/example/inbox/internal/core/conversation"
	"github.com/example/inbox/internal/ports/primary"
)

// Integration tests drive the conversation service over the real repository.

func newIntegrationService(t *testing.T) *app.ConversationServiceImpl {
	t.Helper()
	repo := newTestRepo(t)
	return app.NewConversationService(repo, nil, nil, app.RetryPolicy{Attempts: 5, Backoff: time.Millisecond})
}

// ============================================================================
// Conversation Lifecycle Tests
// ============================================================================

func TestIntegration_SendOpenScenario(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	for _, content := range []string{"hello", "how are you"} {
		if _, err := svc.StartAndSend(ctx, primary.StartAndSendRequest{Sender: "alice", Recipient: "bob", Content: content}); err != nil {
			t.Fatalf("StartAndSend failed: %v", err)
		}
	}

	started, err := svc.StartConversation(ctx, primary.StartConversationRequest{Initiator: "alice", Recipient: "bob"})
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}
	conv := started.Conversation
	if started.Created {
		t.Error("expected existing conversation")
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(conv.Messages))
	}
	if conv.LastMessage == nil || conv.LastMessage.Content != "how are you" {
		t.Errorf("expected last message 'how are you', got %+v", conv.LastMessage)
	}
	if conv.UnreadCount["bob"] != 2 || conv.UnreadCount["alice"] != 0 {
		t.Errorf("expected unread bob=2 alice=0, got %v", conv.UnreadCount)
	}

	opened, err := svc.OpenConversation(ctx, conv.ID, "bob")
	if err != nil {
		t.Fatalf("OpenConversation failed: %v", err)
	}
	if opened.UnreadCount["bob"] != 0 {
		t.Errorf("expected bob unread 0, got %d", opened.UnreadCount["bob"])
	}
	for _, m := range opened.Messages {
		if !m.Read {
			t.Errorf("expected %s to be read", m.ID)
		}
	}
	tail := opened.Messages[len(opened.Messages)-1]
	if opened.LastMessage.CreatedAt != tail.CreatedAt || opened.LastMessage.Content != tail.Content {
		t.Errorf("expected last message to match tail, got %+v vs %+v", opened.LastMessage, tail)
	}

	// Second open performs no write.
	again, err := svc.OpenConversation(ctx, conv.ID, "bob")
	if err != nil {
		t.Fatalf("OpenConversation failed: %v", err)
	}
	if again.Version != opened.Version || again.UpdatedAt != opened.UpdatedAt {
		t.Errorf("expected unchanged version marker, got %d/%s then %d/%s",
			opened.Version, opened.UpdatedAt, again.Version, again.UpdatedAt)
	}

	total, err := svc.TotalUnread(ctx, "bob")
	if err != nil {
		t.Fatalf("TotalUnread failed: %v", err)
	}
	if total != 0 {
		t.Errorf("expected total unread 0, got %d", total)
	}

	if _, err := svc.OpenConversation(ctx, conv.ID, "carol"); !errors.Is(err, coreconversation.ErrNotFound) {
		t.Errorf("expected ErrNotFound for outsider, got %v", err)
	}
}

func TestIntegration_DeleteThenRecreate(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	first, err := svc.StartAndSend(ctx, primary.StartAndSendRequest{Sender: "alice", Recipient: "bob", Content: "hi"})
	if err != nil {
		t.Fatalf("StartAndSend failed: %v", err)
	}

	if err := svc.DeleteConversation(ctx, first.ConversationID, "bob"); err != nil {
		t.Fatalf("DeleteConversation failed: %v", err)
	}

	again, err := svc.StartConversation(ctx, primary.StartConversationRequest{Initiator: "alice", Recipient: "bob"})
	if err != nil {
		t.Fatalf("StartConversation failed: %v", err)
	}
	if !again.Created || again.Conversation.ID == first.ConversationID {
		t.Errorf("expected a brand-new conversation, got %+v", again)
	}
	if len(again.Conversation.Messages) != 0 {
		t.Errorf("expected no resurrected messages, got %d", len(again.Conversation.Messages))
	}
}

func TestIntegration_WhitespaceIdentitiesRejected(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	_, err := svc.StartAndSend(ctx, primary.StartAndSendRequest{Sender: "alice", Recipient: "bob carol", Content: "secret"})
	if !errors.Is(err, coreconversation.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for recipient with space, got %v", err)
	}

	if _, err := svc.StartAndSend(ctx, primary.StartAndSendRequest{Sender: "alice", Recipient: "bob", Content: "secret"}); err != nil {
		t.Fatalf("StartAndSend failed: %v", err)
	}
	if _, err := svc.StartConversation(ctx, primary.StartConversationRequest{Initiator: "carol", Recipient: "alice bob"}); !errors.Is(err, coreconversation.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for colliding key, got %v", err)
	}

	if _, err := svc.StartConversation(ctx, primary.StartConversationRequest{Initiator: "dave", Recipient: "dave "}); !errors.Is(err, coreconversation.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for self with trailing space, got %v", err)
	}

	list, err := svc.ListConversations(ctx, "carol", 0)
	if err != nil {
		t.Fatalf("ListConversations failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected carol to see nothing, got %d conversations", len(list))
	}
}

// ============================================================================
// Concurrency Tests
// ============================================================================

func TestIntegration_ConcurrentContactConverges(t *testing.T) {
	svc := newIntegrationService(t)
	ctx := context.Background()

	const senders = 10
	ids := make([]string, senders)

	var g errgroup.Group
	for i := 0; i < senders; i++ {
		g.Go(func() error {
			resp, err := svc.StartAndSend(ctx, primary.StartAndSendRequest{
				Sender:    "alice",
				Recipient: "bob",
				Topic:     "listing-5",
				Content:   fmt.Sprintf("offer %d", i),
			})
			if err != nil {
				return err
			}
			ids[i] = resp.ConversationID
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent StartAndSend failed: %v", err)
	}

	for _, id := range ids[1:] {
		if id != ids[0] {
			t.Fatalf("expected one conversation, got %v", ids)
		}
	}

	total, err := svc.TotalUnread(ctx, "bob")
	if err != nil {
		t.Fatalf("TotalUnread failed: %v", err)
	}
	if total != senders {
		t.Errorf("expected %d unread, got %d", senders, total)
	}
}

// ============================================================================
// Reconcile Tests
// ============================================================================

func TestIntegration_ReconcileRepairsDrift(t *testing.T) {
	testDB := setupTestDB(t)
	repo := sqlite.NewConversationRepository(testDB).WithClock(steppingClock())
	svc := app.NewConversationService(repo, nil, nil, app.DefaultRetryPolicy)
	ctx := context.Background()

	resp, err := svc.StartAndSend(ctx, primary.StartAndSendRequest{Sender: "alice", Recipient: "bob", Content: "hi"})
	if err != nil {
		t.Fatalf("StartAndSend failed: %v", err)
	}

	// Simulate drift from an out-of-band writer.
	if _, err := testDB.Exec(
		`UPDATE conversation_participants SET unread_count = 7 WHERE conversation_id = ? AND participant_id = 'bob'`,
		resp.ConversationID,
	); err != nil {
		t.Fatalf("failed to corrupt counter: %v", err)
	}

	report, err := svc.Reconcile(ctx, resp.ConversationID)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(report.Fixes) != 1 || report.Fixes[0].Stored != 7 || report.Fixes[0].Expected != 1 {
		t.Errorf("unexpected fixes %+v", report.Fixes)
	}

	total, err := svc.TotalUnread(ctx, "bob")
	if err != nil {
		t.Fatalf("TotalUnread failed: %v", err)
	}
	if total != 1 {
		t.Errorf("expected repaired total 1, got %d", total)
	}
}
