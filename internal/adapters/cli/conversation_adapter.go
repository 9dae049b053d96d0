// Package cli provides thin CLI adapters that translate between CLI concerns
// and application services. Adapters handle output formatting but delegate
// business logic to services.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/inbox/internal/ports/primary"
)

// doctorScanLimit bounds how many of the actor's conversations doctor checks
// when no IDs are given.
const doctorScanLimit = 200

// ConversationAdapter is a thin adapter that translates CLI operations to ConversationService calls.
// It depends only on the ConversationService interface, enabling easy testing with mocks.
type ConversationAdapter struct {
	service primary.ConversationService
	out     io.Writer
}

// NewConversationAdapter creates a new ConversationAdapter with the given service.
func NewConversationAdapter(service primary.ConversationService, out io.Writer) *ConversationAdapter {
	return &ConversationAdapter{
		service: service,
		out:     out,
	}
}

// Start finds or creates the actor's conversation with recipient. When content
// is non-empty it is posted as well.
func (a *ConversationAdapter) Start(ctx context.Context, actor, recipient, topic, content string) error {
	if content != "" {
		resp, err := a.service.StartAndSend(ctx, primary.StartAndSendRequest{
			Sender:    actor,
			Recipient: recipient,
			Topic:     topic,
			Content:   content,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "✓ %s conversation %s\n", verb(resp.Created), resp.ConversationID)
		fmt.Fprintf(a.out, "✓ Sent %s to %s\n", resp.Message.ID, recipient)
		return nil
	}

	resp, err := a.service.StartConversation(ctx, primary.StartConversationRequest{
		Initiator: actor,
		Recipient: recipient,
		Topic:     topic,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "✓ %s conversation %s with %s\n", verb(resp.Created), resp.Conversation.ID, recipient)
	return nil
}

// Send posts a message to an existing conversation.
func (a *ConversationAdapter) Send(ctx context.Context, actor, conversationID, content string) error {
	msg, err := a.service.SendMessage(ctx, primary.SendMessageRequest{
		ConversationID: conversationID,
		Sender:         actor,
		Content:        content,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Sent %s\n", msg.ID)
	return nil
}

// Open prints the conversation and marks it read for the actor.
func (a *ConversationAdapter) Open(ctx context.Context, actor, conversationID string) error {
	conv, err := a.service.OpenConversation(ctx, conversationID, actor)
	if err != nil {
		return err
	}
	a.printConversation(conv, actor)
	return nil
}

// Show prints the conversation without changing read state.
func (a *ConversationAdapter) Show(ctx context.Context, actor, conversationID string) error {
	conv, err := a.service.GetConversation(ctx, conversationID, actor)
	if err != nil {
		return err
	}
	a.printConversation(conv, actor)
	return nil
}

// Delete permanently removes a conversation.
func (a *ConversationAdapter) Delete(ctx context.Context, actor, conversationID string) error {
	if err := a.service.DeleteConversation(ctx, conversationID, actor); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "✓ Deleted conversation %s\n", conversationID)
	return nil
}

// List prints the actor's inbox, newest activity first.
func (a *ConversationAdapter) List(ctx context.Context, actor string, limit int) error {
	list, err := a.service.ListConversations(ctx, actor, limit)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	if len(list) == 0 {
		fmt.Fprintln(a.out, "No conversations")
		return nil
	}

	fmt.Fprintf(a.out, "\n%-12s %-8s %-20s %-16s %s\n", "ID", "UNREAD", "WITH", "TOPIC", "LAST MESSAGE")
	fmt.Fprintln(a.out, "────────────────────────────────────────────────────────────────────────────")
	for _, c := range list {
		last := "-"
		if c.LastMessage != nil {
			last = fmt.Sprintf("%s: %s", c.LastMessage.Sender, truncate(c.LastMessage.Content, 40))
		}
		topic := c.Topic
		if topic == "" {
			topic = "-"
		}
		fmt.Fprintf(a.out, "%-12s %s %-20s %-16s %s\n",
			c.ID, unreadBadge(c.Unread, 8), others(c.Participants, actor), topic, last)
	}
	fmt.Fprintln(a.out)

	return nil
}

// Unread prints the actor's total unread count.
func (a *ConversationAdapter) Unread(ctx context.Context, actor string) error {
	total, err := a.service.TotalUnread(ctx, actor)
	if err != nil {
		return err
	}

	if total == 0 {
		fmt.Fprintln(a.out, "No unread messages")
		return nil
	}
	fmt.Fprintf(a.out, "%s unread\n", color.New(color.FgYellow, color.Bold).Sprint(total))
	return nil
}

// Doctor reconciles unread counters for the given conversations, or for all
// of the actor's conversations when none are given.
func (a *ConversationAdapter) Doctor(ctx context.Context, actor string, conversationIDs []string) error {
	if len(conversationIDs) == 0 {
		list, err := a.service.ListConversations(ctx, actor, doctorScanLimit)
		if err != nil {
			return fmt.Errorf("failed to list conversations: %w", err)
		}
		for _, c := range list {
			conversationIDs = append(conversationIDs, c.ID)
		}
	}

	repaired := 0
	for _, id := range conversationIDs {
		resp, err := a.service.Reconcile(ctx, id)
		if err != nil {
			return err
		}
		if len(resp.Fixes) == 0 {
			fmt.Fprintf(a.out, "%s %s\n", color.New(color.FgGreen).Sprint("OK     "), id)
			continue
		}
		for _, f := range resp.Fixes {
			fmt.Fprintf(a.out, "%s %s %s: %d → %d\n",
				color.New(color.FgYellow).Sprint("REPAIR "), id, f.Participant, f.Stored, f.Expected)
			repaired++
		}
	}

	fmt.Fprintf(a.out, "\nChecked %d conversation(s), repaired %d counter(s)\n", len(conversationIDs), repaired)
	return nil
}

func (a *ConversationAdapter) printConversation(conv *primary.Conversation, actor string) {
	fmt.Fprintf(a.out, "\nConversation: %s\n", conv.ID)
	fmt.Fprintf(a.out, "With:    %s\n", others(conv.Participants, actor))
	if conv.Topic != "" {
		fmt.Fprintf(a.out, "Topic:   %s\n", conv.Topic)
	}
	fmt.Fprintf(a.out, "Unread:  %s\n", unreadBadge(conv.UnreadCount[actor], 0))
	fmt.Fprintln(a.out)

	if len(conv.Messages) == 0 {
		fmt.Fprintln(a.out, "  (no messages)")
	}
	for _, m := range conv.Messages {
		marker := " "
		if !m.Read && m.Sender != actor {
			marker = color.New(color.FgHiMagenta).Sprint("●")
		}
		fmt.Fprintf(a.out, "%s [%s] %s: %s\n", marker, m.CreatedAt, m.Sender, m.Content)
	}
	fmt.Fprintln(a.out)
}

func verb(created bool) string {
	if created {
		return "Created"
	}
	return "Found"
}

// unreadBadge renders n padded to width, highlighted when non-zero.
func unreadBadge(n, width int) string {
	text := fmt.Sprintf("%-*d", width, n)
	if n == 0 {
		return text
	}
	return color.New(color.FgYellow, color.Bold).Sprint(text)
}

// others lists the participants other than actor.
func others(participants []string, actor string) string {
	out := ""
	for _, p := range participants {
		if p == actor {
			continue
		}
		if out != "" {
			out += ","
		}
		out += p
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
