// Package conversation contains the pure business logic for conversations.
// Guards are pure functions that evaluate preconditions without side effects.
package conversation

import "fmt"

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
	Kind    error // one of the Err* kinds when not allowed
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	if r.Kind == nil {
		return fmt.Errorf("%s", r.Reason)
	}
	return fmt.Errorf("%w: %s", r.Kind, r.Reason)
}

// StartContext provides context for find-or-create guards.
type StartContext struct {
	Initiator string
	Recipient string
}

// SendContext provides context for send guards.
type SendContext struct {
	ConversationID string
	Sender         string
	IsParticipant  bool
	Content        string // raw, untrimmed
}

// AccessContext provides context for open, show and delete guards.
type AccessContext struct {
	ConversationID string
	Actor          string
	IsParticipant  bool
}

// CanStartConversation evaluates whether a conversation can be found or created.
// Rules:
// - Both participants must be identified
// - Initiator and recipient must differ
func CanStartConversation(ctx StartContext) GuardResult {
	if ctx.Initiator == "" || ctx.Recipient == "" {
		return GuardResult{
			Reason: "initiator and recipient are required",
			Kind:   ErrInvalidInput,
		}
	}

	if ctx.Initiator == ctx.Recipient {
		return GuardResult{
			Reason: "cannot message self",
			Kind:   ErrInvalidInput,
		}
	}

	return GuardResult{Allowed: true}
}

// CanSendMessage evaluates whether a message can be posted.
// Rules:
// - Sender must be a participant
// - Content must be non-empty after trimming and within MaxContentLength
func CanSendMessage(ctx SendContext) GuardResult {
	if !ctx.IsParticipant {
		return GuardResult{
			Reason: fmt.Sprintf("%s is not a participant of conversation %s", ctx.Sender, ctx.ConversationID),
			Kind:   ErrUnauthorized,
		}
	}

	if res := CheckContent(ctx.Content); !res.Allowed {
		return res
	}

	return GuardResult{Allowed: true}
}

// CheckContent validates message content on its own. StartAndSend uses it to
// reject a bad message before a conversation gets created for it.
func CheckContent(content string) GuardResult {
	normalized, ok := NormalizeContent(content)
	if !ok {
		return GuardResult{
			Reason: "message content cannot be empty",
			Kind:   ErrInvalidInput,
		}
	}

	if n := len([]rune(normalized)); n > MaxContentLength {
		return GuardResult{
			Reason: fmt.Sprintf("message content is %d characters (limit %d)", n, MaxContentLength),
			Kind:   ErrInvalidInput,
		}
	}

	return GuardResult{Allowed: true}
}

// CanAccessConversation evaluates whether an actor may open, view or delete a
// conversation. A non-participant gets the same answer as a missing conversation.
func CanAccessConversation(ctx AccessContext) GuardResult {
	if !ctx.IsParticipant {
		return GuardResult{
			Reason: fmt.Sprintf("conversation %s not found", ctx.ConversationID),
			Kind:   ErrNotFound,
		}
	}

	return GuardResult{Allowed: true}
}
