package conversation

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// MaxContentLength is the longest message body accepted, in characters.
const MaxContentLength = 4000

// GenerateConversationID generates a conversation ID from a sequence value.
// The format is CONV-XXX where XXX is a zero-padded number of at least 3 digits.
func GenerateConversationID(seq int64) string {
	return fmt.Sprintf("CONV-%03d", seq)
}

// ParseConversationNumber extracts the numeric portion from a conversation ID.
// Returns -1 if the ID format is invalid.
func ParseConversationNumber(id string) int64 {
	digits, ok := strings.CutPrefix(id, "CONV-")
	if !ok || digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return -1
	}
	num, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || num < 1 {
		return -1
	}
	return num
}

// GenerateMessageID generates the ID of the seq-th message of a conversation.
func GenerateMessageID(conversationID string, seq int) string {
	return fmt.Sprintf("MSG-%s-%03d", conversationID, seq)
}

// SortedParticipants returns the participants in canonical order.
func SortedParticipants(participants ...string) []string {
	out := slices.Clone(participants)
	slices.Sort(out)
	return slices.Compact(out)
}

// ParticipantKey returns the lookup key for an unordered participant set.
// Identity references never contain whitespace, so a space is an unambiguous separator.
func ParticipantKey(participants ...string) string {
	return strings.Join(SortedParticipants(participants...), " ")
}

// NormalizeContent trims message content. The second result is false when
// nothing is left.
func NormalizeContent(content string) (string, bool) {
	trimmed := strings.TrimSpace(content)
	return trimmed, trimmed != ""
}

// NormalizeTopic trims a topic reference; "" means no topic.
func NormalizeTopic(topic string) string {
	return strings.TrimSpace(topic)
}
