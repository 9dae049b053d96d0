package cli

import (
	"fmt"
	"regexp"
	"strings"

	coreconversation "github.com/example/inbox/internal/core/conversation"
)

const conversationPrefix = "CONV"

var digitsOnly = regexp.MustCompile(`^\d+$`)

// validateConversationID checks that an ID has the CONV-xxx format.
// Returns an error with a helpful message if the ID appears to be a short ID.
func validateConversationID(id string) error {
	expectedPattern := conversationPrefix + "-"
	if strings.HasPrefix(id, expectedPattern) {
		if coreconversation.ParseConversationNumber(id) < 0 {
			return fmt.Errorf("invalid conversation ID '%s'. The part after %s must be a number, e.g. %s-001", id, expectedPattern, conversationPrefix)
		}
		return nil
	}

	// Check if it looks like a short ID (just digits)
	if digitsOnly.MatchString(id) {
		return fmt.Errorf("invalid conversation ID '%s'. Use full ID format: %s-%s", id, conversationPrefix, id)
	}

	// Check if it's using wrong case
	if strings.HasPrefix(strings.ToUpper(id), expectedPattern) {
		return fmt.Errorf("invalid conversation ID '%s'. IDs are case-sensitive, use: %s", id, strings.ToUpper(id))
	}

	return fmt.Errorf("invalid conversation ID '%s'. Expected format: %s-xxx", id, conversationPrefix)
}

// errForceRequired is returned by irreversible commands run without --force.
func errForceRequired(action string) error {
	return fmt.Errorf("refusing to %s without --force (this cannot be undone)", action)
}
