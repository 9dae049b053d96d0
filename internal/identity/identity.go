// Package identity handles Identity References: the opaque user keys the
// conversation core compares but never authenticates.
package identity

import (
	"fmt"
	"os"
	"strings"
	"unicode"

	coreconversation "github.com/example/inbox/internal/core/conversation"
)

// EnvVar names the environment variable consulted by Current.
const EnvVar = "INBOX_USER"

// Parse validates an identity reference supplied by a caller.
// Surrounding whitespace is trimmed; empty values and values containing
// whitespace are rejected.
func Parse(raw string) (string, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", fmt.Errorf("%w: identity is required", coreconversation.ErrInvalidInput)
	}
	if strings.IndexFunc(id, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: identity %q must not contain whitespace", coreconversation.ErrInvalidInput, id)
	}
	return id, nil
}

// Current resolves the acting identity for a CLI invocation.
// Resolution order: flag value, INBOX_USER, configured identity.
func Current(flagValue, configured string) (string, error) {
	for _, candidate := range []string{flagValue, os.Getenv(EnvVar), configured} {
		if strings.TrimSpace(candidate) != "" {
			return Parse(candidate)
		}
	}
	return "", fmt.Errorf("%w: no identity set (use --as, %s, or identity in .inbox/config.yaml)",
		coreconversation.ErrInvalidInput, EnvVar)
}
