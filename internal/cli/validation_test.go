package cli

import (
	"strings"
	"testing"
)

func TestValidateConversationID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr string
	}{
		{name: "valid", id: "CONV-001"},
		{name: "valid long", id: "CONV-1234"},
		{name: "short id", id: "7", wantErr: "Use full ID format: CONV-7"},
		{name: "lower case", id: "conv-001", wantErr: "case-sensitive, use: CONV-001"},
		{name: "garbage", id: "hello", wantErr: "Expected format: CONV-xxx"},
		{name: "non-numeric suffix", id: "CONV-abc", wantErr: "must be a number"},
		{name: "trailing junk", id: "CONV-12x", wantErr: "must be a number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConversationID(tt.id)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestErrForceRequired(t *testing.T) {
	err := errForceRequired("delete CONV-001")
	if !strings.Contains(err.Error(), "refusing to delete CONV-001 without --force") {
		t.Errorf("unexpected message: %v", err)
	}
}
