package sqlite

import (
	"errors"
	"fmt"
	"testing"

	"github.com/mattn/go-sqlite3"

	coreconversation "github.com/example/inbox/internal/core/conversation"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"busy", sqlite3.Error{Code: sqlite3.ErrBusy}, true},
		{"locked", sqlite3.Error{Code: sqlite3.ErrLocked}, true},
		{"wrapped busy", fmt.Errorf("failed to begin: %w", sqlite3.Error{Code: sqlite3.ErrBusy}), true},
		{"constraint", sqlite3.Error{Code: sqlite3.ErrConstraint}, false},
		{"locked text without a code", errors.New("database is locked"), false},
		{"not found passes through", fmt.Errorf("%w: gone", coreconversation.ErrNotFound), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if errors.Is(got, coreconversation.ErrConflict) != tt.conflict {
				t.Errorf("classify(%v) = %v, conflict want %v", tt.err, got, tt.conflict)
			}
		})
	}

	if classify(nil) != nil {
		t.Error("expected nil to stay nil")
	}
}
