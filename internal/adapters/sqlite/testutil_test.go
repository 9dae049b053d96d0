// Package sqlite_test contains integration tests for SQLite repositories.
//
// # Schema Protection
//
// This file is the SINGLE POINT where the database schema is loaded for tests.
// All test setup functions use db.GetSchemaSQL() to ensure tests run against
// the authoritative schema, preventing drift between test and production.
//
// DO NOT hardcode CREATE TABLE statements in test files. Instead, use
// setupTestDB() and the seed* helpers.
package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/example/inbox/internal/adapters/sqlite"
	coreconversation "github.com/example/inbox/internal/core/conversation"
	"github.com/example/inbox/internal/db"
	"github.com/example/inbox/internal/ports/secondary"
)

// setupTestDB creates a temp-file database with the authoritative schema.
// A file is used instead of :memory: so every pooled connection sees the same
// data and concurrent writers contend on a real lock.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	testDB, err := db.Open(filepath.Join(t.TempDir(), "inbox.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}

	// Use the authoritative schema from schema.go
	_, err = testDB.Exec(db.GetSchemaSQL())
	if err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		testDB.Close()
	})

	return testDB
}

// seedConversation creates a conversation between a and b and returns it.
func seedConversation(t *testing.T, repo *sqlite.ConversationRepository, a, b, topic string) *secondary.ConversationRecord {
	t.Helper()

	record, created, err := repo.FindOrCreate(context.Background(), newConversationRecord(topic, a, b))
	if err != nil {
		t.Fatalf("failed to seed conversation: %v", err)
	}
	if !created {
		t.Fatalf("expected seeded conversation to be new")
	}
	return record
}

// seedMessage appends a message and fails the test on error.
func seedMessage(t *testing.T, repo *sqlite.ConversationRepository, conversationID, sender, content string) *secondary.MessageRecord {
	t.Helper()

	msg, err := repo.AppendMessage(context.Background(), conversationID, sender, content)
	if err != nil {
		t.Fatalf("failed to seed message: %v", err)
	}
	return msg
}

func newConversationRecord(topic string, participants ...string) *secondary.ConversationRecord {
	record := &secondary.ConversationRecord{
		ParticipantKey: coreconversation.ParticipantKey(participants...),
		Topic:          topic,
	}
	for _, p := range coreconversation.SortedParticipants(participants...) {
		record.Participants = append(record.Participants, secondary.ParticipantRecord{ParticipantID: p})
	}
	return record
}
