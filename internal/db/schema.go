package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete modern schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// This is the SINGLE SOURCE OF TRUTH for the database schema. Repository tests
// load it through GetSchemaSQL() instead of hardcoding CREATE TABLE statements,
// so a column referenced by repository code but missing here fails immediately
// with "no such column".
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
//  3. Run `go test ./internal/db/...` to verify they agree
//
// Timestamps are TEXT in a fixed-width UTC layout (see TimeLayout) so that
// lexical order is chronological order.
const SchemaSQL = `
-- Conversations (one row per participant set + topic)
CREATE TABLE IF NOT EXISTS conversations (
	id TEXT PRIMARY KEY,
	participant_key TEXT NOT NULL,
	topic TEXT NOT NULL DEFAULT '',
	last_message_content TEXT,
	last_message_sender TEXT,
	last_message_at TEXT,
	version INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	UNIQUE(participant_key, topic)
);

CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC);

-- Conversation participants with per-participant unread counters
CREATE TABLE IF NOT EXISTS conversation_participants (
	conversation_id TEXT NOT NULL,
	participant_id TEXT NOT NULL,
	unread_count INTEGER NOT NULL DEFAULT 0 CHECK(unread_count >= 0),
	PRIMARY KEY (conversation_id, participant_id),
	FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_conversation_participants_participant ON conversation_participants(participant_id);

-- Conversation messages (append-only, ordered by seq)
CREATE TABLE IF NOT EXISTS conversation_messages (
	id TEXT PRIMARY KEY,
	conversation_id TEXT NOT NULL,
	seq INTEGER NOT NULL,
	sender TEXT NOT NULL,
	content TEXT NOT NULL,
	read INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	UNIQUE(conversation_id, seq),
	FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
);

-- Monotonic id sequences (ids are never reused after a delete)
CREATE TABLE IF NOT EXISTS id_sequences (
	name TEXT PRIMARY KEY,
	value INTEGER NOT NULL
);
`

// TimeLayout is the fixed-width UTC layout used for every stored timestamp.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// GetSchemaSQL returns the authoritative schema for tests.
func GetSchemaSQL() string {
	return SchemaSQL
}

// InitSchema brings the database up to date. Fresh databases get SchemaSQL
// directly with every migration marked applied; existing databases run the
// pending migrations.
func InitSchema(conn *sql.DB) error {
	var tableCount int
	err := conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(conn)
	}

	var conversationTables int
	err = conn.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='conversations'").Scan(&conversationTables)
	if err != nil {
		return err
	}
	if conversationTables > 0 {
		// Tables without version tracking predate migrations; replay them all.
		return RunMigrations(conn)
	}

	tx, err := conn.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(SchemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := tx.Exec(schemaVersionSQL); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := tx.Exec("INSERT INTO schema_version (version, name) VALUES (?, ?)", m.Version, m.Name); err != nil {
			return fmt.Errorf("failed to mark migration %d: %w", m.Version, err)
		}
	}

	return tx.Commit()
}
