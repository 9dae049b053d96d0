package db

import (
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/inbox/internal/logger"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

const schemaVersionSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER PRIMARY KEY,
	name TEXT,
	applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
)`

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_conversation_tables",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_version_to_conversations",
		Up:      migrationV2,
	},
	{
		Version: 3,
		Name:    "add_id_sequences_table",
		Up:      migrationV3,
	},
	{
		Version: 4,
		Name:    "add_activity_and_participant_indexes",
		Up:      migrationV4,
	},
}

// LatestVersion returns the version of the newest migration.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// CurrentVersion returns the highest applied migration version, 0 if none.
func CurrentVersion(conn *sql.DB) (int, error) {
	if _, err := conn.Exec(schemaVersionSQL); err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	if err := conn.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get current schema version: %w", err)
	}
	return version, nil
}

// RunMigrations applies every pending migration, each in its own transaction.
func RunMigrations(conn *sql.DB) error {
	currentVersion, err := CurrentVersion(conn)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		logger.Log.Info("running migration",
			zap.Int("version", migration.Version),
			zap.String("name", migration.Name))

		tx, err := conn.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, err)
		}

		_, err = tx.Exec("INSERT INTO schema_version (version, name) VALUES (?, ?)", migration.Version, migration.Name)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}

		logger.Log.Info("migration completed", zap.Int("version", migration.Version))
	}

	return nil
}

// migrationV1 creates the conversation, participant and message tables.
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			participant_key TEXT NOT NULL,
			topic TEXT NOT NULL DEFAULT '',
			last_message_content TEXT,
			last_message_sender TEXT,
			last_message_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			UNIQUE(participant_key, topic)
		);

		CREATE TABLE IF NOT EXISTS conversation_participants (
			conversation_id TEXT NOT NULL,
			participant_id TEXT NOT NULL,
			unread_count INTEGER NOT NULL DEFAULT 0 CHECK(unread_count >= 0),
			PRIMARY KEY (conversation_id, participant_id),
			FOREIGN KEY (conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		);

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
	`)
	if err != nil {
		return fmt.Errorf("failed to create conversation tables: %w", err)
	}
	return nil
}

// migrationV2 adds the write version marker.
func migrationV2(tx *sql.Tx) error {
	var count int
	err := tx.QueryRow("SELECT COUNT(*) FROM pragma_table_info('conversations') WHERE name = 'version'").Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to inspect conversations table: %w", err)
	}
	if count > 0 {
		return nil
	}

	if _, err := tx.Exec("ALTER TABLE conversations ADD COLUMN version INTEGER NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("failed to add version column: %w", err)
	}
	return nil
}

// migrationV3 adds id sequences, seeded past any existing conversation id.
func migrationV3(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS id_sequences (
			name TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create id_sequences table: %w", err)
	}

	_, err = tx.Exec(`
		INSERT OR IGNORE INTO id_sequences (name, value)
		SELECT 'conversation', COALESCE(MAX(CAST(SUBSTR(id, 6) AS INTEGER)), 0)
		FROM conversations
	`)
	if err != nil {
		return fmt.Errorf("failed to seed conversation sequence: %w", err)
	}
	return nil
}

// migrationV4 adds the activity-order and participant lookup indexes.
func migrationV4(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE INDEX IF NOT EXISTS idx_conversations_updated ON conversations(updated_at DESC);
		CREATE INDEX IF NOT EXISTS idx_conversation_participants_participant ON conversation_participants(participant_id);
	`)
	if err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}
