// Package sqlite contains SQLite implementations of repository interfaces.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	coreconversation "github.com/example/inbox/internal/core/conversation"
	"github.com/example/inbox/internal/db"
	"github.com/example/inbox/internal/ports/secondary"
)

const conversationSequence = "conversation"

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// ConversationRepository implements secondary.ConversationRepository with SQLite.
//
// Every mutation runs in a single transaction. The connection is opened with
// _txlock=immediate (see db.DSN), so write transactions take the write lock
// up front and concurrent writers queue behind the busy timeout instead of
// interleaving. Counters are only ever changed with in-SQL arithmetic.
type ConversationRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewConversationRepository creates a new SQLite conversation repository.
func NewConversationRepository(db *sql.DB) *ConversationRepository {
	return &ConversationRepository{
		db:  db,
		now: time.Now,
	}
}

// WithClock returns a copy of the repository that reads time from now.
func (r *ConversationRepository) WithClock(now func() time.Time) *ConversationRepository {
	return &ConversationRepository{db: r.db, now: now}
}

func (r *ConversationRepository) timestamp() string {
	return r.now().UTC().Format(db.TimeLayout)
}

// FindOrCreate returns the conversation for record's participant key and topic,
// creating it when none exists.
func (r *ConversationRepository) FindOrCreate(ctx context.Context, record *secondary.ConversationRecord) (*secondary.ConversationRecord, bool, error) {
	var (
		id      string
		created bool
	)

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM conversations WHERE participant_key = ? AND topic = ?",
			record.ParticipantKey, record.Topic,
		).Scan(&id)
		if err == nil {
			return nil
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("failed to look up conversation: %w", err)
		}

		seq, err := nextSequence(ctx, tx, conversationSequence)
		if err != nil {
			return err
		}
		id = coreconversation.GenerateConversationID(seq)
		now := r.timestamp()

		result, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (id, participant_key, topic, version, created_at, updated_at)
			VALUES (?, ?, ?, 0, ?, ?)
			ON CONFLICT(participant_key, topic) DO NOTHING`,
			id, record.ParticipantKey, record.Topic, now, now,
		)
		if err != nil {
			return fmt.Errorf("failed to create conversation: %w", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			// Lost a race with another creator; use theirs.
			return tx.QueryRowContext(ctx,
				"SELECT id FROM conversations WHERE participant_key = ? AND topic = ?",
				record.ParticipantKey, record.Topic,
			).Scan(&id)
		}

		for _, p := range record.Participants {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO conversation_participants (conversation_id, participant_id, unread_count) VALUES (?, ?, 0)",
				id, p.ParticipantID,
			)
			if err != nil {
				return fmt.Errorf("failed to add participant %s: %w", p.ParticipantID, err)
			}
		}

		created = true
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	found, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return found, created, nil
}

// GetByID retrieves a conversation header with its participants.
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*secondary.ConversationRecord, error) {
	return getConversation(ctx, r.db, id)
}

func getConversation(ctx context.Context, q queryer, id string) (*secondary.ConversationRecord, error) {
	var (
		lastContent, lastSender, lastAt sql.NullString
	)

	record := &secondary.ConversationRecord{}
	err := q.QueryRowContext(ctx,
		`SELECT id, participant_key, topic, last_message_content, last_message_sender, last_message_at,
			version, created_at, updated_at
		FROM conversations WHERE id = ?`,
		id,
	).Scan(&record.ID, &record.ParticipantKey, &record.Topic, &lastContent, &lastSender, &lastAt,
		&record.Version, &record.CreatedAt, &record.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: conversation %s not found", coreconversation.ErrNotFound, id)
	}
	if err != nil {
		return nil, classify(fmt.Errorf("failed to get conversation: %w", err))
	}

	record.LastMessageContent = lastContent.String
	record.LastMessageSender = lastSender.String
	record.LastMessageAt = lastAt.String

	participants, err := listParticipants(ctx, q, id)
	if err != nil {
		return nil, err
	}
	record.Participants = participants

	return record, nil
}

func listParticipants(ctx context.Context, q queryer, conversationID string) ([]secondary.ParticipantRecord, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT participant_id, unread_count FROM conversation_participants WHERE conversation_id = ? ORDER BY participant_id",
		conversationID,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list participants: %w", err))
	}
	defer rows.Close()

	var participants []secondary.ParticipantRecord
	for rows.Next() {
		var p secondary.ParticipantRecord
		if err := rows.Scan(&p.ParticipantID, &p.UnreadCount); err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		participants = append(participants, p)
	}

	return participants, rows.Err()
}

// ListMessages retrieves a conversation's messages in append order.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]*secondary.MessageRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, conversation_id, seq, sender, content, read, created_at
		FROM conversation_messages
		WHERE conversation_id = ?
		ORDER BY seq ASC`,
		conversationID,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list messages: %w", err))
	}
	defer rows.Close()

	var messages []*secondary.MessageRecord
	for rows.Next() {
		var readInt int

		record := &secondary.MessageRecord{}
		err := rows.Scan(&record.ID, &record.ConversationID, &record.Seq, &record.Sender, &record.Content, &readInt, &record.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		record.Read = readInt == 1

		messages = append(messages, record)
	}

	return messages, rows.Err()
}

// AppendMessage appends a message and applies its side effects in one transaction:
// the last-message snapshot, the version marker and an in-SQL increment of every
// other participant's unread counter. Either all of it lands or none of it does.
func (r *ConversationRepository) AppendMessage(ctx context.Context, conversationID, sender, content string) (*secondary.MessageRecord, error) {
	var record *secondary.MessageRecord

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var isParticipant int
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id = ? AND participant_id = ?)
			FROM conversations WHERE id = ?`,
			conversationID, sender, conversationID,
		).Scan(&isParticipant)
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: conversation %s not found", coreconversation.ErrNotFound, conversationID)
		}
		if err != nil {
			return fmt.Errorf("failed to check participant: %w", err)
		}
		if isParticipant == 0 {
			return fmt.Errorf("%w: %s is not a participant of conversation %s", coreconversation.ErrUnauthorized, sender, conversationID)
		}

		var maxSeq int
		err = tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(seq), 0) FROM conversation_messages WHERE conversation_id = ?",
			conversationID,
		).Scan(&maxSeq)
		if err != nil {
			return fmt.Errorf("failed to get next message seq: %w", err)
		}

		now := r.timestamp()
		record = &secondary.MessageRecord{
			ID:             coreconversation.GenerateMessageID(conversationID, maxSeq+1),
			ConversationID: conversationID,
			Seq:            maxSeq + 1,
			Sender:         sender,
			Content:        content,
			CreatedAt:      now,
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO conversation_messages (id, conversation_id, seq, sender, content, read, created_at) VALUES (?, ?, ?, ?, ?, 0, ?)",
			record.ID, record.ConversationID, record.Seq, record.Sender, record.Content, record.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert message: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE conversations
			SET last_message_content = ?, last_message_sender = ?, last_message_at = ?,
				version = version + 1, updated_at = ?
			WHERE id = ?`,
			content, sender, now, now, conversationID,
		)
		if err != nil {
			return fmt.Errorf("failed to update last message: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE conversation_participants SET unread_count = unread_count + 1 WHERE conversation_id = ? AND participant_id <> ?",
			conversationID, sender,
		)
		if err != nil {
			return fmt.Errorf("failed to increment unread counters: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// MarkRead marks the reader's incoming messages read and zeroes their counter.
// Nothing is written when no message is unread and the counter is already zero.
func (r *ConversationRepository) MarkRead(ctx context.Context, conversationID, reader string) (int, error) {
	var marked int

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var isParticipant int
		err := tx.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM conversation_participants WHERE conversation_id = ? AND participant_id = ?",
			conversationID, reader,
		).Scan(&isParticipant)
		if err != nil {
			return fmt.Errorf("failed to check participant: %w", err)
		}
		if isParticipant == 0 {
			return fmt.Errorf("%w: conversation %s not found", coreconversation.ErrNotFound, conversationID)
		}

		result, err := tx.ExecContext(ctx,
			"UPDATE conversation_messages SET read = 1 WHERE conversation_id = ? AND sender <> ? AND read = 0",
			conversationID, reader,
		)
		if err != nil {
			return fmt.Errorf("failed to mark messages read: %w", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count marked messages: %w", err)
		}
		marked = int(n)

		// A counter left above zero with nothing unread is reset as well.
		result, err = tx.ExecContext(ctx,
			"UPDATE conversation_participants SET unread_count = 0 WHERE conversation_id = ? AND participant_id = ? AND unread_count > 0",
			conversationID, reader,
		)
		if err != nil {
			return fmt.Errorf("failed to reset unread counter: %w", err)
		}
		reset, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count reset counters: %w", err)
		}
		if marked == 0 && reset == 0 {
			return nil
		}

		_, err = tx.ExecContext(ctx,
			"UPDATE conversations SET version = version + 1 WHERE id = ?",
			conversationID,
		)
		if err != nil {
			return fmt.Errorf("failed to bump conversation version: %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	return marked, nil
}

// Delete permanently removes a conversation. Participants and messages go
// with it through ON DELETE CASCADE.
func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM conversations WHERE id = ?", id)
	if err != nil {
		return classify(fmt.Errorf("failed to delete conversation: %w", err))
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("%w: conversation %s not found", coreconversation.ErrNotFound, id)
	}

	return nil
}

// ListByParticipant retrieves the participant's conversations, most recent activity first.
func (r *ConversationRepository) ListByParticipant(ctx context.Context, participant string, limit int) ([]*secondary.ConversationRecord, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id
		FROM conversations c
		JOIN conversation_participants p ON p.conversation_id = c.id
		WHERE p.participant_id = ?
		ORDER BY c.updated_at DESC, c.id DESC
		LIMIT ?`,
		participant, limit,
	)
	if err != nil {
		return nil, classify(fmt.Errorf("failed to list conversations: %w", err))
	}

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan conversation id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	conversations := make([]*secondary.ConversationRecord, 0, len(ids))
	for _, id := range ids {
		record, err := getConversation(ctx, r.db, id)
		if errors.Is(err, coreconversation.ErrNotFound) {
			// Deleted between the two reads.
			continue
		}
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, record)
	}

	return conversations, nil
}

// SumUnread returns the participant's unread counters summed across conversations.
func (r *ConversationRepository) SumUnread(ctx context.Context, participant string) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(unread_count), 0) FROM conversation_participants WHERE participant_id = ?",
		participant,
	).Scan(&total)
	if err != nil {
		return 0, classify(fmt.Errorf("failed to sum unread counters: %w", err))
	}

	return total, nil
}

// SetUnreadCounts overwrites counters, guarded by a compare-and-swap on the
// conversation version.
func (r *ConversationRepository) SetUnreadCounts(ctx context.Context, conversationID string, expectedVersion int64, counts map[string]int) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx,
			"UPDATE conversations SET version = version + 1 WHERE id = ? AND version = ?",
			conversationID, expectedVersion,
		)
		if err != nil {
			return fmt.Errorf("failed to bump conversation version: %w", err)
		}

		if n, _ := result.RowsAffected(); n == 0 {
			var exists int
			if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM conversations WHERE id = ?", conversationID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check conversation: %w", err)
			}
			if exists == 0 {
				return fmt.Errorf("%w: conversation %s not found", coreconversation.ErrNotFound, conversationID)
			}
			return fmt.Errorf("%w: conversation %s changed since version %d", coreconversation.ErrConflict, conversationID, expectedVersion)
		}

		for participant, count := range counts {
			if count < 0 {
				return fmt.Errorf("%w: negative unread count %d for %s", coreconversation.ErrInvalidInput, count, participant)
			}
			_, err := tx.ExecContext(ctx,
				"UPDATE conversation_participants SET unread_count = ? WHERE conversation_id = ? AND participant_id = ?",
				count, conversationID, participant,
			)
			if err != nil {
				return fmt.Errorf("failed to set unread counter for %s: %w", participant, err)
			}
		}

		return nil
	})
}

// withTx runs fn in a write transaction, committing on success. Lock
// contention surfaces as ErrConflict.
func (r *ConversationRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("failed to begin transaction: %w", err))
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return classify(err)
	}

	if err := tx.Commit(); err != nil {
		return classify(fmt.Errorf("failed to commit transaction: %w", err))
	}

	return nil
}

// nextSequence atomically increments and returns the named sequence.
func nextSequence(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var value int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO id_sequences (name, value) VALUES (?, 1)
		ON CONFLICT(name) DO UPDATE SET value = value + 1
		RETURNING value`,
		name,
	).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("failed to advance %s sequence: %w", name, err)
	}
	return value, nil
}

// classify wraps SQLite lock contention in ErrConflict. Errors that already
// carry a kind pass through unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code {
		case sqlite3.ErrBusy, sqlite3.ErrLocked:
			return fmt.Errorf("%w: %v", coreconversation.ErrConflict, err)
		}
	}
	return err
}

// Ensure ConversationRepository implements the interface.
var _ secondary.ConversationRepository = (*ConversationRepository)(nil)
