package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bizassist/internal/domain"
)

// RecentMessages returns up to limit of the latest messages of the scope's
// most recent conversation, oldest first.
func (s *Store) RecentMessages(ctx context.Context, scope string, limit int) ([]domain.MessageRecord, error) {
	convID, err := s.latestConversation(ctx, scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find conversation: %w", err)
	}

	rows, err := s.query(ctx, `
		SELECT id, conversation_id, role, content, created_at FROM messages
		WHERE conversation_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		convID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []domain.MessageRecord
	for rows.Next() {
		var m domain.MessageRecord
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// AppendExchange stores a prompt and its answer as the next two messages of
// the scope's conversation, starting one if needed.
func (s *Store) AppendExchange(ctx context.Context, scope, prompt, answer string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	now := ts(time.Now())

	var convID string
	err = tx.QueryRowContext(ctx, s.rebind(
		"SELECT id FROM conversations WHERE scope = ? ORDER BY updated_at DESC LIMIT 1"), scope,
	).Scan(&convID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		convID = newID()
		if _, err := tx.ExecContext(ctx, s.rebind(
			"INSERT INTO conversations (id, scope, created_at, updated_at) VALUES (?, ?, ?, ?)"),
			convID, scope, now, now,
		); err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find conversation: %w", err)
	default:
		if _, err := tx.ExecContext(ctx, s.rebind(
			"UPDATE conversations SET updated_at = ? WHERE id = ?"), now, convID,
		); err != nil {
			return fmt.Errorf("touch conversation: %w", err)
		}
	}

	var seq int
	if err := tx.QueryRowContext(ctx, s.rebind(
		"SELECT COALESCE(MAX(seq), 0) FROM messages WHERE conversation_id = ?"), convID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("next sequence: %w", err)
	}

	for _, m := range []struct{ role, content string }{
		{"user", prompt},
		{"assistant", answer},
	} {
		seq++
		if _, err := tx.ExecContext(ctx, s.rebind(`
			INSERT INTO messages (id, conversation_id, seq, role, content, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`),
			newID(), convID, seq, m.role, m.content, now,
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) latestConversation(ctx context.Context, scope string) (string, error) {
	var id string
	err := s.queryRow(ctx,
		"SELECT id FROM conversations WHERE scope = ? ORDER BY updated_at DESC LIMIT 1", scope,
	).Scan(&id)
	return id, err
}
