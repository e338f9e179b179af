package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RecordMessage persists one message and rolls the owning conversation's
// last-message fields forward in the same transaction. The conversation row
// is created on first use.
func (s *Store) RecordMessage(ctx context.Context, msg Message) (Message, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("begin record message: %w", err)
	}
	defer tx.Rollback(ctx)

	userID := msg.SenderID
	if msg.SenderType != SenderTypeUser {
		// Agent and system messages land in the visitor's conversation,
		// addressed by ConversationID resolved by the caller.
		if msg.ConversationID == 0 {
			return Message{}, fmt.Errorf("record message: conversation id required for %s sender", msg.SenderType)
		}
	}

	if msg.ConversationID == 0 {
		row := tx.QueryRow(ctx, `
			INSERT INTO conversations (project_id, user_id)
			VALUES ($1, $2)
			ON CONFLICT (project_id, user_id) DO UPDATE SET user_id = EXCLUDED.user_id
			RETURNING id`,
			msg.ProjectID, userID)
		if err := row.Scan(&msg.ConversationID); err != nil {
			return Message{}, fmt.Errorf("ensure conversation: %w", err)
		}
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO messages (id, project_id, conversation_id, external_msg_id, sender_type, sender_id, msg_type, content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		msg.ID, msg.ProjectID, msg.ConversationID, msg.ExternalMsgID,
		msg.SenderType, msg.SenderID, msg.MsgType, msg.Content)
	if err := row.Scan(&msg.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE conversations
		SET last_message_content = $2, last_message_time = $3
		WHERE id = $1`,
		msg.ConversationID, msg.Content, msg.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("update conversation tail: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("commit record message: %w", err)
	}
	return msg, nil
}

// EnsureConversation returns the conversation for (projectID, userID),
// creating it when absent.
func (s *Store) EnsureConversation(ctx context.Context, projectID, userID int64) (Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (project_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (project_id, user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		RETURNING id, project_id, user_id, last_message_content, last_message_time, created_at`,
		projectID, userID)
	var c Conversation
	if err := row.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.LastMessageContent, &c.LastMessageTime, &c.CreatedAt); err != nil {
		return Conversation{}, fmt.Errorf("ensure conversation %d/%d: %w", projectID, userID, err)
	}
	return c, nil
}

// GetConversation loads a conversation by id.
func (s *Store) GetConversation(ctx context.Context, id int64) (Conversation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, project_id, user_id, last_message_content, last_message_time, created_at
		FROM conversations WHERE id = $1`, id)
	var c Conversation
	if err := row.Scan(&c.ID, &c.ProjectID, &c.UserID, &c.LastMessageContent, &c.LastMessageTime, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("get conversation %d: %w", id, err)
	}
	return c, nil
}

// ListMessages reads a conversation's newest messages, oldest first.
func (s *Store) ListMessages(ctx context.Context, conversationID int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, project_id, conversation_id, external_msg_id, sender_type, sender_id, msg_type, content, created_at
		FROM (
			SELECT * FROM messages
			WHERE conversation_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`,
		conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var messages []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ProjectID, &m.ConversationID, &m.ExternalMsgID,
			&m.SenderType, &m.SenderID, &m.MsgType, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
