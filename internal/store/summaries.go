package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// ApplySummaryEvent folds one gateway message notification into the
// visitor's conversation summary. The preview content and time always track
// the incoming event; the unread counter increments and the stored sequence
// advances only when the incoming sequence is strictly greater than the one
// already recorded, so replays and out-of-order deliveries never double
// count. The whole fold is a single conditional upsert, which makes
// concurrent webhook batches safe without a surrounding transaction.
func (s *Store) ApplySummaryEvent(ctx context.Context, userID int64, content string, at time.Time, seq int64) (Summary, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO conversation_summaries (user_id, last_message_content, last_message_time, last_message_seq, unread_count, updated_at)
		VALUES ($1, $2, $3, $4, 1, now())
		ON CONFLICT (user_id) DO UPDATE SET
			last_message_content = EXCLUDED.last_message_content,
			last_message_time = EXCLUDED.last_message_time,
			unread_count = conversation_summaries.unread_count + CASE
				WHEN EXCLUDED.last_message_seq > conversation_summaries.last_message_seq THEN 1 ELSE 0 END,
			last_message_seq = GREATEST(conversation_summaries.last_message_seq, EXCLUDED.last_message_seq),
			updated_at = now()
		RETURNING user_id, last_message_content, last_message_time, last_message_seq, unread_count, updated_at`,
		userID, content, at, seq)
	var sum Summary
	if err := row.Scan(&sum.UserID, &sum.LastMessageContent, &sum.LastMessageTime,
		&sum.LastMessageSeq, &sum.UnreadCount, &sum.UpdatedAt); err != nil {
		return Summary{}, fmt.Errorf("apply summary for user %d: %w", userID, err)
	}
	return sum, nil
}

// ResetUnread zeroes the visitor's unread counter. Missing summaries are
// fine: reading a conversation with no summary yet is a no-op.
func (s *Store) ResetUnread(ctx context.Context, userID int64) error {
	if _, err := s.pool.Exec(ctx, `
		UPDATE conversation_summaries
		SET unread_count = 0, updated_at = now()
		WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("reset unread for user %d: %w", userID, err)
	}
	return nil
}

// GetSummary loads a visitor's conversation summary.
func (s *Store) GetSummary(ctx context.Context, userID int64) (Summary, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT user_id, last_message_content, last_message_time, last_message_seq, unread_count, updated_at
		FROM conversation_summaries WHERE user_id = $1`, userID)
	var sum Summary
	if err := row.Scan(&sum.UserID, &sum.LastMessageContent, &sum.LastMessageTime,
		&sum.LastMessageSeq, &sum.UnreadCount, &sum.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Summary{}, ErrNotFound
		}
		return Summary{}, fmt.Errorf("get summary for user %d: %w", userID, err)
	}
	return sum, nil
}
